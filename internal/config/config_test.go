package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("LENSDESK_DATABASE_URL", "")
	t.Setenv("LENSDESK_JWT_SECRET", "s3cret")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when LENSDESK_DATABASE_URL is unset")
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("LENSDESK_DATABASE_URL", "postgres://localhost/lensdesk")
	t.Setenv("LENSDESK_JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when LENSDESK_JWT_SECRET is unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LENSDESK_DATABASE_URL", "postgres://localhost/lensdesk")
	t.Setenv("LENSDESK_JWT_SECRET", "s3cret")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.HTTPAddr != ":8080" || c.GRPCAddr != ":9090" {
		t.Errorf("addrs = %q %q", c.HTTPAddr, c.GRPCAddr)
	}
	if c.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %v, want 1h", c.SessionTTL)
	}
	if c.RoleLookupTimeout != 5*time.Second {
		t.Errorf("RoleLookupTimeout = %v, want 5s", c.RoleLookupTimeout)
	}
	if c.SyncInterval != 15*time.Minute {
		t.Errorf("SyncInterval = %v, want 15m", c.SyncInterval)
	}
	if c.BookingRate != 0.2 || c.BookingBurst != 3 {
		t.Errorf("booking limits = %v/%d", c.BookingRate, c.BookingBurst)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("LENSDESK_DATABASE_URL", "postgres://localhost/lensdesk")
	t.Setenv("LENSDESK_JWT_SECRET", "s3cret")
	t.Setenv("LENSDESK_ROLE_LOOKUP_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
