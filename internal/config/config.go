package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DatabaseURL string // LENSDESK_DATABASE_URL (required)
	GRPCAddr    string // LENSDESK_GRPC_ADDR (default ":9090")
	HTTPAddr    string // LENSDESK_HTTP_ADDR (default ":8080")
	NATSURL     string // LENSDESK_NATS_URL (optional, empty = in-process events only)

	// Sessions
	JWTSecret         string        // LENSDESK_JWT_SECRET (required)
	SessionTTL        time.Duration // LENSDESK_SESSION_TTL (default 1h)
	RoleLookupTimeout time.Duration // LENSDESK_ROLE_LOOKUP_TIMEOUT (default 5s)

	// Notifications
	ResendAPIKey string // LENSDESK_RESEND_API_KEY (empty = log emails instead of sending)
	AdminEmail   string // LENSDESK_ADMIN_EMAIL (recipient of new-booking notifications)
	MailFrom     string // LENSDESK_MAIL_FROM (default "VisionCare Lens Shop <onboarding@resend.dev>")

	// Public booking form
	BookingRate  float64 // LENSDESK_BOOKING_RATE, submissions per second per client (default 0.2)
	BookingBurst int     // LENSDESK_BOOKING_BURST (default 3)

	// Sync settings
	SyncInterval   time.Duration // LENSDESK_SYNC_INTERVAL (default 15m; 0 = disabled)
	SyncS3Bucket   string        // LENSDESK_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // LENSDESK_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // LENSDESK_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // LENSDESK_SYNC_S3_KEY (default "lensdesk/backup.jsonl")
	SyncGitRepo    string        // LENSDESK_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // LENSDESK_SYNC_GIT_FILE (default "lensdesk.jsonl")
	SyncGitBranch  string        // LENSDESK_SYNC_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("LENSDESK_DATABASE_URL"),
		GRPCAddr:       envOrDefault("LENSDESK_GRPC_ADDR", ":9090"),
		HTTPAddr:       envOrDefault("LENSDESK_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("LENSDESK_NATS_URL"),
		JWTSecret:      os.Getenv("LENSDESK_JWT_SECRET"),
		ResendAPIKey:   os.Getenv("LENSDESK_RESEND_API_KEY"),
		AdminEmail:     os.Getenv("LENSDESK_ADMIN_EMAIL"),
		MailFrom:       envOrDefault("LENSDESK_MAIL_FROM", "VisionCare Lens Shop <onboarding@resend.dev>"),
		SyncS3Bucket:   os.Getenv("LENSDESK_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("LENSDESK_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("LENSDESK_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("LENSDESK_SYNC_S3_KEY", "lensdesk/backup.jsonl"),
		SyncGitRepo:    os.Getenv("LENSDESK_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("LENSDESK_SYNC_GIT_FILE", "lensdesk.jsonl"),
		SyncGitBranch:  envOrDefault("LENSDESK_SYNC_GIT_BRANCH", "main"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("LENSDESK_DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return nil, fmt.Errorf("LENSDESK_JWT_SECRET is required")
	}

	var err error
	if c.SessionTTL, err = durationEnv("LENSDESK_SESSION_TTL", "1h"); err != nil {
		return nil, err
	}
	if c.RoleLookupTimeout, err = durationEnv("LENSDESK_ROLE_LOOKUP_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if c.SyncInterval, err = durationEnv("LENSDESK_SYNC_INTERVAL", "15m"); err != nil {
		return nil, err
	}

	if _, err := fmt.Sscan(envOrDefault("LENSDESK_BOOKING_RATE", "0.2"), &c.BookingRate); err != nil {
		return nil, fmt.Errorf("LENSDESK_BOOKING_RATE: %w", err)
	}
	if _, err := fmt.Sscan(envOrDefault("LENSDESK_BOOKING_BURST", "3"), &c.BookingBurst); err != nil {
		return nil, fmt.Errorf("LENSDESK_BOOKING_BURST: %w", err)
	}

	return c, nil
}

func durationEnv(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
