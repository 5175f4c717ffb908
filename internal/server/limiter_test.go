package server

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientLimiter(t *testing.T) {
	l := newClientLimiter(1, 2)
	now := time.Now()

	if !l.allow("a", now) || !l.allow("a", now) {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.allow("a", now) {
		t.Fatal("third request in the same instant should be refused")
	}
	if !l.allow("b", now) {
		t.Fatal("clients are limited independently")
	}
	if !l.allow("a", now.Add(time.Second)) {
		t.Fatal("a token should refill after a second")
	}
}

func TestClientLimiter_Disabled(t *testing.T) {
	l := newClientLimiter(0, 0)
	for range 100 {
		if !l.allow("a", time.Now()) {
			t.Fatal("disabled limiter must allow everything")
		}
	}
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/bookings", nil)
	r.RemoteAddr = "10.0.0.7:5123"
	if got := clientAddr(r); got != "10.0.0.7" {
		t.Fatalf("clientAddr = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientAddr(r); got != "203.0.113.9" {
		t.Fatalf("clientAddr with XFF = %q", got)
	}
}
