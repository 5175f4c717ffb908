package idgen

import (
	"regexp"
	"testing"
)

func TestSessionID_Length(t *testing.T) {
	id, err := SessionID()
	if err != nil {
		t.Fatalf("SessionID() error: %v", err)
	}
	wantLen := len(SessionPrefix) + Length
	if len(id) != wantLen {
		t.Errorf("SessionID() length = %d, want %d (id=%q)", len(id), wantLen, id)
	}
}

func TestSessionID_Charset(t *testing.T) {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(SessionPrefix) + `[a-zA-Z0-9]+$`)
	for i := 0; i < 100; i++ {
		id, err := SessionID()
		if err != nil {
			t.Fatalf("SessionID() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("SessionID() = %q, does not match expected charset pattern", id)
		}
	}
}

func TestSessionID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := SessionID()
		if err != nil {
			t.Fatalf("SessionID() error: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q after %d iterations", id, i)
		}
		seen[id] = true
	}
}

func TestRowID(t *testing.T) {
	id := RowID()
	if !IsRowID(id) {
		t.Fatalf("RowID() = %q, not a UUID", id)
	}
	if IsRowID("ses-abc") {
		t.Error("session id should not parse as a row id")
	}
}
