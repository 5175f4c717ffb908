package model

import "time"

// User is an identity known to the authentication provider.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is proof of an authenticated identity. A nil *Session means absent.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Valid reports whether the session is neither revoked nor expired at now.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// SessionChangeKind names what happened to a session.
type SessionChangeKind string

const (
	SessionSignedIn  SessionChangeKind = "signed_in"
	SessionSignedOut SessionChangeKind = "signed_out"
	SessionRefreshed SessionChangeKind = "refreshed"
	SessionExpired   SessionChangeKind = "expired"
)

// Ends reports whether the change leaves no session behind.
func (k SessionChangeKind) Ends() bool {
	return k == SessionSignedOut || k == SessionExpired
}
