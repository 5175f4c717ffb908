package session

import (
	"context"

	"github.com/alfredjeanlab/lensdesk/internal/events"
	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// Validator resolves bearer tokens to sessions.
type Validator interface {
	// Validate returns the live session for token, or an error if the token
	// is malformed, expired or revoked.
	Validate(ctx context.Context, token string) (*model.Session, error)
	// SessionID returns the session id a well-signed token names, without
	// consulting storage.
	SessionID(token string) (string, error)
}

// Bound is a session source scoped to the single session one token names.
// It satisfies gate.SessionSource.
type Bound struct {
	validator Validator
	hub       *Hub
	token     string
	sessionID string
}

// NewBound scopes the hub to token. An empty or unparseable token yields a
// source whose session is always absent.
func NewBound(v Validator, hub *Hub, token string) *Bound {
	b := &Bound{validator: v, hub: hub, token: token}
	if token != "" {
		if id, err := v.SessionID(token); err == nil {
			b.sessionID = id
		}
	}
	return b
}

// SessionID returns the id of the session the token names, or "".
func (b *Bound) SessionID() string { return b.sessionID }

// CurrentSession returns the session snapshot, nil when absent.
func (b *Bound) CurrentSession(ctx context.Context) (*model.Session, error) {
	if b.sessionID == "" {
		return nil, nil
	}
	return b.validator.Validate(ctx, b.token)
}

// OnSessionChange calls fn with the new session each time this token's
// session changes, and with nil once it ends.
func (b *Bound) OnSessionChange(fn func(*model.Session)) (unsubscribe func()) {
	if b.sessionID == "" {
		return func() {}
	}
	return b.hub.Subscribe(func(change events.SessionChanged) {
		if change.SessionID != b.sessionID {
			return
		}
		if change.Kind.Ends() || change.Session == nil {
			fn(nil)
			return
		}
		fn(change.Session)
	})
}
