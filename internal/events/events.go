package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// Event topic constants
const (
	// Session lifecycle events (emitted by the auth service, consumed by
	// session bridges on every server instance).
	TopicSessionSignedIn  = "lensdesk.session.signed_in"
	TopicSessionSignedOut = "lensdesk.session.signed_out"
	TopicSessionRefreshed = "lensdesk.session.refreshed"
	TopicSessionExpired   = "lensdesk.session.expired"
	TopicSessionAll       = "lensdesk.session.>"

	// Booking events
	TopicConsultationCreated = "lensdesk.consultation.created"
	TopicConsultationUpdated = "lensdesk.consultation.updated"
	TopicConsultationAll     = "lensdesk.consultation.>"
)

// SessionTopic returns the topic a session change of the given kind is published on.
func SessionTopic(kind model.SessionChangeKind) string {
	return "lensdesk.session." + string(kind)
}

// Event types

// SessionChanged announces a session state change. Session is nil when the
// change ends the session.
type SessionChanged struct {
	Kind      model.SessionChangeKind `json:"kind"`
	SessionID string                  `json:"session_id"`
	UserID    string                  `json:"user_id,omitempty"`
	Session   *model.Session          `json:"session,omitempty"`
	At        time.Time               `json:"at"`
}

type ConsultationCreated struct {
	Customer *model.Customer            `json:"customer"`
	Request  *model.ConsultationRequest `json:"request,omitempty"`
}

type ConsultationUpdated struct {
	Request *model.ConsultationRequest `json:"request"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
