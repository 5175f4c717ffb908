package gate

import (
	"context"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// State is the gate's position in its decision procedure.
type State int

const (
	Initializing State = iota
	Checking
	Authorized
	Unauthorized
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Checking:
		return "checking"
	case Authorized:
		return "authorized"
	case Unauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// Resolved reports whether rendering has stabilized on content or redirect.
func (s State) Resolved() bool {
	return s == Authorized || s == Unauthorized
}

// MarshalText lets states appear by name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reason explains an Unauthorized decision. It is only ever logged or
// reported; both reasons render as the same redirect.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNoSession    Reason = "no_session"
	ReasonRoleMismatch Reason = "role_mismatch"
)

// Match is the tri-state result of the role lookup.
type Match int

const (
	MatchUnknown Match = iota
	MatchTrue
	MatchFalse
)

// Phase is loading until the gate has a decision.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseResolved
)

// Snapshot is the gate's transient state. When Phase is PhaseResolved,
// RoleMatch is never MatchUnknown.
type Snapshot struct {
	Session   *model.Session
	RoleMatch Match
	Phase     Phase
}

// Decision is what the gate currently renders.
type Decision struct {
	State  State  `json:"state"`
	Reason Reason `json:"reason,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// Requirement is the role a protected view demands. The zero value is
// AnyAuthenticated.
type Requirement struct {
	role model.Role
}

// AnyAuthenticated admits any caller holding a session.
var AnyAuthenticated = Requirement{}

// RequireRole admits callers holding role.
func RequireRole(role model.Role) Requirement {
	return Requirement{role: role}
}

// Role returns the required role, or false for AnyAuthenticated.
func (r Requirement) Role() (model.Role, bool) {
	return r.role, r.role != ""
}

func (r Requirement) String() string {
	if r.role == "" {
		return "any-authenticated"
	}
	return string(r.role)
}

// SessionSource supplies the caller's session.
type SessionSource interface {
	// CurrentSession returns the session snapshot; nil means absent.
	CurrentSession(ctx context.Context) (*model.Session, error)
	// OnSessionChange calls fn with the new session (nil on logout) until
	// the returned function is called.
	OnSessionChange(fn func(*model.Session)) (unsubscribe func())
}

// RoleStore answers whether an identity holds a role.
type RoleStore interface {
	HasRole(ctx context.Context, identity string, role model.Role) (bool, error)
}
