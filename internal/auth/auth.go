// Package auth is the authentication provider: sign-up, sign-in, sign-out,
// token refresh and token validation. Every session state change is
// published on the event bus so that access gates can re-evaluate.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alfredjeanlab/lensdesk/internal/events"
	"github.com/alfredjeanlab/lensdesk/internal/idgen"
	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/alfredjeanlab/lensdesk/internal/store"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrRoleMismatch is returned by SignIn when the identity lacks the portal role.
	ErrRoleMismatch = errors.New("account does not have access to this portal")
	// ErrInvalidToken is returned for malformed, expired or revoked tokens.
	ErrInvalidToken = errors.New("invalid or expired session")
	// ErrEmailTaken is returned by SignUp when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = time.Hour

// Result is a freshly issued or refreshed session.
type Result struct {
	Token   string         `json:"token"`
	Session *model.Session `json:"session"`
	User    *model.User    `json:"user,omitempty"`
}

// Service issues and validates sessions.
type Service struct {
	store      store.Store
	publisher  events.Publisher
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func New(st store.Store, pub events.Publisher, secret []byte, opts ...Option) *Service {
	s := &Service{
		store:      st,
		publisher:  pub,
		secret:     secret,
		ttl:        DefaultTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SignUp registers a new identity, grants it the customer role in the same
// transaction and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := model.ValidateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{ID: idgen.RowID(), Email: email, PasswordHash: string(hash)}
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetUserByEmail(ctx, email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lookup user: %w", err)
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return tx.GrantRole(ctx, &model.RoleAssignment{UserID: user.ID, Role: model.RoleCustomer, Email: email})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("auth: user registered", "user", user.ID)
	return s.issue(ctx, user)
}

// SignIn checks credentials and issues a session. When portal is non-empty
// the identity must hold that role; otherwise ErrRoleMismatch is returned
// and no session is issued.
func (s *Service) SignIn(ctx context.Context, email, password string, portal model.Role) (*Result, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if portal != "" {
		ok, err := s.store.HasRole(ctx, user.ID, portal)
		if err != nil {
			return nil, fmt.Errorf("check role: %w", err)
		}
		if !ok {
			s.logger.Info("auth: sign-in refused for portal", "user", user.ID, "portal", portal)
			return nil, ErrRoleMismatch
		}
	}

	return s.issue(ctx, user)
}

// SignOut revokes the session named by token and announces the change.
func (s *Service) SignOut(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.store.RevokeSession(ctx, c.SID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidToken
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	s.announce(ctx, events.SessionChanged{
		Kind: model.SessionSignedOut, SessionID: c.SID, UserID: c.Subject, At: now,
	})
	return nil
}

// Refresh extends a live session and returns a new token for it. The
// session id, and therefore the identity, is unchanged.
func (s *Service) Refresh(ctx context.Context, token string) (*Result, error) {
	sess, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	sess.ExpiresAt = s.now().Add(s.ttl)
	if err := s.store.ExtendSession(ctx, sess.ID, sess.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("extend session: %w", err)
	}
	signed, err := s.sign(sess)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, events.SessionChanged{
		Kind: model.SessionRefreshed, SessionID: sess.ID, UserID: sess.UserID, Session: sess, At: s.now(),
	})
	return &Result{Token: signed, Session: sess}, nil
}

// Validate resolves token to its live session.
func (s *Service) Validate(ctx context.Context, token string) (*model.Session, error) {
	c, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	sess, err := s.store.GetSession(ctx, c.SID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !sess.Valid(s.now()) {
		return nil, ErrInvalidToken
	}
	return sess, nil
}

// Expire announces that a session passed its expiry time.
func (s *Service) Expire(ctx context.Context, sess *model.Session) {
	s.announce(ctx, events.SessionChanged{
		Kind: model.SessionExpired, SessionID: sess.ID, UserID: sess.UserID, At: s.now(),
	})
}

func (s *Service) issue(ctx context.Context, user *model.User) (*Result, error) {
	id, err := idgen.SessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	now := s.now()
	sess := &model.Session{
		ID:        id,
		UserID:    user.ID,
		Email:     user.Email,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	signed, err := s.sign(sess)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, events.SessionChanged{
		Kind: model.SessionSignedIn, SessionID: sess.ID, UserID: user.ID, Session: sess, At: now,
	})
	return &Result{Token: signed, Session: sess, User: user}, nil
}

// announce publishes a session change. A failed publish is logged; the
// state change itself already happened.
func (s *Service) announce(ctx context.Context, change events.SessionChanged) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.SessionTopic(change.Kind), change); err != nil {
		s.logger.Error("auth: publish session change", "kind", change.Kind, "session", change.SessionID, "err", err)
	}
}
