// Package server exposes lensdesk over HTTP and gRPC. Every protected route
// is wrapped by exactly one access gate parameterized by the route's
// required role.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/auth"
	"github.com/alfredjeanlab/lensdesk/internal/events"
	"github.com/alfredjeanlab/lensdesk/internal/gate"
	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/alfredjeanlab/lensdesk/internal/session"
	"github.com/alfredjeanlab/lensdesk/internal/store"
)

// Redirect targets for unauthorized callers.
const (
	AdminLoginPath    = "/login"
	CustomerLoginPath = "/customer-login"
)

// Server holds the collaborators shared by the HTTP and gRPC surfaces.
type Server struct {
	store      store.Store
	auth       *auth.Service
	hub        *session.Hub
	tracker    *session.Tracker
	publisher  events.Publisher
	subscriber events.Subscriber
	limiter    *clientLimiter
	gateOpts   []gate.Option
	logger     *slog.Logger
	now        func() time.Time
}

// Options configures a Server.
type Options struct {
	Store      store.Store
	Auth       *auth.Service
	Hub        *session.Hub
	Tracker    *session.Tracker  // optional; enables GET /admin/sessions
	Publisher  events.Publisher  // receives consultation events
	Subscriber events.Subscriber // optional; feeds live admin dashboards

	LookupTimeout time.Duration // role lookup bound for every gate
	BookingRate   float64       // booking submissions per second per client
	BookingBurst  int

	Logger *slog.Logger
}

// New returns a Server wired to the given collaborators.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:      opts.Store,
		auth:       opts.Auth,
		hub:        opts.Hub,
		tracker:    opts.Tracker,
		publisher:  opts.Publisher,
		subscriber: opts.Subscriber,
		limiter:    newClientLimiter(opts.BookingRate, opts.BookingBurst),
		logger:     logger,
		now:        time.Now,
	}
	s.gateOpts = []gate.Option{gate.WithLogger(logger)}
	if opts.LookupTimeout > 0 {
		s.gateOpts = append(s.gateOpts, gate.WithLookupTimeout(opts.LookupTimeout))
	}
	return s
}

// sourceFor scopes the shared session hub to one bearer token.
func (s *Server) sourceFor(token string) *session.Bound {
	return session.NewBound(gateValidator{s.auth}, s.hub, token)
}

// gateValidator reports an invalid, expired or revoked token as an absent
// session rather than a failure, so only storage errors reach the gate's
// error path.
type gateValidator struct {
	*auth.Service
}

func (v gateValidator) Validate(ctx context.Context, token string) (*model.Session, error) {
	sess, err := v.Service.Validate(ctx, token)
	if errors.Is(err, auth.ErrInvalidToken) {
		return nil, nil
	}
	return sess, err
}

// newGate builds an unmounted gate for token and req.
func (s *Server) newGate(token string, req gate.Requirement) *gate.Gate {
	return gate.New(s.sourceFor(token), s.store, req, s.gateOpts...)
}

// Check resolves one access decision for token. Used by the gRPC access
// service and the CLI.
func (s *Server) Check(ctx context.Context, token string, role model.Role) gate.Decision {
	req := gate.AnyAuthenticated
	if role != "" {
		req = gate.RequireRole(role)
	}
	return gate.Check(ctx, s.sourceFor(token), s.store, req, s.gateOpts...)
}

// redirectFor returns where callers lacking role are sent.
func redirectFor(role model.Role) string {
	if role == model.RoleAdmin {
		return AdminLoginPath
	}
	return CustomerLoginPath
}

// publish emits an event; failures are logged and never fail the request.
func (s *Server) publish(ctx context.Context, topic string, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }
