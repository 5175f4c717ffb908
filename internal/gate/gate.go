// Package gate implements the access gate that decides, for one protected
// view, whether to show a loading placeholder, the protected content, or a
// redirect.
//
// A Gate is mounted for as long as its view is live. While mounted it
// re-runs its decision on every session change. Every run takes a new
// token and cancels the previous role lookup; a lookup result is applied
// only if its token is still current, so a lookup that resolves after a
// logout can never flip the gate back to Authorized. Every failure
// resolves to Unauthorized.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// DefaultLookupTimeout bounds a single role lookup.
const DefaultLookupTimeout = 5 * time.Second

// ErrUnmounted is returned by Wait when the gate is unmounted before it
// reaches a decision.
var ErrUnmounted = errors.New("gate unmounted")

// Option configures a Gate.
type Option func(*Gate)

// WithLookupTimeout bounds each role lookup. Zero or negative disables the bound.
func WithLookupTimeout(d time.Duration) Option {
	return func(g *Gate) { g.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// Gate guards one protected view.
type Gate struct {
	source  SessionSource
	roles   RoleStore
	req     Requirement
	timeout time.Duration
	logger  *slog.Logger

	mu          sync.Mutex
	state       State
	reason      Reason
	session     *model.Session
	match       Match
	token       uint64
	mounted     bool
	closed      bool
	ctx         context.Context
	cancelAll   context.CancelFunc
	cancelCheck context.CancelFunc
	unsubscribe func()
	changed     chan struct{}
	watchers    []chan Decision
}

// New returns an unmounted gate in state Initializing.
func New(source SessionSource, roles RoleStore, req Requirement, opts ...Option) *Gate {
	g := &Gate{
		source:  source,
		roles:   roles,
		req:     req,
		timeout: DefaultLookupTimeout,
		logger:  slog.Default(),
		state:   Initializing,
		changed: make(chan struct{}),
	}
	for _, o := range opts {
		o(g)
	}
	g.logger = g.logger.With("requirement", req.String())
	return g
}

// Mount subscribes to session changes and starts the first decision from
// the current session snapshot. It returns immediately. Lookups run under
// ctx; cancelling ctx has the same effect on lookups as Unmount but keeps
// the subscription. Mounting twice, or after Unmount, does nothing.
func (g *Gate) Mount(ctx context.Context) {
	g.mu.Lock()
	if g.mounted || g.closed {
		g.mu.Unlock()
		return
	}
	g.mounted = true
	g.ctx, g.cancelAll = context.WithCancel(ctx)
	g.setState(Checking, ReasonNone)
	g.token++
	snapshotToken := g.token
	g.mu.Unlock()

	// Subscribe before reading the snapshot so no change can slip between
	// the two; whichever is issued last wins.
	unsub := g.source.OnSessionChange(g.onSessionChange)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		unsub()
		return
	}
	g.unsubscribe = unsub
	fetchCtx := g.ctx
	g.mu.Unlock()

	go g.readSnapshot(fetchCtx, snapshotToken)
}

func (g *Gate) readSnapshot(ctx context.Context, token uint64) {
	sess, err := g.source.CurrentSession(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || token != g.token {
		return
	}
	if err != nil {
		g.logger.Warn("gate: session snapshot failed", "err", err)
		sess = nil
	}
	g.decide(token, sess)
}

func (g *Gate) onSessionChange(sess *model.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.token++
	g.decide(g.token, sess)
}

// decide runs the decision procedure for sess. Caller holds g.mu and has
// already made token current.
func (g *Gate) decide(token uint64, sess *model.Session) {
	if g.cancelCheck != nil {
		g.cancelCheck()
		g.cancelCheck = nil
	}

	prev := g.session
	g.session = sess

	if sess == nil {
		g.match = MatchFalse
		g.logger.Info("gate: no session")
		g.setState(Unauthorized, ReasonNoSession)
		return
	}

	role, specific := g.req.Role()
	if !specific {
		g.match = MatchTrue
		g.setState(Authorized, ReasonNone)
		return
	}

	// A refreshed session for the same identity keeps its decision visible
	// until the new lookup resolves. Anything else goes back to loading.
	sameIdentity := prev != nil && prev.UserID == sess.UserID && g.state.Resolved()
	if !sameIdentity {
		g.match = MatchUnknown
		g.setState(Checking, ReasonNone)
	}

	lookupCtx, cancel := g.lookupContext()
	g.cancelCheck = cancel
	go g.lookup(lookupCtx, cancel, token, sess.UserID, role)
}

func (g *Gate) lookupContext() (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(g.ctx, g.timeout)
	}
	return context.WithCancel(g.ctx)
}

func (g *Gate) lookup(ctx context.Context, cancel context.CancelFunc, token uint64, identity string, role model.Role) {
	defer cancel()
	ok, err := g.roles.HasRole(ctx, identity, role)
	if err == nil && ctx.Err() != nil {
		// Treat a result that arrives after the deadline as a timeout.
		err = ctx.Err()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || token != g.token {
		return
	}
	g.cancelCheck = nil

	switch {
	case err != nil:
		g.logger.Warn("gate: role lookup failed", "user", identity, "err", err)
		g.match = MatchFalse
		g.setState(Unauthorized, ReasonRoleMismatch)
	case !ok:
		g.logger.Info("gate: role mismatch", "user", identity)
		g.match = MatchFalse
		g.setState(Unauthorized, ReasonRoleMismatch)
	default:
		g.match = MatchTrue
		g.setState(Authorized, ReasonNone)
	}
}

// setState records a transition and wakes observers. Caller holds g.mu.
func (g *Gate) setState(s State, r Reason) {
	if g.state == s && g.reason == r {
		return
	}
	g.state = s
	g.reason = r
	close(g.changed)
	g.changed = make(chan struct{})

	d := g.decisionLocked()
	for _, w := range g.watchers {
		// Keep only the latest decision if the watcher is behind.
		select {
		case w <- d:
		default:
			select {
			case <-w:
			default:
			}
			w <- d
		}
	}
}

// Unmount unsubscribes from session changes and cancels any in-flight
// lookup. Afterwards no event or late lookup result changes the gate.
func (g *Gate) Unmount() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.token++
	if g.cancelCheck != nil {
		g.cancelCheck()
		g.cancelCheck = nil
	}
	if g.cancelAll != nil {
		g.cancelAll()
	}
	unsub := g.unsubscribe
	g.unsubscribe = nil
	for _, w := range g.watchers {
		close(w)
	}
	g.watchers = nil
	close(g.changed)
	g.changed = make(chan struct{})
	g.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Decision returns the current decision.
func (g *Gate) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decisionLocked()
}

func (g *Gate) decisionLocked() Decision {
	d := Decision{State: g.state, Reason: g.reason}
	if g.session != nil {
		d.UserID = g.session.UserID
	}
	return d
}

// Snapshot returns the gate's transient state.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := Snapshot{Session: g.session, RoleMatch: g.match, Phase: PhaseLoading}
	if g.state.Resolved() {
		snap.Phase = PhaseResolved
	}
	return snap
}

// Wait blocks until the gate is resolved and returns the decision. It
// returns an error only if ctx ends or the gate is unmounted first.
func (g *Gate) Wait(ctx context.Context) (Decision, error) {
	for {
		g.mu.Lock()
		if g.state.Resolved() {
			d := g.decisionLocked()
			g.mu.Unlock()
			return d, nil
		}
		if g.closed {
			d := g.decisionLocked()
			g.mu.Unlock()
			return d, ErrUnmounted
		}
		ch := g.changed
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return g.Decision(), ctx.Err()
		case <-ch:
		}
	}
}

// Watch returns a channel that receives the current decision and then
// every later transition. A slow reader sees only the latest decision. The
// channel is closed on Unmount.
func (g *Gate) Watch() <-chan Decision {
	ch := make(chan Decision, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		close(ch)
		return ch
	}
	ch <- g.decisionLocked()
	g.watchers = append(g.watchers, ch)
	return ch
}

// Check mounts a gate, waits for its first decision and unmounts it. Any
// error, including ctx ending first, yields Unauthorized.
func Check(ctx context.Context, source SessionSource, roles RoleStore, req Requirement, opts ...Option) Decision {
	g := New(source, roles, req, opts...)
	g.Mount(ctx)
	defer g.Unmount()

	d, err := g.Wait(ctx)
	if err != nil {
		reason := ReasonRoleMismatch
		if d.UserID == "" {
			reason = ReasonNoSession
		}
		return Decision{State: Unauthorized, Reason: reason, UserID: d.UserID}
	}
	return d
}
