package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// fakeSource is a controllable session source.
type fakeSource struct {
	mu          sync.Mutex
	current     *model.Session
	snapshotErr error
	gate        chan struct{} // when non-nil, CurrentSession blocks until closed
	subs        map[int]func(*model.Session)
	next        int
}

func newFakeSource(s *model.Session) *fakeSource {
	return &fakeSource{current: s, subs: make(map[int]func(*model.Session))}
}

func (f *fakeSource) CurrentSession(ctx context.Context) (*model.Session, error) {
	f.mu.Lock()
	block := f.gate
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.snapshotErr
}

func (f *fakeSource) OnSessionChange(fn func(*model.Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// emit sets the current session and notifies every subscriber.
func (f *fakeSource) emit(s *model.Session) {
	f.mu.Lock()
	f.current = s
	fns := make([]func(*model.Session), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (f *fakeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// tableRoles answers lookups from a fixed table.
type tableRoles map[string][]model.Role

func (t tableRoles) HasRole(_ context.Context, identity string, role model.Role) (bool, error) {
	for _, r := range t[identity] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

// lookup is one outstanding call to manualRoles.HasRole.
type lookup struct {
	identity string
	role     model.Role
	ctx      context.Context
	reply    chan lookupReply
}

type lookupReply struct {
	ok  bool
	err error
}

func (l *lookup) answer(ok bool, err error) { l.reply <- lookupReply{ok, err} }

// manualRoles hands every lookup to the test, which answers it explicitly.
// With ignoreCancel set, lookups keep waiting for an answer after their
// context ends, like a store that does not honor cancellation.
type manualRoles struct {
	calls        chan *lookup
	ignoreCancel bool
}

func newManualRoles() *manualRoles {
	return &manualRoles{calls: make(chan *lookup, 8)}
}

func (m *manualRoles) HasRole(ctx context.Context, identity string, role model.Role) (bool, error) {
	l := &lookup{identity: identity, role: role, ctx: ctx, reply: make(chan lookupReply, 1)}
	m.calls <- l
	if m.ignoreCancel {
		r := <-l.reply
		return r.ok, r.err
	}
	select {
	case r := <-l.reply:
		return r.ok, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (m *manualRoles) next(t *testing.T) *lookup {
	t.Helper()
	select {
	case l := <-m.calls:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for role lookup")
	}
	return nil
}

func (m *manualRoles) expectNone(t *testing.T) {
	t.Helper()
	select {
	case l := <-m.calls:
		t.Fatalf("unexpected role lookup for %s/%s", l.identity, l.role)
	case <-time.After(20 * time.Millisecond):
	}
}

func session(user string) *model.Session {
	now := time.Now()
	return &model.Session{ID: "ses-" + user, UserID: user, Email: user + "@example.com", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
}

func mounted(t *testing.T, src SessionSource, roles RoleStore, req Requirement, opts ...Option) *Gate {
	t.Helper()
	g := New(src, roles, req, opts...)
	g.Mount(context.Background())
	t.Cleanup(g.Unmount)
	return g
}

func wait(t *testing.T, g *Gate) Decision {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d, err := g.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v (state %s)", err, d.State)
	}
	return d
}

// waitFor polls until the gate reaches want.
func waitFor(t *testing.T, g *Gate, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for g.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", g.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewGateIsInitializing(t *testing.T) {
	g := New(newFakeSource(nil), tableRoles{}, RequireRole(model.RoleAdmin))
	if g.State() != Initializing {
		t.Fatalf("state = %s, want initializing", g.State())
	}
	if snap := g.Snapshot(); snap.Phase != PhaseLoading || snap.RoleMatch != MatchUnknown {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestNoSessionAlwaysRedirects(t *testing.T) {
	for _, req := range []Requirement{RequireRole(model.RoleAdmin), RequireRole(model.RoleCustomer), AnyAuthenticated} {
		t.Run(req.String(), func(t *testing.T) {
			roles := newManualRoles()
			g := mounted(t, newFakeSource(nil), roles, req)
			d := wait(t, g)
			if d.State != Unauthorized || d.Reason != ReasonNoSession {
				t.Fatalf("decision = %+v, want unauthorized/no_session", d)
			}
			roles.expectNone(t)
		})
	}
}

func TestMatchingRoleAuthorizes(t *testing.T) {
	g := mounted(t, newFakeSource(session("u1")), tableRoles{"u1": {model.RoleAdmin}}, RequireRole(model.RoleAdmin))
	d := wait(t, g)
	if d.State != Authorized || d.UserID != "u1" {
		t.Fatalf("decision = %+v, want authorized for u1", d)
	}
}

func TestNonMatchingRoleRedirects(t *testing.T) {
	g := mounted(t, newFakeSource(session("u1")), tableRoles{"u1": {model.RoleCustomer}}, RequireRole(model.RoleAdmin))
	d := wait(t, g)
	if d.State != Unauthorized || d.Reason != ReasonRoleMismatch {
		t.Fatalf("decision = %+v, want unauthorized/role_mismatch", d)
	}
}

func TestAnyAuthenticatedSkipsLookup(t *testing.T) {
	roles := newManualRoles()
	g := mounted(t, newFakeSource(session("u1")), roles, AnyAuthenticated)
	if d := wait(t, g); d.State != Authorized {
		t.Fatalf("decision = %+v, want authorized", d)
	}
	roles.expectNone(t)
}

func TestLookupErrorFailsClosed(t *testing.T) {
	roles := newManualRoles()
	g := mounted(t, newFakeSource(session("u1")), roles, RequireRole(model.RoleCustomer))
	roles.next(t).answer(true, errors.New("network unreachable"))
	if d := wait(t, g); d.State != Unauthorized || d.Reason != ReasonRoleMismatch {
		t.Fatalf("decision = %+v, want unauthorized", d)
	}
}

func TestLookupTimeoutFailsClosed(t *testing.T) {
	roles := newManualRoles()
	g := mounted(t, newFakeSource(session("u1")), roles, RequireRole(model.RoleAdmin), WithLookupTimeout(20*time.Millisecond))
	l := roles.next(t)
	if d := wait(t, g); d.State != Unauthorized {
		t.Fatalf("decision = %+v, want unauthorized after timeout", d)
	}
	if l.ctx.Err() == nil {
		t.Error("lookup context should be done after the timeout")
	}
}

func TestSnapshotErrorFailsClosed(t *testing.T) {
	src := newFakeSource(session("u1"))
	src.snapshotErr = errors.New("provider down")
	g := mounted(t, src, tableRoles{"u1": {model.RoleAdmin}}, RequireRole(model.RoleAdmin))
	if d := wait(t, g); d.State != Unauthorized || d.Reason != ReasonNoSession {
		t.Fatalf("decision = %+v, want unauthorized/no_session", d)
	}
}

func TestNoFlashOfContent(t *testing.T) {
	roles := newManualRoles()
	g := New(newFakeSource(session("u1")), roles, RequireRole(model.RoleAdmin))
	watch := g.Watch()
	g.Mount(context.Background())
	defer g.Unmount()

	l := roles.next(t)
	if s := g.State(); s != Checking {
		t.Fatalf("state while lookup outstanding = %s, want checking", s)
	}
	if snap := g.Snapshot(); snap.Phase != PhaseLoading || snap.RoleMatch != MatchUnknown {
		t.Fatalf("snapshot while loading = %+v", snap)
	}
	l.answer(true, nil)
	wait(t, g)

	var seen []State
	for d := range watch {
		seen = append(seen, d.State)
		if d.State.Resolved() {
			break
		}
	}
	for i, s := range seen[:len(seen)-1] {
		if s == Authorized || s == Unauthorized {
			t.Fatalf("resolved state %s observed at %d before the lookup answered: %v", s, i, seen)
		}
	}
	if seen[len(seen)-1] != Authorized {
		t.Fatalf("final state = %s, want authorized (%v)", seen[len(seen)-1], seen)
	}
}

func TestLogoutRace(t *testing.T) {
	src := newFakeSource(session("u1"))
	roles := newManualRoles()
	roles.ignoreCancel = true
	g := mounted(t, src, roles, RequireRole(model.RoleAdmin))

	stale := roles.next(t)
	if g.State() != Checking {
		t.Fatalf("state = %s, want checking", g.State())
	}

	src.emit(nil)
	if d := g.Decision(); d.State != Unauthorized || d.Reason != ReasonNoSession {
		t.Fatalf("decision after logout = %+v, want unauthorized immediately", d)
	}
	if stale.ctx.Err() == nil {
		t.Error("logout should cancel the in-flight lookup")
	}

	// The stale lookup now says yes; it must not flip the gate.
	stale.answer(true, nil)
	time.Sleep(20 * time.Millisecond)
	if d := g.Decision(); d.State != Unauthorized {
		t.Fatalf("stale lookup flipped the gate: %+v", d)
	}
}

func TestSessionChangeDuringSnapshotWins(t *testing.T) {
	src := newFakeSource(session("u1"))
	src.gate = make(chan struct{})
	g := mounted(t, src, tableRoles{"u1": {model.RoleAdmin}}, RequireRole(model.RoleAdmin))

	// The snapshot read is blocked; a logout arrives first.
	src.emit(nil)
	if d := wait(t, g); d.State != Unauthorized {
		t.Fatalf("decision = %+v, want unauthorized", d)
	}

	// The snapshot now returns the old session; it is older than the logout.
	src.mu.Lock()
	src.current = session("u1")
	src.mu.Unlock()
	close(src.gate)
	time.Sleep(20 * time.Millisecond)
	if d := g.Decision(); d.State != Unauthorized {
		t.Fatalf("stale snapshot changed the gate: %+v", d)
	}
}

func TestLoginAfterLogoutReauthorizes(t *testing.T) {
	src := newFakeSource(nil)
	g := mounted(t, src, tableRoles{"u1": {model.RoleCustomer}}, RequireRole(model.RoleCustomer))
	if d := wait(t, g); d.State != Unauthorized {
		t.Fatalf("decision = %+v, want unauthorized", d)
	}
	src.emit(session("u1"))
	waitFor(t, g, Authorized)
}

func TestRefreshKeepsDecisionForSameIdentity(t *testing.T) {
	src := newFakeSource(session("u1"))
	roles := newManualRoles()
	g := mounted(t, src, roles, RequireRole(model.RoleAdmin))
	roles.next(t).answer(true, nil)
	wait(t, g)

	src.emit(session("u1"))
	l := roles.next(t)
	if s := g.State(); s != Authorized {
		t.Fatalf("state during refresh recheck = %s, want authorized", s)
	}

	// The role was revoked in the meantime.
	l.answer(false, nil)
	waitFor(t, g, Unauthorized)
}

func TestDifferentIdentityGoesBackToChecking(t *testing.T) {
	src := newFakeSource(session("u1"))
	roles := newManualRoles()
	g := mounted(t, src, roles, RequireRole(model.RoleAdmin))
	roles.next(t).answer(true, nil)
	wait(t, g)

	src.emit(session("u2"))
	l := roles.next(t)
	if l.identity != "u2" {
		t.Fatalf("lookup for %q, want u2", l.identity)
	}
	if s := g.State(); s != Checking {
		t.Fatalf("state = %s, want checking", s)
	}
	l.answer(false, nil)
	waitFor(t, g, Unauthorized)
}

func TestAtMostOneOutstandingLookup(t *testing.T) {
	src := newFakeSource(session("u1"))
	roles := newManualRoles()
	g := mounted(t, src, roles, RequireRole(model.RoleAdmin))

	first := roles.next(t)
	src.emit(session("u2"))
	second := roles.next(t)

	if first.ctx.Err() == nil {
		t.Fatal("superseded lookup should be cancelled")
	}
	if second.ctx.Err() != nil {
		t.Fatal("current lookup should be live")
	}
	second.answer(true, nil)
	waitFor(t, g, Authorized)
	if d := g.Decision(); d.UserID != "u2" {
		t.Fatalf("decision = %+v, want u2", d)
	}
}

func TestUnmountUnsubscribes(t *testing.T) {
	src := newFakeSource(session("u1"))
	roles := newManualRoles()
	roles.ignoreCancel = true
	g := New(src, roles, RequireRole(model.RoleAdmin))
	watch := g.Watch()
	g.Mount(context.Background())

	l := roles.next(t)
	if src.subscribers() != 1 {
		t.Fatalf("subscribers = %d, want 1", src.subscribers())
	}

	g.Unmount()
	if src.subscribers() != 0 {
		t.Fatalf("subscribers after unmount = %d, want 0", src.subscribers())
	}
	before := g.State()

	// Neither a late lookup result nor a later event changes anything.
	l.answer(true, nil)
	src.emit(nil)
	time.Sleep(20 * time.Millisecond)
	if g.State() != before {
		t.Fatalf("state changed after unmount: %s -> %s", before, g.State())
	}

	for range watch {
	}
	if _, err := g.Wait(context.Background()); !errors.Is(err, ErrUnmounted) {
		t.Fatalf("Wait after unmount: got %v, want ErrUnmounted", err)
	}

	// Mounting again is a no-op.
	g.Mount(context.Background())
	if src.subscribers() != 0 {
		t.Fatal("remount after unmount should not subscribe")
	}
	roles.expectNone(t)
}

func TestResolvedImpliesKnownMatch(t *testing.T) {
	src := newFakeSource(session("u1"))
	roles := newManualRoles()
	g := mounted(t, src, roles, RequireRole(model.RoleCustomer))

	check := func() {
		snap := g.Snapshot()
		if snap.Phase == PhaseResolved && snap.RoleMatch == MatchUnknown {
			t.Fatalf("resolved with unknown role match: %+v", snap)
		}
	}
	check()
	roles.next(t).answer(true, nil)
	wait(t, g)
	check()
	src.emit(nil)
	check()
	src.emit(session("u2"))
	check()
	roles.next(t).answer(false, nil)
	waitFor(t, g, Unauthorized)
	check()
}

// Identity U1 holds only the customer role. The admin gate redirects; the
// customer gate renders.
func TestCustomerOnlyIdentityScenario(t *testing.T) {
	src := newFakeSource(session("U1"))
	roles := tableRoles{"U1": {model.RoleCustomer}}

	admin := mounted(t, src, roles, RequireRole(model.RoleAdmin))
	customer := mounted(t, src, roles, RequireRole(model.RoleCustomer))

	if d := wait(t, admin); d.State != Unauthorized {
		t.Errorf("admin gate = %+v, want unauthorized", d)
	}
	if d := wait(t, customer); d.State != Authorized {
		t.Errorf("customer gate = %+v, want authorized", d)
	}
}

func TestCheck(t *testing.T) {
	src := newFakeSource(session("u1"))
	roles := tableRoles{"u1": {model.RoleAdmin}}

	if d := Check(context.Background(), src, roles, RequireRole(model.RoleAdmin)); d.State != Authorized {
		t.Errorf("Check admin = %+v", d)
	}
	if d := Check(context.Background(), src, roles, RequireRole(model.RoleCustomer)); d.State != Unauthorized {
		t.Errorf("Check customer = %+v", d)
	}
	if src.subscribers() != 0 {
		t.Errorf("Check left %d subscribers", src.subscribers())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocking := newManualRoles()
	if d := Check(ctx, src, blocking, RequireRole(model.RoleAdmin)); d.State != Unauthorized {
		t.Errorf("Check with cancelled context = %+v, want unauthorized", d)
	}
}

func TestStateStrings(t *testing.T) {
	for s, want := range map[State]string{
		Initializing: "initializing", Checking: "checking", Authorized: "authorized", Unauthorized: "unauthorized",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
	if AnyAuthenticated.String() != "any-authenticated" || RequireRole(model.RoleAdmin).String() != "admin" {
		t.Error("unexpected requirement strings")
	}
}
