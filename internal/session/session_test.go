package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/events"
	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// fakeValidator treats "tok-<id>" as a token for session "<id>".
type fakeValidator struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	calls    int
}

func (f *fakeValidator) SessionID(token string) (string, error) {
	if len(token) < 5 || token[:4] != "tok-" {
		return "", errors.New("malformed token")
	}
	return token[4:], nil
}

func (f *fakeValidator) Validate(_ context.Context, token string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	id, err := f.SessionID(token)
	if err != nil {
		return nil, err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("session revoked")
	}
	return s, nil
}

func newSession(id, user string, ttl time.Duration) *model.Session {
	now := time.Now()
	return &model.Session{ID: id, UserID: user, Email: user + "@example.com", IssuedAt: now, ExpiresAt: now.Add(ttl)}
}

func TestHub_SubscribePublishUnsubscribe(t *testing.T) {
	hub := NewHub()
	if hub.Last() != nil {
		t.Fatal("new hub should have no last change")
	}

	var got []string
	unsub := hub.Subscribe(func(c events.SessionChanged) { got = append(got, c.SessionID) })
	hub.Publish(events.SessionChanged{Kind: model.SessionSignedIn, SessionID: "a"})
	unsub()
	unsub()
	hub.Publish(events.SessionChanged{Kind: model.SessionSignedIn, SessionID: "b"})

	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("got %v, want [a]", got)
	}
	if hub.Len() != 0 {
		t.Errorf("Len = %d, want 0", hub.Len())
	}
	if last := hub.Last(); last == nil || last.SessionID != "b" {
		t.Errorf("Last = %+v, want b", last)
	}
}

func TestHub_SubscriberPanicDoesNotStopFanOut(t *testing.T) {
	hub := NewHub()
	hub.Subscribe(func(events.SessionChanged) { panic("boom") })
	called := false
	hub.Subscribe(func(events.SessionChanged) { called = true })

	hub.Publish(events.SessionChanged{Kind: model.SessionSignedOut, SessionID: "a"})
	if !called {
		t.Fatal("second subscriber was not called")
	}
}

func TestHub_SelfUnsubscribeDuringPublish(t *testing.T) {
	hub := NewHub()
	var unsub func()
	n := 0
	unsub = hub.Subscribe(func(events.SessionChanged) {
		n++
		unsub()
	})
	hub.Publish(events.SessionChanged{SessionID: "a"})
	hub.Publish(events.SessionChanged{SessionID: "a"})
	if n != 1 {
		t.Fatalf("called %d times, want 1", n)
	}
}

func TestBound_CurrentSession(t *testing.T) {
	s := newSession("s1", "u1", time.Hour)
	v := &fakeValidator{sessions: map[string]*model.Session{"s1": s}}
	hub := NewHub()

	got, err := NewBound(v, hub, "tok-s1").CurrentSession(context.Background())
	if err != nil || got == nil || got.ID != "s1" {
		t.Fatalf("CurrentSession = %+v, %v", got, err)
	}

	for _, token := range []string{"", "garbage"} {
		b := NewBound(v, hub, token)
		got, err := b.CurrentSession(context.Background())
		if err != nil || got != nil {
			t.Errorf("token %q: CurrentSession = %+v, %v; want nil, nil", token, got, err)
		}
	}
	if v.calls != 1 {
		t.Errorf("validator called %d times, want 1", v.calls)
	}
}

func TestBound_OnSessionChangeFiltersBySession(t *testing.T) {
	v := &fakeValidator{}
	hub := NewHub()
	b := NewBound(v, hub, "tok-s1")

	var got []*model.Session
	calls := 0
	unsub := b.OnSessionChange(func(s *model.Session) {
		calls++
		got = append(got, s)
	})
	defer unsub()

	refreshed := newSession("s1", "u1", 2*time.Hour)
	hub.Publish(events.SessionChanged{Kind: model.SessionSignedIn, SessionID: "s2", Session: newSession("s2", "u2", time.Hour)})
	hub.Publish(events.SessionChanged{Kind: model.SessionRefreshed, SessionID: "s1", Session: refreshed})
	hub.Publish(events.SessionChanged{Kind: model.SessionSignedOut, SessionID: "s1"})

	if calls != 2 {
		t.Fatalf("callback ran %d times, want 2", calls)
	}
	if got[0] != refreshed {
		t.Errorf("first change = %+v, want refreshed session", got[0])
	}
	if got[1] != nil {
		t.Errorf("sign-out should deliver nil, got %+v", got[1])
	}
}

func TestBound_NoTokenNeverSubscribes(t *testing.T) {
	hub := NewHub()
	unsub := NewBound(&fakeValidator{}, hub, "").OnSessionChange(func(*model.Session) {
		t.Error("callback should never run")
	})
	defer unsub()
	if hub.Len() != 0 {
		t.Fatalf("hub has %d subscribers, want 0", hub.Len())
	}
	hub.Publish(events.SessionChanged{Kind: model.SessionSignedOut, SessionID: ""})
}

func TestBridge_RepublishesBusChanges(t *testing.T) {
	bus := events.NewLocalBus()
	defer bus.Close()
	hub := NewHub()

	received := make(chan events.SessionChanged, 1)
	hub.Subscribe(func(c events.SessionChanged) {
		select {
		case received <- c:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	bridge := NewBridge(hub, nil)
	go func() { done <- bridge.Run(ctx, bus) }()

	// Publish until the bridge's subscription is in place.
	deadline := time.After(2 * time.Second)
	for {
		if err := bus.Publish(ctx, events.TopicSessionSignedOut, events.SessionChanged{Kind: model.SessionSignedOut, SessionID: "s1"}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		select {
		case c := <-received:
			if c.SessionID != "s1" || c.Kind != model.SessionSignedOut {
				t.Fatalf("got %+v", c)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Run: %v", err)
			}
			return
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for bridged change")
		}
	}
}

func TestBridge_SkipsChangesWithoutSessionID(t *testing.T) {
	bus := events.NewLocalBus()
	hub := NewHub()

	var mu sync.Mutex
	var seen []string
	valid := make(chan struct{}, 1)
	hub.Subscribe(func(c events.SessionChanged) {
		mu.Lock()
		seen = append(seen, c.SessionID)
		mu.Unlock()
		select {
		case valid <- struct{}{}:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- NewBridge(hub, nil).Run(context.Background(), bus) }()

	ctx := context.Background()
	deadline := time.After(2 * time.Second)
publish:
	for {
		_ = bus.Publish(ctx, events.TopicSessionExpired, events.SessionChanged{Kind: model.SessionExpired})
		_ = bus.Publish(ctx, events.TopicSessionExpired, events.SessionChanged{Kind: model.SessionExpired, SessionID: "s1"})
		select {
		case <-valid:
			break publish
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for bridged change")
		}
	}

	// Closing the bus closes the subscription and ends Run.
	_ = bus.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop after bus close")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, id := range seen {
		if id == "" {
			t.Fatal("change without session id was forwarded")
		}
	}
}

func TestTracker_ObserveAndRoster(t *testing.T) {
	tr := NewTracker()
	s1 := newSession("s1", "u1", time.Hour)
	s2 := newSession("s2", "u2", time.Hour)

	tr.Observe(events.SessionChanged{Kind: model.SessionSignedIn, SessionID: "s1", Session: s1})
	tr.Observe(events.SessionChanged{Kind: model.SessionSignedIn, SessionID: "s2", Session: s2})
	tr.Observe(events.SessionChanged{Kind: model.SessionRefreshed, SessionID: "s1", Session: s1})

	roster := tr.Roster()
	if len(roster) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(roster))
	}
	if roster[0].SessionID != "s1" || roster[0].Refreshes != 1 {
		t.Errorf("most recent entry = %+v, want s1 with 1 refresh", roster[0])
	}

	tr.Observe(events.SessionChanged{Kind: model.SessionSignedOut, SessionID: "s1"})
	roster = tr.Roster()
	if len(roster) != 1 || roster[0].SessionID != "s2" {
		t.Fatalf("after sign-out roster = %+v", roster)
	}
}

func TestTracker_SweepReportsExpiredOnce(t *testing.T) {
	tr := NewTracker()
	expired := newSession("old", "u1", -time.Minute)
	live := newSession("new", "u2", time.Hour)
	tr.Observe(events.SessionChanged{Kind: model.SessionSignedIn, SessionID: "old", Session: expired})
	tr.Observe(events.SessionChanged{Kind: model.SessionSignedIn, SessionID: "new", Session: live})

	var reported []string
	cfg := &ReaperConfig{OnExpired: func(s *model.Session) { reported = append(reported, s.ID) }}
	tr.sweep(cfg)
	tr.sweep(cfg)

	if len(reported) != 1 || reported[0] != "old" {
		t.Fatalf("reported %v, want [old]", reported)
	}
	roster := tr.Roster()
	if len(roster) != 1 || roster[0].SessionID != "new" {
		t.Fatalf("roster = %+v, want only new", roster)
	}
}

func TestTracker_ReaperStartStop(t *testing.T) {
	tr := NewTracker()
	tr.Observe(events.SessionChanged{Kind: model.SessionSignedIn, SessionID: "s", Session: newSession("s", "u", -time.Second)})

	got := make(chan string, 1)
	tr.StartReaper(&ReaperConfig{
		SweepInterval: 5 * time.Millisecond,
		OnExpired:     func(s *model.Session) { got <- s.ID },
	})
	defer tr.Stop()

	select {
	case id := <-got:
		if id != "s" {
			t.Errorf("expired %q, want s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not report expired session")
	}
}
