package session

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/events"
	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// Entry is one live session in the roster.
type Entry struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastSeen   time.Time `json:"last_seen"`
	Refreshes  int       `json:"refreshes"`
	RemainSecs float64   `json:"remain_secs"`
}

// ReaperConfig configures the background expiry reaper.
type ReaperConfig struct {
	// SweepInterval is how often the reaper scans for expired sessions.
	// Default: 30 seconds.
	SweepInterval time.Duration

	// OnExpired is called for each session newly found past its expiry.
	// Called outside the lock.
	OnExpired func(s *model.Session)
}

// Tracker maintains an in-memory roster of the sessions this process has
// seen start and not yet seen end.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*trackedSession
	now      func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type trackedSession struct {
	session   model.Session
	lastSeen  time.Time
	refreshes int
	expired   bool
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*trackedSession),
		now:      time.Now,
	}
}

// Observe applies one session change to the roster. Pass it to Hub.Subscribe.
func (t *Tracker) Observe(change events.SessionChanged) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if change.Kind.Ends() {
		delete(t.sessions, change.SessionID)
		return
	}
	if change.Session == nil {
		return
	}

	ts, ok := t.sessions[change.SessionID]
	if !ok {
		ts = &trackedSession{}
		t.sessions[change.SessionID] = ts
	}
	if change.Kind == model.SessionRefreshed && ok {
		ts.refreshes++
	}
	ts.session = *change.Session
	ts.lastSeen = now
	ts.expired = false
}

// Roster returns a snapshot of live sessions, most recently active first.
func (t *Tracker) Roster() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.sessions))
	for id, ts := range t.sessions {
		if ts.expired {
			continue
		}
		entries = append(entries, Entry{
			SessionID:  id,
			UserID:     ts.session.UserID,
			Email:      ts.session.Email,
			IssuedAt:   ts.session.IssuedAt,
			ExpiresAt:  ts.session.ExpiresAt,
			LastSeen:   ts.lastSeen,
			Refreshes:  ts.refreshes,
			RemainSecs: ts.session.ExpiresAt.Sub(now).Seconds(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// StartReaper launches a background goroutine that periodically finds
// expired sessions. Call Stop() to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 30 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("session: reaper started", "sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

// sweep marks sessions past their expiry and reports each one once. The
// entry is removed when the resulting expired change comes back through
// Observe.
func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()
	var newlyExpired []model.Session

	t.mu.Lock()
	for _, ts := range t.sessions {
		if ts.expired {
			continue
		}
		if !ts.session.ExpiresAt.After(now) {
			ts.expired = true
			newlyExpired = append(newlyExpired, ts.session)
		}
	}
	t.mu.Unlock()

	for i := range newlyExpired {
		s := &newlyExpired[i]
		slog.Info("session: reaper found expired session", "session", s.ID, "user", s.UserID)
		if cfg.OnExpired != nil {
			cfg.OnExpired(s)
		}
	}
}
