package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleAfter  = 10 * time.Minute
	limiterPruneAbove = 1024
)

// clientLimiter keeps one token bucket per client address.
// A nil *clientLimiter allows everything.
type clientLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.RWMutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newClientLimiter returns nil when perSecond is not positive.
func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
	}
}

// allow reports whether client may proceed now.
func (l *clientLimiter) allow(client string, now time.Time) bool {
	if l == nil {
		return true
	}
	return l.get(client, now).AllowN(now, 1)
}

func (l *clientLimiter) get(client string, now time.Time) *rate.Limiter {
	l.mu.RLock()
	e, ok := l.limiters[client]
	l.mu.RUnlock()
	if ok {
		l.mu.Lock()
		e.lastSeen = now
		l.mu.Unlock()
		return e.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring the write lock.
	if e, ok = l.limiters[client]; ok {
		e.lastSeen = now
		return e.limiter
	}
	if len(l.limiters) >= limiterPruneAbove {
		for k, old := range l.limiters {
			if now.Sub(old.lastSeen) > limiterIdleAfter {
				delete(l.limiters, k)
			}
		}
	}
	e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.limiters[client] = e
	return e.limiter
}

// clientAddr identifies the caller for rate limiting: the first
// X-Forwarded-For hop when present, otherwise the remote host.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
