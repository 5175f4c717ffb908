package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrBusClosed is returned when publishing to or subscribing on a closed LocalBus.
var ErrBusClosed = errors.New("event bus closed")

// LocalBus is an in-process Publisher and Subscriber, used when NATS is not
// configured. Payloads are JSON-encoded exactly as NATSPublisher does, so
// consumers cannot tell the two apart.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[*localSub]struct{}
	closed bool
}

type localSub struct {
	pattern string
	ch      chan []byte
	mu      sync.Mutex
	done    bool
}

var (
	_ Publisher  = (*LocalBus)(nil)
	_ Subscriber = (*LocalBus)(nil)
)

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[*localSub]struct{})}
}

func (b *LocalBus) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for s := range b.subs {
		if MatchTopic(s.pattern, topic) {
			s.deliver(data)
		}
	}
	return nil
}

// Subscribe returns a channel receiving payloads for topics matching pattern.
func (b *LocalBus) Subscribe(pattern string) (<-chan []byte, func(), error) {
	s := &localSub{pattern: pattern, ch: make(chan []byte, 64)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrBusClosed
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			s.close()
		})
	}
	return s.ch, cancel, nil
}

// Close closes every open subscription channel.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.subs {
		s.close()
	}
	b.subs = nil
	return nil
}

func (s *localSub) deliver(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	select {
	case s.ch <- data:
	default:
		// Drop if the consumer is slow.
	}
}

func (s *localSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.done = true
		close(s.ch)
	}
}

// MatchTopic matches a dot-separated topic against a pattern.
// Supports "*" as a single-segment wildcard and ">" as a multi-segment
// suffix wildcard (NATS-style).
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patParts := strings.Split(pattern, ".")
	topParts := strings.Split(topic, ".")

	for i, pp := range patParts {
		if pp == ">" {
			// ">" matches one or more remaining segments.
			return i < len(topParts)
		}
		if i >= len(topParts) {
			return false
		}
		if pp != "*" && pp != topParts[i] {
			return false
		}
	}

	return len(patParts) == len(topParts)
}
