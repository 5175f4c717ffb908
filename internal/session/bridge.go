package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/lensdesk/internal/events"
)

// Bridge feeds session changes from the event bus into a Hub so that every
// server instance observes sign-outs performed on any other instance.
type Bridge struct {
	hub    *Hub
	logger *slog.Logger
}

func NewBridge(hub *Hub, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{hub: hub, logger: logger}
}

// Run subscribes to all session topics and republishes each change on the
// hub. It blocks until ctx is cancelled or the subscription closes.
func (b *Bridge) Run(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(events.TopicSessionAll)
	if err != nil {
		return fmt.Errorf("session bridge: subscribe: %w", err)
	}
	defer cancel()

	b.logger.Info("session bridge: started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("session bridge: stopping")
			return nil
		case raw, ok := <-ch:
			if !ok {
				b.logger.Info("session bridge: subscription channel closed")
				return nil
			}

			var change events.SessionChanged
			if err := json.Unmarshal(raw, &change); err != nil {
				b.logger.Warn("session bridge: bad event payload", "err", err)
				continue
			}
			if change.SessionID == "" {
				b.logger.Warn("session bridge: change without session id", "kind", change.Kind)
				continue
			}
			b.hub.Publish(change)
		}
	}
}
