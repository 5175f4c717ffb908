// Package sync periodically exports the shop's records as JSONL to backup
// destinations.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/lensdesk/internal/store"
)

// Destination is the interface for a sync target (S3, git, etc.).
type Destination interface {
	// Name identifies the destination in logs.
	Name() string
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Scheduler runs periodic syncs to one or more destinations.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger
	now          func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations at the specified interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
		now:          time.Now,
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	// Run once immediately at startup.
	_ = s.SyncNow(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.SyncNow(ctx)
		}
	}
}

// SyncNow exports once and writes to every destination concurrently. A
// failing destination does not stop the others; the first error is
// returned after all have finished.
func (s *Scheduler) SyncNow(ctx context.Context) error {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf, s.now()); err != nil {
		s.logger.Error("sync export failed", "err", err)
		return fmt.Errorf("export: %w", err)
	}
	data := buf.Bytes()

	var g errgroup.Group
	for _, dest := range s.destinations {
		g.Go(func() error {
			if err := dest.Write(ctx, data); err != nil {
				s.logger.Error("sync destination write failed", "destination", dest.Name(), "err", err)
				return fmt.Errorf("%s: %w", dest.Name(), err)
			}
			return nil
		})
	}
	err := g.Wait()

	s.logger.Info("sync completed", "destinations", len(s.destinations), "bytes", len(data), "failed", err != nil)
	return err
}
