package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const flushTimeout = 30 * time.Second

// Scheduler triggers periodic flushes. One mutex scopes "a flush is in
// progress": a tick arriving while a flush runs is skipped, not queued,
// because the unflushed deltas will be picked up whole on the next cycle.
// Ingestion never touches this lock.
type Scheduler struct {
	interval time.Duration
	engine   *FlushEngine
	mu       sync.Mutex
}

// NewScheduler creates a scheduler flushing the engine every interval.
func NewScheduler(interval time.Duration, engine *FlushEngine) *Scheduler {
	return &Scheduler{
		interval: interval,
		engine:   engine,
	}
}

// Start begins the periodic flush loop and blocks until ctx is cancelled.
// Flush errors are logged and the loop continues to its next interval.
// Cancellation only prevents the next cycle: a flush already in flight runs
// to completion, and a final synchronous flush reconciles the remaining
// deltas before the store connection is released.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting flush scheduler", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			s.TryFlush(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")

			slog.Info("[Scheduler] Running final flush before shutdown...")
			if err := s.Flush(context.Background()); err != nil {
				slog.Error("[Scheduler] Final flush failed", "error", err)
			} else {
				slog.Info("[Scheduler] Final flush complete")
			}
			return nil
		}
	}
}

// TryFlush runs a flush unless one is already in progress, in which case it
// reports false and performs no writes.
func (s *Scheduler) TryFlush(ctx context.Context) bool {
	if !s.mu.TryLock() {
		slog.Debug("[Scheduler] Flush already in progress, skipping tick")
		return false
	}
	defer s.mu.Unlock()

	flushCtx, cancel := s.flushContext(ctx)
	defer cancel()

	if err := s.engine.Flush(flushCtx); err != nil {
		slog.Error("[Scheduler] Flush failed", "error", err)
	}
	return true
}

// Flush runs a synchronous flush, waiting for any in-progress flush to
// finish first. Used by the forced-flush read path and by shutdown.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flushCtx, cancel := s.flushContext(ctx)
	defer cancel()

	return s.engine.Flush(flushCtx)
}

// flushContext detaches a cycle's store I/O from the caller's cancellation.
// Aborting mid-batch would restore deltas that were already committed and
// double-count them on the retry; the deadline bounds the cycle instead.
func (s *Scheduler) flushContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
}
