package sheetsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrPassRunning is returned by Trigger when a sync pass is already in
// flight; manual and scheduled passes share one single-flight guard.
var ErrPassRunning = errors.New("a sync pass is already running")

// Scheduler runs bidirectional sync passes on a fixed interval and serves
// manual triggers, with at most one pass in flight at a time. A tick that
// fires while a pass runs is skipped, not queued.
type Scheduler struct {
	reconciler *Reconciler
	interval   time.Duration
	logger     *slog.Logger

	mu sync.Mutex
}

// NewScheduler creates a scheduler over the reconciler.
func NewScheduler(reconciler *Reconciler, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		reconciler: reconciler,
		interval:   interval,
		logger:     logger,
	}
}

// Run drives scheduled passes until the context is cancelled. It is meant
// to be started as a goroutine at process startup.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("sync scheduler started", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Trigger(ctx, DirectionBidirectional); err != nil {
				if errors.Is(err, ErrPassRunning) {
					s.logger.Warn("skipping scheduled sync, previous pass still running")
					continue
				}
				s.logger.Error("scheduled sync failed", "error", err)
			}
		}
	}
}

// Trigger runs one pass in the given direction, returning ErrPassRunning if
// another pass holds the guard.
func (s *Scheduler) Trigger(ctx context.Context, direction Direction) (*SyncLog, error) {
	if !s.mu.TryLock() {
		return nil, ErrPassRunning
	}
	defer s.mu.Unlock()
	return s.reconciler.Run(ctx, direction)
}
