package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ctfrelay/ctfrelay/internal/domain/port/driven"
)

// Sweeper is the recurring retention job that purges credential records for
// finished, aged-out events. It shares the credential store with the
// dispatcher but has no other dependency on it. Sweeps are idempotent:
// running twice in immediate succession deletes nothing the second time.
type Sweeper struct {
	creds     driven.CredentialStore
	retention time.Duration
	interval  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

// NewSweeper creates a Sweeper that deletes records whose event finished
// more than retentionDays ago, running every interval.
func NewSweeper(creds driven.CredentialStore, retentionDays int, interval time.Duration) *Sweeper {
	return &Sweeper{
		creds:     creds,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		now:       time.Now,
	}
}

// Start schedules the sweep and runs one immediately. Calling Start on an
// already-running sweeper is a no-op, so process-ready hooks can call it
// unconditionally.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		slog.Debug("retention sweep already running")
		return
	}

	s.cron = cron.New()
	// AddFunc only fails on a malformed spec; @every with a valid duration
	// cannot produce one.
	_, _ = s.cron.AddFunc("@every "+s.interval.String(), s.runOnce)
	s.cron.Start()
	s.started = true

	slog.Info("retention sweep started", "interval", s.interval, "retention", s.retention)

	go s.runOnce()
}

// Stop halts the schedule. In-flight sweeps finish on their own.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.cron.Stop()
	s.started = false
	slog.Info("retention sweep stopped")
}

// Running reports whether the schedule is active.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Sweep deletes every record whose event finished before now-retention and
// returns the removed count.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention).Unix()
	return s.creds.DeleteFinishedBefore(ctx, cutoff)
}

// runOnce is a single scheduled iteration. Failures are logged and never
// surfaced to a chat channel; a failed iteration must not prevent the next.
func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := s.Sweep(ctx)
	if err != nil {
		slog.Error("retention sweep failed", "error", err)
		return
	}

	slog.Info("retention sweep complete", "removed", count)
}
