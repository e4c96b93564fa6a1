// Package scheduler drives the simulated homes: it ticks every session on a
// fixed interval and periodically discards idle sessions. The home engine
// itself never sleeps or starts goroutines.
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// DefaultExpireInterval is how often idle sessions are looked for.
const DefaultExpireInterval = time.Minute

// ErrAlreadyRunning is returned by Run when the scheduler is already running.
var ErrAlreadyRunning = errors.New("scheduler: already running")

// Target is what the scheduler drives. *session.Manager satisfies it.
type Target interface {
	TickAll(ctx context.Context) int
	ExpireIdle(ctx context.Context, now time.Time) []string
}

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config controls the scheduler intervals.
type Config struct {
	// TickInterval between TickAll calls. 0 disables automatic ticking.
	TickInterval time.Duration

	// ExpireInterval between ExpireIdle calls. Defaults to DefaultExpireInterval.
	ExpireInterval time.Duration

	// Clock supplies the time passed to ExpireIdle. Defaults to time.Now.
	Clock func() time.Time
}

// Stats are cumulative scheduler counters.
type Stats struct {
	Rounds         uint64 `json:"rounds"`
	SessionsTicked uint64 `json:"sessions_ticked"`
	Expired        uint64 `json:"expired"`
}

// Scheduler runs the periodic loop.
type Scheduler struct {
	target Target
	cfg    Config
	logger Logger

	running atomic.Bool
	rounds  atomic.Uint64
	ticked  atomic.Uint64
	expired atomic.Uint64
}

// New creates a scheduler for target.
func New(target Target, cfg Config) *Scheduler {
	if cfg.ExpireInterval <= 0 {
		cfg.ExpireInterval = DefaultExpireInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Scheduler{target: target, cfg: cfg, logger: noopLogger{}}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// Run blocks until ctx is cancelled, ticking and expiring on schedule.
// It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	// A nil channel never fires, which disables ticking.
	var tickC <-chan time.Time
	if s.cfg.TickInterval > 0 {
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	expireTicker := time.NewTicker(s.cfg.ExpireInterval)
	defer expireTicker.Stop()

	s.logger.Info("scheduler started",
		"tick_interval", s.cfg.TickInterval.String(),
		"expire_interval", s.cfg.ExpireInterval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", "rounds", s.rounds.Load())
			return nil

		case <-tickC:
			n := s.target.TickAll(ctx)
			s.rounds.Add(1)
			s.ticked.Add(uint64(n)) //nolint:gosec // n is a non-negative count
			s.logger.Debug("tick round", "sessions", n)

		case <-expireTicker.C:
			ids := s.target.ExpireIdle(ctx, s.cfg.Clock())
			if len(ids) > 0 {
				s.expired.Add(uint64(len(ids)))
				s.logger.Info("idle sessions expired", "count", len(ids))
			}
		}
	}
}

// Running reports whether Run is active.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Stats returns the cumulative counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Rounds:         s.rounds.Load(),
		SessionsTicked: s.ticked.Load(),
		Expired:        s.expired.Load(),
	}
}
