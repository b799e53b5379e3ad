package sandbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/Ojasdixit/boltdiy/internal/ops"
)

// DefaultSweepInterval is used when the configured interval is not positive.
const DefaultSweepInterval = 5 * time.Minute

// SweepStore runs the system-wide expiry sweep.
type SweepStore interface {
	SweepAllExpiredSandboxes(ctx context.Context) (*ops.SweepOutput, error)
}

// Sweeper periodically marks sandboxes past their expiry as expired.
type Sweeper struct {
	store    SweepStore
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. A nil logger uses slog.Default().
func NewSweeper(store SweepStore, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Start runs the sweep loop in a new goroutine until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go s.Run(ctx)
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.InfoContext(ctx, "sandbox sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(context.WithoutCancel(ctx), "sandbox sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep. Failures are logged and otherwise ignored;
// the next tick tries again.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	out, err := s.store.SweepAllExpiredSandboxes(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "sandbox sweep failed", "error", err)
		}
		return 0
	}
	if out.Expired > 0 {
		s.logger.InfoContext(ctx, out.Message, "expired", out.Expired)
	}
	return out.Expired
}
