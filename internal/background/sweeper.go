package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/clinware/labguard/internal/metrics"
	"github.com/clinware/labguard/internal/security"
)

// SessionExpirer expires idle sessions.
type SessionExpirer interface {
	ExpireIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AttemptPruner deletes attempt records past the retention horizon.
type AttemptPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically expires idle sessions and prunes attempt records
// past retention. The lockout window itself is computed on read; this is
// maintenance only and nothing in the login path depends on it.
type Sweeper struct {
	sessions    SessionExpirer
	attempts    AttemptPruner
	clock       security.Clock
	logger      *slog.Logger
	metrics     metrics.Recorder
	interval    time.Duration
	idleTimeout time.Duration
	retention   time.Duration
	stopCh      chan struct{}
}

// NewSweeper creates a new Sweeper.
func NewSweeper(
	sessions SessionExpirer,
	attempts AttemptPruner,
	clock security.Clock,
	logger *slog.Logger,
	recorder metrics.Recorder,
	interval, idleTimeout, retention time.Duration,
) *Sweeper {
	return &Sweeper{
		sessions:    sessions,
		attempts:    attempts,
		clock:       clock,
		logger:      logger,
		metrics:     recorder,
		interval:    interval,
		idleTimeout: idleTimeout,
		retention:   retention,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic sweep. Blocks until Stop or ctx cancellation.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopCh:
			s.logger.Info("sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("sweeper context cancelled")
			return
		}
	}
}

func (s *Sweeper) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := s.clock.Now()

	expired, err := s.sessions.ExpireIdleBefore(sweepCtx, now.Add(-s.idleTimeout))
	if err != nil {
		s.logger.Error("failed to expire idle sessions", slog.Any("error", err))
	} else if expired > 0 {
		s.metrics.RecordSessionsExpired(expired)
		s.logger.Info("idle sessions expired", slog.Int64("count", expired))
	}

	pruned, err := s.attempts.DeleteBefore(sweepCtx, now.Add(-s.retention))
	if err != nil {
		s.logger.Error("failed to prune attempt records", slog.Any("error", err))
	} else if pruned > 0 {
		s.logger.Info("attempt records pruned", slog.Int64("count", pruned))
	}
}

// Stop signals the sweeper to stop.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}
