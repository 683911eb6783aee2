package security

import (
	"context"
	"log/slog"
	"time"
)

// BlockPolicy derives IP block state from the attempt ledger. Nothing is
// cached: every answer is computed against the sliding window at call time.
type BlockPolicy struct {
	ledger AttemptLedger
	cfg    LockoutConfig
	clock  Clock
	logger *slog.Logger
}

// NewBlockPolicy creates a BlockPolicy over the given ledger.
func NewBlockPolicy(ledger AttemptLedger, cfg LockoutConfig, clock Clock, logger *slog.Logger) *BlockPolicy {
	return &BlockPolicy{
		ledger: ledger,
		cfg:    cfg,
		clock:  clock,
		logger: logger,
	}
}

// Config returns the lockout parameters the policy runs with.
func (p *BlockPolicy) Config() LockoutConfig { return p.cfg }

// IsBlocked reports whether the IP has reached the failure threshold
// within the current window.
func (p *BlockPolicy) IsBlocked(ctx context.Context, sourceIP string) (bool, error) {
	since := p.clock.Now().Add(-p.cfg.BlockWindow)

	count, err := p.ledger.CountByIPSince(ctx, sourceIP, since)
	if err != nil {
		return false, err
	}

	blocked := count >= p.cfg.MaxFailedAttempts
	if blocked {
		p.logger.Warn("ip blocked by excessive failed attempts",
			slog.String("source_ip", sourceIP),
			slog.Int("failed_attempts", count),
			slog.Duration("window", p.cfg.BlockWindow))
	}
	return blocked, nil
}

// RemainingAttempts returns how many more failures the IP can accumulate
// before it blocks. Never negative.
func (p *BlockPolicy) RemainingAttempts(ctx context.Context, sourceIP string) (int, error) {
	since := p.clock.Now().Add(-p.cfg.BlockWindow)

	count, err := p.ledger.CountByIPSince(ctx, sourceIP, since)
	if err != nil {
		return 0, err
	}

	remaining := p.cfg.MaxFailedAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// UnblockTime returns when the block lifts, anchored to the most recent
// failure in the window. Each new failure re-anchors the window, so an
// attacker that keeps retrying stays blocked until attempts cease for a
// full window. Returns nil when the IP is not blocked.
func (p *BlockPolicy) UnblockTime(ctx context.Context, sourceIP string) (*time.Time, error) {
	blocked, err := p.IsBlocked(ctx, sourceIP)
	if err != nil {
		return nil, err
	}
	if !blocked {
		return nil, nil
	}

	since := p.clock.Now().Add(-p.cfg.BlockWindow)
	latest, err := p.ledger.MostRecentByIP(ctx, sourceIP, since)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	unblock := latest.OccurredAt.Add(p.cfg.BlockWindow)
	return &unblock, nil
}

// HasExcessiveFailures reports whether a username has reached the failure
// threshold within the window, independent of source IP. Operator-facing;
// the login gate itself keys on IP.
func (p *BlockPolicy) HasExcessiveFailures(ctx context.Context, username string) (bool, error) {
	since := p.clock.Now().Add(-p.cfg.BlockWindow)

	count, err := p.ledger.CountByUsernameSince(ctx, username, since)
	if err != nil {
		return false, err
	}
	return count >= p.cfg.MaxFailedAttempts, nil
}
