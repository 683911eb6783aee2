package security

import (
	"context"
	"time"

	"github.com/clinware/labguard/internal/models"
)

// AttemptLedger is an append-only store of failed login attempts. The
// blocked/consecutive state is always derived from the records inside the
// current window, never cached separately, so the ledger and the block
// decision cannot diverge.
//
// Record must be safe under concurrent calls for the same IP: the count
// and the insert have to be atomic with respect to other writers of that
// key, otherwise simultaneous failures under-count and admit more than
// the configured maximum before the block becomes visible.
type AttemptLedger interface {
	Record(ctx context.Context, username, sourceIP, userAgent string, reason models.FailureReason) (*models.FailedAttempt, error)
	CountByIPSince(ctx context.Context, sourceIP string, since time.Time) (int, error)
	CountByUsernameSince(ctx context.Context, username string, since time.Time) (int, error)
	MostRecentByIP(ctx context.Context, sourceIP string, since time.Time) (*models.FailedAttempt, error)
	RecentAttempts(ctx context.Context, since time.Time) ([]*models.FailedAttempt, error)
}

// LockoutConfig holds the brute-force lockout parameters.
type LockoutConfig struct {
	MaxFailedAttempts int
	BlockWindow       time.Duration
}

// DefaultLockoutConfig returns the production defaults: 5 attempts per
// sliding 15-minute window.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxFailedAttempts: 5,
		BlockWindow:       15 * time.Minute,
	}
}
