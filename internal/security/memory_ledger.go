package security

import (
	"context"
	"sync"
	"time"

	"github.com/clinware/labguard/internal/models"
	"github.com/google/uuid"
)

// MemoryLedger is an in-process AttemptLedger. It serializes Record per
// source IP with a key-scoped lock so the count-then-insert pair is atomic
// for concurrent failures from the same address.
type MemoryLedger struct {
	cfg   LockoutConfig
	clock Clock

	mu      sync.RWMutex
	records []*models.FailedAttempt

	keyMu sync.Mutex
	keys  map[string]*sync.Mutex
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger(cfg LockoutConfig, clock Clock) *MemoryLedger {
	return &MemoryLedger{
		cfg:   cfg,
		clock: clock,
		keys:  make(map[string]*sync.Mutex),
	}
}

func (l *MemoryLedger) keyLock(sourceIP string) *sync.Mutex {
	l.keyMu.Lock()
	defer l.keyMu.Unlock()

	lock, ok := l.keys[sourceIP]
	if !ok {
		lock = &sync.Mutex{}
		l.keys[sourceIP] = lock
	}
	return lock
}

// Record appends a failed attempt, deriving the consecutive count and the
// caused-block flag from the records already inside the window.
func (l *MemoryLedger) Record(ctx context.Context, username, sourceIP, userAgent string, reason models.FailureReason) (*models.FailedAttempt, error) {
	lock := l.keyLock(sourceIP)
	lock.Lock()
	defer lock.Unlock()

	now := l.clock.Now()
	since := now.Add(-l.cfg.BlockWindow)

	count, err := l.CountByIPSince(ctx, sourceIP, since)
	if err != nil {
		return nil, err
	}

	attempt := &models.FailedAttempt{
		ID:               uuid.NewString(),
		Username:         username,
		SourceIP:         sourceIP,
		UserAgent:        userAgent,
		OccurredAt:       now,
		FailureReason:    reason,
		ConsecutiveCount: count + 1,
		CausedBlock:      count+1 >= l.cfg.MaxFailedAttempts,
	}

	l.mu.Lock()
	l.records = append(l.records, attempt)
	l.mu.Unlock()

	return attempt, nil
}

func (l *MemoryLedger) CountByIPSince(_ context.Context, sourceIP string, since time.Time) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, a := range l.records {
		if a.SourceIP == sourceIP && !a.OccurredAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (l *MemoryLedger) CountByUsernameSince(_ context.Context, username string, since time.Time) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, a := range l.records {
		if a.Username == username && !a.OccurredAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (l *MemoryLedger) MostRecentByIP(_ context.Context, sourceIP string, since time.Time) (*models.FailedAttempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var latest *models.FailedAttempt
	for _, a := range l.records {
		if a.SourceIP != sourceIP || a.OccurredAt.Before(since) {
			continue
		}
		if latest == nil || a.OccurredAt.After(latest.OccurredAt) {
			latest = a
		}
	}
	return latest, nil
}

func (l *MemoryLedger) RecentAttempts(_ context.Context, since time.Time) ([]*models.FailedAttempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	attempts := make([]*models.FailedAttempt, 0)
	for _, a := range l.records {
		if !a.OccurredAt.Before(since) {
			attempts = append(attempts, a)
		}
	}
	return attempts, nil
}
