package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/clinware/labguard/internal/database"
	"github.com/clinware/labguard/internal/models"
	"github.com/clinware/labguard/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AttemptRepository is the postgres-backed attempt ledger. Record runs
// inside a transaction holding a per-IP advisory lock, so the window count
// and the insert are atomic with respect to concurrent failures from the
// same address.
type AttemptRepository struct {
	db    *database.DB
	cfg   security.LockoutConfig
	clock security.Clock
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(db *database.DB, cfg security.LockoutConfig, clock security.Clock) *AttemptRepository {
	return &AttemptRepository{db: db, cfg: cfg, clock: clock}
}

// Record persists a failed attempt with its derived consecutive count and
// caused-block flag.
func (r *AttemptRepository) Record(ctx context.Context, username, sourceIP, userAgent string, reason models.FailureReason) (*models.FailedAttempt, error) {
	now := r.clock.Now()
	attempt := &models.FailedAttempt{
		ID:            uuid.NewString(),
		Username:      username,
		SourceIP:      sourceIP,
		UserAgent:     userAgent,
		OccurredAt:    now,
		FailureReason: reason,
	}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		// Serialize writers for this IP; the lock is released on commit.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sourceIP); err != nil {
			return fmt.Errorf("failed to acquire attempt lock: %w", err)
		}

		var count int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM failed_attempts
			WHERE source_ip = $1 AND occurred_at >= $2
		`, sourceIP, now.Add(-r.cfg.BlockWindow)).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}

		attempt.ConsecutiveCount = count + 1
		attempt.CausedBlock = attempt.ConsecutiveCount >= r.cfg.MaxFailedAttempts

		_, err = tx.Exec(ctx, `
			INSERT INTO failed_attempts
				(id, username, source_ip, user_agent, occurred_at, failure_reason, consecutive_count, caused_block)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			attempt.ID,
			attempt.Username,
			attempt.SourceIP,
			attempt.UserAgent,
			attempt.OccurredAt,
			attempt.FailureReason,
			attempt.ConsecutiveCount,
			attempt.CausedBlock,
		)
		if err != nil {
			return fmt.Errorf("failed to insert attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return attempt, nil
}

// CountByIPSince returns the number of attempts from an IP at or after since.
func (r *AttemptRepository) CountByIPSince(ctx context.Context, sourceIP string, since time.Time) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM failed_attempts
		WHERE source_ip = $1 AND occurred_at >= $2
	`, sourceIP, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// CountByUsernameSince returns the number of attempts against a username
// at or after since.
func (r *AttemptRepository) CountByUsernameSince(ctx context.Context, username string, since time.Time) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM failed_attempts
		WHERE username = $1 AND occurred_at >= $2
	`, username, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// MostRecentByIP returns the latest attempt from an IP at or after since,
// or nil when there is none.
func (r *AttemptRepository) MostRecentByIP(ctx context.Context, sourceIP string, since time.Time) (*models.FailedAttempt, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, username, source_ip, user_agent, occurred_at, failure_reason, consecutive_count, caused_block
		FROM failed_attempts
		WHERE source_ip = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC
		LIMIT 1
	`, sourceIP, since)

	attempt, err := scanAttempt(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return attempt, nil
}

// RecentAttempts returns all attempts at or after since, newest first.
func (r *AttemptRepository) RecentAttempts(ctx context.Context, since time.Time) ([]*models.FailedAttempt, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, username, source_ip, user_agent, occurred_at, failure_reason, consecutive_count, caused_block
		FROM failed_attempts
		WHERE occurred_at >= $1
		ORDER BY occurred_at DESC
	`, since)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	attempts := make([]*models.FailedAttempt, 0)
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}
	return attempts, nil
}

// DeleteBefore removes attempts older than the cutoff. Retention only;
// the lockout logic never deletes records.
func (r *AttemptRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM failed_attempts WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*models.FailedAttempt, error) {
	var attempt models.FailedAttempt
	err := row.Scan(
		&attempt.ID, &attempt.Username, &attempt.SourceIP, &attempt.UserAgent,
		&attempt.OccurredAt, &attempt.FailureReason,
		&attempt.ConsecutiveCount, &attempt.CausedBlock,
	)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}
