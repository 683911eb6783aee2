package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/clinware/labguard/internal/database"
	"github.com/clinware/labguard/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SessionRepository is the postgres-backed session store. Lifecycle rules
// are enforced in the WHERE clauses: closed and expired sessions are
// terminal and no update touches them.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, user_id, session_token, source_ip, user_agent, login_time, last_access_time, status, suspicious, location, remarks`

// Create persists a new session. The token must be unique; a duplicate
// surfaces as models.ErrConflict.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO sessions
			(id, user_id, session_token, source_ip, user_agent, login_time, last_access_time, status, suspicious, location, remarks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		session.ID,
		session.UserID,
		session.SessionToken,
		session.SourceIP,
		session.UserAgent,
		session.LoginTime,
		session.LastAccessTime,
		session.Status,
		session.Suspicious,
		session.Location,
		session.Remarks,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return session, nil
}

// GetByToken returns the session that owns the token.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_token = $1`, token)

	session, err := scanSession(row)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return session, nil
}

// ActiveByUser returns the user's active sessions, newest login first.
func (r *SessionRepository) ActiveByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND status = $2
		ORDER BY login_time DESC
	`, userID, models.SessionActive)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanSessions(rows)
}

// CountActiveByUser counts the user's active sessions.
func (r *SessionRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE user_id = $1 AND status = $2
	`, userID, models.SessionActive).Scan(&count)
	return count, database.MapPostgresError(err)
}

// HasRecentActiveFromOtherIP reports whether the user has an active
// session from a different IP logged in at or after since.
func (r *SessionRepository) HasRecentActiveFromOtherIP(ctx context.Context, userID, sourceIP string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE user_id = $1 AND status = $2 AND source_ip <> $3 AND login_time >= $4
		)
	`, userID, models.SessionActive, sourceIP, since).Scan(&exists)
	return exists, database.MapPostgresError(err)
}

// UpdateLastAccess touches the session's last access time. Sessions in a
// terminal state are left untouched.
func (r *SessionRepository) UpdateLastAccess(ctx context.Context, token string, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE sessions SET last_access_time = $1
		WHERE session_token = $2 AND status IN ($3, $4)
	`, at, token, models.SessionActive, models.SessionSuspicious)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Close transitions the session to closed (explicit logout).
func (r *SessionRepository) Close(ctx context.Context, token string, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE sessions SET status = $1, last_access_time = $2
		WHERE session_token = $3 AND status IN ($4, $5)
	`, models.SessionClosed, at, token, models.SessionActive, models.SessionSuspicious)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkSuspicious flags a session and records the reason.
func (r *SessionRepository) MarkSuspicious(ctx context.Context, sessionID, reason string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE sessions SET suspicious = true, status = $1, remarks = $2
		WHERE id = $3 AND status IN ($4, $1)
	`, models.SessionSuspicious, reason, sessionID, models.SessionActive)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ExpireIdleBefore expires active sessions whose last access predates the
// cutoff, returning how many were expired.
func (r *SessionRepository) ExpireIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE sessions SET status = $1
		WHERE status = $2 AND last_access_time < $3
	`, models.SessionExpired, models.SessionActive, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// SuspiciousBetween returns flagged sessions whose login time falls in
// [start, end].
func (r *SessionRepository) SuspiciousBetween(ctx context.Context, start, end time.Time) ([]*models.Session, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE suspicious = true AND login_time BETWEEN $1 AND $2
		ORDER BY login_time DESC
	`, start, end)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanSessions(rows)
}

func scanSession(row rowScanner) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID, &session.UserID, &session.SessionToken,
		&session.SourceIP, &session.UserAgent,
		&session.LoginTime, &session.LastAccessTime,
		&session.Status, &session.Suspicious,
		&session.Location, &session.Remarks,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func scanSessions(rows pgx.Rows) ([]*models.Session, error) {
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}
