package security

import (
	"context"
	"time"

	"github.com/clinware/labguard/internal/models"
)

// SessionStore persists user sessions. Lifecycle rules are enforced by the
// implementations: active sessions may close, expire, or be flagged
// suspicious; closed and expired sessions never transition again.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) (*models.Session, error)
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	ActiveByUser(ctx context.Context, userID string) ([]*models.Session, error)
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	// HasRecentActiveFromOtherIP reports whether the user has an active
	// session from a different source IP logged in at or after since.
	HasRecentActiveFromOtherIP(ctx context.Context, userID, sourceIP string, since time.Time) (bool, error)
	UpdateLastAccess(ctx context.Context, token string, at time.Time) error
	Close(ctx context.Context, token string, at time.Time) error
	MarkSuspicious(ctx context.Context, sessionID, reason string) error
	// ExpireIdleBefore moves active sessions whose last access predates the
	// cutoff into the expired state, returning how many were expired.
	ExpireIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
	SuspiciousBetween(ctx context.Context, start, end time.Time) ([]*models.Session, error)
}
