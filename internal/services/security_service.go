package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/clinware/labguard/internal/metrics"
	"github.com/clinware/labguard/internal/models"
	"github.com/clinware/labguard/internal/security"
)

// SecurityService exposes the monitoring operations on sessions and the
// attempt ledger: active-session listings, post-hoc flagging, logout, and
// intrusion queries for operators.
type SecurityService struct {
	sessions security.SessionStore
	ledger   security.AttemptLedger
	policy   *security.BlockPolicy
	clock    security.Clock
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewSecurityService creates a new SecurityService.
func NewSecurityService(
	sessions security.SessionStore,
	ledger security.AttemptLedger,
	policy *security.BlockPolicy,
	clock security.Clock,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *SecurityService {
	return &SecurityService{
		sessions: sessions,
		ledger:   ledger,
		policy:   policy,
		clock:    clock,
		logger:   logger,
		metrics:  recorder,
	}
}

// GetActiveSessions returns the user's active sessions.
func (s *SecurityService) GetActiveSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	return s.sessions.ActiveByUser(ctx, userID)
}

// MarkSuspicious flags a session post-hoc (operator action).
func (s *SecurityService) MarkSuspicious(ctx context.Context, sessionID, reason string) error {
	if err := s.sessions.MarkSuspicious(ctx, sessionID, reason); err != nil {
		return err
	}
	s.metrics.RecordSuspiciousSession()
	s.logger.Warn("session marked suspicious",
		slog.String("session_id", sessionID),
		slog.String("reason", reason))
	return nil
}

// CloseSession closes the session owning the token (explicit logout).
func (s *SecurityService) CloseSession(ctx context.Context, token string) error {
	if err := s.sessions.Close(ctx, token, s.clock.Now()); err != nil {
		return err
	}
	s.logger.Info("session closed")
	return nil
}

// TouchSession updates the session's last access time.
func (s *SecurityService) TouchSession(ctx context.Context, token string) error {
	return s.sessions.UpdateLastAccess(ctx, token, s.clock.Now())
}

// RecentFailedAttempts returns failed attempts from the last sinceHours
// hours, newest first.
func (s *SecurityService) RecentFailedAttempts(ctx context.Context, sinceHours int) ([]*models.FailedAttempt, error) {
	since := s.clock.Now().Add(-time.Duration(sinceHours) * time.Hour)
	return s.ledger.RecentAttempts(ctx, since)
}

// SuspiciousSessions returns flagged sessions whose login time falls in
// [start, end].
func (s *SecurityService) SuspiciousSessions(ctx context.Context, start, end time.Time) ([]*models.Session, error) {
	return s.sessions.SuspiciousBetween(ctx, start, end)
}

// HasExcessiveFailures reports whether a username has hit the failure
// threshold within the block window.
func (s *SecurityService) HasExcessiveFailures(ctx context.Context, username string) (bool, error) {
	return s.policy.HasExcessiveFailures(ctx, username)
}
