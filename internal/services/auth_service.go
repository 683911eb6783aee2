package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clinware/labguard/internal/metrics"
	"github.com/clinware/labguard/internal/models"
	"github.com/clinware/labguard/internal/security"
	pkglogger "github.com/clinware/labguard/pkg/logger"
)

// CredentialVerifier checks a password against the stored credential.
// Returns models.ErrNotFound when the user does not exist,
// models.ErrInvalidCredentials on a mismatch, any other error on backend
// failure.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) error
}

// UserDirectory resolves a username to its fully-materialized user record.
type UserDirectory interface {
	FindUser(ctx context.Context, username string) (*models.UserRecord, error)
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(userID, username string) (string, error)
}

// AuditSink receives login audit events. Fire-and-forget: it cannot fail
// the login flow.
type AuditSink interface {
	LogAuthAttempt(event pkglogger.AuditEvent)
}

// AlertNotifier pushes operator alerts for block trips and suspicious
// sessions. Fire-and-forget like the audit sink.
type AlertNotifier interface {
	NotifyBlockTripped(ctx context.Context, attempt *models.FailedAttempt)
	NotifySuspiciousSession(ctx context.Context, session *models.Session, reason string)
}

// LoginResult is the successful outcome of a login.
type LoginResult struct {
	Token      string
	UserID     string
	Username   string
	Roles      []string
	SessionID  string
	Suspicious bool
}

// AuthService sequences a login through its checks: IP block gate,
// credential check, account-active check, then session registration.
// The sequence is linear with no backtracking; every failure path writes
// to the attempt ledger before returning.
type AuthService struct {
	ledger    security.AttemptLedger
	policy    *security.BlockPolicy
	detector  *security.AnomalyDetector
	sessions  security.SessionStore
	verifier  CredentialVerifier
	directory UserDirectory
	tokens    TokenIssuer
	clock     security.Clock
	logger    *slog.Logger
	audit     AuditSink
	alerts    AlertNotifier
	metrics   metrics.Recorder
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	ledger security.AttemptLedger,
	policy *security.BlockPolicy,
	detector *security.AnomalyDetector,
	sessions security.SessionStore,
	verifier CredentialVerifier,
	directory UserDirectory,
	tokens TokenIssuer,
	clock security.Clock,
	logger *slog.Logger,
	audit AuditSink,
	alerts AlertNotifier,
	recorder metrics.Recorder,
) *AuthService {
	return &AuthService{
		ledger:    ledger,
		policy:    policy,
		detector:  detector,
		sessions:  sessions,
		verifier:  verifier,
		directory: directory,
		tokens:    tokens,
		clock:     clock,
		logger:    logger,
		audit:     audit,
		alerts:    alerts,
		metrics:   recorder,
	}
}

// Login runs the state machine for a single login attempt.
func (s *AuthService) Login(ctx context.Context, username, password, sourceIP, userAgent string) (*LoginResult, error) {
	username = strings.TrimSpace(username)

	// 1. IP block gate. Runs before the credential check so a blocked IP
	// cannot probe passwords at all.
	blocked, err := s.policy.IsBlocked(ctx, sourceIP)
	if err != nil {
		return nil, s.backendFailure(ctx, username, sourceIP, userAgent, err)
	}
	if blocked {
		return nil, s.blockedFailure(ctx, username, sourceIP, userAgent)
	}

	// 2. Credential check.
	if err := s.verifier.Verify(ctx, username, password); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return nil, s.credentialFailure(ctx, username, sourceIP, userAgent, models.FailureUserNotFound)
		case errors.Is(err, models.ErrInvalidCredentials):
			return nil, s.credentialFailure(ctx, username, sourceIP, userAgent, models.FailureInvalidCredentials)
		default:
			return nil, s.backendFailure(ctx, username, sourceIP, userAgent, err)
		}
	}

	// 3. Account-active check. Account-level, so its failure carries no
	// remaining-attempts messaging, but it still counts toward the IP
	// lockout.
	user, err := s.directory.FindUser(ctx, username)
	if err != nil {
		return nil, s.backendFailure(ctx, username, sourceIP, userAgent, err)
	}
	if !user.Active {
		return nil, s.disabledFailure(ctx, username, sourceIP, userAgent)
	}

	// 4. Session registration.
	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, s.backendFailure(ctx, username, sourceIP, userAgent, err)
	}

	// Evaluated against state that does not yet include the new session.
	suspicious, reason, err := s.detector.IsSuspicious(ctx, user.ID, sourceIP)
	if err != nil {
		return nil, s.backendFailure(ctx, username, sourceIP, userAgent, err)
	}

	session := models.NewSession(user.ID, token, sourceIP, userAgent, s.clock.Now())
	if suspicious {
		session.Flag(reason)
	}

	created, err := s.sessions.Create(ctx, session)
	if err != nil {
		return nil, s.backendFailure(ctx, username, sourceIP, userAgent, err)
	}

	if suspicious {
		s.metrics.RecordSuspiciousSession()
		if s.alerts != nil {
			s.alerts.NotifySuspiciousSession(ctx, created, reason)
		}
		s.logger.Warn("suspicious session registered",
			slog.String("user_id", user.ID),
			slog.String("session_id", created.ID),
			slog.String("source_ip", sourceIP),
			slog.String("reason", reason))
	}

	s.metrics.RecordLoginSuccess()
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		Username:  username,
		UserID:    user.ID,
		SourceIP:  sourceIP,
		UserAgent: userAgent,
		Success:   true,
	})
	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("session_id", created.ID),
		slog.Bool("suspicious", suspicious))

	return &LoginResult{
		Token:      token,
		UserID:     user.ID,
		Username:   user.Username,
		Roles:      user.Roles,
		SessionID:  created.ID,
		Suspicious: suspicious,
	}, nil
}

// blockedFailure terminates a login rejected at the IP gate.
func (s *AuthService) blockedFailure(ctx context.Context, username, sourceIP, userAgent string) error {
	attempt, err := s.ledger.Record(ctx, username, sourceIP, userAgent, models.FailureIPBlocked)
	if err != nil {
		return s.ledgerWriteFailure(sourceIP, err)
	}

	unblockTime, err := s.policy.UnblockTime(ctx, sourceIP)
	if err != nil {
		s.logger.Error("failed to compute unblock time", slog.Any("error", err))
		fallback := attempt.OccurredAt
		unblockTime = &fallback
	}

	s.metrics.RecordLoginFailure(string(models.FailureIPBlocked))
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		Username:      username,
		SourceIP:      sourceIP,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: string(models.FailureIPBlocked),
	})

	return &models.LoginError{
		Err:               models.ErrIPBlocked,
		Message:           blockedMessage(unblockTime),
		RemainingAttempts: 0,
		Blocked:           true,
		UnblockTime:       unblockTime,
	}
}

// credentialFailure terminates a login on a wrong password or an unknown
// username. The remaining-attempts count is computed after recording the
// failure, so a just-tripped block is visible in the result.
func (s *AuthService) credentialFailure(ctx context.Context, username, sourceIP, userAgent string, reason models.FailureReason) error {
	attempt, err := s.ledger.Record(ctx, username, sourceIP, userAgent, reason)
	if err != nil {
		return s.ledgerWriteFailure(sourceIP, err)
	}

	remaining, err := s.policy.RemainingAttempts(ctx, sourceIP)
	if err != nil {
		// The record is already written; derive the count from it rather
		// than failing the whole response over a read error.
		s.logger.Error("failed to compute remaining attempts", slog.Any("error", err))
		remaining = max(0, s.policy.Config().MaxFailedAttempts-attempt.ConsecutiveCount)
	}

	var unblockTime *time.Time
	if attempt.CausedBlock {
		unblockTime, err = s.policy.UnblockTime(ctx, sourceIP)
		if err != nil {
			s.logger.Error("failed to compute unblock time", slog.Any("error", err))
		}
		s.metrics.RecordIPBlock()
		if s.alerts != nil {
			s.alerts.NotifyBlockTripped(ctx, attempt)
		}
		s.logger.Warn("ip block tripped",
			slog.String("source_ip", sourceIP),
			slog.Int("consecutive_count", attempt.ConsecutiveCount))
	}

	s.metrics.RecordLoginFailure(string(reason))
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		Username:      username,
		SourceIP:      sourceIP,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: string(reason),
	})

	return &models.LoginError{
		Err:               models.ErrInvalidCredentials,
		Message:           progressiveMessage(remaining, unblockTime),
		RemainingAttempts: remaining,
		Blocked:           attempt.CausedBlock,
		UnblockTime:       unblockTime,
	}
}

// disabledFailure terminates a login for an inactive account.
func (s *AuthService) disabledFailure(ctx context.Context, username, sourceIP, userAgent string) error {
	if _, err := s.ledger.Record(ctx, username, sourceIP, userAgent, models.FailureAccountDisabled); err != nil {
		return s.ledgerWriteFailure(sourceIP, err)
	}

	s.metrics.RecordLoginFailure(string(models.FailureAccountDisabled))
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		Username:      username,
		SourceIP:      sourceIP,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: string(models.FailureAccountDisabled),
	})

	return &models.LoginError{
		Err:     models.ErrAccountDisabled,
		Message: "The account has been disabled. Contact an administrator.",
	}
}

// backendFailure terminates a login on a collaborator or storage error.
// Details are logged, never surfaced to the client.
func (s *AuthService) backendFailure(ctx context.Context, username, sourceIP, userAgent string, cause error) error {
	s.logger.Error("authentication backend failure",
		slog.String("source_ip", sourceIP),
		slog.Any("error", cause))

	if _, err := s.ledger.Record(ctx, username, sourceIP, userAgent, models.FailureAuthBackendError); err != nil {
		return s.ledgerWriteFailure(sourceIP, err)
	}

	s.metrics.RecordLoginFailure(string(models.FailureAuthBackendError))
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		Username:      username,
		SourceIP:      sourceIP,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: string(models.FailureAuthBackendError),
	})

	return &models.LoginError{
		Err:     models.ErrAuthBackend,
		Message: "Authentication failed due to an internal error. Try again later.",
	}
}

// ledgerWriteFailure handles the one failure that cannot be recorded: the
// ledger write itself. The attempt cannot be safely lost without
// weakening the lockout guarantee, so the login fails as a backend error.
func (s *AuthService) ledgerWriteFailure(sourceIP string, cause error) error {
	s.logger.Error("failed to record login attempt",
		slog.String("source_ip", sourceIP),
		slog.Any("error", cause))

	s.metrics.RecordLoginFailure(string(models.FailureAuthBackendError))
	return &models.LoginError{
		Err:     models.ErrAuthBackend,
		Message: "Authentication failed due to an internal error. Try again later.",
	}
}

// progressiveMessage maps remaining attempts to the user-facing warning
// tier: 0 exhausted, 1 final attempt, 2 countdown, otherwise generic.
func progressiveMessage(remaining int, unblockTime *time.Time) string {
	switch {
	case remaining == 0:
		return blockedMessage(unblockTime)
	case remaining == 1:
		return "Invalid credentials. FINAL ATTEMPT: one more failure will temporarily block your IP."
	case remaining == 2:
		return fmt.Sprintf("Invalid credentials. %d attempts remaining before a temporary block.", remaining)
	default:
		return "Invalid credentials. Check your username and password."
	}
}

func blockedMessage(unblockTime *time.Time) string {
	if unblockTime != nil {
		return fmt.Sprintf("Attempts exhausted. Your IP has been temporarily blocked. Try again after %s.",
			unblockTime.UTC().Format(time.RFC3339))
	}
	return "Attempts exhausted. Your IP has been temporarily blocked. Try again later."
}
