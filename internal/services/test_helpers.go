package services

import (
	"context"
	"sync"
	"time"

	"github.com/clinware/labguard/internal/models"
	"github.com/clinware/labguard/internal/security"
)

// MockCredentialVerifier implements CredentialVerifier for testing
type MockCredentialVerifier struct {
	VerifyFunc func(ctx context.Context, username, password string) error
	Calls      int
}

func (m *MockCredentialVerifier) Verify(ctx context.Context, username, password string) error {
	m.Calls++
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, username, password)
	}
	return nil
}

// MockUserDirectory implements UserDirectory for testing
type MockUserDirectory struct {
	FindUserFunc func(ctx context.Context, username string) (*models.UserRecord, error)
}

func (m *MockUserDirectory) FindUser(ctx context.Context, username string) (*models.UserRecord, error) {
	if m.FindUserFunc != nil {
		return m.FindUserFunc(ctx, username)
	}
	return &models.UserRecord{ID: "user1", Username: username, Active: true}, nil
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	IssueFunc func(userID, username string) (string, error)
	issued    int
	mu        sync.Mutex
}

func (m *MockTokenIssuer) Issue(userID, username string) (string, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(userID, username)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
	return "token-" + userID + "-" + string(rune('0'+m.issued)), nil
}

// MockAlertNotifier records alert calls for assertions
type MockAlertNotifier struct {
	BlockTrips         []*models.FailedAttempt
	SuspiciousSessions []*models.Session
}

func (m *MockAlertNotifier) NotifyBlockTripped(_ context.Context, attempt *models.FailedAttempt) {
	m.BlockTrips = append(m.BlockTrips, attempt)
}

func (m *MockAlertNotifier) NotifySuspiciousSession(_ context.Context, session *models.Session, _ string) {
	m.SuspiciousSessions = append(m.SuspiciousSessions, session)
}

// MockRecorder counts metric events
type MockRecorder struct {
	Successes       int
	Failures        map[string]int
	IPBlocks        int
	Suspicious      int
	SessionsExpired int64
}

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{Failures: make(map[string]int)}
}

func (m *MockRecorder) RecordLoginSuccess()              { m.Successes++ }
func (m *MockRecorder) RecordLoginFailure(reason string) { m.Failures[reason]++ }
func (m *MockRecorder) RecordIPBlock()                   { m.IPBlocks++ }
func (m *MockRecorder) RecordSuspiciousSession()         { m.Suspicious++ }
func (m *MockRecorder) RecordSessionsExpired(n int64)    { m.SessionsExpired += n }

// failingLedger wraps a real ledger and fails writes on demand
type failingLedger struct {
	inner     security.AttemptLedger
	recordErr error
}

func (l *failingLedger) Record(ctx context.Context, username, sourceIP, userAgent string, reason models.FailureReason) (*models.FailedAttempt, error) {
	if l.recordErr != nil {
		return nil, l.recordErr
	}
	return l.inner.Record(ctx, username, sourceIP, userAgent, reason)
}

func (l *failingLedger) CountByIPSince(ctx context.Context, sourceIP string, since time.Time) (int, error) {
	return l.inner.CountByIPSince(ctx, sourceIP, since)
}

func (l *failingLedger) CountByUsernameSince(ctx context.Context, username string, since time.Time) (int, error) {
	return l.inner.CountByUsernameSince(ctx, username, since)
}

func (l *failingLedger) MostRecentByIP(ctx context.Context, sourceIP string, since time.Time) (*models.FailedAttempt, error) {
	return l.inner.MostRecentByIP(ctx, sourceIP, since)
}

func (l *failingLedger) RecentAttempts(ctx context.Context, since time.Time) ([]*models.FailedAttempt, error) {
	return l.inner.RecentAttempts(ctx, since)
}

// fixedClock is a settable clock for deterministic tests
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(start time.Time) *fixedClock {
	return &fixedClock{now: start}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
