package models

import "time"

// FailureReason classifies why a login attempt was rejected
type FailureReason string

const (
	FailureInvalidCredentials FailureReason = "invalid_credentials"
	FailureUserNotFound       FailureReason = "user_not_found"
	FailureAccountDisabled    FailureReason = "account_disabled"
	FailureAuthBackendError   FailureReason = "auth_backend_error"
	FailureIPBlocked          FailureReason = "ip_blocked"
)

// FailedAttempt represents a single failed login attempt. Records are
// append-only: once written they are never mutated or deleted except by
// the retention sweeper.
type FailedAttempt struct {
	ID               string        `db:"id"`
	Username         string        `db:"username"`
	SourceIP         string        `db:"source_ip"`
	UserAgent        string        `db:"user_agent"`
	OccurredAt       time.Time     `db:"occurred_at"`
	FailureReason    FailureReason `db:"failure_reason"`
	ConsecutiveCount int           `db:"consecutive_count"` // attempts from SourceIP within the window, inclusive of this one
	CausedBlock      bool          `db:"caused_block"`      // true iff this record pushed the count to the threshold
}
