package models

import "time"

// SessionStatus is the lifecycle state of a user session
type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionClosed     SessionStatus = "closed"     // explicit logout
	SessionSuspicious SessionStatus = "suspicious" // flagged by the anomaly detector or an operator
	SessionExpired    SessionStatus = "expired"    // idle timeout
)

// Session represents an authenticated user session. A user may own many
// concurrent active sessions; SessionToken is globally unique.
type Session struct {
	ID             string        `db:"id"`
	UserID         string        `db:"user_id"`
	SessionToken   string        `db:"session_token"`
	SourceIP       string        `db:"source_ip"`
	UserAgent      string        `db:"user_agent"`
	LoginTime      time.Time     `db:"login_time"`
	LastAccessTime time.Time     `db:"last_access_time"`
	Status         SessionStatus `db:"status"`
	Suspicious     bool          `db:"suspicious"`
	Location       *string       `db:"location"`
	Remarks        *string       `db:"remarks"`
}

// NewSession constructs a session with the defaults every session must
// start with: active status and last access equal to login time.
func NewSession(userID, token, sourceIP, userAgent string, loginTime time.Time) *Session {
	return &Session{
		UserID:         userID,
		SessionToken:   token,
		SourceIP:       sourceIP,
		UserAgent:      userAgent,
		LoginTime:      loginTime,
		LastAccessTime: loginTime,
		Status:         SessionActive,
	}
}

// Flag marks the session suspicious with an explanatory remark.
func (s *Session) Flag(reason string) {
	s.Suspicious = true
	s.Remarks = &reason
}
