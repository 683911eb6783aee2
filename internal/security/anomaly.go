package security

import (
	"context"
	"log/slog"
	"time"
)

// AnomalyConfig holds the session anomaly detection parameters.
type AnomalyConfig struct {
	SuspiciousIPChangeWindow time.Duration
	MaxConcurrentSessions    int
}

// DefaultAnomalyConfig returns the production defaults: a one-hour IP
// change window and at most 3 concurrent active sessions.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		SuspiciousIPChangeWindow: 1 * time.Hour,
		MaxConcurrentSessions:    3,
	}
}

// AnomalyDetector classifies a new successful login as suspicious based on
// the user's existing active sessions. It is evaluated once, at login
// time, before the new session exists in the store.
type AnomalyDetector struct {
	sessions SessionStore
	cfg      AnomalyConfig
	clock    Clock
	logger   *slog.Logger
}

// NewAnomalyDetector creates an AnomalyDetector over the given store.
func NewAnomalyDetector(sessions SessionStore, cfg AnomalyConfig, clock Clock, logger *slog.Logger) *AnomalyDetector {
	return &AnomalyDetector{
		sessions: sessions,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
	}
}

// IsSuspicious reports whether a login for userID from sourceIP should be
// flagged, and the remark to attach when it should.
func (d *AnomalyDetector) IsSuspicious(ctx context.Context, userID, sourceIP string) (bool, string, error) {
	since := d.clock.Now().Add(-d.cfg.SuspiciousIPChangeWindow)

	ipChanged, err := d.sessions.HasRecentActiveFromOtherIP(ctx, userID, sourceIP, since)
	if err != nil {
		return false, "", err
	}
	if ipChanged {
		d.logger.Warn("suspicious ip change detected",
			slog.String("user_id", userID),
			slog.String("source_ip", sourceIP))
		return true, "login from a different IP than a recent active session", nil
	}

	active, err := d.sessions.CountActiveByUser(ctx, userID)
	if err != nil {
		return false, "", err
	}
	if active >= d.cfg.MaxConcurrentSessions {
		d.logger.Warn("concurrent session limit reached",
			slog.String("user_id", userID),
			slog.Int("active_sessions", active),
			slog.Int("max_concurrent", d.cfg.MaxConcurrentSessions))
		return true, "concurrent active session limit reached", nil
	}

	return false, "", nil
}
