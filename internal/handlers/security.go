package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/clinware/labguard/internal/models"
	pkghttp "github.com/clinware/labguard/pkg/http"
	"github.com/go-chi/chi/v5"
)

// SecurityServiceInterface defines the monitoring operations the handler needs
type SecurityServiceInterface interface {
	GetActiveSessions(ctx context.Context, userID string) ([]*models.Session, error)
	MarkSuspicious(ctx context.Context, sessionID, reason string) error
	RecentFailedAttempts(ctx context.Context, sinceHours int) ([]*models.FailedAttempt, error)
	SuspiciousSessions(ctx context.Context, start, end time.Time) ([]*models.Session, error)
	HasExcessiveFailures(ctx context.Context, username string) (bool, error)
}

// SecurityHandler exposes the operator-facing monitoring endpoints
type SecurityHandler struct {
	service SecurityServiceInterface
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(service SecurityServiceInterface) *SecurityHandler {
	return &SecurityHandler{service: service}
}

// SessionInfo is the session DTO returned to operators
type SessionInfo struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	SourceIP       string    `json:"source_ip"`
	UserAgent      string    `json:"user_agent"`
	LoginTime      time.Time `json:"login_time"`
	LastAccessTime time.Time `json:"last_access_time"`
	Status         string    `json:"status"`
	Suspicious     bool      `json:"suspicious"`
	Location       *string   `json:"location,omitempty"`
	Remarks        *string   `json:"remarks,omitempty"`
}

// AttemptInfo is the failed-attempt DTO returned to operators
type AttemptInfo struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	SourceIP         string    `json:"source_ip"`
	UserAgent        string    `json:"user_agent"`
	OccurredAt       time.Time `json:"occurred_at"`
	FailureReason    string    `json:"failure_reason"`
	ConsecutiveCount int       `json:"consecutive_count"`
	CausedBlock      bool      `json:"caused_block"`
}

// MarkSuspiciousRequest represents the request body for flagging a session
type MarkSuspiciousRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// GetActiveSessions handles GET /security/sessions/{userID}
func (h *SecurityHandler) GetActiveSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "Missing user ID")
		return
	}

	sessions, err := h.service.GetActiveSessions(r.Context(), userID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, sessionsToInfo(sessions))
}

// MarkSuspicious handles POST /security/sessions/{id}/suspicious
func (h *SecurityHandler) MarkSuspicious(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		pkghttp.WriteBadRequest(w, "Missing session ID")
		return
	}

	var req MarkSuspiciousRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.MarkSuspicious(r.Context(), sessionID, req.Reason); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Session not found or in a terminal state")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to mark session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetRecentAttempts handles GET /security/attempts?hours=N (default 24)
func (h *SecurityHandler) GetRecentAttempts(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 24*30 {
			pkghttp.WriteBadRequest(w, "hours must be an integer between 1 and 720")
			return
		}
		hours = parsed
	}

	attempts, err := h.service.RecentFailedAttempts(r.Context(), hours)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list attempts")
		return
	}

	infos := make([]AttemptInfo, 0, len(attempts))
	for _, a := range attempts {
		infos = append(infos, AttemptInfo{
			ID:               a.ID,
			Username:         a.Username,
			SourceIP:         a.SourceIP,
			UserAgent:        a.UserAgent,
			OccurredAt:       a.OccurredAt,
			FailureReason:    string(a.FailureReason),
			ConsecutiveCount: a.ConsecutiveCount,
			CausedBlock:      a.CausedBlock,
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

// GetSuspiciousSessions handles GET /security/sessions/suspicious?start=&end=
// Defaults to the last 24 hours.
func (h *SecurityHandler) GetSuspiciousSessions(w http.ResponseWriter, r *http.Request) {
	end := time.Now()
	start := end.Add(-24 * time.Hour)

	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "start must be RFC3339")
			return
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "end must be RFC3339")
			return
		}
		end = parsed
	}
	if end.Before(start) {
		pkghttp.WriteBadRequest(w, "end must not precede start")
		return
	}

	sessions, err := h.service.SuspiciousSessions(r.Context(), start, end)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list suspicious sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessionsToInfo(sessions))
}

// GetExcessiveFailures handles GET /security/users/{username}/excessive-failures
func (h *SecurityHandler) GetExcessiveFailures(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		pkghttp.WriteBadRequest(w, "Missing username")
		return
	}

	excessive, err := h.service.HasExcessiveFailures(r.Context(), username)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to check failures")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"excessive_failures": excessive})
}

func sessionsToInfo(sessions []*models.Session) []SessionInfo {
	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, SessionInfo{
			ID:             s.ID,
			UserID:         s.UserID,
			SourceIP:       s.SourceIP,
			UserAgent:      s.UserAgent,
			LoginTime:      s.LoginTime,
			LastAccessTime: s.LastAccessTime,
			Status:         string(s.Status),
			Suspicious:     s.Suspicious,
			Location:       s.Location,
			Remarks:        s.Remarks,
		})
	}
	return infos
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
