package http

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable error code
	Message string `json:"message"`           // Human-readable message
	Details string `json:"details,omitempty"` // Optional additional context
}

// LoginErrorResponse is the 401 payload for failed logins. It carries the
// lockout context alongside the user-facing message.
type LoginErrorResponse struct {
	Error             string     `json:"error"`
	Message           string     `json:"message"`
	RemainingAttempts int        `json:"remaining_attempts"`
	Blocked           bool       `json:"blocked"`
	UnblockTime       *time.Time `json:"unblock_time,omitempty"`
	Timestamp         time.Time  `json:"timestamp"`
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteLoginError writes the 401 login failure payload
func WriteLoginError(w http.ResponseWriter, errorCode, message string, remaining int, blocked bool, unblockTime *time.Time) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	resp := LoginErrorResponse{
		Error:             errorCode,
		Message:           message,
		RemainingAttempts: remaining,
		Blocked:           blocked,
		UnblockTime:       unblockTime,
		Timestamp:         time.Now().UTC(),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
