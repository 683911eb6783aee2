package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/clinware/labguard/internal/models"
	"github.com/clinware/labguard/internal/services"
	pkghttp "github.com/clinware/labguard/pkg/http"
)

// AuthServiceInterface defines the login operations the handler needs
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password, sourceIP, userAgent string) (*services.LoginResult, error)
}

// SessionCloser closes the session owning a token
type SessionCloser interface {
	CloseSession(ctx context.Context, token string) error
}

// AuthHandler handles login and logout HTTP requests
type AuthHandler struct {
	auth     AuthServiceInterface
	security SessionCloser
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth AuthServiceInterface, security SessionCloser, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		security: security,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=100"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	Token      string   `json:"token"`
	UserID     string   `json:"user_id"`
	Username   string   `json:"username"`
	Roles      []string `json:"roles"`
	SessionID  string   `json:"session_id"`
	Suspicious bool     `json:"suspicious"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sourceIP := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.UserAgent()

	result, err := h.auth.Login(r.Context(), req.Username, req.Password, sourceIP, userAgent)
	if err != nil {
		writeLoginFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(LoginResponse{
		Token:      result.Token,
		UserID:     result.UserID,
		Username:   result.Username,
		Roles:      result.Roles,
		SessionID:  result.SessionID,
		Suspicious: result.Suspicious,
	})
}

// Logout handles POST /auth/logout: closes the session owning the bearer token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		pkghttp.WriteUnauthorized(w, "Missing or invalid authorization header")
		return
	}

	if err := h.security.CloseSession(r.Context(), token); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w, "Session not found or already closed")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to close session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeLoginFailure maps a login error to its HTTP shape. Lockout context
// (remaining attempts, unblock time) only rides on IP-level failures.
func writeLoginFailure(w http.ResponseWriter, err error) {
	var loginErr *models.LoginError
	if !errors.As(err, &loginErr) {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	switch {
	case errors.Is(loginErr.Err, models.ErrIPBlocked):
		pkghttp.WriteLoginError(w, "ip_blocked", loginErr.Message,
			0, true, loginErr.UnblockTime)
	case errors.Is(loginErr.Err, models.ErrInvalidCredentials):
		pkghttp.WriteLoginError(w, "invalid_credentials", loginErr.Message,
			loginErr.RemainingAttempts, loginErr.Blocked, loginErr.UnblockTime)
	case errors.Is(loginErr.Err, models.ErrAccountDisabled):
		pkghttp.WriteForbidden(w, loginErr.Message)
	default:
		pkghttp.WriteInternalError(w, loginErr.Message)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
