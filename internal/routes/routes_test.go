package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinware/labguard/internal/auth"
	"github.com/clinware/labguard/internal/handlers"
	customMiddleware "github.com/clinware/labguard/internal/middleware"
	"github.com/clinware/labguard/internal/models"
	"github.com/clinware/labguard/internal/security"
	"github.com/clinware/labguard/internal/services"
	pkghttp "github.com/clinware/labguard/pkg/http"
)

type recordingAuthService struct {
	LastIP string
}

func (m *recordingAuthService) Login(ctx context.Context, username, password, sourceIP, userAgent string) (*services.LoginResult, error) {
	m.LastIP = sourceIP
	return &services.LoginResult{
		Token:     "token",
		UserID:    "user-1",
		Username:  username,
		SessionID: "session-1",
	}, nil
}

type noopSessionCloser struct{}

func (noopSessionCloser) CloseSession(ctx context.Context, token string) error { return nil }

type noopSecurityService struct{}

func (noopSecurityService) GetActiveSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	return nil, nil
}

func (noopSecurityService) MarkSuspicious(ctx context.Context, sessionID, reason string) error {
	return nil
}

func (noopSecurityService) RecentFailedAttempts(ctx context.Context, sinceHours int) ([]*models.FailedAttempt, error) {
	return nil, nil
}

func (noopSecurityService) SuspiciousSessions(ctx context.Context, start, end time.Time) ([]*models.Session, error) {
	return nil, nil
}

func (noopSecurityService) HasExcessiveFailures(ctx context.Context, username string) (bool, error) {
	return false, nil
}

// newTestRouter assembles the router with the same middleware chain the
// server uses, so requests exercise the full path down to the handler.
func newTestRouter(authService handlers.AuthServiceInterface, ipConfig *pkghttp.IPConfig) chi.Router {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	authHandler := handlers.NewAuthHandler(authService, noopSessionCloser{}, ipConfig)
	securityHandler := handlers.NewSecurityHandler(noopSecurityService{})
	tokenManager := auth.NewTokenManager("test-secret-key-at-least-32-chars-long", time.Hour)
	sessions := security.NewMemorySessionStore()
	clock := security.SystemClock()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(customMiddleware.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	RegisterRoutes(router, authHandler, securityHandler, tokenManager, sessions, clock, ipConfig, http.NotFoundHandler(), logger)
	return router
}

func postLogin(router chi.Router, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"username": "mwilson", "password": "correct-horse"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.RemoteAddr = remoteAddr
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRouter_Login_ForwardedHeaderIgnoredWithoutTrustedProxy(t *testing.T) {
	authService := &recordingAuthService{}
	router := newTestRouter(authService, &pkghttp.IPConfig{})

	recorder := postLogin(router, "203.0.113.7:4444", map[string]string{
		"X-Forwarded-For": "10.99.99.99",
	})

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "203.0.113.7", authService.LastIP,
		"lockout key must be the TCP peer when no proxy is trusted")
}

func TestRouter_Login_RealIPHeaderIgnoredWithoutTrustedProxy(t *testing.T) {
	authService := &recordingAuthService{}
	router := newTestRouter(authService, &pkghttp.IPConfig{})

	recorder := postLogin(router, "203.0.113.7:4444", map[string]string{
		"X-Real-IP": "10.99.99.99",
	})

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "203.0.113.7", authService.LastIP)
}

func TestRouter_Login_ForwardedHeaderHonoredFromTrustedProxy(t *testing.T) {
	authService := &recordingAuthService{}
	router := newTestRouter(authService, &pkghttp.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8"},
	})

	recorder := postLogin(router, "10.0.0.5:9000", map[string]string{
		"X-Forwarded-For": "198.51.100.23",
	})

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "198.51.100.23", authService.LastIP)
}
