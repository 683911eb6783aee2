package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clinware/labguard/internal/models"
	"github.com/clinware/labguard/internal/services"
	pkghttp "github.com/clinware/labguard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuthService struct {
	LoginFunc func(ctx context.Context, username, password, sourceIP, userAgent string) (*services.LoginResult, error)
	LastIP    string
}

func (m *mockAuthService) Login(ctx context.Context, username, password, sourceIP, userAgent string) (*services.LoginResult, error) {
	m.LastIP = sourceIP
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, username, password, sourceIP, userAgent)
	}
	return &services.LoginResult{Token: "tok", UserID: "user1", Username: username, SessionID: "sess1"}, nil
}

type mockSessionCloser struct {
	CloseSessionFunc func(ctx context.Context, token string) error
}

func (m *mockSessionCloser) CloseSession(ctx context.Context, token string) error {
	if m.CloseSessionFunc != nil {
		return m.CloseSessionFunc(ctx, token)
	}
	return nil
}

func loginRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAuthHandler_Login_Success(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, &mockSessionCloser{}, &pkghttp.IPConfig{})

	rec := httptest.NewRecorder()
	handler.Login(rec, loginRequest(t, LoginRequest{Username: "carlos", Password: "secret"}))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, "user1", resp.UserID)
	assert.Equal(t, "sess1", resp.SessionID)
}

func TestAuthHandler_Login_InvalidBody(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, &mockSessionCloser{}, &pkghttp.IPConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, &mockSessionCloser{}, &pkghttp.IPConfig{})

	rec := httptest.NewRecorder()
	handler.Login(rec, loginRequest(t, LoginRequest{Username: "carlos"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	remaining := 2
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, username, password, sourceIP, userAgent string) (*services.LoginResult, error) {
			return nil, &models.LoginError{
				Err:               models.ErrInvalidCredentials,
				Message:           "Invalid credentials. 2 attempts remaining before a temporary block.",
				RemainingAttempts: remaining,
			}
		},
	}
	handler := NewAuthHandler(service, &mockSessionCloser{}, &pkghttp.IPConfig{})

	rec := httptest.NewRecorder()
	handler.Login(rec, loginRequest(t, LoginRequest{Username: "carlos", Password: "wrong"}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp pkghttp.LoginErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "invalid_credentials", resp.Error)
	assert.Equal(t, remaining, resp.RemainingAttempts)
	assert.False(t, resp.Blocked)
	assert.Nil(t, resp.UnblockTime)
}

func TestAuthHandler_Login_Blocked(t *testing.T) {
	unblock := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, username, password, sourceIP, userAgent string) (*services.LoginResult, error) {
			return nil, &models.LoginError{
				Err:         models.ErrIPBlocked,
				Message:     "Attempts exhausted. Your IP has been temporarily blocked.",
				Blocked:     true,
				UnblockTime: &unblock,
			}
		},
	}
	handler := NewAuthHandler(service, &mockSessionCloser{}, &pkghttp.IPConfig{})

	rec := httptest.NewRecorder()
	handler.Login(rec, loginRequest(t, LoginRequest{Username: "carlos", Password: "wrong"}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp pkghttp.LoginErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ip_blocked", resp.Error)
	assert.True(t, resp.Blocked)
	assert.Equal(t, 0, resp.RemainingAttempts)
	require.NotNil(t, resp.UnblockTime)
	assert.True(t, resp.UnblockTime.Equal(unblock))
}

func TestAuthHandler_Login_AccountDisabled(t *testing.T) {
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, username, password, sourceIP, userAgent string) (*services.LoginResult, error) {
			return nil, &models.LoginError{
				Err:     models.ErrAccountDisabled,
				Message: "The account has been disabled. Contact an administrator.",
			}
		},
	}
	handler := NewAuthHandler(service, &mockSessionCloser{}, &pkghttp.IPConfig{})

	rec := httptest.NewRecorder()
	handler.Login(rec, loginRequest(t, LoginRequest{Username: "carlos", Password: "secret"}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthHandler_Login_BackendError(t *testing.T) {
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, username, password, sourceIP, userAgent string) (*services.LoginResult, error) {
			return nil, &models.LoginError{
				Err:     models.ErrAuthBackend,
				Message: "Authentication failed due to an internal error. Try again later.",
			}
		},
	}
	handler := NewAuthHandler(service, &mockSessionCloser{}, &pkghttp.IPConfig{})

	rec := httptest.NewRecorder()
	handler.Login(rec, loginRequest(t, LoginRequest{Username: "carlos", Password: "secret"}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthHandler_Login_UsesRemoteAddrWithoutProxy(t *testing.T) {
	service := &mockAuthService{}
	handler := NewAuthHandler(service, &mockSessionCloser{}, &pkghttp.IPConfig{})

	req := loginRequest(t, LoginRequest{Username: "carlos", Password: "secret"})
	req.RemoteAddr = "203.0.113.7:54321"
	// The forwarded header is ignored when no trusted proxies are set.
	req.Header.Set("X-Forwarded-For", "198.51.100.4")

	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "203.0.113.7", service.LastIP)
}

func TestAuthHandler_Logout_Success(t *testing.T) {
	var closedToken string
	closer := &mockSessionCloser{
		CloseSessionFunc: func(ctx context.Context, token string) error {
			closedToken = token
			return nil
		},
	}
	handler := NewAuthHandler(&mockAuthService{}, closer, &pkghttp.IPConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "tok-123", closedToken)
}

func TestAuthHandler_Logout_MissingToken(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, &mockSessionCloser{}, &pkghttp.IPConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Logout_AlreadyClosed(t *testing.T) {
	closer := &mockSessionCloser{
		CloseSessionFunc: func(ctx context.Context, token string) error {
			return models.ErrNotFound
		},
	}
	handler := NewAuthHandler(&mockAuthService{}, closer, &pkghttp.IPConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Logout_BackendError(t *testing.T) {
	closer := &mockSessionCloser{
		CloseSessionFunc: func(ctx context.Context, token string) error {
			return errors.New("db down")
		},
	}
	handler := NewAuthHandler(&mockAuthService{}, closer, &pkghttp.IPConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
