package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clinware/labguard/internal/models"
	"github.com/clinware/labguard/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiddlewareFixture(t *testing.T) (*TokenManager, *security.MemorySessionStore, http.Handler, *bool) {
	t.Helper()
	tm := NewTokenManager(testSecret, 8*time.Hour)
	sessions := security.NewMemorySessionStore()

	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		session, ok := SessionFromContext(r.Context())
		assert.True(t, ok)
		assert.NotNil(t, session)
		userID, ok := UserIDFromContext(r.Context())
		assert.True(t, ok)
		assert.NotEmpty(t, userID)
		w.WriteHeader(http.StatusOK)
	})

	handler := SessionMiddleware(tm, sessions, security.SystemClock(), slog.Default())(next)
	return tm, sessions, handler, &reached
}

func issueSession(t *testing.T, tm *TokenManager, sessions *security.MemorySessionStore, userID string) string {
	t.Helper()
	token, err := tm.Issue(userID, "carlos")
	require.NoError(t, err)
	_, err = sessions.Create(context.Background(), models.NewSession(userID, token, "203.0.113.7", "curl/8.0", time.Now()))
	require.NoError(t, err)
	return token
}

func doRequest(handler http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/security/attempts", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSessionMiddleware_ValidSession(t *testing.T) {
	tm, sessions, handler, reached := newMiddlewareFixture(t)
	token := issueSession(t, tm, sessions, "user1")

	rec := doRequest(handler, token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *reached)

	// The request touched the session.
	session, err := sessions.GetByToken(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, session.LastAccessTime.After(session.LoginTime))
}

func TestSessionMiddleware_MissingHeader(t *testing.T) {
	_, _, handler, reached := newMiddlewareFixture(t)

	rec := doRequest(handler, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *reached)
}

func TestSessionMiddleware_UnparsableToken(t *testing.T) {
	_, _, handler, reached := newMiddlewareFixture(t)

	rec := doRequest(handler, "garbage")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *reached)
}

func TestSessionMiddleware_TokenWithoutSession(t *testing.T) {
	tm, _, handler, reached := newMiddlewareFixture(t)
	token, err := tm.Issue("user1", "carlos")
	require.NoError(t, err)

	rec := doRequest(handler, token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *reached)
}

func TestSessionMiddleware_ClosedSessionRejected(t *testing.T) {
	tm, sessions, handler, reached := newMiddlewareFixture(t)
	token := issueSession(t, tm, sessions, "user1")
	require.NoError(t, sessions.Close(context.Background(), token, time.Now()))

	// The token still parses but the store says the session is gone.
	rec := doRequest(handler, token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *reached)
}

func TestSessionMiddleware_SuspiciousSessionStillServed(t *testing.T) {
	tm, sessions, handler, reached := newMiddlewareFixture(t)
	token := issueSession(t, tm, sessions, "user1")

	session, err := sessions.GetByToken(context.Background(), token)
	require.NoError(t, err)
	require.NoError(t, sessions.MarkSuspicious(context.Background(), session.ID, "operator review"))

	rec := doRequest(handler, token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *reached)
}
