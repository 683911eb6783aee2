package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/clinware/labguard/internal/models"
	"github.com/clinware/labguard/internal/security"
	pkghttp "github.com/clinware/labguard/pkg/http"
)

type contextKey string

const (
	sessionContextKey contextKey = "session"
	userIDContextKey  contextKey = "user_id"
)

// SessionMiddleware authenticates requests against the session store and
// touches the session's last access time. Validity is decided by the
// store, not the token: a closed or expired session is rejected even when
// its token still parses.
func SessionMiddleware(tm *TokenManager, sessions security.SessionStore, clock security.Clock, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				pkghttp.WriteUnauthorized(w, "Missing or invalid authorization header")
				return
			}

			if _, err := tm.Parse(token); err != nil {
				pkghttp.WriteUnauthorized(w, "Invalid session token")
				return
			}

			session, err := sessions.GetByToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "Session not found")
					return
				}
				logger.Error("session lookup failed", slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if session.Status != models.SessionActive && session.Status != models.SessionSuspicious {
				pkghttp.WriteUnauthorized(w, "Session is no longer valid")
				return
			}

			if err := sessions.UpdateLastAccess(r.Context(), token, clock.Now()); err != nil {
				// The session may have been closed between lookup and touch.
				logger.Warn("failed to touch session",
					slog.String("session_id", session.ID),
					slog.Any("error", err))
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			ctx = context.WithValue(ctx, userIDContextKey, session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the authenticated session, if any.
func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*models.Session)
	return session, ok
}

// UserIDFromContext returns the authenticated user's ID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	return userID, ok
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
