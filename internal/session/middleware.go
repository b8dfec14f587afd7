package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	pkghttp "github.com/BradenHooton/accounts/pkg/http"
)

type contextKey string

const sessionKey contextKey = "session"

// WithSession stores sess in ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext returns the session attached by RequireSession.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*Session)
	return sess, ok && sess != nil
}

// RequireSession rejects requests without a live session with 401.
func (m *Manager) RequireSession(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := m.Load(r.Context(), r)
			if err != nil {
				if !errors.Is(err, ErrNoSession) {
					logger.Error("session lookup failed", slog.Any("error", err))
				}
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}
