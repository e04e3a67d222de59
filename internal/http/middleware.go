package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"authgate/internal/auth"
	"authgate/internal/session"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func newSlogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)
			logger.Info("http request", "method", r.Method, "path", r.URL.Path, "status", recorder.status, "duration", duration.String())
		})
	}
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	sessionContextKey  contextKey = "session"
	identityContextKey contextKey = "identity"
)

// SessionFromContext extracts the current session from the request context.
// Returns nil for requests without a valid session cookie.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionContextKey).(*session.Session)
	return s
}

// IdentityFromContext extracts the authenticated identity from the request
// context. Only populated behind the auth guard.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(identityContextKey).(*auth.Identity)
	return identity
}

// newSessionMiddleware loads the session named by the cookie, if any, into
// the request context. A store backend failure is a server error, never a
// silent downgrade to anonymous.
func newSessionMiddleware(store session.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := store.Load(r.Context(), cookie.Value)
			if err != nil {
				logger.Error("session load failed", "error", err)
				writeError(w, http.StatusInternalServerError, "session store unavailable")
				return
			}

			if sess == nil {
				// Stale cookie for an expired or destroyed session.
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// newRequireAuthMiddleware guards protected routes. Unauthenticated requests
// are sent back to the login page and never see protected content.
func newRequireAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := session.RequireAuth(SessionFromContext(r.Context()))
			if !ok {
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newSecurityHeadersMiddleware(environment string) func(http.Handler) http.Handler {
	isDev := strings.EqualFold(environment, "development")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")

			if !isDev {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
