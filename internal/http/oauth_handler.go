package http

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"authgate/internal/auth"
	"authgate/internal/session"
)

const failurePath = "/auth/failure"

type identityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Identity, error)
}

// OAuthHandler drives the login state machine: it issues the provider
// redirect, handles the callback, and manages the session cookie.
type OAuthHandler struct {
	provider     identityProvider
	store        session.Store
	logger       *slog.Logger
	sessionTTL   time.Duration
	stateTTL     time.Duration
	secureCookie bool
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(provider identityProvider, store session.Store, sessionTTL, stateTTL time.Duration, secureCookie bool, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		provider:     provider,
		store:        store,
		logger:       logger,
		sessionTTL:   sessionTTL,
		stateTTL:     stateTTL,
		secureCookie: secureCookie,
	}
}

// Login handles GET /auth/login. It ensures the browser has a session,
// stores a fresh CSRF state in it, and redirects to the provider's consent
// screen.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		created, err := h.store.Create(r.Context())
		if err != nil {
			h.logger.Error("session create failed", "error", err)
			writeError(w, http.StatusInternalServerError, "session store unavailable")
			return
		}
		sess = created
	}

	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("state generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sess.PendingState = state
	sess.PendingStateExpiry = time.Now().Add(h.stateTTL)

	if err := h.store.Save(r.Context(), sess); err != nil {
		h.logger.Error("session save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session store unavailable")
		return
	}

	http.SetCookie(w, sessionCookie(sess.ID, h.sessionTTL, h.secureCookie))
	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusFound)
}

// Callback handles GET /auth/callback. The state must match the one stored
// for this session and is consumed before the code exchange, so a replayed
// callback finds no state and fails. Every failure lands on the same generic
// failure page; the cause is only logged.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Warn("oauth callback without session")
		http.Redirect(w, r, failurePath, http.StatusFound)
		return
	}

	now := time.Now()
	stateParam := r.URL.Query().Get("state")

	if !sess.StatePending(now) || stateParam == "" ||
		subtle.ConstantTimeCompare([]byte(stateParam), []byte(sess.PendingState)) != 1 {
		// Possible forgery attempt; log loudly, tell the client nothing.
		h.logger.Warn("oauth callback state mismatch", "session", sess.RecordID)
		h.clearPendingState(r.Context(), sess)
		http.Redirect(w, r, failurePath, http.StatusFound)
		return
	}

	// State verified. Consume it before exchanging so the token is single-use.
	sess.PendingState = ""
	sess.PendingStateExpiry = time.Time{}
	if err := h.store.Save(r.Context(), sess); err != nil {
		h.logger.Error("session save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session store unavailable")
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("oauth callback provider error", "error", errParam)
		http.Redirect(w, r, failurePath, http.StatusFound)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.logger.Warn("oauth callback missing code")
		http.Redirect(w, r, failurePath, http.StatusFound)
		return
	}

	identity, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth exchange failed", "kind", auth.ErrorKind(err), "error", err)
		http.Redirect(w, r, failurePath, http.StatusFound)
		return
	}

	sess.Identity = identity
	if err := h.store.Save(r.Context(), sess); err != nil {
		h.logger.Error("session save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session store unavailable")
		return
	}

	http.SetCookie(w, sessionCookie(sess.ID, h.sessionTTL, h.secureCookie))

	h.logger.Info("login successful", "session", sess.RecordID, "subject", identity.ProviderUserID)
	http.Redirect(w, r, "/protected", http.StatusFound)
}

// Logout handles POST /auth/logout: it destroys the session server-side and
// clears the cookie.
func (h *OAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := SessionFromContext(r.Context()); sess != nil {
		if err := h.store.Destroy(r.Context(), sess.ID); err != nil {
			h.logger.Error("session destroy failed", "error", err)
			writeError(w, http.StatusInternalServerError, "session store unavailable")
			return
		}
	}

	http.SetCookie(w, clearedSessionCookie(h.secureCookie))
	http.Redirect(w, r, "/", http.StatusFound)
}

// Failure handles GET /auth/failure. The page is identical for every failure
// cause so nothing leaks about which step went wrong.
func (h *OAuthHandler) Failure(w http.ResponseWriter, _ *http.Request) {
	writeHTML(w, http.StatusOK, failurePage)
}

func (h *OAuthHandler) clearPendingState(ctx context.Context, sess *session.Session) {
	if sess.PendingState == "" {
		return
	}
	sess.PendingState = ""
	sess.PendingStateExpiry = time.Time{}
	if err := h.store.Save(ctx, sess); err != nil {
		h.logger.Error("session save failed", "error", err)
	}
}

const failurePage = `<!DOCTYPE html>
<html>
<head><title>Sign-in failed</title></head>
<body>
<h1>Sign-in failed</h1>
<p>Something went wrong while signing you in. <a href="/auth/login">Try again</a>.</p>
</body>
</html>
`
