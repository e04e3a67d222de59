package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"authgate/internal/config"
	"authgate/internal/session"
)

// NewRouter wires the gateway routes and middleware using chi. The session
// middleware runs on every route; the auth guard only on protected ones.
func NewRouter(cfg config.Config, store session.Store, provider identityProvider, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSlogMiddleware(logger))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(newSessionMiddleware(store, logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})

	oauthHandler := NewOAuthHandler(provider, store, cfg.SessionTTL, cfg.StateTTL, cfg.SecureCookies(), logger)
	pageHandler := NewPageHandler(logger)

	r.Get("/", pageHandler.Home)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", oauthHandler.Login)
		r.Get("/callback", oauthHandler.Callback)
		r.Get("/failure", oauthHandler.Failure)
		r.Post("/logout", oauthHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(newRequireAuthMiddleware())
		r.Get("/protected", pageHandler.Protected)
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}
