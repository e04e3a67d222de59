package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"authgate/internal/auth"
	"authgate/internal/config"
	transporthttp "authgate/internal/http"
	"authgate/internal/platform/database"
	"authgate/internal/platform/logging"
	"authgate/internal/platform/migrate"
	"authgate/internal/session"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)

	secret := cfg.SessionSecret
	if secret == "" {
		// Development fallback: a random per-process secret, never a literal.
		generated, err := session.GenerateID()
		if err != nil {
			logger.Error("failed to generate session secret", "error", err)
			os.Exit(1)
		}
		logger.Warn("SESSION_SECRET not set; using a random per-process secret")
		secret = generated
	}

	store, cleanup, err := buildSessionStore(ctx, cfg, secret, logger)
	if err != nil {
		logger.Error("failed to initialize session store", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	provider, err := auth.NewGoogleAuthenticator(ctx, cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.OAuthCallbackURL)
	if err != nil {
		logger.Error("failed to initialize google authenticator", "error", err)
		os.Exit(1)
	}

	router := transporthttp.NewRouter(cfg, store, provider, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("authgate listening", "addr", srv.Addr, "store", cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildSessionStore(ctx context.Context, cfg config.Config, secret string, logger *slog.Logger) (session.Store, func(), error) {
	switch cfg.SessionStore {
	case "postgres":
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		cleanup := func() {
			_ = db.Close()
		}

		if err := migrate.Apply(ctx, db, logger); err != nil {
			cleanup()
			return nil, nil, err
		}

		logger.Info("connected to postgres")
		store := session.NewPostgresStore(db, secret, cfg.SessionTTL)
		startExpirySweep(ctx, store, logger)
		return store, cleanup, nil

	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}

		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, err
		}

		logger.Info("connected to redis")
		cleanup := func() {
			_ = client.Close()
		}
		return session.NewRedisStore(client, secret, cfg.SessionTTL), cleanup, nil

	default:
		logger.Info("using in-memory session store")
		store := session.NewMemoryStore(cfg.SessionTTL)
		store.StartSweeper(ctx, time.Minute)
		return store, nil, nil
	}
}

// startExpirySweep periodically removes expired Postgres sessions; Redis and
// the in-memory store clean up after themselves.
func startExpirySweep(ctx context.Context, store *session.PostgresStore, logger *slog.Logger) {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.DeleteExpired(ctx)
				if err != nil {
					logger.Error("session expiry sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					logger.Info("expired sessions removed", "count", removed)
				}
			}
		}
	}()
}
