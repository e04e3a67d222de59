package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the gateway.
type Config struct {
	Environment       string
	HTTPPort          int
	BaseURL           string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthCallbackURL  string
	SessionSecret     string
	SessionTTL        time.Duration
	StateTTL          time.Duration
	SessionStore      string
	DatabaseURL       string
	RedisURL          string
	LogLevel          string
	AllowedOrigins    []string
}

// Load reads configuration from environment variables with sensible defaults
// for local development. Missing OAuth credentials are always fatal; a missing
// session secret is fatal outside development, where refusing to serve beats
// serving with a guessable secret.
func Load() (Config, error) {
	clientSecret, err := getEnvOrFile("OAUTH_CLIENT_SECRET", "/run/secrets/authgate_oauth_client_secret")
	if err != nil {
		return Config{}, err
	}

	sessionSecret, err := getEnvOrFile("SESSION_SECRET", "/run/secrets/authgate_session_secret")
	if err != nil {
		return Config{}, err
	}

	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/authgate_database_url")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:       getEnv("APP_ENV", "development"),
		BaseURL:           strings.TrimSuffix(getEnv("BASE_URL", "http://localhost:5678"), "/"),
		OAuthClientID:     strings.TrimSpace(os.Getenv("OAUTH_CLIENT_ID")),
		OAuthClientSecret: strings.TrimSpace(clientSecret),
		OAuthCallbackURL:  strings.TrimSpace(os.Getenv("OAUTH_CALLBACK_URL")),
		SessionSecret:     strings.TrimSpace(sessionSecret),
		SessionStore:      strings.ToLower(getEnv("SESSION_STORE", "memory")),
		DatabaseURL:       databaseURL,
		RedisURL:          os.Getenv("REDIS_URL"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigins:    parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5678")),
	}

	portValue := getEnv("PORT", "5678")
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	cfg.SessionTTL, err = parseSeconds("SESSION_TTL_SECONDS", 86400)
	if err != nil {
		return Config{}, err
	}

	cfg.StateTTL, err = parseSeconds("STATE_TTL_SECONDS", 300)
	if err != nil {
		return Config{}, err
	}

	if cfg.OAuthCallbackURL == "" {
		cfg.OAuthCallbackURL = cfg.BaseURL + "/auth/callback"
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.OAuthClientID == "" {
		return fmt.Errorf("OAUTH_CLIENT_ID is required")
	}
	if c.OAuthClientSecret == "" {
		return fmt.Errorf("OAUTH_CLIENT_SECRET is required")
	}
	if c.SessionSecret == "" && !c.IsDevelopment() {
		return fmt.Errorf("SESSION_SECRET is required outside development")
	}

	switch c.SessionStore {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("SESSION_STORE is postgres but DATABASE_URL is not set")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("SESSION_STORE is redis but REDIS_URL is not set")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q (want memory, postgres, or redis)", c.SessionStore)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be positive")
	}
	if c.StateTTL <= 0 {
		return fmt.Errorf("STATE_TTL_SECONDS must be positive")
	}

	return nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsDevelopment reports whether the process runs in the development environment.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// SecureCookies reports whether cookies should carry the Secure flag. The flag
// mirrors transport encryption: everything except local development is assumed
// to sit behind TLS.
func (c Config) SecureCookies() bool {
	return !c.IsDevelopment()
}

func parseSeconds(key string, fallback int) (time.Duration, error) {
	raw := getEnv(key, strconv.Itoa(fallback))
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
