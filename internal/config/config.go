package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	CloverClientID     string
	CloverClientSecret string
	CloverTokenURL     string
	CloverAPIBase      string
	CloverRedirectURI  string
	CheckoutRedirect   string
	CheckoutCurrency   string
	PublicHost         string
	RedisURL           string
	IdempotencyTTL     time.Duration
	BodyMaxBytes       int64
	RateLimit          string
	UpstreamTimeout    time.Duration
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		CloverClientID:     strings.TrimSpace(k.String("CLOVER_CLIENT_ID")),
		CloverClientSecret: strings.TrimSpace(k.String("CLOVER_CLIENT_SECRET")),
		CloverTokenURL:     strings.TrimSpace(k.String("CLOVER_TOKEN_URL")),
		CloverAPIBase:      strings.TrimRight(strings.TrimSpace(k.String("CLOVER_API_BASE")), "/"),
		CloverRedirectURI:  strings.TrimSpace(k.String("CLOVER_REDIRECT_URI")),
		CheckoutRedirect:   valueOrDefault(k.String("CHECKOUT_REDIRECT_URL"), "https://example.com/thanks"),
		CheckoutCurrency:   valueOrDefault(k.String("CHECKOUT_CURRENCY"), "USD"),
		PublicHost:         strings.TrimSpace(k.String("PUBLIC_HOST")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		BodyMaxBytes:       parseBytes(k.String("BODY_MAX_BYTES"), 2<<20),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "60-M"),
		UpstreamTimeout:    parseDuration(k.String("UPSTREAM_TIMEOUT"), "15s"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.CloverClientID == "" {
		return nil, errors.New("CLOVER_CLIENT_ID is required")
	}
	if cfg.CloverClientSecret == "" {
		return nil, errors.New("CLOVER_CLIENT_SECRET is required")
	}
	if cfg.CloverTokenURL == "" {
		return nil, errors.New("CLOVER_TOKEN_URL is required")
	}
	if cfg.CloverAPIBase == "" {
		return nil, errors.New("CLOVER_API_BASE is required")
	}
	if cfg.CloverRedirectURI == "" {
		return nil, errors.New("CLOVER_REDIRECT_URI is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AuthorizeURL is the Clover consent endpoint. Clover serves the consent
// page and the token endpoint from the same origin, so it is derived from
// CLOVER_TOKEN_URL rather than configured separately.
func (c *Config) AuthorizeURL() string {
	base := strings.TrimSuffix(strings.TrimRight(c.CloverTokenURL, "/"), "/token")
	return base + "/authorize"
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBytes(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var n int64
	if _, err := fmt.Sscanf(trimmed, "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
