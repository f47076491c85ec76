package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Workflow     WorkflowConfig
	RateLimit    RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig holds the shared secret used by the identity provider to sign access tokens.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig controls outbound e-mail.
type NotificationConfig struct {
	EmailFrom     string
	ResendAPIKey  string
	ResendBaseURL string
	SiteURL       string
	// SendAttempts above 1 enables retries with backoff; deliveries then run after the
	// triggering request has returned.
	SendAttempts      int
	MaxBackoffSeconds int
	FanOutLimit       int
	IdempotencyTTLSec int
}

// WorkflowConfig tunes the deal status workflow.
type WorkflowConfig struct {
	// TransitionAllowList is "from:to|to,from:to". Empty means any status may follow any other.
	TransitionAllowList string
}

// RateLimitConfig toggles the rate-check endpoint backend.
type RateLimitConfig struct {
	Enabled bool
	Storage string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "deal-portal"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:         getEnv("NOTIFY_EMAIL_FROM", "DealSubmit Pro <noreply@example.com>"),
			ResendAPIKey:      os.Getenv("RESEND_API_KEY"),
			ResendBaseURL:     getEnv("RESEND_BASE_URL", "https://api.resend.com"),
			SiteURL:           strings.TrimRight(getEnv("PORTAL_SITE_URL", "http://localhost:3000"), "/"),
			SendAttempts:      getEnvAsInt("NOTIFY_SEND_ATTEMPTS", 1),
			MaxBackoffSeconds: getEnvAsInt("NOTIFY_MAX_BACKOFF_SECONDS", 10),
			FanOutLimit:       getEnvAsInt("NOTIFY_FANOUT_LIMIT", 4),
			IdempotencyTTLSec: getEnvAsInt("NOTIFY_IDEMPOTENCY_TTL_SECONDS", 86400),
		},
		Workflow: WorkflowConfig{
			TransitionAllowList: os.Getenv("WORKFLOW_TRANSITION_ALLOWLIST"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Storage: getEnv("RATE_LIMIT_STORAGE", "redis"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// MaxBackoff returns the retry backoff cap.
func (n NotificationConfig) MaxBackoff() time.Duration {
	return time.Duration(n.MaxBackoffSeconds) * time.Second
}

// IdempotencyTTL returns how long per-recipient send markers are kept.
func (n NotificationConfig) IdempotencyTTL() time.Duration {
	return time.Duration(n.IdempotencyTTLSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
