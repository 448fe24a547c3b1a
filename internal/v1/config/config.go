package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration
type Config struct {
	// Required variables
	Port string

	// Storage
	DatabasePath string

	// Sessions
	SessionTTL time.Duration
	BcryptCost int

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	// Redis (cross-instance broker fan-out)
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	// Voice
	STUNURLs []string

	// Tracing
	OtelEnabled       bool
	OtelCollectorAddr string

	DevelopmentMode bool
	AllowedOrigins  []string
}

const (
	defaultDatabasePath = "./data/hermes.db"
	defaultSessionTTL   = 720 * time.Hour
	defaultBcryptCost   = 10
	defaultSTUNURL      = "stun:stun.l.google.com:19302"
)

// ValidateEnv validates all required environment variables and returns a Config object.
// Returns an error naming every invalid variable at once.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// Required: PORT (valid port number)
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errors = append(errors, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	// Optional: DATABASE_PATH (defaults to ./data/hermes.db)
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", defaultDatabasePath)

	// Optional: SESSION_TTL (Go duration, defaults to 720h)
	cfg.SessionTTL = defaultSessionTTL
	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			errors = append(errors, fmt.Sprintf("SESSION_TTL must be a positive Go duration (got '%s')", raw))
		} else {
			cfg.SessionTTL = ttl
		}
	}

	// Optional: BCRYPT_COST (defaults to 10; the hashing scheme requires at least 10)
	cfg.BcryptCost = defaultBcryptCost
	if raw := os.Getenv("BCRYPT_COST"); raw != "" {
		cost, err := strconv.Atoi(raw)
		if err != nil || cost < defaultBcryptCost || cost > 31 {
			errors = append(errors, fmt.Sprintf("BCRYPT_COST must be an integer between 10 and 31 (got '%s')", raw))
		} else {
			cfg.BcryptCost = cost
		}
	}

	// Conditional: REDIS_ADDR (required if REDIS_ENABLED=true)
	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errors = append(errors, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	// Optional: STUN_URLS (comma-separated, defaults to Google STUN)
	if raw := os.Getenv("STUN_URLS"); raw != "" {
		for _, u := range strings.Split(raw, ",") {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			if !strings.HasPrefix(u, "stun:") && !strings.HasPrefix(u, "turn:") {
				errors = append(errors, fmt.Sprintf("STUN_URLS entries must start with 'stun:' or 'turn:' (got '%s')", u))
				continue
			}
			cfg.STUNURLs = append(cfg.STUNURLs, u)
		}
	}
	if len(cfg.STUNURLs) == 0 {
		cfg.STUNURLs = []string{defaultSTUNURL}
	}

	// Optional: OTEL_COLLECTOR_ADDR (required if OTEL_ENABLED=true)
	cfg.OtelEnabled = os.Getenv("OTEL_ENABLED") == "true"
	if cfg.OtelEnabled {
		cfg.OtelCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")
		if cfg.OtelCollectorAddr == "" {
			errors = append(errors, "OTEL_COLLECTOR_ADDR is required when OTEL_ENABLED=true")
		} else if !isValidHostPort(cfg.OtelCollectorAddr) {
			errors = append(errors, fmt.Sprintf("OTEL_COLLECTOR_ADDR must be in format 'host:port' (got '%s')", cfg.OtelCollectorAddr))
		}
	}

	// Optional: GO_ENV (defaults to "production")
	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"

	// Optional: ALLOWED_ORIGINS (comma-separated, defaults to the local frontend)
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("✅ Environment configuration validated successfully")
	slog.Info("Configuration",
		"port", cfg.Port,
		"database_path", cfg.DatabasePath,
		"session_ttl", cfg.SessionTTL.String(),
		"bcrypt_cost", cfg.BcryptCost,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"redis_password", redactSecret(cfg.RedisPassword),
		"stun_urls", strings.Join(cfg.STUNURLs, ","),
		"otel_enabled", cfg.OtelEnabled,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"allowed_origins", strings.Join(cfg.AllowedOrigins, ","),
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret redacts a secret, keeping only a hint that one is set
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
