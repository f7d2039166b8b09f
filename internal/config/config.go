package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds the application configuration.
type Config struct {
	ServerPort       int
	AppEnv           string
	LogLevel         string
	DatabaseDriver   string // "sqlite" or "postgres"
	DatabaseURL      string
	JWTSecret        string
	TokenTTL         time.Duration
	AllowedOrigins   []string
	WSWriteTimeout   time.Duration // Upper bound for a single push to one viewer
	RoomsRequireAuth bool
	CloseSweepSpec   string // cron spec for the auction closer
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load loads configuration from environment variables or sets defaults.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Error loading .env file")
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	tokenTTL, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}

	writeTimeout, err := time.ParseDuration(getEnv("WS_WRITE_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	if writeTimeout <= 0 {
		return nil, fmt.Errorf("WS_WRITE_TIMEOUT must be positive")
	}

	roomsRequireAuth, err := strconv.ParseBool(getEnv("ROOMS_REQUIRE_AUTH", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid ROOMS_REQUIRE_AUTH: %w", err)
	}

	cfg := &Config{
		ServerPort:       port,
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabaseDriver:   getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:      getEnv("DATABASE_URL", "./bidhall.db"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		TokenTTL:         tokenTTL,
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		WSWriteTimeout:   writeTimeout,
		RoomsRequireAuth: roomsRequireAuth,
		CloseSweepSpec:   getEnv("CLOSE_SWEEP_SPEC", "@every 30s"),
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = "dev-secret-change-me"
		log.Warn().Msg("JWT_SECRET not set, using an insecure development secret")
	}

	return cfg, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
