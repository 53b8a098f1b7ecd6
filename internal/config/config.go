package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the API binary reads from the environment.
type Config struct {
	DatabaseURL string
	JWTSecret   []byte
	Port        string
	CORSOrigin  string

	RateLimitWriteMax    int
	RateLimitWriteWindow time.Duration
}

// Load reads .env if present, then the environment. DATABASE_URL and
// JWT_SECRET are required; everything else has a default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Port:                 envOr("PORT", "8080"),
		CORSOrigin:           envOr("CORS_ORIGIN", "*"),
		RateLimitWriteMax:    envInt("RATE_LIMIT_WRITE_MAX", 60),
		RateLimitWriteWindow: time.Duration(envInt("RATE_LIMIT_WRITE_WINDOW_SECONDS", 60)) * time.Second,
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	cfg.JWTSecret = []byte(secret)

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
