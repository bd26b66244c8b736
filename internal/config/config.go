package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Bearer auth: either a comma separated list of static tokens,
	// an HMAC secret for JWTs, or both.
	StaticTokens string
	JWTSecret    string

	// Google Calendar OAuth2 client. Leaving these empty disables the
	// connect flow and the reconciler stays a no-op for every profile.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Outbound mail. Empty SMTPAddr routes notifications to the log.
	SMTPAddr string
	SMTPFrom string
	SMTPUser string
	SMTPPass string

	MigrationsPath string
	DigestEnabled  bool
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		Port:               os.Getenv("PORT"),
		Environment:        os.Getenv("ENV"),
		StaticTokens:       os.Getenv("STATIC_TOKENS"),
		JWTSecret:          os.Getenv("JWT_HMAC_SECRET"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		SMTPAddr:           os.Getenv("SMTP_ADDR"),
		SMTPFrom:           os.Getenv("SMTP_FROM"),
		SMTPUser:           os.Getenv("SMTP_USER"),
		SMTPPass:           os.Getenv("SMTP_PASS"),
		MigrationsPath:     os.Getenv("MIGRATIONS_PATH"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "migrations"
	}
	if v := os.Getenv("DIGEST_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DIGEST_ENABLED %q: %w", v, err)
		}
		cfg.DigestEnabled = enabled
	} else {
		cfg.DigestEnabled = true
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	return cfg, nil
}
