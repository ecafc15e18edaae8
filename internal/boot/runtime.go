// Package boot provides runtime configuration derived from config.Config and the environment.
package boot

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tenteen/tenteen/internal/config"
)

// RuntimeConfig holds parsed runtime settings (JWT, server address, database URL).
// Values may be overridden by environment variables (e.g. HTTP_ADDR, DATABASE_URL).
type RuntimeConfig struct {
	JwtSecret    string
	JwtExpiresIn time.Duration
	ServerAddr   string
	DatabaseURL  string
}

// LoadDotEnv loads a .env file from the working directory when present.
// Existing environment variables win over values in the file.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides storage and credential settings in cfg from the environment.
// It covers the settings operators usually inject as secrets rather than commit to TOML.
func ApplyEnv(cfg *config.Config) {
	if value := os.Getenv("JWT_SECRET"); value != "" {
		cfg.Auth.JWTSecret = value
	}
	if value := os.Getenv("STORAGE_BACKEND"); value != "" {
		cfg.Storage.Backend = strings.TrimSpace(value)
	}
	if value := os.Getenv("UPLOAD_DIR"); value != "" {
		cfg.Storage.Local.Root = value
	}
	if value := os.Getenv("S3_ENDPOINT"); value != "" {
		cfg.Storage.S3.Endpoint = value
	}
	if value := os.Getenv("S3_REGION"); value != "" {
		cfg.Storage.S3.Region = value
	}
	if value := os.Getenv("S3_BUCKET"); value != "" {
		cfg.Storage.S3.Bucket = value
	}
	if value := os.Getenv("S3_ACCESS_KEY"); value != "" {
		cfg.Storage.S3.AccessKey = value
	}
	if value := os.Getenv("S3_SECRET_KEY"); value != "" {
		cfg.Storage.S3.SecretKey = value
	}
	if value := os.Getenv("S3_PUBLIC_BASE_URL"); value != "" {
		cfg.Storage.S3.PublicBaseURL = value
	}
	if value := os.Getenv("REDIS_ADDR"); value != "" {
		cfg.Redis.Addr = value
	}
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}

	jwtExpiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("invalid jwt expires in: %w", err)
	}

	ret := &RuntimeConfig{
		JwtSecret:    cfg.Auth.JWTSecret,
		JwtExpiresIn: jwtExpiresIn,
		ServerAddr:   cfg.Server.Addr,
	}

	if value := os.Getenv("HTTP_ADDR"); value != "" {
		ret.ServerAddr = value
	}

	if value := os.Getenv("DATABASE_URL"); value != "" {
		ret.DatabaseURL = value
	}
	return ret, nil
}
