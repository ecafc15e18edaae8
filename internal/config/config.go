// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultJWTExpiresIn     = "24h"
	DefaultPGHost           = "127.0.0.1"
	DefaultPGPort           = 5432
	DefaultPGUser           = "postgres"
	DefaultPGDatabase       = "tenteen"
	DefaultPGSSLMode        = "disable"
	DefaultRedisAddr        = "127.0.0.1:6379"
	DefaultStorageBackend   = "local"
	DefaultLocalRoot        = "uploads"
	DefaultS3Prefix         = "tenteen"
	DefaultPresignTTL       = "1h"
	DefaultMaxUploadMB      = 50
	DefaultCoverMaxMB       = 5
	DefaultReaperSchedule   = "@every 6h"
	DefaultReaperGrace      = "1h"
	DefaultSettingsCacheTTL = "30s"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Storage  StorageConfig  `toml:"storage"`
	Upload   UploadConfig   `toml:"upload"`
	Reaper   ReaperConfig   `toml:"reaper"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AuthConfig holds JWT secret and token expiry (e.g. 24h).
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// RedisConfig holds the cache connection. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	DB       int    `toml:"db"`
	Password string `toml:"password"`
	CacheTTL string `toml:"cache_ttl"`
}

// StorageConfig selects the blob backend and carries per-backend settings.
type StorageConfig struct {
	Backend string             `toml:"backend"`
	Local   LocalStorageConfig `toml:"local"`
	S3      S3StorageConfig    `toml:"s3"`
}

// LocalStorageConfig holds the root directory of the local backend.
type LocalStorageConfig struct {
	Root string `toml:"root"`
}

// S3StorageConfig holds S3-compatible object store credentials and addressing.
type S3StorageConfig struct {
	Endpoint      string `toml:"endpoint"`
	Region        string `toml:"region"`
	Bucket        string `toml:"bucket"`
	AccessKey     string `toml:"access_key"`
	SecretKey     string `toml:"secret_key"`
	UseSSL        bool   `toml:"use_ssl"`
	PathStyle     bool   `toml:"path_style"`
	Prefix        string `toml:"prefix"`
	PublicBaseURL string `toml:"public_base_url"`
	PresignTTL    string `toml:"presign_ttl"`
}

// UploadConfig holds hard upload limits. The per-deployment policy (auto-approve,
// allowed formats, soft size limit) lives in the database, see internal/settings.
type UploadConfig struct {
	MaxUploadMB   int `toml:"max_upload_mb"`
	CoverMaxMB    int `toml:"cover_max_mb"`
	RatePerMinute int `toml:"rate_per_minute"`
}

// ReaperConfig holds the orphan blob sweep schedule (cron spec) and grace period.
type ReaperConfig struct {
	Schedule string `toml:"schedule"`
	Grace    string `toml:"grace"`
}

// MaxUploadBytes returns the hard audio upload ceiling in bytes.
func (c UploadConfig) MaxUploadBytes() int64 {
	mb := c.MaxUploadMB
	if mb <= 0 {
		mb = DefaultMaxUploadMB
	}
	return int64(mb) << 20
}

// CoverMaxBytes returns the cover image ceiling in bytes.
func (c UploadConfig) CoverMaxBytes() int64 {
	mb := c.CoverMaxMB
	if mb <= 0 {
		mb = DefaultCoverMaxMB
	}
	return int64(mb) << 20
}

// GraceDuration parses Grace, falling back to the default on empty or invalid input.
func (c ReaperConfig) GraceDuration() time.Duration {
	return parseDurationOr(c.Grace, DefaultReaperGrace)
}

// PresignDuration parses PresignTTL, falling back to the default on empty or invalid input.
func (c S3StorageConfig) PresignDuration() time.Duration {
	return parseDurationOr(c.PresignTTL, DefaultPresignTTL)
}

// CacheDuration parses CacheTTL, falling back to the default on empty or invalid input.
func (c RedisConfig) CacheDuration() time.Duration {
	return parseDurationOr(c.CacheTTL, DefaultSettingsCacheTTL)
}

func parseDurationOr(value, fallback string) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Redis: RedisConfig{
			Addr:     DefaultRedisAddr,
			CacheTTL: DefaultSettingsCacheTTL,
		},
		Storage: StorageConfig{
			Backend: DefaultStorageBackend,
			Local: LocalStorageConfig{
				Root: DefaultLocalRoot,
			},
			S3: S3StorageConfig{
				Prefix:     DefaultS3Prefix,
				PresignTTL: DefaultPresignTTL,
				UseSSL:     true,
			},
		},
		Upload: UploadConfig{
			MaxUploadMB: DefaultMaxUploadMB,
			CoverMaxMB:  DefaultCoverMaxMB,
		},
		Reaper: ReaperConfig{
			Schedule: DefaultReaperSchedule,
			Grace:    DefaultReaperGrace,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
