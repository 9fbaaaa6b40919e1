// Package config defines the service configuration and its validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file and may be
// overridden by PASARMALAM_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Importer ImporterConfig `toml:"importer"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Server   ServerConfig   `toml:"server"`
	Site     SiteConfig     `toml:"site"`
	Regions  RegionsConfig  `toml:"regions"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection and cache parameters.
type RedisConfig struct {
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	CacheTTL     duration `toml:"cache_ttl"`
	StreamMaxLen int64    `toml:"stream_max_len"`
}

// S3Config holds object storage parameters. Storage is optional; without it
// imports read local files and snapshots are disabled.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ImporterConfig controls the dataset import. Source is a local path or an
// "s3://key" object in the configured bucket; the format follows the file
// extension (.csv, .xlsx, .jsonl) unless Format is set.
type ImporterConfig struct {
	Source     string   `toml:"source"`
	Format     string   `toml:"format"`
	Sheet      string   `toml:"sheet"`
	Interval   duration `toml:"interval"`
	LockTTL    duration `toml:"lock_ttl"`
	RunOnStart bool     `toml:"run_on_start"`
}

// SnapshotConfig controls periodic JSONL exports of the directory.
type SnapshotConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
	Prefix  string `toml:"prefix"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	AdminAPIKey     string   `toml:"admin_api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateWindow      duration `toml:"rate_window"`
	ReadTimeout     duration `toml:"read_timeout"`
	WriteTimeout    duration `toml:"write_timeout"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// SiteConfig describes the public site the API backs.
type SiteConfig struct {
	BaseURL string `toml:"base_url"`
}

// RegionsConfig points at an optional YAML region table.
type RegionsConfig struct {
	File string `toml:"file"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration lets TOML carry strings such as "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config matching config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "pasarmalam",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MaxRetries:   3,
			CacheTTL:     duration{5 * time.Minute},
			StreamMaxLen: 1000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "pasarmalam",
			ForcePathStyle: true,
		},
		Importer: ImporterConfig{
			Source:  "dataset/markets.csv",
			LockTTL: duration{10 * time.Minute},
		},
		Snapshot: SnapshotConfig{
			Cron:   "0 4 * * *",
			Prefix: "snapshots/markets",
		},
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:3000"},
			RateLimit:       120,
			RateWindow:      duration{time.Minute},
			ReadTimeout:     duration{15 * time.Second},
			WriteTimeout:    duration{15 * time.Second},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Site: SiteConfig{
			BaseURL: "https://pasarmalam.app",
		},
		Notify: NotifyConfig{
			Events: []string{"import_completed", "import_failed", "snapshot_failed"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"serve":  true,
	"import": true,
	"full":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validFormats = map[string]bool{
	"":      true,
	"csv":   true,
	"xlsx":  true,
	"jsonl": true,
}

// NeedsStorage reports whether the configuration requires the object store.
func (c *Config) NeedsStorage() bool {
	return c.S3.Enabled || c.Snapshot.Enabled || strings.HasPrefix(c.Importer.Source, "s3://")
}

// Validate checks for invalid or missing values and returns one error
// describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, import, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if c.Redis.CacheTTL.Duration <= 0 {
		errs = append(errs, "redis: cache_ttl must be positive")
	}

	// S3
	if c.NeedsStorage() && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty when object storage is used")
	}

	// Importer
	if mode == "import" || mode == "full" {
		if strings.TrimSpace(c.Importer.Source) == "" {
			errs = append(errs, "importer: source must not be empty for mode "+mode)
		}
	}
	if !validFormats[strings.ToLower(c.Importer.Format)] {
		errs = append(errs, fmt.Sprintf("importer: unknown format %q (valid: csv, xlsx, jsonl)", c.Importer.Format))
	}
	if c.Importer.Interval.Duration < 0 {
		errs = append(errs, "importer: interval must not be negative")
	}
	if c.Importer.LockTTL.Duration <= 0 {
		errs = append(errs, "importer: lock_ttl must be positive")
	}

	// Snapshot
	if c.Snapshot.Enabled && len(strings.Fields(c.Snapshot.Cron)) != 5 {
		errs = append(errs, fmt.Sprintf("snapshot: cron must have 5 fields, got %q", c.Snapshot.Cron))
	}

	// Server
	if mode == "serve" || mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must not be negative")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive when rate_limit is set")
		}
	}

	// Site
	if u, err := url.Parse(c.Site.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("site: base_url must be an absolute URL, got %q", c.Site.BaseURL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
