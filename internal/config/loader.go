package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over Defaults, then applies .env and
// PASARMALAM_* overrides. A missing file is not an error: defaults plus the
// environment are used. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// .env is optional.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PASARMALAM_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.Host, "PASARMALAM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PASARMALAM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PASARMALAM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PASARMALAM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PASARMALAM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PASARMALAM_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PASARMALAM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PASARMALAM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PASARMALAM_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PASARMALAM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PASARMALAM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PASARMALAM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PASARMALAM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PASARMALAM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PASARMALAM_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "PASARMALAM_REDIS_CACHE_TTL")
	setInt64(&cfg.Redis.StreamMaxLen, "PASARMALAM_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PASARMALAM_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PASARMALAM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PASARMALAM_S3_REGION")
	setStr(&cfg.S3.Bucket, "PASARMALAM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PASARMALAM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PASARMALAM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PASARMALAM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PASARMALAM_S3_FORCE_PATH_STYLE")

	// ── Importer ──
	setStr(&cfg.Importer.Source, "PASARMALAM_IMPORTER_SOURCE")
	setStr(&cfg.Importer.Format, "PASARMALAM_IMPORTER_FORMAT")
	setStr(&cfg.Importer.Sheet, "PASARMALAM_IMPORTER_SHEET")
	setDuration(&cfg.Importer.Interval, "PASARMALAM_IMPORTER_INTERVAL")
	setDuration(&cfg.Importer.LockTTL, "PASARMALAM_IMPORTER_LOCK_TTL")
	setBool(&cfg.Importer.RunOnStart, "PASARMALAM_IMPORTER_RUN_ON_START")

	// ── Snapshot ──
	setBool(&cfg.Snapshot.Enabled, "PASARMALAM_SNAPSHOT_ENABLED")
	setStr(&cfg.Snapshot.Cron, "PASARMALAM_SNAPSHOT_CRON")
	setStr(&cfg.Snapshot.Prefix, "PASARMALAM_SNAPSHOT_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "PASARMALAM_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PASARMALAM_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminAPIKey, "PASARMALAM_SERVER_ADMIN_API_KEY")
	setInt(&cfg.Server.RateLimit, "PASARMALAM_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "PASARMALAM_SERVER_RATE_WINDOW")

	// ── Site / regions ──
	setStr(&cfg.Site.BaseURL, "PASARMALAM_SITE_BASE_URL")
	setStr(&cfg.Regions.File, "PASARMALAM_REGIONS_FILE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PASARMALAM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PASARMALAM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PASARMALAM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PASARMALAM_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PASARMALAM_MODE")
	setStr(&cfg.LogLevel, "PASARMALAM_LOG_LEVEL")
}

// Typed env helpers. Each leaves dst untouched when the variable is unset,
// empty or unparseable.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
