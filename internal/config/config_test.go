package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "verbose"
	cfg.Postgres.Host = ""
	cfg.Redis.Addr = ""
	cfg.Site.BaseURL = "pasarmalam.app"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{`unknown mode "trade"`, `unknown log_level "verbose"`, "postgres: host", "redis: addr", "site: base_url"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateModeSpecificRules(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "import"
	cfg.Importer.Source = ""
	cfg.Server.Port = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "importer: source")
	assert.NotContains(t, err.Error(), "server: port", "import mode does not serve HTTP")

	cfg = Defaults()
	cfg.Snapshot.Enabled = true
	cfg.Snapshot.Cron = "@daily"
	cfg.S3.Bucket = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot: cron")
	assert.Contains(t, err.Error(), "s3: bucket")
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "full"

[importer]
source = "s3://datasets/markets.xlsx"
interval = "6h"

[server]
port = 9000
cors_origins = ["https://pasarmalam.app"]
`), 0o600))

	t.Setenv("PASARMALAM_SERVER_PORT", "9100")
	t.Setenv("PASARMALAM_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("PASARMALAM_REDIS_CACHE_TTL", "90s")
	t.Setenv("PASARMALAM_POSTGRES_PORT", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "s3://datasets/markets.xlsx", cfg.Importer.Source)
	assert.Equal(t, 6*time.Hour, cfg.Importer.Interval.Duration)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 90*time.Second, cfg.Redis.CacheTTL.Duration)
	assert.Equal(t, 5432, cfg.Postgres.Port, "unparseable override is ignored")
	assert.True(t, cfg.NeedsStorage())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "serve", cfg.Mode)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = \n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Server.AdminAPIKey = "admin-key"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Server.AdminAPIKey)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Empty(t, out.Notify.TelegramToken)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)

	out.Server.CORSOrigins[0] = "mutated"
	assert.Equal(t, "http://localhost:3000", cfg.Server.CORSOrigins[0])
}
