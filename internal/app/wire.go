package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/pasarmalam/internal/blob/s3"
	"github.com/alanyoungcy/pasarmalam/internal/cache/redis"
	"github.com/alanyoungcy/pasarmalam/internal/clock"
	"github.com/alanyoungcy/pasarmalam/internal/config"
	"github.com/alanyoungcy/pasarmalam/internal/domain"
	"github.com/alanyoungcy/pasarmalam/internal/geo"
	"github.com/alanyoungcy/pasarmalam/internal/importer"
	"github.com/alanyoungcy/pasarmalam/internal/notify"
	"github.com/alanyoungcy/pasarmalam/internal/server/handler"
	"github.com/alanyoungcy/pasarmalam/internal/service"
	"github.com/alanyoungcy/pasarmalam/internal/store/postgres"
)

// Dependencies bundles what the modes need. It is built by Wire and torn
// down by the cleanup function Wire returns.
type Dependencies struct {
	MarketStore domain.MarketStore
	AuditStore  domain.AuditStore

	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Nil unless object storage is configured.
	BlobReader  domain.BlobReader
	Snapshotter domain.Snapshotter

	Regions  *geo.RegionTable
	Notifier *notify.Notifier
	Clock    clock.Clock

	Markets  *service.MarketService
	Importer *importer.Importer // nil when the source cannot be opened

	// Health checks keyed by dependency name.
	Checks map[string]handler.Pinger
}

// Wire connects to Postgres, Redis and, when configured, S3, and builds the
// services on top of them.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Clock:  clock.NewSystem(),
		Checks: make(map[string]handler.Pinger),
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
		AppName:  "pasarmalam",
	})
	if err != nil {
		return fail(fmt.Errorf("wire: postgres: %w", err))
	}
	closers = append(closers, pgClient.Close)
	deps.Checks["postgres"] = pgClient

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			return fail(fmt.Errorf("wire: postgres migrations: %w", err))
		}
	}
	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: redis: %w", err))
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Checks["redis"] = redisClient

	deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Redis.CacheTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)

	// --- S3 (optional) ---
	if cfg.NeedsStorage() {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Checks["s3"] = pingFunc(s3Client.Health)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Snapshotter = s3blob.NewMarketSnapshotter(
			s3blob.NewWriter(s3Client), deps.MarketStore, deps.AuditStore, cfg.Snapshot.Prefix,
		)
	}

	// --- Regions ---
	deps.Regions = geo.DefaultRegions()
	if cfg.Regions.File != "" {
		table, err := geo.LoadRegions(cfg.Regions.File)
		if err != nil {
			return fail(fmt.Errorf("wire: regions: %w", err))
		}
		deps.Regions = table
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	deps.Notifier.Throttle(deps.RateLimiter)

	// --- Services ---
	deps.Markets = service.NewMarketService(
		deps.MarketStore, deps.MarketCache, deps.SignalBus, deps.Regions, deps.Clock, logger,
	)

	if cfg.Importer.Source != "" {
		src, err := importer.NewSource(cfg.Importer.Source, deps.BlobReader)
		if err != nil {
			return fail(fmt.Errorf("wire: import source: %w", err))
		}
		deps.Importer, err = importer.New(src, importer.Options{
			Format:  cfg.Importer.Format,
			Sheet:   cfg.Importer.Sheet,
			LockTTL: cfg.Importer.LockTTL.Duration,
		}, deps.Markets, deps.LockManager, deps.SignalBus, deps.AuditStore, deps.Notifier, deps.Clock, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: importer: %w", err))
		}
	}

	return deps, cleanup, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
