package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/pasarmalam/internal/importer"
	"github.com/alanyoungcy/pasarmalam/internal/server"
	"github.com/alanyoungcy/pasarmalam/internal/server/handler"
)

// ServeMode runs the HTTP API and keeps the active-market cache in step
// with imports published by other processes.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	a.startCacheWatcher(ctx, g, deps)
	return g.Wait()
}

// ImportMode imports the dataset once, or on every importer interval when
// one is set.
func (a *App) ImportMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting import mode",
		slog.String("source", a.cfg.Importer.Source),
		slog.Duration("interval", a.cfg.Importer.Interval.Duration),
	)
	if deps.Importer == nil {
		return errors.New("app: import mode needs importer.source")
	}
	if a.cfg.Importer.Interval.Duration <= 0 {
		_, err := deps.Importer.Run(ctx)
		return err
	}
	return deps.Importer.RunLoop(ctx, a.cfg.Importer.Interval.Duration)
}

// FullMode runs the API, the periodic importer and the snapshot schedule in
// one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	a.startCacheWatcher(ctx, g, deps)

	if deps.Importer != nil && (a.cfg.Importer.RunOnStart || a.cfg.Importer.Interval.Duration > 0) {
		g.Go(func() error {
			err := deps.Importer.RunLoop(ctx, a.cfg.Importer.Interval.Duration)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if a.cfg.Snapshot.Enabled && deps.Snapshotter != nil {
		job := importer.NewSnapshotJob(deps.Snapshotter, deps.Notifier, a.logger)
		g.Go(func() error {
			err := job.Schedule(ctx, a.cfg.Snapshot.Cron)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	srv := server.NewServer(a.serverConfig(), a.handlers(deps), deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startCacheWatcher warms the active-market cache and re-warms it whenever
// an import announces new data.
func (a *App) startCacheWatcher(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if err := deps.Markets.Warm(ctx); err != nil {
		a.logger.WarnContext(ctx, "initial cache warm failed", slog.String("error", err.Error()))
	}
	g.Go(func() error {
		err := deps.Markets.WatchUpdates(ctx)
		if err != nil && ctx.Err() == nil {
			// A lost subscription degrades to TTL expiry; keep serving.
			a.logger.ErrorContext(ctx, "market update watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})
}

func (a *App) serverConfig() server.Config {
	s := a.cfg.Server
	return server.Config{
		Port:         s.Port,
		CORSOrigins:  s.CORSOrigins,
		AdminAPIKey:  s.AdminAPIKey,
		RateLimit:    s.RateLimit,
		RateWindow:   s.RateWindow.Duration,
		ReadTimeout:  s.ReadTimeout.Duration,
		WriteTimeout: s.WriteTimeout.Duration,
	}
}

func (a *App) handlers(deps *Dependencies) server.Handlers {
	h := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Checks, a.logger),
		Markets:   handler.NewMarketHandler(deps.Markets, a.logger),
		Directory: handler.NewDirectoryHandler(deps.Markets, a.logger),
		Sitemap:   handler.NewSitemapHandler(deps.Markets, a.cfg.Site.BaseURL, a.logger),
	}
	var runner handler.ImportRunner
	if deps.Importer != nil {
		runner = deps.Importer
	}
	h.Admin = handler.NewAdminHandler(
		runner, importer.ReportLog{Bus: deps.SignalBus}, deps.MarketStore, deps.AuditStore, a.logger,
	)
	return h
}
