package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
	"github.com/alanyoungcy/pasarmalam/internal/metrics"
	"github.com/alanyoungcy/pasarmalam/internal/notify"
)

// SnapshotJob exports the directory on a cron tick.
type SnapshotJob struct {
	snapshotter domain.Snapshotter
	notifier    *notify.Notifier
	logger      *slog.Logger
}

func NewSnapshotJob(snapshotter domain.Snapshotter, notifier *notify.Notifier, logger *slog.Logger) *SnapshotJob {
	return &SnapshotJob{
		snapshotter: snapshotter,
		notifier:    notifier,
		logger:      logger.With(slog.String("component", "snapshot")),
	}
}

// Run writes one snapshot stamped at.
func (j *SnapshotJob) Run(ctx context.Context, at time.Time) error {
	path, count, err := j.snapshotter.SnapshotMarkets(ctx, at)
	if err != nil {
		metrics.SnapshotRun(metrics.ResultError)
		if nerr := j.notifier.SnapshotFailed(ctx, at, err); nerr != nil {
			j.logger.WarnContext(ctx, "snapshot: notify failed", slog.String("error", nerr.Error()))
		}
		return fmt.Errorf("snapshot: %w", err)
	}
	metrics.SnapshotRun(metrics.ResultSuccess)
	j.logger.InfoContext(ctx, "snapshot: written",
		slog.String("path", path),
		slog.Int("markets", count),
	)
	return nil
}

// Schedule runs the job on expr until ctx is done.
func (j *SnapshotJob) Schedule(ctx context.Context, expr string) error {
	return RunCron(ctx, expr, nil, j.Run, j.logger)
}
