// Package importer loads the market dataset from a spreadsheet, CSV or JSONL
// snapshot and syncs it into the store. Runs are serialised across instances
// with a distributed lock, and each run leaves a report on the import stream.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/pasarmalam/internal/clock"
	"github.com/alanyoungcy/pasarmalam/internal/domain"
	"github.com/alanyoungcy/pasarmalam/internal/metrics"
	"github.com/alanyoungcy/pasarmalam/internal/notify"
)

const (
	lockKey        = "importer"
	defaultLockTTL = 10 * time.Minute
)

// Syncer persists a parsed batch.
type Syncer interface {
	SyncMarkets(ctx context.Context, markets []domain.Market) error
}

// Options tune how the source is read.
type Options struct {
	Format  string // empty: from the source extension
	Sheet   string // xlsx only; empty: first sheet
	LockTTL time.Duration
}

// Importer runs dataset imports.
type Importer struct {
	source   Source
	format   Format
	sheet    string
	lockTTL  time.Duration
	markets  Syncer
	locks    domain.LockManager
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier *notify.Notifier
	clock    clock.Clock
	logger   *slog.Logger
}

// New creates an Importer. audit and notifier may be nil.
func New(
	source Source,
	opts Options,
	markets Syncer,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier *notify.Notifier,
	clk clock.Clock,
	logger *slog.Logger,
) (*Importer, error) {
	format, err := DetectFormat(source.Name(), opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Importer{
		source:   source,
		format:   format,
		sheet:    opts.Sheet,
		lockTTL:  opts.LockTTL,
		markets:  markets,
		locks:    locks,
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		clock:    clk,
		logger:   logger.With(slog.String("component", "importer")),
	}, nil
}

// Run performs one import. It returns domain.ErrLockHeld without a report
// when another run is in progress. Any other failure is recorded in the
// returned report as well as returned.
func (im *Importer) Run(ctx context.Context) (domain.ImportReport, error) {
	unlock, err := im.locks.Acquire(ctx, lockKey, im.lockTTL)
	if err != nil {
		return domain.ImportReport{}, fmt.Errorf("importer: acquire lock: %w", err)
	}
	defer unlock()

	report := domain.ImportReport{
		RunID:     uuid.NewString(),
		Source:    im.source.Name(),
		StartedAt: im.clock.Now().UTC(),
	}
	im.logger.InfoContext(ctx, "importer: run started",
		slog.String("run_id", report.RunID),
		slog.String("source", report.Source),
		slog.String("format", string(im.format)),
	)

	runErr := im.run(ctx, &report)
	if runErr != nil {
		report.Error = runErr.Error()
	}
	report.FinishedAt = im.clock.Now().UTC()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)

	im.record(ctx, report)
	return report, runErr
}

func (im *Importer) run(ctx context.Context, report *domain.ImportReport) error {
	rc, err := im.source.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	markets, warnings, rows, err := im.parse(rc)
	if err != nil {
		return err
	}
	markets, warnings = dedupeIDs(markets, warnings)

	report.Rows = rows
	report.Imported = len(markets)
	report.Skipped = rows - len(markets)
	for _, w := range warnings {
		im.logger.WarnContext(ctx, "importer: row problem",
			slog.Int("line", w.Line),
			slog.String("market_id", w.MarketID),
			slog.String("problem", w.Message),
		)
		report.Warnings = append(report.Warnings, w.String())
	}

	if err := im.markets.SyncMarkets(ctx, markets); err != nil {
		report.Imported = 0
		return fmt.Errorf("importer: sync: %w", err)
	}
	return nil
}

// parse returns the markets, the row problems and the number of data rows
// read.
func (im *Importer) parse(r io.Reader) ([]domain.Market, []Warning, int, error) {
	var (
		rows []Row
		err  error
	)
	switch im.format {
	case FormatJSONL:
		markets, err := ReadJSONL(r)
		if err != nil {
			return nil, nil, 0, err
		}
		var warnings []Warning
		for i, m := range markets {
			for _, p := range Validate(m) {
				warnings = append(warnings, Warning{Line: i + 1, MarketID: m.ID, Message: p})
			}
		}
		return markets, warnings, len(markets), nil
	case FormatXLSX:
		rows, err = ReadXLSX(r, im.sheet)
	default:
		rows, err = ReadCSV(r)
	}
	if err != nil {
		return nil, nil, 0, err
	}

	markets := make([]domain.Market, 0, len(rows))
	var warnings []Warning
	for _, row := range rows {
		m, ws, ok := ParseRow(row)
		warnings = append(warnings, ws...)
		if ok {
			markets = append(markets, m)
		}
	}
	return markets, warnings, len(rows), nil
}

// dedupeIDs keeps ids unique within a batch. A repeat takes its district as
// a suffix, or a counter when that is taken too.
func dedupeIDs(markets []domain.Market, warnings []Warning) ([]domain.Market, []Warning) {
	used := make(map[string]bool, len(markets))
	for i := range markets {
		id := markets[i].ID
		if !used[id] {
			used[id] = true
			continue
		}
		candidate := id
		if markets[i].District != "" {
			candidate = id + "-" + Slug(markets[i].District)
		}
		for n := 2; used[candidate]; n++ {
			candidate = id + "-" + strconv.Itoa(n)
		}
		warnings = append(warnings, Warning{
			MarketID: candidate,
			Message:  fmt.Sprintf("duplicate id %q renamed", id),
		})
		markets[i].ID = candidate
		used[candidate] = true
	}
	return markets, warnings
}

// record publishes the report to the stream, audit log, metrics and
// operators. Failures here are logged only.
func (im *Importer) record(ctx context.Context, report domain.ImportReport) {
	result := metrics.ResultSuccess
	if !report.OK() {
		result = metrics.ResultError
	}
	metrics.ImportRun(result, report.Imported, report.Skipped)

	if payload, err := json.Marshal(report); err == nil {
		if err := im.bus.StreamAppend(ctx, domain.StreamImportReports, payload); err != nil {
			im.logger.WarnContext(ctx, "importer: append report failed", slog.String("error", err.Error()))
		}
	}

	if im.audit != nil {
		if err := im.audit.Log(ctx, "import.run", map[string]any{
			"run_id":   report.RunID,
			"source":   report.Source,
			"rows":     report.Rows,
			"imported": report.Imported,
			"skipped":  report.Skipped,
			"warnings": len(report.Warnings),
			"error":    report.Error,
		}); err != nil {
			im.logger.WarnContext(ctx, "importer: audit log failed", slog.String("error", err.Error()))
		}
	}

	if err := im.notifier.ImportReport(ctx, report); err != nil {
		im.logger.WarnContext(ctx, "importer: notify failed", slog.String("error", err.Error()))
	}

	level := slog.LevelInfo
	if !report.OK() {
		level = slog.LevelError
	}
	im.logger.Log(ctx, level, "importer: run finished",
		slog.String("run_id", report.RunID),
		slog.Int("rows", report.Rows),
		slog.Int("imported", report.Imported),
		slog.Int("skipped", report.Skipped),
		slog.Int("warnings", len(report.Warnings)),
		slog.Duration("took", report.Duration),
		slog.String("error", report.Error),
	)
}

// RunLoop imports immediately and then every interval until ctx is done.
// Failed runs are logged and retried on the next tick.
func (im *Importer) RunLoop(ctx context.Context, interval time.Duration) error {
	im.runLogged(ctx)
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			im.logger.InfoContext(ctx, "importer: loop stopped")
			return ctx.Err()
		case <-ticker.C:
			im.runLogged(ctx)
		}
	}
}

func (im *Importer) runLogged(ctx context.Context) {
	if _, err := im.Run(ctx); err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			im.logger.InfoContext(ctx, "importer: another run holds the lock")
			return
		}
		if ctx.Err() == nil {
			im.logger.ErrorContext(ctx, "importer: run failed", slog.String("error", err.Error()))
		}
	}
}

// RecentReports returns up to count import reports, newest first.
func RecentReports(ctx context.Context, bus domain.SignalBus, count int) ([]domain.ImportReport, error) {
	msgs, err := bus.StreamRecent(ctx, domain.StreamImportReports, count)
	if err != nil {
		return nil, fmt.Errorf("importer: recent reports: %w", err)
	}
	reports := make([]domain.ImportReport, 0, len(msgs))
	for _, msg := range msgs {
		var r domain.ImportReport
		if err := json.Unmarshal(msg.Payload, &r); err != nil {
			continue
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// ReportLog reads import reports back from the stream.
type ReportLog struct {
	Bus domain.SignalBus
}

func (l ReportLog) Recent(ctx context.Context, count int) ([]domain.ImportReport, error) {
	return RecentReports(ctx, l.Bus, count)
}
