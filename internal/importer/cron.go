package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/pasarmalam/internal/clock"
	"github.com/alanyoungcy/pasarmalam/internal/schedule"
)

// Cron is a parsed 5-field expression ("minute hour day-of-month month
// day-of-week") evaluated in civil time. When both day fields are
// restricted a day matching either one fires. Sunday is 0 or 7.
type Cron struct {
	sched cron.Schedule
	expr  string
}

// ParseCron parses expr.
func ParseCron(expr string) (Cron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return Cron{}, fmt.Errorf("importer: cron %q: want 5 fields, got %d", expr, len(fields))
	}
	fields[4] = sundaySeven(fields[4])
	sched, err := cron.ParseStandard(strings.Join(fields, " "))
	if err != nil {
		return Cron{}, fmt.Errorf("importer: cron %q: %w", expr, err)
	}
	return Cron{sched: sched, expr: expr}, nil
}

// sundaySeven rewrites 7 in a day-of-week field to 0, the only Sunday the
// parser knows.
func sundaySeven(field string) string {
	parts := strings.Split(field, ",")
	for i, part := range parts {
		switch {
		case part == "7":
			parts[i] = "0"
		case strings.HasSuffix(part, "-7"):
			if from := strings.TrimSuffix(part, "-7"); from == "7" {
				parts[i] = "0"
			} else {
				parts[i] = from + "-6,0"
			}
		}
	}
	return strings.Join(parts, ",")
}

// Next returns the first matching minute strictly after t. It reports false
// when the expression never fires.
func (c Cron) Next(t time.Time) (time.Time, bool) {
	next := c.sched.Next(t.In(schedule.Civil))
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

func (c Cron) String() string { return c.expr }

// Job is work triggered by a cron tick.
type Job func(ctx context.Context, at time.Time) error

// RunCron calls job at every tick of expr until ctx is done. Job errors are
// logged and do not stop the schedule.
func RunCron(ctx context.Context, expr string, clk clock.Clock, job Job, logger *slog.Logger) error {
	c, err := ParseCron(expr)
	if err != nil {
		return err
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	logger.InfoContext(ctx, "cron started", slog.String("cron", expr))

	for {
		next, ok := c.Next(clk.Now())
		if !ok {
			return fmt.Errorf("importer: cron %q never fires", expr)
		}
		wait := next.Sub(clk.Now())
		logger.DebugContext(ctx, "cron waiting",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.InfoContext(ctx, "cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := job(ctx, next); err != nil {
				logger.ErrorContext(ctx, "cron job failed", slog.String("error", err.Error()))
			}
		}
	}
}
