// Package notify delivers operator notifications about imports and
// snapshots to chat channels. Events can be filtered so operators only hear
// about the outcomes they care about.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

// Event names accepted in notify.events.
const (
	EventImportCompleted = "import_completed"
	EventImportFailed    = "import_failed"
	EventSnapshotFailed  = "snapshot_failed"
)

// Level marks how loud a message should be rendered.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Message is one notification.
type Message struct {
	Title string
	Body  string
	Level Level
}

// Sender is a single delivery channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Notifier fans a message out to every sender whose event passes the filter.
// A nil *Notifier is valid and drops everything.
type Notifier struct {
	senders  []Sender
	events   map[string]bool
	throttle domain.RateLimiter
	logger   *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Throttle paces deliveries per sender through limiter.Wait.
func (n *Notifier) Throttle(limiter domain.RateLimiter) {
	if n != nil {
		n.throttle = limiter
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify delivers msg when event is allowed. Every sender is attempted; the
// returned error joins the individual failures.
func (n *Notifier) Notify(ctx context.Context, event string, msg Message) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "notifier: event filtered", slog.String("event", event))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if n.throttle != nil {
			if err := n.throttle.Wait(ctx, "notify:"+s.Name()); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				continue
			}
		}
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "notifier: send failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ImportReport notifies the outcome of an import run.
func (n *Notifier) ImportReport(ctx context.Context, r domain.ImportReport) error {
	if r.OK() {
		return n.Notify(ctx, EventImportCompleted, ImportMessage(r))
	}
	return n.Notify(ctx, EventImportFailed, ImportMessage(r))
}

// SnapshotFailed notifies a failed directory snapshot.
func (n *Notifier) SnapshotFailed(ctx context.Context, at time.Time, err error) error {
	return n.Notify(ctx, EventSnapshotFailed, Message{
		Title: "Snapshot failed",
		Body:  fmt.Sprintf("Export at %s failed: %v", at.UTC().Format(time.RFC3339), err),
		Level: LevelError,
	})
}

// maxListedWarnings caps the warnings quoted in a message body.
const maxListedWarnings = 5

// ImportMessage renders an import report for chat.
func ImportMessage(r domain.ImportReport) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", r.Source)
	fmt.Fprintf(&b, "Rows: %d, imported: %d, skipped: %d\n", r.Rows, r.Imported, r.Skipped)
	fmt.Fprintf(&b, "Took: %s", r.Duration.Round(time.Millisecond))

	if !r.OK() {
		fmt.Fprintf(&b, "\nError: %s", r.Error)
		return Message{Title: "Import failed", Body: b.String(), Level: LevelError}
	}

	level := LevelInfo
	if len(r.Warnings) > 0 {
		level = LevelWarn
		fmt.Fprintf(&b, "\nWarnings: %d", len(r.Warnings))
		for i, w := range r.Warnings {
			if i == maxListedWarnings {
				fmt.Fprintf(&b, "\n  ... %d more", len(r.Warnings)-maxListedWarnings)
				break
			}
			fmt.Fprintf(&b, "\n  - %s", w)
		}
	}
	return Message{Title: "Import completed", Body: b.String(), Level: level}
}
