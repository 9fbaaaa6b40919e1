package schedule

import (
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

// State is the open/closed verdict.
type State string

const (
	Open   State = "open"
	Closed State = "closed"
)

// Status is the answer for one market at one moment. ClosesAt is set only
// when open; NextOpenAt only when closed and some session exists.
type Status struct {
	State      State      `json:"status"`
	ClosesAt   *time.Time `json:"closes_at,omitempty"`
	NextOpenAt *time.Time `json:"next_open_at,omitempty"`
}

// IsOpen reports whether the status is open.
func (s Status) IsOpen() bool {
	return s.State == Open
}

// horizonDays bounds the forward scan for the next opening. Seven days plus
// today covers a market that opens once a week at an earlier minute than now.
const horizonDays = 7

// Resolve decides open/closed for m against pre-flattened ranges.
//
// When several ranges cover the moment, the earliest end wins so the reported
// closing time is never later than the one that actually applies. When
// closed, the earliest start at or after the moment within the horizon wins.
func Resolve(ranges []Range, m Moment) Status {
	closing := -1
	for _, r := range ranges {
		if r.Contains(m.Day, m.Minute) && (closing < 0 || r.End < closing) {
			closing = r.End
		}
	}
	if closing >= 0 {
		at := m.At(0, closing)
		return Status{State: Open, ClosesAt: &at}
	}

	best := -1
	for _, r := range ranges {
		delta := (int(r.Day) - int(m.Day) + 7) % 7
		offset := delta*MinutesPerDay + r.Start - m.Minute
		if offset < 0 {
			// Already started today; its next occurrence is a week out.
			offset += horizonDays * MinutesPerDay
		}
		if best < 0 || offset < best {
			best = offset
		}
	}
	if best < 0 {
		return Status{State: Closed}
	}
	next := m.At(0, m.Minute+best)
	return Status{State: Closed, NextOpenAt: &next}
}

// Evaluate flattens rules and resolves them at t. A zero t means now.
func Evaluate(rules []domain.ScheduleRule, t time.Time) Status {
	return Resolve(Flatten(rules), Normalize(t))
}

// Evaluator caches flattened ranges for one schedule so repeated evaluation
// at different instants skips the expansion step.
type Evaluator struct {
	ranges []Range
}

// NewEvaluator flattens rules once.
func NewEvaluator(rules []domain.ScheduleRule) Evaluator {
	return Evaluator{ranges: Flatten(rules)}
}

// At resolves the cached ranges at t.
func (e Evaluator) At(t time.Time) Status {
	return Resolve(e.ranges, Normalize(t))
}

// Ranges returns the flattened ranges.
func (e Evaluator) Ranges() []Range {
	return e.ranges
}
