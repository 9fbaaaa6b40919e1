// Package schedule answers "is this market open right now, and if not, when
// does it next open" from a market's weekly rules.
//
// All evaluation happens in the directory's civil time, a fixed UTC+8 offset
// with no daylight saving. Every function here is total: malformed input
// degrades to a well-defined answer instead of an error.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

// MinutesPerDay is the exclusive upper bound of a minute-of-day.
const MinutesPerDay = 24 * 60

// Civil is the civil timezone all schedules are written in.
var Civil = time.FixedZone("MYT", 8*60*60)

// Moment is an instant reduced to civil weekday and minute-of-day. Midnight
// keeps the civil date so absolute times can be rebuilt from minute offsets.
type Moment struct {
	Day      domain.Weekday
	Minute   int
	Midnight time.Time
}

// Normalize converts an instant to civil time. A zero t means now.
func Normalize(t time.Time) Moment {
	if t.IsZero() {
		t = time.Now()
	}
	local := t.In(Civil)
	y, mo, d := local.Date()
	return Moment{
		Day:      domain.Weekday(local.Weekday()),
		Minute:   local.Hour()*60 + local.Minute(),
		Midnight: time.Date(y, mo, d, 0, 0, 0, 0, Civil),
	}
}

// At returns the absolute instant dayOffset days after the moment's civil
// midnight plus minute minutes. The zone is fixed, so plain addition is exact.
func (m Moment) At(dayOffset, minute int) time.Time {
	return m.Midnight.Add(time.Duration(dayOffset*MinutesPerDay+minute) * time.Minute)
}

// ParseClock converts "HH:MM" to minutes after midnight, with "24:00" as
// MinutesPerDay. It is permissive: anything that is not two in-range
// integers separated by a colon yields 0.
// Use ValidClock to detect that case.
func ParseClock(s string) int {
	m, ok := parseClock(s)
	if !ok {
		return 0
	}
	return m
}

// ValidClock reports whether s is a well-formed "HH:MM" time.
func ValidClock(s string) bool {
	_, ok := parseClock(s)
	return ok
}

func parseClock(s string) (int, bool) {
	hh, mm, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, false
	}
	return h*60 + m, true
}

// FormatClock renders a minute-of-day as "HH:MM". 1440 renders as "24:00".
func FormatClock(minute int) string {
	h, m := minute/60, minute%60
	return twoDigits(h) + ":" + twoDigits(m)
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
