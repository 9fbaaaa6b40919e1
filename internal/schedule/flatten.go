package schedule

import "github.com/alanyoungcy/pasarmalam/internal/domain"

// Range is a half-open operating interval [Start, End) on a single weekday,
// in minutes after civil midnight. End > Start always holds.
type Range struct {
	Day   domain.Weekday `json:"day"`
	Start int            `json:"start"`
	End   int            `json:"end"`
}

// Contains reports whether the range covers minute on day.
func (r Range) Contains(day domain.Weekday, minute int) bool {
	return r.Day == day && r.Start <= minute && minute < r.End
}

// Flatten expands rules into single-day ranges, one per (rule, day, session)
// combination. A session whose end is earlier than its start runs past
// midnight and is split into a tail on its own day and a head on the next.
// An end of "00:00" after a later start means "until midnight", as does
// "24:00". A start of "24:00" is midnight at the head of the next day.
// Sessions with equal start and end cover nothing and are dropped, as are
// invalid days.
func Flatten(rules []domain.ScheduleRule) []Range {
	var out []Range
	for _, rule := range rules {
		for _, day := range rule.Days {
			if !day.Valid() {
				continue
			}
			for _, s := range rule.Times {
				d, start, end := day, ParseClock(s.Start), ParseClock(s.End)
				if start == MinutesPerDay {
					d, start = day.Next(), 0
					if end == MinutesPerDay {
						end = 0
					}
				}
				switch {
				case end > start:
					out = append(out, Range{Day: d, Start: start, End: end})
				case end == start:
				case end == 0:
					out = append(out, Range{Day: d, Start: start, End: MinutesPerDay})
				default:
					out = append(out,
						Range{Day: d, Start: start, End: MinutesPerDay},
						Range{Day: d.Next(), Start: 0, End: end},
					)
				}
			}
		}
	}
	return out
}

// Days returns the set of weekdays on which any range falls.
func Days(ranges []Range) map[domain.Weekday]bool {
	days := make(map[domain.Weekday]bool, 7)
	for _, r := range ranges {
		days[r.Day] = true
	}
	return days
}
