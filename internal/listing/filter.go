package listing

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

// Filter is the set of browse constraints. Zero values do not constrain.
type Filter struct {
	Search            string
	State             string
	District          string
	Day               *domain.Weekday
	Toilet            bool
	PrayerRoom        bool
	Parking           bool
	AccessibleParking bool
	OpenNow           bool
}

// Predicate keeps an entry when it returns true.
type Predicate func(Entry) bool

// Apply keeps the entries accepted by every predicate, preserving input
// order. Predicates are independent, so their order does not matter.
func Apply(entries []Entry, preds ...Predicate) []Entry {
	out := make([]Entry, 0, len(entries))
next:
	for _, e := range entries {
		for _, p := range preds {
			if !p(e) {
				continue next
			}
		}
		out = append(out, e)
	}
	return out
}

// Predicates expands the filter into its active predicates.
func (f Filter) Predicates() []Predicate {
	var preds []Predicate
	if q := strings.TrimSpace(f.Search); q != "" {
		preds = append(preds, MatchSearch(q))
	}
	if f.State != "" {
		preds = append(preds, InState(f.State))
	}
	if f.District != "" {
		preds = append(preds, InDistrict(f.District))
	}
	if f.Day != nil {
		preds = append(preds, OnDay(*f.Day))
	}
	if f.Toilet {
		preds = append(preds, func(e Entry) bool { return e.Market.Amenities.Toilet })
	}
	if f.PrayerRoom {
		preds = append(preds, func(e Entry) bool { return e.Market.Amenities.PrayerRoom })
	}
	if f.Parking {
		preds = append(preds, func(e Entry) bool { return e.Market.Parking.Available })
	}
	if f.AccessibleParking {
		preds = append(preds, func(e Entry) bool { return e.Market.Parking.Accessible })
	}
	if f.OpenNow {
		preds = append(preds, func(e Entry) bool { return e.Status.IsOpen() })
	}
	return preds
}

// MatchSearch matches q as a case-insensitive substring of the market's
// name, district, state or address.
func MatchSearch(q string) Predicate {
	fold := cases.Fold()
	needle := fold.String(q)
	return func(e Entry) bool {
		m := e.Market
		for _, field := range []string{m.Name, m.District, m.State, m.Address} {
			if strings.Contains(fold.String(field), needle) {
				return true
			}
		}
		return false
	}
}

func InState(state string) Predicate {
	return func(e Entry) bool { return e.Market.State == state }
}

func InDistrict(district string) Predicate {
	return func(e Entry) bool { return strings.EqualFold(e.Market.District, district) }
}

// OnDay keeps markets with an operating range on day. Overnight sessions
// count toward the day they spill into.
func OnDay(day domain.Weekday) Predicate {
	return func(e Entry) bool {
		for _, r := range e.Ranges {
			if r.Day == day {
				return true
			}
		}
		return false
	}
}
