// Package listing filters and orders a market collection for browsing.
//
// Run evaluates each market once per call (open status, distance from the
// caller) and then applies the filter predicates before sorting, so sort
// order never influences which markets are kept.
package listing

import (
	"math"
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
	"github.com/alanyoungcy/pasarmalam/internal/geo"
	"github.com/alanyoungcy/pasarmalam/internal/schedule"
)

// Entry is a market together with the values derived for one query.
type Entry struct {
	Market   domain.Market
	Ranges   []schedule.Range
	Status   schedule.Status
	Distance float64 // kilometres; +Inf when unknown
}

// DistanceKm returns the distance, or nil when it is unknown.
func (e Entry) DistanceKm() *float64 {
	if math.IsInf(e.Distance, 1) {
		return nil
	}
	d := e.Distance
	return &d
}

// Evaluate derives an Entry for m at the given moment. origin may be nil.
func Evaluate(m domain.Market, at schedule.Moment, origin *domain.Coordinate) Entry {
	ranges := schedule.Flatten(m.Schedule)
	e := Entry{
		Market:   m,
		Ranges:   ranges,
		Status:   schedule.Resolve(ranges, at),
		Distance: math.Inf(1),
	}
	if origin != nil {
		e.Distance = geo.MarketDistance(*origin, m)
	}
	return e
}

// Query is one browse request.
type Query struct {
	Filter Filter
	Sort   SortKey
	Order  Order
	Origin *domain.Coordinate
	Now    time.Time // zero means now
}

// Run filters markets and returns them in the requested order. The input
// slice is not modified.
func Run(markets []domain.Market, q Query) []Entry {
	at := schedule.Normalize(q.Now)
	entries := make([]Entry, 0, len(markets))
	for _, m := range markets {
		entries = append(entries, Evaluate(m, at, q.Origin))
	}
	kept := Apply(entries, q.Filter.Predicates()...)
	Sort(kept, q.Sort, q.Order, q.Origin != nil)
	return kept
}
