package listing

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey names an ordering.
type SortKey string

const (
	SortSmart    SortKey = "smart"
	SortName     SortKey = "name"
	SortState    SortKey = "state"
	SortSize     SortKey = "size"
	SortArea     SortKey = "area"
	SortDistance SortKey = "distance"
)

// Order flips a sort. Ascending is each key's natural direction, which for
// size and area is largest first.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseSortKey maps a request value to a key. Empty selects smart.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortSmart, nil
	case SortSmart, SortName, SortState, SortSize, SortArea, SortDistance:
		return k, nil
	default:
		return "", fmt.Errorf("listing: unknown sort key %q", s)
	}
}

// ParseOrder maps a request value to an order. Empty selects ascending.
func ParseOrder(s string) (Order, error) {
	switch o := Order(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Asc, nil
	case Asc, Desc:
		return o, nil
	default:
		return "", fmt.Errorf("listing: unknown sort order %q", s)
	}
}

type comparer func(a, b Entry) int

// Sort orders entries in place. The sort is stable: entries that compare
// equal keep their input order. When distance takes part in the ordering,
// entries without a known distance sort after the rest in either direction.
func Sort(entries []Entry, key SortKey, order Order, hasOrigin bool) {
	names := collate.New(language.Und, collate.IgnoreCase)
	byName := func(a, b Entry) int { return names.CompareString(a.Market.Name, b.Market.Name) }

	var (
		lead  comparer
		pin   bool
		tiers []comparer
	)
	switch key {
	case SortName:
		tiers = []comparer{byName}
	case SortState:
		tiers = []comparer{
			func(a, b Entry) int { return names.CompareString(a.Market.State, b.Market.State) },
			func(a, b Entry) int { return names.CompareString(a.Market.District, b.Market.District) },
		}
	case SortSize:
		tiers = []comparer{func(a, b Entry) int { return cmp.Compare(stalls(b), stalls(a)) }}
	case SortArea:
		tiers = []comparer{func(a, b Entry) int { return cmp.Compare(area(b), area(a)) }}
	case SortDistance:
		if hasOrigin {
			pin = true
			tiers = []comparer{byDistance}
		} else {
			tiers = []comparer{byName}
		}
	default:
		lead = byOpen
		if hasOrigin {
			pin = true
			tiers = append(tiers, byDistance)
		}
		tiers = append(tiers, byName)
	}

	sign := 1
	if order == Desc {
		sign = -1
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if lead != nil {
			if c := lead(a, b); c != 0 {
				return sign * c
			}
		}
		if pin {
			if c := unknownLast(a, b); c != 0 {
				return c
			}
		}
		for _, t := range tiers {
			if c := t(a, b); c != 0 {
				return sign * c
			}
		}
		return 0
	})
}

func byOpen(a, b Entry) int {
	switch {
	case a.Status.IsOpen() == b.Status.IsOpen():
		return 0
	case a.Status.IsOpen():
		return -1
	default:
		return 1
	}
}

func byDistance(a, b Entry) int {
	return cmp.Compare(a.Distance, b.Distance)
}

func unknownLast(a, b Entry) int {
	ai, bi := math.IsInf(a.Distance, 1), math.IsInf(b.Distance, 1)
	switch {
	case ai == bi:
		return 0
	case ai:
		return 1
	default:
		return -1
	}
}

func stalls(e Entry) int {
	if e.Market.TotalShop == nil {
		return 0
	}
	return *e.Market.TotalShop
}

func area(e Entry) float64 {
	if e.Market.AreaM2 == nil {
		return 0
	}
	return *e.Market.AreaM2
}
