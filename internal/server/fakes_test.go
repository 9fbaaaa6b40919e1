package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
	"github.com/alanyoungcy/pasarmalam/internal/geo"
	"github.com/alanyoungcy/pasarmalam/internal/listing"
	"github.com/alanyoungcy/pasarmalam/internal/schedule"
	"github.com/alanyoungcy/pasarmalam/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDirectory answers market queries from an in-memory slice using the
// real listing engine.
type fakeDirectory struct {
	markets []domain.Market
	now     time.Time
	regions *geo.RegionTable
	err     error
}

func (f *fakeDirectory) Now() time.Time { return f.now }

func (f *fakeDirectory) Active(context.Context) ([]domain.Market, error) {
	return f.markets, f.err
}

func (f *fakeDirectory) Browse(_ context.Context, q listing.Query) ([]listing.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return listing.Run(f.markets, q), nil
}

func (f *fakeDirectory) Nearest(_ context.Context, origin domain.Coordinate, limit int) ([]listing.Entry, error) {
	entries := listing.Run(f.markets, listing.Query{Sort: listing.SortDistance, Origin: &origin, Now: f.now})
	var out []listing.Entry
	for _, e := range entries {
		if e.DistanceKm() != nil {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDirectory) find(id string) (domain.Market, error) {
	i := slices.IndexFunc(f.markets, func(m domain.Market) bool { return m.ID == id })
	if i < 0 {
		return domain.Market{}, domain.ErrNotFound
	}
	return f.markets[i], nil
}

func (f *fakeDirectory) Detail(_ context.Context, id string, at time.Time, origin *domain.Coordinate) (service.Detail, error) {
	m, err := f.find(id)
	if err != nil {
		return service.Detail{}, err
	}
	if at.IsZero() {
		at = f.now
	}
	d := service.Detail{Entry: listing.Evaluate(m, schedule.Normalize(at), origin)}
	if m.Location != nil {
		d.Directions = geo.DirectionsURL(m.Location.Coordinate(), origin)
		d.Region, _ = f.regions.Locate(m.Location.Coordinate())
	}
	return d, nil
}

func (f *fakeDirectory) Status(_ context.Context, id string, at time.Time) (schedule.Status, error) {
	m, err := f.find(id)
	if err != nil {
		return schedule.Status{}, err
	}
	return schedule.Evaluate(m.Schedule, at), nil
}

func (f *fakeDirectory) States(context.Context) ([]string, error) {
	var out []string
	for _, m := range f.markets {
		if !slices.Contains(out, m.State) {
			out = append(out, m.State)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (f *fakeDirectory) Districts(_ context.Context, state string) ([]string, error) {
	var out []string
	for _, m := range f.markets {
		if m.State == state && !slices.Contains(out, m.District) {
			out = append(out, m.District)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (f *fakeDirectory) LocateRegion(c domain.Coordinate) (string, bool) {
	return f.regions.Locate(c)
}

type fakeImporter struct {
	mu     sync.Mutex
	calls  int
	report domain.ImportReport
	err    error
}

func (f *fakeImporter) Run(ctx context.Context) (domain.ImportReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.report, f.err
}

type fakeReports struct {
	reports []domain.ImportReport
	asked   int
}

func (f *fakeReports) Recent(_ context.Context, count int) ([]domain.ImportReport, error) {
	f.asked = count
	return f.reports, nil
}

type fakeLimiter struct {
	mu      sync.Mutex
	allowed int
	keys    []string
	err     error
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if f.err != nil {
		return false, f.err
	}
	if f.allowed <= 0 {
		return false, nil
	}
	f.allowed--
	return true, nil
}

func (f *fakeLimiter) Wait(context.Context, string) error { return nil }

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

var errDown = errors.New("connection refused")

type fakeCatalog struct {
	markets []domain.Market
	query   domain.MarketQuery
}

func (f *fakeCatalog) List(_ context.Context, q domain.MarketQuery) ([]domain.Market, error) {
	f.query = q
	var out []domain.Market
	for _, m := range f.markets {
		if q.State != "" && m.State != q.State {
			continue
		}
		if q.Status != "" && m.Status != q.Status {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeCatalog) Count(context.Context) (int64, error) {
	return int64(len(f.markets)), nil
}

type fakeAudit struct {
	entries []domain.AuditEntry
	opts    domain.ListOpts
}

func (f *fakeAudit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	f.opts = opts
	return f.entries, nil
}
