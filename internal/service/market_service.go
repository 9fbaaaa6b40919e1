// Package service holds the application logic between the HTTP handlers and
// the storage adapters.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/clock"
	"github.com/alanyoungcy/pasarmalam/internal/domain"
	"github.com/alanyoungcy/pasarmalam/internal/geo"
	"github.com/alanyoungcy/pasarmalam/internal/listing"
	"github.com/alanyoungcy/pasarmalam/internal/metrics"
	"github.com/alanyoungcy/pasarmalam/internal/schedule"
)

// DefaultNearestLimit is used when Nearest is called without a limit.
const DefaultNearestLimit = 10

// MarketService serves the directory from the store through the cache and
// runs the schedule engine against the service clock.
type MarketService struct {
	markets domain.MarketStore
	cache   domain.MarketCache
	bus     domain.SignalBus
	regions *geo.RegionTable
	clock   clock.Clock
	logger  *slog.Logger
}

// NewMarketService creates a MarketService. regions defaults to the built-in
// table and clk to the system clock.
func NewMarketService(
	markets domain.MarketStore,
	cache domain.MarketCache,
	bus domain.SignalBus,
	regions *geo.RegionTable,
	clk clock.Clock,
	logger *slog.Logger,
) *MarketService {
	if regions == nil {
		regions = geo.DefaultRegions()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &MarketService{
		markets: markets,
		cache:   cache,
		bus:     bus,
		regions: regions,
		clock:   clk,
		logger:  logger.With(slog.String("component", "market_service")),
	}
}

// Now returns the service clock reading.
func (s *MarketService) Now() time.Time {
	return s.clock.Now()
}

// GetMarket returns one market, checking the cache before the store.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.cache.Get(ctx, id)
	if err == nil {
		metrics.CacheLookup("market", true)
		return m, nil
	}
	metrics.CacheLookup("market", false)
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "market_service: cache get failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}

	m, err = s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}

	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
	return m, nil
}

// listed returns a market only while it is active. Retired markets read as
// not found on the public surface.
func (s *MarketService) listed(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}
	if m.Status != domain.MarketStatusActive {
		return domain.Market{}, fmt.Errorf("market_service: %q is %s: %w", id, m.Status, domain.ErrNotFound)
	}
	return m, nil
}

// Active returns every active market, from the cache when possible.
func (s *MarketService) Active(ctx context.Context) ([]domain.Market, error) {
	markets, err := s.cache.GetActive(ctx)
	if err == nil {
		metrics.CacheLookup("active", true)
		return markets, nil
	}
	metrics.CacheLookup("active", false)
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "market_service: active cache get failed",
			slog.String("error", err.Error()),
		)
	}
	return s.loadActive(ctx)
}

func (s *MarketService) loadActive(ctx context.Context) ([]domain.Market, error) {
	markets, err := s.markets.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service: list active: %w", err)
	}
	if err := s.cache.SetActive(ctx, markets); err != nil {
		s.logger.WarnContext(ctx, "market_service: active cache set failed",
			slog.String("error", err.Error()),
		)
	}
	return markets, nil
}

// Browse runs the filter/sort pipeline over the active set. A zero q.Now is
// replaced by the service clock.
func (s *MarketService) Browse(ctx context.Context, q listing.Query) ([]listing.Entry, error) {
	markets, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	if q.Now.IsZero() {
		q.Now = s.clock.Now()
	}
	entries := listing.Run(markets, q)
	if q.Filter == (listing.Filter{}) {
		metrics.SetOpenMarkets(countOpen(entries))
	}
	return entries, nil
}

// Nearest returns up to limit located markets ordered by distance from
// origin.
func (s *MarketService) Nearest(ctx context.Context, origin domain.Coordinate, limit int) ([]listing.Entry, error) {
	if !geo.ValidCoordinate(origin) {
		return nil, fmt.Errorf("market_service: nearest: %w: coordinate out of range", domain.ErrInvalidQuery)
	}
	if limit <= 0 {
		limit = DefaultNearestLimit
	}
	entries, err := s.Browse(ctx, listing.Query{
		Sort:   listing.SortDistance,
		Order:  listing.Asc,
		Origin: &origin,
	})
	if err != nil {
		return nil, err
	}
	entries = listing.Apply(entries, located)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func located(e listing.Entry) bool {
	return !math.IsInf(e.Distance, 1)
}

// Detail is a market evaluated for a detail page.
type Detail struct {
	listing.Entry
	Region     string
	Directions string
}

// Detail evaluates one market at the given instant (zero means now). origin
// is optional and feeds both the distance and the directions link.
func (s *MarketService) Detail(ctx context.Context, id string, at time.Time, origin *domain.Coordinate) (Detail, error) {
	m, err := s.listed(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if at.IsZero() {
		at = s.clock.Now()
	}
	d := Detail{Entry: listing.Evaluate(m, schedule.Normalize(at), origin)}
	if m.Location != nil {
		c := m.Location.Coordinate()
		d.Directions = geo.DirectionsURL(c, origin)
		d.Region, _ = s.regions.Locate(c)
	}
	return d, nil
}

// Status resolves whether the market is open at the given instant.
func (s *MarketService) Status(ctx context.Context, id string, at time.Time) (schedule.Status, error) {
	m, err := s.listed(ctx, id)
	if err != nil {
		return schedule.Status{}, err
	}
	if at.IsZero() {
		at = s.clock.Now()
	}
	return schedule.Evaluate(m.Schedule, at), nil
}

// States lists the distinct states that have at least one active market.
func (s *MarketService) States(ctx context.Context) ([]string, error) {
	states, err := s.markets.DistinctStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service: states: %w", err)
	}
	return states, nil
}

// Districts lists the distinct districts of a state.
func (s *MarketService) Districts(ctx context.Context, state string) ([]string, error) {
	districts, err := s.markets.DistinctDistricts(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("market_service: districts of %q: %w", state, err)
	}
	return districts, nil
}

// LocateRegion guesses the state containing c.
func (s *MarketService) LocateRegion(c domain.Coordinate) (string, bool) {
	if !geo.ValidCoordinate(c) {
		return "", false
	}
	return s.regions.Locate(c)
}

// SyncMarkets makes markets the full directory: it upserts them, deactivates
// active markets absent from the set, drops the affected cache entries and
// announces the change so other instances refresh.
func (s *MarketService) SyncMarkets(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}
	if err := s.markets.UpsertBatch(ctx, markets); err != nil {
		return fmt.Errorf("market_service: upsert batch: %w", err)
	}

	ids := make([]string, len(markets))
	for i, m := range markets {
		ids[i] = m.ID
	}
	retired, err := s.markets.DeactivateExcept(ctx, ids)
	if err != nil {
		return fmt.Errorf("market_service: deactivate missing: %w", err)
	}
	if len(retired) > 0 {
		s.logger.InfoContext(ctx, "market_service: deactivated missing markets",
			slog.Int("count", len(retired)),
			slog.Any("market_ids", retired),
		)
	}

	for _, id := range append(ids, retired...) {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "market_service: cache invalidate failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.cache.InvalidateActive(ctx); err != nil {
		s.logger.WarnContext(ctx, "market_service: active cache invalidate failed",
			slog.String("error", err.Error()),
		)
	}

	payload, _ := json.Marshal(updateNotice{Count: len(markets), At: s.clock.Now().UTC()})
	if err := s.bus.Publish(ctx, domain.ChannelMarketsUpdated, payload); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish update failed",
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "market_service: synced markets", slog.Int("count", len(markets)))
	return nil
}

type updateNotice struct {
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

// Warm loads the active set into the cache.
func (s *MarketService) Warm(ctx context.Context) error {
	markets, err := s.loadActive(ctx)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "market_service: cache warmed", slog.Int("count", len(markets)))
	return nil
}

// WatchUpdates re-warms the cache whenever an import announces new data. It
// blocks until ctx is done.
func (s *MarketService) WatchUpdates(ctx context.Context) error {
	updates, err := s.bus.Subscribe(ctx, domain.ChannelMarketsUpdated)
	if err != nil {
		return fmt.Errorf("market_service: watch updates: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			var n updateNotice
			_ = json.Unmarshal(payload, &n)
			s.logger.DebugContext(ctx, "market_service: update received", slog.Int("count", n.Count))
			if err := s.Warm(ctx); err != nil {
				s.logger.ErrorContext(ctx, "market_service: re-warm failed", slog.String("error", err.Error()))
			}
		}
	}
}

func countOpen(entries []listing.Entry) int {
	n := 0
	for _, e := range entries {
		if e.Status.IsOpen() {
			n++
		}
	}
	return n
}
