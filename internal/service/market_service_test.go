package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pasarmalam/internal/clock"
	"github.com/alanyoungcy/pasarmalam/internal/domain"
	"github.com/alanyoungcy/pasarmalam/internal/listing"
	"github.com/alanyoungcy/pasarmalam/internal/schedule"
)

// Friday 2026-10-16, 18:00 civil time.
var friday6pm = time.Date(2026, 10, 16, 18, 0, 0, 0, schedule.Civil)

func weekly(day domain.Weekday, start, end string) []domain.ScheduleRule {
	return []domain.ScheduleRule{{Days: []domain.Weekday{day}, Times: []domain.Session{{Start: start, End: end}}}}
}

func fixtureMarkets() []domain.Market {
	return []domain.Market{
		{
			ID: "pasar-malam-taman-connaught", Name: "Pasar Malam Taman Connaught",
			State: "Kuala Lumpur", District: "Cheras", Status: domain.MarketStatusActive,
			Schedule: weekly(domain.Wednesday, "17:00", "23:30"),
			Location: &domain.Location{Latitude: 3.0797, Longitude: 101.7390},
		},
		{
			ID: "pasar-malam-kuala-selangor", Name: "Pasar Malam Kuala Selangor",
			State: "Selangor", District: "Kuala Selangor", Status: domain.MarketStatusActive,
			Schedule: weekly(domain.Friday, "16:00", "22:00"),
			Location: &domain.Location{Latitude: 3.3406, Longitude: 101.2497},
		},
		{
			ID: "pasar-malam-ipoh-garden", Name: "Pasar Malam Ipoh Garden",
			State: "Perak", District: "Ipoh", Status: domain.MarketStatusActive,
			Schedule: weekly(domain.Friday, "17:00", "23:00"),
		},
		{
			ID: "pasar-malam-lama", Name: "Pasar Malam Lama",
			State: "Perak", District: "Taiping", Status: domain.MarketStatusInactive,
			Schedule: weekly(domain.Friday, "17:00", "23:00"),
		},
	}
}

type harness struct {
	svc   *MarketService
	store *fakeStore
	cache *fakeCache
	bus   *fakeBus
}

func newHarness(t *testing.T) harness {
	t.Helper()
	h := harness{
		store: newFakeStore(fixtureMarkets()...),
		cache: newFakeCache(),
		bus:   newFakeBus(),
	}
	h.svc = NewMarketService(h.store, h.cache, h.bus, nil, clock.NewFixed(friday6pm), discardLogger())
	return h
}

func entryIDs(entries []listing.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Market.ID
	}
	return out
}

func TestGetMarketFillsCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	m, err := h.svc.GetMarket(ctx, "pasar-malam-ipoh-garden")
	require.NoError(t, err)
	assert.Equal(t, "Pasar Malam Ipoh Garden", m.Name)

	delete(h.store.markets, "pasar-malam-ipoh-garden")
	m, err = h.svc.GetMarket(ctx, "pasar-malam-ipoh-garden")
	require.NoError(t, err, "second read is served from the cache")
	assert.Equal(t, "Perak", m.State)
}

func TestGetMarketNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.GetMarket(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestBrowseUsesActiveSetAndClock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	origin := domain.Coordinate{Latitude: 3.34, Longitude: 101.25}

	entries, err := h.svc.Browse(ctx, listing.Query{Origin: &origin})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"pasar-malam-kuala-selangor",
		"pasar-malam-ipoh-garden",
		"pasar-malam-taman-connaught",
	}, entryIDs(entries))
	assert.True(t, entries[0].Status.IsOpen())
	require.NotNil(t, entries[0].Status.ClosesAt)
	assert.True(t, entries[0].Status.ClosesAt.Equal(time.Date(2026, 10, 16, 22, 0, 0, 0, schedule.Civil)))

	_, err = h.svc.Browse(ctx, listing.Query{Sort: listing.SortName})
	require.NoError(t, err)
	assert.Equal(t, 1, h.store.listed, "active set is cached after the first browse")
}

func TestBrowseOpenNowFilter(t *testing.T) {
	h := newHarness(t)
	entries, err := h.svc.Browse(context.Background(), listing.Query{
		Filter: listing.Filter{OpenNow: true},
		Sort:   listing.SortName,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pasar-malam-ipoh-garden", "pasar-malam-kuala-selangor"}, entryIDs(entries))
}

func TestNearest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	origin := domain.Coordinate{Latitude: 3.08, Longitude: 101.74}

	entries, err := h.svc.Nearest(ctx, origin, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"pasar-malam-taman-connaught", "pasar-malam-kuala-selangor"}, entryIDs(entries),
		"markets without coordinates are left out")

	entries, err = h.svc.Nearest(ctx, origin, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = h.svc.Nearest(ctx, domain.Coordinate{Latitude: 91}, 1)
	assert.True(t, errors.Is(err, domain.ErrInvalidQuery))
}

func TestStatusAtInstant(t *testing.T) {
	h := newHarness(t)
	wed8pm := time.Date(2026, 10, 14, 20, 0, 0, 0, schedule.Civil)

	st, err := h.svc.Status(context.Background(), "pasar-malam-taman-connaught", wed8pm)
	require.NoError(t, err)
	assert.Equal(t, schedule.Open, st.State)
	assert.True(t, st.ClosesAt.Equal(time.Date(2026, 10, 14, 23, 30, 0, 0, schedule.Civil)))

	st, err = h.svc.Status(context.Background(), "pasar-malam-taman-connaught", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, schedule.Closed, st.State, "zero instant uses the service clock")
	assert.True(t, st.NextOpenAt.Equal(time.Date(2026, 10, 21, 17, 0, 0, 0, schedule.Civil)))
}

func TestDetailAddsRegionAndDirections(t *testing.T) {
	h := newHarness(t)
	d, err := h.svc.Detail(context.Background(), "pasar-malam-kuala-selangor", time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Selangor", d.Region)
	assert.Equal(t, "https://www.google.com/maps/dir/?api=1&destination=3.3406%2C101.2497", d.Directions)
	assert.True(t, d.Status.IsOpen())
	assert.Nil(t, d.DistanceKm())

	d, err = h.svc.Detail(context.Background(), "pasar-malam-ipoh-garden", time.Time{}, nil)
	require.NoError(t, err)
	assert.Empty(t, d.Region)
	assert.Empty(t, d.Directions)
}

func TestStatesAndDistricts(t *testing.T) {
	h := newHarness(t)
	states, err := h.svc.States(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Kuala Lumpur", "Perak", "Selangor"}, states)

	districts, err := h.svc.Districts(context.Background(), "Perak")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ipoh"}, districts, "inactive markets do not contribute districts")
}

func TestLocateRegion(t *testing.T) {
	h := newHarness(t)
	region, ok := h.svc.LocateRegion(domain.Coordinate{Latitude: 2.93, Longitude: 101.69})
	assert.True(t, ok)
	assert.Equal(t, "Putrajaya", region)

	_, ok = h.svc.LocateRegion(domain.Coordinate{Latitude: 120, Longitude: 0})
	assert.False(t, ok)
}

func TestSyncMarketsInvalidatesAndPublishes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Browse(ctx, listing.Query{})
	require.NoError(t, err)
	require.True(t, h.cache.hasActive)

	updated := fixtureMarkets()[0]
	updated.Name = "Pasar Malam Connaught"
	require.NoError(t, h.svc.SyncMarkets(ctx, []domain.Market{updated}))

	assert.False(t, h.cache.hasActive)
	assert.Contains(t, h.cache.invalidated, updated.ID)
	assert.Equal(t, []string{domain.ChannelMarketsUpdated}, h.bus.channels())

	m, err := h.svc.GetMarket(ctx, updated.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pasar Malam Connaught", m.Name)
}

func TestSyncMarketsRetiresMissingMarkets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fixtures := fixtureMarkets()
	require.NoError(t, h.svc.SyncMarkets(ctx, fixtures[1:3]))

	m, err := h.svc.GetMarket(ctx, "pasar-malam-taman-connaught")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusInactive, m.Status)
	assert.Contains(t, h.cache.invalidated, "pasar-malam-taman-connaught")
	assert.NotContains(t, h.cache.invalidated, "pasar-malam-lama", "already inactive")

	entries, err := h.svc.Browse(ctx, listing.Query{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pasar-malam-kuala-selangor", "pasar-malam-ipoh-garden"}, entryIDs(entries))

	_, err = h.svc.Detail(ctx, "pasar-malam-taman-connaught", time.Time{}, nil)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestInactiveMarketIsHiddenFromDetailAndStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Detail(ctx, "pasar-malam-lama", time.Time{}, nil)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = h.svc.Status(ctx, "pasar-malam-lama", time.Time{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	m, err := h.svc.GetMarket(ctx, "pasar-malam-lama")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusInactive, m.Status)
}

func TestSyncMarketsStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.store.batchErr = errors.New("conn reset")
	err := h.svc.SyncMarkets(context.Background(), fixtureMarkets()[:1])
	require.Error(t, err)
	assert.Empty(t, h.bus.channels())
	assert.NoError(t, h.svc.SyncMarkets(context.Background(), nil))
}

func TestWatchUpdatesRewarmsCache(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.svc.WatchUpdates(ctx) }()

	require.Eventually(t, func() bool {
		h.bus.mu.Lock()
		defer h.bus.mu.Unlock()
		return h.bus.subs[domain.ChannelMarketsUpdated] != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.bus.Publish(ctx, domain.ChannelMarketsUpdated, []byte(`{"count":1}`)))
	require.Eventually(t, func() bool {
		h.cache.mu.Lock()
		defer h.cache.mu.Unlock()
		return h.cache.hasActive && len(h.cache.active) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
