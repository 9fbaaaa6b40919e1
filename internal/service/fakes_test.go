package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	mu       sync.Mutex
	markets  map[string]domain.Market
	listed   int
	batchErr error
}

func newFakeStore(markets ...domain.Market) *fakeStore {
	s := &fakeStore{markets: map[string]domain.Market{}}
	for _, m := range markets {
		s.markets[m.ID] = m
	}
	return s
}

func (s *fakeStore) Upsert(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = m
	return nil
}

func (s *fakeStore) UpsertBatch(ctx context.Context, ms []domain.Market) error {
	if s.batchErr != nil {
		return s.batchErr
	}
	for _, m := range ms {
		_ = s.Upsert(ctx, m)
	}
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *fakeStore) sorted() []domain.Market {
	out := make([]domain.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeStore) List(_ context.Context, q domain.MarketQuery) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.sorted() {
		if q.State != "" && m.State != q.State {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeStore) ListActive(_ context.Context) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listed++
	var out []domain.Market
	for _, m := range s.sorted() {
		if m.Status == domain.MarketStatusActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) DistinctStates(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	active, _ := s.ListActive(ctx)
	for _, m := range active {
		if !seen[m.State] {
			seen[m.State] = true
			out = append(out, m.State)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeStore) DistinctDistricts(ctx context.Context, state string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	active, _ := s.ListActive(ctx)
	for _, m := range active {
		if m.State == state && !seen[m.District] {
			seen[m.District] = true
			out = append(out, m.District)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeStore) DeactivateExcept(_ context.Context, keep []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := map[string]bool{}
	for _, id := range keep {
		kept[id] = true
	}
	var changed []string
	for _, m := range s.sorted() {
		if m.Status == domain.MarketStatusActive && !kept[m.ID] {
			m.Status = domain.MarketStatusInactive
			s.markets[m.ID] = m
			changed = append(changed, m.ID)
		}
	}
	return changed, nil
}

func (s *fakeStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.markets)), nil
}

type fakeCache struct {
	mu          sync.Mutex
	markets     map[string]domain.Market
	active      []domain.Market
	hasActive   bool
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{markets: map[string]domain.Market{}}
}

func (c *fakeCache) Set(_ context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markets[m.ID] = m
	return nil
}

func (c *fakeCache) Get(_ context.Context, id string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markets, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

func (c *fakeCache) SetActive(_ context.Context, ms []domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active, c.hasActive = ms, true
	return nil
}

func (c *fakeCache) GetActive(context.Context) ([]domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasActive {
		return nil, domain.ErrNotFound
	}
	return c.active, nil
}

func (c *fakeCache) InvalidateActive(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active, c.hasActive = nil, false
	return nil
}

type published struct {
	channel string
	payload []byte
}

type fakeBus struct {
	mu        sync.Mutex
	published []published
	subs      map[string]chan []byte
	streams   map[string][]domain.StreamMessage
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: map[string]chan []byte{}, streams: map[string][]domain.StreamMessage{}}
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, published{channel, payload})
	if ch, ok := b.subs[channel]; ok {
		ch <- payload
	}
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 4)
	b.subs[channel] = ch
	return ch, nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream] = append(b.streams[stream], domain.StreamMessage{ID: stream, Payload: payload})
	return nil
}

func (b *fakeBus) StreamRecent(_ context.Context, stream string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.streams[stream]
	var out []domain.StreamMessage
	for i := len(msgs) - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (b *fakeBus) channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, p := range b.published {
		out = append(out, p.channel)
	}
	return out
}
