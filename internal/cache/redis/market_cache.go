package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

// DefaultMarketTTL bounds how stale a cached listing may be.
const DefaultMarketTTL = 5 * time.Minute

const activeMarketsKey = "markets:active"

// MarketCache implements domain.MarketCache.
//
// Key schema:
//
//	market:{id}     - hash with field "data" holding one market as JSON
//	markets:active  - string holding the JSON array of active markets
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache. A non-positive ttl selects
// DefaultMarketTTL.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = DefaultMarketTTL
	}
	return &MarketCache{rdb: c.Underlying(), ttl: ttl}
}

func marketKey(id string) string { return "market:" + id }

// Set stores one market.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := sonic.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}

	key := marketKey(market.ID)
	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, mc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// Get returns domain.ErrNotFound on a cache miss.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	data, err := mc.rdb.HGet(ctx, marketKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var market domain.Market
	if err := sonic.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return market, nil
}

// Invalidate removes one market.
func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	if err := mc.rdb.Del(ctx, marketKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

// SetActive stores the full active set. The individual market keys are
// refreshed in the same transaction so detail lookups stay consistent with
// the list.
func (mc *MarketCache) SetActive(ctx context.Context, markets []domain.Market) error {
	if markets == nil {
		markets = []domain.Market{}
	}
	data, err := sonic.Marshal(markets)
	if err != nil {
		return fmt.Errorf("redis: marshal active markets: %w", err)
	}

	pipe := mc.rdb.TxPipeline()
	pipe.Set(ctx, activeMarketsKey, data, mc.ttl)
	for _, m := range markets {
		one, err := sonic.Marshal(m)
		if err != nil {
			return fmt.Errorf("redis: marshal market %s: %w", m.ID, err)
		}
		pipe.HSet(ctx, marketKey(m.ID), "data", one)
		pipe.Expire(ctx, marketKey(m.ID), mc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set active markets: %w", err)
	}
	return nil
}

// GetActive returns domain.ErrNotFound when the set is not cached.
func (mc *MarketCache) GetActive(ctx context.Context) ([]domain.Market, error) {
	data, err := mc.rdb.Get(ctx, activeMarketsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get active markets: %w", err)
	}

	var markets []domain.Market
	if err := sonic.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("redis: unmarshal active markets: %w", err)
	}
	return markets, nil
}

// InvalidateActive drops the cached active set.
func (mc *MarketCache) InvalidateActive(ctx context.Context) error {
	if err := mc.rdb.Del(ctx, activeMarketsKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate active markets: %w", err)
	}
	return nil
}

var _ domain.MarketCache = (*MarketCache)(nil)
