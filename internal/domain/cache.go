package domain

import (
	"context"
	"time"
)

// MarketCache keeps hot copies of single listings and of the active set.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	Invalidate(ctx context.Context, id string) error
	SetActive(ctx context.Context, markets []Market) error
	GetActive(ctx context.Context) ([]Market, error)
	InvalidateActive(ctx context.Context) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRecent(ctx context.Context, stream string, count int) ([]StreamMessage, error)
}

// Channel and stream names shared between the importer and the API.
const (
	ChannelMarketsUpdated = "ch:markets:updated"
	StreamImportReports   = "stream:imports"
)
