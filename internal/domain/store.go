package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketQuery narrows a store listing. Empty fields do not filter.
type MarketQuery struct {
	State    string
	District string
	Day      *Weekday
	Status   MarketStatus
	ListOpts
}

// MarketStore persists market listings.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, q MarketQuery) ([]Market, error)
	ListActive(ctx context.Context) ([]Market, error)
	DistinctStates(ctx context.Context) ([]string, error)
	DistinctDistricts(ctx context.Context, state string) ([]string, error)
	Count(ctx context.Context) (int64, error)
	// DeactivateExcept marks every active market not in keep as inactive and
	// returns the ids it changed.
	DeactivateExcept(ctx context.Context, keep []string) ([]string, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
