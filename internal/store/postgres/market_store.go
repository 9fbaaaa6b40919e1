package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

var _ domain.MarketStore = (*MarketStore)(nil)

const upsertMarketSQL = `
	INSERT INTO markets (
		id, name, address, district, state, status, description,
		area_m2, total_shop, shop_list,
		parking_available, parking_accessible, parking_notes,
		amen_toilet, amen_prayer_room,
		contact, location, schedule, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10,
		$11, $12, $13,
		$14, $15,
		$16, $17, $18, COALESCE($19, NOW()), NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		name               = EXCLUDED.name,
		address            = EXCLUDED.address,
		district           = EXCLUDED.district,
		state              = EXCLUDED.state,
		status             = EXCLUDED.status,
		description        = EXCLUDED.description,
		area_m2            = EXCLUDED.area_m2,
		total_shop         = EXCLUDED.total_shop,
		shop_list          = EXCLUDED.shop_list,
		parking_available  = EXCLUDED.parking_available,
		parking_accessible = EXCLUDED.parking_accessible,
		parking_notes      = EXCLUDED.parking_notes,
		amen_toilet        = EXCLUDED.amen_toilet,
		amen_prayer_room   = EXCLUDED.amen_prayer_room,
		contact            = EXCLUDED.contact,
		location           = EXCLUDED.location,
		schedule           = EXCLUDED.schedule,
		updated_at         = NOW()`

const marketCols = `id, name, address, district, state, status, description,
	area_m2, total_shop, shop_list,
	parking_available, parking_accessible, parking_notes,
	amen_toilet, amen_prayer_room,
	contact, location, schedule, created_at, updated_at`

// marketArgs flattens m into the positional arguments of upsertMarketSQL.
// JSON columns are passed pre-encoded.
func marketArgs(m domain.Market) ([]any, error) {
	contact, err := jsonOrNil(m.Contact)
	if err != nil {
		return nil, fmt.Errorf("contact: %w", err)
	}
	location, err := jsonOrNil(m.Location)
	if err != nil {
		return nil, fmt.Errorf("location: %w", err)
	}
	rules := m.Schedule
	if rules == nil {
		rules = []domain.ScheduleRule{}
	}
	schedule, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	shops := m.ShopList
	if shops == nil {
		shops = []string{}
	}
	status := m.Status
	if status == "" {
		status = domain.MarketStatusActive
	}
	var created any
	if !m.CreatedAt.IsZero() {
		created = m.CreatedAt
	}
	return []any{
		m.ID, m.Name, m.Address, m.District, m.State, string(status), m.Description,
		m.AreaM2, m.TotalShop, shops,
		m.Parking.Available, m.Parking.Accessible, m.Parking.Notes,
		m.Amenities.Toilet, m.Amenities.PrayerRoom,
		contact, location, schedule, created,
	}, nil
}

func jsonOrNil[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Upsert inserts or updates a single market.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	args, err := marketArgs(m)
	if err != nil {
		return fmt.Errorf("postgres: encode market %s: %w", m.ID, err)
	}
	if _, err := s.pool.Exec(ctx, upsertMarketSQL, args...); err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

// UpsertBatch writes all markets in one round trip inside a transaction, so
// an import either lands completely or not at all.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	switch len(markets) {
	case 0:
		return nil
	case 1:
		return s.Upsert(ctx, markets[0])
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		args, err := marketArgs(m)
		if err != nil {
			return fmt.Errorf("postgres: encode market %s: %w", m.ID, err)
		}
		batch.Queue(upsertMarketSQL, args...)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin market batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, batch)
	for i := range markets {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: upsert market batch item %d (%s): %w", i, markets[i].ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close market batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit market batch: %w", err)
	}
	return nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m                        domain.Market
		status                   string
		contact, location, rules []byte
	)
	err := row.Scan(
		&m.ID, &m.Name, &m.Address, &m.District, &m.State, &status, &m.Description,
		&m.AreaM2, &m.TotalShop, &m.ShopList,
		&m.Parking.Available, &m.Parking.Accessible, &m.Parking.Notes,
		&m.Amenities.Toilet, &m.Amenities.PrayerRoom,
		&contact, &location, &rules, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	if err := decodeMarketJSON(&m, contact, location, rules); err != nil {
		return domain.Market{}, fmt.Errorf("market %s: %w", m.ID, err)
	}
	return m, nil
}

func decodeMarketJSON(m *domain.Market, contact, location, rules []byte) error {
	if len(contact) > 0 && string(contact) != "null" {
		m.Contact = &domain.Contact{}
		if err := json.Unmarshal(contact, m.Contact); err != nil {
			return fmt.Errorf("decode contact: %w", err)
		}
	}
	if len(location) > 0 && string(location) != "null" {
		m.Location = &domain.Location{}
		if err := json.Unmarshal(location, m.Location); err != nil {
			return fmt.Errorf("decode location: %w", err)
		}
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &m.Schedule); err != nil {
			return fmt.Errorf("decode schedule: %w", err)
		}
	}
	return nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// listQuery renders q as SQL. The day filter matches the stored rule days,
// so a session spilling past midnight is listed under its starting day only.
func listQuery(q domain.MarketQuery) (string, []any) {
	b := newSelect(`SELECT ` + marketCols + ` FROM markets`)
	if q.Status != "" {
		b.whereArg("status = ?", string(q.Status))
	}
	if q.State != "" {
		b.whereArg("state = ?", q.State)
	}
	if q.District != "" {
		b.whereArg("district = ?", q.District)
	}
	if q.Day != nil {
		contains := fmt.Sprintf(`[{"days":[%q]}]`, q.Day.Code())
		b.whereArg("schedule @> ?::jsonb", contains)
	}
	if q.Since != nil {
		b.whereArg("updated_at >= ?", *q.Since)
	}
	if q.Until != nil {
		b.whereArg("updated_at <= ?", *q.Until)
	}
	return b.order("name ASC, id ASC").page(q.Limit, q.Offset).build()
}

// List returns markets matching q ordered by name.
func (s *MarketStore) List(ctx context.Context, q domain.MarketQuery) ([]domain.Market, error) {
	sql, args := listQuery(q)
	return s.queryMarkets(ctx, "list markets", sql, args...)
}

// ListActive returns every active market. The directory is small enough to
// rank in memory, so no pagination is applied here.
func (s *MarketStore) ListActive(ctx context.Context) ([]domain.Market, error) {
	return s.List(ctx, domain.MarketQuery{Status: domain.MarketStatusActive})
}

func (s *MarketStore) queryMarkets(ctx context.Context, action, sql string, args ...any) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", action, err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: scan: %w", action, err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", action, err)
	}
	return markets, nil
}

// DistinctStates lists the states that have at least one active market.
func (s *MarketStore) DistinctStates(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "distinct states",
		`SELECT DISTINCT state FROM markets WHERE status = $1 AND state <> '' ORDER BY state`,
		string(domain.MarketStatusActive))
}

// DistinctDistricts lists the districts of a state that have active markets.
func (s *MarketStore) DistinctDistricts(ctx context.Context, state string) ([]string, error) {
	return s.queryStrings(ctx, "distinct districts",
		`SELECT DISTINCT district FROM markets WHERE status = $1 AND state = $2 AND district <> '' ORDER BY district`,
		string(domain.MarketStatusActive), state)
}

func (s *MarketStore) queryStrings(ctx context.Context, action, sql string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", action, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", action, err)
	}
	return out, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// DeactivateExcept retires active markets that are missing from keep.
func (s *MarketStore) DeactivateExcept(ctx context.Context, keep []string) ([]string, error) {
	if keep == nil {
		keep = []string{}
	}
	return s.queryStrings(ctx, "deactivate markets", deactivateExceptSQL,
		string(domain.MarketStatusInactive), string(domain.MarketStatusActive), keep)
}

const deactivateExceptSQL = `UPDATE markets SET status = $1, updated_at = NOW()
	WHERE status = $2 AND NOT (id = ANY($3))
	RETURNING id`
