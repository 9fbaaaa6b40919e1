package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
	"github.com/alanyoungcy/pasarmalam/internal/listing"
	"github.com/alanyoungcy/pasarmalam/internal/schedule"
	"github.com/alanyoungcy/pasarmalam/internal/service"
)

// MarketService is the subset of the market service used by the market
// endpoints.
type MarketService interface {
	Now() time.Time
	Browse(ctx context.Context, q listing.Query) ([]listing.Entry, error)
	Nearest(ctx context.Context, origin domain.Coordinate, limit int) ([]listing.Entry, error)
	Detail(ctx context.Context, id string, at time.Time, origin *domain.Coordinate) (service.Detail, error)
	Status(ctx context.Context, id string, at time.Time) (schedule.Status, error)
}

// MarketHandler serves the browse, nearest, detail and status endpoints.
type MarketHandler struct {
	svc    MarketService
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(svc MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{svc: svc, logger: logger}
}

type browseParams struct {
	Search            string   `schema:"q"`
	State             string   `schema:"state"`
	District          string   `schema:"district"`
	Day               string   `schema:"day"`
	Toilet            bool     `schema:"toilet"`
	PrayerRoom        bool     `schema:"prayer_room"`
	Parking           bool     `schema:"parking"`
	AccessibleParking bool     `schema:"accessible_parking"`
	OpenNow           bool     `schema:"open"`
	Sort              string   `schema:"sort"`
	Order             string   `schema:"order"`
	Lat               *float64 `schema:"lat"`
	Lng               *float64 `schema:"lng"`
	At                string   `schema:"at"`
	Limit             int      `schema:"limit,default:50"`
	Offset            int      `schema:"offset"`
	Lang              string   `schema:"lang"`
}

func (p browseParams) query() (listing.Query, error) {
	var q listing.Query
	var err error

	if q.Sort, err = listing.ParseSortKey(p.Sort); err != nil {
		return q, invalid("%v", err)
	}
	if q.Order, err = listing.ParseOrder(p.Order); err != nil {
		return q, invalid("%v", err)
	}
	if q.Origin, err = origin(p.Lat, p.Lng); err != nil {
		return q, err
	}
	if q.Now, err = instant(p.At); err != nil {
		return q, err
	}

	q.Filter = listing.Filter{
		Search:            strings.TrimSpace(p.Search),
		State:             strings.TrimSpace(p.State),
		District:          strings.TrimSpace(p.District),
		Toilet:            p.Toilet,
		PrayerRoom:        p.PrayerRoom,
		Parking:           p.Parking,
		AccessibleParking: p.AccessibleParking,
		OpenNow:           p.OpenNow,
	}
	if p.Day != "" {
		day, err := domain.ParseWeekday(p.Day)
		if err != nil {
			return q, invalid("%v", err)
		}
		q.Filter.Day = &day
	}
	return q, nil
}

// openStatus is schedule.Status with a display label.
type openStatus struct {
	schedule.Status
	Label string `json:"label"`
}

type marketView struct {
	domain.Market
	OpenStatus   openStatus `json:"open_status"`
	DistanceKm   *float64   `json:"distance_km,omitempty"`
	ScheduleText []string   `json:"schedule_text"`
}

type detailView struct {
	marketView
	Region        string `json:"region,omitempty"`
	DirectionsURL string `json:"directions_url,omitempty"`
}

type listResponse struct {
	Markets []marketView `json:"markets"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Sort    string       `json:"sort"`
	Order   string       `json:"order"`
	At      time.Time    `json:"at"`
}

func newMarketView(e listing.Entry, loc domain.Locale) marketView {
	return marketView{
		Market:       e.Market,
		OpenStatus:   openStatus{Status: e.Status, Label: statusLabel(e.Status, loc)},
		DistanceKm:   e.DistanceKm(),
		ScheduleText: scheduleText(e.Market.Schedule, loc),
	}
}

func statusLabel(s schedule.Status, loc domain.Locale) string {
	switch {
	case s.IsOpen() && loc == domain.LocaleEnglish:
		return "Open"
	case s.IsOpen():
		return "Buka"
	case loc == domain.LocaleEnglish:
		return "Closed"
	}
	return "Tutup"
}

// scheduleText renders each rule as "Isnin, Rabu 17:00-23:00".
func scheduleText(rules []domain.ScheduleRule, loc domain.Locale) []string {
	out := make([]string, 0, len(rules))
	for _, rule := range rules {
		days := make([]string, 0, len(rule.Days))
		for _, d := range rule.Days {
			days = append(days, d.Label(loc))
		}
		times := make([]string, 0, len(rule.Times))
		for _, s := range rule.Times {
			times = append(times, s.Start+"-"+s.End)
		}
		out = append(out, strings.TrimSpace(strings.Join(days, ", ")+" "+strings.Join(times, ", ")))
	}
	return out
}

// List browses active markets.
// GET /api/markets
func (h *MarketHandler) List(w http.ResponseWriter, r *http.Request) {
	var p browseParams
	if err := decodeQuery(&p, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := p.query()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Now.IsZero() {
		q.Now = h.svc.Now()
	}

	entries, err := h.svc.Browse(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: browse markets",
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err, "failed to list markets")
		return
	}

	loc := domain.LocaleFromString(p.Lang)
	pageEntries, limit, offset := page(entries, p.Limit, p.Offset)
	views := make([]marketView, 0, len(pageEntries))
	for _, e := range pageEntries {
		views = append(views, newMarketView(e, loc))
	}

	writeJSON(w, http.StatusOK, listResponse{
		Markets: views,
		Total:   len(entries),
		Limit:   limit,
		Offset:  offset,
		Sort:    string(q.Sort),
		Order:   string(q.Order),
		At:      q.Now.In(schedule.Civil),
	})
}

type nearestParams struct {
	Lat   *float64 `schema:"lat"`
	Lng   *float64 `schema:"lng"`
	Limit int      `schema:"limit,default:10"`
	Lang  string   `schema:"lang"`
}

// Nearest lists located markets closest to lat/lng.
// GET /api/markets/nearest
func (h *MarketHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	var p nearestParams
	if err := decodeQuery(&p, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Lat == nil || p.Lng == nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	o, err := origin(p.Lat, p.Lng)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.svc.Nearest(r.Context(), *o, min(p.Limit, maxLimit))
	if err != nil {
		writeServiceError(w, err, "failed to find nearest markets")
		return
	}

	loc := domain.LocaleFromString(p.Lang)
	views := make([]marketView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newMarketView(e, loc))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markets": views,
		"origin":  o,
	})
}

type detailParams struct {
	Lat  *float64 `schema:"lat"`
	Lng  *float64 `schema:"lng"`
	At   string   `schema:"at"`
	Lang string   `schema:"lang"`
}

// Get returns one market with its status, region and directions link.
// GET /api/markets/{id}
func (h *MarketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "market id is required")
		return
	}
	var p detailParams
	if err := decodeQuery(&p, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := origin(p.Lat, p.Lng)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	at, err := instant(p.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.Detail(r.Context(), id, at, o)
	if err != nil {
		if errorStatus(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: market detail",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeServiceError(w, err, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, detailView{
		marketView:    newMarketView(d.Entry, domain.LocaleFromString(p.Lang)),
		Region:        d.Region,
		DirectionsURL: d.Directions,
	})
}

// Status reports whether a market is open at "at", default now.
// GET /api/markets/{id}/status
func (h *MarketHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	at, err := instant(r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if at.IsZero() {
		at = h.svc.Now()
	}

	st, err := h.svc.Status(r.Context(), id, at)
	if err != nil {
		writeServiceError(w, err, "failed to get market status")
		return
	}
	loc := domain.LocaleFromString(r.URL.Query().Get("lang"))
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          id,
		"at":          at.In(schedule.Civil),
		"open_status": openStatus{Status: st, Label: statusLabel(st, loc)},
	})
}
