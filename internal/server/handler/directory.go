package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

// DirectoryService answers the state, district and region lookups.
type DirectoryService interface {
	States(ctx context.Context) ([]string, error)
	Districts(ctx context.Context, state string) ([]string, error)
	LocateRegion(c domain.Coordinate) (string, bool)
}

type DirectoryHandler struct {
	svc    DirectoryService
	logger *slog.Logger
}

func NewDirectoryHandler(svc DirectoryService, logger *slog.Logger) *DirectoryHandler {
	return &DirectoryHandler{svc: svc, logger: logger}
}

// States lists the states that have active markets.
// GET /api/states
func (h *DirectoryHandler) States(w http.ResponseWriter, r *http.Request) {
	states, err := h.svc.States(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list states", slog.String("error", err.Error()))
		writeServiceError(w, err, "failed to list states")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"states": nonNil(states)})
}

// Districts lists the districts of one state.
// GET /api/states/{state}/districts
func (h *DirectoryHandler) Districts(w http.ResponseWriter, r *http.Request) {
	state := r.PathValue("state")
	districts, err := h.svc.Districts(r.Context(), state)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list districts",
			slog.String("state", state),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err, "failed to list districts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     state,
		"districts": nonNil(districts),
	})
}

type locateParams struct {
	Lat *float64 `schema:"lat"`
	Lng *float64 `schema:"lng"`
}

// Locate names the region containing lat/lng.
// GET /api/regions/locate
func (h *DirectoryHandler) Locate(w http.ResponseWriter, r *http.Request) {
	var p locateParams
	if err := decodeQuery(&p, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Lat == nil || p.Lng == nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	c, err := origin(p.Lat, p.Lng)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	region, ok := h.svc.LocateRegion(*c)
	if !ok {
		writeError(w, http.StatusNotFound, "no region contains this point")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"region":    region,
		"latitude":  c.Latitude,
		"longitude": c.Longitude,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
