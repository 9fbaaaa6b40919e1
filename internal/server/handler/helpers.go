// Package handler implements the HTTP endpoints of the directory API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/schema"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
	"github.com/alanyoungcy/pasarmalam/internal/geo"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

var decoder = schema.NewDecoder()

func init() {
	decoder.IgnoreUnknownKeys(true)
}

// decodeQuery fills dst from the query string. Malformed values are
// reported as domain.ErrInvalidQuery.
func decodeQuery(dst any, values url.Values) error {
	if err := decoder.Decode(dst, values); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidQuery, fmt.Sprintf(format, args...))
}

// writeJSON marshals v and writes it with status. Marshal failures fall back
// to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps a service error onto an HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with its mapped status. Internal errors are
// not echoed to the client.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, err.Error())
}

// origin builds the caller's position from optional lat/lng parameters.
// Both or neither must be present.
func origin(lat, lng *float64) (*domain.Coordinate, error) {
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, invalid("lat and lng must be given together")
	}
	c := domain.Coordinate{Latitude: *lat, Longitude: *lng}
	if !geo.ValidCoordinate(c) {
		return nil, invalid("coordinate %v,%v out of range", *lat, *lng)
	}
	return &c, nil
}

// instant parses an optional RFC 3339 "at" parameter. Empty means now.
func instant(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, invalid("at must be RFC 3339, got %q", s)
	}
	return t, nil
}

// page clamps limit and offset and slices items.
func page[T any](items []T, limit, offset int) ([]T, int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)
	offset = max(offset, 0)
	if offset >= len(items) {
		return []T{}, limit, offset
	}
	end := min(offset+limit, len(items))
	return items[offset:end], limit, offset
}
