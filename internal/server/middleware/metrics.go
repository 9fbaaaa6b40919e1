package middleware

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/metrics"
)

// Metrics records request counts and latency per route pattern. Requests
// that matched no route are grouped under "unmatched" to bound label
// cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := record(w)
		next.ServeHTTP(rec, r)

		// ServeMux fills in Pattern on the request it was handed.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(route, rec.status, time.Since(start))
	})
}
