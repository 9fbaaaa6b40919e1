package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminAuth guards every path under prefix with apiKey, read from either
// "Authorization: Bearer <key>" or "X-API-Key". Other paths are public.
// An empty apiKey disables the check.
func AdminAuth(prefix, apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || !strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}

			token := requestToken(r)
			switch {
			case token == "":
				writeJSONError(w, http.StatusUnauthorized, "missing api key")
				return
			case subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1:
				writeJSONError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
