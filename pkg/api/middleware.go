package api

import (
	"net/http"
	"strings"

	"github.com/vidforge/rendertrack/pkg/auth"
)

// unauthenticatedPaths are reachable without the client API key: health
// probes carry no credentials, and callbacks authenticate with their own
// per-backend secret inside the payload.
var unauthenticatedPaths = map[string]bool{
	"/health":        true,
	"/jobs/callback": true,
}

// APIKeyMiddleware requires a Bearer token matching the configured API
// key on every route except the unauthenticated ones. An empty key
// disables the check entirely.
func APIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || unauthenticatedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || !auth.SecureCompare(token, apiKey) {
				http.Error(w, `{"error":"unauthorized","message":"Invalid or missing API key"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
