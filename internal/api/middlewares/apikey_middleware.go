package middleware

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyMiddleware guards the API with a static key in the X-API-Key header.
// An empty configured key disables the check, which local development relies
// on.
func APIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey != "" {
				got := r.Header.Get("X-API-Key")
				if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
					http.Error(w, "missing or invalid API key", http.StatusUnauthorized)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
