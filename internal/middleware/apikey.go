package middleware

import (
	"crypto/subtle"
	"net/http"
)

// publicPaths answer without a key. /api/score runs no model but still
// requires one, like every other /api route.
var publicPaths = map[string]bool{
	"/api/health": true,
	"/metrics":    true,
}

// APIKey rejects requests whose X-API-Key header does not match expectedKey.
// An empty expectedKey disables the check.
func APIKey(expectedKey string) func(http.Handler) http.Handler {
	want := []byte(expectedKey)
	return func(next http.Handler) http.Handler {
		if expectedKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			switch provided := r.Header.Get("X-API-Key"); {
			case provided == "":
				writeJSONError(w, http.StatusUnauthorized, "missing API key")
			case subtle.ConstantTimeCompare([]byte(provided), want) != 1:
				writeJSONError(w, http.StatusUnauthorized, "invalid API key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
