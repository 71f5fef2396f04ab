package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// MaxBodyBytes bounds request bodies; correction text is capped well below it.
const MaxBodyBytes = 64 * 1024

// Chain wraps the handler with the full middleware stack. routes bounds the
// labels Logging and Metrics emit.
// Order: CORS → RequestID → Logging → Metrics → RateLimit → APIKey → MaxBytes → Timeout → mux
func Chain(handler http.Handler, rl *RateLimiter, apiKey string, timeout time.Duration, routes Routes) http.Handler {
	h := handler
	h = http.TimeoutHandler(h, timeout, `{"error":"request timeout"}`)
	h = MaxBytes(MaxBodyBytes)(h)
	h = APIKey(apiKey)(h)
	h = RateLimit(rl)(h)
	h = Metrics(routes)(h)
	h = Logging(routes)(h)
	h = RequestID(h)
	h = CORS(h)
	return h
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
