package middleware

import (
	"net/http"
	"strconv"

	"github.com/mlorentedev/gramfix/internal/metrics"
)

// Metrics counts requests by method, route and status. Unregistered paths are
// labelled OtherRoute.
func Metrics(routes Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			metrics.RequestsTotal.WithLabelValues(r.Method, routes.Label(r.URL.Path), strconv.Itoa(sw.status)).Inc()
		})
	}
}
