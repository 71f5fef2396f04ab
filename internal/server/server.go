package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mlorentedev/gramfix/internal/adapter"
	"github.com/mlorentedev/gramfix/internal/handler"
	"github.com/mlorentedev/gramfix/internal/middleware"
)

// RequestTimeout bounds a whole request, including a cold bundle load.
const RequestTimeout = 65 * time.Second

// SetupMux wires handlers with the full middleware chain. rateLimit is the
// number of requests allowed per client per minute; zero disables limiting.
func SetupMux(adapters map[string]adapter.Adapter, models []adapter.ModelInfo, apiKey string, rateLimit int, version string) http.Handler {
	handlers := map[string]http.Handler{
		"/api/health":  handler.Health(adapters, version),
		"/api/models":  handler.Models(models),
		"/api/correct": handler.Correct(adapters),
		"/api/score":   handler.Score(),
		"/metrics":     promhttp.Handler(),
	}
	mux := http.NewServeMux()
	for path, h := range handlers {
		mux.Handle(path, h)
	}
	routes := middleware.NewRoutes(lo.Keys(handlers)...)

	traced := otelhttp.NewHandler(mux, "gramfix",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + routes.Label(r.URL.Path)
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics"
		}),
	)

	rl := middleware.NewRateLimiter(rateLimit, time.Minute)
	return middleware.Chain(traced, rl, apiKey, RequestTimeout, routes)
}
