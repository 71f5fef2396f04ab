package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, registered route and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gramfix_requests_total",
		Help: "Total HTTP requests processed.",
	}, []string{"method", "route", "status"})

	// CorrectDuration tracks correction latency per model.
	CorrectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gramfix_correct_duration_seconds",
		Help:    "Time spent generating a correction.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"model"})

	// InputChars tracks the distribution of input text lengths.
	InputChars = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gramfix_input_chars",
		Help:    "Number of characters in correction input text.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})

	// AdapterAvailable tracks whether each adapter can serve requests.
	AdapterAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gramfix_adapter_available",
		Help: "Whether a correction adapter is available (1) or not (0).",
	}, []string{"adapter"})

	// BundleLoadDuration tracks how long materializing the model bundle takes.
	BundleLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gramfix_bundle_load_seconds",
		Help:    "Time spent loading the model bundle from disk.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// BundleLoads counts bundle load attempts by result (ok, error).
	BundleLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gramfix_bundle_loads_total",
		Help: "Model bundle load attempts.",
	}, []string{"result"})

	// GeneratedTokens tracks decoder output length, start token included.
	GeneratedTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gramfix_generated_tokens",
		Help:    "Number of decoder positions produced per correction.",
		Buckets: []float64{4, 8, 16, 32, 64, 96, 128},
	})

	// CorrectionErrors counts failed corrections by error kind.
	CorrectionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gramfix_correction_errors_total",
		Help: "Failed corrections by kind (config, load, correction, upstream).",
	}, []string{"kind"})

	// Score tracks the distribution of each quality metric.
	Score = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gramfix_score",
		Help:    "Quality metric values between original and corrected text.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"metric"})
)
