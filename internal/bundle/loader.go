package bundle

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mlorentedev/gramfix/internal/metrics"
)

// BuildFunc materializes a bundle from a model directory.
type BuildFunc func(dir string) (*Bundle, error)

// DefaultRetryAfter is the Loader back-off after a *LoadError.
const DefaultRetryAfter = 30 * time.Second

// Loader memoizes one bundle for the process lifetime. The first successful
// build is cached. A *ConfigError is retried on the next call, so dropping the
// missing files in place is enough. A *LoadError means the artifacts are
// present but broken; it is returned as is until RetryAfter has passed.
// Concurrent callers wait on the same build.
type Loader struct {
	Dir string
	// Build defaults to Open.
	Build  BuildFunc
	Logger *slog.Logger
	// RetryAfter defaults to DefaultRetryAfter. Negative retries every call.
	RetryAfter time.Duration

	// building serializes builds; mu guards the state so status reads do not
	// wait on a slow load.
	building sync.Mutex
	mu       sync.Mutex
	bundle   *Bundle
	lastErr  error
	failedAt time.Time
}

// NewLoader returns a Loader reading from dir.
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

// Load returns the cached bundle, building it on first use.
func (l *Loader) Load() (*Bundle, error) {
	if b := l.cached(); b != nil {
		return b, nil
	}
	l.building.Lock()
	defer l.building.Unlock()
	if b := l.cached(); b != nil {
		return b, nil
	}
	if err := l.backoff(); err != nil {
		return nil, err
	}

	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	build := l.Build
	if build == nil {
		build = Open
	}

	logger.Info("loading model bundle", "dir", l.Dir)
	start := time.Now()
	b, err := build(l.Dir)
	elapsed := time.Since(start)
	metrics.BundleLoadDuration.Observe(elapsed.Seconds())
	if err != nil {
		metrics.BundleLoads.WithLabelValues("error").Inc()
		logger.Error("model bundle load failed", "dir", l.Dir, "error", err)
		l.mu.Lock()
		l.lastErr, l.failedAt = err, time.Now()
		l.mu.Unlock()
		return nil, err
	}
	metrics.BundleLoads.WithLabelValues("ok").Inc()
	logger.Info("model bundle loaded", "dir", l.Dir, "duration_ms", elapsed.Milliseconds())
	l.mu.Lock()
	l.bundle, l.lastErr = b, nil
	l.mu.Unlock()
	return b, nil
}

// backoff returns the last *LoadError while it is inside the retry window.
func (l *Loader) backoff() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var loadErr *LoadError
	if !errors.As(l.lastErr, &loadErr) {
		return nil
	}
	wait := l.RetryAfter
	if wait == 0 {
		wait = DefaultRetryAfter
	}
	if time.Since(l.failedAt) < wait {
		return l.lastErr
	}
	return nil
}

func (l *Loader) cached() *Bundle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bundle
}

// Loaded reports whether a bundle is cached.
func (l *Loader) Loaded() bool {
	return l.cached() != nil
}

// LastError returns the error of the most recent failed load, or nil once a
// load has succeeded.
func (l *Loader) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}
