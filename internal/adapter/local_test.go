package adapter

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlorentedev/gramfix/internal/bundle"
	"github.com/mlorentedev/gramfix/internal/corrector"
	"github.com/mlorentedev/gramfix/internal/modeltest"
)

func fixtureLoader(t *testing.T) *bundle.Loader {
	t.Helper()
	return &bundle.Loader{
		Dir: "/models/grammar-t5",
		Build: func(dir string) (*bundle.Bundle, error) {
			m, tok := modeltest.Pair(t)
			return bundle.New(dir, m, tok), nil
		},
	}
}

func TestLocalAdapterCorrect(t *testing.T) {
	a := &LocalAdapter{Loader: fixtureLoader(t)}

	got, err := a.Correct(context.Background(), "he go to school")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got != modeltest.Reply {
		t.Errorf("got %q, want %q", got, modeltest.Reply)
	}
	if !a.Loader.Loaded() {
		t.Error("bundle should be cached after first correction")
	}
}

func TestLocalAdapterCustomCorrector(t *testing.T) {
	a := &LocalAdapter{
		Loader:    fixtureLoader(t),
		Corrector: corrector.New(corrector.Options{MaxLength: 2}),
	}
	got, err := a.Correct(context.Background(), "he go")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got != "He" {
		t.Errorf("got %q, want %q", got, "He")
	}
}

func TestLocalAdapterMissingArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	a := &LocalAdapter{Loader: bundle.NewLoader(dir)}

	if !a.Available() {
		t.Error("adapter should report available before any load attempt")
	}

	_, err := a.Correct(context.Background(), "he go to school")
	var cfgErr *bundle.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *bundle.ConfigError", err)
	}
	if a.Available() {
		t.Error("adapter should be unavailable after a failed load")
	}
	if !strings.Contains(a.Reason(), "model directory not found") {
		t.Errorf("Reason = %q", a.Reason())
	}
}

func TestLocalAdapterCancelledContext(t *testing.T) {
	a := &LocalAdapter{Loader: fixtureLoader(t)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Correct(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if a.Loader.Loaded() {
		t.Error("cancelled request should not trigger a load")
	}
}

func TestLocalAdapterName(t *testing.T) {
	a := &LocalAdapter{Loader: fixtureLoader(t)}
	if a.Name() != "T5 (grammar-t5)" {
		t.Errorf("got %q, want %q", a.Name(), "T5 (grammar-t5)")
	}
}
