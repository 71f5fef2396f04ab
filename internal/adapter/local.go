package adapter

import (
	"context"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mlorentedev/gramfix/internal/bundle"
	"github.com/mlorentedev/gramfix/internal/corrector"
)

var tracer = otel.Tracer("github.com/mlorentedev/gramfix/internal/adapter")

// LocalAdapter runs the in-process T5 corrector. The bundle is loaded on the
// first request unless the loader was warmed at startup.
type LocalAdapter struct {
	Loader *bundle.Loader
	// Corrector defaults to the standard prefix and length cap.
	Corrector *corrector.Corrector
}

func (l *LocalAdapter) Name() string {
	return fmt.Sprintf("T5 (%s)", filepath.Base(l.Loader.Dir))
}

// Correct loads the bundle if needed and generates a correction. Load errors
// are returned as *bundle.ConfigError or *bundle.LoadError, generation errors
// as *corrector.CorrectionError. A LoadError is replayed without touching the
// disk until the loader's RetryAfter window passes. Generation itself is not interruptible, so
// ctx is only checked before it starts.
func (l *LocalAdapter) Correct(ctx context.Context, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "gramfix.correct", trace.WithAttributes(
		attribute.Int("gramfix.input_chars", utf8.RuneCountInString(text)),
	))
	defer span.End()

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("local: %w", err))
	}
	b, err := l.Loader.Load()
	if err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("local: %w", err))
	}

	c := l.Corrector
	if c == nil {
		c = corrector.New(corrector.Options{})
	}
	out, err := c.Correct(b, text)
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(attribute.Int("gramfix.output_chars", len(out)))
	return out, nil
}

// Available is false once a load has failed, until a later load succeeds.
func (l *LocalAdapter) Available() bool {
	return l.Loader.LastError() == nil
}

// Reason explains why the adapter is unavailable.
func (l *LocalAdapter) Reason() string {
	if err := l.Loader.LastError(); err != nil {
		return err.Error()
	}
	return ""
}
