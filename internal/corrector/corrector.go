// Package corrector turns raw text into corrected text with a loaded bundle.
package corrector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mlorentedev/gramfix/internal/bundle"
	"github.com/mlorentedev/gramfix/internal/metrics"
	"github.com/mlorentedev/gramfix/internal/t5"
	"github.com/mlorentedev/gramfix/internal/tokenizer"
)

const (
	// TaskPrefix is prepended to every input; the model was fine-tuned on it.
	TaskPrefix = "correct: "
	// MaxLength caps generation, decoder start token included.
	MaxLength = 128
)

// CorrectionError wraps a tokenizer or generation failure for one request.
// The bundle is unaffected and the call may be retried.
type CorrectionError struct {
	Err error
}

func (e *CorrectionError) Error() string { return "correction failed: " + e.Err.Error() }

func (e *CorrectionError) Unwrap() error { return e.Err }

// Options overrides the task prefix or generation cap. Zero values keep the defaults.
type Options struct {
	TaskPrefix string
	MaxLength  int
}

// Corrector runs greedy generation over a bundle. It holds no mutable state.
type Corrector struct {
	prefix    string
	maxLength int
}

// New returns a Corrector using opts.
func New(opts Options) *Corrector {
	c := &Corrector{prefix: opts.TaskPrefix, maxLength: opts.MaxLength}
	if c.prefix == "" {
		c.prefix = TaskPrefix
	}
	if c.maxLength <= 0 {
		c.maxLength = MaxLength
	}
	return c
}

var defaultCorrector = New(Options{})

// Correct corrects text with the default prefix and length cap.
func Correct(b *bundle.Bundle, text string) (string, error) {
	return defaultCorrector.Correct(b, text)
}

// Correct returns the corrected form of text. Blank input returns "" without
// running the model.
func (c *Corrector) Correct(b *bundle.Bundle, text string) (out string, err error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if b == nil {
		return "", &CorrectionError{Err: errors.New("no model bundle")}
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = "", &CorrectionError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	tok := b.Tokenizer()
	batch := tok.EncodeBatch([]string{c.prefix + text}, tokenizer.EncodeOptions{
		Truncation: true,
		Padding:    true,
	})
	ids, err := b.Model().Generate(batch.InputIDs[0], batch.AttentionMask[0], t5.GenerateOptions{
		MaxLength: c.maxLength,
	})
	if err != nil {
		return "", &CorrectionError{Err: err}
	}
	metrics.GeneratedTokens.Observe(float64(len(ids)))
	return tok.Decode(ids, true), nil
}
