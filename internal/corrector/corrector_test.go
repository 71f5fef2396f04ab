package corrector

import (
	"errors"
	"math"
	"testing"

	"github.com/mlorentedev/gramfix/internal/bundle"
	"github.com/mlorentedev/gramfix/internal/modeltest"
	"github.com/mlorentedev/gramfix/internal/t5"
)

func fixtureBundle(t *testing.T) *bundle.Bundle {
	t.Helper()
	m, tok := modeltest.Pair(t)
	return bundle.New("fixture", m, tok)
}

func TestCorrect(t *testing.T) {
	b := fixtureBundle(t)
	got, err := Correct(b, "he go to school every day")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got != modeltest.Reply {
		t.Errorf("got %q, want %q", got, modeltest.Reply)
	}
}

func TestCorrectBlankSkipsModel(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		// A nil bundle would fail if generation ran.
		got, err := Correct(nil, text)
		if err != nil || got != "" {
			t.Errorf("Correct(nil, %q) = %q, %v; want empty, nil", text, got, err)
		}
	}
}

func TestCorrectMaxLength(t *testing.T) {
	c := New(Options{MaxLength: 3})
	got, err := c.Correct(fixtureBundle(t), "he go to school")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got != "He goes" {
		t.Errorf("got %q, want %q", got, "He goes")
	}
}

func TestNewDefaults(t *testing.T) {
	c := New(Options{})
	if c.prefix != TaskPrefix || c.maxLength != MaxLength {
		t.Errorf("defaults = %q/%d", c.prefix, c.maxLength)
	}
}

func TestCorrectNonFinite(t *testing.T) {
	b := fixtureBundle(t)
	head, _ := b.Model().Parameter("lm_head.weight")
	head.Data[0] = float32(math.NaN())

	_, err := Correct(b, "he go to school")
	var corrErr *CorrectionError
	if !errors.As(err, &corrErr) {
		t.Fatalf("err = %v, want *CorrectionError", err)
	}
	if !errors.Is(err, t5.ErrNonFinite) {
		t.Errorf("err = %v, want wrapped ErrNonFinite", err)
	}
}

func TestCorrectRecoversPanic(t *testing.T) {
	_, tok := modeltest.Pair(t)
	b := bundle.New("broken", nil, tok)

	_, err := Correct(b, "he go to school")
	var corrErr *CorrectionError
	if !errors.As(err, &corrErr) {
		t.Fatalf("err = %v, want *CorrectionError", err)
	}
}

func TestCorrectNilBundle(t *testing.T) {
	_, err := Correct(nil, "text")
	var corrErr *CorrectionError
	if !errors.As(err, &corrErr) {
		t.Errorf("err = %v, want *CorrectionError", err)
	}
}
