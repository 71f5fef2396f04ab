package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MockAdapter returns a deterministic correction after an optional delay.
// Used for development and testing without model artifacts.
type MockAdapter struct {
	Delay time.Duration
}

func (m *MockAdapter) Name() string { return "Mock" }

// Correct capitalizes the first letter and ends the text with a period.
func (m *MockAdapter) Correct(ctx context.Context, text string) (string, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", fmt.Errorf("mock: %w", ctx.Err())
		}
	}

	corrected := strings.TrimSpace(text)
	if corrected == "" {
		return "", nil
	}
	r, size := utf8.DecodeRuneInString(corrected)
	corrected = string(unicode.ToUpper(r)) + corrected[size:]
	if !strings.ContainsAny(corrected[len(corrected)-1:], ".!?") {
		corrected += "."
	}
	return corrected, nil
}

func (m *MockAdapter) Available() bool { return true }
