package adapter

import "context"

// Adapter is a correction backend the HTTP layer dispatches to by model id.
type Adapter interface {
	Name() string
	Correct(ctx context.Context, text string) (string, error)
	Available() bool
}

// ModelInfo is exposed via GET /api/models.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}
