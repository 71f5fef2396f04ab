package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaSystem instructs a general LLM to behave like the local corrector.
const DefaultOllamaSystem = "Correct the grammar and spelling of the user's text. " +
	"Reply with the corrected text only, without explanations."

// ollamaNumPredict matches the local corrector's generation cap.
const ollamaNumPredict = 128

// OllamaAdapter corrects text through a local Ollama instance via /api/generate.
type OllamaAdapter struct {
	BaseURL string
	Model   string
	Client  *http.Client
	// System overrides DefaultOllamaSystem.
	System string
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (o *OllamaAdapter) Name() string {
	return fmt.Sprintf("Ollama (%s)", o.Model)
}

func (o *OllamaAdapter) Correct(ctx context.Context, text string) (string, error) {
	system := o.System
	if system == "" {
		system = DefaultOllamaSystem
	}
	reqBody := ollamaGenerateRequest{
		Model:   o.Model,
		Prompt:  text,
		System:  system,
		Stream:  false,
		Options: ollamaOptions{NumPredict: ollamaNumPredict},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	url := strings.TrimRight(o.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}

	return strings.TrimSpace(genResp.Response), nil
}

func (o *OllamaAdapter) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(o.BaseURL, "/")+"/", nil)
	if err != nil {
		return false
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
