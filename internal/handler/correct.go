package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mlorentedev/gramfix/internal/adapter"
	"github.com/mlorentedev/gramfix/internal/bundle"
	"github.com/mlorentedev/gramfix/internal/corrector"
	"github.com/mlorentedev/gramfix/internal/metrics"
	"github.com/mlorentedev/gramfix/internal/score"
)

const maxTextLength = 10000

type correctRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

type correctResponse struct {
	ID        string       `json:"id"`
	Corrected string       `json:"corrected"`
	Model     string       `json:"model"`
	ElapsedMs int64        `json:"elapsed_ms"`
	Scores    score.Report `json:"scores"`
}

func Correct(adapters map[string]adapter.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req correctRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if strings.TrimSpace(req.Text) == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}
		chars := utf8.RuneCountInString(req.Text)
		if chars > maxTextLength {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("text too long: %d characters (max %d)", chars, maxTextLength))
			return
		}
		if req.ModelID == "" {
			writeError(w, http.StatusBadRequest, "model_id is required")
			return
		}

		a, ok := adapters[req.ModelID]
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown model: %s", req.ModelID))
			return
		}

		metrics.InputChars.Observe(float64(chars))
		start := time.Now()
		corrected, err := a.Correct(r.Context(), req.Text)
		elapsed := time.Since(start)

		if err != nil {
			code, kind, msg := classify(err)
			metrics.CorrectionErrors.WithLabelValues(kind).Inc()
			slog.Warn("correction failed", "model", req.ModelID, "kind", kind, "error", err)
			writeError(w, code, msg)
			return
		}
		metrics.CorrectDuration.WithLabelValues(req.ModelID).Observe(elapsed.Seconds())

		report := score.Score(req.Text, corrected)
		observeScores(report)

		writeJSON(w, correctResponse{
			ID:        uuid.NewString(),
			Corrected: corrected,
			Model:     req.ModelID,
			ElapsedMs: elapsed.Milliseconds(),
			Scores:    report,
		})
	}
}

// classify maps adapter errors to a status code, a metrics label and a message.
// Missing or unreadable artifacts are 503: no correction is possible until the
// operator fixes the model directory.
func classify(err error) (int, string, string) {
	var (
		cfgErr  *bundle.ConfigError
		loadErr *bundle.LoadError
		corrErr *corrector.CorrectionError
	)
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable, "config", "model unavailable: " + cfgErr.Error()
	case errors.As(err, &loadErr):
		return http.StatusServiceUnavailable, "load", "model unavailable: " + loadErr.Error()
	case errors.As(err, &corrErr):
		return http.StatusBadGateway, "correction", corrErr.Error()
	default:
		return http.StatusBadGateway, "upstream", fmt.Sprintf("correction failed: %v", err)
	}
}

func observeScores(r score.Report) {
	metrics.Score.WithLabelValues("bleu").Observe(r.BLEU)
	metrics.Score.WithLabelValues("rouge_1").Observe(r.ROUGE1)
	metrics.Score.WithLabelValues("rouge_2").Observe(r.ROUGE2)
	metrics.Score.WithLabelValues("rouge_l").Observe(r.ROUGEL)
}
