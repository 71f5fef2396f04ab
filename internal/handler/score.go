package handler

import (
	"net/http"

	"github.com/mlorentedev/gramfix/internal/score"
)

type scoreRequest struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

// Score compares two texts without running a model.
func Score() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req scoreRequest
		if !decodeBody(w, r, &req) {
			return
		}

		writeJSON(w, score.Score(req.Original, req.Corrected))
	}
}
