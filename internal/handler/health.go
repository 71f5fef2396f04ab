package handler

import (
	"net/http"

	"github.com/mlorentedev/gramfix/internal/adapter"
	"github.com/mlorentedev/gramfix/internal/metrics"
)

type adapterStatus struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Version  string                   `json:"version,omitempty"`
	Adapters map[string]adapterStatus `json:"adapters"`
}

func Health(adapters map[string]adapter.Adapter, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := make(map[string]adapterStatus, len(adapters))
		for id, a := range adapters {
			s := adapterStatus{Available: a.Available()}
			gauge := 0.0
			if s.Available {
				gauge = 1
			} else {
				s.Reason = unavailableReason(a)
			}
			metrics.AdapterAvailable.WithLabelValues(id).Set(gauge)
			statuses[id] = s
		}

		writeJSON(w, healthResponse{
			Status:   "ok",
			Version:  version,
			Adapters: statuses,
		})
	}
}

func unavailableReason(a adapter.Adapter) string {
	switch a := a.(type) {
	case *adapter.LocalAdapter:
		return a.Reason()
	case *adapter.OllamaAdapter:
		return "ollama unreachable"
	default:
		return "unavailable"
	}
}
