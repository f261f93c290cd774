package api

import (
	"net/http"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
	runner        Runner
}

// NewStatsHandler creates a new stats handler. runner may be nil.
func NewStatsHandler(statsProvider StatsProvider, runner Runner) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, runner: runner}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	stats := map[string]any{}
	if h.statsProvider != nil {
		for k, v := range h.statsProvider.GetStats() {
			stats[k] = v
		}
	}
	if h.runner != nil {
		if last, ok := h.runner.LastResult(); ok {
			stats["lastPipelineRun"] = last
		}
	}
	writeJSON(w, http.StatusOK, stats)
}
