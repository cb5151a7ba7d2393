package api

import (
	"net/http"
	"time"
)

// StatsProvider reports live service counters.
type StatsProvider interface {
	GetStats() map[string]any
}

type statsResponse struct {
	Service     string         `json:"service"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Stats       map[string]any `json:"stats"`
}

// StatsHandler serves the counters of a running arena.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Service:     serviceName,
		GeneratedAt: time.Now().UTC(),
		Stats:       h.provider.GetStats(),
	})
}
