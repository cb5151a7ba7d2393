// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/duelarena/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "duelarena"

type healthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

// HealthHandler answers liveness checks and serves the metrics exposition.
type HealthHandler struct {
	startedAt time.Time
	exporter  http.Handler
}

// NewHealthHandler creates a health handler backed by the service registry.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		startedAt: time.Now(),
		exporter:  promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz. Scrapers asking for text/plain or
// OpenMetrics get the exposition; everyone else gets a JSON status.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if wantsExposition(r.Header.Get("Accept")) {
		h.exporter.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Service:       serviceName,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleMetrics handles GET /metrics.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.exporter.ServeHTTP(w, r)
}

func wantsExposition(accept string) bool {
	return strings.Contains(accept, "application/openmetrics-text") ||
		strings.Contains(accept, "text/plain")
}
