package handler

import (
	"net/http"
	"time"

	"github.com/iconidentify/linkgrab/internal/service"
)

var startTime = time.Now()

// ControlCounter reports how many interactive controls are live.
type ControlCounter interface {
	Len() int
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	controls ControlCounter
	events   *service.EventService
	remux    bool
}

// NewHealthHandler creates a new health handler. remuxAvailable reports
// whether hosted Reddit videos can be remuxed.
func NewHealthHandler(controls ControlCounter, events *service.EventService, remuxAvailable bool) *HealthHandler {
	return &HealthHandler{controls: controls, events: events, remux: remuxAvailable}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StatsResponse reports runtime statistics.
type StatsResponse struct {
	Uptime         string              `json:"uptime"`
	LiveControls   int                 `json:"live_controls"`
	RemuxAvailable bool                `json:"remux_available"`
	Events         *service.EventStats `json:"events,omitempty"`
}

// Live handles GET /health.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Stats handles GET /api/v1/stats.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Uptime:         time.Since(startTime).Round(time.Second).String(),
		RemuxAvailable: h.remux,
	}
	if h.controls != nil {
		resp.LiveControls = h.controls.Len()
	}
	if h.events != nil {
		stats := h.events.Stats()
		resp.Events = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}
