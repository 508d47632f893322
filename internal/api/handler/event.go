package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iconidentify/linkgrab/internal/domain"
	"github.com/iconidentify/linkgrab/internal/service"
)

// EventHandler handles event-related HTTP requests.
type EventHandler struct {
	eventSvc *service.EventService
	logger   *slog.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(eventSvc *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		eventSvc: eventSvc,
		logger:   logger,
	}
}

// EventListResponse contains a page of events.
type EventListResponse struct {
	Events  []domain.Event `json:"events"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

// List handles GET /api/v1/events
// Query parameters:
//   - severity: info, warning, error or success
//   - category: resolve, download, auth or embed
//   - provider: instagram, tiktok, reddit or twitter
//   - limit: max events to return (default 50, max 200)
//   - offset: pagination offset
//   - historical: if "true", query SQLite instead of the ring buffer
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.EventQuery{Limit: 50}

	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		query.Limit = min(l, 200)
	}
	if o, err := strconv.Atoi(q.Get("offset")); err == nil && o >= 0 {
		query.Offset = o
	}
	if sev := q.Get("severity"); sev != "" {
		severity := domain.EventSeverity(sev)
		query.Filter.Severity = &severity
	}
	if cat := q.Get("category"); cat != "" {
		category := domain.EventCategory(cat)
		query.Filter.Category = &category
	}
	query.Filter.Provider = domain.Provider(q.Get("provider"))

	var (
		result *domain.EventQueryResult
		err    error
	)
	if q.Get("historical") == "true" {
		result, err = h.eventSvc.QueryHistorical(r.Context(), query)
	} else {
		result, err = h.eventSvc.Query(r.Context(), query)
	}
	if err != nil {
		h.logger.Error("failed to query events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query events")
		return
	}

	writeJSON(w, http.StatusOK, EventListResponse{
		Events:  result.Events,
		Total:   result.Total,
		Limit:   query.Limit,
		Offset:  query.Offset,
		HasMore: result.HasMore,
	})
}

// Recent handles GET /api/v1/events/recent.
func (h *EventHandler) Recent(w http.ResponseWriter, r *http.Request) {
	n := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 200 {
		n = l
	}
	events := h.eventSvc.GetRecent(n)
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Event{"events": events})
}
