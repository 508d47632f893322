package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iconidentify/linkgrab/internal/config"
	"github.com/iconidentify/linkgrab/internal/domain"
	"github.com/iconidentify/linkgrab/internal/service"
)

func newTestEventHandler(t *testing.T) (*EventHandler, *service.EventService) {
	t.Helper()
	svc, err := service.NewEventService(config.EventsConfig{BufferSize: 50}, testLogger())
	if err != nil {
		t.Fatalf("NewEventService failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return NewEventHandler(svc, testLogger()), svc
}

func TestEventHandler_List(t *testing.T) {
	h, svc := newTestEventHandler(t)
	svc.Emit(domain.Event{Severity: domain.EventSeverityError, Category: domain.EventCategoryAuth, Provider: domain.ProviderInstagram, Message: "expired"})
	svc.Emit(domain.Event{Severity: domain.EventSeveritySuccess, Category: domain.EventCategoryEmbed, Provider: domain.ProviderReddit, Message: "embedded"})
	svc.Emit(domain.Event{Severity: domain.EventSeveritySuccess, Category: domain.EventCategoryEmbed, Provider: domain.ProviderReddit, Message: "embedded again"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?provider=reddit&limit=1", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp EventListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Events) != 1 || !resp.HasMore {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Events[0].Message != "embedded again" {
		t.Errorf("expected newest first, got %q", resp.Events[0].Message)
	}
}

func TestEventHandler_Recent(t *testing.T) {
	h, svc := newTestEventHandler(t)
	svc.Emit(domain.Event{Severity: domain.EventSeverityInfo, Category: domain.EventCategoryDownload, Message: "linked"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/recent", nil)
	w := httptest.NewRecorder()
	h.Recent(w, req)

	var resp map[string][]domain.Event
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp["events"]) != 1 {
		t.Errorf("events = %+v", resp)
	}
}
