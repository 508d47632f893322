package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iconidentify/linkgrab/internal/config"
	"github.com/iconidentify/linkgrab/internal/domain"
)

func newTestEventService(t *testing.T, cfg config.EventsConfig) *EventService {
	t.Helper()
	svc, err := NewEventService(cfg, testLogger())
	if err != nil {
		t.Fatalf("failed to create event service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestEventService_Emit(t *testing.T) {
	svc := newTestEventService(t, config.EventsConfig{BufferSize: 10})

	svc.Emit(domain.Event{
		Severity: domain.EventSeverityInfo,
		Category: domain.EventCategoryDownload,
		Provider: domain.ProviderTwitter,
		Message:  "linked oversized media",
		Metadata: domain.EventMetadata{"tweet_id": "123"}.ToJSON(),
	})

	events := svc.GetRecent(10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Errorf("ID and Timestamp should be filled in: %+v", e)
	}
	if e.Message != "linked oversized media" || e.Provider != domain.ProviderTwitter {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestEventService_RingBuffer(t *testing.T) {
	svc := newTestEventService(t, config.EventsConfig{BufferSize: 5})

	for i := 0; i < 10; i++ {
		svc.Emit(domain.Event{Severity: domain.EventSeverityInfo, Category: domain.EventCategoryEmbed, Message: fmt.Sprintf("message %d", i)})
	}

	events := svc.GetRecent(10)
	if len(events) != 5 {
		t.Fatalf("expected 5 events (ring buffer size), got %d", len(events))
	}
	if events[0].Message != "message 9" {
		t.Errorf("expected first event to be 'message 9', got '%s'", events[0].Message)
	}
	if events[4].Message != "message 5" {
		t.Errorf("expected last event to be 'message 5', got '%s'", events[4].Message)
	}
}

func TestEventService_Query_Filter(t *testing.T) {
	svc := newTestEventService(t, config.EventsConfig{BufferSize: 100})

	svc.Emit(domain.Event{Severity: domain.EventSeverityError, Category: domain.EventCategoryAuth, Provider: domain.ProviderInstagram, Message: "session expired"})
	svc.Emit(domain.Event{Severity: domain.EventSeverityInfo, Category: domain.EventCategoryDownload, Provider: domain.ProviderReddit, Message: "linked"})
	svc.Emit(domain.Event{Severity: domain.EventSeveritySuccess, Category: domain.EventCategoryEmbed, Provider: domain.ProviderReddit, Message: "embedded"})

	severity := domain.EventSeverityError
	result, err := svc.Query(context.Background(), domain.EventQuery{Filter: domain.EventFilter{Severity: &severity}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if result.Total != 1 || result.Events[0].Message != "session expired" {
		t.Errorf("severity filter = %+v", result)
	}

	result, _ = svc.Query(context.Background(), domain.EventQuery{Filter: domain.EventFilter{Provider: domain.ProviderReddit}})
	if result.Total != 2 {
		t.Errorf("provider filter total = %d, want 2", result.Total)
	}
}

func TestEventService_Query_Pagination(t *testing.T) {
	svc := newTestEventService(t, config.EventsConfig{BufferSize: 100})
	for i := 0; i < 25; i++ {
		svc.Emit(domain.Event{Severity: domain.EventSeverityInfo, Category: domain.EventCategoryEmbed, Message: fmt.Sprintf("m%d", i)})
	}

	result, _ := svc.Query(context.Background(), domain.EventQuery{Limit: 10, Offset: 20})
	if len(result.Events) != 5 || result.HasMore {
		t.Errorf("page = %d events, has_more %v; want 5, false", len(result.Events), result.HasMore)
	}

	result, _ = svc.Query(context.Background(), domain.EventQuery{Limit: 10, Offset: 30})
	if len(result.Events) != 0 || result.Total != 25 {
		t.Errorf("past-the-end page = %+v", result)
	}
}

func TestEventService_ConcurrentEmit(t *testing.T) {
	svc := newTestEventService(t, config.EventsConfig{BufferSize: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				svc.Emit(domain.Event{Severity: domain.EventSeverityInfo, Category: domain.EventCategoryResolve, Message: "x"})
			}
		}()
	}
	wg.Wait()

	if got := svc.Stats().BufferUsed; got != 500 {
		t.Errorf("BufferUsed = %d, want 500", got)
	}
}

func TestEventService_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	svc := newTestEventService(t, config.EventsConfig{BufferSize: 2, SQLitePath: path})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		svc.Emit(domain.Event{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Severity:  domain.EventSeverityWarning,
			Category:  domain.EventCategoryResolve,
			Provider:  domain.ProviderTwitter,
			Message:   fmt.Sprintf("upstream %d", i),
			Metadata:  domain.EventMetadata{"status": 503}.ToJSON(),
		})
	}

	if !svc.Stats().SQLiteEnabled {
		t.Fatal("SQLite should be enabled")
	}

	result, err := svc.QueryHistorical(context.Background(), domain.EventQuery{Filter: domain.EventFilter{Provider: domain.ProviderTwitter}})
	if err != nil {
		t.Fatalf("QueryHistorical failed: %v", err)
	}
	if result.Total != 4 {
		t.Fatalf("Total = %d, want 4 (beyond the ring buffer)", result.Total)
	}
	if result.Events[0].Message != "upstream 3" {
		t.Errorf("newest first expected, got %q", result.Events[0].Message)
	}
	if string(result.Events[0].Metadata) != `{"status":503}` {
		t.Errorf("Metadata = %s", result.Events[0].Metadata)
	}
}

func TestEventService_QueryHistorical_Disabled(t *testing.T) {
	svc := newTestEventService(t, config.EventsConfig{})
	result, err := svc.QueryHistorical(context.Background(), domain.EventQuery{})
	if err != nil || len(result.Events) != 0 {
		t.Errorf("QueryHistorical = %+v, %v; want empty", result, err)
	}
}
