package domain

import (
	"encoding/json"
	"time"
)

// EventID is a unique identifier for an activity event.
type EventID string

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	EventSeverityInfo    EventSeverity = "info"
	EventSeverityWarning EventSeverity = "warning"
	EventSeverityError   EventSeverity = "error"
	EventSeveritySuccess EventSeverity = "success"
)

// EventCategory groups events by pipeline stage.
type EventCategory string

const (
	EventCategoryResolve  EventCategory = "resolve"
	EventCategoryDownload EventCategory = "download"
	EventCategoryAuth     EventCategory = "auth"
	EventCategoryEmbed    EventCategory = "embed"
)

// Event is one entry of the operator activity log.
type Event struct {
	ID        EventID         `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Severity  EventSeverity   `json:"severity"`
	Category  EventCategory   `json:"category"`
	Provider  Provider        `json:"provider,omitempty"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// EventMetadata is a helper type for building event metadata.
type EventMetadata map[string]any

// ToJSON converts metadata to JSON for storage.
func (m EventMetadata) ToJSON() json.RawMessage {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}

// EventEmitter is implemented by the activity log.
type EventEmitter interface {
	Emit(event Event)
}

// EventFilter narrows event queries.
type EventFilter struct {
	Severity *EventSeverity `json:"severity,omitempty"`
	Category *EventCategory `json:"category,omitempty"`
	Provider Provider       `json:"provider,omitempty"`
}

// Matches reports whether the event satisfies the filter.
func (f EventFilter) Matches(e Event) bool {
	if f.Severity != nil && e.Severity != *f.Severity {
		return false
	}
	if f.Category != nil && e.Category != *f.Category {
		return false
	}
	if f.Provider != "" && e.Provider != f.Provider {
		return false
	}
	return true
}

// EventQuery pages through the activity log, newest first.
type EventQuery struct {
	Filter EventFilter `json:"filter"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// EventQueryResult is one page of events.
type EventQueryResult struct {
	Events  []Event `json:"events"`
	Total   int     `json:"total"`
	HasMore bool    `json:"has_more"`
}
