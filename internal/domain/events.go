package domain

import (
	"time"
)

type EventType string

const (
	TimerCreated     EventType = "TimerCreated"
	TimerStarted     EventType = "TimerStarted"
	TimerPaused      EventType = "TimerPaused"
	TimerResumed     EventType = "TimerResumed"
	TimerReset       EventType = "TimerReset"
	TimerCompleted   EventType = "TimerCompleted"
	TimerDeleted     EventType = "TimerDeleted"
	WarningTriggered EventType = "WarningTriggered"

	// TimerTicked is published every tick and is never persisted.
	TimerTicked EventType = "TimerTicked"

	NotificationSent   EventType = "NotificationSent"
	NotificationFailed EventType = "NotificationFailed"
)

// AggregateTimer is the aggregate type of every timer lifecycle event.
const AggregateTimer = "timer"

// AllTimerEvents lists the lifecycle events streamed to clients.
var AllTimerEvents = []EventType{
	TimerCreated,
	TimerStarted,
	TimerPaused,
	TimerResumed,
	TimerReset,
	TimerCompleted,
	TimerDeleted,
	WarningTriggered,
	TimerTicked,
}

// IsTransient reports whether events of this type skip the event store.
func (t EventType) IsTransient() bool {
	return t == TimerTicked
}

type Event struct {
	ID            int64                  `json:"id"`
	AggregateType string                 `json:"aggregate_type"`
	AggregateID   string                 `json:"aggregate_id"`
	EventType     EventType              `json:"event_type"`
	EventData     map[string]interface{} `json:"event_data"`
	EventVersion  int                    `json:"event_version"`
	CreatedAt     time.Time              `json:"created_at"`
}

// =============================================================================
// Type-safe event data accessors
// =============================================================================

// GetString safely extracts a string field from EventData.
func (e *Event) GetString(key string) (string, bool) {
	if e.EventData == nil {
		return "", false
	}
	v, ok := e.EventData[key].(string)
	return v, ok
}

// GetStringOr extracts a string field or returns the default value.
func (e *Event) GetStringOr(key, defaultVal string) string {
	if v, ok := e.GetString(key); ok {
		return v
	}
	return defaultVal
}

// GetInt safely extracts an integer field from EventData.
// Handles float64 values produced by JSON unmarshaling.
func (e *Event) GetInt(key string) (int, bool) {
	if e.EventData == nil {
		return 0, false
	}
	switch v := e.EventData[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// GetIntOr extracts an integer field or returns the default value.
func (e *Event) GetIntOr(key string, defaultVal int) int {
	if v, ok := e.GetInt(key); ok {
		return v
	}
	return defaultVal
}

// GetBoolOr extracts a boolean field or returns the default value.
func (e *Event) GetBoolOr(key string, defaultVal bool) bool {
	if e.EventData == nil {
		return defaultVal
	}
	if v, ok := e.EventData[key].(bool); ok {
		return v
	}
	return defaultVal
}

// =============================================================================
// Typed event data
// =============================================================================

// TimerEventData is carried by every timer lifecycle event.
type TimerEventData struct {
	Label     string `json:"label"`
	Status    string `json:"status"`
	Remaining int    `json:"remaining"`
	Total     int    `json:"total"`
	Threshold int    `json:"threshold,omitempty"` // WarningTriggered only
	From      string `json:"from,omitempty"`      // status before a transition

	// Warning config, carried by TimerCreated so sessions can be rebuilt
	WarningAt2Min bool `json:"warning_at_2min,omitempty"`
	WarningAt5Min bool `json:"warning_at_5min,omitempty"`
}

// Map converts the data into the generic EventData form.
func (d TimerEventData) Map() map[string]interface{} {
	m := map[string]interface{}{
		"label":     d.Label,
		"status":    d.Status,
		"remaining": d.Remaining,
		"total":     d.Total,
	}
	if d.Threshold > 0 {
		m["threshold"] = d.Threshold
	}
	if d.From != "" {
		m["from"] = d.From
	}
	if d.WarningAt2Min {
		m["warning_at_2min"] = true
	}
	if d.WarningAt5Min {
		m["warning_at_5min"] = true
	}
	return m
}

// ParseTimerEventData extracts typed timer data from an event.
func (e *Event) ParseTimerEventData() (TimerEventData, bool) {
	status, ok := e.GetString("status")
	if !ok {
		return TimerEventData{}, false
	}
	return TimerEventData{
		Label:     e.GetStringOr("label", ""),
		Status:    status,
		Remaining: e.GetIntOr("remaining", 0),
		Total:     e.GetIntOr("total", 0),
		Threshold: e.GetIntOr("threshold", 0),
		From:      e.GetStringOr("from", ""),

		WarningAt2Min: e.GetBoolOr("warning_at_2min", false),
		WarningAt5Min: e.GetBoolOr("warning_at_5min", false),
	}, true
}
