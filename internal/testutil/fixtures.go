package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/mescon/Tickarr/internal/domain"
)

// EventOption is a functional option for configuring test events.
type EventOption func(*domain.Event)

// WithAggregateID sets a specific aggregate ID.
func WithAggregateID(id string) EventOption {
	return func(e *domain.Event) {
		e.AggregateID = id
	}
}

// WithCreatedAt sets the event creation time.
func WithCreatedAt(t time.Time) EventOption {
	return func(e *domain.Event) {
		e.CreatedAt = t
	}
}

// WithEventData merges additional data into EventData.
func WithEventData(data map[string]interface{}) EventOption {
	return func(e *domain.Event) {
		if e.EventData == nil {
			e.EventData = make(map[string]interface{})
		}
		for k, v := range data {
			e.EventData[k] = v
		}
	}
}

// NewTimerEvent creates a timer lifecycle event with a fresh aggregate ID.
func NewTimerEvent(eventType domain.EventType, data domain.TimerEventData, opts ...EventOption) domain.Event {
	e := domain.Event{
		AggregateType: domain.AggregateTimer,
		AggregateID:   uuid.New().String(),
		EventType:     eventType,
		EventData:     data.Map(),
		EventVersion:  1,
		CreatedAt:     time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// NewWarningEvent creates a WarningTriggered event for threshold seconds.
func NewWarningEvent(label string, threshold, total int, opts ...EventOption) domain.Event {
	return NewTimerEvent(domain.WarningTriggered, domain.TimerEventData{
		Label:     label,
		Status:    "running",
		Remaining: threshold,
		Total:     total,
		Threshold: threshold,
	}, opts...)
}

// NewCompletedEvent creates a TimerCompleted event.
func NewCompletedEvent(label string, total int, opts ...EventOption) domain.Event {
	return NewTimerEvent(domain.TimerCompleted, domain.TimerEventData{
		Label:  label,
		Status: "completed",
		Total:  total,
	}, opts...)
}

// TimerLifecycle returns the events of one timer that runs to completion
// after crossing both default warnings.
func TimerLifecycle(label string, total int) []domain.Event {
	id := uuid.New().String()
	base := time.Now().UTC().Add(-time.Duration(total) * time.Second)
	at := func(offset int) EventOption { return WithCreatedAt(base.Add(time.Duration(offset) * time.Second)) }
	data := func(status string, remaining int) domain.TimerEventData {
		return domain.TimerEventData{Label: label, Status: status, Remaining: remaining, Total: total}
	}

	events := []domain.Event{
		NewTimerEvent(domain.TimerCreated, data("idle", total), WithAggregateID(id), at(0)),
		NewTimerEvent(domain.TimerStarted, data("running", total), WithAggregateID(id), at(0)),
	}
	for _, th := range []int{300, 120} {
		if th < total {
			events = append(events, NewWarningEvent(label, th, total, WithAggregateID(id), at(total-th)))
		}
	}
	return append(events, NewCompletedEvent(label, total, WithAggregateID(id), at(total)))
}
