// Package testutil provides test utilities including mocks, fixtures, and test database helpers.
package testutil

import (
	"sync"
	"time"

	"github.com/mescon/Tickarr/internal/clock"
	"github.com/mescon/Tickarr/internal/domain"
	"github.com/mescon/Tickarr/internal/eventbus"
)

// =============================================================================
// MockClock - drives countdown ticks deterministically
// =============================================================================

// MockClock implements clock.Clock. Scheduled functions run only when the test
// moves time forward with Advance.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	pending []*scheduledCall
}

type scheduledCall struct {
	id int
	at time.Time
	fn func()
}

// mockTimer cancels one scheduled call.
type mockTimer struct {
	clock *MockClock
	id    int
}

var _ clock.Clock = (*MockClock)(nil)

// NewMockClock starts at the current wall time.
func NewMockClock() *MockClock {
	return NewMockClockAt(time.Now())
}

// NewMockClockAt starts at t.
func NewMockClockAt(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// SetNow jumps to t without running anything that became due.
func (m *MockClock) SetNow(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

func (m *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.pending = append(m.pending, &scheduledCall{id: m.nextID, at: m.now.Add(d), fn: f})
	return &mockTimer{clock: m, id: m.nextID}
}

// Advance moves time forward by d, running due calls in schedule order with
// the clock set to each call's time. Calls scheduled by a running call also
// run if they fall within d. Returns the number of calls run.
func (m *MockClock) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now.Add(d)
	ran := 0
	for {
		call := m.popDue(target)
		if call == nil {
			break
		}
		m.now = call.at
		m.mu.Unlock()
		call.fn()
		ran++
		m.mu.Lock()
	}
	m.now = target
	m.mu.Unlock()
	return ran
}

// popDue removes and returns the earliest call due at or before target.
// Must be called with m.mu held.
func (m *MockClock) popDue(target time.Time) *scheduledCall {
	best := -1
	for i, c := range m.pending {
		if c.at.After(target) {
			continue
		}
		if best < 0 || c.at.Before(m.pending[best].at) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	call := m.pending[best]
	m.pending = append(m.pending[:best], m.pending[best+1:]...)
	return call
}

// PendingCount returns how many calls are scheduled and not yet run or stopped.
func (m *MockClock) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Stop cancels the call. Returns false if it already ran or was stopped.
func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	for i, c := range t.clock.pending {
		if c.id == t.id {
			t.clock.pending = append(t.clock.pending[:i], t.clock.pending[i+1:]...)
			return true
		}
	}
	return false
}

// =============================================================================
// MockEventBus - synchronous in-memory Publisher
// =============================================================================

// MockEventBus records published events and calls subscribers synchronously,
// so assertions can follow a Publish directly.
type MockEventBus struct {
	mu       sync.Mutex
	events   []domain.Event
	handlers map[domain.EventType][]func(domain.Event)
}

var _ eventbus.Publisher = (*MockEventBus)(nil)

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{handlers: make(map[domain.EventType][]func(domain.Event))}
}

func (m *MockEventBus) Publish(event domain.Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	handlers := append([]func(domain.Event){}, m.handlers[event.EventType]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

func (m *MockEventBus) Subscribe(eventType domain.EventType, handler func(domain.Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// GetEvents returns the recorded events of one type in publish order.
func (m *MockEventBus) GetEvents(eventType domain.EventType) []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// GetAllEvents returns every recorded event.
func (m *MockEventBus) GetAllEvents() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Event(nil), m.events...)
}

func (m *MockEventBus) EventCount(eventType domain.EventType) int {
	return len(m.GetEvents(eventType))
}

// Reset forgets recorded events. Subscribers stay registered.
func (m *MockEventBus) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// =============================================================================
// MockSender - Records notification deliveries
// =============================================================================

// SentMessage is one recorded delivery.
type SentMessage struct {
	URL     string
	Message string
}

// MockSender records notification deliveries. Set Err to make every send fail,
// or FailURLs to fail only specific URLs.
type MockSender struct {
	mu       sync.Mutex
	Sent     []SentMessage
	Err      error
	FailURLs map[string]bool
}

// Send records the message and returns the configured error.
func (m *MockSender) Send(url, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{URL: url, Message: message})
	if m.FailURLs[url] {
		return errSendFailed
	}
	return m.Err
}

// Messages returns a copy of the recorded deliveries.
func (m *MockSender) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.Sent))
	copy(out, m.Sent)
	return out
}

type sendError string

func (e sendError) Error() string { return string(e) }

const errSendFailed = sendError("mock send failed")
