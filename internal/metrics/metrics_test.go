package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mescon/Tickarr/internal/domain"
	tu "github.com/mescon/Tickarr/internal/testutil"
	"github.com/mescon/Tickarr/internal/timer"
)

type fakeTimers map[timer.Status]int

func (f fakeTimers) CountByStatus() map[timer.Status]int { return f }

type fakeDrops int64

func (f fakeDrops) Dropped() int64 { return int64(f) }

// =============================================================================
// Test helpers
// =============================================================================

func createTestMetrics(t *testing.T) (*MetricsService, *tu.MockEventBus) {
	t.Helper()
	eb := tu.NewMockEventBus()
	m := NewMetricsService(eb, fakeTimers{timer.Running: 2, timer.Idle: 1}, fakeDrops(3))
	m.Start()
	return m, eb
}

func transition(eventType domain.EventType, from, to string) domain.Event {
	return tu.NewTimerEvent(eventType, domain.TimerEventData{Label: "x", Status: to, From: from, Total: 600})
}

// =============================================================================
// Event handling tests
// =============================================================================

func TestMetrics_TimerCreated(t *testing.T) {
	m, eb := createTestMetrics(t)
	require.NoError(t, eb.Publish(tu.NewTimerEvent(domain.TimerCreated, domain.TimerEventData{Status: "idle"})))
	require.NoError(t, eb.Publish(tu.NewTimerEvent(domain.TimerCreated, domain.TimerEventData{Status: "idle"})))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.timersCreated))
}

func TestMetrics_Transitions(t *testing.T) {
	m, eb := createTestMetrics(t)
	require.NoError(t, eb.Publish(transition(domain.TimerStarted, "idle", "running")))
	require.NoError(t, eb.Publish(transition(domain.TimerPaused, "running", "paused")))
	require.NoError(t, eb.Publish(transition(domain.TimerResumed, "paused", "running")))
	require.NoError(t, eb.Publish(transition(domain.TimerReset, "", "idle")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("idle", "running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("running", "paused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("paused", "running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("unknown", "idle")))
}

func TestMetrics_Completion(t *testing.T) {
	m, eb := createTestMetrics(t)
	require.NoError(t, eb.Publish(transition(domain.TimerCompleted, "running", "completed")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.completionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("running", "completed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.completedDuration))
}

func TestMetrics_Warnings(t *testing.T) {
	m, eb := createTestMetrics(t)
	require.NoError(t, eb.Publish(tu.NewWarningEvent("x", 300, 600)))
	require.NoError(t, eb.Publish(tu.NewWarningEvent("x", 120, 600)))
	require.NoError(t, eb.Publish(tu.NewWarningEvent("y", 120, 600)))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.warningsTotal.WithLabelValues("300")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.warningsTotal.WithLabelValues("120")))
}

func TestMetrics_Notifications(t *testing.T) {
	m, eb := createTestMetrics(t)
	require.NoError(t, eb.Publish(domain.Event{EventType: domain.NotificationSent, EventData: map[string]interface{}{"provider": "ntfy"}}))
	require.NoError(t, eb.Publish(domain.Event{EventType: domain.NotificationFailed, EventData: map[string]interface{}{"provider": "discord"}}))
	require.NoError(t, eb.Publish(domain.Event{EventType: domain.NotificationFailed}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsTotal.WithLabelValues("ntfy", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsTotal.WithLabelValues("discord", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsTotal.WithLabelValues("unknown", "failed")))
}

// =============================================================================
// Handler tests
// =============================================================================

func TestMetrics_Handler(t *testing.T) {
	m, eb := createTestMetrics(t)
	require.NoError(t, eb.Publish(tu.NewTimerEvent(domain.TimerCreated, domain.TimerEventData{Status: "idle"})))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, want := range []string{
		"tickarr_timers_created_total 1",
		`tickarr_timers{status="running"} 2`,
		`tickarr_timers{status="idle"} 1`,
		`tickarr_timers{status="completed"} 0`,
		"tickarr_eventbus_dropped_total 3",
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(body, want), "missing %q", want)
	}
}

func TestMetrics_OptionalCollectors(t *testing.T) {
	m := NewMetricsService(tu.NewMockEventBus(), nil, nil)
	n, err := testutil.GatherAndCount(m.Registry(), "tickarr_timers", "tickarr_eventbus_dropped_total")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two services must not collide on registration
	NewMetricsService(tu.NewMockEventBus(), nil, nil)
	NewMetricsService(tu.NewMockEventBus(), nil, nil)
}
