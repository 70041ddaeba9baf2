package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mescon/Tickarr/internal/domain"
	"github.com/mescon/Tickarr/internal/storage"
	"github.com/mescon/Tickarr/internal/testutil"
	"github.com/mescon/Tickarr/internal/timer"
)

var bothWarnings = timer.WarningConfig{WarningAt2Min: true, WarningAt5Min: true}

func newTestTimerService(t *testing.T) (*TimerService, *testutil.MockClock, *testutil.MockEventBus, *storage.Store) {
	t.Helper()
	database, err := testutil.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	clk := testutil.NewMockClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	eb := testutil.NewMockEventBus()
	store := storage.New(database, "test_", storage.WithClock(clk))
	ts := NewTimerService(eb, store, time.Second, clk)
	t.Cleanup(ts.Stop)
	return ts, clk, eb, store
}

// advance moves the mock clock forward, running every tick that falls due.
func advance(clk *testutil.MockClock, seconds int) {
	clk.Advance(time.Duration(seconds) * time.Second)
}

func thresholdsOf(events []domain.Event) []int {
	var out []int
	for _, e := range events {
		out = append(out, e.GetIntOr("threshold", 0))
	}
	return out
}

// =============================================================================
// Create tests
// =============================================================================

func TestTimerService_Create(t *testing.T) {
	ts, _, eb, _ := newTestTimerService(t)

	snap, err := ts.Create("  Focus  ", 600, bothWarnings)
	require.NoError(t, err)

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "Focus", snap.Label)
	assert.Equal(t, 600, snap.Total)
	assert.Equal(t, 600, snap.Remaining)
	assert.Equal(t, timer.Idle, snap.Status)
	assert.Equal(t, timer.Thresholds{120, 300}, snap.Thresholds)
	assert.Equal(t, "10:00", snap.Formatted)
	assert.Equal(t, "10 minutes", snap.Readable)
	assert.Equal(t, 0.0, snap.Progress)
	assert.False(t, snap.InWarningZone)

	assert.Equal(t, 1, eb.EventCount(domain.TimerCreated))
}

func TestTimerService_Create_InvalidDuration(t *testing.T) {
	ts, _, eb, _ := newTestTimerService(t)

	for _, seconds := range []int{0, -5, timer.MaxDuration + 1} {
		_, err := ts.Create("x", seconds, timer.WarningConfig{})
		assert.ErrorIs(t, err, timer.ErrInvalidDuration, "seconds=%d", seconds)
	}
	assert.Empty(t, eb.GetAllEvents())
	assert.Empty(t, ts.List())
}

func TestTimerService_Create_Labels(t *testing.T) {
	ts, _, _, _ := newTestTimerService(t)

	snap, err := ts.Create("", 60, timer.WarningConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultLabel, snap.Label)

	long := make([]byte, MaxLabelLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = ts.Create(string(long), 60, timer.WarningConfig{})
	assert.ErrorIs(t, err, ErrInvalidLabel)
}

func TestTimerService_RemembersLastUsed(t *testing.T) {
	ts, _, _, _ := newTestTimerService(t)

	_, ok := ts.LastUsed()
	assert.False(t, ok)

	_, err := ts.Create("a", 1500, timer.WarningConfig{WarningAt5Min: true})
	require.NoError(t, err)

	lu, ok := ts.LastUsed()
	require.True(t, ok)
	assert.Equal(t, timer.Duration(1500), lu.Duration)
	assert.True(t, lu.Config.WarningAt5Min)
	assert.False(t, lu.Config.WarningAt2Min)
}

// =============================================================================
// Countdown tests
// =============================================================================

func TestTimerService_CountdownFiresWarningsOnceAndCompletes(t *testing.T) {
	ts, clk, eb, _ := newTestTimerService(t)

	snap, err := ts.Create("tea", 400, bothWarnings)
	require.NoError(t, err)
	_, err = ts.Start(snap.ID)
	require.NoError(t, err)

	advance(clk, 100)
	got, err := ts.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 300, got.Remaining)
	assert.True(t, got.InWarningZone)
	assert.Equal(t, []int{300}, thresholdsOf(eb.GetEvents(domain.WarningTriggered)))

	advance(clk, 180)
	assert.Equal(t, []int{300, 120}, thresholdsOf(eb.GetEvents(domain.WarningTriggered)))

	advance(clk, 120)
	got, err = ts.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Remaining)
	assert.Equal(t, timer.Completed, got.Status)
	assert.Equal(t, 100.0, got.Progress)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, 1, eb.EventCount(domain.TimerCompleted))
	assert.Equal(t, 400, eb.EventCount(domain.TimerTicked))
	assert.Equal(t, 2, eb.EventCount(domain.WarningTriggered), "each warning fires once")
	assert.Zero(t, clk.PendingCount(), "ticker stops at completion")

	advance(clk, 10)
	assert.Equal(t, 400, eb.EventCount(domain.TimerTicked))
}

func TestTimerService_WarningCarriesThreshold(t *testing.T) {
	ts, clk, eb, _ := newTestTimerService(t)

	snap, err := ts.Create("tea", 121, timer.WarningConfig{WarningAt2Min: true})
	require.NoError(t, err)
	_, err = ts.Start(snap.ID)
	require.NoError(t, err)

	clk.Advance(time.Second)
	warn := eb.GetEvents(domain.WarningTriggered)
	require.Len(t, warn, 1)
	data, ok := warn[0].ParseTimerEventData()
	require.True(t, ok)
	assert.Equal(t, 120, data.Threshold)
	assert.Equal(t, 120, data.Remaining)
	assert.Equal(t, "tea", data.Label)
	assert.Equal(t, snap.ID, warn[0].AggregateID)
}

func TestTimerService_PauseStopsCountdown(t *testing.T) {
	ts, clk, _, _ := newTestTimerService(t)

	snap, err := ts.Create("x", 60, timer.WarningConfig{})
	require.NoError(t, err)
	_, err = ts.Start(snap.ID)
	require.NoError(t, err)
	advance(clk, 10)

	paused, err := ts.Pause(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, timer.Paused, paused.Status)
	assert.Equal(t, 50, paused.Remaining)

	advance(clk, 10)
	got, _ := ts.Get(snap.ID)
	assert.Equal(t, 50, got.Remaining)

	_, err = ts.Resume(snap.ID)
	require.NoError(t, err)
	advance(clk, 5)
	got, _ = ts.Get(snap.ID)
	assert.Equal(t, 45, got.Remaining)
	assert.Equal(t, timer.Running, got.Status)
	assert.Equal(t, 1, clk.PendingCount(), "only one ticker per timer")
}

func TestTimerService_ResumeKeepsTriggeredWarnings(t *testing.T) {
	ts, clk, eb, _ := newTestTimerService(t)

	snap, err := ts.Create("x", 130, timer.WarningConfig{WarningAt2Min: true})
	require.NoError(t, err)
	_, err = ts.Start(snap.ID)
	require.NoError(t, err)
	advance(clk, 15)
	require.Equal(t, 1, eb.EventCount(domain.WarningTriggered))

	_, err = ts.Pause(snap.ID)
	require.NoError(t, err)
	resumed, err := ts.Resume(snap.ID)
	require.NoError(t, err)
	assert.True(t, resumed.Triggered.Has(120))

	advance(clk, 5)
	assert.Equal(t, 1, eb.EventCount(domain.WarningTriggered))
}

func TestTimerService_ResetClearsWarnings(t *testing.T) {
	ts, clk, eb, _ := newTestTimerService(t)

	snap, err := ts.Create("x", 130, timer.WarningConfig{WarningAt2Min: true})
	require.NoError(t, err)
	_, err = ts.Start(snap.ID)
	require.NoError(t, err)
	advance(clk, 15)

	reset, err := ts.Reset(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, timer.Idle, reset.Status)
	assert.Equal(t, 130, reset.Remaining)
	assert.Zero(t, reset.Triggered.Len())
	assert.Zero(t, clk.PendingCount())

	_, err = ts.Start(snap.ID)
	require.NoError(t, err)
	advance(clk, 15)
	assert.Equal(t, 2, eb.EventCount(domain.WarningTriggered), "warning fires again in a new run")
}

func TestTimerService_StartFromCompletedRestarts(t *testing.T) {
	ts, clk, eb, _ := newTestTimerService(t)

	snap, err := ts.Create("x", 3, timer.WarningConfig{})
	require.NoError(t, err)
	_, err = ts.Start(snap.ID)
	require.NoError(t, err)
	advance(clk, 3)

	restarted, err := ts.Start(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, timer.Running, restarted.Status)
	assert.Equal(t, 3, restarted.Remaining)
	assert.Nil(t, restarted.CompletedAt)

	advance(clk, 3)
	assert.Equal(t, 2, eb.EventCount(domain.TimerCompleted))
}

// =============================================================================
// Transition table tests
// =============================================================================

func TestTimerService_InvalidTransitions(t *testing.T) {
	ts, clk, _, _ := newTestTimerService(t)

	snap, err := ts.Create("x", 10, timer.WarningConfig{})
	require.NoError(t, err)

	tests := []struct {
		name string
		prep func()
		op   func(string) (Snapshot, error)
	}{
		{"pause idle", func() {}, ts.Pause},
		{"resume idle", func() {}, ts.Resume},
		{"start running", func() { _, _ = ts.Start(snap.ID) }, ts.Start},
		{"resume running", func() {}, ts.Resume},
		{"pause paused", func() { _, _ = ts.Pause(snap.ID) }, ts.Pause},
		{"pause completed", func() { _, _ = ts.Resume(snap.ID); advance(clk, 10) }, ts.Pause},
		{"resume completed", func() {}, ts.Resume},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prep()
			before, _ := ts.Get(snap.ID)
			_, err := tt.op(snap.ID)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			after, _ := ts.Get(snap.ID)
			assert.Equal(t, before.Status, after.Status)
		})
	}
}

func TestTimerService_ResetIsAlwaysAllowed(t *testing.T) {
	ts, _, eb, _ := newTestTimerService(t)

	snap, err := ts.Create("x", 10, timer.WarningConfig{})
	require.NoError(t, err)

	_, err = ts.Reset(snap.ID)
	require.NoError(t, err, "idle -> idle")
	assert.Equal(t, 1, eb.EventCount(domain.TimerReset))
}

func TestTimerService_NotFound(t *testing.T) {
	ts, _, _, _ := newTestTimerService(t)

	_, err := ts.Get("missing")
	assert.ErrorIs(t, err, ErrTimerNotFound)
	_, err = ts.Start("missing")
	assert.ErrorIs(t, err, ErrTimerNotFound)
	assert.ErrorIs(t, ts.Delete("missing"), ErrTimerNotFound)
}

func TestTimerService_Delete(t *testing.T) {
	ts, clk, eb, _ := newTestTimerService(t)

	snap, err := ts.Create("x", 10, timer.WarningConfig{})
	require.NoError(t, err)
	_, err = ts.Start(snap.ID)
	require.NoError(t, err)

	require.NoError(t, ts.Delete(snap.ID))
	assert.Zero(t, clk.PendingCount())
	assert.Empty(t, ts.List())
	assert.Equal(t, 1, eb.EventCount(domain.TimerDeleted))

	advance(clk, 3)
	assert.Zero(t, eb.EventCount(domain.TimerTicked))
}

func TestTimerService_ListAndCounts(t *testing.T) {
	ts, clk, _, _ := newTestTimerService(t)

	a, err := ts.Create("a", 10, timer.WarningConfig{})
	require.NoError(t, err)
	clk.SetNow(clk.Now().Add(time.Second))
	b, err := ts.Create("b", 10, timer.WarningConfig{})
	require.NoError(t, err)
	_, err = ts.Start(b.ID)
	require.NoError(t, err)

	list := ts.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	counts := ts.CountByStatus()
	assert.Equal(t, 1, counts[timer.Idle])
	assert.Equal(t, 1, counts[timer.Running])
	assert.Equal(t, 0, counts[timer.Completed])
}

func TestTimerService_Stop(t *testing.T) {
	ts, clk, _, _ := newTestTimerService(t)

	snap, err := ts.Create("x", 10, timer.WarningConfig{})
	require.NoError(t, err)
	_, err = ts.Start(snap.ID)
	require.NoError(t, err)

	ts.Stop()
	assert.Zero(t, clk.PendingCount())

	_, err = ts.Create("y", 10, timer.WarningConfig{})
	assert.Error(t, err)
}

// failingPublisher rejects every event.
type failingPublisher struct{ testutil.MockEventBus }

func (f *failingPublisher) Publish(domain.Event) error { return errors.New("bus down") }

func TestTimerService_PublishErrorsDoNotFailOperations(t *testing.T) {
	clk := testutil.NewMockClock()
	ts := NewTimerService(&failingPublisher{}, nil, time.Second, clk)
	defer ts.Stop()

	snap, err := ts.Create("x", 2, timer.WarningConfig{})
	require.NoError(t, err)
	_, err = ts.Start(snap.ID)
	require.NoError(t, err)
	advance(clk, 2)

	got, err := ts.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, timer.Completed, got.Status)

	_, ok := ts.LastUsed()
	assert.False(t, ok, "no store configured")
}

func TestTimerService_TransitionEventsCarryPreviousStatus(t *testing.T) {
	ts, clk, eb, _ := newTestTimerService(t)

	snap, err := ts.Create("x", 2, timer.WarningConfig{})
	require.NoError(t, err)
	_, err = ts.Start(snap.ID)
	require.NoError(t, err)
	_, err = ts.Pause(snap.ID)
	require.NoError(t, err)
	_, err = ts.Resume(snap.ID)
	require.NoError(t, err)
	advance(clk, 2)

	from := func(et domain.EventType) string {
		ev := eb.GetEvents(et)
		require.Len(t, ev, 1)
		return ev[0].GetStringOr("from", "")
	}
	assert.Equal(t, "idle", from(domain.TimerStarted))
	assert.Equal(t, "running", from(domain.TimerPaused))
	assert.Equal(t, "paused", from(domain.TimerResumed))
	assert.Equal(t, "running", from(domain.TimerCompleted))
}
