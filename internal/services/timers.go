package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mescon/Tickarr/internal/clock"
	"github.com/mescon/Tickarr/internal/domain"
	"github.com/mescon/Tickarr/internal/eventbus"
	"github.com/mescon/Tickarr/internal/logger"
	"github.com/mescon/Tickarr/internal/timer"
)

var (
	ErrTimerNotFound     = errors.New("timer not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidLabel      = errors.New("invalid label")
	ErrServiceStopped    = errors.New("timer service is stopped")
)

// MaxLabelLength bounds timer labels.
const MaxLabelLength = 100

// DefaultLabel is used when a timer is created without a label.
const DefaultLabel = "Timer"

// lastUsedKey is the storage key of the most recent timer settings.
const lastUsedKey = "last_used"

// KeyValueStore is the part of the storage collaborator the timer service uses.
type KeyValueStore interface {
	Get(key string, dest interface{}) error
	Set(key string, value interface{}) error
}

// LastUsed is the duration and warning config of the most recently created timer.
type LastUsed struct {
	Duration timer.Duration      `json:"duration"`
	Config   timer.WarningConfig `json:"config"`
}

// Snapshot is a point-in-time view of a timer with derived display values.
type Snapshot struct {
	ID            string                  `json:"id"`
	Label         string                  `json:"label"`
	Total         int                     `json:"total"`
	Remaining     int                     `json:"remaining"`
	Status        timer.Status            `json:"status"`
	Config        timer.WarningConfig     `json:"config"`
	Thresholds    timer.Thresholds        `json:"thresholds"`
	Triggered     timer.TriggeredWarnings `json:"triggered"`
	Formatted     string                  `json:"formatted"`
	Readable      string                  `json:"readable"`
	Progress      float64                 `json:"progress"`
	InWarningZone bool                    `json:"in_warning_zone"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
	CompletedAt   *time.Time              `json:"completed_at,omitempty"`
}

type session struct {
	id          string
	label       string
	total       int
	remaining   int
	status      timer.Status
	config      timer.WarningConfig
	thresholds  timer.Thresholds
	triggered   timer.TriggeredWarnings
	createdAt   time.Time
	updatedAt   time.Time
	completedAt *time.Time

	ticker *clock.Ticker
	// generation invalidates ticks scheduled before the last pause or reset
	generation int
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		ID:            s.id,
		Label:         s.label,
		Total:         s.total,
		Remaining:     s.remaining,
		Status:        s.status,
		Config:        s.config,
		Thresholds:    s.thresholds,
		Triggered:     s.triggered,
		Formatted:     timer.FormatTime(s.remaining),
		Readable:      timer.ReadableTimeRemaining(s.remaining),
		Progress:      timer.Progress(s.remaining, s.total),
		InWarningZone: timer.IsInWarningZone(s.remaining, s.thresholds),
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.updatedAt,
		CompletedAt:   s.completedAt,
	}
}

func (s *session) eventData() domain.TimerEventData {
	return domain.TimerEventData{
		Label:     s.label,
		Status:    s.status.String(),
		Remaining: s.remaining,
		Total:     s.total,
	}
}

// TimerService owns countdown sessions and drives their ticks. Every user
// change goes through the status transition table; completion is applied by
// the tick loop itself.
type TimerService struct {
	eventBus eventbus.Publisher
	store    KeyValueStore
	clk      clock.Clock
	interval time.Duration

	mu       sync.Mutex
	sessions map[string]*session
	stopped  bool
}

// NewTimerService creates a TimerService. Each tick counts down one second and
// fires every interval. store may be nil. An optional Clock can be provided
// for testing; if none is provided, RealClock is used.
func NewTimerService(eb eventbus.Publisher, store KeyValueStore, interval time.Duration, clocks ...clock.Clock) *TimerService {
	var c clock.Clock = clock.NewRealClock()
	if len(clocks) > 0 && clocks[0] != nil {
		c = clocks[0]
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &TimerService{
		eventBus: eb,
		store:    store,
		clk:      c,
		interval: interval,
		sessions: make(map[string]*session),
	}
}

// Create registers an idle timer of seconds length.
func (ts *TimerService) Create(label string, seconds int, cfg timer.WarningConfig) (Snapshot, error) {
	d, err := timer.ValidateDuration(seconds)
	if err != nil {
		return Snapshot{}, err
	}

	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultLabel
	}
	if len(label) > MaxLabelLength {
		return Snapshot{}, fmt.Errorf("%w: must be at most %d characters", ErrInvalidLabel, MaxLabelLength)
	}

	now := ts.clk.Now()
	s := &session{
		id:         uuid.New().String(),
		label:      label,
		total:      d.Seconds(),
		remaining:  d.Seconds(),
		status:     timer.Idle,
		config:     cfg,
		thresholds: timer.CalculateWarningThresholds(d.Seconds(), cfg),
		createdAt:  now,
		updatedAt:  now,
	}

	ts.mu.Lock()
	if ts.stopped {
		ts.mu.Unlock()
		return Snapshot{}, ErrServiceStopped
	}
	ts.sessions[s.id] = s
	snap := s.snapshot()
	data := s.eventData()
	data.WarningAt2Min = cfg.WarningAt2Min
	data.WarningAt5Min = cfg.WarningAt5Min
	ts.mu.Unlock()

	ts.rememberLastUsed(LastUsed{Duration: d, Config: cfg})
	ts.publish(s.id, domain.TimerCreated, data)
	logger.Debugf("Created timer %s (%q, %s)", s.id, label, d)
	return snap, nil
}

// Start begins a run. Starting a completed timer restarts it at full duration.
func (ts *TimerService) Start(id string) (Snapshot, error) {
	return ts.transition(id, timer.Running, domain.TimerStarted, nil)
}

// Pause stops the countdown of a running timer.
func (ts *TimerService) Pause(id string) (Snapshot, error) {
	return ts.transition(id, timer.Paused, domain.TimerPaused, nil)
}

// Resume continues a paused timer. Warnings already fired stay fired.
func (ts *TimerService) Resume(id string) (Snapshot, error) {
	return ts.transition(id, timer.Running, domain.TimerResumed, func(current timer.Status) bool {
		return current == timer.Paused
	})
}

// Reset returns a timer to idle at its full duration and clears its warnings.
func (ts *TimerService) Reset(id string) (Snapshot, error) {
	return ts.transition(id, timer.Idle, domain.TimerReset, nil)
}

func (ts *TimerService) transition(id string, next timer.Status, eventType domain.EventType, allowed func(timer.Status) bool) (Snapshot, error) {
	ts.mu.Lock()
	s, ok := ts.sessions[id]
	if !ok {
		ts.mu.Unlock()
		return Snapshot{}, ErrTimerNotFound
	}

	current := s.status
	if !timer.IsValidTransition(current, next) || (allowed != nil && !allowed(current)) {
		ts.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}

	s.triggered = timer.TriggeredAfterTransition(current, next, s.triggered)
	switch next {
	case timer.Idle:
		s.remaining = s.total
		s.completedAt = nil
		ts.stopTicker(s)
	case timer.Running:
		if current == timer.Completed || current == timer.Idle {
			s.remaining = s.total
			s.completedAt = nil
		}
		ts.startTicker(s)
	case timer.Paused:
		ts.stopTicker(s)
	case timer.Completed:
		// Only the tick loop completes a timer
	}
	s.status = next
	s.updatedAt = ts.clk.Now()

	snap := s.snapshot()
	data := s.eventData()
	data.From = current.String()
	ts.mu.Unlock()

	ts.publish(id, eventType, data)
	logger.Debugf("Timer %s: %s -> %s", id, current, next)
	return snap, nil
}

// Delete stops and removes a timer.
func (ts *TimerService) Delete(id string) error {
	ts.mu.Lock()
	s, ok := ts.sessions[id]
	if !ok {
		ts.mu.Unlock()
		return ErrTimerNotFound
	}
	ts.stopTicker(s)
	delete(ts.sessions, id)
	data := s.eventData()
	ts.mu.Unlock()

	ts.publish(id, domain.TimerDeleted, data)
	return nil
}

// RestoredTimer is the persisted state of a timer rebuilt from its events.
type RestoredTimer struct {
	ID          string
	Label       string
	Total       int
	Remaining   int
	Status      timer.Status
	Config      timer.WarningConfig
	Triggered   timer.TriggeredWarnings
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Restore registers a timer rebuilt from the event store. A timer that was
// running comes back paused, since its countdown stopped with the process.
func (ts *TimerService) Restore(r RestoredTimer) (Snapshot, error) {
	if _, err := timer.ValidateDuration(r.Total); err != nil {
		return Snapshot{}, err
	}
	if r.Remaining < 0 || r.Remaining > r.Total {
		return Snapshot{}, fmt.Errorf("%w: remaining %d outside 0..%d", timer.ErrInvalidDuration, r.Remaining, r.Total)
	}

	s := &session{
		id:          r.ID,
		label:       r.Label,
		total:       r.Total,
		remaining:   r.Remaining,
		status:      r.Status,
		config:      r.Config,
		thresholds:  timer.CalculateWarningThresholds(r.Total, r.Config),
		triggered:   r.Triggered,
		createdAt:   r.CreatedAt,
		updatedAt:   r.UpdatedAt,
		completedAt: r.CompletedAt,
	}
	wasRunning := s.status == timer.Running
	if wasRunning {
		s.status = timer.Paused
		s.updatedAt = ts.clk.Now()
	}

	ts.mu.Lock()
	if ts.stopped {
		ts.mu.Unlock()
		return Snapshot{}, ErrServiceStopped
	}
	if old, ok := ts.sessions[s.id]; ok {
		ts.stopTicker(old)
	}
	ts.sessions[s.id] = s
	snap := s.snapshot()
	data := s.eventData()
	data.From = timer.Running.String()
	ts.mu.Unlock()

	if wasRunning {
		ts.publish(s.id, domain.TimerPaused, data)
	}
	return snap, nil
}

// Get returns the current snapshot of a timer.
func (ts *TimerService) Get(id string) (Snapshot, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	s, ok := ts.sessions[id]
	if !ok {
		return Snapshot{}, ErrTimerNotFound
	}
	return s.snapshot(), nil
}

// List returns all timers, oldest first.
func (ts *TimerService) List() []Snapshot {
	ts.mu.Lock()
	out := make([]Snapshot, 0, len(ts.sessions))
	for _, s := range ts.sessions {
		out = append(out, s.snapshot())
	}
	ts.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// CountByStatus returns how many timers are in each status.
func (ts *TimerService) CountByStatus() map[timer.Status]int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	counts := make(map[timer.Status]int, len(timer.Statuses))
	for _, st := range timer.Statuses {
		counts[st] = 0
	}
	for _, s := range ts.sessions {
		counts[s.status]++
	}
	return counts
}

// LastUsed returns the settings of the most recently created timer.
func (ts *TimerService) LastUsed() (LastUsed, bool) {
	if ts.store == nil {
		return LastUsed{}, false
	}
	var lu LastUsed
	if err := ts.store.Get(lastUsedKey, &lu); err != nil {
		return LastUsed{}, false
	}
	return lu, true
}

// Stop halts every running countdown. Timers keep their state.
func (ts *TimerService) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.stopped {
		return
	}
	ts.stopped = true
	for _, s := range ts.sessions {
		ts.stopTicker(s)
	}
	logger.Infof("Timer service stopped (%d timers)", len(ts.sessions))
}

// startTicker must be called with ts.mu held.
func (ts *TimerService) startTicker(s *session) {
	ts.stopTicker(s)
	gen := s.generation
	id := s.id
	s.ticker = clock.Every(ts.clk, ts.interval, func() { ts.tick(id, gen) })
}

// stopTicker must be called with ts.mu held.
func (ts *TimerService) stopTicker(s *session) {
	s.generation++
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

// tick counts one second off a running timer, fires crossed warnings and
// completes the timer at zero.
func (ts *TimerService) tick(id string, gen int) {
	type pending struct {
		eventType domain.EventType
		data      domain.TimerEventData
	}
	var out []pending

	ts.mu.Lock()
	s, ok := ts.sessions[id]
	if !ok || s.generation != gen || s.status != timer.Running {
		ts.mu.Unlock()
		return
	}

	s.remaining--
	if s.remaining < 0 {
		s.remaining = 0
	}
	decision, next := timer.EvaluateTick(s.remaining, s.thresholds, s.triggered)
	s.triggered = next
	s.updatedAt = ts.clk.Now()

	out = append(out, pending{domain.TimerTicked, s.eventData()})
	for _, th := range decision.Fired {
		data := s.eventData()
		data.Threshold = th
		out = append(out, pending{domain.WarningTriggered, data})
	}
	if decision.Completed {
		s.status = timer.Completed
		now := ts.clk.Now()
		s.completedAt = &now
		ts.stopTicker(s)
		data := s.eventData()
		data.From = timer.Running.String()
		out = append(out, pending{domain.TimerCompleted, data})
	}
	ts.mu.Unlock()

	for _, p := range out {
		ts.publish(id, p.eventType, p.data)
	}
}

func (ts *TimerService) publish(id string, eventType domain.EventType, data domain.TimerEventData) {
	if ts.eventBus == nil {
		return
	}
	if err := ts.eventBus.Publish(domain.Event{
		AggregateType: domain.AggregateTimer,
		AggregateID:   id,
		EventType:     eventType,
		EventData:     data.Map(),
	}); err != nil {
		logger.Errorf("Failed to publish %s for timer %s: %v", eventType, id, err)
	}
}

func (ts *TimerService) rememberLastUsed(lu LastUsed) {
	if ts.store == nil {
		return
	}
	if err := ts.store.Set(lastUsedKey, lu); err != nil {
		logger.Warnf("Failed to remember last used timer settings: %v", err)
	}
}
