package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mescon/Tickarr/internal/domain"
	"github.com/mescon/Tickarr/internal/logger"
	"github.com/mescon/Tickarr/internal/timer"
)

// recoveryQueryTimeout is the maximum time for database queries in recovery service.
const recoveryQueryTimeout = 30 * time.Second

// RecoveryResult counts what a recovery run did.
type RecoveryResult struct {
	Restored int `json:"restored"`
	Paused   int `json:"paused"`
	Skipped  int `json:"skipped"`
}

// RecoveryService rebuilds timers from the event store on startup so that a
// restart does not lose them. It runs once, before the API accepts requests.
type RecoveryService struct {
	db     *sql.DB
	timers *TimerService
}

// NewRecoveryService creates a new recovery service.
func NewRecoveryService(db *sql.DB, timers *TimerService) *RecoveryService {
	return &RecoveryService{db: db, timers: timers}
}

// aggregate collects the persisted events of one timer.
type aggregate struct {
	id      string
	created *domain.Event
	last    *domain.Event
	deleted bool
}

// Run restores every timer that was not deleted. Running timers come back
// paused. Timers whose TimerCreated event was pruned are skipped.
func (r *RecoveryService) Run() (RecoveryResult, error) {
	var result RecoveryResult
	if r.db == nil || r.timers == nil {
		return result, nil
	}

	aggregates, err := r.loadAggregates()
	if err != nil {
		logger.Errorf("Recovery: Failed to load timer events: %v", err)
		return result, err
	}
	if len(aggregates) == 0 {
		logger.Debugf("Recovery: No timers to restore")
		return result, nil
	}

	for _, agg := range aggregates {
		if agg.deleted {
			continue
		}
		restored, ok := rebuild(agg)
		if !ok {
			logger.Warnf("Recovery: Skipping timer %s, its creation event is missing", agg.id)
			result.Skipped++
			continue
		}
		wasRunning := restored.Status == timer.Running
		if _, err := r.timers.Restore(restored); err != nil {
			logger.Warnf("Recovery: Skipping timer %s: %v", agg.id, err)
			result.Skipped++
			continue
		}
		result.Restored++
		if wasRunning {
			result.Paused++
		}
	}

	logger.Infof("Recovery: Complete - restored=%d, paused=%d, skipped=%d", result.Restored, result.Paused, result.Skipped)
	return result, nil
}

// loadAggregates reads the timer events in insertion order and groups them
// by aggregate, keeping the order in which timers first appeared.
func (r *RecoveryService) loadAggregates() ([]*aggregate, error) {
	query := `
		SELECT id, aggregate_id, event_type, event_data, event_version, created_at
		FROM events
		WHERE aggregate_type = ?
		ORDER BY id ASC
	`

	ctx, cancel := context.WithTimeout(context.Background(), recoveryQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, domain.AggregateTimer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*aggregate)
	var ordered []*aggregate
	for rows.Next() {
		event := domain.Event{AggregateType: domain.AggregateTimer}
		var eventDataBytes []byte
		if err := rows.Scan(&event.ID, &event.AggregateID, &event.EventType, &eventDataBytes, &event.EventVersion, &event.CreatedAt); err != nil {
			logger.Debugf("Recovery: Failed to scan event: %v", err)
			continue
		}
		if len(eventDataBytes) > 0 {
			if err := json.Unmarshal(eventDataBytes, &event.EventData); err != nil {
				logger.Warnf("Recovery: Failed to unmarshal event data for %s: %v", event.AggregateID, err)
				continue
			}
		}

		agg, ok := byID[event.AggregateID]
		if !ok {
			agg = &aggregate{id: event.AggregateID}
			byID[event.AggregateID] = agg
			ordered = append(ordered, agg)
		}
		e := event
		switch e.EventType {
		case domain.TimerCreated:
			agg.created = &e
		case domain.TimerDeleted:
			agg.deleted = true
		}
		// Notification outcomes share the aggregate but carry no timer state
		if _, ok := e.GetString("status"); ok {
			agg.last = &e
		}
	}
	return ordered, rows.Err()
}

// rebuild derives the timer state from its creation event and its latest
// event. Thresholds already at or above the remaining time count as fired,
// so a restored timer does not warn twice.
func rebuild(agg *aggregate) (RestoredTimer, bool) {
	if agg.created == nil || agg.last == nil {
		return RestoredTimer{}, false
	}
	created, ok := agg.created.ParseTimerEventData()
	if !ok {
		return RestoredTimer{}, false
	}
	last, ok := agg.last.ParseTimerEventData()
	if !ok {
		return RestoredTimer{}, false
	}
	status, err := timer.ParseStatus(last.Status)
	if err != nil {
		return RestoredTimer{}, false
	}

	cfg := timer.WarningConfig{WarningAt2Min: created.WarningAt2Min, WarningAt5Min: created.WarningAt5Min}
	remaining := last.Remaining
	if status == timer.Completed {
		remaining = 0
	}

	rt := RestoredTimer{
		ID:        agg.id,
		Label:     created.Label,
		Total:     created.Total,
		Remaining: remaining,
		Status:    status,
		Config:    cfg,
		CreatedAt: agg.created.CreatedAt,
		UpdatedAt: agg.last.CreatedAt,
	}
	if status != timer.Idle {
		var fired []int
		for _, th := range timer.CalculateWarningThresholds(created.Total, cfg) {
			if remaining <= th {
				fired = append(fired, th)
			}
		}
		rt.Triggered = timer.NewTriggeredWarnings(fired...)
	}
	if status == timer.Completed {
		at := agg.last.CreatedAt
		rt.CompletedAt = &at
	}
	return rt, true
}
