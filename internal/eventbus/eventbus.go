package eventbus

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mescon/Tickarr/internal/db"
	"github.com/mescon/Tickarr/internal/domain"
	"github.com/mescon/Tickarr/internal/logger"
)

// subscriberBuffer is the channel capacity of each subscriber.
const subscriberBuffer = 100

// Publisher defines the interface for publishing events.
// This interface enables testing with mock implementations.
type Publisher interface {
	Publish(event domain.Event) error
	Subscribe(eventType domain.EventType, handler func(domain.Event))
}

// Ensure EventBus implements Publisher
var _ Publisher = (*EventBus)(nil)

// EventBus persists timer events and fans them out to subscribers.
// A nil database disables persistence.
type EventBus struct {
	db          *sql.DB
	subscribers map[domain.EventType][]chan domain.Event
	mu          sync.RWMutex
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	dropped     atomic.Int64
}

func NewEventBus(db *sql.DB) *EventBus {
	return &EventBus{
		db:          db,
		subscribers: make(map[domain.EventType][]chan domain.Event),
		stopChan:    make(chan struct{}),
	}
}

func (eb *EventBus) Publish(event domain.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC() // UTC for consistent SQLite date parsing
	}
	if event.EventVersion == 0 {
		event.EventVersion = 1
	}
	if event.AggregateType == "" {
		event.AggregateType = domain.AggregateTimer
	}

	if !event.EventType.IsTransient() {
		logger.Debugf("EventBus: Publishing event %s (AggregateID: %s)", event.EventType, event.AggregateID)
		if err := eb.persist(&event); err != nil {
			return err
		}
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[event.EventType] {
		select {
		case ch <- event:
		default:
			// Never block the tick loop on a slow subscriber
			eb.dropped.Add(1)
		}
	}
	return nil
}

func (eb *EventBus) persist(event *domain.Event) error {
	if eb.db == nil {
		return nil
	}

	eventDataJSON, err := json.Marshal(event.EventData)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	res, err := db.ExecWithRetry(eb.db, `
        INSERT INTO events (aggregate_type, aggregate_id, event_type, event_data, event_version, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `, event.AggregateType, event.AggregateID, event.EventType, eventDataJSON, event.EventVersion, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		event.ID = id
	}
	return nil
}

func (eb *EventBus) Subscribe(eventType domain.EventType, handler func(domain.Event)) {
	ch := make(chan domain.Event, subscriberBuffer)

	eb.mu.Lock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	eb.mu.Unlock()

	eb.wg.Add(1)
	go func() {
		defer eb.wg.Done()
		for {
			select {
			case event := <-ch:
				handler(event)
			case <-eb.stopChan:
				return
			}
		}
	}()
}

// SubscribeAll registers handler for each of the given event types.
func (eb *EventBus) SubscribeAll(types []domain.EventType, handler func(domain.Event)) {
	for _, t := range types {
		eb.Subscribe(t, handler)
	}
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (eb *EventBus) Dropped() int64 {
	return eb.dropped.Load()
}

// History returns the persisted events of one aggregate, oldest first.
// limit <= 0 returns everything.
func (eb *EventBus) History(aggregateID string, limit int) ([]domain.Event, error) {
	if eb.db == nil {
		return []domain.Event{}, nil
	}

	query := `
        SELECT id, aggregate_type, aggregate_id, event_type, event_data, event_version, created_at
        FROM events WHERE aggregate_id = ? ORDER BY id ASC`
	args := []interface{}{aggregateID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryWithRetry(eb.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var data string
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &data, &e.EventVersion, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &e.EventData); err != nil {
			return nil, fmt.Errorf("failed to decode event %d: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Shutdown stops all subscriber goroutines and waits for them to finish.
// Calling it more than once is safe.
func (eb *EventBus) Shutdown() {
	eb.stopOnce.Do(func() {
		close(eb.stopChan)
	})
	eb.wg.Wait()
	logger.Infof("EventBus shutdown complete")
}
