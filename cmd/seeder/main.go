package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mescon/Tickarr/internal/db"
	"github.com/mescon/Tickarr/internal/domain"
	"github.com/mescon/Tickarr/internal/eventbus"
	"github.com/mescon/Tickarr/internal/storage"
	"github.com/mescon/Tickarr/internal/timer"
)

// sampleTimer describes one seeded timer by the status steps it went through.
type sampleTimer struct {
	label  string
	total  int
	config timer.WarningConfig
	// pausedAt is the elapsed second of the pause. 0 never starts the timer
	// and -1 leaves it running.
	pausedAt int
	complete bool
	deleted  bool
}

func main() {
	dbPath := flag.String("db", "./tickarr.db", "Database file to seed")
	prefix := flag.String("prefix", "tickarr_", "Storage key prefix")
	flag.Parse()

	database, err := sql.Open("sqlite3", *dbPath+"?_busy_timeout=5000")
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	fmt.Println("Seeding database...")

	store := storage.New(database, *prefix)
	entries := map[string]interface{}{
		"last_used": map[string]interface{}{
			"duration": 1500,
			"config":   timer.WarningConfig{WarningAt2Min: true, WarningAt5Min: true},
		},
		"theme":         "dark",
		"sound":         map[string]interface{}{"enabled": true, "volume": 0.6},
		"recent_labels": []string{"Focus", "Tea", "Standup"},
	}
	for key, value := range entries {
		if err := store.Set(key, value); err != nil {
			log.Printf("Failed to store %s: %v", key, err)
		}
	}
	if err := store.SetWithExpiry("banner_dismissed", true, 24*time.Hour); err != nil {
		log.Printf("Failed to store banner_dismissed: %v", err)
	}

	eb := eventbus.NewEventBus(database)
	defer eb.Shutdown()

	samples := []sampleTimer{
		{label: "Focus", total: 1500, config: timer.WarningConfig{WarningAt2Min: true, WarningAt5Min: true}, complete: true},
		{label: "Tea", total: 240, config: timer.WarningConfig{WarningAt2Min: true}, pausedAt: 150},
		{label: "Standup", total: 900, config: timer.WarningConfig{WarningAt5Min: true}, pausedAt: -1},
		{label: "Laundry", total: 3600, pausedAt: 0},
		{label: "Old", total: 60, complete: true, deleted: true},
	}

	base := time.Now().UTC().Add(-2 * time.Hour)
	events := 0
	for i, s := range samples {
		n, err := seedTimer(eb, s, base.Add(time.Duration(i)*10*time.Minute))
		if err != nil {
			log.Printf("Failed to seed timer %s: %v", s.label, err)
		}
		events += n
	}

	fmt.Printf("Seeding complete: %d storage entries, %d timers, %d events.\n", len(entries)+1, len(samples), events)
}

// seedTimer publishes the lifecycle events of one timer starting at start.
func seedTimer(eb *eventbus.EventBus, s sampleTimer, start time.Time) (int, error) {
	id := uuid.New().String()
	thresholds := timer.CalculateWarningThresholds(s.total, s.config)
	count := 0

	emit := func(eventType domain.EventType, status timer.Status, from timer.Status, remaining, threshold int, offset int) error {
		data := domain.TimerEventData{
			Label:     s.label,
			Status:    status.String(),
			Remaining: remaining,
			Total:     s.total,
			Threshold: threshold,
		}
		if eventType == domain.TimerCreated {
			data.WarningAt2Min = s.config.WarningAt2Min
			data.WarningAt5Min = s.config.WarningAt5Min
		} else {
			data.From = from.String()
		}
		count++
		return eb.Publish(domain.Event{
			AggregateType: domain.AggregateTimer,
			AggregateID:   id,
			EventType:     eventType,
			EventData:     data.Map(),
			CreatedAt:     start.Add(time.Duration(offset) * time.Second),
		})
	}

	if err := emit(domain.TimerCreated, timer.Idle, timer.Idle, s.total, 0, 0); err != nil {
		return count, err
	}
	if s.pausedAt == 0 && !s.complete {
		return count, nil
	}
	if err := emit(domain.TimerStarted, timer.Running, timer.Idle, s.total, 0, 0); err != nil {
		return count, err
	}

	end := s.total
	if !s.complete && s.pausedAt > 0 {
		end = s.pausedAt
	} else if !s.complete {
		end = s.total / 3
	}

	// Thresholds are ascending; warnings fire from the largest down
	for i := len(thresholds) - 1; i >= 0; i-- {
		th := thresholds[i]
		if s.total-th > end {
			continue
		}
		if err := emit(domain.WarningTriggered, timer.Running, timer.Running, th, th, s.total-th); err != nil {
			return count, err
		}
	}

	switch {
	case s.complete:
		if err := emit(domain.TimerCompleted, timer.Completed, timer.Running, 0, 0, s.total); err != nil {
			return count, err
		}
	case s.pausedAt > 0:
		if err := emit(domain.TimerPaused, timer.Paused, timer.Running, s.total-end, 0, end); err != nil {
			return count, err
		}
	}

	if s.deleted {
		if err := emit(domain.TimerDeleted, timer.Completed, timer.Completed, 0, 0, s.total+1); err != nil {
			return count, err
		}
	}
	return count, nil
}
