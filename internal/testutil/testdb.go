package testutil

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mescon/Tickarr/internal/db"
	"github.com/mescon/Tickarr/internal/domain"
)

// NewTestDB creates an in-memory SQLite database with the Tickarr schema.
// Returns a database handle that should be closed by the caller.
func NewTestDB() (*sql.DB, error) {
	database, err := sql.Open("sqlite", db.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Each connection to :memory: is its own database
	database.SetMaxOpenConns(1)

	if err := db.ApplyMigrations(database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return database, nil
}

// SeedEvent inserts a single event into the test database.
func SeedEvent(database *sql.DB, event domain.Event) (int64, error) {
	eventDataJSON, err := json.Marshal(event.EventData)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event data: %w", err)
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.EventVersion == 0 {
		event.EventVersion = 1
	}

	result, err := database.Exec(`
		INSERT INTO events (aggregate_type, aggregate_id, event_type, event_data, event_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.AggregateType, event.AggregateID, event.EventType, eventDataJSON, event.EventVersion, event.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return result.LastInsertId()
}

// SeedEvents inserts multiple events into the test database.
func SeedEvents(database *sql.DB, events []domain.Event) error {
	for _, event := range events {
		if _, err := SeedEvent(database, event); err != nil {
			return err
		}
	}
	return nil
}

// SeedKV writes a raw kv_store row. A zero expiresAt stores no expiry.
func SeedKV(database *sql.DB, key, value string, expiresAt int64) error {
	var exp interface{}
	if expiresAt != 0 {
		exp = expiresAt
	}
	_, err := database.Exec(`INSERT INTO kv_store (key, value, expires_at) VALUES (?, ?, ?)`, key, value, exp)
	return err
}

// RawKV reads a kv_store value as stored, without decoding or decryption.
func RawKV(database *sql.DB, key string) (string, error) {
	var v string
	err := database.QueryRow("SELECT value FROM kv_store WHERE key = ?", key).Scan(&v)
	return v, err
}

// CountEventsByType counts events of a given type.
func CountEventsByType(database *sql.DB, eventType domain.EventType) (int, error) {
	var count int
	err := database.QueryRow("SELECT COUNT(*) FROM events WHERE event_type = ?", eventType).Scan(&count)
	return count, err
}

// ClearAllTables removes all data from all tables.
func ClearAllTables(database *sql.DB) error {
	for _, table := range []string{"events", "kv_store", "settings"} {
		if _, err := database.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
