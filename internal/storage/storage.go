// Package storage is a namespaced JSON key-value store on top of the
// kv_store table. Values can carry an expiry and can be sealed at rest.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mescon/Tickarr/internal/clock"
	"github.com/mescon/Tickarr/internal/crypto"
	"github.com/mescon/Tickarr/internal/db"
	"github.com/mescon/Tickarr/internal/logger"
)

// ErrNotFound is returned when a key is absent or has expired. ErrNotExpiring
// is returned by GetWithExpiry for values stored without a ttl.
var (
	ErrNotFound    = errors.New("storage: key not found")
	ErrNotExpiring = errors.New("storage: value has no expiry wrapper")

	// errExpired marks a row whose expires_at has passed. It matches ErrNotFound.
	errExpired = fmt.Errorf("%w: expired", ErrNotFound)
)

// DefaultPrefix namespaces keys when no prefix is configured.
const DefaultPrefix = "tickarr_"

// Store reads and writes JSON values under a key prefix.
type Store struct {
	db     *sql.DB
	prefix string
	sealer *crypto.Sealer
	clock  clock.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithSealer encrypts values at rest.
func WithSealer(s *crypto.Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

// WithClock replaces the clock used for expiry.
func WithClock(c clock.Clock) Option {
	return func(st *Store) { st.clock = c }
}

// New creates a Store. An empty prefix uses DefaultPrefix.
func New(database *sql.DB, prefix string, opts ...Option) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := &Store{db: database, prefix: prefix, clock: clock.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prefix returns the namespace prepended to every key.
func (s *Store) Prefix() string {
	return s.prefix
}

// expiring is the stored shape of values written by SetWithExpiry.
type expiring struct {
	Value  json.RawMessage `json:"value"`
	Expiry int64           `json:"expiry"`
}

// Get decodes the value stored under key into dest.
func (s *Store) Get(key string, dest interface{}) error {
	raw, _, err := s.load(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("storage: failed to decode %s: %w", key, err)
	}
	return nil
}

// Set stores value under key as JSON, replacing any previous value and expiry.
func (s *Store) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: failed to encode %s: %w", key, err)
	}
	return s.save(key, raw, nil)
}

// SetWithExpiry stores value wrapped with an expiry ttl from now.
func (s *Store) SetWithExpiry(key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("storage: ttl must be positive, got %v", ttl)
	}
	inner, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: failed to encode %s: %w", key, err)
	}
	expiry := s.clock.Now().Add(ttl).UnixMilli()
	raw, err := json.Marshal(expiring{Value: inner, Expiry: expiry})
	if err != nil {
		return err
	}
	return s.save(key, raw, &expiry)
}

// GetWithExpiry decodes a value written by SetWithExpiry. An expired entry is
// deleted and reported as ErrNotFound.
func (s *Store) GetWithExpiry(key string, dest interface{}) error {
	raw, _, err := s.load(key)
	if errors.Is(err, errExpired) {
		if err := s.Remove(key); err != nil {
			logger.Warnf("Failed to remove expired key %s: %v", key, err)
		}
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var wrapped expiring
	if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Value == nil {
		return fmt.Errorf("%w: %s", ErrNotExpiring, key)
	}
	if s.clock.Now().UnixMilli() > wrapped.Expiry {
		if err := s.Remove(key); err != nil {
			logger.Warnf("Failed to remove expired key %s: %v", key, err)
		}
		return ErrNotFound
	}
	if err := json.Unmarshal(wrapped.Value, dest); err != nil {
		return fmt.Errorf("storage: failed to decode %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	_, err := db.ExecWithRetry(s.db, "DELETE FROM kv_store WHERE key = ?", s.prefix+key)
	if err != nil {
		return fmt.Errorf("storage: failed to remove %s: %w", key, err)
	}
	return nil
}

// Clear deletes every key under the prefix and leaves other keys alone.
func (s *Store) Clear() error {
	_, err := db.ExecWithRetry(s.db, "DELETE FROM kv_store WHERE instr(key, ?) = 1", s.prefix)
	if err != nil {
		return fmt.Errorf("storage: failed to clear: %w", err)
	}
	return nil
}

// Has reports whether key exists and has not expired.
func (s *Store) Has(key string) (bool, error) {
	_, _, err := s.load(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Keys lists the unprefixed keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	rows, err := db.QueryWithRetry(s.db, `
        SELECT key FROM kv_store
        WHERE instr(key, ?) = 1 AND (expires_at IS NULL OR expires_at >= ?)
        ORDER BY key
    `, s.prefix, s.clock.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("storage: failed to list keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, strings.TrimPrefix(k, s.prefix))
	}
	return keys, rows.Err()
}

// Size returns the number of live keys under the prefix.
func (s *Store) Size() (int, error) {
	keys, err := s.Keys()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Export returns every live value under the prefix keyed by unprefixed key.
// Values written with an expiry are exported with their wrapper.
func (s *Store) Export() (map[string]json.RawMessage, error) {
	keys, err := s.Keys()
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		raw, _, err := s.load(k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[k] = raw
	}
	return out, nil
}

// Import writes data into the store. Existing keys are skipped unless
// overwrite is set. It returns the number of keys written.
func (s *Store) Import(data map[string]json.RawMessage, overwrite bool) (int, error) {
	written := 0
	for k, raw := range data {
		if !json.Valid(raw) {
			return written, fmt.Errorf("storage: value for %s is not valid JSON", k)
		}
		if !overwrite {
			exists, err := s.Has(k)
			if err != nil {
				return written, err
			}
			if exists {
				continue
			}
		}
		var expiry *int64
		var wrapped expiring
		if json.Unmarshal(raw, &wrapped) == nil && wrapped.Value != nil && wrapped.Expiry > 0 {
			expiry = &wrapped.Expiry
		}
		if err := s.save(k, raw, expiry); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// PurgeExpired deletes every expired entry under the prefix.
func (s *Store) PurgeExpired() (int64, error) {
	res, err := db.ExecWithRetry(s.db, `
        DELETE FROM kv_store
        WHERE instr(key, ?) = 1 AND expires_at IS NOT NULL AND expires_at < ?
    `, s.prefix, s.clock.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("storage: failed to purge expired entries: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) load(key string) (json.RawMessage, *int64, error) {
	var value string
	var expiresAt sql.NullInt64
	err := s.db.QueryRow("SELECT value, expires_at FROM kv_store WHERE key = ?", s.prefix+key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("storage: failed to read %s: %w", key, err)
	}

	var expiry *int64
	if expiresAt.Valid {
		expiry = &expiresAt.Int64
		if s.clock.Now().UnixMilli() > expiresAt.Int64 {
			return nil, nil, errExpired
		}
	}

	plain, err := s.sealer.Open(value)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: failed to open %s: %w", key, err)
	}
	return json.RawMessage(plain), expiry, nil
}

func (s *Store) save(key string, raw json.RawMessage, expiry *int64) error {
	if key == "" {
		return errors.New("storage: key must not be empty")
	}
	value, err := s.sealer.Seal(string(raw))
	if err != nil {
		return fmt.Errorf("storage: failed to seal %s: %w", key, err)
	}

	var expiresAt interface{}
	if expiry != nil {
		expiresAt = *expiry
	}
	_, err = db.ExecWithRetry(s.db, `
        INSERT INTO kv_store (key, value, expires_at, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, updated_at = CURRENT_TIMESTAMP
    `, s.prefix+key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("storage: failed to write %s: %w", key, err)
	}
	return nil
}
