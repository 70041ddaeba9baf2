// Package auth issues and verifies the API key that guards the Tickarr API.
// Only a bcrypt hash of the key is stored.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// SettingAPIKeyHash is the settings key holding the bcrypt hash.
const SettingAPIKeyHash = "api_key_hash"

// GenerateAPIKey returns 32 random bytes, base64url encoded.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HashPassword hashes a secret with bcrypt. Secrets over 72 bytes are rejected.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPasswordHash reports whether password matches hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// SettingsStore is the part of the repository auth needs.
type SettingsStore interface {
	GetSetting(key string) (string, bool, error)
	SetSetting(key, value string) error
}

// EnsureAPIKey makes sure an API key hash is stored. If configured is not
// empty it becomes the key. Otherwise an existing hash is kept, or a new key
// is generated. The plaintext key is returned only when it was generated, so
// the caller can show it once.
func EnsureAPIKey(store SettingsStore, configured string) (string, error) {
	if configured != "" {
		hash, ok, err := store.GetSetting(SettingAPIKeyHash)
		if err != nil {
			return "", err
		}
		if ok && CheckPasswordHash(configured, hash) {
			return "", nil
		}
		return "", storeKey(store, configured)
	}

	_, ok, err := store.GetSetting(SettingAPIKeyHash)
	if err != nil {
		return "", err
	}
	if ok {
		return "", nil
	}

	key, err := GenerateAPIKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	if err := storeKey(store, key); err != nil {
		return "", err
	}
	return key, nil
}

// RotateAPIKey replaces the stored hash with a freshly generated key and
// returns the plaintext key.
func RotateAPIKey(store SettingsStore) (string, error) {
	key, err := GenerateAPIKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	if err := storeKey(store, key); err != nil {
		return "", err
	}
	return key, nil
}

// HasAPIKey reports whether a key hash is stored.
func HasAPIKey(store SettingsStore) (bool, error) {
	_, ok, err := store.GetSetting(SettingAPIKeyHash)
	return ok, err
}

func storeKey(store SettingsStore, key string) error {
	hash, err := HashPassword(key)
	if err != nil {
		return fmt.Errorf("failed to hash API key: %w", err)
	}
	return store.SetSetting(SettingAPIKeyHash, hash)
}

// Verifier checks presented keys against the stored hash. Keys that verified
// once are remembered by digest so bcrypt runs once per distinct key.
type Verifier struct {
	store SettingsStore

	mu       sync.Mutex
	hash     string
	verified map[[32]byte]bool
}

// NewVerifier creates a Verifier reading the hash from store.
func NewVerifier(store SettingsStore) *Verifier {
	return &Verifier{store: store, verified: make(map[[32]byte]bool)}
}

// Verify reports whether key is the configured API key.
func (v *Verifier) Verify(key string) bool {
	if key == "" {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.hash == "" {
		hash, ok, err := v.store.GetSetting(SettingAPIKeyHash)
		if err != nil || !ok {
			return false
		}
		v.hash = hash
	}

	digest := sha256.Sum256([]byte(key))
	if v.verified[digest] {
		return true
	}
	if !CheckPasswordHash(key, v.hash) {
		return false
	}
	v.verified[digest] = true
	return true
}

// Forget drops the cached hash and verified keys, e.g. after rotation.
func (v *Verifier) Forget() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hash = ""
	v.verified = make(map[[32]byte]bool)
}
