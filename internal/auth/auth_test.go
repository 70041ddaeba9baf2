package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySettings is an in-memory SettingsStore.
type memorySettings struct {
	values map[string]string
	reads  int
	err    error
}

func newMemorySettings() *memorySettings {
	return &memorySettings{values: make(map[string]string)}
}

func (m *memorySettings) GetSetting(key string) (string, bool, error) {
	m.reads++
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memorySettings) SetSetting(key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

// =============================================================================
// GenerateAPIKey tests
// =============================================================================

func TestGenerateAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)

	decoded, err := base64.URLEncoding.DecodeString(key)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)
	assert.Len(t, key, 44)
	assert.False(t, strings.ContainsAny(key, "+/"))
}

func TestGenerateAPIKey_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateAPIKey()
		require.NoError(t, err)
		require.False(t, seen[key], "duplicate key on iteration %d", i)
		seen[key] = true
	}
}

// =============================================================================
// HashPassword / CheckPasswordHash tests
// =============================================================================

func TestHashAndVerify_RoundTrip(t *testing.T) {
	for _, secret := range []string{"simple", "P@$$w0rd!", "unicode: 日本語", strings.Repeat("a", 72)} {
		hash, err := HashPassword(secret)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$2"))
		assert.True(t, CheckPasswordHash(secret, hash))
		assert.False(t, CheckPasswordHash(strings.ToUpper(secret)+"x", hash))
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", 73))
	assert.Error(t, err)
}

func TestCheckPasswordHash_InvalidHash(t *testing.T) {
	assert.False(t, CheckPasswordHash("anything", "invalid-hash"))
}

// =============================================================================
// EnsureAPIKey tests
// =============================================================================

func TestEnsureAPIKey_GeneratesOnce(t *testing.T) {
	store := newMemorySettings()

	key, err := EnsureAPIKey(store, "")
	require.NoError(t, err)
	require.NotEmpty(t, key)
	assert.True(t, CheckPasswordHash(key, store.values[SettingAPIKeyHash]))

	again, err := EnsureAPIKey(store, "")
	require.NoError(t, err)
	assert.Empty(t, again, "existing key must not be regenerated")
	assert.True(t, CheckPasswordHash(key, store.values[SettingAPIKeyHash]))
}

func TestEnsureAPIKey_ConfiguredKeyReplaces(t *testing.T) {
	store := newMemorySettings()
	_, err := EnsureAPIKey(store, "")
	require.NoError(t, err)

	shown, err := EnsureAPIKey(store, "my-configured-key")
	require.NoError(t, err)
	assert.Empty(t, shown)
	assert.True(t, CheckPasswordHash("my-configured-key", store.values[SettingAPIKeyHash]))

	hash := store.values[SettingAPIKeyHash]
	_, err = EnsureAPIKey(store, "my-configured-key")
	require.NoError(t, err)
	assert.Equal(t, hash, store.values[SettingAPIKeyHash], "matching key should not be re-hashed")
}

func TestEnsureAPIKey_StoreError(t *testing.T) {
	store := newMemorySettings()
	store.err = errors.New("disk full")

	_, err := EnsureAPIKey(store, "")
	assert.Error(t, err)
	_, err = EnsureAPIKey(store, "k")
	assert.Error(t, err)
}

// =============================================================================
// Verifier tests
// =============================================================================

func TestVerifier(t *testing.T) {
	store := newMemorySettings()
	require.NoError(t, storeKey(store, "secret-key"))

	v := NewVerifier(store)
	assert.False(t, v.Verify(""))
	assert.False(t, v.Verify("wrong"))
	assert.True(t, v.Verify("secret-key"))
	assert.True(t, v.Verify("secret-key"))
	assert.Equal(t, 1, store.reads, "hash should be loaded once")

	require.NoError(t, storeKey(store, "rotated"))
	v.Forget()
	assert.False(t, v.Verify("secret-key"))
	assert.True(t, v.Verify("rotated"))
}

func TestVerifier_NoKeyStored(t *testing.T) {
	v := NewVerifier(newMemorySettings())
	assert.False(t, v.Verify("anything"))
}

func TestRotateAPIKey(t *testing.T) {
	store := newMemorySettings()
	has, err := HasAPIKey(store)
	require.NoError(t, err)
	assert.False(t, has)

	first, err := EnsureAPIKey(store, "")
	require.NoError(t, err)

	second, err := RotateAPIKey(store)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	has, err = HasAPIKey(store)
	require.NoError(t, err)
	assert.True(t, has)

	v := NewVerifier(store)
	assert.False(t, v.Verify(first))
	assert.True(t, v.Verify(second))
}
