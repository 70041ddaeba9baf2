package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSealer_EmptySecretDisables(t *testing.T) {
	s, err := NewSealer("")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.False(t, s.Enabled())

	out, err := s.Seal(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)

	out, err = s.Open(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("correct horse")
	require.NoError(t, err)
	require.True(t, s.Enabled())

	for _, plain := range []string{"", "x", `{"duration":1500}`, strings.Repeat("long ", 1000)} {
		sealed, err := s.Seal(plain)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sealed, EncryptedPrefix))

		opened, err := s.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plain, opened)
	}
}

func TestSealer_NonceIsRandom(t *testing.T) {
	s, err := NewSealer("secret")
	require.NoError(t, err)

	a, err := s.Seal("same")
	require.NoError(t, err)
	b, err := s.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_WrongKey(t *testing.T) {
	s1, _ := NewSealer("one")
	s2, _ := NewSealer("two")

	sealed, err := s1.Seal("hello")
	require.NoError(t, err)

	_, err = s2.Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestSealer_OpenErrors(t *testing.T) {
	s, _ := NewSealer("k")

	_, err := s.Open(EncryptedPrefix + "%%%not-base64")
	assert.ErrorIs(t, err, ErrDecryptFailed)

	_, err = s.Open(EncryptedPrefix + "AAAA")
	assert.ErrorIs(t, err, ErrDecryptFailed)

	var none *Sealer
	sealed, _ := s.Seal("v")
	_, err = none.Open(sealed)
	assert.ErrorIs(t, err, ErrNoEncryptionKey)
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted(EncryptedPrefix+"abc"))
	assert.False(t, IsEncrypted(EncryptedPrefix))
	assert.False(t, IsEncrypted("plain"))
}
