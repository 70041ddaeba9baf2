// Package crypto seals stored values with AES-GCM under a key derived from a
// configured secret.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// EncryptedPrefix marks values produced by Seal.
const EncryptedPrefix = "enc:v1:"

var (
	ErrNoEncryptionKey = errors.New("value is encrypted but no encryption key is configured")
	ErrDecryptFailed   = errors.New("decryption failed: invalid ciphertext")
)

// hkdfInfo binds derived keys to their use.
const hkdfInfo = "tickarr storage v1"

// Sealer encrypts and decrypts values. A nil *Sealer passes plaintext through,
// so callers do not need to branch on whether encryption is configured.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 256-bit key from secret. An empty secret returns nil.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, nil
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Enabled reports whether values are actually encrypted.
func (s *Sealer) Enabled() bool {
	return s != nil
}

// Seal encrypts plaintext and returns it with EncryptedPrefix.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil {
		return plaintext, nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without EncryptedPrefix are returned unchanged,
// so data written before encryption was enabled stays readable.
func (s *Sealer) Open(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if s == nil {
		return "", ErrNoEncryptionKey
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", ErrDecryptFailed
	}
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrDecryptFailed
	}

	plaintext, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

// IsEncrypted checks if a value carries EncryptedPrefix.
func IsEncrypted(value string) bool {
	return len(value) > len(EncryptedPrefix) && strings.HasPrefix(value, EncryptedPrefix)
}
