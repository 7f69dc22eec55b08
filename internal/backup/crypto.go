package backup

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrIntegrity is returned when an artifact fails authentication at decrypt
// time: wrong key or tampered/corrupted ciphertext. Decryption never produces
// garbage bytes silently.
var ErrIntegrity = errors.New("integrity check failed: wrong key or corrupted artifact")

// GenerateKey returns a fresh full-entropy symmetric key and its
// transportable base64url form. Keys are one-time use, never reused across
// backup invocations.
func GenerateKey() ([]byte, string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, "", fmt.Errorf("generate key: %w", err)
	}
	return key, base64.URLEncoding.EncodeToString(key), nil
}

// ParseKey decodes a key string produced by GenerateKey.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

// Seal encrypts plaintext with XChaCha20-Poly1305. The random nonce is
// prepended to the ciphertext.
func Seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a Seal output. Authentication failure yields ErrIntegrity.
func Open(key, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrIntegrity
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}
