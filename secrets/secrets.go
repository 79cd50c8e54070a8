// Package secrets provides symmetric encryption for sensitive form field
// values. Values are encrypted with AES-GCM under a key derived from a
// pre-shared passphrase and stored base64-encoded.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrInvalidCiphertext is returned when the ciphertext is malformed or
	// was encrypted under a different key.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// keySalt is fixed so that the same passphrase always derives the same key.
// Secrecy rests on the passphrase, not the salt.
var keySalt = []byte("formbot-field-encryption-v1")

const pbkdf2Iterations = 100_000

// DeriveKey derives a 32-byte AES key from a passphrase.
func DeriveKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), keySalt, pbkdf2Iterations, 32, sha256.New)
}

// EncryptValue encrypts a plaintext field value and returns it
// base64-encoded with the nonce prepended.
func EncryptValue(key []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptValue decrypts a base64-encoded value produced by EncryptValue.
func DecryptValue(key []byte, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(raw) < gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	return string(plaintext), nil
}
