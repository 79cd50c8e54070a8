package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	t.Parallel()
	key := DeriveKey("test-passphrase")
	assert.Len(t, key, 32)
	// Same input should produce same key
	key2 := DeriveKey("test-passphrase")
	assert.Equal(t, key, key2)
	// Different input should produce different key
	key3 := DeriveKey("different-passphrase")
	assert.NotEqual(t, key, key3)
}

func TestEncryptDecryptValue(t *testing.T) {
	t.Parallel()
	key := DeriveKey("test-passphrase")

	encrypted, err := EncryptValue(key, "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, encrypted)
	assert.NotContains(t, encrypted, "hunter2")

	decrypted, err := DecryptValue(key, encrypted)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", decrypted)
}

func TestEncryptProducesDistinctCiphertexts(t *testing.T) {
	t.Parallel()
	key := DeriveKey("test-passphrase")

	a, err := EncryptValue(key, "same-value")
	require.NoError(t, err)
	b, err := EncryptValue(key, "same-value")
	require.NoError(t, err)

	// Random nonce means identical plaintexts encrypt differently.
	assert.NotEqual(t, a, b)
}

func TestDecryptWithWrongKey(t *testing.T) {
	t.Parallel()
	key1 := DeriveKey("passphrase-1")
	key2 := DeriveKey("passphrase-2")

	encrypted, err := EncryptValue(key1, "secret")
	require.NoError(t, err)

	_, err = DecryptValue(key2, encrypted)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDecryptMalformedInput(t *testing.T) {
	t.Parallel()
	key := DeriveKey("test")

	_, err := DecryptValue(key, "not-base64!!!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = DecryptValue(key, "c2hvcnQ=")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestEncryptEmptyValue(t *testing.T) {
	t.Parallel()
	key := DeriveKey("test")

	encrypted, err := EncryptValue(key, "")
	require.NoError(t, err)

	decrypted, err := DecryptValue(key, encrypted)
	require.NoError(t, err)
	assert.Equal(t, "", decrypted)
}
