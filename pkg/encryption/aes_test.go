package encryption

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESEncryption(t *testing.T) {
	enc, err := NewAESEncryption("audit-passphrase")
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		sealed, err := enc.Encrypt([]byte(`{"maxNum":10}`))
		require.NoError(t, err)

		opened, err := enc.Decrypt(sealed)

		// Assertions
		require.NoError(t, err)
		assert.Equal(t, `{"maxNum":10}`, string(opened))
	})

	t.Run("nonce makes ciphertexts differ", func(t *testing.T) {
		a, err := enc.Encrypt([]byte("same"))
		require.NoError(t, err)
		b, err := enc.Encrypt([]byte("same"))
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})

	t.Run("wrong key fails", func(t *testing.T) {
		sealed, err := enc.Encrypt([]byte("secret"))
		require.NoError(t, err)

		other, err := NewAESEncryption("other-passphrase")
		require.NoError(t, err)

		_, err = other.Decrypt(sealed)
		assert.Error(t, err)
	})

	t.Run("short ciphertext", func(t *testing.T) {
		_, err := enc.Decrypt([]byte{1, 2})
		assert.ErrorIs(t, err, ErrCiphertextTooShort)
	})
}

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	k2, err := GenerateKey()
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(k1)

	// Assertions
	require.NoError(t, err)
	assert.Len(t, raw, KeySize)
	assert.NotEqual(t, k1, k2)
}

func TestHashData(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashData(nil))
}
