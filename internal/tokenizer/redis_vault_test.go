package tokenizer

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/dlt-consent/pkg/encryption"
)

func setupVault(t *testing.T, opts ...VaultOption) (*RedisVault, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisVault(client, opts...), mr
}

func TestRedisVault(t *testing.T) {
	ctx := context.Background()

	t.Run("tokens are deterministic", func(t *testing.T) {
		vault, _ := setupVault(t)

		first, err := vault.Tokenize(ctx, "pat1")
		require.NoError(t, err)
		second, err := vault.Tokenize(ctx, "pat1")
		require.NoError(t, err)
		other, err := vault.Tokenize(ctx, "pat2")
		require.NoError(t, err)

		// Assertions
		assert.True(t, strings.HasPrefix(first, tokenPrefix))
		assert.Equal(t, first, second)
		assert.NotEqual(t, first, other)
	})

	t.Run("round trip", func(t *testing.T) {
		vault, _ := setupVault(t)

		token, err := vault.Tokenize(ctx, "Jane Doe")
		require.NoError(t, err)

		value, err := vault.Detokenize(ctx, token)

		require.NoError(t, err)
		assert.Equal(t, "Jane Doe", value)
	})

	t.Run("unknown token", func(t *testing.T) {
		vault, _ := setupVault(t)

		_, err := vault.Detokenize(ctx, "tok_missing")

		assert.ErrorIs(t, err, ErrUnknownToken)
	})

	t.Run("plaintext is not stored when encryption is on", func(t *testing.T) {
		cipher, err := encryption.NewAESEncryption("vault-key")
		require.NoError(t, err)
		vault, mr := setupVault(t, WithEncryption(cipher), WithKeyPrefix("test"))

		token, err := vault.Tokenize(ctx, "Jane Doe")
		require.NoError(t, err)

		stored, err := mr.Get("test:t2v:" + token)
		require.NoError(t, err)
		value, err := vault.Detokenize(ctx, token)

		// Assertions
		require.NoError(t, err)
		assert.NotContains(t, stored, "Jane")
		assert.Equal(t, "Jane Doe", value)
	})

	t.Run("redis down", func(t *testing.T) {
		vault, mr := setupVault(t)
		mr.Close()

		_, err := vault.Tokenize(ctx, "pat1")

		assert.Error(t, err)
	})
}
