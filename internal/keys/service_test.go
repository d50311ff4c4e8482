package keys

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/dlt-consent/pkg/encryption"
)

func TestLocalService(t *testing.T) {
	s := NewLocalService()
	ctx := context.Background()

	t.Run("fresh key per call", func(t *testing.T) {
		k1, err := s.GetSymmetricKey(ctx)
		require.NoError(t, err)
		k2, err := s.GetSymmetricKey(ctx)
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(k1.KeyBase64)
		require.NoError(t, err)

		// Assertions
		assert.Len(t, raw, encryption.KeySize)
		assert.NotEqual(t, k1.KeyBase64, k2.KeyBase64)
	})

	t.Run("uuid", func(t *testing.T) {
		id, err := s.GetUUID(ctx)
		require.NoError(t, err)

		_, err = uuid.Parse(id)
		assert.NoError(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.GetSymmetricKey(cctx)
		assert.ErrorIs(t, err, context.Canceled)
		_, err = s.GetUUID(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
