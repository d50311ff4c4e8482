package keys

import (
	"context"

	"github.com/google/uuid"

	"github.com/medrex/dlt-consent/pkg/encryption"
	"github.com/medrex/dlt-consent/pkg/types"
)

// LocalService generates symmetric keys and ids in process
type LocalService struct{}

// NewLocalService creates a key service backed by the local CSPRNG
func NewLocalService() *LocalService {
	return &LocalService{}
}

// GetSymmetricKey returns a fresh AES-256 key. Every call returns a new key.
func (s *LocalService) GetSymmetricKey(ctx context.Context) (*types.SymmetricKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := encryption.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &types.SymmetricKey{KeyBase64: key}, nil
}

// GetUUID returns a random uuid
func (s *LocalService) GetUUID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}
