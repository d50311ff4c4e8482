package tokenizer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medrex/dlt-consent/pkg/encryption"
)

const (
	defaultKeyPrefix = "pii"
	tokenPrefix      = "tok_"
)

// ErrUnknownToken is returned when a token has no vault entry
var ErrUnknownToken = errors.New("unknown token")

// RedisVault is a deterministic token vault: the same value always maps to the same token,
// so tokenized ids stay usable as ledger keys.
type RedisVault struct {
	client redis.UniversalClient
	prefix string
	cipher *encryption.AESEncryption
}

// VaultOption configures a RedisVault
type VaultOption func(*RedisVault)

// WithKeyPrefix namespaces the vault keys
func WithKeyPrefix(prefix string) VaultOption {
	return func(v *RedisVault) { v.prefix = prefix }
}

// WithEncryption seals stored plaintext values with AES-GCM
func WithEncryption(cipher *encryption.AESEncryption) VaultOption {
	return func(v *RedisVault) { v.cipher = cipher }
}

// NewRedisVault creates a vault on top of a Redis client
func NewRedisVault(client redis.UniversalClient, opts ...VaultOption) *RedisVault {
	v := &RedisVault{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Tokenize returns the token for value, minting one on first sight
func (v *RedisVault) Tokenize(ctx context.Context, value string) (string, error) {
	forward := v.forwardKey(value)

	token, err := v.client.Get(ctx, forward).Result()
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("vault lookup failed: %w", err)
	}

	stored, err := v.seal(value)
	if err != nil {
		return "", err
	}

	token = tokenPrefix + uuid.NewString()
	if err := v.client.Set(ctx, v.reverseKey(token), stored, 0).Err(); err != nil {
		return "", fmt.Errorf("vault write failed: %w", err)
	}

	won, err := v.client.SetNX(ctx, forward, token, 0).Result()
	if err != nil {
		return "", fmt.Errorf("vault write failed: %w", err)
	}
	if won {
		return token, nil
	}

	// Another writer minted a token for the same value first
	v.client.Del(ctx, v.reverseKey(token))
	token, err = v.client.Get(ctx, forward).Result()
	if err != nil {
		return "", fmt.Errorf("vault lookup failed: %w", err)
	}
	return token, nil
}

// Detokenize returns the value a token stands for
func (v *RedisVault) Detokenize(ctx context.Context, token string) (string, error) {
	stored, err := v.client.Get(ctx, v.reverseKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrUnknownToken
	}
	if err != nil {
		return "", fmt.Errorf("vault lookup failed: %w", err)
	}
	return v.open(stored)
}

func (v *RedisVault) forwardKey(value string) string {
	return fmt.Sprintf("%s:v2t:%s", v.prefix, encryption.HashData([]byte(value)))
}

func (v *RedisVault) reverseKey(token string) string {
	return fmt.Sprintf("%s:t2v:%s", v.prefix, token)
}

func (v *RedisVault) seal(value string) (string, error) {
	if v.cipher == nil {
		return value, nil
	}
	sealed, err := v.cipher.Encrypt([]byte(value))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *RedisVault) open(stored string) (string, error) {
	if v.cipher == nil {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("corrupt vault entry: %w", err)
	}
	plain, err := v.cipher.Decrypt(raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
