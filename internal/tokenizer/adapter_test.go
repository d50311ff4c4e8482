package tokenizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medrex/dlt-consent/pkg/config"
	"github.com/medrex/dlt-consent/pkg/interfaces"
	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/monitoring"
	"github.com/medrex/dlt-consent/pkg/types"
)

// MockTokenizer is a mock implementation of interfaces.Tokenizer
type MockTokenizer struct {
	mock.Mock
}

func (m *MockTokenizer) Tokenize(ctx context.Context, value string) (string, error) {
	args := m.Called(ctx, value)
	return args.String(0), args.Error(1)
}

func (m *MockTokenizer) Detokenize(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

// prefixTokenizer is a consistent in-memory tokenizer
type prefixTokenizer struct{}

func (prefixTokenizer) Tokenize(_ context.Context, value string) (string, error) {
	return "t:" + value, nil
}

func (prefixTokenizer) Detokenize(_ context.Context, token string) (string, error) {
	if !strings.HasPrefix(token, "t:") {
		return "", ErrUnknownToken
	}
	return strings.TrimPrefix(token, "t:"), nil
}

func setupAdapter(t *testing.T, tok interfaces.Tokenizer, enabled bool) (*Adapter, *config.Flags) {
	t.Helper()
	flags := config.NewFlags(&config.Config{Solution: config.SolutionConfig{DeIdentify: enabled}})
	return NewAdapter(tok, flags, monitoring.NewMetricsCollector("test"), logger.NewDiscard()), flags
}

func TestAdapterDisabledIsIdentity(t *testing.T) {
	tok := &MockTokenizer{}
	adapter, _ := setupAdapter(t, tok, false)
	ctx := context.Background()

	v, err := adapter.Tokenize(ctx, "pat1")
	require.NoError(t, err)
	assert.Equal(t, "pat1", v)

	v, err = adapter.Detokenize(ctx, "pat1")
	require.NoError(t, err)
	assert.Equal(t, "pat1", v)

	user := &types.User{ID: "pat1", Name: "Pat", Org: "org1"}
	require.NoError(t, adapter.TokenizeRecord(ctx, user))
	assert.Equal(t, "pat1", user.ID)

	// Assertions
	tok.AssertNotCalled(t, "Tokenize", mock.Anything, mock.Anything)
	tok.AssertNotCalled(t, "Detokenize", mock.Anything, mock.Anything)
}

func TestAdapterRoundTrip(t *testing.T) {
	adapter, _ := setupAdapter(t, prefixTokenizer{}, true)
	ctx := context.Background()

	for _, value := range []string{"pat1", "org1", "Jane Doe"} {
		token, err := adapter.Tokenize(ctx, value)
		require.NoError(t, err)
		assert.NotEqual(t, value, token)

		back, err := adapter.Detokenize(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, value, back)
	}
}

func TestAdapterFlagReadPerCall(t *testing.T) {
	adapter, flags := setupAdapter(t, prefixTokenizer{}, true)
	ctx := context.Background()

	v, err := adapter.Tokenize(ctx, "pat1")
	require.NoError(t, err)
	assert.Equal(t, "t:pat1", v)

	flags.SetDeIdentify(false)

	v, err = adapter.Tokenize(ctx, "pat1")
	require.NoError(t, err)
	assert.Equal(t, "pat1", v)
}

func TestTokenizeRecord(t *testing.T) {
	t.Run("all fields tokenized", func(t *testing.T) {
		adapter, _ := setupAdapter(t, prefixTokenizer{}, true)
		consent := &types.Consent{OwnerID: "pat1", ServiceID: "svc1", TargetID: "svc2", DatatypeID: "dt1"}

		err := adapter.TokenizeRecord(context.Background(), consent)

		// Assertions
		require.NoError(t, err)
		assert.Equal(t, "t:pat1", consent.OwnerID)
		assert.Equal(t, "t:svc1", consent.ServiceID)
		assert.Equal(t, "t:svc2", consent.TargetID)
		assert.Equal(t, "dt1", consent.DatatypeID)
	})

	t.Run("one field failing leaves the record untouched", func(t *testing.T) {
		tok := &MockTokenizer{}
		tok.On("Tokenize", mock.Anything, "pat1").Return("tok-pat1", nil)
		tok.On("Tokenize", mock.Anything, "Pat").Return("", errors.New("vault down"))
		tok.On("Tokenize", mock.Anything, "org1").Return("tok-org1", nil)
		adapter, _ := setupAdapter(t, tok, true)

		user := &types.User{ID: "pat1", Name: "Pat", Org: "org1"}
		err := adapter.TokenizeRecord(context.Background(), user)

		// Assertions
		assert.Error(t, err)
		assert.Equal(t, "pat1", user.ID)
		assert.Equal(t, "Pat", user.Name)
	})
}

func TestRequireToken(t *testing.T) {
	t.Run("empty key is not found", func(t *testing.T) {
		adapter, _ := setupAdapter(t, prefixTokenizer{}, true)

		_, err := adapter.RequireToken(context.Background(), "", "user_id")

		assert.True(t, types.IsNotFound(err))
	})

	t.Run("tokenizer failure is not found", func(t *testing.T) {
		tok := &MockTokenizer{}
		tok.On("Tokenize", mock.Anything, "pat1").Return("", errors.New("vault down"))
		adapter, _ := setupAdapter(t, tok, true)

		_, err := adapter.RequireToken(context.Background(), "pat1", "user_id")

		// Assertions
		assert.True(t, types.IsNotFound(err))
		tok.AssertExpectations(t)
	})

	t.Run("success", func(t *testing.T) {
		adapter, _ := setupAdapter(t, prefixTokenizer{}, true)

		token, err := adapter.RequireToken(context.Background(), "pat1", "user_id")

		require.NoError(t, err)
		assert.Equal(t, "t:pat1", token)
	})
}

func TestDetokenizeEach(t *testing.T) {
	adapter, _ := setupAdapter(t, prefixTokenizer{}, true)

	consents := []types.Consent{
		{OwnerID: "t:pat1", ServiceID: "t:svc1", TargetID: "t:svc2", DatatypeID: "dt1"},
		{OwnerID: "garbage", ServiceID: "t:svc1", TargetID: "t:svc2", DatatypeID: "dt2"},
		{OwnerID: "t:pat2", ServiceID: "t:svc1", TargetID: "t:svc3", DatatypeID: "dt3"},
	}

	out := DetokenizeEach(context.Background(), adapter, consents)

	// Assertions
	require.Len(t, out, 2)
	assert.Equal(t, "pat1", out[0].OwnerID)
	assert.Equal(t, "dt1", out[0].DatatypeID)
	assert.Equal(t, "pat2", out[1].OwnerID)
	assert.Equal(t, "svc3", out[1].TargetID)
}

func TestDetokenizeValues(t *testing.T) {
	adapter, _ := setupAdapter(t, prefixTokenizer{}, true)

	out := adapter.DetokenizeValues(context.Background(), []string{"t:a", "bad", "t:c"})

	assert.Equal(t, []string{"a", "c"}, out)
}
