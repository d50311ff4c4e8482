package solution

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/dlt-consent/pkg/config"
	"github.com/medrex/dlt-consent/pkg/types"
)

func signToken(t *testing.T, method jwt.SigningMethod, claims CallerClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func bearerRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestCallerResolver(t *testing.T) {
	resolver := NewCallerResolver(&config.JWTConfig{SecretKey: testJWTSecret, Issuer: "medrex"})
	valid := jwt.RegisteredClaims{Issuer: "medrex", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	t.Run("headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(HeaderUserID, "pat1")
		req.Header.Set(HeaderPassword, "p1")
		req.Header.Set(HeaderLoginOrg, "org1")
		req.Header.Set(HeaderChannel, "ch1")

		caller, err := resolver.Resolve(req)
		require.NoError(t, err)
		assert.Equal(t, types.Caller{ID: "pat1", Secret: "p1", Org: "org1", Channel: "ch1"}, caller)
	})

	t.Run("missing identity", func(t *testing.T) {
		_, err := resolver.Resolve(httptest.NewRequest(http.MethodPost, "/", nil))
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, types.AsMedrexError(err).HTTPStatus())
	})

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, CallerClaims{UserID: "svc1", Secret: "x", OrgID: "org1", Channel: "ch1", RegisteredClaims: valid})

		caller, err := resolver.Resolve(bearerRequest(token))
		require.NoError(t, err)
		assert.Equal(t, types.Caller{ID: "svc1", Secret: "x", Org: "org1", Channel: "ch1"}, caller)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, CallerClaims{
			UserID: "svc1",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "medrex",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		})

		_, err := resolver.Resolve(bearerRequest(token))
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, CallerClaims{
			UserID:           "svc1",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "other", ExpiresAt: valid.ExpiresAt},
		})

		_, err := resolver.Resolve(bearerRequest(token))
		assert.Error(t, err)
	})

	t.Run("token without subject", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, CallerClaims{RegisteredClaims: valid})

		_, err := resolver.Resolve(bearerRequest(token))
		assert.Error(t, err)
	})

	t.Run("unsigned token", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, CallerClaims{UserID: "svc1", RegisteredClaims: valid}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = resolver.Resolve(bearerRequest(token))
		assert.Error(t, err)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Basic abc")

		_, err := resolver.Resolve(req)
		assert.Error(t, err)
	})

	t.Run("bearer ignored without a configured secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer whatever")
		req.Header.Set(HeaderUserID, "pat1")

		caller, err := NewCallerResolver(nil).Resolve(req)
		require.NoError(t, err)
		assert.Equal(t, "pat1", caller.ID)
	})
}
