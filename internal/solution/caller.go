package solution

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medrex/dlt-consent/pkg/config"
	"github.com/medrex/dlt-consent/pkg/types"
)

// Caller identity headers
const (
	HeaderUserID   = "user-id"
	HeaderPassword = "password"
	HeaderLoginOrg = "login-org"
	HeaderChannel  = "channel"
)

// CallerClaims are the JWT claims carrying a caller identity
type CallerClaims struct {
	UserID  string `json:"user_id"`
	Secret  string `json:"secret"`
	OrgID   string `json:"org_id"`
	Channel string `json:"channel"`
	jwt.RegisteredClaims
}

// CallerResolver extracts the caller identity from a request: a bearer token when
// JWT is configured and one is presented, the identity headers otherwise.
type CallerResolver struct {
	jwtSecret []byte
	issuer    string
}

// NewCallerResolver creates a new caller resolver
func NewCallerResolver(cfg *config.JWTConfig) *CallerResolver {
	r := &CallerResolver{}
	if cfg != nil {
		r.jwtSecret = []byte(cfg.SecretKey)
		r.issuer = cfg.Issuer
	}
	return r
}

// Resolve returns the caller of r
func (cr *CallerResolver) Resolve(r *http.Request) (types.Caller, error) {
	if auth := r.Header.Get("Authorization"); auth != "" && len(cr.jwtSecret) > 0 {
		token, found := strings.CutPrefix(auth, "Bearer ")
		if !found {
			return types.Caller{}, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "invalid authorization header")
		}
		return cr.fromToken(token)
	}

	caller := types.Caller{
		ID:      r.Header.Get(HeaderUserID),
		Secret:  r.Header.Get(HeaderPassword),
		Org:     r.Header.Get(HeaderLoginOrg),
		Channel: r.Header.Get(HeaderChannel),
	}
	if caller.ID == "" {
		return types.Caller{}, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "caller identity is missing")
	}
	return caller, nil
}

func (cr *CallerResolver) fromToken(tokenString string) (types.Caller, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if cr.issuer != "" {
		opts = append(opts, jwt.WithIssuer(cr.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &CallerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cr.jwtSecret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return types.Caller{}, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(*CallerClaims)
	if !ok || claims.UserID == "" {
		return types.Caller{}, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "invalid token claims")
	}

	return types.Caller{
		ID:      claims.UserID,
		Secret:  claims.Secret,
		Org:     claims.OrgID,
		Channel: claims.Channel,
	}, nil
}
