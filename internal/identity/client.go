package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/medrex/dlt-consent/pkg/config"
	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/types"
)

const registerPath = "/api/v1/identities"

// ErrIdentityExists is returned when the registration authority already holds the id
// and the request asked to fail in that case
var ErrIdentityExists = errors.New("identity already exists")

// Client registers identities with the registration authority over HTTP
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *logger.Logger
}

type registerResponse struct {
	Attrs  []types.Attribute `json:"attrs"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// NewClient creates a registration authority client. When a token URL is configured the
// client authenticates with the OAuth2 client-credentials grant.
func NewClient(cfg *config.IdentityConfig, log *logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = cc.Client(context.Background())
		httpClient.Timeout = timeout
	}

	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		httpClient: httpClient,
		logger:     log,
	}
}

// RegisterIdentity registers (or with FailIfExists false, re-registers) an identity and
// returns the attributes the authority issued for it
func (c *Client) RegisterIdentity(ctx context.Context, req *types.IdentityRequest) ([]types.Attribute, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+registerPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("registration request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read registration response: %w", err)
	}

	if resp.StatusCode == http.StatusConflict {
		return nil, ErrIdentityExists
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("registration authority returned status %d", resp.StatusCode)
	}

	var out registerResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode registration response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("registration rejected: %s", out.Errors[0].Message)
	}

	c.logger.WithContext(ctx).WithField("component", "identity").WithField("role", req.Role).Info("Identity registered")
	return out.Attrs, nil
}

// Partition copies the issued key material into the fields of a registration
func Partition(attrs []types.Attribute) (privateKey, publicKey, symKey string) {
	for _, a := range attrs {
		switch a.Name {
		case types.AttrPrivateKey:
			privateKey = a.Value
		case types.AttrPublicKey:
			publicKey = a.Value
		case types.AttrSymKey:
			symKey = a.Value
		}
	}
	return privateKey, publicKey, symKey
}
