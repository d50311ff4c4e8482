package interfaces

import (
	"context"

	"github.com/medrex/dlt-consent/pkg/types"
)

// LedgerClient submits queries and transactions to the chaincode.
// Arguments are positional strings; the function name selects the chaincode entry point.
type LedgerClient interface {
	Query(ctx context.Context, caller types.Caller, function string, args []string) ([]byte, error)
	Invoke(ctx context.Context, caller types.Caller, function string, args []string) (*types.TxResult, error)
}

// IdentityIssuer registers identities with the registration authority
type IdentityIssuer interface {
	RegisterIdentity(ctx context.Context, req *types.IdentityRequest) ([]types.Attribute, error)
}

// Tokenizer replaces personally identifiable values with opaque tokens and back
type Tokenizer interface {
	Tokenize(ctx context.Context, value string) (string, error)
	Detokenize(ctx context.Context, token string) (string, error)
}

// KeyService hands out symmetric keys and unique identifiers
type KeyService interface {
	GetSymmetricKey(ctx context.Context) (*types.SymmetricKey, error)
	GetUUID(ctx context.Context) (string, error)
}

// AuditSink persists PHI access events to an append-only store
type AuditSink interface {
	Append(ctx context.Context, event *types.PHIAccessEvent) error
}

// FlagSource exposes the runtime feature toggles. Values are read on every call.
type FlagSource interface {
	DeIdentifyEnabled() bool
	AuditLoggingEnabled() bool
}
