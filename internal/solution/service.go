package solution

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/medrex/dlt-consent/internal/audit"
	"github.com/medrex/dlt-consent/internal/consent"
	"github.com/medrex/dlt-consent/internal/ledger"
	"github.com/medrex/dlt-consent/internal/tokenizer"
	"github.com/medrex/dlt-consent/pkg/interfaces"
	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/monitoring"
	"github.com/medrex/dlt-consent/pkg/types"
)

// Messages returned when a non-transactional registration stops halfway
const (
	msgCAFailed     = "failed to register in CA"
	msgLedgerFailed = "registered to CA but failed in Blockchain"
)

// Service orchestrates identity issuance, tokenization and ledger calls into the
// access-control workflows. It holds no state between requests.
type Service struct {
	ledger          *ledger.Facade
	identity        interfaces.IdentityIssuer
	keys            interfaces.KeyService
	tokens          *tokenizer.Adapter
	audit           *audit.Emitter
	patientConsents *consent.Validator
	ownerConsents   *consent.Validator
	metrics         *monitoring.MetricsCollector
	tracing         *monitoring.TracingManager
	logger          *logger.Logger
	now             func() time.Time
}

// NewService creates a new solution service
func NewService(
	facade *ledger.Facade,
	identity interfaces.IdentityIssuer,
	keys interfaces.KeyService,
	tokens *tokenizer.Adapter,
	emitter *audit.Emitter,
	metrics *monitoring.MetricsCollector,
	tracing *monitoring.TracingManager,
	log *logger.Logger,
) *Service {
	return &Service{
		ledger:          facade,
		identity:        identity,
		keys:            keys,
		tokens:          tokens,
		audit:           emitter,
		patientConsents: consent.NewValidator(consent.PatientFields),
		ownerConsents:   consent.NewValidator(consent.OwnerFields),
		metrics:         metrics,
		tracing:         tracing,
		logger:          log,
		now:             time.Now,
	}
}

// ledgerCaller returns the caller as the ledger knows it, with de-identified id and org
func (s *Service) ledgerCaller(ctx context.Context, caller types.Caller) (types.Caller, error) {
	out := caller
	if err := s.tokens.TokenizeFields(ctx, &out.ID, &out.Org); err != nil {
		return types.Caller{}, tokenizerFailure(err)
	}
	return out, nil
}

// token de-identifies a value that addresses a ledger record
func (s *Service) token(ctx context.Context, value, field string) (string, error) {
	return s.tokens.RequireToken(ctx, value, field)
}

func (s *Service) reidentify(ctx context.Context, r tokenizer.Record) error {
	if err := s.tokens.DetokenizeRecord(ctx, r); err != nil {
		return tokenizerFailure(err)
	}
	return nil
}

func (s *Service) deidentify(ctx context.Context, r tokenizer.Record) error {
	if err := s.tokens.TokenizeRecord(ctx, r); err != nil {
		return tokenizerFailure(err)
	}
	return nil
}

func (s *Service) symmetricKey(ctx context.Context) (string, error) {
	key, err := s.keys.GetSymmetricKey(ctx)
	if err != nil {
		return "", types.NewCollaboratorError(types.ErrCodeKeyServiceError, "failed to get symmetric key", err)
	}
	return key.KeyBase64, nil
}

func tokenizerFailure(err error) error {
	var merr *types.MedrexError
	if errors.As(err, &merr) {
		return merr
	}
	return types.NewCollaboratorError(types.ErrCodeTokenizerError, "failed to resolve identifiers", err)
}

// ledgerFailure turns a facade error into a collaborator error carrying the facade's fixed message
func ledgerFailure(err error) error {
	var lerr *ledger.Error
	if errors.As(err, &lerr) {
		return types.NewCollaboratorError(types.ErrCodeLedgerError, lerr.Message, err)
	}
	return types.AsMedrexError(err)
}

func partialFailure(err error) error {
	return types.NewPartialFailureError(types.ErrCodePartialRegistration, msgLedgerFailed, err)
}

func notFound(what string) error {
	return types.NewNotFoundError(types.ErrCodeNotFound, what+" not found")
}

func respond(message string, tx *types.TxResult, data interface{}) *types.Response {
	resp := &types.Response{Message: message, Status: http.StatusOK, Data: data}
	if tx != nil {
		resp.TxID = tx.TxID
	}
	return resp
}

func (s *Service) timestamp() int64 {
	return s.now().Unix()
}
