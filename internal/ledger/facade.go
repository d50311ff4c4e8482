package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medrex/dlt-consent/pkg/interfaces"
	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/monitoring"
	"github.com/medrex/dlt-consent/pkg/types"
)

const (
	kindQuery  = "query"
	kindInvoke = "invoke"
)

// Error is a ledger failure. Message is fixed per function and safe to return to callers;
// Cause is kept for logs only.
type Error struct {
	Function string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

var messages = map[string]string{
	FnGetOrg:                    "failed to get org",
	FnGetOrgs:                   "failed to get orgs",
	FnRegisterOrg:               "failed to register org",
	FnGetUser:                   "failed to get user",
	FnGetUsers:                  "failed to get users",
	FnRegisterUser:              "failed to register user",
	FnPutUserInOrg:              "failed to put user in org",
	FnRemoveUserFromOrg:         "failed to remove user from org",
	FnGetService:                "failed to get service",
	FnGetServicesOfOrg:          "failed to get services of org",
	FnRegisterService:           "failed to register service",
	FnUpdateService:             "failed to update service",
	FnAddDatatypeToService:      "failed to add datatype to service",
	FnRemoveDatatypeFromService: "failed to remove datatype from service",
	FnGetDatatype:               "failed to get datatype",
	FnGetAllDatatypes:           "failed to get datatypes",
	FnRegisterDatatype:          "failed to register datatype",
	FnUpdateDatatype:            "failed to update datatype",
	FnEnrollPatient:             "failed to enroll patient",
	FnUnenrollPatient:           "failed to unenroll patient",
	FnGetPatientEnrollments:     "failed to get patient enrollments",
	FnGetServiceEnrollments:     "failed to get service enrollments",
	FnPutConsentPatientData:     "failed to put consent",
	FnPutConsentOwnerData:       "failed to put consent",
	FnGetConsent:                "failed to get consent",
	FnGetConsentsWithOwnerID:    "failed to get consents",
	FnGetConsentsWithTargetID:   "failed to get consents",
	FnValidateConsent:           "failed to validate consent",
	FnUploadUserData:            "failed to upload user data",
	FnUploadOwnerData:           "failed to upload owner data",
	FnGetUserData:               "failed to download user data",
	FnGetOwnerData:              "failed to download owner data",
	FnGetOwnerDataWithContract:  "failed to download owner data",
	FnAddQueryTransactionLog:    "failed to add query transaction log",
	FnCreateContract:            "failed to create contract",
	FnGetContract:               "failed to get contract",
	FnGetContracts:              "failed to get contracts",
	FnAddContractDetail:         "failed to add contract detail",
	FnGivePermissionByContract:  "failed to give permission by contract",
	FnGetLogs:                   "failed to get transaction logs",
}

func wrap(function string, cause error) *Error {
	msg, ok := messages[function]
	if !ok {
		msg = "ledger call failed"
	}
	return &Error{Function: function, Message: msg, Cause: cause}
}

// Facade maps typed requests onto the ledger client and instruments every call
type Facade struct {
	client    interfaces.LedgerClient
	chaincode string
	metrics   *monitoring.MetricsCollector
	tracing   *monitoring.TracingManager
	logger    *logger.Logger
}

// NewFacade creates a new ledger facade
func NewFacade(client interfaces.LedgerClient, chaincode string, metrics *monitoring.MetricsCollector, tracing *monitoring.TracingManager, log *logger.Logger) *Facade {
	return &Facade{
		client:    client,
		chaincode: chaincode,
		metrics:   metrics,
		tracing:   tracing,
		logger:    log,
	}
}

// Query runs a read-only ledger call and returns the raw payload
func (f *Facade) Query(ctx context.Context, caller types.Caller, req QueryRequest) ([]byte, error) {
	fn, args, err := Encode(req)
	if err != nil {
		return nil, wrap(fn, err)
	}

	ctx, span := f.tracing.StartBlockchainSpan(ctx, f.chaincode, fn, kindQuery)
	defer span.End()

	start := time.Now()
	payload, err := f.client.Query(ctx, caller, fn, args)
	f.metrics.RecordLedgerCall(fn, kindQuery, err == nil, time.Since(start))
	if err != nil {
		f.tracing.RecordError(span, err)
		f.logger.WithContext(ctx).WithFields(logrus.Fields{
			"component": "ledger",
			"function":  fn,
		}).WithError(err).Error("Ledger query failed")
		return nil, wrap(fn, err)
	}
	return payload, nil
}

// Invoke submits a ledger transaction
func (f *Facade) Invoke(ctx context.Context, caller types.Caller, req InvokeRequest) (*types.TxResult, error) {
	fn, args, err := Encode(req)
	if err != nil {
		return nil, wrap(fn, err)
	}

	ctx, span := f.tracing.StartBlockchainSpan(ctx, f.chaincode, fn, kindInvoke)
	defer span.End()

	start := time.Now()
	result, err := f.client.Invoke(ctx, caller, fn, args)
	if err == nil && (result == nil || !result.Success) {
		err = fmt.Errorf("transaction not committed: %s", txMessage(result))
	}
	f.metrics.RecordLedgerCall(fn, kindInvoke, err == nil, time.Since(start))

	if err != nil {
		f.tracing.RecordError(span, err)
		f.logger.BlockchainTransaction(ctx, f.chaincode, fn, false, txID(result), map[string]interface{}{"error": err.Error()})
		return nil, wrap(fn, err)
	}

	f.logger.BlockchainTransaction(ctx, f.chaincode, fn, true, result.TxID, nil)
	return result, nil
}

func txID(r *types.TxResult) string {
	if r == nil {
		return ""
	}
	return r.TxID
}

func txMessage(r *types.TxResult) string {
	if r == nil {
		return "empty result"
	}
	return r.Message
}

// Empty reports whether a query payload means "no such record"
func Empty(payload []byte) bool {
	p := bytes.TrimSpace(payload)
	return len(p) == 0 || bytes.Equal(p, []byte("null")) || bytes.Equal(p, []byte("{}"))
}

// Fetch runs a point lookup. It returns nil without error when the record does not exist.
func Fetch[T any](ctx context.Context, f *Facade, caller types.Caller, req QueryRequest) (*T, error) {
	payload, err := f.Query(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	if Empty(payload) {
		return nil, nil
	}

	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, wrap(req.Function(), fmt.Errorf("decode response: %w", err))
	}
	return &out, nil
}

// FetchList runs a collection query. A missing collection is an empty list.
func FetchList[T any](ctx context.Context, f *Facade, caller types.Caller, req QueryRequest) ([]T, error) {
	payload, err := f.Query(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	if Empty(payload) {
		return []T{}, nil
	}

	var out []T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, wrap(req.Function(), fmt.Errorf("decode response: %w", err))
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Download is the outcome of a query+invoke download pair
type Download struct {
	Result *types.DownloadResult
	// LogTx is the transaction that recorded the read, empty when nothing was read
	LogTx *types.TxResult
}

// Download runs a data query and, when records came back, persists the query's
// transaction log on the ledger. A failing log leg fails the whole download.
func (f *Facade) Download(ctx context.Context, caller types.Caller, req QueryRequest) (*Download, error) {
	result, err := Fetch[types.DownloadResult](ctx, f, caller, req)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &types.DownloadResult{}
	}
	if result.Records == nil {
		result.Records = []types.DataRecord{}
	}

	out := &Download{Result: result}
	if len(result.Records) == 0 {
		return out, nil
	}

	tx, err := f.Invoke(ctx, caller, AddQueryTransactionLogRequest{TransactionLog: result.TransactionLog})
	if err != nil {
		return nil, err
	}
	out.LogTx = tx
	return out, nil
}
