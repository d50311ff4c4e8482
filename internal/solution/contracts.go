package solution

import (
	"context"
	"encoding/json"

	"github.com/medrex/dlt-consent/internal/ledger"
	"github.com/medrex/dlt-consent/internal/tokenizer"
	"github.com/medrex/dlt-consent/pkg/types"
)

// Contract parties accepted by getContracts
const (
	partyOwner     = "owner"
	partyRequester = "requester"
)

func (s *Service) createContract(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p createContractParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields(
		"owner_org_id", p.OwnerOrgID,
		"owner_service_id", p.OwnerServiceID,
		"requester_org_id", p.RequesterOrgID,
		"requester_service_id", p.RequesterServiceID,
	); err != nil {
		return nil, err
	}

	id, err := s.keys.GetUUID(ctx)
	if err != nil {
		return nil, types.NewCollaboratorError(types.ErrCodeKeyServiceError, "failed to get contract id", err)
	}
	key, err := s.symmetricKey(ctx)
	if err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	contract := &types.Contract{
		ContractID:         types.ContractIDPrefix + id,
		OwnerOrgID:         p.OwnerOrgID,
		OwnerServiceID:     p.OwnerServiceID,
		RequesterOrgID:     p.RequesterOrgID,
		RequesterServiceID: p.RequesterServiceID,
		ContractTerms:      p.ContractTerms,
		State:              types.ContractStateNew,
		CreateDate:         now,
		UpdateDate:         now,
		ContractDetails:    []types.ContractDetail{},
		PaymentRequired:    p.PaymentRequired,
	}
	contractID := contract.ContractID
	if err := s.deidentify(ctx, contract); err != nil {
		return nil, err
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.CreateContractRequest{Contract: contract, KeyBase64: key})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("contract created", tx, map[string]string{"contract_id": contractID}), nil
}

func (s *Service) getContract(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p contractParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("contract_id", p.ContractID); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	contract, err := ledger.Fetch[types.Contract](ctx, s.ledger, lc, ledger.GetContractRequest{ContractID: p.ContractID})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if contract == nil {
		return nil, notFound("contract")
	}
	if err := s.reidentify(ctx, contract); err != nil {
		return nil, err
	}
	return respond("contract found", nil, contract), nil
}

func (s *Service) getContracts(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p contractsParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if p.Party != partyOwner && p.Party != partyRequester {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "party must be owner or requester", map[string]interface{}{"field": "party"})
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	svcToken, err := s.token(ctx, p.ServiceID, "service")
	if err != nil {
		return nil, err
	}

	contracts, err := ledger.FetchList[types.Contract](ctx, s.ledger, lc, ledger.GetContractsRequest{ServiceID: svcToken, Party: p.Party})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("contracts found", nil, tokenizer.DetokenizeEach(ctx, s.tokens, contracts)), nil
}

func (s *Service) changeContractTerms(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	return s.appendContractDetail(ctx, caller, payload, types.ContractDetailTerms, "contract terms changed")
}

func (s *Service) signContract(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	return s.appendContractDetail(ctx, caller, payload, types.ContractDetailSign, "contract signed")
}

func (s *Service) payContract(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	return s.appendContractDetail(ctx, caller, payload, types.ContractDetailPayment, "contract paid")
}

func (s *Service) verifyContractPayment(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	return s.appendContractDetail(ctx, caller, payload, types.ContractDetailVerify, "contract payment verified")
}

func (s *Service) terminateContract(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	return s.appendContractDetail(ctx, caller, payload, types.ContractDetailTerminate, "contract terminated")
}

// appendContractDetail advances a contract by appending a typed detail entry
func (s *Service) appendContractDetail(ctx context.Context, caller types.Caller, payload json.RawMessage, detailType types.ContractDetailType, message string) (*types.Response, error) {
	var p contractDetailParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("contract_id", p.ContractID); err != nil {
		return nil, err
	}
	detail := p.Detail
	if len(detail) == 0 {
		detail = json.RawMessage("{}")
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.AddContractDetailRequest{
		ContractID: p.ContractID,
		Type:       detailType,
		Detail:     detail,
		Timestamp:  s.timestamp(),
	})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond(message, tx, nil), nil
}

func (s *Service) givePermissionByContract(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p permissionParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("contract_id", p.ContractID, "datatype_id", p.DatatypeID); err != nil {
		return nil, err
	}
	if p.MaxNumDownload <= 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "max_num_download must be positive", map[string]interface{}{"field": "max_num_download"})
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.GivePermissionByContractRequest{
		ContractID:     p.ContractID,
		MaxNumDownload: p.MaxNumDownload,
		DatatypeID:     p.DatatypeID,
		Timestamp:      s.timestamp(),
	})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("permission given", tx, nil), nil
}

// getTransactionLogs reads the ledger-side access trail. A caller_id filter value is
// de-identified like any other id.
func (s *Service) getTransactionLogs(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p logsParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("field", p.Field); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	if p.Field == "caller_id" {
		if p.Value, err = s.token(ctx, p.Value, "caller"); err != nil {
			return nil, err
		}
	}

	logs, err := ledger.FetchList[types.TransactionLog](ctx, s.ledger, lc, ledger.GetLogsRequest{
		Field:     p.Field,
		Value:     p.Value,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		MaxNum:    p.MaxNum,
	})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("transaction logs found", nil, tokenizer.DetokenizeEach(ctx, s.tokens, logs)), nil
}
