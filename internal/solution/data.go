package solution

import (
	"context"
	"encoding/json"

	"github.com/medrex/dlt-consent/internal/ledger"
	"github.com/medrex/dlt-consent/internal/tokenizer"
	"github.com/medrex/dlt-consent/pkg/types"
)

func (s *Service) uploadUserData(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p uploadParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("owner_id", p.OwnerID, "service_id", p.ServiceID, "datatype_id", p.DatatypeID); err != nil {
		return nil, err
	}
	return s.upload(ctx, caller, p, false)
}

func (s *Service) uploadOwnerData(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p uploadParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("service_id", p.ServiceID, "datatype_id", p.DatatypeID); err != nil {
		return nil, err
	}
	if p.OwnerID == "" {
		p.OwnerID = p.ServiceID
	}
	return s.upload(ctx, caller, p, true)
}

func (s *Service) upload(ctx context.Context, caller types.Caller, p uploadParams, ownerData bool) (*types.Response, error) {
	if len(p.Data) == 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "data is missing", map[string]interface{}{"field": "data"})
	}
	if p.Timestamp == 0 {
		p.Timestamp = s.timestamp()
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	record := &types.DataRecord{
		OwnerID:    p.OwnerID,
		ServiceID:  p.ServiceID,
		DatatypeID: p.DatatypeID,
		Data:       p.Data,
		Timestamp:  p.Timestamp,
	}
	if err := s.deidentify(ctx, record); err != nil {
		return nil, err
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.UploadDataRequest{OwnerData: ownerData, Record: record})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("data uploaded", tx, nil), nil
}

func (s *Service) downloadUserData(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p downloadParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("datatype_id", p.DatatypeID); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	svcToken, err := s.token(ctx, p.ServiceID, "service")
	if err != nil {
		return nil, err
	}
	userToken, err := s.token(ctx, p.UserID, "user")
	if err != nil {
		return nil, err
	}

	dl, err := s.ledger.Download(ctx, lc, ledger.GetUserDataRequest{
		ServiceID:  svcToken,
		UserID:     userToken,
		DatatypeID: p.DatatypeID,
		Window:     p.DownloadWindow,
	})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return s.downloaded(ctx, dl), nil
}

func (s *Service) downloadOwnerData(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p downloadParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("datatype_id", p.DatatypeID); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	svcToken, err := s.token(ctx, p.ServiceID, "service")
	if err != nil {
		return nil, err
	}

	dl, err := s.ledger.Download(ctx, lc, ledger.GetOwnerDataRequest{
		ServiceID:  svcToken,
		DatatypeID: p.DatatypeID,
		Window:     p.DownloadWindow,
	})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return s.downloaded(ctx, dl), nil
}

// downloadOwnerDataAsRequester reads owner data under a contract. A read that returned
// records is also recorded on the contract as a download detail.
func (s *Service) downloadOwnerDataAsRequester(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p downloadParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("contract_id", p.ContractID, "datatype_id", p.DatatypeID); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	dl, err := s.ledger.Download(ctx, lc, ledger.GetOwnerDataWithContractRequest{
		ContractID: p.ContractID,
		DatatypeID: p.DatatypeID,
		Window:     p.DownloadWindow,
	})
	if err != nil {
		return nil, ledgerFailure(err)
	}

	if n := len(dl.Result.Records); n > 0 {
		_, err := s.ledger.Invoke(ctx, lc, ledger.AddContractDetailRequest{
			ContractID: p.ContractID,
			Type:       types.ContractDetailDownload,
			Detail: types.DownloadDetail{
				DatatypeID:        p.DatatypeID,
				EncryptedContract: dl.Result.EncryptedContract,
				NumRecords:        n,
			},
			Timestamp: s.timestamp(),
		})
		if err != nil {
			return nil, ledgerFailure(err)
		}
	}

	return s.downloaded(ctx, dl), nil
}

func (s *Service) downloaded(ctx context.Context, dl *ledger.Download) *types.Response {
	records := tokenizer.DetokenizeEach(ctx, s.tokens, dl.Result.Records)
	// The access trail carries tokens and is persisted under LogTx, so only the records go back
	resp := respond("data downloaded", dl.LogTx, &types.DownloadResult{Records: records})
	if len(records) == 0 {
		resp.Message = "no data found"
	}
	return resp
}
