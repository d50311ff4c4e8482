package solution

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/medrex/dlt-consent/internal/consent"
	"github.com/medrex/dlt-consent/internal/ledger"
	"github.com/medrex/dlt-consent/internal/tokenizer"
	"github.com/medrex/dlt-consent/pkg/types"
)

func (s *Service) putConsentPatientData(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	return s.putConsent(ctx, caller, payload, s.patientConsents, false)
}

func (s *Service) putConsentOwnerData(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	return s.putConsent(ctx, caller, payload, s.ownerConsents, true)
}

func (s *Service) putMultiConsentPatientData(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	return s.putMultiConsent(ctx, caller, payload, s.patientConsents, false)
}

func (s *Service) putMultiConsentOwnerData(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	return s.putMultiConsent(ctx, caller, payload, s.ownerConsents, true)
}

func (s *Service) putConsent(ctx context.Context, caller types.Caller, payload json.RawMessage, v *consent.Validator, ownerData bool) (*types.Response, error) {
	var in map[string]interface{}
	if err := decode(payload, &in); err != nil {
		return nil, err
	}

	c, err := v.Build(in)
	if err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	tx, err := s.submitConsent(ctx, lc, c, ownerData)
	if err != nil {
		return nil, err
	}
	return respond("consent stored", tx, nil), nil
}

func (s *Service) putMultiConsent(ctx context.Context, caller types.Caller, payload json.RawMessage, v *consent.Validator, ownerData bool) (*types.Response, error) {
	var p consentsParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if len(p.Consents) == 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "consents is missing", map[string]interface{}{"field": "consents"})
	}

	batch, err := s.putConsents(ctx, caller, v, ownerData, p.Consents)
	if err != nil {
		return nil, err
	}

	resp := respond("consents stored", nil, batch)
	if !batch.Success {
		resp.Message = "some consents failed"
		resp.Status = http.StatusInternalServerError
	}
	return resp, nil
}

// putConsents validates every input, then submits them concurrently. Each entry gets its own
// key and transaction; a failing entry lands in the failure list without affecting the others.
func (s *Service) putConsents(ctx context.Context, caller types.Caller, v *consent.Validator, ownerData bool, inputs []map[string]interface{}) (*types.BatchResult, error) {
	consents := make([]*types.Consent, len(inputs))
	for i, in := range inputs {
		c, err := v.Build(in)
		if err != nil {
			var merr *types.MedrexError
			if errors.As(err, &merr) && merr.Details != nil {
				merr.Details["index"] = i
			}
			return nil, err
		}
		consents[i] = c
	}

	result := &types.BatchResult{Successes: []types.BatchItem{}, Failures: []types.BatchItem{}}
	if len(consents) == 0 {
		result.Success = true
		return result, nil
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, c := range consents {
		c := c
		g.Go(func() error {
			tx, err := s.submitConsent(ctx, lc, c, ownerData)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, types.BatchItem{Consent: c, Message: types.AsMedrexError(err).Message})
				return nil
			}
			result.Successes = append(result.Successes, types.BatchItem{Consent: c, TxID: tx.TxID})
			return nil
		})
	}
	_ = g.Wait()

	result.Success = len(result.Failures) == 0
	return result, nil
}

// submitConsent stores one consent under a fresh key. c is left in plain form.
func (s *Service) submitConsent(ctx context.Context, lc types.Caller, c *types.Consent, ownerData bool) (*types.TxResult, error) {
	key, err := s.symmetricKey(ctx)
	if err != nil {
		return nil, err
	}

	record := *c
	if err := s.deidentify(ctx, &record); err != nil {
		return nil, err
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.PutConsentRequest{OwnerData: ownerData, Consent: &record, KeyBase64: key})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return tx, nil
}

func (s *Service) getConsent(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p consentLookupParams
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
	ownerToken, err := s.token(ctx, p.OwnerID, "owner")
	if err != nil {
		return nil, err
	}
	targetToken, err := s.token(ctx, p.TargetID, "target")
	if err != nil {
		return nil, err
	}

	c, err := ledger.Fetch[types.Consent](ctx, s.ledger, lc, ledger.GetConsentRequest{
		OwnerID:    ownerToken,
		TargetID:   targetToken,
		DatatypeID: p.DatatypeID,
	})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if c == nil {
		return nil, notFound("consent")
	}
	if err := s.reidentify(ctx, c); err != nil {
		return nil, err
	}
	return respond("consent found", nil, c), nil
}

func (s *Service) getConsentsWithOwnerID(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p consentLookupParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	ownerToken, err := s.token(ctx, p.OwnerID, "owner")
	if err != nil {
		return nil, err
	}

	consents, err := ledger.FetchList[types.Consent](ctx, s.ledger, lc, ledger.GetConsentsWithOwnerIDRequest{OwnerID: ownerToken})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("consents found", nil, tokenizer.DetokenizeEach(ctx, s.tokens, consents)), nil
}

func (s *Service) getConsentsWithTargetID(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p consentLookupParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	targetToken, err := s.token(ctx, p.TargetID, "target")
	if err != nil {
		return nil, err
	}

	consents, err := ledger.FetchList[types.Consent](ctx, s.ledger, lc, ledger.GetConsentsWithTargetIDRequest{TargetID: targetToken})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("consents found", nil, tokenizer.DetokenizeEach(ctx, s.tokens, consents)), nil
}

func (s *Service) validateConsent(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p validateConsentParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("datatype_id", p.DatatypeID, "access", p.Access); err != nil {
		return nil, err
	}
	if p.Timestamp == 0 {
		p.Timestamp = s.timestamp()
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	ownerToken, err := s.token(ctx, p.OwnerID, "owner")
	if err != nil {
		return nil, err
	}
	targetToken, err := s.token(ctx, p.TargetID, "target")
	if err != nil {
		return nil, err
	}

	decision, err := ledger.Fetch[types.ConsentDecision](ctx, s.ledger, lc, ledger.ValidateConsentRequest{
		OwnerID:    ownerToken,
		TargetID:   targetToken,
		DatatypeID: p.DatatypeID,
		Access:     p.Access,
		Timestamp:  p.Timestamp,
	})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if decision == nil {
		return nil, notFound("consent")
	}
	if err := s.reidentify(ctx, decision); err != nil {
		return nil, err
	}
	return respond("consent validated", nil, decision), nil
}
