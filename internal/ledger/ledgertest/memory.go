// Package ledgertest provides an in-memory ledger that follows the chaincode's
// function contract closely enough for orchestration tests.
package ledgertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/medrex/dlt-consent/internal/ledger"
	"github.com/medrex/dlt-consent/pkg/types"
)

// Call is one recorded ledger call
type Call struct {
	Kind     string
	Caller   types.Caller
	Function string
	Args     []string
}

// MemoryLedger implements interfaces.LedgerClient on top of maps
type MemoryLedger struct {
	mu sync.Mutex

	orgs        map[string]types.Organization
	users       map[string]types.User
	members     map[string]map[string]bool
	services    map[string]types.Service
	datatypes   map[string]types.Datatype
	enrollments map[string]types.Enrollment
	consents    []types.Consent
	records     []types.DataRecord
	contracts   map[string]types.Contract
	logs        []types.TransactionLog
	calls       []Call
	txSeq       int

	// FailInvoke, when set, is consulted before every invoke; a non-nil error fails the call
	FailInvoke func(function string, args []string) error
	// FailQuery, when set, is consulted before every query
	FailQuery func(function string, args []string) error
}

// New creates an empty ledger
func New() *MemoryLedger {
	return &MemoryLedger{
		orgs:        map[string]types.Organization{},
		users:       map[string]types.User{},
		members:     map[string]map[string]bool{},
		services:    map[string]types.Service{},
		datatypes:   map[string]types.Datatype{},
		enrollments: map[string]types.Enrollment{},
		contracts:   map[string]types.Contract{},
	}
}

// Calls returns a copy of every call made so far
func (l *MemoryLedger) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

// CallsTo returns the calls made to one function
func (l *MemoryLedger) CallsTo(function string) []Call {
	var out []Call
	for _, c := range l.Calls() {
		if c.Function == function {
			out = append(out, c)
		}
	}
	return out
}

// Members returns the ids bound to an org
func (l *MemoryLedger) Members(orgID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for id := range l.members[orgID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Query serves read-only functions
func (l *MemoryLedger) Query(_ context.Context, caller types.Caller, function string, args []string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, Call{Kind: "query", Caller: caller, Function: function, Args: args})

	if l.FailQuery != nil {
		if err := l.FailQuery(function, args); err != nil {
			return nil, err
		}
	}

	switch function {
	case ledger.FnGetOrg:
		return pointLookup(l.orgs, arg(args, 0))
	case ledger.FnGetOrgs:
		return sortedValues(l.orgs)
	case ledger.FnGetUser:
		return pointLookup(l.users, arg(args, 0))
	case ledger.FnGetUsers:
		var out []types.User
		for _, u := range l.users {
			if u.Org == arg(args, 0) && (arg(args, 1) == "" || string(u.Role) == arg(args, 1)) {
				out = append(out, u)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return json.Marshal(out)
	case ledger.FnGetService:
		return pointLookup(l.services, arg(args, 0))
	case ledger.FnGetServicesOfOrg:
		var out []types.Service
		for _, s := range l.services {
			if s.OrgID == arg(args, 0) {
				out = append(out, s)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ServiceID < out[j].ServiceID })
		return json.Marshal(out)
	case ledger.FnGetDatatype:
		return pointLookup(l.datatypes, arg(args, 0))
	case ledger.FnGetAllDatatypes:
		return sortedValues(l.datatypes)
	case ledger.FnGetPatientEnrollments, ledger.FnGetServiceEnrollments:
		var out []types.Enrollment
		for _, e := range l.enrollments {
			match := e.UserID == arg(args, 0)
			if function == ledger.FnGetServiceEnrollments {
				match = e.ServiceID == arg(args, 0)
			}
			if match && (arg(args, 1) == "" || e.Status == arg(args, 1)) {
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].UserID+out[i].ServiceID < out[j].UserID+out[j].ServiceID })
		return json.Marshal(out)
	case ledger.FnGetConsent:
		c := l.latestConsent(arg(args, 0), arg(args, 1), arg(args, 2))
		if c == nil {
			return nil, nil
		}
		return json.Marshal(c)
	case ledger.FnGetConsentsWithOwnerID, ledger.FnGetConsentsWithTargetID:
		var out []types.Consent
		for _, c := range l.currentConsents() {
			if (function == ledger.FnGetConsentsWithOwnerID && c.OwnerID == arg(args, 0)) ||
				(function == ledger.FnGetConsentsWithTargetID && c.TargetID == arg(args, 0)) {
				out = append(out, c)
			}
		}
		return json.Marshal(out)
	case ledger.FnValidateConsent:
		return json.Marshal(l.validate(args))
	case ledger.FnGetUserData:
		return l.download(caller, function, func(r types.DataRecord) bool {
			return r.OwnerID == arg(args, 1) && r.DatatypeID == arg(args, 2)
		}, args[3:])
	case ledger.FnGetOwnerData:
		return l.download(caller, function, func(r types.DataRecord) bool {
			return r.ServiceID == arg(args, 0) && r.DatatypeID == arg(args, 1)
		}, args[2:])
	case ledger.FnGetOwnerDataWithContract:
		contract, ok := l.contracts[arg(args, 0)]
		if !ok {
			return nil, fmt.Errorf("contract %s not found", arg(args, 0))
		}
		if contract.MaxNumDownload <= contract.NumDownload {
			return nil, fmt.Errorf("contract %s has no downloads left", contract.ContractID)
		}
		return l.download(caller, function, func(r types.DataRecord) bool {
			return r.ServiceID == contract.OwnerServiceID && r.DatatypeID == arg(args, 1)
		}, args[2:])
	case ledger.FnGetContract:
		return pointLookup(l.contracts, arg(args, 0))
	case ledger.FnGetContracts:
		var out []types.Contract
		for _, c := range l.contracts {
			if (arg(args, 1) == "owner" && c.OwnerServiceID == arg(args, 0)) ||
				(arg(args, 1) == "requester" && c.RequesterServiceID == arg(args, 0)) {
				out = append(out, c)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ContractID < out[j].ContractID })
		return json.Marshal(out)
	case ledger.FnGetLogs:
		return json.Marshal(l.logs)
	}
	return nil, fmt.Errorf("unknown query function %s", function)
}

// Invoke serves state-changing functions
func (l *MemoryLedger) Invoke(_ context.Context, caller types.Caller, function string, args []string) (*types.TxResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, Call{Kind: "invoke", Caller: caller, Function: function, Args: args})

	if l.FailInvoke != nil {
		if err := l.FailInvoke(function, args); err != nil {
			return nil, err
		}
	}

	if err := l.apply(caller, function, args); err != nil {
		return nil, err
	}

	l.txSeq++
	return &types.TxResult{TxID: "tx-" + strconv.Itoa(l.txSeq), Success: true}, nil
}

func (l *MemoryLedger) apply(caller types.Caller, function string, args []string) error {
	switch function {
	case ledger.FnRegisterOrg:
		var org types.Organization
		if err := json.Unmarshal([]byte(arg(args, 0)), &org); err != nil {
			return err
		}
		if _, exists := l.orgs[org.ID]; exists && arg(args, 1) != "true" {
			return fmt.Errorf("org %s already exists", org.ID)
		}
		l.orgs[org.ID] = org
	case ledger.FnRegisterUser:
		var user types.User
		if err := json.Unmarshal([]byte(arg(args, 0)), &user); err != nil {
			return err
		}
		if _, exists := l.users[user.ID]; exists && arg(args, 1) != "true" {
			return fmt.Errorf("user %s already exists", user.ID)
		}
		l.users[user.ID] = user
	case ledger.FnPutUserInOrg:
		if l.members[arg(args, 1)] == nil {
			l.members[arg(args, 1)] = map[string]bool{}
		}
		l.members[arg(args, 1)][arg(args, 0)] = true
	case ledger.FnRemoveUserFromOrg:
		delete(l.members[arg(args, 1)], arg(args, 0))
	case ledger.FnRegisterService, ledger.FnUpdateService:
		var svc types.Service
		if err := json.Unmarshal([]byte(arg(args, 0)), &svc); err != nil {
			return err
		}
		if _, exists := l.services[svc.ServiceID]; exists && function == ledger.FnRegisterService {
			return fmt.Errorf("service %s already exists", svc.ServiceID)
		}
		l.services[svc.ServiceID] = svc
	case ledger.FnAddDatatypeToService:
		svc, ok := l.services[arg(args, 0)]
		if !ok {
			return fmt.Errorf("service %s not found", arg(args, 0))
		}
		var binding types.ServiceDatatype
		if err := json.Unmarshal([]byte(arg(args, 1)), &binding); err != nil {
			return err
		}
		svc.Datatypes = append(svc.Datatypes, binding)
		l.services[svc.ServiceID] = svc
	case ledger.FnRemoveDatatypeFromService:
		svc, ok := l.services[arg(args, 0)]
		if !ok {
			return fmt.Errorf("service %s not found", arg(args, 0))
		}
		kept := svc.Datatypes[:0]
		for _, b := range svc.Datatypes {
			if b.DatatypeID != arg(args, 1) {
				kept = append(kept, b)
			}
		}
		svc.Datatypes = kept
		l.services[svc.ServiceID] = svc
	case ledger.FnRegisterDatatype, ledger.FnUpdateDatatype:
		var dt types.Datatype
		if err := json.Unmarshal([]byte(arg(args, 0)), &dt); err != nil {
			return err
		}
		l.datatypes[dt.DatatypeID] = dt
	case ledger.FnEnrollPatient:
		var e types.Enrollment
		if err := json.Unmarshal([]byte(arg(args, 0)), &e); err != nil {
			return err
		}
		if arg(args, 1) == "" {
			return fmt.Errorf("enrollment key is required")
		}
		l.enrollments[e.ServiceID+"/"+e.UserID] = e
	case ledger.FnUnenrollPatient:
		key := arg(args, 0) + "/" + arg(args, 1)
		e, ok := l.enrollments[key]
		if !ok {
			return fmt.Errorf("enrollment not found")
		}
		e.Status = types.StatusInactive
		l.enrollments[key] = e
	case ledger.FnPutConsentPatientData, ledger.FnPutConsentOwnerData:
		var c types.Consent
		if err := json.Unmarshal([]byte(arg(args, 0)), &c); err != nil {
			return err
		}
		if arg(args, 1) == "" {
			return fmt.Errorf("consent key is required")
		}
		l.consents = append(l.consents, c)
	case ledger.FnUploadUserData, ledger.FnUploadOwnerData:
		var r types.DataRecord
		if err := json.Unmarshal([]byte(arg(args, 0)), &r); err != nil {
			return err
		}
		l.records = append(l.records, r)
	case ledger.FnAddQueryTransactionLog:
		l.logs = append(l.logs, types.TransactionLog{
			TransactionID: "tx-" + strconv.Itoa(l.txSeq+1),
			FunctionName:  function,
			CallerID:      caller.ID,
			Data:          json.RawMessage(arg(args, 0)),
		})
	case ledger.FnCreateContract:
		var c types.Contract
		if err := json.Unmarshal([]byte(arg(args, 0)), &c); err != nil {
			return err
		}
		l.contracts[c.ContractID] = c
	case ledger.FnAddContractDetail:
		c, ok := l.contracts[arg(args, 0)]
		if !ok {
			return fmt.Errorf("contract %s not found", arg(args, 0))
		}
		ts, _ := strconv.ParseInt(arg(args, 3), 10, 64)
		detailType := types.ContractDetailType(arg(args, 1))
		c.ContractDetails = append(c.ContractDetails, types.ContractDetail{
			ContractID: c.ContractID,
			Type:       detailType,
			Terms:      json.RawMessage(arg(args, 2)),
			CreateDate: ts,
			CreatedBy:  caller.ID,
		})
		switch detailType {
		case types.ContractDetailSign:
			c.State = "signed"
		case types.ContractDetailTerminate:
			c.State = "terminated"
		case types.ContractDetailVerify:
			c.PaymentVerified = true
		case types.ContractDetailDownload:
			c.NumDownload++
		}
		c.UpdateDate = ts
		l.contracts[c.ContractID] = c
	case ledger.FnGivePermissionByContract:
		c, ok := l.contracts[arg(args, 0)]
		if !ok {
			return fmt.Errorf("contract %s not found", arg(args, 0))
		}
		c.MaxNumDownload, _ = strconv.Atoi(arg(args, 1))
		c.State = "downloadReady"
		l.contracts[c.ContractID] = c
	default:
		return fmt.Errorf("unknown invoke function %s", function)
	}
	return nil
}

func (l *MemoryLedger) latestConsent(owner, target, datatype string) *types.Consent {
	for i := len(l.consents) - 1; i >= 0; i-- {
		c := l.consents[i]
		if c.OwnerID == owner && c.TargetID == target && c.DatatypeID == datatype {
			return &c
		}
	}
	return nil
}

func (l *MemoryLedger) currentConsents() []types.Consent {
	seen := map[string]bool{}
	var out []types.Consent
	for i := len(l.consents) - 1; i >= 0; i-- {
		c := l.consents[i]
		key := c.OwnerID + "/" + c.TargetID + "/" + c.DatatypeID
		if !seen[key] {
			seen[key] = true
			out = append(out, c)
		}
	}
	return out
}

func (l *MemoryLedger) validate(args []string) types.ConsentDecision {
	ts, _ := strconv.ParseInt(arg(args, 4), 10, 64)
	decision := types.ConsentDecision{
		OwnerID:    arg(args, 0),
		TargetID:   arg(args, 1),
		DatatypeID: arg(args, 2),
		Access:     arg(args, 3),
		Permission: types.PermissionDeny,
		Timestamp:  ts,
	}

	c := l.latestConsent(decision.OwnerID, decision.TargetID, decision.DatatypeID)
	if c == nil || (c.Expiration != 0 && c.Expiration <= ts) {
		return decision
	}
	for _, o := range c.Option {
		if o == types.OptionDeny {
			return decision
		}
		if o == decision.Access {
			decision.Permission = types.PermissionAllow
		}
	}
	return decision
}

func (l *MemoryLedger) download(caller types.Caller, function string, match func(types.DataRecord) bool, window []string) ([]byte, error) {
	latestOnly := arg(window, 0) == "true"
	start, _ := strconv.ParseInt(arg(window, 1), 10, 64)
	end, _ := strconv.ParseInt(arg(window, 2), 10, 64)
	maxNum, _ := strconv.Atoi(arg(window, 3))

	var out []types.DataRecord
	for i := len(l.records) - 1; i >= 0; i-- {
		r := l.records[i]
		if !match(r) || (start > 0 && r.Timestamp < start) || (end > 0 && r.Timestamp > end) {
			continue
		}
		out = append(out, r)
		if latestOnly || (maxNum > 0 && len(out) >= maxNum) {
			break
		}
	}
	if out == nil {
		out = []types.DataRecord{}
	}

	trail, err := json.Marshal(map[string]interface{}{
		"function": function,
		"caller":   caller.ID,
		"count":    len(out),
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.DownloadResult{Records: out, TransactionLog: trail})
}

func pointLookup[T any](m map[string]T, key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	return json.Marshal(v)
}

func sortedValues[T any](m map[string]T) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return json.Marshal(out)
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
