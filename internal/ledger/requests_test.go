package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/dlt-consent/pkg/types"
)

func TestEncodeArgumentOrder(t *testing.T) {
	window := types.DownloadWindow{LatestOnly: true, StartTimestamp: 100, EndTimestamp: 200, MaxNum: 5}

	tests := []struct {
		req      Request
		function string
		args     []string
	}{
		{GetOrgRequest{OrgID: "org1"}, "getOrg", []string{"org1"}},
		{GetOrgsRequest{}, "getOrgs", []string{}},
		{GetUserRequest{UserID: "pat1"}, "getUser", []string{"pat1"}},
		{GetUsersRequest{OrgID: "org1", Role: types.RolePatient}, "getUsers", []string{"org1", "patient"}},
		{PutUserInOrgRequest{UserID: "u1", OrgID: "org1", IsAdmin: true}, "putUserInOrg", []string{"u1", "org1", "true"}},
		{RemoveUserFromOrgRequest{UserID: "u1", OrgID: "org1"}, "removeUserFromOrg", []string{"u1", "org1"}},
		{GetServiceRequest{ServiceID: "svc1"}, "getService", []string{"svc1"}},
		{GetServicesOfOrgRequest{OrgID: "org1"}, "getServicesOfOrg", []string{"org1"}},
		{RemoveDatatypeFromServiceRequest{ServiceID: "svc1", DatatypeID: "dt1"}, "removeDatatypeFromService", []string{"svc1", "dt1"}},
		{GetDatatypeRequest{DatatypeID: "dt1"}, "getDatatype", []string{"dt1"}},
		{GetAllDatatypesRequest{}, "getAllDatatypes", []string{}},
		{UnenrollPatientRequest{ServiceID: "svc1", UserID: "pat1"}, "unenrollPatient", []string{"svc1", "pat1"}},
		{GetPatientEnrollmentsRequest{UserID: "pat1", Status: "active"}, "getPatientEnrollments", []string{"pat1", "active"}},
		{GetServiceEnrollmentsRequest{ServiceID: "svc1", Status: "active"}, "getServiceEnrollments", []string{"svc1", "active"}},
		{GetConsentRequest{OwnerID: "pat1", TargetID: "svc2", DatatypeID: "dt1"}, "getConsent", []string{"pat1", "svc2", "dt1"}},
		{GetConsentsWithOwnerIDRequest{OwnerID: "pat1"}, "getConsentsWithOwnerID", []string{"pat1"}},
		{GetConsentsWithTargetIDRequest{TargetID: "svc2"}, "getConsentsWithTargetID", []string{"svc2"}},
		{
			ValidateConsentRequest{OwnerID: "pat1", TargetID: "svc2", DatatypeID: "dt1", Access: "read", Timestamp: 1700000000},
			"validateConsent", []string{"pat1", "svc2", "dt1", "read", "1700000000"},
		},
		{
			GetUserDataRequest{ServiceID: "svc1", UserID: "pat1", DatatypeID: "dt1", Window: window},
			"getUserData", []string{"svc1", "pat1", "dt1", "true", "100", "200", "5"},
		},
		{
			GetOwnerDataRequest{ServiceID: "svc1", DatatypeID: "dt1", Window: window},
			"getOwnerData", []string{"svc1", "dt1", "true", "100", "200", "5"},
		},
		{
			GetOwnerDataWithContractRequest{ContractID: "contract-1", DatatypeID: "dt1", Window: window},
			"getOwnerDataWithContract", []string{"contract-1", "dt1", "true", "100", "200", "5"},
		},
		{AddQueryTransactionLogRequest{TransactionLog: json.RawMessage(`{"a":1}`)}, "addQueryTransactionLog", []string{`{"a":1}`}},
		{GetContractRequest{ContractID: "contract-1"}, "getContract", []string{"contract-1"}},
		{GetContractsRequest{ServiceID: "svc1", Party: "owner"}, "getContracts", []string{"svc1", "owner"}},
		{
			AddContractDetailRequest{ContractID: "contract-1", Type: types.ContractDetailSign, Detail: map[string]string{"by": "svc2"}, Timestamp: 42},
			"addContractDetail", []string{"contract-1", "sign", `{"by":"svc2"}`, "42"},
		},
		{
			GivePermissionByContractRequest{ContractID: "contract-1", MaxNumDownload: 3, DatatypeID: "dt1", Timestamp: 42},
			"givePermissionByContract", []string{"contract-1", "3", "dt1", "42"},
		},
		{
			GetLogsRequest{Field: "owner", Value: "pat1", StartTime: 1, EndTime: 2, MaxNum: 10},
			"getLogs", []string{"owner", "pat1", "1", "2", "10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.function, func(t *testing.T) {
			fn, args, err := Encode(tt.req)

			// Assertions
			require.NoError(t, err)
			assert.Equal(t, tt.function, fn)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestEncodeStructuredPayloads(t *testing.T) {
	t.Run("registerOrg carries the allow-update flag second", func(t *testing.T) {
		fn, args, err := Encode(RegisterOrgRequest{Org: &types.Organization{ID: "org1", Role: types.RoleOrg}, AllowUpdate: false})
		require.NoError(t, err)

		assert.Equal(t, FnRegisterOrg, fn)
		require.Len(t, args, 2)
		assert.Equal(t, "false", args[1])

		var org types.Organization
		require.NoError(t, json.Unmarshal([]byte(args[0]), &org))
		assert.Equal(t, "org1", org.ID)
	})

	t.Run("consent function follows the payload convention", func(t *testing.T) {
		c := &types.Consent{OwnerID: "pat1", TargetID: "svc2", DatatypeID: "dt1", Option: []string{"read"}}

		patientFn, patientArgs, err := Encode(PutConsentRequest{Consent: c, KeyBase64: "a2V5"})
		require.NoError(t, err)
		ownerFn, _, err := Encode(PutConsentRequest{OwnerData: true, Consent: c, KeyBase64: "a2V5"})
		require.NoError(t, err)

		// Assertions
		assert.Equal(t, FnPutConsentPatientData, patientFn)
		assert.Equal(t, FnPutConsentOwnerData, ownerFn)
		assert.Equal(t, "a2V5", patientArgs[1])
		assert.JSONEq(t, `{"owner":"pat1","service":"","target":"svc2","datatype":"dt1","option":["read"],"expiration":0,"timestamp":0}`, patientArgs[0])
	})

	t.Run("enrollment carries the key second", func(t *testing.T) {
		_, args, err := Encode(EnrollPatientRequest{
			Enrollment: &types.Enrollment{UserID: "pat1", ServiceID: "svc1", Status: types.StatusActive},
			KeyBase64:  "a2V5",
		})
		require.NoError(t, err)

		assert.Equal(t, "a2V5", args[1])
		assert.Contains(t, args[0], `"user_id":"pat1"`)
	})

	t.Run("unencodable detail fails", func(t *testing.T) {
		_, _, err := Encode(AddContractDetailRequest{ContractID: "c", Detail: make(chan int)})
		assert.Error(t, err)
	})
}

func TestEveryFunctionHasAMessage(t *testing.T) {
	for fn := range messages {
		assert.NotEmpty(t, messages[fn], fn)
	}
	assert.Len(t, messages, 40)
}
