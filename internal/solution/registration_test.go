package solution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/dlt-consent/internal/ledger"
	"github.com/medrex/dlt-consent/pkg/types"
)

func TestOrgUpdate(t *testing.T) {
	f := setupService(t)
	f.seed(t)

	resp := f.exec(t, org1, OpUpdateOrg, map[string]interface{}{"id": "org1", "secret": "s1", "name": "Org Uno"})
	require.Equal(t, 200, resp.Status, resp.Message)
	assert.Equal(t, "org updated", resp.Message)

	calls := f.ledger.CallsTo(ledger.FnRegisterOrg)
	require.Len(t, calls, 2)
	assert.Equal(t, "true", calls[1].Args[1])

	resp = f.exec(t, org1, OpGetOrg, map[string]interface{}{"org_id": "org1"})
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "Org Uno", resp.Data.(*types.Organization).Name)

	resp = f.exec(t, org1, OpUpdateOrg, map[string]interface{}{"id": "org1", "secret": "guess"})
	assert.Equal(t, 400, resp.Status)
	assert.Equal(t, types.ErrCodeImmutableField, errorCode(t, resp))

	resp = f.exec(t, org1, OpUpdateOrg, map[string]interface{}{"id": "org9", "secret": "s1"})
	assert.Equal(t, 404, resp.Status)

	resp = f.exec(t, org1, OpGetOrgs, nil)
	require.Equal(t, 200, resp.Status)
	orgs := resp.Data.([]types.Organization)
	require.Len(t, orgs, 1)
	assert.Equal(t, "org1", orgs[0].ID)
	assert.Empty(t, orgs[0].Secret)
}

func TestUserLookup(t *testing.T) {
	f := setupService(t)
	f.seed(t)

	resp := f.exec(t, org1, OpGetUser, map[string]interface{}{"user_id": "pat1"})
	require.Equal(t, 200, resp.Status, resp.Message)
	user := resp.Data.(*types.User)
	assert.Equal(t, "pat1", user.ID)
	assert.Equal(t, "org1", user.Org)
	assert.Equal(t, "pub", user.PublicKey)
	assert.Empty(t, user.Secret)
	assert.Empty(t, user.PrivateKey)
	assert.Empty(t, user.SymKey)

	resp = f.exec(t, org1, OpGetUser, map[string]interface{}{"user_id": "nobody"})
	assert.Equal(t, 404, resp.Status)

	resp = f.exec(t, org1, OpGetUsers, map[string]interface{}{"org_id": "org1", "role": "patient"})
	require.Equal(t, 200, resp.Status)
	users := resp.Data.([]types.User)
	require.Len(t, users, 1)
	assert.Equal(t, "pat1", users[0].ID)
	assert.Empty(t, users[0].Secret)

	resp = f.exec(t, org1, OpGetUsers, map[string]interface{}{"org_id": "org1", "role": "org"})
	require.Equal(t, 200, resp.Status)
	assert.Empty(t, resp.Data.([]types.User))
}

func TestOrgMembership(t *testing.T) {
	f := setupService(t)
	f.seed(t)

	resp := f.exec(t, org1, OpPutUserInOrg, map[string]interface{}{"user_id": "pat1", "org_id": "org1"})
	require.Equal(t, 200, resp.Status, resp.Message)
	assert.Contains(t, f.ledger.Members("t:org1"), "t:pat1")

	resp = f.exec(t, org1, OpRemoveUserFromOrg, map[string]interface{}{"user_id": "pat1", "org_id": "org1"})
	require.Equal(t, 200, resp.Status, resp.Message)
	assert.NotContains(t, f.ledger.Members("t:org1"), "t:pat1")

	resp = f.exec(t, org1, OpPutUserInOrg, map[string]interface{}{"user_id": "pat1"})
	assert.Equal(t, 400, resp.Status)
}

func TestServiceManagement(t *testing.T) {
	f := setupService(t)
	f.seed(t)

	t.Run("lookup", func(t *testing.T) {
		resp := f.exec(t, org1, OpGetService, map[string]interface{}{"service_id": "svc1"})
		require.Equal(t, 200, resp.Status, resp.Message)
		svc := resp.Data.(*types.Service)
		assert.Equal(t, "Service One", svc.ServiceName)
		assert.Equal(t, "org1", svc.OrgID)
		assert.Equal(t, types.RoleService, svc.Role)
		assert.Empty(t, svc.Secret)

		resp = f.exec(t, org1, OpGetServicesOfOrg, map[string]interface{}{"org_id": "org1"})
		require.Equal(t, 200, resp.Status)
		services := resp.Data.([]types.Service)
		require.Len(t, services, 1)
		assert.Equal(t, "svc1", services[0].ServiceID)

		resp = f.exec(t, org1, OpGetService, map[string]interface{}{"service_id": "svc9"})
		assert.Equal(t, 404, resp.Status)
	})

	t.Run("update keeps the secret", func(t *testing.T) {
		resp := f.exec(t, org1, OpUpdateService, map[string]interface{}{"service_id": "svc1", "org_id": "org1", "secret": "svcs", "service_name": "Renamed"})
		require.Equal(t, 200, resp.Status, resp.Message)
		assert.Equal(t, "service updated", resp.Message)

		calls := f.ledger.CallsTo(ledger.FnUpdateService)
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].Args[0], `"secret":"svcs"`)

		resp = f.exec(t, org1, OpUpdateService, map[string]interface{}{"service_id": "svc1", "org_id": "org1", "secret": "nope"})
		assert.Equal(t, 400, resp.Status)
		assert.Equal(t, types.ErrCodeImmutableField, errorCode(t, resp))
	})

	t.Run("datatype bindings", func(t *testing.T) {
		resp := f.exec(t, org1, OpAddDatatypeToService, map[string]interface{}{"service_id": "svc1", "datatype_id": "dt1", "access": "write"})
		require.Equal(t, 200, resp.Status, resp.Message)

		resp = f.exec(t, org1, OpGetService, map[string]interface{}{"service_id": "svc1"})
		require.Equal(t, 200, resp.Status)
		assert.Equal(t, []types.ServiceDatatype{{DatatypeID: "dt1", Access: "write"}}, resp.Data.(*types.Service).Datatypes)

		resp = f.exec(t, org1, OpRemoveDatatypeFromService, map[string]interface{}{"service_id": "svc1", "datatype_id": "dt1"})
		require.Equal(t, 200, resp.Status, resp.Message)

		resp = f.exec(t, org1, OpGetService, map[string]interface{}{"service_id": "svc1"})
		assert.Empty(t, resp.Data.(*types.Service).Datatypes)

		resp = f.exec(t, org1, OpAddDatatypeToService, map[string]interface{}{"service_id": "svc1", "datatype_id": "dt1"})
		assert.Equal(t, 400, resp.Status)

		resp = f.exec(t, org1, OpAddDatatypeToService, map[string]interface{}{"service_id": "svc9", "datatype_id": "dt1", "access": "read"})
		assert.Equal(t, 500, resp.Status)
	})
}

func TestDatatypeUpdate(t *testing.T) {
	f := setupService(t)

	resp := f.exec(t, admin, OpUpdateDatatype, map[string]interface{}{"datatype_id": "dt1", "description": "pulse"})
	assert.Equal(t, 404, resp.Status)

	resp = f.exec(t, admin, OpRegisterDatatype, map[string]interface{}{"datatype_id": "dt1", "description": "heart rate"})
	require.Equal(t, 200, resp.Status)
	resp = f.exec(t, admin, OpUpdateDatatype, map[string]interface{}{"datatype_id": "dt1", "description": "pulse"})
	require.Equal(t, 200, resp.Status, resp.Message)

	resp = f.exec(t, admin, OpGetAllDatatypes, nil)
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, []types.Datatype{{DatatypeID: "dt1", Description: "pulse"}}, resp.Data.([]types.Datatype))
}

func TestUnenrollPatient(t *testing.T) {
	f := setupService(t)
	f.seed(t)

	resp := f.exec(t, svc1, OpEnrollPatient, map[string]interface{}{"user_id": "pat1", "service_id": "svc1"})
	require.Equal(t, 200, resp.Status, resp.Message)

	resp = f.exec(t, svc1, OpUnenrollPatient, map[string]interface{}{"user_id": "pat1", "service_id": "svc1"})
	require.Equal(t, 200, resp.Status, resp.Message)

	resp = f.exec(t, svc1, OpGetServiceEnrollments, map[string]interface{}{"service_id": "svc1"})
	require.Equal(t, 200, resp.Status)
	enrollments := resp.Data.([]types.Enrollment)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "pat1", enrollments[0].UserID)
	assert.Equal(t, types.StatusInactive, enrollments[0].Status)

	resp = f.exec(t, svc1, OpGetServiceEnrollments, map[string]interface{}{"service_id": "svc1", "status": types.StatusActive})
	require.Equal(t, 200, resp.Status)
	assert.Empty(t, resp.Data.([]types.Enrollment))

	resp = f.exec(t, svc1, OpUnenrollPatient, map[string]interface{}{"user_id": "pat2", "service_id": "svc1"})
	assert.Equal(t, 500, resp.Status)
}
