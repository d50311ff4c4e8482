package solution

// Operation is one entry of the closed operation catalog
type Operation int

const (
	OpRegisterOrg Operation = iota
	OpUpdateOrg
	OpGetOrg
	OpGetOrgs
	OpRegisterUser
	OpUpdateUser
	OpGetUser
	OpGetUsers
	OpPutUserInOrg
	OpRemoveUserFromOrg
	OpRegisterService
	OpUpdateService
	OpGetService
	OpGetServicesOfOrg
	OpAddDatatypeToService
	OpRemoveDatatypeFromService
	OpRegisterDatatype
	OpUpdateDatatype
	OpGetDatatype
	OpGetAllDatatypes
	OpEnrollPatient
	OpUnenrollPatient
	OpGetPatientEnrollments
	OpGetServiceEnrollments
	OpRegisterEnrollAndConsent
	OpPutConsentPatientData
	OpPutMultiConsentPatientData
	OpPutConsentOwnerData
	OpPutMultiConsentOwnerData
	OpGetConsent
	OpGetConsentsWithOwnerID
	OpGetConsentsWithTargetID
	OpValidateConsent
	OpUploadUserData
	OpUploadOwnerData
	OpDownloadUserData
	OpDownloadOwnerData
	OpDownloadOwnerDataAsRequester
	OpCreateContract
	OpGetContract
	OpGetContracts
	OpChangeContractTerms
	OpSignContract
	OpPayContract
	OpVerifyContractPayment
	OpTerminateContract
	OpGivePermissionByContract
	OpGetTransactionLogs

	opCount
)

// operationNames is the wire name of every operation, indexed by Operation
var operationNames = [opCount]string{
	OpRegisterOrg:                  "registerOrg",
	OpUpdateOrg:                    "updateOrg",
	OpGetOrg:                       "getOrg",
	OpGetOrgs:                      "getOrgs",
	OpRegisterUser:                 "registerUser",
	OpUpdateUser:                   "updateUser",
	OpGetUser:                      "getUser",
	OpGetUsers:                     "getUsers",
	OpPutUserInOrg:                 "putUserInOrg",
	OpRemoveUserFromOrg:            "removeUserFromOrg",
	OpRegisterService:              "registerService",
	OpUpdateService:                "updateService",
	OpGetService:                   "getService",
	OpGetServicesOfOrg:             "getServicesOfOrg",
	OpAddDatatypeToService:         "addDatatypeToService",
	OpRemoveDatatypeFromService:    "removeDatatypeFromService",
	OpRegisterDatatype:             "registerDatatype",
	OpUpdateDatatype:               "updateDatatype",
	OpGetDatatype:                  "getDatatype",
	OpGetAllDatatypes:              "getAllDatatypes",
	OpEnrollPatient:                "enrollPatient",
	OpUnenrollPatient:              "unenrollPatient",
	OpGetPatientEnrollments:        "getPatientEnrollments",
	OpGetServiceEnrollments:        "getServiceEnrollments",
	OpRegisterEnrollAndConsent:     "registerEnrollAndConsent",
	OpPutConsentPatientData:        "putConsentPatientData",
	OpPutMultiConsentPatientData:   "putMultiConsentPatientData",
	OpPutConsentOwnerData:          "putConsentOwnerData",
	OpPutMultiConsentOwnerData:     "putMultiConsentOwnerData",
	OpGetConsent:                   "getConsent",
	OpGetConsentsWithOwnerID:       "getConsentsWithOwnerID",
	OpGetConsentsWithTargetID:      "getConsentsWithTargetID",
	OpValidateConsent:              "validateConsent",
	OpUploadUserData:               "uploadUserData",
	OpUploadOwnerData:              "uploadOwnerData",
	OpDownloadUserData:             "downloadUserData",
	OpDownloadOwnerData:            "downloadOwnerData",
	OpDownloadOwnerDataAsRequester: "downloadOwnerDataAsRequester",
	OpCreateContract:               "createContract",
	OpGetContract:                  "getContract",
	OpGetContracts:                 "getContracts",
	OpChangeContractTerms:          "changeContractTerms",
	OpSignContract:                 "signContract",
	OpPayContract:                  "payContract",
	OpVerifyContractPayment:        "verifyContractPayment",
	OpTerminateContract:            "terminateContract",
	OpGivePermissionByContract:     "givePermissionByContract",
	OpGetTransactionLogs:           "getTransactionLogs",
}

var operationsByName = func() map[string]Operation {
	m := make(map[string]Operation, opCount)
	for op, name := range operationNames {
		m[name] = Operation(op)
	}
	return m
}()

func (o Operation) String() string {
	if o < 0 || o >= opCount {
		return "unknown"
	}
	return operationNames[o]
}

// ParseOperation looks up an operation by its exact wire name
func ParseOperation(name string) (Operation, bool) {
	op, ok := operationsByName[name]
	return op, ok
}

// Operations returns the whole catalog in declaration order
func Operations() []Operation {
	ops := make([]Operation, opCount)
	for i := range ops {
		ops[i] = Operation(i)
	}
	return ops
}
