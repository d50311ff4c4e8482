package types

import "encoding/json"

// Role represents the fixed set of identity roles known to the ledger
type Role string

const (
	RoleSystem  Role = "system"
	RoleAuditor Role = "auditor"
	RoleOrg     Role = "org"
	RoleService Role = "service"
	RolePatient Role = "patient"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleAuditor, RoleOrg, RoleService, RolePatient:
		return true
	}
	return false
}

// Caller is the identity an operation is executed as, derived from transport headers
type Caller struct {
	ID      string `json:"id"`
	Secret  string `json:"-"`
	Org     string `json:"org"`
	Channel string `json:"channel"`
}

// Organization represents a registered organization
type Organization struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Role                Role            `json:"role"`
	Secret              string          `json:"secret,omitempty"`
	Email               string          `json:"email"`
	Status              string          `json:"status"`
	SolutionPrivateData json.RawMessage `json:"solution_private_data,omitempty"`
}

// Tokenizable returns the fields replaced by tokens before the record reaches the ledger
func (o *Organization) Tokenizable() []*string {
	return []*string{&o.ID, &o.Name}
}

// User represents an identity registered with both the CA and the ledger
type User struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Role                Role            `json:"role"`
	Org                 string          `json:"org"`
	Email               string          `json:"email"`
	IsGroup             bool            `json:"is_group"`
	Status              string          `json:"status"`
	Secret              string          `json:"secret,omitempty"`
	PublicKey           string          `json:"public_key,omitempty"`
	PrivateKey          string          `json:"private_key,omitempty"`
	SymKey              string          `json:"sym_key,omitempty"`
	SolutionPrivateData json.RawMessage `json:"solution_private_data,omitempty"`
}

// Tokenizable returns the fields replaced by tokens before the record reaches the ledger
func (u *User) Tokenizable() []*string {
	return []*string{&u.ID, &u.Name, &u.Org}
}

// Attribute is a single name/value pair returned by the identity issuer
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// IdentityRequest carries the parameters of an identity registration
type IdentityRequest struct {
	ID           string `json:"id"`
	Secret       string `json:"secret"`
	Role         Role   `json:"role"`
	Org          string `json:"org"`
	VerifyKey    string `json:"verify_key,omitempty"`
	PrivateKey   string `json:"private_key,omitempty"`
	PublicKey    string `json:"public_key,omitempty"`
	SymKey       string `json:"sym_key,omitempty"`
	FailIfExists bool   `json:"fail_if_exists"`
}

// Identity attribute names returned by the issuer
const (
	AttrPrivateKey = "prvkey"
	AttrPublicKey  = "pubkey"
	AttrSymKey     = "symkey"
)

// SymmetricKey is a freshly generated key from the key service
type SymmetricKey struct {
	KeyBase64 string `json:"keyBase64"`
}
