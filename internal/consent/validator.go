package consent

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/medrex/dlt-consent/pkg/types"
)

// FieldMap names the payload keys a consent input is read from
type FieldMap struct {
	Owner      string
	Service    string
	Target     string
	Datatype   string
	Option     string
	Expiration string
}

// PatientFields is the key layout of patient-centric consent payloads
var PatientFields = FieldMap{
	Owner:      "patient_id",
	Service:    "service_id",
	Target:     "target_id",
	Datatype:   "datatype_id",
	Option:     "option",
	Expiration: "expiration",
}

// OwnerFields is the key layout of owner-centric consent payloads
var OwnerFields = FieldMap{
	Owner:      "owner_id",
	Service:    "service_id",
	Target:     "target_id",
	Datatype:   "datatype_id",
	Option:     "option",
	Expiration: "expiration",
}

// Validator checks consent inputs and turns them into ledger records
type Validator struct {
	fields FieldMap
	now    func() time.Time
}

// NewValidator creates a validator reading the given key layout
func NewValidator(fields FieldMap) *Validator {
	return &Validator{fields: fields, now: time.Now}
}

// Validate checks the structure of a single consent input without building it
func (v *Validator) Validate(in map[string]interface{}) error {
	_, err := v.Build(in)
	return err
}

// ValidateAll checks every input of a batch. The first invalid input fails the batch
// and its index is added to the error details.
func (v *Validator) ValidateAll(inputs []map[string]interface{}) error {
	for i, in := range inputs {
		if err := v.Validate(in); err != nil {
			var merr *types.MedrexError
			if errors.As(err, &merr) && merr.Details != nil {
				merr.Details["index"] = i
			}
			return err
		}
	}
	return nil
}

// Build validates a consent input and returns the normalized record, timestamped now
func (v *Validator) Build(in map[string]interface{}) (*types.Consent, error) {
	c := &types.Consent{}

	required := []struct {
		key string
		dst *string
	}{
		{v.fields.Owner, &c.OwnerID},
		{v.fields.Service, &c.ServiceID},
		{v.fields.Target, &c.TargetID},
		{v.fields.Datatype, &c.DatatypeID},
	}
	for _, r := range required {
		s, ok := in[r.key].(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, invalid(r.key, fmt.Sprintf("%s is missing", r.key))
		}
		*r.dst = s
	}

	options, err := v.options(in[v.fields.Option])
	if err != nil {
		return nil, err
	}
	c.Option = options

	exp, err := NormalizeExpiration(in[v.fields.Expiration])
	if err != nil {
		return nil, invalid(v.fields.Expiration, err.Error())
	}
	c.Expiration = exp
	c.Timestamp = v.now().Unix()

	return c, nil
}

func (v *Validator) options(raw interface{}) ([]string, error) {
	key := v.fields.Option

	var values []string
	switch opt := raw.(type) {
	case string:
		values = []string{opt}
	case []string:
		values = opt
	case []interface{}:
		for _, o := range opt {
			s, ok := o.(string)
			if !ok {
				return nil, invalid(key, "option entries must be strings")
			}
			values = append(values, s)
		}
	case nil:
		return nil, invalid(key, "option is missing")
	default:
		return nil, invalid(key, "option must be a list")
	}

	seen := make(map[string]bool, len(values))
	set := make([]string, 0, len(values))
	for _, o := range values {
		switch o {
		case types.OptionRead, types.OptionWrite, types.OptionDeny:
		default:
			return nil, invalid(key, fmt.Sprintf("invalid option %q", o))
		}
		if !seen[o] {
			seen[o] = true
			set = append(set, o)
		}
	}

	if len(set) < 1 || len(set) > 2 {
		return nil, invalid(key, "option must have 1 or 2 entries")
	}

	if seen[types.OptionDeny] && (seen[types.OptionRead] || seen[types.OptionWrite]) {
		return nil, invalid(key, "deny can not be combined with read or write")
	}

	return set, nil
}

func invalid(field, message string) *types.MedrexError {
	return types.NewValidationError(types.ErrCodeValidationFailed, message, map[string]interface{}{"field": field})
}

// Layouts accepted for date expirations, tried in order
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// NormalizeExpiration converts an expiration input into unix seconds.
// Empty or falsy input means no expiry (0); an all-digit string is taken as unix seconds;
// any other string is parsed as a date.
func NormalizeExpiration(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case bool:
		if !v {
			return 0, nil
		}
		return 0, fmt.Errorf("invalid expiration")
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which no int64 holds
		if v != math.Trunc(v) || v < 0 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("invalid expiration %v", v)
		}
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case json.Number:
		return normalizeString(v.String())
	case string:
		return normalizeString(v)
	}
	return 0, fmt.Errorf("invalid expiration type %T", raw)
}

func normalizeString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	if strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Unix(), nil
			}
		}
		return 0, fmt.Errorf("invalid expiration date %q", s)
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid expiration %q", s)
	}
	return n, nil
}
