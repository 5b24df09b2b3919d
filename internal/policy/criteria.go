package policy

import "strings"

// Criteria identifies the policy to check. ID takes precedence for the
// lookup; Name is then only cross-checked against the returned record.
type Criteria struct {
	ID   string
	Name string
}

// NewCriteria trims the inputs so ids compare as normalized strings.
func NewCriteria(id, name string) Criteria {
	return Criteria{ID: strings.TrimSpace(id), Name: name}
}

// Validate requires a name or an id unless the request only lists policies.
func (c Criteria) Validate(listing bool) error {
	if listing {
		return nil
	}
	if c.ID == "" && c.Name == "" {
		return ErrNoCriteria
	}
	return nil
}

// ValidationConfig selects which optional conditions are required.
type ValidationConfig struct {
	RequireAudit     bool
	RequireRecursive bool
}

// DefaultValidationConfig requires auditing and does not require recursion.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{RequireAudit: true}
}
