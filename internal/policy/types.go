// Package policy resolves Ranger authorization policies from REST payloads
// and validates them against operational health conditions.
package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is a single authorization policy as returned by Ranger Admin.
type Record struct {
	ID             string
	Name           string
	RepositoryName string
	RepositoryType string
	Description    string
	Enabled        bool
	AuditEnabled   bool
	Recursive      bool

	// Raw is the record exactly as the service returned it.
	Raw json.RawMessage
}

// wireRecord mirrors the public v1 policy JSON. Pointers distinguish a
// missing field from a zero value.
type wireRecord struct {
	ID             json.RawMessage `json:"id"`
	PolicyName     *string         `json:"policyName"`
	IsEnabled      *bool           `json:"isEnabled"`
	IsAuditEnabled *bool           `json:"isAuditEnabled"`
	IsRecursive    *bool           `json:"isRecursive"`
	RepositoryName json.RawMessage `json:"repositoryName"`
	RepositoryType json.RawMessage `json:"repositoryType"`
	Description    json.RawMessage `json:"description"`
}

// UnmarshalJSON decodes a policy record, rejecting records that lack any
// of the fields the health check depends on.
func (r *Record) UnmarshalJSON(b []byte) error {
	rec, err := parseRecord(b)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// MarshalJSON re-emits the record as received.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	return json.Marshal(map[string]any{
		"id":             r.ID,
		"policyName":     r.Name,
		"repositoryName": r.RepositoryName,
		"repositoryType": r.RepositoryType,
		"description":    r.Description,
		"isEnabled":      r.Enabled,
		"isAuditEnabled": r.AuditEnabled,
		"isRecursive":    r.Recursive,
	})
}

func parseRecord(b []byte) (Record, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, fmt.Errorf("%w: policy is not a JSON object", ErrMalformedShape)
	}

	var w wireRecord
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedShape, err)
	}

	id, err := parseID(w.ID)
	if err != nil {
		return Record{}, err
	}

	switch {
	case w.PolicyName == nil:
		return Record{}, missingField("policyName")
	case w.IsEnabled == nil:
		return Record{}, missingField("isEnabled")
	case w.IsAuditEnabled == nil:
		return Record{}, missingField("isAuditEnabled")
	case w.IsRecursive == nil:
		return Record{}, missingField("isRecursive")
	}

	raw := make(json.RawMessage, len(trimmed))
	copy(raw, trimmed)

	return Record{
		ID:             id,
		Name:           *w.PolicyName,
		RepositoryName: displayString(w.RepositoryName),
		RepositoryType: displayString(w.RepositoryType),
		Description:    displayString(w.Description),
		Enabled:        *w.IsEnabled,
		AuditEnabled:   *w.IsAuditEnabled,
		Recursive:      *w.IsRecursive,
		Raw:            raw,
	}, nil
}

// parseID accepts a JSON string or number and returns it as an opaque token.
func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", missingField("id")
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: id: %v", ErrMalformedShape, err)
		}
		if s == "" {
			return "", missingField("id")
		}
		return s, nil
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("%w: id: %v", ErrMalformedShape, err)
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("%w: id must be a string or number, got %s", ErrMalformedShape, raw)
	}
}

// displayString renders an optional display field. Non-string values keep
// their JSON text.
func displayString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func missingField(name string) error {
	return fmt.Errorf("%w: policy record missing %q", ErrMalformedShape, name)
}

// FormatBool renders a boolean the way operators read it in plugin output.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
