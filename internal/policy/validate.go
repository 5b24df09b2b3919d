package policy

import (
	"fmt"
	"strings"

	"github.com/ppiankov/rangerwatch/internal/store"
)

// Verdict is the outcome of validating one policy.
type Verdict struct {
	Severity store.Severity
	Clauses  []string
}

// Message joins the clauses into the status message body.
func (v Verdict) Message() string {
	return strings.Join(v.Clauses, ", ")
}

// condition is one reported flag. Every condition is always reported; it
// only raises severity when required and false.
type condition struct {
	label    string
	value    bool
	required bool
}

// Validate checks rec against the requested conditions. Severity starts at
// OK and only escalates. An id mismatch on a direct lookup is returned as an
// *InconsistencyError rather than a verdict.
func Validate(rec Record, c Criteria, cfg ValidationConfig) (Verdict, error) {
	if c.ID != "" && rec.ID != c.ID {
		return Verdict{}, &InconsistencyError{RequestedID: c.ID, ReturnedID: rec.ID}
	}

	v := Verdict{Severity: store.SeverityOK}

	header := fmt.Sprintf("policy id '%s' name '%s'", rec.ID, rec.Name)
	if c.Name != "" && c.Name != rec.Name {
		header += fmt.Sprintf(" (expected '%s')", c.Name)
		v.Severity = v.Severity.Escalate(store.SeverityCritical)
	}
	v.Clauses = append(v.Clauses, header)

	conditions := []condition{
		{label: "enabled", value: rec.Enabled, required: true},
		{label: "auditing", value: rec.AuditEnabled, required: cfg.RequireAudit},
		{label: "recursive", value: rec.Recursive, required: cfg.RequireRecursive},
	}
	for _, cond := range conditions {
		clause := cond.label + " = " + FormatBool(cond.value)
		if cond.required && !cond.value {
			clause += " (expected True)"
			v.Severity = v.Severity.Escalate(store.SeverityCritical)
		}
		v.Clauses = append(v.Clauses, clause)
	}
	return v, nil
}
