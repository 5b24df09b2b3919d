// Package remediation maps failed check results to actionable fix suggestions.
package remediation

import (
	"strings"

	"github.com/ppiankov/rangerwatch/internal/store"
)

// Lookup returns a remediation string for the given result, or empty if none applies.
func Lookup(r *store.CheckResult) string {
	if r.Severity == store.SeverityOK || len(r.Lines) > 0 {
		return ""
	}

	if r.Unreachable {
		return "Ranger Admin could not be queried. Check that the service is running, " +
			"the host, port and TLS settings are correct, and the credentials are valid."
	}

	if !r.Resolved {
		switch r.Severity {
		case store.SeverityCritical:
			return "No policy matched. Verify the policy name or id against " +
				"`rangerwatch policies`; the policy may have been deleted or renamed."
		case store.SeverityUnknown:
			if !strings.Contains(r.Message, "unexpected response") {
				return ""
			}
			return "Ranger returned a response rangerwatch could not interpret. " +
				"Confirm the host points at Ranger Admin and that the user may read policies."
		}
		return ""
	}

	// Failed clauses are checked in the order the status line reports them.
	switch {
	case strings.Contains(r.Message, "(expected '"):
		return "The policy with this id has a different name. Update the check's " +
			"policyName or policyId so both refer to the same policy."
	case !r.Enabled:
		return "Enable the policy in Ranger Admin (Access Manager, edit policy, Policy Status)."
	case !r.Auditing && strings.Contains(r.Message, "auditing = False (expected"):
		return "Turn on Audit Logging for the policy in Ranger Admin, or set noAudit on the check if auditing is not required."
	case !r.Recursive && strings.Contains(r.Message, "recursive = False (expected"):
		return "Mark the policy resources as recursive in Ranger Admin, or drop the recursive requirement from the check."
	}
	return ""
}

// Apply populates the Remediation field on all results in the slice.
func Apply(results []store.CheckResult) {
	for i := range results {
		if results[i].Remediation == "" {
			results[i].Remediation = Lookup(&results[i])
		}
	}
}
