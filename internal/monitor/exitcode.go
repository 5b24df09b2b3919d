// Package monitor provides status output, exit-code logic and the policy
// browser TUI for rangerwatch.
package monitor

import (
	"fmt"

	"github.com/ppiankov/rangerwatch/internal/store"
)

// ExitCode returns the monitoring-plugin exit code for a severity.
//
//	0 = OK
//	1 = WARNING
//	2 = CRITICAL
//	3 = UNKNOWN (including listing mode and internal errors)
func ExitCode(sev store.Severity) int {
	switch sev {
	case store.SeverityOK:
		return 0
	case store.SeverityWarning:
		return 1
	case store.SeverityCritical:
		return 2
	default:
		return 3
	}
}

// Worst returns the most severe result severity in a snapshot, OK if empty.
func Worst(snap store.Snapshot) store.Severity {
	sev := store.SeverityOK
	for i := range snap.Results {
		sev = sev.Escalate(snap.Results[i].Severity)
	}
	return sev
}

// StatusLine renders the single line a monitoring supervisor reads.
func StatusLine(res store.CheckResult) string {
	return fmt.Sprintf("%s: %s", res.Severity, res.Message)
}
