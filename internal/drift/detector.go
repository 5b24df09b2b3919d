// Package drift detects policy changes between consecutive check cycles.
package drift

import (
	"fmt"
	"sort"

	"github.com/ppiankov/rangerwatch/internal/store"
)

// Change kinds.
const (
	KindPolicyFound      = "POLICY_FOUND"
	KindPolicyLost       = "POLICY_LOST"
	KindIDChanged        = "ID_CHANGED"
	KindEnabledChanged   = "ENABLED_CHANGED"
	KindAuditChanged     = "AUDIT_CHANGED"
	KindRecursiveChanged = "RECURSIVE_CHANGED"
)

// Change is one observed difference in a check's resolved policy.
type Change struct {
	Check    string         `json:"check"`
	Kind     string         `json:"kind"`
	Detail   string         `json:"detail"`
	Severity store.Severity `json:"severity"`
}

// policyState holds the fields compared for drift detection.
type policyState struct {
	id        string
	name      string
	enabled   bool
	auditing  bool
	recursive bool
}

// Detect compares the resolved policies of two snapshots, matched by check
// name. Checks present in only one snapshot are ignored; a check that stops
// resolving while still configured is reported as lost. Changes are sorted
// by check then kind.
func Detect(prev, curr store.Snapshot) []Change {
	prevMap := index(prev)
	currMap := index(curr)

	var changes []Change
	for check, cs := range currMap {
		ps, existed := prevMap[check]
		if !existed {
			continue
		}
		switch {
		case ps == nil && cs == nil:
			continue
		case ps == nil:
			changes = append(changes, Change{
				Check: check, Kind: KindPolicyFound, Severity: store.SeverityOK,
				Detail: fmt.Sprintf("policy id '%s' name '%s' resolved", cs.id, cs.name),
			})
			continue
		case cs == nil:
			changes = append(changes, Change{
				Check: check, Kind: KindPolicyLost, Severity: store.SeverityCritical,
				Detail: fmt.Sprintf("policy id '%s' name '%s' no longer resolves", ps.id, ps.name),
			})
			continue
		}

		if ps.id != cs.id {
			changes = append(changes, Change{
				Check: check, Kind: KindIDChanged, Severity: store.SeverityWarning,
				Detail: fmt.Sprintf("policy id changed from '%s' to '%s'", ps.id, cs.id),
			})
		}
		if ps.enabled != cs.enabled {
			changes = append(changes, flagChange(check, KindEnabledChanged, "enabled", ps.enabled, cs.enabled))
		}
		if ps.auditing != cs.auditing {
			changes = append(changes, flagChange(check, KindAuditChanged, "auditing", ps.auditing, cs.auditing))
		}
		if ps.recursive != cs.recursive {
			changes = append(changes, flagChange(check, KindRecursiveChanged, "recursive", ps.recursive, cs.recursive))
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Check != changes[j].Check {
			return changes[i].Check < changes[j].Check
		}
		return changes[i].Kind < changes[j].Kind
	})
	return changes
}

// flagChange reports a toggled policy flag. Turning a flag off is a warning.
func flagChange(check, kind, flag string, was, now bool) Change {
	sev := store.SeverityOK
	if was && !now {
		sev = store.SeverityWarning
	}
	return Change{
		Check:    check,
		Kind:     kind,
		Severity: sev,
		Detail:   fmt.Sprintf("%s changed from %t to %t", flag, was, now),
	}
}

// index maps check name to resolved policy state, nil when the check ran but
// did not resolve a policy. Transport failures are skipped; they say nothing
// about the policy.
func index(snap store.Snapshot) map[string]*policyState {
	m := make(map[string]*policyState, len(snap.Results))
	for i := range snap.Results {
		r := &snap.Results[i]
		if r.Unreachable {
			continue
		}
		if !r.Resolved {
			m[r.Check] = nil
			continue
		}
		m[r.Check] = &policyState{
			id:        r.PolicyID,
			name:      r.PolicyName,
			enabled:   r.Enabled,
			auditing:  r.Auditing,
			recursive: r.Recursive,
		}
	}
	return m
}
