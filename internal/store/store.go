package store

import "time"

// Severity is the monitoring-plugin outcome of a single check execution.
type Severity string

const (
	SeverityOK       Severity = "OK"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
	SeverityUnknown  Severity = "UNKNOWN"
)

// Rank orders severities for escalation. Unrecognized values rank as unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityOK:
		return 0
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 3
	}
}

// Escalate returns the more severe of s and next. It never downgrades.
func (s Severity) Escalate(next Severity) Severity {
	if next.Rank() > s.Rank() {
		return next
	}
	return s
}

// CheckSpec names one policy check: which policy to look for and which
// conditions it must satisfy.
type CheckSpec struct {
	Name      string `yaml:"name" json:"name"`                                 // label used in metrics, history, notifications
	PolicyID  string `yaml:"policyId,omitempty" json:"policyId,omitempty"`     // direct lookup
	Policy    string `yaml:"policyName,omitempty" json:"policyName,omitempty"` // search by name
	NoAudit   bool   `yaml:"noAudit,omitempty" json:"noAudit,omitempty"`
	Recursive bool   `yaml:"recursive,omitempty" json:"recursive,omitempty"`
}

// Label returns the check name, falling back to the policy name or id.
func (c CheckSpec) Label() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Policy != "":
		return c.Policy
	case c.PolicyID != "":
		return "id:" + c.PolicyID
	default:
		return "unnamed"
	}
}

// CheckResult is the outcome of one check run.
type CheckResult struct {
	At          time.Time     `json:"at"`
	Check       string        `json:"check"`
	Severity    Severity      `json:"severity"`
	Message     string        `json:"message"`
	PolicyID    string        `json:"policyId,omitempty"`
	PolicyName  string        `json:"policyName,omitempty"`
	Enabled     bool          `json:"enabled"`
	Auditing    bool          `json:"auditing"`
	Recursive   bool          `json:"recursive"`
	Resolved    bool          `json:"resolved"`              // a policy record was found and validated
	Unreachable bool          `json:"unreachable,omitempty"` // Ranger could not be queried
	Remediation string        `json:"remediation,omitempty"`
	Lines       []string      `json:"lines,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Snapshot is the set of check results from one serve cycle.
type Snapshot struct {
	At      time.Time     `json:"at"`
	Results []CheckResult `json:"results"`
}
