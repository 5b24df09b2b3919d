package cli

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/cobra"
)

const (
	defaultAlertFor   = 5 * time.Minute
	defaultStaleAfter = 10 * time.Minute
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Generate PrometheusRule YAML for rangerwatch alerts",
	Long: `Output a static PrometheusRule manifest with alert rules over the
metrics exported by "rangerwatch serve": failing checks, checks that cannot
be evaluated, disabled or unaudited policies, and a stalled check loop.

No Ranger connection required. The output is valid
monitoring.coreos.com/v1 PrometheusRule YAML suitable for kubectl apply.`,
	Example: `  # Default timings (5m for, 10m staleness)
  rangerwatch rules

  # Custom timings and metadata
  rangerwatch rules --for 15m --stale-after 30m --name ranger-alerts --namespace monitoring

  # Extra labels for PrometheusRule selection
  rangerwatch rules --labels 'prometheus=kube,role=alert-rules' | kubectl apply -f -`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.Flags().Duration("for", defaultAlertFor, "How long a check must fail before alerting")
	rulesCmd.Flags().Duration("stale-after", defaultStaleAfter, "Alert when no check cycle completed for this long")
	rulesCmd.Flags().String("name", "rangerwatch-alerts", "PrometheusRule metadata.name")
	rulesCmd.Flags().String("namespace", "", "PrometheusRule metadata.namespace")
	rulesCmd.Flags().String("labels", "", "Extra labels (comma-separated key=value pairs)")
}

type rulesData struct {
	Labels       map[string]string
	Name         string
	Namespace    string
	For          string
	StaleSeconds int64
}

func runRules(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")              //nolint:errcheck // flag registered above
	ns, _ := cmd.Flags().GetString("namespace")           //nolint:errcheck // flag registered above
	labelsStr, _ := cmd.Flags().GetString("labels")       //nolint:errcheck // flag registered above
	forDur, _ := cmd.Flags().GetDuration("for")           //nolint:errcheck // flag registered above
	staleDur, _ := cmd.Flags().GetDuration("stale-after") //nolint:errcheck // flag registered above

	if forDur <= 0 {
		return fmt.Errorf("--for must be positive, got %s", forDur)
	}
	if staleDur < time.Second {
		return fmt.Errorf("--stale-after must be at least 1s, got %s", staleDur)
	}

	labels, err := parseLabels(labelsStr)
	if err != nil {
		return err
	}

	data := rulesData{
		Name:         name,
		Namespace:    ns,
		Labels:       labels,
		For:          promDuration(forDur),
		StaleSeconds: int64(staleDur / time.Second),
	}

	tmpl, err := template.New("prometheusrule").Parse(prometheusRuleTemplate)
	if err != nil {
		return fmt.Errorf("parsing template: %w", err)
	}

	return tmpl.Execute(cmd.OutOrStdout(), data)
}

func parseLabels(s string) (map[string]string, error) {
	labels := make(map[string]string)
	if s == "" {
		return labels, nil
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid label %q: want key=value", pair)
		}
		labels[k] = strings.TrimSpace(v)
	}
	return labels, nil
}

// promDuration formats d in whole seconds the way Prometheus accepts it.
func promDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	switch {
	case secs%3600 == 0:
		return fmt.Sprintf("%dh", secs/3600)
	case secs%60 == 0:
		return fmt.Sprintf("%dm", secs/60)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

const prometheusRuleTemplate = `apiVersion: monitoring.coreos.com/v1
kind: PrometheusRule
metadata:
  name: {{ .Name }}
{{- if .Namespace }}
  namespace: {{ .Namespace }}
{{- end }}
  labels:
    app.kubernetes.io/name: rangerwatch
{{- range $k, $v := .Labels }}
    {{ $k }}: {{ $v }}
{{- end }}
spec:
  groups:
    - name: rangerwatch.rules
      rules:
        - alert: RangerPolicyCheckCritical
          expr: rangerwatch_check_status == 2
          for: {{ .For }}
          labels:
            severity: critical
          annotations:
            summary: "Ranger policy check failing: {{"{{"}} $labels.check {{"}}"}}"
            description: "Check {{"{{"}} $labels.check {{"}}"}} is CRITICAL: the policy is missing, disabled, not audited, not recursive, or Ranger is unreachable."
        - alert: RangerPolicyCheckUnknown
          expr: rangerwatch_check_status == 3
          for: {{ .For }}
          labels:
            severity: warning
          annotations:
            summary: "Ranger policy check cannot be evaluated: {{"{{"}} $labels.check {{"}}"}}"
            description: "Check {{"{{"}} $labels.check {{"}}"}} is UNKNOWN: Ranger returned an unexpected response."
        - alert: RangerPolicyDisabled
          expr: rangerwatch_policy_enabled == 0
          for: {{ .For }}
          labels:
            severity: critical
          annotations:
            summary: "Ranger policy disabled: {{"{{"}} $labels.policy {{"}}"}}"
            description: "Policy {{"{{"}} $labels.policy {{"}}"}} (id {{"{{"}} $labels.policy_id {{"}}"}}) watched by check {{"{{"}} $labels.check {{"}}"}} is disabled."
        - alert: RangerPolicyAuditDisabled
          expr: rangerwatch_policy_audit_enabled == 0
          for: {{ .For }}
          labels:
            severity: warning
          annotations:
            summary: "Ranger policy not audited: {{"{{"}} $labels.policy {{"}}"}}"
            description: "Policy {{"{{"}} $labels.policy {{"}}"}} (id {{"{{"}} $labels.policy_id {{"}}"}}) watched by check {{"{{"}} $labels.check {{"}}"}} has auditing turned off."
        - alert: RangerPolicyChanged
          expr: increase(rangerwatch_policy_changes_total[1h]) > 0
          for: 0m
          labels:
            severity: info
          annotations:
            summary: "Ranger policy changed: {{"{{"}} $labels.check {{"}}"}}"
            description: "Check {{"{{"}} $labels.check {{"}}"}} observed {{"{{"}} $labels.kind {{"}}"}} within the last hour."
        - alert: RangerwatchStale
          expr: time() - rangerwatch_last_cycle_timestamp_seconds > {{ .StaleSeconds }}
          for: 0m
          labels:
            severity: warning
          annotations:
            summary: "rangerwatch check loop stalled"
            description: "No rangerwatch check cycle has completed in the last {{ .StaleSeconds }}s."
`
