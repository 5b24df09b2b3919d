package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func executeRules(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd := rootCmd
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"rules"}, args...))
	err := cmd.Execute()

	// Flags persist on the shared command between tests.
	for _, name := range []string{"for", "stale-after", "name", "namespace", "labels"} {
		f := rulesCmd.Flags().Lookup(name)
		f.Value.Set(f.DefValue) //nolint:errcheck // restoring defaults
		f.Changed = false
	}
	return buf.String(), err
}

func TestRulesCommand_DefaultOutput(t *testing.T) {
	out, err := executeRules()
	if err != nil {
		t.Fatalf("rules command failed: %v", err)
	}

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}

	if parsed["apiVersion"] != "monitoring.coreos.com/v1" {
		t.Errorf("expected apiVersion monitoring.coreos.com/v1, got %v", parsed["apiVersion"])
	}
	if parsed["kind"] != "PrometheusRule" {
		t.Errorf("expected kind PrometheusRule, got %v", parsed["kind"])
	}

	meta, ok := parsed["metadata"].(map[string]any)
	if !ok {
		t.Fatal("metadata is not a map")
	}
	if meta["name"] != "rangerwatch-alerts" {
		t.Errorf("expected name rangerwatch-alerts, got %v", meta["name"])
	}
	if _, ok := meta["namespace"]; ok {
		t.Error("namespace should be omitted by default")
	}

	for _, alert := range []string{
		"RangerPolicyCheckCritical",
		"RangerPolicyCheckUnknown",
		"RangerPolicyDisabled",
		"RangerPolicyAuditDisabled",
		"RangerPolicyChanged",
		"RangerwatchStale",
	} {
		if !strings.Contains(out, alert) {
			t.Errorf("expected alert %q in output", alert)
		}
	}

	if !strings.Contains(out, "for: 5m") {
		t.Error("expected default for: 5m")
	}
	if !strings.Contains(out, "> 600") {
		t.Error("expected default staleness of 600s")
	}
	if !strings.Contains(out, "$labels.check") {
		t.Error("expected escaped Prometheus template variables in annotations")
	}
}

func TestRulesCommand_CustomTimings(t *testing.T) {
	out, err := executeRules("--for", "1h", "--stale-after", "30m")
	if err != nil {
		t.Fatalf("rules command failed: %v", err)
	}
	if !strings.Contains(out, "for: 1h") {
		t.Error("expected for: 1h")
	}
	if !strings.Contains(out, "> 1800") {
		t.Error("expected staleness of 1800s")
	}
}

func TestRulesCommand_CustomName(t *testing.T) {
	out, err := executeRules("--name", "my-custom-alerts", "--namespace", "monitoring")
	if err != nil {
		t.Fatalf("rules command failed: %v", err)
	}

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}

	meta, ok := parsed["metadata"].(map[string]any)
	if !ok {
		t.Fatal("metadata is not a map")
	}
	if meta["name"] != "my-custom-alerts" {
		t.Errorf("expected name my-custom-alerts, got %v", meta["name"])
	}
	if meta["namespace"] != "monitoring" {
		t.Errorf("expected namespace monitoring, got %v", meta["namespace"])
	}
}

func TestRulesCommand_Labels(t *testing.T) {
	out, err := executeRules("--labels", "prometheus=kube,role=alert-rules")
	if err != nil {
		t.Fatalf("rules command failed: %v", err)
	}
	if !strings.Contains(out, "prometheus: kube") {
		t.Error("expected label 'prometheus: kube' in output")
	}
	if !strings.Contains(out, "role: alert-rules") {
		t.Error("expected label 'role: alert-rules' in output")
	}
}

func TestParseLabels_Invalid(t *testing.T) {
	if _, err := parseLabels("novalue"); err == nil {
		t.Error("expected error for label without '='")
	}
	if _, err := parseLabels("=x"); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestPromDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Minute, "5m"},
		{2 * time.Hour, "2h"},
		{90 * time.Second, "90s"},
		{1500 * time.Millisecond, "1s"},
	}
	for _, tt := range tests {
		if got := promDuration(tt.d); got != tt.want {
			t.Errorf("promDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
