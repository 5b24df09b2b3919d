package store

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSeverityEscalate(t *testing.T) {
	tests := []struct {
		cur, next, want Severity
	}{
		{SeverityOK, SeverityOK, SeverityOK},
		{SeverityOK, SeverityCritical, SeverityCritical},
		{SeverityCritical, SeverityOK, SeverityCritical},
		{SeverityWarning, SeverityCritical, SeverityCritical},
		{SeverityCritical, SeverityWarning, SeverityCritical},
		{SeverityCritical, SeverityUnknown, SeverityUnknown},
		{SeverityUnknown, SeverityCritical, SeverityUnknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.cur)+"->"+string(tt.next), func(t *testing.T) {
			if got := tt.cur.Escalate(tt.next); got != tt.want {
				t.Errorf("%s.Escalate(%s) = %s, want %s", tt.cur, tt.next, got, tt.want)
			}
		})
	}
}

func TestSeverityRank_UnrecognizedIsUnknown(t *testing.T) {
	if got := Severity("bogus").Rank(); got != SeverityUnknown.Rank() {
		t.Errorf("Rank(bogus) = %d, want %d", got, SeverityUnknown.Rank())
	}
}

func TestCheckSpecLabel(t *testing.T) {
	tests := []struct {
		spec CheckSpec
		want string
	}{
		{CheckSpec{Name: "hdfs-root", Policy: "p1"}, "hdfs-root"},
		{CheckSpec{Policy: "p1"}, "p1"},
		{CheckSpec{PolicyID: "7"}, "id:7"},
		{CheckSpec{}, "unnamed"},
	}
	for _, tt := range tests {
		if got := tt.spec.Label(); got != tt.want {
			t.Errorf("Label(%+v) = %q, want %q", tt.spec, got, tt.want)
		}
	}
}

func TestCheckResultJSON(t *testing.T) {
	r := CheckResult{
		At:         time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		Check:      "hdfs-root",
		Severity:   SeverityCritical,
		Message:    "Ranger policy id '1' name 'p1', enabled = False (expected True)",
		PolicyID:   "1",
		PolicyName: "p1",
		Resolved:   true,
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}

	var decoded CheckResult
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Severity != SeverityCritical {
		t.Errorf("severity = %s, want CRITICAL", decoded.Severity)
	}
	if decoded.PolicyID != "1" || decoded.PolicyName != "p1" {
		t.Errorf("policy = %s/%s, want 1/p1", decoded.PolicyID, decoded.PolicyName)
	}
	if !decoded.At.Equal(r.At) {
		t.Errorf("at = %v, want %v", decoded.At, r.At)
	}
}
