package cli

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rangerwatch/internal/policy"
	"github.com/ppiankov/rangerwatch/internal/store"
)

type slowRunner struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (r *slowRunner) Run(_ context.Context, spec store.CheckSpec, _ bool) (store.CheckResult, policy.Outcome) {
	n := r.inFlight.Add(1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	r.inFlight.Add(-1)

	sev := store.SeverityOK
	if spec.Policy == "bad" {
		sev = store.SeverityCritical
	}
	return store.CheckResult{Check: spec.Label(), Severity: sev}, policy.Outcome{}
}

func TestRunCycle_OrderAndLimit(t *testing.T) {
	checks := []store.CheckSpec{
		{Name: "a", Policy: "p"},
		{Name: "b", Policy: "bad"},
		{Name: "c", Policy: "p"},
		{Name: "d", Policy: "p"},
		{Name: "e", Policy: "p"},
	}
	r := &slowRunner{}

	snap := runCycle(context.Background(), r, checks, 2)

	if len(snap.Results) != len(checks) {
		t.Fatalf("results = %d, want %d", len(snap.Results), len(checks))
	}
	for i, res := range snap.Results {
		if res.Check != checks[i].Name {
			t.Errorf("results[%d] = %q, want %q", i, res.Check, checks[i].Name)
		}
	}
	if snap.Results[1].Severity != store.SeverityCritical {
		t.Errorf("results[1] severity = %s, want CRITICAL", snap.Results[1].Severity)
	}
	if peak := r.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	if snap.At.IsZero() {
		t.Error("snapshot time not set")
	}
}

func TestServeConfigPath(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(existing, []byte("checks: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{"existing file", existing, existing, false},
		{"missing explicit path", filepath.Join(t.TempDir(), "nope.yaml"), "", true},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "serve"}
			cmd.Flags().String("config", defaultConfigPath, "")
			if err := cmd.Flags().Set("config", tt.value); err != nil {
				t.Fatal(err)
			}
			got, err := serveConfigPath(cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("path = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServeConfigPath_MissingDefault(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("default config exists on this host")
	}
	cmd := &cobra.Command{Use: "serve"}
	cmd.Flags().String("config", defaultConfigPath, "")

	got, err := serveConfigPath(cmd)
	if err != nil {
		t.Fatalf("missing default config should not be an error: %v", err)
	}
	if got != "" {
		t.Errorf("path = %q, want empty", got)
	}
}

func TestRunTicker_WaitsForRunningCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	var finished atomic.Bool

	done := runTicker(ctx, 5*time.Millisecond, func() {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle never ran")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after cancel")
	}
	if !finished.Load() {
		t.Error("loop reported done while a cycle was still running")
	}
}
