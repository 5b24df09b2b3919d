package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/rangerwatch/internal/history"
	"github.com/ppiankov/rangerwatch/internal/store"
)

func seededHistory(t *testing.T) *history.Store {
	t.Helper()
	hs, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { hs.Close() }) //nolint:errcheck // test cleanup

	at := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	snap := store.Snapshot{At: at, Results: []store.CheckResult{
		{At: at, Check: "hdfs-root", Severity: store.SeverityOK, Message: "Ranger policy id '1' ok",
			PolicyID: "1", Resolved: true, Enabled: true, Auditing: true},
		{At: at, Check: "missing", Severity: store.SeverityCritical, Message: "no matching policy found"},
	}}
	if err := hs.Save(snap); err != nil {
		t.Fatal(err)
	}
	return hs
}

func TestWriteHistory_Summaries(t *testing.T) {
	hs := seededHistory(t)
	buf := new(bytes.Buffer)
	if err := writeHistory(buf, hs, "", 10, "text"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"AT", "WORST", "2025-12-01T10:00:00Z", "CRITICAL"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteHistory_Trend(t *testing.T) {
	hs := seededHistory(t)

	buf := new(bytes.Buffer)
	if err := writeHistory(buf, hs, "hdfs-root", 10, "text"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "yes") || !strings.Contains(buf.String(), "Ranger policy id '1' ok") {
		t.Errorf("unexpected trend output:\n%s", buf.String())
	}

	buf.Reset()
	if err := writeHistory(buf, hs, "missing", 10, "text"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "-") {
		t.Errorf("unresolved check should render '-' flags:\n%s", buf.String())
	}
}

func TestWriteHistory_JSON(t *testing.T) {
	hs := seededHistory(t)
	buf := new(bytes.Buffer)
	if err := writeHistory(buf, hs, "", 10, "json"); err != nil {
		t.Fatal(err)
	}
	var summaries []history.SnapshotSummary
	if err := json.Unmarshal(buf.Bytes(), &summaries); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(summaries) != 1 || summaries[0].CritCount != 1 || summaries[0].OKCount != 1 {
		t.Errorf("unexpected summaries: %+v", summaries)
	}
}

func TestFlagCell(t *testing.T) {
	if got := flagCell(false, true); got != "-" {
		t.Errorf("unresolved = %q, want -", got)
	}
	if got := flagCell(true, true); got != "yes" {
		t.Errorf("true = %q, want yes", got)
	}
	if got := flagCell(true, false); got != "no" {
		t.Errorf("false = %q, want no", got)
	}
}
