// Package web provides HTTP handlers for the rangerwatch status page and API.
package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/ppiankov/rangerwatch/internal/policy"
	"github.com/ppiankov/rangerwatch/internal/store"
)

//go:embed templates/results.html
var templateFS embed.FS

var resultsTmpl = template.Must(template.ParseFS(templateFS, "templates/results.html"))

// SnapshotFunc returns the current snapshot.
type SnapshotFunc func() store.Snapshot

// UIHandler serves the check status page, worst outcomes first.
func UIHandler(getSnapshot SnapshotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := getSnapshot()

		results := make([]store.CheckResult, len(snap.Results))
		copy(results, snap.Results)
		sort.SliceStable(results, func(i, j int) bool {
			ri, rj := results[i].Severity.Rank(), results[j].Severity.Rank()
			if ri != rj {
				return ri > rj
			}
			return results[i].Check < results[j].Check
		})

		data := pageData{Rows: make([]resultRow, 0, len(results))}
		if !snap.At.IsZero() {
			data.RunTime = snap.At.Format(time.RFC3339)
		} else {
			data.RunTime = "never"
		}
		for i := range results {
			r := &results[i]
			switch r.Severity {
			case store.SeverityOK:
				data.OKCount++
			case store.SeverityWarning:
				data.WarnCount++
			case store.SeverityCritical:
				data.CriticalCount++
			default:
				data.UnknownCount++
			}
			data.Rows = append(data.Rows, resultRow{
				Severity:  string(r.Severity),
				Check:     r.Check,
				Policy:    formatPolicy(r),
				Enabled:   policy.FormatBool(r.Enabled),
				Auditing:  policy.FormatBool(r.Auditing),
				Recursive: policy.FormatBool(r.Recursive),
				Resolved:  r.Resolved,
				Message:   r.Message,
				Fix:       r.Remediation,
			})
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := resultsTmpl.Execute(w, data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// ResultsHandler returns the current snapshot as JSON.
func ResultsHandler(getSnapshot SnapshotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := getSnapshot()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HealthzHandler returns 200 "ok" while check cycles keep completing. It
// returns 503 before the first cycle, and once the last cycle is older than
// maxAge. A zero maxAge disables the staleness check.
func HealthzHandler(getSnapshot SnapshotFunc, maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := getSnapshot()
		w.Header().Set("Content-Type", "text/plain")
		if snap.At.IsZero() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("no check cycle completed yet")) //nolint:errcheck // best-effort response
			return
		}
		if maxAge > 0 {
			if age := time.Since(snap.At); age > maxAge {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("stale: last check cycle " + age.Truncate(time.Second).String() + " ago")) //nolint:errcheck // best-effort response
				return
			}
		}
		w.Write([]byte("ok")) //nolint:errcheck // best-effort response
	}
}

type pageData struct {
	RunTime       string
	Rows          []resultRow
	OKCount       int
	WarnCount     int
	CriticalCount int
	UnknownCount  int
}

type resultRow struct {
	Severity  string
	Check     string
	Policy    string
	Enabled   string
	Auditing  string
	Recursive string
	Message   string
	Fix       string
	Resolved  bool
}

func formatPolicy(r *store.CheckResult) string {
	switch {
	case r.PolicyName != "" && r.PolicyID != "":
		return r.PolicyName + " (" + r.PolicyID + ")"
	case r.PolicyName != "":
		return r.PolicyName
	default:
		return r.PolicyID
	}
}
