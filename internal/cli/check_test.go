package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ppiankov/rangerwatch/internal/history"
	"github.com/ppiankov/rangerwatch/internal/monitor"
	"github.com/ppiankov/rangerwatch/internal/ranger"
)

const rangerList = `{"vXPolicies":[
	{"id":1,"policyName":"hdfs root","repositoryName":"hadoopdev","repositoryType":"hdfs","isEnabled":true,"isAuditEnabled":true,"isRecursive":false},
	{"id":2,"policyName":"hive off","repositoryName":"hivedev","repositoryType":"hive","isEnabled":false,"isAuditEnabled":true,"isRecursive":true}
]}`

func newRangerServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ranger.PolicyPath:
			w.Write([]byte(rangerList)) //nolint:errcheck // test server
		case ranger.PolicyPath + "/1":
			w.Write([]byte(`{"id":1,"policyName":"hdfs root","isEnabled":true,"isAuditEnabled":true,"isRecursive":false}`)) //nolint:errcheck // test server
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func hostPort(t *testing.T, srv *httptest.Server) (string, string) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return u.Hostname(), u.Port()
}

func newCheckCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "check"}
	addCheckFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parsing flags %v: %v", args, err)
	}
	return cmd
}

func noEnv(string) string { return "" }

func runCheckArgs(t *testing.T, getenv func(string) string, args ...string) (string, int) {
	t.Helper()
	cmd := newCheckCommand(t, args...)
	buf := new(bytes.Buffer)
	code := executeCheck(cmd, buf, getenv)
	return buf.String(), code
}

func TestExecuteCheck(t *testing.T) {
	srv := newRangerServer(t)
	host, port := hostPort(t, srv)
	conn := []string{"-H", host, "-P", port}

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{
			name:     "ok by name",
			args:     []string{"-o", "hdfs root"},
			wantCode: 0,
			wantOut:  "OK: Ranger policy id '1' name 'hdfs root', enabled = True, auditing = True, recursive = False\n",
		},
		{
			name:     "disabled policy",
			args:     []string{"-o", "hive off"},
			wantCode: 2,
			wantOut:  "CRITICAL: Ranger policy id '2' name 'hive off', enabled = False (expected True), auditing = True, recursive = True\n",
		},
		{
			name:     "recursion required",
			args:     []string{"-o", "hdfs root", "-r"},
			wantCode: 2,
			wantOut:  "recursive = False (expected True)",
		},
		{
			name:     "not found",
			args:     []string{"-o", "nope"},
			wantCode: 2,
			wantOut:  "CRITICAL: no matching policy found with name 'nope' in policy list returned by Ranger\n",
		},
		{
			name:     "by id",
			args:     []string{"-i", "1"},
			wantCode: 0,
			wantOut:  "OK: Ranger policy id '1' name 'hdfs root'",
		},
		{
			name:     "no criteria",
			args:     nil,
			wantCode: 3,
			wantOut:  "UNKNOWN: policy name or id must be given",
		},
		{
			name:     "listing",
			args:     []string{"-l"},
			wantCode: 3,
			wantOut:  "hdfs root",
		},
		{
			name:     "invalid output",
			args:     []string{"-o", "hdfs root", "--output", "xml"},
			wantCode: 3,
			wantOut:  "UNKNOWN: invalid --output value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, code := runCheckArgs(t, noEnv, append(conn, tt.args...)...)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (output %q)", code, tt.wantCode, out)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("output = %q, want it to contain %q", out, tt.wantOut)
			}
		})
	}
}

func TestExecuteCheck_NoHost(t *testing.T) {
	out, code := runCheckArgs(t, noEnv, "-o", "hdfs root")
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if !strings.HasPrefix(out, "UNKNOWN: ranger host not set") {
		t.Errorf("output = %q", out)
	}
}

func TestExecuteCheck_HostFromEnv(t *testing.T) {
	srv := newRangerServer(t)
	host, port := hostPort(t, srv)
	env := map[string]string{"RANGER_HOST": host, "RANGER_PORT": port}

	out, code := runCheckArgs(t, func(k string) string { return env[k] }, "-o", "hdfs root")
	if code != 0 {
		t.Errorf("exit code = %d, want 0 (output %q)", code, out)
	}
}

func TestExecuteCheck_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	host, port := hostPort(t, srv)

	out, code := runCheckArgs(t, noEnv, "-H", host, "-P", port, "-o", "hdfs root")
	if code != 2 {
		t.Errorf("exit code = %d, want 2 (output %q)", code, out)
	}
	if !strings.HasPrefix(out, "CRITICAL: ") {
		t.Errorf("output = %q, want CRITICAL status line", out)
	}
}

func TestExecuteCheck_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"policies":[]}`)) //nolint:errcheck // test server
	}))
	defer srv.Close()
	host, port := hostPort(t, srv)

	out, code := runCheckArgs(t, noEnv, "-H", host, "-P", port, "-o", "hdfs root")
	if code != 3 {
		t.Errorf("exit code = %d, want 3 (output %q)", code, out)
	}
	if !strings.HasPrefix(out, "UNKNOWN: unexpected response from Ranger") {
		t.Errorf("output = %q", out)
	}
}

func TestExecuteCheck_JSONOutput(t *testing.T) {
	srv := newRangerServer(t)
	host, port := hostPort(t, srv)

	out, code := runCheckArgs(t, noEnv, "-H", host, "-P", port, "-o", "hive off", "--output", "json")
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}

	var got monitor.CheckOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.ExitCode != 2 {
		t.Errorf("exitCode = %d, want 2", got.ExitCode)
	}
	if got.Result.PolicyID != "2" || got.Result.Enabled {
		t.Errorf("unexpected result: %+v", got.Result)
	}
	if !strings.HasPrefix(got.Status, "CRITICAL: ") {
		t.Errorf("status = %q", got.Status)
	}
	if !strings.Contains(got.Result.Remediation, "Enable the policy") {
		t.Errorf("remediation = %q", got.Result.Remediation)
	}
}

func TestExecuteCheck_ConfigCheck(t *testing.T) {
	srv := newRangerServer(t)
	host, port := hostPort(t, srv)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "ranger:\n  host: " + host + "\n  port: " + port + "\nchecks:\n" +
		"  - name: hdfs-root\n    policyName: hdfs root\n    recursive: true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	out, code := runCheckArgs(t, noEnv, "--config", path, "--check", "hdfs-root")
	if code != 2 {
		t.Errorf("configured recursion: exit code = %d, want 2 (output %q)", code, out)
	}

	out, code = runCheckArgs(t, noEnv, "--config", path, "--check", "hdfs-root", "-r=false")
	if code != 0 {
		t.Errorf("flag override: exit code = %d, want 0 (output %q)", code, out)
	}

	out, code = runCheckArgs(t, noEnv, "--config", path, "--check", "missing")
	if code != 3 || !strings.Contains(out, `check "missing" is not defined`) {
		t.Errorf("undefined check: code %d output %q", code, out)
	}
}

func TestExecuteCheck_RecordsHistory(t *testing.T) {
	srv := newRangerServer(t)
	host, port := hostPort(t, srv)
	dbPath := filepath.Join(t.TempDir(), "history.db")

	_, code := runCheckArgs(t, noEnv, "-H", host, "-P", port, "-o", "hdfs root", "--history-db", dbPath)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	// listing runs are never recorded
	runCheckArgs(t, noEnv, "-H", host, "-P", port, "-l", "--history-db", dbPath)

	hs, err := history.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer hs.Close() //nolint:errcheck // test cleanup

	points, err := hs.Trend("hdfs root", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 {
		t.Fatalf("trend points = %d, want 1", len(points))
	}
	if !points[0].Resolved || !points[0].Enabled {
		t.Errorf("unexpected trend point: %+v", points[0])
	}

	summaries, err := hs.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Errorf("snapshots = %d, want 1", len(summaries))
	}
}

func TestCheckCommand_BadArgumentsExitUnknown(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad port value", []string{"check", "-H", "h", "-P", "abc", "-o", "p1"}, `invalid argument "abc"`},
		{"unknown flag", []string{"check", "-H", "h", "--bogus", "-o", "p1"}, "unknown flag: --bogus"},
		{"stray argument", []string{"check", "-H", "h", "-o", "p1", "extra"}, `unknown command "extra"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes := []int{}
			saved := osExit
			osExit = func(code int) { codes = append(codes, code) }
			defer func() { osExit = saved }()
			defer resetCheckFlags()

			out := new(bytes.Buffer)
			rootCmd.SetOut(out)
			rootCmd.SetErr(new(bytes.Buffer))
			rootCmd.SetArgs(tt.args)
			defer rootCmd.SetArgs(nil)

			if err := rootCmd.Execute(); err == nil {
				t.Error("expected command error")
			}
			if len(codes) != 1 || codes[0] != 3 {
				t.Errorf("exit codes = %v, want [3]", codes)
			}
			if !strings.HasPrefix(out.String(), "UNKNOWN: ") || !strings.Contains(out.String(), tt.want) {
				t.Errorf("stdout = %q, want UNKNOWN line containing %q", out.String(), tt.want)
			}
		})
	}
}

// resetCheckFlags restores the shared check command's flags between tests.
func resetCheckFlags() {
	checkCmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue) //nolint:errcheck // restoring defaults
		f.Changed = false
	})
}
