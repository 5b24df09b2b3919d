package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rangerwatch/internal/config"
	"github.com/ppiankov/rangerwatch/internal/history"
	"github.com/ppiankov/rangerwatch/internal/monitor"
	"github.com/ppiankov/rangerwatch/internal/probe"
	"github.com/ppiankov/rangerwatch/internal/ranger"
	"github.com/ppiankov/rangerwatch/internal/remediation"
	"github.com/ppiankov/rangerwatch/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check one Ranger policy and exit with a monitoring-plugin status",
	Long: `Fetch a policy from Ranger Admin by name or id and verify that it is
enabled, audited and (with --recursive) recursive. Prints exactly one status
line and exits with the standard plugin code.

When both --id and --name are given the policy is fetched by id and the
name is cross-checked against it.

Exit codes:
  0  OK        policy found and all conditions hold
  2  CRITICAL  policy missing, disabled, not audited, not recursive,
               or Ranger unreachable
  3  UNKNOWN   unexpected response, bad arguments, or --list-policies`,
	Example: `  # Check a policy by name
  rangerwatch check -H ranger.example.com -u admin -p secret -o "hdfs root"

  # Check by id, require recursion, skip the auditing check
  rangerwatch check -H ranger.example.com -i 42 -r -a

  # Run a check defined in a config file
  rangerwatch check --config /etc/rangerwatch/config.yaml --check hdfs-root

  # List every policy (dump + table); always exits UNKNOWN
  rangerwatch check -H ranger.example.com -l`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.NoArgs(cmd, args); err != nil {
			return exitUsage(cmd, err)
		}
		return nil
	},
	RunE: runCheck,
}

// osExit is replaced in tests.
var osExit = os.Exit

func init() {
	rootCmd.AddCommand(checkCmd)
	addCheckFlags(checkCmd)
	checkCmd.SetFlagErrorFunc(exitUsage)
}

// exitUsage reports a flag or argument error as an UNKNOWN status line and
// exits with the plugin code, so supervisors never see cobra's exit 1.
func exitUsage(cmd *cobra.Command, err error) error {
	osExit(usageFailure(cmd.OutOrStdout(), err))
	return err
}

func addCheckFlags(cmd *cobra.Command) {
	addConnectionFlags(cmd)
	f := cmd.Flags()
	f.String("config", "", "Path to config file")
	f.StringP("name", "o", "", "Name of the policy to check")
	f.StringP("id", "i", "", "Id of the policy to check")
	f.String("check", "", "Run the named check from the config file")
	f.BoolP("no-audit", "a", false, "Do not require auditing to be enabled")
	f.BoolP("recursive", "r", false, "Require the policy to be recursive")
	f.BoolP("list-policies", "l", false, "List all policies and exit UNKNOWN")
	f.String("output", "text", "Output format: text, json")
	f.String("history-db", "", "Record the result in a SQLite history database")
	f.BoolP("verbose", "v", false, "Name the Ranger endpoint in not-found messages")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	code := executeCheck(cmd, cmd.OutOrStdout(), os.Getenv)
	if code != 0 {
		osExit(code)
	}
	return nil
}

// executeCheck runs the check described by cmd's flags, writes its output to
// w and returns the plugin exit code. Argument and config problems are
// reported as UNKNOWN on the status line rather than as command errors.
func executeCheck(cmd *cobra.Command, w io.Writer, getenv func(string) string) int {
	flags := cmd.Flags()
	output, _ := flags.GetString("output")        //nolint:errcheck // flag registered above
	listing, _ := flags.GetBool("list-policies")  //nolint:errcheck // flag registered above
	verbose, _ := flags.GetBool("verbose")        //nolint:errcheck // flag registered above
	historyDB, _ := flags.GetString("history-db") //nolint:errcheck // flag registered above

	if output != "text" && output != "json" {
		return usageFailure(w, fmt.Errorf("invalid --output value %q: must be text or json", output))
	}

	cfgPath, _ := flags.GetString("config") //nolint:errcheck // flag registered above
	cfg, err := loadSettings(cmd, cfgPath, getenv)
	if err != nil {
		return usageFailure(w, err)
	}
	spec, err := checkSpecFromFlags(cmd, cfg)
	if err != nil {
		return usageFailure(w, err)
	}

	tracer, shutdown := initTracing(cmd)
	defer flushTracing(shutdown)

	client, err := ranger.New(cfg.Ranger, ranger.WithTracer(tracer))
	if err != nil {
		return usageFailure(w, err)
	}
	opts := []probe.Option{probe.WithTracer(tracer)}
	if verbose {
		opts = append(opts, probe.WithVerbose(client.Endpoint()))
	}
	runner := probe.NewRunner(client, cfg.DisplayName, opts...)

	slog.Debug("running check", "check", spec.Label(), "endpoint", client.Endpoint(), "listing", listing)
	res, _ := runner.Run(commandContext(cmd), spec, listing)
	res.Remediation = remediation.Lookup(&res)
	slog.Debug("check finished", "check", res.Check, "severity", res.Severity,
		"duration", res.Duration, "err", res.Error)

	if historyDB != "" && !listing {
		recordHistory(historyDB, res)
	}

	if err := writeCheckResult(w, res, output, listing); err != nil {
		slog.Error("writing check output", "err", err)
	}
	return monitor.ExitCode(res.Severity)
}

// checkSpecFromFlags starts from a configured check when --check names one
// and applies the policy flags on top.
func checkSpecFromFlags(cmd *cobra.Command, cfg *config.Config) (store.CheckSpec, error) {
	flags := cmd.Flags()
	var spec store.CheckSpec

	if name, _ := flags.GetString("check"); name != "" { //nolint:errcheck // flag registered above
		found := false
		for i := range cfg.Checks {
			if cfg.Checks[i].Label() == name {
				spec = cfg.Checks[i]
				found = true
				break
			}
		}
		if !found {
			return spec, fmt.Errorf("check %q is not defined in the config", name)
		}
	}

	if flags.Changed("name") {
		spec.Policy, _ = flags.GetString("name") //nolint:errcheck // flag registered above
	}
	if flags.Changed("id") {
		spec.PolicyID, _ = flags.GetString("id") //nolint:errcheck // flag registered above
	}
	if flags.Changed("no-audit") {
		spec.NoAudit, _ = flags.GetBool("no-audit") //nolint:errcheck // flag registered above
	}
	if flags.Changed("recursive") {
		spec.Recursive, _ = flags.GetBool("recursive") //nolint:errcheck // flag registered above
	}
	return spec, nil
}

func writeCheckResult(w io.Writer, res store.CheckResult, output string, listing bool) error {
	switch {
	case output == "json":
		return monitor.WriteJSON(w, res)
	case listing && len(res.Lines) > 0:
		for _, line := range res.Lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := fmt.Fprintln(w, monitor.StatusLine(res))
		return err
	}
}

func usageFailure(w io.Writer, err error) int {
	res := store.CheckResult{Severity: store.SeverityUnknown, Message: err.Error()}
	fmt.Fprintln(w, monitor.StatusLine(res)) //nolint:errcheck // best-effort output
	return monitor.ExitCode(res.Severity)
}

func recordHistory(path string, res store.CheckResult) {
	hs, err := history.Open(path)
	if err != nil {
		slog.Warn("opening history database", "path", path, "err", err)
		return
	}
	defer hs.Close() //nolint:errcheck // best-effort cleanup
	if err := hs.Record(res); err != nil {
		slog.Warn("recording check result", "path", path, "err", err)
	}
}
