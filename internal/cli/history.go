package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rangerwatch/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded check results",
	Long: `Print check results recorded by "check --history-db" or "serve --history-db".

Without --check, lists recent runs with per-severity counts. With --check,
lists the recorded outcomes of that one check, newest first.`,
	Example: `  rangerwatch history --history-db /var/lib/rangerwatch/history.db
  rangerwatch history --history-db history.db --check hdfs-root --limit 10
  rangerwatch history --history-db history.db --output json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("history-db", "", "Path to SQLite history database")
	historyCmd.Flags().String("check", "", "Show the outcomes of one check")
	historyCmd.Flags().Int("limit", 20, "Maximum number of entries")
	historyCmd.Flags().String("output", "text", "Output format: text, json")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("history-db") //nolint:errcheck // flag registered above
	check, _ := cmd.Flags().GetString("check")     //nolint:errcheck // flag registered above
	limit, _ := cmd.Flags().GetInt("limit")        //nolint:errcheck // flag registered above
	output, _ := cmd.Flags().GetString("output")   //nolint:errcheck // flag registered above

	if path == "" {
		return errors.New("--history-db is required")
	}
	if output != "text" && output != "json" {
		return fmt.Errorf("invalid --output value %q: must be text or json", output)
	}

	hs, err := history.Open(path)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer hs.Close() //nolint:errcheck // read-only use

	return writeHistory(cmd.OutOrStdout(), hs, check, limit, output)
}

func writeHistory(w io.Writer, hs *history.Store, check string, limit int, output string) error {
	if check != "" {
		points, err := hs.Trend(check, limit)
		if err != nil {
			return err
		}
		if output == "json" {
			return encodeJSON(w, points)
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "AT\tSEVERITY\tENABLED\tAUDIT\tRECURSIVE\tMESSAGE") //nolint:errcheck // best-effort output
		for i := range points {
			p := &points[i]
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck // best-effort output
				p.At.UTC().Format(time.RFC3339), p.Severity,
				flagCell(p.Resolved, p.Enabled), flagCell(p.Resolved, p.Auditing), flagCell(p.Resolved, p.Recursive),
				p.Message)
		}
		return tw.Flush()
	}

	summaries, err := hs.List(limit)
	if err != nil {
		return err
	}
	if output == "json" {
		return encodeJSON(w, summaries)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tCHECKS\tOK\tWARNING\tCRITICAL\tUNKNOWN\tWORST") //nolint:errcheck // best-effort output
	for i := range summaries {
		s := &summaries[i]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n", //nolint:errcheck // best-effort output
			s.At.UTC().Format(time.RFC3339), s.ChecksCount, s.OKCount, s.WarnCount, s.CritCount, s.UnknownCount, s.Worst())
	}
	return tw.Flush()
}

// flagCell renders a policy flag, "-" when no policy was resolved.
func flagCell(resolved, v bool) string {
	switch {
	case !resolved:
		return "-"
	case v:
		return "yes"
	default:
		return "no"
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
