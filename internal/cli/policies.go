package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ppiankov/rangerwatch/internal/monitor"
	"github.com/ppiankov/rangerwatch/internal/policy"
	"github.com/ppiankov/rangerwatch/internal/probe"
	"github.com/ppiankov/rangerwatch/internal/ranger"
	"github.com/ppiankov/rangerwatch/internal/report"
)

var policyFormats = []string{"table", "dump", "csv", "yaml", "json"}

var policiesCmd = &cobra.Command{
	Use:     "policies",
	Aliases: []string{"list"},
	Short:   "List the policies Ranger Admin returns",
	Long: `Fetch the full policy list from Ranger Admin and print it.

Formats:
  table  aligned columns: Id, Name, RepoName, RepoType, Enabled, Audit,
         Recursive, Description
  dump   every policy as indented JSON, followed by the table
  csv    one row per policy
  yaml   the policies as received, in YAML
  json   the policies as received, as a JSON array

With --interactive, opens a terminal browser with search instead.`,
	Example: `  rangerwatch policies -H ranger.example.com -u admin -p secret
  rangerwatch policies -H ranger.example.com --format csv > policies.csv
  rangerwatch policies -H ranger.example.com --interactive`,
	Args: cobra.NoArgs,
	RunE: runPolicies,
}

func init() {
	rootCmd.AddCommand(policiesCmd)
	addConnectionFlags(policiesCmd)
	policiesCmd.Flags().String("config", "", "Path to config file")
	policiesCmd.Flags().String("format", "table", "Output format: table, dump, csv, yaml, json")
	policiesCmd.Flags().BoolP("interactive", "I", false, "Browse policies in a terminal UI")
}

func runPolicies(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")         //nolint:errcheck // flag registered above
	interactive, _ := cmd.Flags().GetBool("interactive") //nolint:errcheck // flag registered above
	if !slices.Contains(policyFormats, format) {
		return fmt.Errorf("invalid --format value %q: must be one of %v", format, policyFormats)
	}

	cfgPath, _ := cmd.Flags().GetString("config") //nolint:errcheck // flag registered above
	cfg, err := loadSettings(cmd, cfgPath, os.Getenv)
	if err != nil {
		return err
	}

	tracer, shutdown := initTracing(cmd)
	defer flushTracing(shutdown)

	client, err := ranger.New(cfg.Ranger, ranger.WithTracer(tracer))
	if err != nil {
		return err
	}

	records, err := fetchPolicies(commandContext(cmd), client)
	if err != nil {
		return err
	}
	slog.Info("fetched policies", "count", len(records), "endpoint", client.Endpoint())

	if interactive {
		p := tea.NewProgram(monitor.NewModel(records, client.Endpoint()), tea.WithAltScreen())
		_, err := p.Run()
		return err
	}
	return writePolicies(cmd.OutOrStdout(), records, format)
}

// fetchPolicies retrieves and decodes the full policy list.
func fetchPolicies(ctx context.Context, f probe.Fetcher) ([]policy.Record, error) {
	payload, err := f.Fetch(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("fetching policies: %w", err)
	}
	ext, err := policy.Extract(payload, policy.Criteria{}, true)
	if err != nil {
		return nil, err
	}
	return ext.Records, nil
}

func writePolicies(w io.Writer, records []policy.Record, format string) error {
	var lines []string
	switch format {
	case "csv":
		return report.WriteCSV(w, records)
	case "yaml":
		return report.WriteYAML(w, records)
	case "json":
		return report.WriteJSON(w, records)
	case "dump":
		lines = policy.Render(records)
	default:
		lines = policy.Table(records)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
