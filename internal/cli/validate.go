package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rangerwatch/internal/config"
	"github.com/ppiankov/rangerwatch/internal/probe"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a rangerwatch config file",
	Long: `Load and validate a rangerwatch YAML config file without contacting Ranger.

Checks YAML syntax, connection settings, intervals, notification targets and
every entry of the checks list. Exits 0 on success, 1 on validation failure.`,
	Example: `  rangerwatch validate /etc/rangerwatch/config.yaml
  rangerwatch validate config.yaml && echo "Config OK"`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		cmd.PrintErrln(err)
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return fmt.Errorf("validation failed")
	}

	cmd.Printf("config OK: %d check(s)\n", len(cfg.Checks))
	for i := range cfg.Checks {
		ch := &cfg.Checks[i]
		req := probe.Request(*ch, false)
		cmd.Printf("  %s: id=%q name=%q audit=%t recursive=%t\n",
			ch.Label(), req.Criteria.ID, req.Criteria.Name,
			req.Config.RequireAudit, req.Config.RequireRecursive)
	}
	return nil
}
