package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/gatesync/internal/cmd/output"
	"github.com/agentstation/gatesync/internal/target"
	"github.com/agentstation/gatesync/pkg/config"
	"github.com/agentstation/gatesync/pkg/errors"
	"github.com/agentstation/gatesync/pkg/sync"
)

var (
	runOnly   []string
	runDryRun bool
	runJSON   bool
)

// runCmd executes one sync run.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile the target gateway against upstream providers",
	Long: `Run fetches pricing and capability data from every configured provider,
health-tests the discovered models, computes the desired target state, and
applies the difference. Providers outside --only keep their channels, models,
and option entries untouched.`,
	Example: `  gatesync run
  gatesync run --only providerA,providerB
  gatesync run --dry-run --json`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runOnly, "only", nil, "restrict the run to these providers")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "compute the diff but apply nothing")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "emit the full report as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	client := target.New(cfg.Target.BaseURL, cfg.Target.AccessToken)
	orchestrator := sync.New(cfg, client, sync.Deps{})

	report, err := orchestrator.Run(cmd.Context(), sync.RunOptions{
		Only:   runOnly,
		DryRun: runDryRun,
	})
	if err != nil {
		return err
	}

	format := output.FormatSummary
	if runJSON {
		format = output.FormatJSON
	}
	if err := output.NewFormatter(format).Format(os.Stdout, report); err != nil {
		return err
	}

	if !report.Success {
		return errors.New("sync run failed")
	}
	return nil
}
