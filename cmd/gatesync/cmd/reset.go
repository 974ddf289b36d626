package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/gatesync/internal/cmd/output"
	"github.com/agentstation/gatesync/internal/target"
	"github.com/agentstation/gatesync/pkg/config"
	"github.com/agentstation/gatesync/pkg/errors"
	"github.com/agentstation/gatesync/pkg/sync"
)

var (
	resetOnly []string
	resetYes  bool
	resetJSON bool
)

// resetCmd deletes everything this engine manages for selected providers.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all engine-managed channels, models, tokens, and options",
	Long: `Reset removes every channel, model record, option entry, and upstream
token this engine manages for the selected providers. Resources owned by
other providers, and models not marked as engine-managed, are untouched.`,
	Example: `  gatesync reset --only providerA
  gatesync reset -y`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringSliceVar(&resetOnly, "only", nil, "restrict the reset to these providers")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")
	resetCmd.Flags().BoolVar(&resetJSON, "json", false, "emit the full report as JSON")
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	if !resetYes {
		scope := "all providers"
		if len(resetOnly) > 0 {
			scope = strings.Join(resetOnly, ", ")
		}
		fmt.Printf("This deletes every managed resource for %s. Continue? (y/N): ", scope)
		var response string
		if _, err := fmt.Scanln(&response); err != nil {
			response = "n"
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	client := target.New(cfg.Target.BaseURL, cfg.Target.AccessToken)
	orchestrator := sync.New(cfg, client, sync.Deps{})

	report, err := orchestrator.Reset(cmd.Context(), sync.RunOptions{Only: resetOnly})
	if err != nil {
		return err
	}

	format := output.FormatSummary
	if resetJSON {
		format = output.FormatJSON
	}
	if err := output.NewFormatter(format).Format(os.Stdout, report); err != nil {
		return err
	}

	if !report.Success {
		return errors.New("reset failed")
	}
	return nil
}
