package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentstation/gatesync/pkg/logging"
)

var (
	configFile string
	verbose    bool
	quiet      bool

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gatesync",
	Short: "Declarative LLM gateway configuration sync",
	Long: `Gatesync reconciles a target LLM gateway's channels, model catalog,
and pricing options against pricing and capability data pulled from one or
more upstream providers.

Given provider credentials and filtering rules it computes a desired state
and applies the minimal set of create/update/delete operations, never
touching resources owned by providers outside the run's scope.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute adds all child commands to the root command and runs it.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "gatesync.yaml", "path to the sync configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")

	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		panic(fmt.Sprintf("failed to bind config flag: %v", err))
	}
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(fmt.Sprintf("failed to bind verbose flag: %v", err))
	}
}

// initConfig loads environment configuration before command execution.
func initConfig() {
	// A .env next to the working directory is a convenience for local use;
	// absence is not an error.
	_ = godotenv.Load()

	viper.SetEnvPrefix("GATESYNC")
	viper.AutomaticEnv()
}

func setup(cmd *cobra.Command, args []string) error {
	switch {
	case verbose:
		logging.SetLevel(zerolog.DebugLevel)
	case quiet:
		logging.SetLevel(zerolog.WarnLevel)
	}
	return nil
}
