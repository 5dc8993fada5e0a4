package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/cascade/cmd/cascade/commands"
	"github.com/teranos/cascade/logger"
)

var rootCmd = &cobra.Command{
	Use:   "cascade",
	Short: "Cascade - bulk-operation job decomposition engine",
	Long: `Cascade - persisted bulk-operation decomposition and completion tracking.

Cascade breaks a single large request into independently schedulable jobs,
executes them asynchronously under a retry policy, polls for aggregate
completion, and archives finished batches. It also runs single deferred
state transitions (scheduled suspend/activate of process definitions).

Available commands:
  run      - Start the engine daemon (job executor + handlers)
  batch    - Submit, inspect and cancel bulk-operation batches
  suspend  - Suspend process definitions, immediately or at a future time
  activate - Activate process definitions, immediately or at a future time

Examples:
  cascade run                                  # Start engine in foreground
  cascade batch ls                             # List live batches
  cascade suspend --key order-process --tenant tenant-one`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to TOML config file")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit structured JSON logs")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.BatchCmd)
	rootCmd.AddCommand(commands.SuspendCmd)
	rootCmd.AddCommand(commands.ActivateCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
