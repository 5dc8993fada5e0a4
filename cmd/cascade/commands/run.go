package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/cascade/logger"
)

// RunCmd starts the engine daemon in foreground mode.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Cascade engine daemon",
	Long: `Start the Cascade engine daemon in foreground mode.

The daemon will:
- Start the job executor worker pool
- Process due seed, monitor, execution and timer jobs
- Run until interrupted (Ctrl+C) with graceful shutdown`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		eng, err := openEngine(ctx, cmd)
		if err != nil {
			return err
		}
		defer eng.Close()

		eng.executor.Start()
		logger.Logger.Infow("Cascade engine started",
			"workers", eng.cfg.Executor.Workers,
			"database", eng.cfg.Database.Path,
		)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan

		fmt.Printf("\nReceived %v, shutting down...\n", sig)
		eng.executor.Stop()
		return nil
	},
}
