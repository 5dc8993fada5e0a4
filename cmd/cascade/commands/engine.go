// Package commands implements the cascade CLI subcommands.
package commands

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/teranos/cascade/batch"
	"github.com/teranos/cascade/config"
	"github.com/teranos/cascade/db"
	"github.com/teranos/cascade/job"
	"github.com/teranos/cascade/logger"
	"github.com/teranos/cascade/procdef"
)

// engine bundles the wired-up subsystems a command needs.
type engine struct {
	cfg        *config.Config
	db         *sql.DB
	executor   *job.Executor
	batches    *batch.Service
	suspension *procdef.Service
}

// openEngine loads configuration, opens the migrated database and wires
// the executor, batch service and suspension service with all handlers
// registered. The caller owns Close.
func openEngine(ctx context.Context, cmd *cobra.Command) (*engine, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	database, err := db.OpenWithMigrations(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, err
	}

	executorCfg := job.ExecutorConfig{
		Workers:      cfg.Executor.Workers,
		PollInterval: cfg.Executor.PollInterval(),
		LockDuration: cfg.Executor.LockDuration(),
		RetryBackoff: cfg.Executor.RetryBackoff(),
	}
	executor := job.NewExecutor(ctx, database, executorCfg, logger.Logger)

	batchCfg := batch.ServiceConfig{
		JobsPerSeed:         cfg.Batch.JobsPerSeed,
		InvocationsPerJob:   cfg.Batch.InvocationsPerJob,
		MonitorPollInterval: cfg.Batch.MonitorPollInterval(),
	}
	batches := batch.NewService(database, batchCfg, executor.Registry(), logger.Logger)
	batches.RegisterType(procdef.NewInstanceSuspensionHandler(logger.Logger))

	suspension := procdef.NewService(database, executor.Registry(), logger.Logger)

	return &engine{
		cfg:        cfg,
		db:         database,
		executor:   executor,
		batches:    batches,
		suspension: suspension,
	}, nil
}

// Close releases the engine's database handle.
func (e *engine) Close() error {
	return e.db.Close()
}
