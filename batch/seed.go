package batch

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/cascade/errors"
	"github.com/teranos/cascade/job"
)

// SeedHandler incrementally expands a batch into execution jobs. Each
// invocation creates at most JobsPerSeed execution jobs of up to
// InvocationsPerJob work units each, then either re-arms itself with an
// advanced offset or, once the batch is fully expanded, arms the monitor.
//
// The job row, its successor and the created execution jobs all live in
// the invocation's transaction, so a crash at any point leaves either the
// old seed job or the new state, never both and never neither.
type SeedHandler struct {
	monitorPollInterval time.Duration
	log                 *zap.SugaredLogger
}

// NewSeedHandler creates the seed job handler. monitorPollInterval is the
// due-date offset given to the first monitor job once expansion finishes.
func NewSeedHandler(monitorPollInterval time.Duration, log *zap.SugaredLogger) *SeedHandler {
	return &SeedHandler{
		monitorPollInterval: monitorPollInterval,
		log:                 log.Named("batch-seed"),
	}
}

func (h *SeedHandler) Type() string {
	return HandlerTypeSeed
}

func (h *SeedHandler) Execute(ctx context.Context, tx *sql.Tx, j *job.Job) error {
	var cfg seedConfig
	if err := json.Unmarshal(j.Configuration, &cfg); err != nil {
		return errors.Wrapf(err, "failed to unmarshal seed job %s configuration", j.ID)
	}

	batches := NewStore(tx)
	b, err := batches.Get(cfg.BatchID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			h.log.Warnw("Seed job references missing batch, skipping", "batch_id", cfg.BatchID)
			return nil
		}
		return err
	}

	// The execution job definition is created lazily on first expansion.
	if b.BatchJobDefinitionID == "" {
		if _, err := b.CreateExecutionJobDefinition(tx); err != nil {
			return err
		}
		if err := batches.Update(b); err != nil {
			return err
		}
	}

	offset := cfg.Offset
	created := 0
	for created < b.JobsPerSeed && offset < b.Size {
		count := b.InvocationsPerJob
		if remaining := b.Size - offset; remaining < count {
			count = remaining
		}
		if _, err := b.createExecutionJob(tx, offset, count); err != nil {
			return err
		}
		offset += count
		created++
	}

	h.log.Debugw("Expanded batch",
		"batch_id", b.ID,
		"execution_jobs", created,
		"offset", offset,
		"size", b.Size,
	)

	if offset < b.Size {
		// More work units remain: re-arm the seed with the new offset.
		_, err := b.createSeedJob(tx, offset)
		return err
	}

	// Fully expanded: hand over to the monitor. Arming it only now
	// guarantees it can never observe an empty execution job definition
	// before any execution jobs exist.
	_, err = b.CreateMonitorJob(tx, h.monitorPollInterval)
	return err
}
