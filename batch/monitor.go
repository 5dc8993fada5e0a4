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

// MonitorHandler polls a batch for completion. Completion is judged by
// absence: when no execution job rows remain under the batch's execution
// job definition, the batch is done and the monitor finalizes it. Until
// then each invocation re-arms itself one poll interval in the future.
type MonitorHandler struct {
	pollInterval time.Duration
	log          *zap.SugaredLogger
}

// NewMonitorHandler creates the monitor job handler.
func NewMonitorHandler(pollInterval time.Duration, log *zap.SugaredLogger) *MonitorHandler {
	return &MonitorHandler{
		pollInterval: pollInterval,
		log:          log.Named("batch-monitor"),
	}
}

func (h *MonitorHandler) Type() string {
	return HandlerTypeMonitor
}

func (h *MonitorHandler) Execute(ctx context.Context, tx *sql.Tx, j *job.Job) error {
	var cfg monitorConfig
	if err := json.Unmarshal(j.Configuration, &cfg); err != nil {
		return errors.Wrapf(err, "failed to unmarshal monitor job %s configuration", j.ID)
	}

	b, err := NewStore(tx).Get(cfg.BatchID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			h.log.Warnw("Monitor job references missing batch, skipping", "batch_id", cfg.BatchID)
			return nil
		}
		return err
	}

	completed, err := b.IsCompleted(tx)
	if err != nil {
		return err
	}

	if !completed {
		_, err := b.CreateMonitorJob(tx, h.pollInterval)
		return err
	}

	h.log.Infow("Batch completed, finalizing", "batch_id", b.ID, "type", b.Type, "size", b.Size)
	return b.Delete(tx, true)
}
