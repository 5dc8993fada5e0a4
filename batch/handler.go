package batch

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/teranos/cascade/errors"
	"github.com/teranos/cascade/job"
)

// Handler performs the actual work of one batch type. Execute is called
// once per execution job with the batch's configuration payload and the
// disjoint range [start, start+count) of work units the job covers. It
// runs inside the job's transaction; returning an error rolls everything
// back and the job is retried.
type Handler interface {
	// Type identifies the batch type. It doubles as the handler type of
	// the batch's execution jobs.
	Type() string

	// Execute processes count work units starting at start.
	Execute(ctx context.Context, tx *sql.Tx, configuration []byte, start, count int) error
}

// executionJobHandler adapts a batch Handler to the job executor: it
// unpacks the execution job's range, loads the owning batch and hands its
// configuration to the batch handler.
type executionJobHandler struct {
	handler Handler
}

func (h *executionJobHandler) Type() string {
	return h.handler.Type()
}

func (h *executionJobHandler) Execute(ctx context.Context, tx *sql.Tx, j *job.Job) error {
	var cfg executionConfig
	if err := json.Unmarshal(j.Configuration, &cfg); err != nil {
		return errors.Wrapf(err, "failed to unmarshal execution job %s configuration", j.ID)
	}

	b, err := NewStore(tx).Get(cfg.BatchID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			// The batch was cancelled; the job is an orphan.
			return nil
		}
		return err
	}

	return h.handler.Execute(ctx, tx, b.Configuration, cfg.Start, cfg.Count)
}
