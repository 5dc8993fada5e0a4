package job

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/cascade/db"
	"github.com/teranos/cascade/errors"
)

// ExecutorConfig contains configuration for the job executor.
type ExecutorConfig struct {
	Workers      int           `json:"workers"`       // Number of concurrent workers
	PollInterval time.Duration `json:"poll_interval"` // How often each worker checks for due jobs
	LockDuration time.Duration `json:"lock_duration"` // Lease length on an acquired job
	RetryBackoff time.Duration `json:"retry_backoff"` // Delay before a failed job becomes due again
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Workers:      1,
		PollInterval: 5 * time.Second,
		LockDuration: 5 * time.Minute,
		RetryBackoff: 10 * time.Second,
	}
}

// Executor acquires due jobs and runs their handlers, one transaction per
// invocation. On success the job row is deleted in the handler's own
// transaction; on failure the retry count is decremented and the job is
// rescheduled with backoff, until an incident is raised on exhaustion.
// An incident-stalled job keeps its row alive indefinitely — escalation
// to an operator, never silent skipping.
type Executor struct {
	db       *sql.DB
	registry *Registry
	config   ExecutorConfig
	owner    string
	logger   *zap.SugaredLogger

	parentCtx context.Context
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
}

// NewExecutor creates a job executor with an empty handler registry.
// Callers must register handlers before calling Start().
func NewExecutor(ctx context.Context, database *sql.DB, config ExecutorConfig, logger *zap.SugaredLogger) *Executor {
	workerCtx, cancel := context.WithCancel(ctx)

	return &Executor{
		db:        database,
		registry:  NewRegistry(),
		config:    config,
		owner:     uuid.NewString(),
		logger:    logger.Named("executor"),
		parentCtx: ctx,
		ctx:       workerCtx,
		cancel:    cancel,
	}
}

// Registry returns the handler registry for registering job handlers.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Start begins processing due jobs with the configured worker count.
func (e *Executor) Start() {
	e.mu.Lock()
	select {
	case <-e.ctx.Done():
		// Restarted after Stop() - derive a fresh context from the parent
		e.ctx, e.cancel = context.WithCancel(e.parentCtx)
	default:
	}
	e.mu.Unlock()

	for i := 0; i < e.config.Workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
}

// Stop gracefully stops the executor, waiting for in-flight jobs.
func (e *Executor) Stop() {
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Infow("Executor stopped, all workers exited cleanly")
	case <-time.After(30 * time.Second):
		e.logger.Warnw("Executor stop timed out, workers may still be finishing")
	}
}

func (e *Executor) worker(id int) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if err := e.processNext(e.ctx); err != nil {
				select {
				case <-e.ctx.Done():
					return
				default:
				}
				if errors.Is(err, sql.ErrConnDone) || db.IsDatabaseClosed(err) {
					// Database closed during shutdown
					return
				}
				e.logger.Errorw("Worker error processing job",
					"worker_id", id,
					"error", err)
			}
		}
	}
}

// processNext acquires and executes a single due job. A handler failure
// is handled (retry bookkeeping, incident) and not returned as an error.
func (e *Executor) processNext(ctx context.Context) error {
	e.mu.Lock()
	j, err := NewStore(e.db).AcquireDue(e.owner, time.Now(), e.config.LockDuration)
	e.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "failed to acquire due job")
	}
	if j == nil {
		return nil
	}

	if err := e.execute(ctx, j); err != nil {
		e.logger.Warnw("Job execution failed",
			"job_id", j.ID,
			"handler_type", j.HandlerType,
			"retries_left", j.Retries-1,
			"error", err)
	}
	return nil
}

// ExecuteJob runs a specific job immediately, regardless of its due date.
// This is the management operation tests and operators use.
func (e *Executor) ExecuteJob(ctx context.Context, jobID string) error {
	j, err := NewStore(e.db).Get(jobID)
	if err != nil {
		return err
	}
	return e.execute(ctx, j)
}

// DrainDue executes due jobs until none remain, returning how many ran.
// Successor jobs that become due during the drain are executed as well.
func (e *Executor) DrainDue(ctx context.Context) (int, error) {
	executed := 0
	for {
		j, err := NewStore(e.db).AcquireDue(e.owner, time.Now(), e.config.LockDuration)
		if err != nil {
			return executed, errors.Wrap(err, "failed to acquire due job")
		}
		if j == nil {
			return executed, nil
		}
		executed++
		if err := e.execute(ctx, j); err != nil {
			return executed, err
		}
	}
}

// execute runs the job's handler inside one transaction. The handler's
// side effects and the deletion of the job row commit together.
func (e *Executor) execute(ctx context.Context, j *Job) error {
	handler := e.registry.Get(j.HandlerType)
	if handler == nil {
		return errors.Newf("no handler registered for handler type: %s", j.HandlerType)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin job transaction")
	}

	handlerErr := handler.Execute(ctx, tx, j)
	if handlerErr == nil {
		// Completion is deletion: the job row disappears in the same
		// transaction as the handler's side effects. Some handlers remove
		// their own row along the way (batch finalization deletes every
		// job of the batch, the monitor's included), so an already-gone
		// row is not an error.
		switch err := NewStore(tx).Delete(j.ID); {
		case err == nil:
			if err := NewLogStore(tx).Append(j, LogStateSuccess, ""); err != nil {
				tx.Rollback()
				return errors.Wrap(err, "failed to log job success")
			}
		case errors.IsNotFoundError(err):
			// The handler removed its own row, and with it its history.
			// Nothing left to log against.
		default:
			tx.Rollback()
			return errors.Wrap(err, "failed to delete completed job")
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrap(err, "failed to commit job transaction")
		}

		e.logger.Debugw("Job completed",
			"job_id", j.ID,
			"handler_type", j.HandlerType)
		return nil
	}

	tx.Rollback()

	if err := e.handleFailure(ctx, j, handlerErr); err != nil {
		return errors.Wrap(err, "failed to record job failure")
	}

	return handlerErr
}

// handleFailure applies the generic retry policy: decrement retries and
// reschedule with backoff, or raise an incident once retries are exhausted.
func (e *Executor) handleFailure(ctx context.Context, j *Job, handlerErr error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin failure transaction")
	}

	jobs := NewStore(tx)
	logs := NewLogStore(tx)

	remaining := j.Retries - 1
	if remaining > 0 {
		if err := jobs.Reschedule(j.ID, time.Now().Add(e.config.RetryBackoff), remaining); err != nil {
			tx.Rollback()
			return err
		}
	} else {
		// Out of retries: keep the job row, raise an incident. The job is
		// no longer acquirable (retries = 0) until an operator raises its
		// retries or deletes it.
		if err := jobs.Reschedule(j.ID, time.Now(), 0); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := NewIncidentStore(tx).Create(j, IncidentTypeFailedJob, handlerErr.Error()); err != nil {
			tx.Rollback()
			return err
		}
		e.logger.Warnw("Job retries exhausted, incident raised",
			"job_id", j.ID,
			"handler_type", j.HandlerType,
			"error", handlerErr)
	}

	if err := logs.Append(j, LogStateFailed, handlerErr.Error()); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
