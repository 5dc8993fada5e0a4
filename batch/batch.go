// Package batch implements bulk-operation decomposition: a single
// request over N work items becomes a persisted batch that a seed job
// incrementally expands into bounded execution jobs, and a monitor job
// polls for completion and finalizes.
package batch

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/cascade/db"
	"github.com/teranos/cascade/errors"
	"github.com/teranos/cascade/job"
)

// Handler types of the generic batch jobs. Execution jobs use the batch
// type itself as their handler type.
const (
	HandlerTypeSeed    = "batch-seed"
	HandlerTypeMonitor = "batch-monitor"
)

// Batch is the aggregate root of one bulk operation. It owns three job
// definitions: seed (expands the batch), monitor (polls for completion)
// and execution (the actual work, created lazily on first expansion).
type Batch struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	Size              int    `json:"size"`                // total work units, fixed at creation
	JobsPerSeed       int    `json:"jobs_per_seed"`       // max execution jobs one seed run creates
	InvocationsPerJob int    `json:"invocations_per_job"` // work units one execution job covers

	SeedJobDefinitionID    string `json:"seed_job_definition_id,omitempty"`
	MonitorJobDefinitionID string `json:"monitor_job_definition_id,omitempty"`
	BatchJobDefinitionID   string `json:"batch_job_definition_id,omitempty"`

	Configuration []byte    `json:"configuration,omitempty"` // opaque, owned by the batch
	TenantID      string    `json:"tenant_id,omitempty"`
	Revision      int       `json:"revision"`
	CreatedAt     time.Time `json:"created_at"`
}

// seedConfig is the seed job's own payload. The expansion offset lives
// here, not on the batch: re-arming the seed is inserting a successor job
// with an advanced offset, all inside the seed invocation's transaction.
type seedConfig struct {
	BatchID string `json:"batch_id"`
	Offset  int    `json:"offset"`
}

// executionConfig describes the disjoint work-unit range one execution
// job covers.
type executionConfig struct {
	BatchID string `json:"batch_id"`
	Start   int    `json:"start"`
	Count   int    `json:"count"`
}

// monitorConfig is the monitor job's payload.
type monitorConfig struct {
	BatchID string `json:"batch_id"`
}

// CreateSeedJobDefinition creates the seed job definition and records its
// id on the batch.
func (b *Batch) CreateSeedJobDefinition(dbtx db.DBTX) (*job.Definition, error) {
	d := job.NewDefinition(HandlerTypeSeed, b.ID)
	if err := job.NewDefinitionStore(dbtx).Create(d); err != nil {
		return nil, err
	}
	b.SeedJobDefinitionID = d.ID
	return d, nil
}

// CreateMonitorJobDefinition creates the monitor job definition and
// records its id on the batch.
func (b *Batch) CreateMonitorJobDefinition(dbtx db.DBTX) (*job.Definition, error) {
	d := job.NewDefinition(HandlerTypeMonitor, b.ID)
	if err := job.NewDefinitionStore(dbtx).Create(d); err != nil {
		return nil, err
	}
	b.MonitorJobDefinitionID = d.ID
	return d, nil
}

// CreateExecutionJobDefinition creates the execution job definition and
// records its id on the batch. Called lazily by the seed handler on first
// expansion.
func (b *Batch) CreateExecutionJobDefinition(dbtx db.DBTX) (*job.Definition, error) {
	d := job.NewDefinition(b.Type, b.ID)
	if err := job.NewDefinitionStore(dbtx).Create(d); err != nil {
		return nil, err
	}
	b.BatchJobDefinitionID = d.ID
	return d, nil
}

// CreateSeedJob creates the initial seed job, due immediately.
func (b *Batch) CreateSeedJob(dbtx db.DBTX) (*job.Job, error) {
	return b.createSeedJob(dbtx, 0)
}

func (b *Batch) createSeedJob(dbtx db.DBTX, offset int) (*job.Job, error) {
	cfg, err := json.Marshal(seedConfig{BatchID: b.ID, Offset: offset})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal seed configuration")
	}

	j, err := job.New(HandlerTypeSeed, b.SeedJobDefinitionID, cfg, nil)
	if err != nil {
		return nil, err
	}
	j.TenantID = b.TenantID

	if err := job.NewStore(dbtx).Create(j); err != nil {
		return nil, err
	}
	return j, nil
}

// CreateMonitorJob creates one monitor job due after the given poll
// interval.
func (b *Batch) CreateMonitorJob(dbtx db.DBTX, pollInterval time.Duration) (*job.Job, error) {
	cfg, err := json.Marshal(monitorConfig{BatchID: b.ID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal monitor configuration")
	}

	due := time.Now().UTC().Add(pollInterval)
	j, err := job.New(HandlerTypeMonitor, b.MonitorJobDefinitionID, cfg, &due)
	if err != nil {
		return nil, err
	}
	j.TenantID = b.TenantID

	if err := job.NewStore(dbtx).Create(j); err != nil {
		return nil, err
	}
	return j, nil
}

// createExecutionJob creates one execution job covering count work units
// starting at start.
func (b *Batch) createExecutionJob(dbtx db.DBTX, start, count int) (*job.Job, error) {
	cfg, err := json.Marshal(executionConfig{BatchID: b.ID, Start: start, Count: count})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal execution configuration")
	}

	j, err := job.New(b.Type, b.BatchJobDefinitionID, cfg, nil)
	if err != nil {
		return nil, err
	}
	j.TenantID = b.TenantID

	if err := job.NewStore(dbtx).Create(j); err != nil {
		return nil, err
	}
	return j, nil
}

// IsCompleted reports whether all execution jobs of the batch are gone.
// Completion is judged purely by absence of job rows: an execution job
// stalled behind an incident keeps the batch incomplete until an operator
// acts on it.
func (b *Batch) IsCompleted(dbtx db.DBTX) (bool, error) {
	if b.BatchJobDefinitionID == "" {
		// Expansion has not started.
		return false, nil
	}

	count, err := job.NewStore(dbtx).CountByDefinition(b.BatchJobDefinitionID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Delete removes the batch: all seed/monitor/execution jobs, the three
// job definitions, the batch row (with its configuration payload), and
// closes the historic record. With cascadeToHistory it also purges the
// historic job logs of the three definitions and the historic batch
// record itself.
//
// Delete is not idempotent; callers must ensure it runs at most once
// (the monitor finalizes at most once, cancellation is the caller's
// responsibility).
func (b *Batch) Delete(dbtx db.DBTX, cascadeToHistory bool) error {
	jobs := job.NewStore(dbtx)
	definitions := job.NewDefinitionStore(dbtx)

	definitionIDs := []string{b.SeedJobDefinitionID, b.MonitorJobDefinitionID, b.BatchJobDefinitionID}
	for _, id := range definitionIDs {
		if id == "" {
			continue
		}
		if err := jobs.DeleteByDefinition(id); err != nil {
			return err
		}
		if err := definitions.Delete(id); err != nil {
			return err
		}
	}

	if err := NewStore(dbtx).Delete(b.ID); err != nil {
		return err
	}

	historic := NewHistoricStore(dbtx)
	if err := historic.Complete(b.ID, time.Now().UTC()); err != nil {
		return err
	}

	if cascadeToHistory {
		logs := job.NewLogStore(dbtx)
		for _, id := range definitionIDs {
			if id == "" {
				continue
			}
			if err := logs.DeleteByDefinition(id); err != nil {
				return err
			}
		}
		if err := historic.Delete(b.ID); err != nil {
			return err
		}
	}

	return nil
}

func newBatch(batchType string, size, jobsPerSeed, invocationsPerJob int, tenantID string, configuration []byte) *Batch {
	return &Batch{
		ID:                uuid.NewString(),
		Type:              batchType,
		Size:              size,
		JobsPerSeed:       jobsPerSeed,
		InvocationsPerJob: invocationsPerJob,
		TenantID:          tenantID,
		Configuration:     configuration,
		Revision:          1,
		CreatedAt:         time.Now().UTC(),
	}
}
