package batch

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/cascade/db"
	"github.com/teranos/cascade/errors"
	"github.com/teranos/cascade/job"
)

// Default decomposition parameters, applied when a submission leaves them
// unset.
const (
	DefaultJobsPerSeed         = 100
	DefaultInvocationsPerJob   = 1
	DefaultMonitorPollInterval = 30 * time.Second
)

// ServiceConfig carries the decomposition defaults of the batch service.
type ServiceConfig struct {
	JobsPerSeed         int
	InvocationsPerJob   int
	MonitorPollInterval time.Duration
}

// DefaultServiceConfig returns the stock decomposition parameters.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		JobsPerSeed:         DefaultJobsPerSeed,
		InvocationsPerJob:   DefaultInvocationsPerJob,
		MonitorPollInterval: DefaultMonitorPollInterval,
	}
}

// Service is the entry point for bulk operations: it accepts batch
// submissions, registers the generic seed/monitor handlers plus one
// execution handler per batch type, and exposes cancellation and lookup.
type Service struct {
	db       *sql.DB
	config   ServiceConfig
	registry *job.Registry
	types    map[string]Handler
	log      *zap.SugaredLogger
}

// NewService creates the batch service and registers the seed and
// monitor job handlers on the given registry.
func NewService(sqlDB *sql.DB, config ServiceConfig, registry *job.Registry, log *zap.SugaredLogger) *Service {
	if config.JobsPerSeed <= 0 {
		config.JobsPerSeed = DefaultJobsPerSeed
	}
	if config.InvocationsPerJob <= 0 {
		config.InvocationsPerJob = DefaultInvocationsPerJob
	}
	if config.MonitorPollInterval <= 0 {
		config.MonitorPollInterval = DefaultMonitorPollInterval
	}

	s := &Service{
		db:       sqlDB,
		config:   config,
		registry: registry,
		types:    make(map[string]Handler),
		log:      log.Named("batch"),
	}

	registry.Register(NewSeedHandler(config.MonitorPollInterval, log))
	registry.Register(NewMonitorHandler(config.MonitorPollInterval, log))

	return s
}

// RegisterType registers the execution handler for one batch type.
// Registering a duplicate type panics, matching job handler registration.
func (s *Service) RegisterType(h Handler) {
	if _, exists := s.types[h.Type()]; exists {
		panic("batch handler already registered for type: " + h.Type())
	}
	s.types[h.Type()] = h
	s.registry.Register(&executionJobHandler{handler: h})
}

// SubmitRequest describes one bulk operation.
type SubmitRequest struct {
	// Type selects the registered batch handler.
	Type string
	// Size is the total number of work units. Must be positive.
	Size int
	// Configuration is the opaque payload handed to every execution of
	// the batch handler.
	Configuration []byte
	// TenantID optionally scopes the batch and its jobs to a tenant.
	TenantID string

	// JobsPerSeed and InvocationsPerJob override the service defaults
	// when positive.
	JobsPerSeed       int
	InvocationsPerJob int
}

// Submit validates the request and atomically creates the batch, its
// seed and monitor job definitions, the initial seed job and the open
// historic record. The returned batch is live; expansion begins with the
// next executor poll.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Batch, error) {
	if req.Size <= 0 {
		return nil, errors.InvalidParameterf("batch size must be positive, got %d", req.Size)
	}
	if req.Type == "" {
		return nil, errors.InvalidParameterf("batch type cannot be empty")
	}
	if _, registered := s.types[req.Type]; !registered {
		return nil, errors.InvalidParameterf("no handler registered for batch type %q", req.Type)
	}

	jobsPerSeed := req.JobsPerSeed
	if jobsPerSeed <= 0 {
		jobsPerSeed = s.config.JobsPerSeed
	}
	invocationsPerJob := req.InvocationsPerJob
	if invocationsPerJob <= 0 {
		invocationsPerJob = s.config.InvocationsPerJob
	}

	b := newBatch(req.Type, req.Size, jobsPerSeed, invocationsPerJob, req.TenantID, req.Configuration)

	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := b.CreateSeedJobDefinition(tx); err != nil {
			return err
		}
		if _, err := b.CreateMonitorJobDefinition(tx); err != nil {
			return err
		}
		if err := NewStore(tx).Insert(b); err != nil {
			return err
		}
		if _, err := b.CreateSeedJob(tx); err != nil {
			return err
		}
		return NewHistoricStore(tx).Insert(b, b.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("Submitted batch",
		"batch_id", b.ID,
		"type", b.Type,
		"size", b.Size,
		"jobs_per_seed", b.JobsPerSeed,
		"invocations_per_job", b.InvocationsPerJob,
	)
	return b, nil
}

// Get retrieves a live batch. ErrNotFound means the batch either never
// existed or already completed and was removed; the historic record, if
// retained, disambiguates.
func (s *Service) Get(ctx context.Context, id string) (*Batch, error) {
	return NewStore(s.db).Get(id)
}

// GetHistoric retrieves the historic record of a batch, live or
// finished.
func (s *Service) GetHistoric(ctx context.Context, id string) (*HistoricBatch, error) {
	return NewHistoricStore(s.db).Get(id)
}

// List returns all live batches.
func (s *Service) List(ctx context.Context) ([]*Batch, error) {
	return NewStore(s.db).List()
}

// Cancel removes a live batch mid-flight: all of its pending jobs, its
// job definitions, the batch row and, with cascadeToHistory, its history.
// Execution jobs that already ran keep their side effects.
func (s *Service) Cancel(ctx context.Context, id string, cascadeToHistory bool) error {
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		b, err := NewStore(tx).Get(id)
		if err != nil {
			return err
		}
		return b.Delete(tx, cascadeToHistory)
	})
	if err != nil {
		return err
	}

	s.log.Infow("Cancelled batch", "batch_id", id, "cascade_to_history", cascadeToHistory)
	return nil
}
