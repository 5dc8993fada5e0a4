package procdef

import (
	"context"
	"database/sql"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/teranos/cascade/db"
	"github.com/teranos/cascade/errors"
	"github.com/teranos/cascade/job"
)

// Handler types of the deferred state transition jobs.
const (
	HandlerTypeSuspend  = "suspend-process-definition"
	HandlerTypeActivate = "activate-process-definition"
)

// Service applies suspension-state transitions to process definitions,
// either synchronously or deferred via a timer job due at the requested
// execution date.
type Service struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewService creates the suspension service and registers the suspend and
// activate timer job handlers on the given registry.
func NewService(sqlDB *sql.DB, registry *job.Registry, log *zap.SugaredLogger) *Service {
	s := &Service{
		db:  sqlDB,
		log: log.Named("procdef"),
	}

	registry.Register(&transitionHandler{handlerType: HandlerTypeSuspend, suspended: true, log: s.log})
	registry.Register(&transitionHandler{handlerType: HandlerTypeActivate, suspended: false, log: s.log})

	return s
}

// Suspend suspends the definitions matched by the request's scope,
// immediately or at the request's execution date.
func (s *Service) Suspend(ctx context.Context, req TransitionRequest) error {
	return s.transition(ctx, req, true)
}

// Activate activates the definitions matched by the request's scope,
// immediately or at the request's execution date.
func (s *Service) Activate(ctx context.Context, req TransitionRequest) error {
	return s.transition(ctx, req, false)
}

func (s *Service) transition(ctx context.Context, req TransitionRequest, suspended bool) error {
	// Scope validation happens at request time either way; a deferred
	// request re-resolves the scope again when the timer fires.
	if _, err := req.resolveScope(); err != nil {
		return err
	}

	if req.ExecutionDate != nil {
		return s.schedule(ctx, req, suspended)
	}

	return db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		return applyTransition(tx, req, suspended, s.log)
	})
}

// schedule persists a single timer job carrying the request. The scope is
// resolved again at execution time, so definitions deployed between
// scheduling and firing are included.
func (s *Service) schedule(ctx context.Context, req TransitionRequest, suspended bool) error {
	due := *req.ExecutionDate
	req.ExecutionDate = nil

	cfg, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "failed to marshal state transition request")
	}

	handlerType := HandlerTypeActivate
	if suspended {
		handlerType = HandlerTypeSuspend
	}

	j, err := job.New(handlerType, "", cfg, &due)
	if err != nil {
		return err
	}
	j.TenantID = req.TenantID

	if err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		return job.NewStore(tx).Create(j)
	}); err != nil {
		return err
	}

	s.log.Infow("Scheduled state transition",
		"job_id", j.ID,
		"handler_type", handlerType,
		"due_date", due,
	)
	return nil
}

// applyTransition performs the state change inside the given transaction.
func applyTransition(tx *sql.Tx, req TransitionRequest, suspended bool, log *zap.SugaredLogger) error {
	sc, err := req.resolveScope()
	if err != nil {
		return err
	}

	store := NewStore(tx)

	if sc.kind == scopeByID {
		if err := store.SetDefinitionSuspendedByID(sc.id, suspended); err != nil {
			return err
		}
		if req.IncludeInstances {
			if _, err := store.SetInstancesSuspendedByDefinitionID(sc.id, suspended); err != nil {
				return err
			}
		}
		log.Debugw("Applied state transition", "process_definition_id", sc.id, "suspended", suspended)
		return nil
	}

	tenants := sc.tenants()
	updated, err := store.SetDefinitionSuspendedByKey(sc.key, tenants, suspended)
	if err != nil {
		return err
	}
	if req.IncludeInstances {
		if _, err := store.SetInstancesSuspendedByKey(sc.key, tenants, suspended); err != nil {
			return err
		}
	}

	log.Debugw("Applied state transition",
		"process_definition_key", sc.key,
		"definitions", updated,
		"suspended", suspended,
		"include_instances", req.IncludeInstances,
	)
	return nil
}

// transitionHandler executes a deferred suspend or activate job.
type transitionHandler struct {
	handlerType string
	suspended   bool
	log         *zap.SugaredLogger
}

func (h *transitionHandler) Type() string {
	return h.handlerType
}

func (h *transitionHandler) Execute(ctx context.Context, tx *sql.Tx, j *job.Job) error {
	var req TransitionRequest
	if err := json.Unmarshal(j.Configuration, &req); err != nil {
		return errors.Wrapf(err, "failed to unmarshal state transition job %s configuration", j.ID)
	}
	req.ExecutionDate = nil

	return applyTransition(tx, req, h.suspended, h.log)
}
