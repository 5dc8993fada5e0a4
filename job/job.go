// Package job provides the persisted, schedulable unit of work of the
// Cascade engine and the executor that acquires and runs due jobs.
//
// A job row's disappearance is its only completion signal: successful
// execution deletes the row in the same transaction as the handler's
// side effects. There is no "succeeded" flag.
package job

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/cascade/errors"
)

// DefaultRetries is the number of attempts a job gets before an
// incident is raised.
const DefaultRetries = 3

// Job represents a persisted, schedulable unit of work.
//
// Handlers identify themselves by type tag; the configuration payload is
// opaque to the engine and owned by the handler that will execute it.
type Job struct {
	ID             string          `json:"id"`
	DefinitionID   string          `json:"definition_id,omitempty"`
	HandlerType    string          `json:"handler_type"`
	Configuration  json.RawMessage `json:"configuration,omitempty"`
	DueDate        *time.Time      `json:"due_date,omitempty"` // nil = due as soon as acquirable
	Retries        int             `json:"retries"`
	LockOwner      string          `json:"lock_owner,omitempty"`
	LockExpiration *time.Time      `json:"lock_expiration,omitempty"`
	TenantID       string          `json:"tenant_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// New creates a job for the given handler type and configuration.
// A nil dueDate makes the job acquirable immediately.
func New(handlerType string, definitionID string, configuration json.RawMessage, dueDate *time.Time) (*Job, error) {
	if handlerType == "" {
		return nil, errors.New("handlerType cannot be empty")
	}

	return &Job{
		ID:            uuid.NewString(),
		DefinitionID:  definitionID,
		HandlerType:   handlerType,
		Configuration: configuration,
		DueDate:       dueDate,
		Retries:       DefaultRetries,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Definition is a named template grouping jobs by role. Batch-owned
// definitions carry the owning batch id as their configuration and are
// deleted together with the batch.
type Definition struct {
	ID            string    `json:"id"`
	HandlerType   string    `json:"handler_type"`
	Configuration string    `json:"configuration,omitempty"`
	TenantID      string    `json:"tenant_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewDefinition creates a job definition for the given handler type.
// The configuration is conventionally the owning batch id.
func NewDefinition(handlerType, configuration string) *Definition {
	return &Definition{
		ID:            uuid.NewString(),
		HandlerType:   handlerType,
		Configuration: configuration,
		CreatedAt:     time.Now().UTC(),
	}
}

// Incident is a persisted failure record created when a job exhausts its
// retries. The job row stays alive, so a batch containing it never
// completes until an operator intervenes.
type Incident struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	DefinitionID string    `json:"definition_id,omitempty"`
	Type         string    `json:"incident_type"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// IncidentTypeFailedJob marks an incident raised by retry exhaustion.
const IncidentTypeFailedJob = "failedJob"
