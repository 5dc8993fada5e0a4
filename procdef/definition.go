// Package procdef manages process definition and instance suspension
// state: immediate or scheduled suspend/activate transitions, scoped by
// unique id or by logical key across a tenant filter, and a bulk batch
// type for suspending large sets of process instances.
package procdef

import "github.com/google/uuid"

// ProcessDefinition is one deployed, versioned process definition.
// Several definitions may share a Key across versions and tenants.
type ProcessDefinition struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Version   int    `json:"version"`
	TenantID  string `json:"tenant_id,omitempty"` // empty = not tenant-scoped
	Suspended bool   `json:"suspended"`
}

// NewDefinition creates a process definition with a generated id.
func NewDefinition(key string, version int, tenantID string) *ProcessDefinition {
	return &ProcessDefinition{
		ID:       uuid.NewString(),
		Key:      key,
		Version:  version,
		TenantID: tenantID,
	}
}

// ProcessInstance is one running instance of a process definition.
type ProcessInstance struct {
	ID           string `json:"id"`
	DefinitionID string `json:"definition_id"`
	Key          string `json:"key"`
	TenantID     string `json:"tenant_id,omitempty"`
	Suspended    bool   `json:"suspended"`
}

// NewInstance creates a running instance of the given definition.
func NewInstance(d *ProcessDefinition) *ProcessInstance {
	return &ProcessInstance{
		ID:           uuid.NewString(),
		DefinitionID: d.ID,
		Key:          d.Key,
		TenantID:     d.TenantID,
	}
}
