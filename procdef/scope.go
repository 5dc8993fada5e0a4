package procdef

import (
	"time"

	"github.com/teranos/cascade/errors"
)

// TransitionRequest describes one suspend or activate request. Exactly
// one of ProcessDefinitionID and ProcessDefinitionKey must be set; the
// tenant fields only combine with the key form.
type TransitionRequest struct {
	// ProcessDefinitionID targets one definition by its unique id.
	ProcessDefinitionID string `json:"process_definition_id,omitempty"`
	// ProcessDefinitionKey targets every definition sharing the key.
	ProcessDefinitionKey string `json:"process_definition_key,omitempty"`

	// TenantID restricts a key-scoped request to one tenant.
	TenantID string `json:"tenant_id,omitempty"`
	// WithoutTenant restricts a key-scoped request to definitions that
	// belong to no tenant.
	WithoutTenant bool `json:"without_tenant,omitempty"`

	// IncludeInstances propagates the transition to running process
	// instances of the matched definitions.
	IncludeInstances bool `json:"include_instances,omitempty"`

	// ExecutionDate defers the transition to a future time by creating a
	// timer job. Nil applies the transition synchronously.
	ExecutionDate *time.Time `json:"execution_date,omitempty"`
}

// scopeKind tags the validated variants a request can resolve to.
type scopeKind int

const (
	scopeByID scopeKind = iota
	scopeByKeyTenant
	scopeByKeyWithoutTenant
	scopeByKeyAllTenants
)

// scope is the validated, unambiguous form of a request's targeting.
type scope struct {
	kind     scopeKind
	id       string
	key      string
	tenantID string
}

// resolveScope validates the request's targeting and returns its tagged
// variant. Combining an id scope with any tenant filter is a user error
// regardless of whether the id's actual tenant would match.
func (r TransitionRequest) resolveScope() (scope, error) {
	switch {
	case r.ProcessDefinitionID != "" && r.ProcessDefinitionKey != "":
		return scope{}, errors.InvalidParameterf("either a process definition id or a key must be provided, not both")
	case r.ProcessDefinitionID == "" && r.ProcessDefinitionKey == "":
		return scope{}, errors.InvalidParameterf("either a process definition id or a key must be provided")
	}

	if r.ProcessDefinitionID != "" {
		if r.TenantID != "" || r.WithoutTenant {
			return scope{}, errors.BadRequestf("cannot specify a tenant filter together with an identifier-scoped request")
		}
		return scope{kind: scopeByID, id: r.ProcessDefinitionID}, nil
	}

	switch {
	case r.TenantID != "" && r.WithoutTenant:
		return scope{}, errors.InvalidParameterf("cannot combine an explicit tenant id with a without-tenant filter")
	case r.TenantID != "":
		return scope{kind: scopeByKeyTenant, key: r.ProcessDefinitionKey, tenantID: r.TenantID}, nil
	case r.WithoutTenant:
		return scope{kind: scopeByKeyWithoutTenant, key: r.ProcessDefinitionKey}, nil
	default:
		return scope{kind: scopeByKeyAllTenants, key: r.ProcessDefinitionKey}, nil
	}
}

// tenantFilter implements the tenant-scope query vocabulary: an explicit
// tenant set, "without tenant", or "all tenants" (no filter).
type tenantFilter struct {
	kind      tenantFilterKind
	tenantIDs []string
}

type tenantFilterKind int

const (
	tenantAll tenantFilterKind = iota
	tenantIn
	tenantWithout
)

// TenantIn filters to the given explicit tenant set.
func TenantIn(tenantIDs ...string) tenantFilter {
	return tenantFilter{kind: tenantIn, tenantIDs: tenantIDs}
}

// WithoutTenant filters to rows belonging to no tenant.
func WithoutTenant() tenantFilter {
	return tenantFilter{kind: tenantWithout}
}

// AllTenants applies no tenant filter.
func AllTenants() tenantFilter {
	return tenantFilter{kind: tenantAll}
}

// clause renders the filter as a SQL predicate fragment plus its
// arguments. The empty fragment means no restriction.
func (f tenantFilter) clause() (string, []any) {
	switch f.kind {
	case tenantIn:
		if len(f.tenantIDs) == 0 {
			return "", nil
		}
		placeholders := ""
		args := make([]any, 0, len(f.tenantIDs))
		for i, id := range f.tenantIDs {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, id)
		}
		return "tenant_id IN (" + placeholders + ")", args
	case tenantWithout:
		return "(tenant_id IS NULL OR tenant_id = '')", nil
	default:
		return "", nil
	}
}

// tenants translates a validated key scope into the query vocabulary.
func (s scope) tenants() tenantFilter {
	switch s.kind {
	case scopeByKeyTenant:
		return TenantIn(s.tenantID)
	case scopeByKeyWithoutTenant:
		return WithoutTenant()
	default:
		return AllTenants()
	}
}
