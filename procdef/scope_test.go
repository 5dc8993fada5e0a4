package procdef

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/cascade/errors"
)

func TestResolveScope(t *testing.T) {
	tests := []struct {
		name    string
		req     TransitionRequest
		want    scopeKind
		wantErr func(error) bool
	}{
		{
			name: "by id",
			req:  TransitionRequest{ProcessDefinitionID: "def-1"},
			want: scopeByID,
		},
		{
			name: "by key all tenants",
			req:  TransitionRequest{ProcessDefinitionKey: "order-process"},
			want: scopeByKeyAllTenants,
		},
		{
			name: "by key one tenant",
			req:  TransitionRequest{ProcessDefinitionKey: "order-process", TenantID: "tenant-one"},
			want: scopeByKeyTenant,
		},
		{
			name: "by key without tenant",
			req:  TransitionRequest{ProcessDefinitionKey: "order-process", WithoutTenant: true},
			want: scopeByKeyWithoutTenant,
		},
		{
			name:    "neither id nor key",
			req:     TransitionRequest{},
			wantErr: errors.IsInvalidParameterError,
		},
		{
			name:    "both id and key",
			req:     TransitionRequest{ProcessDefinitionID: "def-1", ProcessDefinitionKey: "order-process"},
			wantErr: errors.IsInvalidParameterError,
		},
		{
			name:    "id with tenant filter",
			req:     TransitionRequest{ProcessDefinitionID: "def-1", TenantID: "tenant-one"},
			wantErr: errors.IsBadRequestError,
		},
		{
			name:    "id with without-tenant filter",
			req:     TransitionRequest{ProcessDefinitionID: "def-1", WithoutTenant: true},
			wantErr: errors.IsBadRequestError,
		},
		{
			name:    "tenant and without-tenant together",
			req:     TransitionRequest{ProcessDefinitionKey: "order-process", TenantID: "tenant-one", WithoutTenant: true},
			wantErr: errors.IsInvalidParameterError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := tt.req.resolveScope()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sc.kind)
		})
	}
}

// The id-plus-tenant combination is rejected before any lookup, so the
// answer cannot depend on whether the definition's real tenant matches.
func TestIDScopeRejectsTenantFilterRegardlessOfActualTenant(t *testing.T) {
	matching := TransitionRequest{ProcessDefinitionID: "def-1", TenantID: "tenant-one"}
	mismatching := TransitionRequest{ProcessDefinitionID: "def-1", TenantID: "tenant-two"}

	_, errMatching := matching.resolveScope()
	_, errMismatching := mismatching.resolveScope()

	require.Error(t, errMatching)
	require.Error(t, errMismatching)
	assert.True(t, errors.IsBadRequestError(errMatching))
	assert.True(t, errors.IsBadRequestError(errMismatching))
	assert.Equal(t, errMatching.Error(), errMismatching.Error())
}

func TestTenantFilterClause(t *testing.T) {
	clause, args := TenantIn("tenant-one", "tenant-two").clause()
	assert.Equal(t, "tenant_id IN (?, ?)", clause)
	assert.Equal(t, []any{"tenant-one", "tenant-two"}, args)

	clause, args = WithoutTenant().clause()
	assert.Equal(t, "(tenant_id IS NULL OR tenant_id = '')", clause)
	assert.Empty(t, args)

	clause, args = AllTenants().clause()
	assert.Empty(t, clause)
	assert.Empty(t, args)
}
