package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUser = User{ID: 10, Username: "petrov", IsActive: true}

func TestRequest_Immutability(t *testing.T) {
	original := NewRequest(testUser, "payments.view")
	modified := original.WithPermission("payments.edit")

	assert.Equal(t, "payments.view", original.Permission())
	assert.Equal(t, "payments.edit", modified.Permission())

	scope := &Context{ID: 1, Type: ContextOrganization, ResourceID: 42}
	scoped := original.WithContext(scope)
	assert.Nil(t, original.Context())
	assert.Equal(t, scope, scoped.Context())

	withMeta := original.WithMeta(Meta{CheckType: CheckRole})
	assert.Equal(t, CheckDefault, original.Meta().CheckType)
	assert.Equal(t, CheckRole, withMeta.Meta().CheckType)
}

func TestRequest_Kind(t *testing.T) {
	tests := []struct {
		permission string
		meta       Meta
		want       PermissionKind
	}{
		{"payments.invoice.view", Meta{}, KindModule},
		{"payments.view", Meta{}, KindModule},
		{"role:admin", Meta{}, KindRole},
		{"interface:admin", Meta{}, KindInterface},
		{"users_manage", Meta{}, KindSystem},
		{"foreman", Meta{CheckType: CheckRole}, KindRole},
		{"site", Meta{CheckType: CheckInterface}, KindInterface},
		// a dotted permission stays a module check even when the action
		// segment carries a marker prefix
		{"reports.role:export", Meta{}, KindModule},
	}
	for _, tt := range tests {
		req := NewRequest(testUser, tt.permission).WithMeta(tt.meta)
		assert.Equal(t, tt.want, req.Kind(), "permission %q", tt.permission)
	}
}

func TestRequest_ModuleAction(t *testing.T) {
	req := NewRequest(testUser, "payments.invoice.view")
	assert.Equal(t, "payments", req.Module())
	assert.Equal(t, "invoice.view", req.Action())

	flat := NewRequest(testUser, "users_manage")
	assert.Equal(t, "", flat.Module())
	assert.Equal(t, "", flat.Action())
}

func TestRequest_RoleSlugAndInterfaceName(t *testing.T) {
	assert.Equal(t, "admin", NewRequest(testUser, "role:admin").RoleSlug())
	assert.Equal(t, "site", NewRequest(testUser, "interface:site").InterfaceName())

	// without the prefix the raw permission doubles as the slug
	req := NewRequest(testUser, "foreman").WithMeta(Meta{CheckType: CheckRole})
	assert.Equal(t, "foreman", req.RoleSlug())
}

func TestRequest_OrganizationID(t *testing.T) {
	org := &Context{ID: 1, Type: ContextOrganization, ResourceID: 42}
	req := NewRequest(testUser, "payments.view").WithContext(org)

	id := req.OrganizationID()
	require.NotNil(t, id)
	assert.Equal(t, int64(42), *id)

	// metadata fallback when no context is attached
	metaOrg := int64(99)
	req = NewRequest(testUser, "payments.view").WithMeta(Meta{OrganizationID: &metaOrg})
	id = req.OrganizationID()
	require.NotNil(t, id)
	assert.Equal(t, int64(99), *id)

	// the context chain wins over metadata
	req = NewRequest(testUser, "payments.view").WithContext(org).WithMeta(Meta{OrganizationID: &metaOrg})
	id = req.OrganizationID()
	require.NotNil(t, id)
	assert.Equal(t, int64(42), *id)
}

func TestRequest_Hash(t *testing.T) {
	a := NewRequest(testUser, "payments.view")
	b := NewRequest(testUser, "payments.view")
	assert.Equal(t, a.Hash(), b.Hash(), "hash must not depend on construction time")

	assert.NotEqual(t, a.Hash(), a.WithPermission("payments.edit").Hash())

	scope := &Context{ID: 5, Type: ContextProject, ResourceID: 7}
	assert.NotEqual(t, a.Hash(), a.WithContext(scope).Hash())

	assert.NotEqual(t, a.Hash(), a.WithMeta(Meta{CheckType: CheckRole}).Hash())

	// extra map participates, ordering does not matter
	x := a.WithMeta(Meta{Extra: map[string]string{"k1": "v1", "k2": "v2"}})
	y := a.WithMeta(Meta{Extra: map[string]string{"k2": "v2", "k1": "v1"}})
	assert.Equal(t, x.Hash(), y.Hash())
	assert.NotEqual(t, a.Hash(), x.Hash())
}
