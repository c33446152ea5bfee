package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_ResolveOrganizationID(t *testing.T) {
	org := &Context{ID: 1, Type: ContextOrganization, ResourceID: 42}
	project := &Context{ID: 2, Type: ContextProject, ResourceID: 7, Parent: org}

	id := org.ResolveOrganizationID()
	require.NotNil(t, id)
	assert.Equal(t, int64(42), *id)

	id = project.ResolveOrganizationID()
	require.NotNil(t, id)
	assert.Equal(t, int64(42), *id)
}

func TestContext_ResolveOrganizationID_Orphan(t *testing.T) {
	orphan := &Context{ID: 2, Type: ContextProject, ResourceID: 7}
	assert.Nil(t, orphan.ResolveOrganizationID())

	// a mistyped parent does not resolve either
	badParent := &Context{ID: 3, Type: ContextProject, ResourceID: 9}
	nested := &Context{ID: 2, Type: ContextProject, ResourceID: 7, Parent: badParent}
	assert.Nil(t, nested.ResolveOrganizationID())
}

func TestContext_ResolveOrganizationID_Nil(t *testing.T) {
	var c *Context
	assert.Nil(t, c.ResolveOrganizationID())
	assert.Nil(t, c.ResolveProjectID())
}

func TestContext_ResolveProjectID(t *testing.T) {
	org := &Context{ID: 1, Type: ContextOrganization, ResourceID: 42}
	project := &Context{ID: 2, Type: ContextProject, ResourceID: 7, Parent: org}

	assert.Nil(t, org.ResolveProjectID())

	id := project.ResolveProjectID()
	require.NotNil(t, id)
	assert.Equal(t, int64(7), *id)
}

func TestContext_ChainIDs(t *testing.T) {
	org := &Context{ID: 1, Type: ContextOrganization, ResourceID: 42}
	project := &Context{ID: 2, Type: ContextProject, ResourceID: 7, Parent: org}

	assert.Equal(t, []int64{2, 1}, project.chainIDs())
	assert.Equal(t, []int64{1}, org.chainIDs())
}
