package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRoleStore is an in-memory RoleStore for resolver and engine tests.
type fakeRoleStore struct {
	roles       map[int64]*Role
	assignments map[int64][]Assignment
}

func newFakeRoleStore() *fakeRoleStore {
	return &fakeRoleStore{
		roles:       make(map[int64]*Role),
		assignments: make(map[int64][]Assignment),
	}
}

func (s *fakeRoleStore) addRole(role Role) {
	s.roles[role.ID] = &role
}

func (s *fakeRoleStore) assign(userID int64, a Assignment) {
	a.UserID = userID
	if a.RoleSlug == "" {
		if role, ok := s.roles[a.RoleID]; ok {
			a.RoleSlug = role.Slug
		}
	}
	s.assignments[userID] = append(s.assignments[userID], a)
}

func (s *fakeRoleStore) GetRoleByID(_ context.Context, id int64) (*Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return nil, ErrRoleNotFound
	}
	copied := *role
	return &copied, nil
}

func (s *fakeRoleStore) GetRoleBySlug(_ context.Context, slug string, organizationID *int64) (*Role, error) {
	// org-scoped roles take precedence over system roles with the same slug
	var system *Role
	for _, role := range s.roles {
		if role.Slug != slug {
			continue
		}
		if organizationID != nil && role.OrganizationID != nil && *role.OrganizationID == *organizationID {
			copied := *role
			return &copied, nil
		}
		if role.OrganizationID == nil {
			system = role
		}
	}
	if system != nil {
		copied := *system
		return &copied, nil
	}
	return nil, ErrRoleNotFound
}

func (s *fakeRoleStore) ListUserAssignments(_ context.Context, userID int64) ([]Assignment, error) {
	return s.assignments[userID], nil
}

func fixedTime() time.Time {
	return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
}

func foremanRole() Role {
	return Role{
		ID:       1,
		Slug:     "foreman",
		Name:     "Foreman",
		IsSystem: true,
		IsActive: true,
		ModulePermissions: map[string][]string{
			"projects":  {"view", "progress.update"},
			"warehouse": {"view"},
		},
	}
}

func accountantRole() Role {
	return Role{
		ID:       2,
		Slug:     "accountant",
		Name:     "Accountant",
		IsSystem: true,
		IsActive: true,
		SystemPermissions: []string{"interface:office"},
		ModulePermissions: map[string][]string{
			"payments": {"*"},
		},
	}
}

func TestResolver_MergesApplicableRoles(t *testing.T) {
	store := newFakeRoleStore()
	store.addRole(foremanRole())
	store.addRole(accountantRole())
	store.assign(10, Assignment{ID: 1, RoleID: 1})
	store.assign(10, Assignment{ID: 2, RoleID: 2})

	resolver := NewResolver(store)
	res, err := resolver.Resolve(context.Background(), 10, nil)
	require.NoError(t, err)

	assert.Len(t, res.Roles, 2)
	assert.True(t, res.Permissions.HasPermission("projects.view"))
	assert.True(t, res.Permissions.HasPermission("payments.anything"))
	assert.True(t, res.HoldsRole("foreman"))
	assert.True(t, res.HoldsRole("accountant"))
	assert.Empty(t, res.ExpiredSlugs)
}

func TestResolver_ScopedAssignments(t *testing.T) {
	store := newFakeRoleStore()
	store.addRole(foremanRole())
	store.addRole(accountantRole())

	org := &Context{ID: 100, Type: ContextOrganization, ResourceID: 42}
	project := &Context{ID: 200, Type: ContextProject, ResourceID: 7, Parent: org}
	otherProjectID := int64(300)

	orgCtxID := org.ID
	store.assign(10, Assignment{ID: 1, RoleID: 1, ContextID: &orgCtxID})
	store.assign(10, Assignment{ID: 2, RoleID: 2, ContextID: &otherProjectID})

	resolver := NewResolver(store)

	// a project check sees roles granted on the parent organization
	res, err := resolver.Resolve(context.Background(), 10, project)
	require.NoError(t, err)
	assert.True(t, res.HoldsRole("foreman"))
	assert.False(t, res.HoldsRole("accountant"))

	// a check with no scope sees every assignment
	res, err = resolver.Resolve(context.Background(), 10, nil)
	require.NoError(t, err)
	assert.True(t, res.HoldsRole("foreman"))
	assert.True(t, res.HoldsRole("accountant"))
}

func TestResolver_GlobalAssignmentAppliesEverywhere(t *testing.T) {
	store := newFakeRoleStore()
	store.addRole(foremanRole())
	store.assign(10, Assignment{ID: 1, RoleID: 1}) // no context

	project := &Context{ID: 200, Type: ContextProject, ResourceID: 7}
	resolver := NewResolver(store)

	res, err := resolver.Resolve(context.Background(), 10, project)
	require.NoError(t, err)
	assert.True(t, res.HoldsRole("foreman"))
}

func TestResolver_ExpiredAssignmentsExcluded(t *testing.T) {
	store := newFakeRoleStore()
	store.addRole(foremanRole())
	store.addRole(accountantRole())

	past := fixedTime().Add(-time.Hour)
	store.assign(10, Assignment{ID: 1, RoleID: 1, ExpiresAt: &past})
	store.assign(10, Assignment{ID: 2, RoleID: 2})

	resolver := NewResolver(store)
	resolver.now = fixedTime

	res, err := resolver.Resolve(context.Background(), 10, nil)
	require.NoError(t, err)

	assert.False(t, res.HoldsRole("foreman"))
	assert.True(t, res.HoldsRole("accountant"))
	assert.Equal(t, []string{"foreman"}, res.ExpiredSlugs)
	assert.False(t, res.Permissions.HasPermission("projects.view"))
}

func TestResolver_FutureExpiryStillApplies(t *testing.T) {
	store := newFakeRoleStore()
	store.addRole(foremanRole())

	future := fixedTime().Add(time.Hour)
	store.assign(10, Assignment{ID: 1, RoleID: 1, ExpiresAt: &future})

	resolver := NewResolver(store)
	resolver.now = fixedTime

	res, err := resolver.Resolve(context.Background(), 10, nil)
	require.NoError(t, err)
	assert.True(t, res.HoldsRole("foreman"))
}

func TestResolver_InactiveRole(t *testing.T) {
	store := newFakeRoleStore()
	inactive := foremanRole()
	inactive.IsActive = false
	store.addRole(inactive)
	store.assign(10, Assignment{ID: 1, RoleID: 1})

	resolver := NewResolver(store)
	_, err := resolver.Resolve(context.Background(), 10, nil)

	var rnf *RoleNotFoundError
	require.ErrorAs(t, err, &rnf)
	assert.Equal(t, RoleLookupInactive, rnf.Lookup)
	assert.Equal(t, "foreman", rnf.Slug)
}

func TestResolver_DeletedRole(t *testing.T) {
	store := newFakeRoleStore()
	store.assign(10, Assignment{ID: 1, RoleID: 99, RoleSlug: "ghost"})

	resolver := NewResolver(store)

	// no scope: the lookup is reported as a system role miss
	_, err := resolver.Resolve(context.Background(), 10, nil)
	var rnf *RoleNotFoundError
	require.ErrorAs(t, err, &rnf)
	assert.Equal(t, RoleLookupSystem, rnf.Lookup)

	// org scope: reported as a custom role miss with the org attached
	org := &Context{ID: 100, Type: ContextOrganization, ResourceID: 42}
	_, err = resolver.Resolve(context.Background(), 10, org)
	require.ErrorAs(t, err, &rnf)
	assert.Equal(t, RoleLookupCustom, rnf.Lookup)
	require.NotNil(t, rnf.OrganizationID)
	assert.Equal(t, int64(42), *rnf.OrganizationID)
}

func TestResolver_DeduplicatesRoles(t *testing.T) {
	store := newFakeRoleStore()
	store.addRole(foremanRole())
	ctxID := int64(100)
	store.assign(10, Assignment{ID: 1, RoleID: 1})
	store.assign(10, Assignment{ID: 2, RoleID: 1, ContextID: &ctxID})

	resolver := NewResolver(store)
	res, err := resolver.Resolve(context.Background(), 10, nil)
	require.NoError(t, err)
	assert.Len(t, res.Roles, 1)
}

func TestResolution_RoleNames(t *testing.T) {
	res := &Resolution{Roles: []Role{{Slug: "foreman"}, {Slug: "accountant"}}}
	assert.Equal(t, []string{"foreman", "accountant"}, res.RoleNames())
}
