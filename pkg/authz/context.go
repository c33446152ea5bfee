package authz

// ContextType identifies the kind of scope a Context represents.
type ContextType string

const (
	ContextOrganization ContextType = "organization"
	ContextProject      ContextType = "project"
)

// Context is a node in the hierarchical authorization scope graph. A
// project context points back at its enclosing organization context via
// Parent; the back-reference is for lookup only, the parent is not owned.
//
// Contexts are read-only views over persisted scope data. Chains are
// acyclic and in practice at most two levels deep.
type Context struct {
	ID         int64       `json:"id"`
	Type       ContextType `json:"type"`
	ResourceID int64       `json:"resource_id"`
	Parent     *Context    `json:"parent,omitempty"`
}

// ResolveOrganizationID returns the organization this context is scoped
// to: its own resource for an organization context, the parent's resource
// for a project context whose parent is an organization. A project with a
// missing or mistyped parent resolves to nil; callers treat nil as "no
// scope", not as an error.
func (c *Context) ResolveOrganizationID() *int64 {
	if c == nil {
		return nil
	}
	switch c.Type {
	case ContextOrganization:
		id := c.ResourceID
		return &id
	case ContextProject:
		if c.Parent != nil && c.Parent.Type == ContextOrganization {
			id := c.Parent.ResourceID
			return &id
		}
	}
	return nil
}

// ResolveProjectID returns the project resource for a project context,
// nil otherwise.
func (c *Context) ResolveProjectID() *int64 {
	if c == nil || c.Type != ContextProject {
		return nil
	}
	id := c.ResourceID
	return &id
}

// chainIDs returns the context IDs walked from this context up the parent
// chain, nearest first.
func (c *Context) chainIDs() []int64 {
	var ids []int64
	for node := c; node != nil; node = node.Parent {
		ids = append(ids, node.ID)
	}
	return ids
}
