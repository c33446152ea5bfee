package authz

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/stroyhub/authd/pkg/audit"
	"github.com/stroyhub/authd/pkg/httputil"
	"github.com/stroyhub/authd/pkg/observability"
)

// Handlers provides the HTTP surface of the authorization service: the
// check endpoint, effective permission queries and role administration.
type Handlers struct {
	engine   *Engine
	store    *Store // nil when running on a file catalog; admin routes are disabled
	contexts ContextStore
	auditLog audit.Logger
	logger   *observability.Logger
}

// NewHandlers creates the HTTP handlers
func NewHandlers(engine *Engine, store *Store, contexts ContextStore, auditLog audit.Logger, logger *observability.Logger) *Handlers {
	if auditLog == nil {
		auditLog = audit.NoopLogger{}
	}
	return &Handlers{
		engine:   engine,
		store:    store,
		contexts: contexts,
		auditLog: auditLog,
		logger:   logger,
	}
}

// RegisterRoutes registers all authorization routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Decision endpoints
	router.HandleFunc("/authz/check", h.Check).Methods("POST")
	router.HandleFunc("/authz/users/{id}/permissions", h.EffectivePermissions).Methods("GET")
	router.HandleFunc("/authz/users/{id}/roles", h.ListUserRoles).Methods("GET")

	if h.store == nil {
		return
	}

	// Role administration
	router.HandleFunc("/authz/roles", h.CreateRole).Methods("POST")
	router.HandleFunc("/authz/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/authz/roles/{id}", h.GetRole).Methods("GET")
	router.HandleFunc("/authz/roles/{id}", h.UpdateRole).Methods("PUT")
	router.HandleFunc("/authz/roles/{id}", h.DeleteRole).Methods("DELETE")
	router.HandleFunc("/authz/roles/{id}/deactivate", h.DeactivateRole).Methods("POST")

	// Assignments
	router.HandleFunc("/authz/users/{id}/roles", h.AssignRole).Methods("POST")
	router.HandleFunc("/authz/assignments/{id}", h.RevokeAssignment).Methods("DELETE")

	// Scope and module administration
	router.HandleFunc("/authz/contexts", h.CreateContext).Methods("POST")
	router.HandleFunc("/authz/contexts/{id}", h.GetContext).Methods("GET")
	router.HandleFunc("/authz/orgs/{org_id}/modules/{module}", h.SetModuleActive).Methods("PUT")

	// Audit trail
	router.HandleFunc("/authz/audit", h.SearchAudit).Methods("GET")
}

// CheckRequest is the body of POST /authz/check
type CheckRequest struct {
	UserID     int64             `json:"user_id"`
	Username   string            `json:"username,omitempty"`
	Blocked    bool              `json:"blocked,omitempty"`
	Permission string            `json:"permission"`
	ContextID  *int64            `json:"context_id,omitempty"`
	CheckType  string            `json:"check_type,omitempty"`
	OrgID      *int64            `json:"organization_id,omitempty"`
	ProjectID  *int64            `json:"project_id,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// CheckResponse is the decision payload returned by the check endpoint.
// Deny diagnostics carry the same body the enforcement middleware would
// render, so callers can propagate them verbatim.
type CheckResponse struct {
	Allowed      bool                   `json:"allowed"`
	MatchedRoles []string               `json:"matched_roles,omitempty"`
	CheckedAt    time.Time              `json:"checked_at"`
	Cached       bool                   `json:"cached"`
	Reason       map[string]interface{} `json:"reason,omitempty"`
	StatusCode   int                    `json:"status_code,omitempty"`
}

// Check evaluates a single authorization request
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	var body CheckRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if !httputil.RequirePositive(w, body.UserID, "user_id") {
		return
	}
	if !httputil.RequireNonEmpty(w, body.Permission, "permission") {
		return
	}

	user := User{ID: body.UserID, Username: body.Username, IsActive: !body.Blocked}
	req := NewRequest(user, body.Permission)

	if body.ContextID != nil {
		if h.contexts == nil {
			httputil.WriteBadRequest(w, "context_id is not supported without a context store")
			return
		}
		scope, err := h.contexts.GetContext(r.Context(), *body.ContextID)
		if err != nil {
			httputil.WriteNotFoundError(w, "context not found")
			return
		}
		req = req.WithContext(scope)
	}

	meta := Meta{
		CheckType:      CheckType(body.CheckType),
		OrganizationID: body.OrgID,
		ProjectID:      body.ProjectID,
		Extra:          body.Extra,
	}
	if meta.CheckType == "" {
		meta.CheckType = CheckDefault
	}
	req = req.WithMeta(meta)

	decision, err := h.engine.Authorize(r.Context(), req)
	if err != nil {
		h.logger.WithError(err).Error("authorization check failed")
		httputil.WriteInternalError(w, err)
		return
	}

	resp := CheckResponse{
		Allowed:      decision.Allowed,
		MatchedRoles: decision.MatchedRoles,
		CheckedAt:    decision.CheckedAt,
		Cached:       decision.Cached,
	}
	if decision.Reason != nil {
		resp.Reason = decision.Reason.HTTPResponse()
		resp.StatusCode = decision.Reason.StatusCode()
		h.recordDenial(r, body.UserID, decision.Reason)
	}
	httputil.WriteJSONOrError(w, http.StatusOK, resp, "encode check response")
}

func (h *Handlers) recordDenial(r *http.Request, userID int64, reason DenyReason) {
	event := audit.NewEvent(audit.EventTypeAccessDenied, audit.EventStatusDenied)
	event.UserID = &userID
	event.ResourceType = audit.ResourceTypeUser
	event.ResourceID = strconv.FormatInt(userID, 10)
	event.Message = reason.Error()
	event.Details = reason.LoggingData()
	if err := h.auditLog.Log(r.Context(), event); err != nil {
		h.logger.WithError(err).Warn("failed to record denial audit event")
	}
}

// EffectivePermissions returns the merged permission set of a user
func (h *Handlers) EffectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	scope, ok := h.scopeFromQuery(w, r)
	if !ok {
		return
	}

	perms, err := h.engine.EffectivePermissions(r.Context(), userID, scope)
	if err != nil {
		if reason, isDeny := err.(DenyReason); isDeny {
			WriteDenial(w, reason)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, map[string]interface{}{
		"user_id":            userID,
		"permissions":        perms.All(),
		"system_permissions": perms.SystemPermissions(),
	}, "encode permissions")
}

// ListUserRoles returns the active role assignments of a user
func (h *Handlers) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	scope, ok := h.scopeFromQuery(w, r)
	if !ok {
		return
	}

	res, err := h.engine.resolver.Resolve(r.Context(), userID, scope)
	if err != nil {
		if reason, isDeny := err.(DenyReason); isDeny {
			WriteDenial(w, reason)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, map[string]interface{}{
		"user_id":       userID,
		"roles":         res.Roles,
		"expired_roles": res.ExpiredSlugs,
	}, "encode roles")
}

func (h *Handlers) scopeFromQuery(w http.ResponseWriter, r *http.Request) (*Context, bool) {
	contextID, err := httputil.ParseQueryInt64(r, "context_id", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return nil, false
	}
	if contextID == 0 {
		return nil, true
	}
	if h.contexts == nil {
		httputil.WriteBadRequest(w, "context_id is not supported without a context store")
		return nil, false
	}
	scope, err := h.contexts.GetContext(r.Context(), contextID)
	if err != nil {
		httputil.WriteNotFoundError(w, "context not found")
		return nil, false
	}
	return scope, true
}

// CreateRoleRequest is the body for role creation and update
type CreateRoleRequest struct {
	Slug              string              `json:"slug"`
	Name              string              `json:"name"`
	Description       string              `json:"description,omitempty"`
	OrganizationID    *int64              `json:"organization_id,omitempty"`
	SystemPermissions []string            `json:"system_permissions,omitempty"`
	ModulePermissions map[string][]string `json:"module_permissions,omitempty"`
}

// CreateRole creates a custom organization role
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	var body CreateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if !httputil.RequireNonEmpty(w, body.Slug, "slug") || !httputil.RequireNonEmpty(w, body.Name, "name") {
		return
	}

	role := &Role{
		Slug:              body.Slug,
		Name:              body.Name,
		Description:       body.Description,
		OrganizationID:    body.OrganizationID,
		IsSystem:          body.OrganizationID == nil,
		IsActive:          true,
		SystemPermissions: body.SystemPermissions,
		ModulePermissions: body.ModulePermissions,
	}
	if actor, ok := UserFromContext(r.Context()); ok {
		role.CreatedBy = &actor.ID
	}

	if err := h.store.CreateRole(r.Context(), role); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordMutation(r, audit.EventTypeRoleCreate, audit.ResourceTypeRole, strconv.FormatInt(role.ID, 10), "role created", map[string]interface{}{"slug": role.Slug})
	httputil.WriteJSONOrError(w, http.StatusCreated, role, "encode role")
}

// ListRoles lists roles, optionally filtered by organization
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	var orgID *int64
	if v, err := httputil.ParseQueryInt64(r, "organization_id", 0); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	} else if v > 0 {
		orgID = &v
	}

	roles, err := h.store.ListRoles(r.Context(), orgID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSONOrError(w, http.StatusOK, map[string]interface{}{"roles": roles}, "encode roles")
}

// GetRole returns a single role by ID
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.store.GetRoleByID(r.Context(), id)
	if err != nil {
		httputil.WriteNotFoundError(w, "role not found")
		return
	}
	httputil.WriteJSONOrError(w, http.StatusOK, role, "encode role")
}

// UpdateRole updates a role's definition
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.store.GetRoleByID(r.Context(), id)
	if err != nil {
		httputil.WriteNotFoundError(w, "role not found")
		return
	}
	if role.IsSystem {
		httputil.WriteForbidden(w, "built-in roles cannot be modified")
		return
	}

	var body CreateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if body.Name != "" {
		role.Name = body.Name
	}
	if body.Description != "" {
		role.Description = body.Description
	}
	if body.SystemPermissions != nil {
		role.SystemPermissions = body.SystemPermissions
	}
	if body.ModulePermissions != nil {
		role.ModulePermissions = body.ModulePermissions
	}

	if err := h.store.UpdateRole(r.Context(), role); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordMutation(r, audit.EventTypeRoleUpdate, audit.ResourceTypeRole, strconv.FormatInt(role.ID, 10), "role updated", map[string]interface{}{"slug": role.Slug})
	httputil.WriteJSONOrError(w, http.StatusOK, role, "encode role")
}

// DeactivateRole marks a role inactive without deleting it
func (h *Handlers) DeactivateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.DeactivateRole(r.Context(), id); err != nil {
		httputil.WriteNotFoundError(w, "role not found")
		return
	}

	h.recordMutation(r, audit.EventTypeRoleDeactivate, audit.ResourceTypeRole, strconv.FormatInt(id, 10), "role deactivated", nil)
	httputil.WriteNoContent(w)
}

// DeleteRole removes a custom role
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.DeleteRole(r.Context(), id); err != nil {
		httputil.WriteConflict(w, err.Error())
		return
	}

	h.recordMutation(r, audit.EventTypeRoleDelete, audit.ResourceTypeRole, strconv.FormatInt(id, 10), "role deleted", nil)
	httputil.WriteNoContent(w)
}

// AssignRoleRequest is the body for granting a role to a user
type AssignRoleRequest struct {
	RoleID    int64      `json:"role_id"`
	ContextID *int64     `json:"context_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AssignRole grants a role to a user, optionally scoped and time-boxed
func (h *Handlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var body AssignRoleRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if !httputil.RequirePositive(w, body.RoleID, "role_id") {
		return
	}

	role, err := h.store.GetRoleByID(r.Context(), body.RoleID)
	if err != nil {
		httputil.WriteNotFoundError(w, "role not found")
		return
	}

	assignment := &Assignment{
		UserID:    userID,
		RoleID:    role.ID,
		RoleSlug:  role.Slug,
		ContextID: body.ContextID,
		ExpiresAt: body.ExpiresAt,
		GrantedAt: time.Now().UTC(),
	}
	if actor, ok := UserFromContext(r.Context()); ok {
		assignment.GrantedBy = &actor.ID
	}

	if err := h.store.AssignRole(r.Context(), assignment); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.engine.InvalidateUser(r.Context(), userID)
	h.recordMutation(r, audit.EventTypeRoleAssign, audit.ResourceTypeAssignment, strconv.FormatInt(assignment.ID, 10), "role granted", map[string]interface{}{
		"user_id": userID,
		"role":    role.Slug,
	})
	httputil.WriteJSONOrError(w, http.StatusCreated, assignment, "encode assignment")
}

// RevokeAssignment removes a role assignment
func (h *Handlers) RevokeAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	ownerID, err := h.store.AssignmentUser(r.Context(), id)
	if err != nil {
		httputil.WriteNotFoundError(w, "assignment not found")
		return
	}

	if err := h.store.RevokeAssignment(r.Context(), id); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.engine.InvalidateUser(r.Context(), ownerID)
	h.recordMutation(r, audit.EventTypeRoleRevoke, audit.ResourceTypeAssignment, strconv.FormatInt(id, 10), "role revoked", map[string]interface{}{"user_id": ownerID})
	httputil.WriteNoContent(w)
}

// CreateContextRequest is the body for registering a scope node
type CreateContextRequest struct {
	Type       string `json:"type"`
	ResourceID int64  `json:"resource_id"`
	ParentID   *int64 `json:"parent_id,omitempty"`
}

// CreateContext registers an organization or project scope node
func (h *Handlers) CreateContext(w http.ResponseWriter, r *http.Request) {
	var body CreateContextRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}

	ctxType := ContextType(body.Type)
	if ctxType != ContextOrganization && ctxType != ContextProject {
		httputil.WriteBadRequest(w, "type must be organization or project")
		return
	}
	if !httputil.RequirePositive(w, body.ResourceID, "resource_id") {
		return
	}

	node := &Context{Type: ctxType, ResourceID: body.ResourceID}
	if body.ParentID != nil {
		parent, err := h.store.GetContext(r.Context(), *body.ParentID)
		if err != nil {
			httputil.WriteNotFoundError(w, "parent context not found")
			return
		}
		node.Parent = parent
	}

	if err := h.store.CreateContext(r.Context(), node); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordMutation(r, audit.EventTypeContextCreate, audit.ResourceTypeContext, strconv.FormatInt(node.ID, 10), "context created", map[string]interface{}{"type": string(node.Type)})
	httputil.WriteJSONOrError(w, http.StatusCreated, node, "encode context")
}

// GetContext returns a scope node with its parent chain
func (h *Handlers) GetContext(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	node, err := h.store.GetContext(r.Context(), id)
	if err != nil {
		httputil.WriteNotFoundError(w, "context not found")
		return
	}
	httputil.WriteJSONOrError(w, http.StatusOK, node, "encode context")
}

// SetModuleActiveRequest is the body for toggling a module
type SetModuleActiveRequest struct {
	Active bool `json:"active"`
}

// SetModuleActive enables or disables a module for an organization
func (h *Handlers) SetModuleActive(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	module, ok := httputil.ParsePathStringOrError(w, r, "module")
	if !ok {
		return
	}

	var body SetModuleActiveRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}

	if err := h.store.SetModuleActive(r.Context(), orgID, module, body.Active); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordMutation(r, audit.EventTypeModuleToggle, audit.ResourceTypeModule, module, "module toggled", map[string]interface{}{
		"organization_id": orgID,
		"active":          body.Active,
	})
	httputil.WriteJSONOrError(w, http.StatusOK, map[string]interface{}{
		"organization_id": orgID,
		"module":          module,
		"active":          body.Active,
	}, "encode module state")
}

// SearchAudit queries the audit trail
func (h *Handlers) SearchAudit(w http.ResponseWriter, r *http.Request) {
	filter := audit.SearchFilter{}

	if v, err := httputil.ParseQueryInt64(r, "user_id", 0); err == nil && v > 0 {
		filter.UserID = &v
	}
	if v := httputil.ParseQueryString(r, "event_type", ""); v != "" {
		filter.EventTypes = []audit.EventType{audit.EventType(v)}
	}
	if v, err := httputil.ParseQueryInt64(r, "limit", 100); err == nil {
		filter.Limit = int(v)
	}
	if v, err := httputil.ParseQueryInt64(r, "offset", 0); err == nil {
		filter.Offset = int(v)
	}

	events, err := h.auditLog.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSONOrError(w, http.StatusOK, map[string]interface{}{"events": events}, "encode audit events")
}

func (h *Handlers) recordMutation(r *http.Request, eventType audit.EventType, resourceType audit.ResourceType, resourceID, message string, details map[string]interface{}) {
	h.engine.ObserveMutation(string(eventType))
	event := audit.NewEvent(eventType, audit.EventStatusSuccess)
	if actor, ok := UserFromContext(r.Context()); ok {
		event.UserID = &actor.ID
	}
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	event.Details = details
	if err := h.auditLog.Log(r.Context(), event); err != nil {
		h.logger.WithError(err).Warn("failed to record audit event")
	}
}
