package authz

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PermissionKind classifies what a permission string asks for.
type PermissionKind string

const (
	KindSystem    PermissionKind = "system"
	KindModule    PermissionKind = "module"
	KindRole      PermissionKind = "role"
	KindInterface PermissionKind = "interface"
)

const (
	rolePrefix      = "role:"
	interfacePrefix = "interface:"
)

// CheckType marks a request as a role or interface check when the
// permission string itself does not carry the prefix.
type CheckType string

const (
	CheckDefault   CheckType = ""
	CheckRole      CheckType = "role"
	CheckInterface CheckType = "interface"
)

// User is the subject of an authorization check. It is a reference to an
// externally stored identity; the engine only needs the id and the
// blocked/active flag.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
	IsActive bool   `json:"is_active"`
}

// Meta carries the well-known optional request context that does not come
// from the scope graph: an explicit organization or project id when no
// Context is attached, and a check-type marker. Extra is an escape hatch
// for open-ended metadata; it participates in the request hash but never
// in the decision.
type Meta struct {
	CheckType      CheckType         `json:"check_type,omitempty"`
	OrganizationID *int64            `json:"organization_id,omitempty"`
	ProjectID      *int64            `json:"project_id,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// Request captures one authorization check: the user, the requested
// permission string, an optional scope context, additional metadata and
// the construction timestamp. Requests are immutable; the With* methods
// return modified copies.
type Request struct {
	user        User
	permission  string
	scope       *Context
	meta        Meta
	requestedAt time.Time
}

// NewRequest builds a request for one check. The request timestamps
// itself at construction; the timestamp feeds diagnostics only, never the
// decision.
func NewRequest(user User, permission string) Request {
	return Request{
		user:        user,
		permission:  permission,
		requestedAt: time.Now().UTC(),
	}
}

// WithPermission returns a copy of the request asking for a different
// permission. The receiver is unchanged.
func (r Request) WithPermission(permission string) Request {
	r.permission = permission
	return r
}

// WithContext returns a copy of the request scoped to the given context.
func (r Request) WithContext(scope *Context) Request {
	r.scope = scope
	return r
}

// WithMeta returns a copy of the request carrying the given metadata.
func (r Request) WithMeta(meta Meta) Request {
	r.meta = meta
	return r
}

func (r Request) User() User             { return r.user }
func (r Request) Permission() string     { return r.permission }
func (r Request) Context() *Context      { return r.scope }
func (r Request) Meta() Meta             { return r.meta }
func (r Request) RequestedAt() time.Time { return r.requestedAt }

// OrganizationID resolves the organization scope from the context chain,
// falling back to the explicit metadata value.
func (r Request) OrganizationID() *int64 {
	if id := r.scope.ResolveOrganizationID(); id != nil {
		return id
	}
	return r.meta.OrganizationID
}

// ProjectID resolves the project scope from the context, falling back to
// the explicit metadata value.
func (r Request) ProjectID() *int64 {
	if id := r.scope.ResolveProjectID(); id != nil {
		return id
	}
	return r.meta.ProjectID
}

// Kind classifies the permission string. A dotted permission is always a
// module check, even when the action segment happens to contain a marker
// prefix; role and interface detection follow, and everything else is a
// plain system permission. The ordering is load-bearing: changing it
// would misclassify permissions like "reports.role:export".
func (r Request) Kind() PermissionKind {
	if strings.Contains(r.permission, ".") {
		return KindModule
	}
	if r.IsRoleCheck() {
		return KindRole
	}
	if r.IsInterfaceCheck() {
		return KindInterface
	}
	return KindSystem
}

// IsRoleCheck reports whether the request asks for role possession rather
// than a permission grant.
func (r Request) IsRoleCheck() bool {
	return strings.HasPrefix(r.permission, rolePrefix) || r.meta.CheckType == CheckRole
}

// IsInterfaceCheck reports whether the request asks for access to a UI
// surface.
func (r Request) IsInterfaceCheck() bool {
	return strings.HasPrefix(r.permission, interfacePrefix) || r.meta.CheckType == CheckInterface
}

// RoleSlug returns the role slug for a role check, stripping the marker
// prefix when present.
func (r Request) RoleSlug() string {
	return strings.TrimPrefix(r.permission, rolePrefix)
}

// InterfaceName returns the surface name for an interface check.
func (r Request) InterfaceName() string {
	return strings.TrimPrefix(r.permission, interfacePrefix)
}

// Module returns the module segment of a dotted permission, "" otherwise.
func (r Request) Module() string {
	parts := strings.SplitN(r.permission, ".", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[0]
}

// Action returns everything after the first dot of a dotted permission,
// "" otherwise.
func (r Request) Action() string {
	parts := strings.SplitN(r.permission, ".", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// Hash returns a stable digest over the user id, permission, context id
// and metadata, suitable as a memoization key for repeated checks within
// one request lifecycle. The timestamp is deliberately excluded.
func (r Request) Hash() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(r.user.ID, 10))
	b.WriteByte('|')
	b.WriteString(r.permission)
	b.WriteByte('|')
	if r.scope != nil {
		b.WriteString(strconv.FormatInt(r.scope.ID, 10))
	} else {
		b.WriteByte('-')
	}
	b.WriteByte('|')
	b.WriteString(string(r.meta.CheckType))
	b.WriteByte('|')
	writeOptionalID(&b, r.meta.OrganizationID)
	b.WriteByte('|')
	writeOptionalID(&b, r.meta.ProjectID)
	if len(r.meta.Extra) > 0 {
		keys := make([]string, 0, len(r.meta.Extra))
		for k := range r.meta.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "|%s=%s", k, r.meta.Extra[k])
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func writeOptionalID(b *strings.Builder, id *int64) {
	if id == nil {
		b.WriteByte('-')
		return
	}
	b.WriteString(strconv.FormatInt(*id, 10))
}
