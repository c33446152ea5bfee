package authz

import (
	"sort"
	"strings"
)

// Wildcard is the universal grant token. At the top level it grants every
// system permission; inside a module's action list it grants every action
// of that module.
const Wildcard = "*"

// PermissionSet is an immutable value type holding a role's system
// permissions (flat list, wildcard-capable) and module permissions
// (module name to action list, wildcard-capable).
//
// All operations return new instances; a PermissionSet is never mutated
// after construction, which makes it safe to share across goroutines.
type PermissionSet struct {
	system  map[string]struct{}
	modules map[string]map[string]struct{}
}

// NewPermissionSet builds a PermissionSet from a role's stored definition.
// Input slices and maps are copied and deduplicated.
func NewPermissionSet(system []string, modules map[string][]string) PermissionSet {
	ps := PermissionSet{
		system:  make(map[string]struct{}, len(system)),
		modules: make(map[string]map[string]struct{}, len(modules)),
	}
	for _, p := range system {
		if p == "" {
			continue
		}
		ps.system[p] = struct{}{}
	}
	for module, actions := range modules {
		if module == "" {
			continue
		}
		set := make(map[string]struct{}, len(actions))
		for _, a := range actions {
			if a == "" {
				continue
			}
			set[a] = struct{}{}
		}
		if len(set) > 0 {
			ps.modules[module] = set
		}
	}
	return ps
}

// SystemPermissions returns the raw system permission entries, sorted.
func (ps PermissionSet) SystemPermissions() []string {
	out := make([]string, 0, len(ps.system))
	for p := range ps.system {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ModulePermissions returns a copy of the raw module permission entries
// with each action list sorted.
func (ps PermissionSet) ModulePermissions() map[string][]string {
	out := make(map[string][]string, len(ps.modules))
	for module, actions := range ps.modules {
		list := make([]string, 0, len(actions))
		for a := range actions {
			list = append(list, a)
		}
		sort.Strings(list)
		out[module] = list
	}
	return out
}

// All flattens the set into a sorted, duplicate-free list of permission
// strings: system entries verbatim, module entries as "module.action"
// (a module-wide wildcard flattens to "module.*").
func (ps PermissionSet) All() []string {
	seen := make(map[string]struct{}, len(ps.system))
	for p := range ps.system {
		seen[p] = struct{}{}
	}
	for module, actions := range ps.modules {
		for a := range actions {
			seen[module+"."+a] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IsEmpty reports whether the set grants nothing at all.
func (ps PermissionSet) IsEmpty() bool {
	return len(ps.system) == 0 && len(ps.modules) == 0
}

// HasSystemPermission reports whether the flat system permission is
// granted: by the top-level wildcard, by exact match, or by a stored
// wildcard pattern. Comparison is case-sensitive and an empty permission
// never matches.
func (ps PermissionSet) HasSystemPermission(permission string) bool {
	if permission == "" {
		return false
	}
	if _, ok := ps.system[Wildcard]; ok {
		return true
	}
	if _, ok := ps.system[permission]; ok {
		return true
	}
	for p := range ps.system {
		if strings.Contains(p, Wildcard) && matchPattern(p, permission) {
			return true
		}
	}
	return false
}

// HasModulePermission reports whether the given action is granted within
// the given module. A module absent from the set grants nothing; a
// wildcard entry in the module's action list grants every action.
func (ps PermissionSet) HasModulePermission(module, action string) bool {
	if module == "" || action == "" {
		return false
	}
	actions, ok := ps.modules[module]
	if !ok {
		return false
	}
	if _, ok := actions[Wildcard]; ok {
		return true
	}
	if _, ok := actions[action]; ok {
		return true
	}
	for a := range actions {
		if strings.Contains(a, Wildcard) && matchPattern(a, action) {
			return true
		}
	}
	return false
}

// HasPermission checks the permission against the system entries first;
// when the string carries a dot it additionally falls back to the module
// entries, splitting at the first dot into module and action (so
// "payments.invoice.view" is module "payments", action "invoice.view").
func (ps PermissionSet) HasPermission(permission string) bool {
	if permission == "" {
		return false
	}
	if ps.HasSystemPermission(permission) {
		return true
	}
	parts := strings.SplitN(permission, ".", 2)
	if len(parts) != 2 {
		return false
	}
	return ps.HasModulePermission(parts[0], parts[1])
}

// Merge returns the set union: system permissions unioned, module
// permissions unioned per module. Neither receiver nor argument changes.
func (ps PermissionSet) Merge(other PermissionSet) PermissionSet {
	merged := PermissionSet{
		system:  make(map[string]struct{}, len(ps.system)+len(other.system)),
		modules: make(map[string]map[string]struct{}, len(ps.modules)+len(other.modules)),
	}
	for p := range ps.system {
		merged.system[p] = struct{}{}
	}
	for p := range other.system {
		merged.system[p] = struct{}{}
	}
	for module, actions := range ps.modules {
		set := make(map[string]struct{}, len(actions))
		for a := range actions {
			set[a] = struct{}{}
		}
		merged.modules[module] = set
	}
	for module, actions := range other.modules {
		set, ok := merged.modules[module]
		if !ok {
			set = make(map[string]struct{}, len(actions))
			merged.modules[module] = set
		}
		for a := range actions {
			set[a] = struct{}{}
		}
	}
	return merged
}

// Intersect returns the raw set intersection: system permissions
// intersected, module action lists intersected per module. Modules left
// with no actions are dropped.
func (ps PermissionSet) Intersect(other PermissionSet) PermissionSet {
	out := PermissionSet{
		system:  make(map[string]struct{}),
		modules: make(map[string]map[string]struct{}),
	}
	for p := range ps.system {
		if _, ok := other.system[p]; ok {
			out.system[p] = struct{}{}
		}
	}
	for module, actions := range ps.modules {
		otherActions, ok := other.modules[module]
		if !ok {
			continue
		}
		set := make(map[string]struct{})
		for a := range actions {
			if _, ok := otherActions[a]; ok {
				set[a] = struct{}{}
			}
		}
		if len(set) > 0 {
			out.modules[module] = set
		}
	}
	return out
}

// Contains reports whether every permission in other is satisfied by the
// receiver. Satisfaction goes through the Has* predicates, so a wildcard
// grant in the receiver covers concrete entries in other.
func (ps PermissionSet) Contains(other PermissionSet) bool {
	for p := range other.system {
		if !ps.HasSystemPermission(p) {
			return false
		}
	}
	for module, actions := range other.modules {
		for a := range actions {
			if !ps.HasModulePermission(module, a) {
				return false
			}
		}
	}
	return true
}

// matchPattern matches s against a glob-style pattern where Wildcard
// stands for any run of characters, anywhere in the string. Patterns are
// deliberately not anchored to module/action boundaries; stored role data
// may rely on the permissive behavior.
func matchPattern(pattern, s string) bool {
	if pattern == s {
		return true
	}
	if !strings.Contains(pattern, Wildcard) {
		return false
	}
	parts := strings.Split(pattern, Wildcard)
	first, last := parts[0], parts[len(parts)-1]
	if !strings.HasPrefix(s, first) {
		return false
	}
	s = s[len(first):]
	if !strings.HasSuffix(s, last) {
		return false
	}
	s = s[:len(s)-len(last)]
	for _, mid := range parts[1 : len(parts)-1] {
		idx := strings.Index(s, mid)
		if idx < 0 {
			return false
		}
		s = s[idx+len(mid):]
	}
	return true
}
