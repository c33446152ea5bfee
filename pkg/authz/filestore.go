package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileCatalog is a file-backed role catalog for embedded and development
// deployments: role definitions and assignments live in YAML or JSON
// files in one directory and are hot-reloaded on change. It implements
// RoleStore, so the resolver does not care whether roles come from SQL
// or from disk.
type FileCatalog struct {
	dir     string
	watcher *fsnotify.Watcher

	mu          sync.RWMutex
	roles       []Role
	assignments []Assignment
}

type catalogFile struct {
	Roles       []catalogRole       `yaml:"roles" json:"roles"`
	Assignments []catalogAssignment `yaml:"assignments" json:"assignments"`
}

type catalogRole struct {
	Slug              string              `yaml:"slug" json:"slug"`
	Name              string              `yaml:"name" json:"name"`
	Description       string              `yaml:"description" json:"description"`
	OrganizationID    *int64              `yaml:"organization_id" json:"organization_id"`
	System            bool                `yaml:"system" json:"system"`
	Inactive          bool                `yaml:"inactive" json:"inactive"`
	SystemPermissions []string            `yaml:"system_permissions" json:"system_permissions"`
	ModulePermissions map[string][]string `yaml:"module_permissions" json:"module_permissions"`
}

type catalogAssignment struct {
	UserID    int64      `yaml:"user_id" json:"user_id"`
	Role      string     `yaml:"role" json:"role"`
	ContextID *int64     `yaml:"context_id" json:"context_id"`
	ExpiresAt *time.Time `yaml:"expires_at" json:"expires_at"`
}

// NewFileCatalog loads every *.yaml, *.yml and *.json file in dir.
func NewFileCatalog(dir string) (*FileCatalog, error) {
	c := &FileCatalog{dir: dir}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the directory, replacing the in-memory catalog
// atomically. Roles receive synthetic ids by load order.
func (c *FileCatalog) Reload() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read role catalog dir %s: %w", c.dir, err)
	}

	var roles []Role
	var assignments []Assignment
	nextID := int64(1)
	now := time.Now().UTC()

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		var file catalogFile
		if ext == ".json" {
			err = json.Unmarshal(raw, &file)
		} else {
			err = yaml.Unmarshal(raw, &file)
		}
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, cr := range file.Roles {
			if cr.Slug == "" {
				return fmt.Errorf("%s: role with empty slug", path)
			}
			roles = append(roles, Role{
				ID:                nextID,
				Slug:              cr.Slug,
				Name:              cr.Name,
				Description:       cr.Description,
				OrganizationID:    cr.OrganizationID,
				IsSystem:          cr.System,
				IsActive:          !cr.Inactive,
				SystemPermissions: cr.SystemPermissions,
				ModulePermissions: cr.ModulePermissions,
				CreatedAt:         now,
				UpdatedAt:         now,
			})
			nextID++
		}
		for _, ca := range file.Assignments {
			assignments = append(assignments, Assignment{
				UserID:    ca.UserID,
				RoleSlug:  ca.Role,
				ContextID: ca.ContextID,
				GrantedAt: now,
				ExpiresAt: ca.ExpiresAt,
			})
		}
	}

	c.mu.Lock()
	c.roles = roles
	c.assignments = assignments
	c.mu.Unlock()
	return nil
}

// Watch reloads the catalog whenever a file in the directory changes,
// until the context is cancelled. Reload failures keep the previous
// catalog; onError, when set, receives them.
func (c *FileCatalog) Watch(ctx context.Context, onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", c.dir, err)
	}
	c.watcher = watcher

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := c.Reload(); err != nil && onError != nil {
					onError(err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()
	return nil
}

// GetRoleByID retrieves a role by its synthetic id.
func (c *FileCatalog) GetRoleByID(_ context.Context, id int64) (*Role, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.roles {
		if c.roles[i].ID == id {
			role := c.roles[i]
			return &role, nil
		}
	}
	return nil, fmt.Errorf("role %d: %w", id, ErrRoleNotFound)
}

// GetRoleBySlug prefers an organization-scoped definition over a global
// one of the same slug, matching the SQL store's lookup order.
func (c *FileCatalog) GetRoleBySlug(_ context.Context, slug string, organizationID *int64) (*Role, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var global *Role
	for i := range c.roles {
		r := &c.roles[i]
		if r.Slug != slug {
			continue
		}
		if r.OrganizationID == nil {
			if global == nil {
				copied := *r
				global = &copied
			}
			continue
		}
		if organizationID != nil && *r.OrganizationID == *organizationID {
			role := *r
			return &role, nil
		}
	}
	if global != nil {
		return global, nil
	}
	return nil, fmt.Errorf("role %q: %w", slug, ErrRoleNotFound)
}

// ListUserAssignments returns the user's assignments from the catalog.
func (c *FileCatalog) ListUserAssignments(_ context.Context, userID int64) ([]Assignment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Assignment
	for _, a := range c.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

var _ RoleStore = (*FileCatalog)(nil)
