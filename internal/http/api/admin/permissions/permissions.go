package permissions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nextgenbank/backoffice/internal/models"
)

// Prefix is the route prefix of the staff administration surface.
const Prefix = "/api/v1/admin"

// Definition describes an admin permission.
type Definition struct {
	Key    string `json:"key"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Label  string `json:"label"`
	Module string `json:"module"`
}

// Key builds a permission key from method and path.
func Key(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// NormalizePermissions trims, de-duplicates, and sorts permissions.
func NormalizePermissions(perms []string) []string {
	if len(perms) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, perm := range perms {
		trimmed := strings.TrimSpace(perm)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	sort.Strings(normalized)
	return normalized
}

// ValidatePermissions validates that all permissions exist in the definition set.
func ValidatePermissions(perms []string) error {
	for _, perm := range perms {
		trimmed := strings.TrimSpace(perm)
		if trimmed == "" {
			continue
		}
		if _, ok := definitionMap[trimmed]; !ok {
			return fmt.Errorf("invalid permission: %s", trimmed)
		}
	}
	return nil
}

// HasPermission checks whether the key exists in the permission list.
func HasPermission(perms []string, key string) bool {
	if key == "" {
		return false
	}
	for _, perm := range perms {
		if perm == key {
			return true
		}
	}
	return false
}

// RolePermissions returns the permission keys granted to role. Super admins
// hold every permission; admins hold everything except role changes and
// user deletion; other roles hold none.
func RolePermissions(role models.Role) []string {
	switch role {
	case models.RoleSuperAdmin:
		out := make([]string, 0, len(definitions))
		for _, def := range definitions {
			out = append(out, def.Key)
		}
		return NormalizePermissions(out)
	case models.RoleAdmin:
		out := make([]string, 0, len(definitions))
		for _, def := range definitions {
			if _, reserved := superAdminOnly[def.Key]; reserved {
				continue
			}
			out = append(out, def.Key)
		}
		return NormalizePermissions(out)
	default:
		return []string{}
	}
}

// Allowed reports whether role may call method on the registered route path.
func Allowed(role models.Role, method, path string) bool {
	return HasPermission(RolePermissions(role), Key(method, path))
}

// Definitions returns a copy of all permission definitions.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// newDefinition builds a Definition with a normalized key.
func newDefinition(method, path, label, module string) Definition {
	upperMethod := strings.ToUpper(method)
	fullPath := Prefix + path
	return Definition{
		Key:    Key(upperMethod, fullPath),
		Method: upperMethod,
		Path:   fullPath,
		Label:  label,
		Module: module,
	}
}

// definitions is the ordered list of permission definitions.
var definitions = []Definition{
	newDefinition("GET", "/users", "List Users", "Users"),
	newDefinition("GET", "/users/:id", "Get User", "Users"),
	newDefinition("PUT", "/users/:id/role", "Change User Role", "Users"),
	newDefinition("POST", "/users/:id/deactivate", "Deactivate User", "Users"),
	newDefinition("POST", "/users/:id/reactivate", "Reactivate User", "Users"),
	newDefinition("DELETE", "/users/:id", "Delete User", "Users"),

	newDefinition("POST", "/settings", "Create Setting", "Settings"),
	newDefinition("GET", "/settings", "List Settings", "Settings"),
	newDefinition("GET", "/settings/:key", "Get Setting", "Settings"),
	newDefinition("PUT", "/settings/:key", "Update Setting", "Settings"),
	newDefinition("DELETE", "/settings/:key", "Delete Setting", "Settings"),

	newDefinition("GET", "/permissions", "List Permission Definitions", "Administrators"),
}

var superAdminOnly = map[string]struct{}{
	Key("PUT", Prefix+"/users/:id/role"): {},
	Key("DELETE", Prefix+"/users/:id"):   {},
}

// definitionMap provides fast lookup for permission definitions.
var definitionMap = func() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[def.Key] = def
	}
	return out
}()
