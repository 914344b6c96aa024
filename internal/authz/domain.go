package authz

import (
	"fmt"
	"sort"
)

// Role is one of the fixed, compiled-in roles.
type Role string

const (
	RoleSuperadmin Role = "SUPERADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleManager    Role = "MANAGER"
	RoleSales      Role = "SALES"
)

// FixedRoles lists every compiled-in role.
func FixedRoles() []Role {
	return []Role{RoleSuperadmin, RoleAdmin, RoleManager, RoleSales}
}

// ParseRole validates a raw role string against the fixed role set.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleSuperadmin, RoleAdmin, RoleManager, RoleSales:
		return Role(raw), nil
	}
	return "", fmt.Errorf("authz: unknown fixed role %q", raw)
}

// Valid reports whether the role is one of the fixed roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// User is the read-only view of a user account the engine operates on.
// The record is owned by the users module; the engine never mutates it.
type User struct {
	ID           int64
	Role         Role
	CustomRoleID *int64
	IsActive     bool
}

// Permission identifies one grantable capability as a (resource, action)
// pair. Equality is structural.
type Permission struct {
	Resource string
	Action   string
}

func (p Permission) String() string {
	return p.Resource + ":" + p.Action
}

// Set is an immutable, deduplicated collection of permissions. The zero
// value is the empty set. Sets are safe to share across goroutines because
// no exported method mutates them.
type Set struct {
	perms map[Permission]struct{}
}

// NewSet builds a Set from the given permissions, dropping duplicates.
func NewSet(perms ...Permission) Set {
	if len(perms) == 0 {
		return Set{}
	}
	m := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		m[p] = struct{}{}
	}
	return Set{perms: m}
}

// Has reports whether the exact (resource, action) pair is granted.
func (s Set) Has(resource, action string) bool {
	_, ok := s.perms[Permission{Resource: resource, Action: action}]
	return ok
}

// Contains reports whether the permission is a member of the set.
func (s Set) Contains(p Permission) bool {
	_, ok := s.perms[p]
	return ok
}

// HasResource reports whether any action is granted for the resource.
func (s Set) HasResource(resource string) bool {
	for p := range s.perms {
		if p.Resource == resource {
			return true
		}
	}
	return false
}

// ActionsFor returns the sorted actions granted for a resource.
func (s Set) ActionsFor(resource string) []string {
	var actions []string
	for p := range s.perms {
		if p.Resource == resource {
			actions = append(actions, p.Action)
		}
	}
	sort.Strings(actions)
	return actions
}

// Len returns the number of distinct permissions.
func (s Set) Len() int {
	return len(s.perms)
}

// IsEmpty reports whether the set grants nothing.
func (s Set) IsEmpty() bool {
	return len(s.perms) == 0
}

// Slice returns the permissions sorted by resource then action.
func (s Set) Slice() []Permission {
	out := make([]Permission, 0, len(s.perms))
	for p := range s.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// Equal reports structural equality with another set.
func (s Set) Equal(other Set) bool {
	if len(s.perms) != len(other.perms) {
		return false
	}
	for p := range s.perms {
		if _, ok := other.perms[p]; !ok {
			return false
		}
	}
	return true
}
