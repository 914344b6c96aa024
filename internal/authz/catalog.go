package authz

import (
	"errors"
	"fmt"
)

// Resource names subject to access control.
const (
	ResourceLeads      = "leads"
	ResourceCustomers  = "customers"
	ResourceQuotations = "quotations"
	ResourceTasks      = "tasks"
	ResourceUsers      = "users"
	ResourceRoles      = "roles"
)

// Actions on CRM record resources.
const (
	ActionViewAll      = "view_all"
	ActionViewAssigned = "view_assigned"
	ActionCreate       = "create"
	ActionEditAll      = "edit_all"
	ActionEditAssigned = "edit_assigned"
	ActionDelete       = "delete"
	ActionAssign       = "assign"
	ActionExport       = "export"
)

// Actions on administration resources.
const (
	ActionView = "view"
	ActionEdit = "edit"
)

// ErrUnknownRole indicates a role outside the fixed role enum reached the
// catalog. Callers must treat this as deny, never as an implicit grant.
var ErrUnknownRole = errors.New("authz: unknown fixed role")

// crmResources are the record types covered by the CRM side of the catalog.
var crmResources = []string{ResourceLeads, ResourceCustomers, ResourceQuotations, ResourceTasks}

var (
	superadminPermissions = NewSet(adminOnlyPermissions()...)
	adminPermissions      = NewSet(append(adminOnlyPermissions(), crmFullPermissions()...)...)
	managerPermissions    = NewSet(crmFullPermissions()...)
	salesPermissions      = NewSet(crmAssignedPermissions()...)
)

func adminOnlyPermissions() []Permission {
	var perms []Permission
	for _, resource := range []string{ResourceUsers, ResourceRoles} {
		for _, action := range []string{ActionView, ActionCreate, ActionEdit, ActionDelete} {
			perms = append(perms, Permission{Resource: resource, Action: action})
		}
	}
	return perms
}

func crmFullPermissions() []Permission {
	var perms []Permission
	for _, resource := range crmResources {
		for _, action := range []string{ActionViewAll, ActionCreate, ActionEditAll, ActionDelete, ActionAssign, ActionExport} {
			perms = append(perms, Permission{Resource: resource, Action: action})
		}
	}
	return perms
}

func crmAssignedPermissions() []Permission {
	var perms []Permission
	for _, resource := range crmResources {
		for _, action := range []string{ActionViewAssigned, ActionCreate, ActionEditAssigned} {
			perms = append(perms, Permission{Resource: resource, Action: action})
		}
	}
	return perms
}

// Lookup returns the compiled-in permission set for a fixed role. It is the
// fallback of last resort: every fixed role maps to a non-empty set, so a
// user whose custom role cannot be resolved still gets a usable baseline.
// An unknown role returns ErrUnknownRole; the resolver logs it and denies.
func Lookup(role Role) (Set, error) {
	switch role {
	case RoleSuperadmin:
		return superadminPermissions, nil
	case RoleAdmin:
		return adminPermissions, nil
	case RoleManager:
		return managerPermissions, nil
	case RoleSales:
		return salesPermissions, nil
	default:
		return Set{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
}
