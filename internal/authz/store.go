package authz

import (
	"context"
	"errors"
)

var (
	// ErrRoleNotFound indicates the referenced custom role does not exist.
	ErrRoleNotFound = errors.New("authz: custom role not found")
	// ErrRoleInactive indicates the custom role exists but is deactivated.
	// The resolver treats it exactly like ErrRoleNotFound.
	ErrRoleInactive = errors.New("authz: custom role inactive")
)

// RolePermissionStore resolves a custom role id to its assigned permission
// set. Implementations must filter to active roles only and must honor the
// caller's context deadline; this is the engine's single external I/O point.
//
// Any error other than ErrRoleNotFound/ErrRoleInactive is treated by the
// resolver as a transient store failure.
type RolePermissionStore interface {
	ResolveCustomRole(ctx context.Context, roleID int64) (Set, error)
}
