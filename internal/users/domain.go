package users

import (
	"time"

	"github.com/meridian-crm/meridian-crm/internal/authz"
)

// User represents a user account for management.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         authz.Role `json:"role"`
	CustomRoleID *int64     `json:"custom_role_id,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AuthzView projects the account onto the authorization engine's read-only
// user record.
func (u User) AuthzView() authz.User {
	return authz.User{
		ID:           u.ID,
		Role:         u.Role,
		CustomRoleID: u.CustomRoleID,
		IsActive:     u.IsActive,
	}
}
