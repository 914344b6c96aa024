package roles

import (
	"time"

	"github.com/meridian-crm/meridian-crm/internal/authz"
)

// CustomRole is an administrator-defined role with its own permission
// assignments. A user carrying a custom role is resolved against it instead
// of the fixed-role catalog.
type CustomRole struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	IsActive    bool               `json:"is_active"`
	Permissions []authz.Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}
