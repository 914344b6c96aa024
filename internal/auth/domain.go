package auth

import (
	"time"

	"github.com/meridian-crm/meridian-crm/internal/authz"
)

// Account is the credential view of a user, loaded by email during login.
type Account struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         authz.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
