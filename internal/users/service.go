package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, limit, offset int) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, email, name, passwordHash string, role authz.Role) (User, error)
	UpdateUser(ctx context.Context, id int64, email, name string) (User, error)
	SetRole(ctx context.Context, id int64, role authz.Role) error
	SetCustomRole(ctx context.Context, id int64, customRoleID *int64) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// Invalidator drops cached permission resolutions. Satisfied by
// authz.Resolver.
type Invalidator interface {
	Invalidate(userID int64)
	InvalidateAll()
}

// Service handles user business logic. Every role or custom-role change
// invalidates that user's cached permission set so the next authorization
// check sees the new assignment.
type Service struct {
	repo  RepositoryPort
	authz Invalidator
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, invalidator Invalidator) *Service {
	return &Service{repo: repo, authz: invalidator}
}

// ListUsers returns one page of users plus the total count.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]User, int, error) {
	return s.repo.ListUsers(ctx, limit, offset)
}

// GetUser fetches one user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser registers a new account with a bcrypt-hashed password.
func (s *Service) CreateUser(ctx context.Context, email, name, password string, role authz.Role) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)
	if !role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, email, name, string(hash), role)
}

// UpdateUser changes profile fields.
func (s *Service) UpdateUser(ctx context.Context, id int64, email, name string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)
	return s.repo.UpdateUser(ctx, id, email, name)
}

// SetRole changes the fixed role and invalidates the cached permissions.
func (s *Service) SetRole(ctx context.Context, id int64, role authz.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, role)
	}
	if err := s.repo.SetRole(ctx, id, role); err != nil {
		return err
	}
	s.authz.Invalidate(id)
	return nil
}

// SetCustomRole attaches or detaches the custom role and invalidates the
// cached permissions.
func (s *Service) SetCustomRole(ctx context.Context, id int64, customRoleID *int64) error {
	if err := s.repo.SetCustomRole(ctx, id, customRoleID); err != nil {
		return err
	}
	s.authz.Invalidate(id)
	return nil
}

// SetActive flips the account's active flag. Deactivation also drops the
// cached permissions so a disabled account cannot ride out the TTL.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.authz.Invalidate(id)
	return nil
}
