package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
)

// RepositoryPort defines data access methods for custom roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]CustomRole, error)
	GetRole(ctx context.Context, id int64) (CustomRole, error)
	CreateRole(ctx context.Context, name, description string) (CustomRole, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (CustomRole, error)
	SetActive(ctx context.Context, id int64, active bool) error
	DeleteRole(ctx context.Context, id int64) error
	ReplacePermissions(ctx context.Context, id int64, perms []authz.Permission) error
}

// Invalidator drops cached permission resolutions. Satisfied by
// authz.Resolver.
type Invalidator interface {
	Invalidate(userID int64)
	InvalidateAll()
}

// Service handles custom-role business logic. Any change that can alter
// resolved permissions for an unknown number of users clears the whole
// permission cache; membership is not tracked, so full invalidation is the
// safe default.
type Service struct {
	repo  RepositoryPort
	authz Invalidator
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, invalidator Invalidator) *Service {
	return &Service{repo: repo, authz: invalidator}
}

// ListRoles returns all custom roles.
func (s *Service) ListRoles(ctx context.Context) ([]CustomRole, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches one custom role with its permissions.
func (s *Service) GetRole(ctx context.Context, id int64) (CustomRole, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new custom role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (CustomRole, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CustomRole{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	return s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
}

// UpdateRole changes name and description. Renames do not affect resolved
// permissions, so no invalidation is needed here.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (CustomRole, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CustomRole{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// SetActive flips the role's active flag and clears the permission cache:
// deactivation sends every member back to their fixed-role fallback.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.authz.InvalidateAll()
	return nil
}

// DeleteRole removes the role, detaching its members, and clears the cache.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.authz.InvalidateAll()
	return nil
}

// ReplacePermissions swaps the role's permission set and clears the cache,
// since one role edit can affect many users at once.
func (s *Service) ReplacePermissions(ctx context.Context, id int64, perms []authz.Permission) error {
	for _, p := range perms {
		if strings.TrimSpace(p.Resource) == "" || strings.TrimSpace(p.Action) == "" {
			return fmt.Errorf("%w: permission resource and action required", httpx.ErrValidation)
		}
	}
	if err := s.repo.ReplacePermissions(ctx, id, perms); err != nil {
		return err
	}
	s.authz.InvalidateAll()
	return nil
}
