package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
)

// RepositoryPort defines data access methods for customers.
type RepositoryPort interface {
	List(ctx context.Context, scope authz.DataScope, filter ListFilter) ([]Customer, int, error)
	Get(ctx context.Context, scope authz.DataScope, id int64) (Customer, error)
	NextCode(ctx context.Context) (string, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, c Customer) (Customer, error)
	Assign(ctx context.Context, id int64, assignedTo *int64) error
	Delete(ctx context.Context, id int64) error
}

// PermissionChecker answers exact permission queries. Satisfied by
// authz.Resolver.
type PermissionChecker interface {
	HasPermission(ctx context.Context, user authz.User, resource, action string) bool
}

// Service applies row-level visibility on top of the repository.
type Service struct {
	repo  RepositoryPort
	perms PermissionChecker
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, perms PermissionChecker) *Service {
	return &Service{repo: repo, perms: perms}
}

func (s *Service) scope(ctx context.Context, user authz.User, allAction, assignedAction string) authz.DataScope {
	if s.perms.HasPermission(ctx, user, authz.ResourceCustomers, allAction) {
		return authz.DataScope{Kind: authz.ScopeAll, UserID: user.ID}
	}
	if s.perms.HasPermission(ctx, user, authz.ResourceCustomers, assignedAction) {
		return authz.DataScope{Kind: authz.ScopeOwned, UserID: user.ID}
	}
	return authz.DataScope{Kind: authz.ScopeNone, UserID: user.ID}
}

// List returns the page of customers visible to the user.
func (s *Service) List(ctx context.Context, user authz.User, filter ListFilter) ([]Customer, int, error) {
	return s.repo.List(ctx, s.scope(ctx, user, authz.ActionViewAll, authz.ActionViewAssigned), filter)
}

// Get fetches one customer the user may see.
func (s *Service) Get(ctx context.Context, user authz.User, id int64) (Customer, error) {
	return s.repo.Get(ctx, s.scope(ctx, user, authz.ActionViewAll, authz.ActionViewAssigned), id)
}

// Exists verifies the customer is visible to the caller. Used by the
// quotations module before pricing an offer.
func (s *Service) Exists(ctx context.Context, user authz.User, id int64) error {
	_, err := s.Get(ctx, user, id)
	return err
}

// Create registers a new customer with a generated code. A caller without
// the assign permission becomes the initial account owner.
func (s *Service) Create(ctx context.Context, user authz.User, c Customer) (Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Customer{}, fmt.Errorf("%w: customer name required", httpx.ErrValidation)
	}
	code, err := s.repo.NextCode(ctx)
	if err != nil {
		return Customer{}, fmt.Errorf("customers: reserve code: %w", err)
	}
	c.Code = code
	c.CreatedBy = user.ID
	if c.AssignedTo == nil || !s.perms.HasPermission(ctx, user, authz.ResourceCustomers, authz.ActionAssign) {
		uid := user.ID
		c.AssignedTo = &uid
	}
	return s.repo.Create(ctx, c)
}

// Update rewrites a customer the user may edit.
func (s *Service) Update(ctx context.Context, user authz.User, id int64, updated Customer) (Customer, error) {
	existing, err := s.repo.Get(ctx, s.scope(ctx, user, authz.ActionEditAll, authz.ActionEditAssigned), id)
	if err != nil {
		return Customer{}, err
	}
	updated.Name = strings.TrimSpace(updated.Name)
	if updated.Name == "" {
		return Customer{}, fmt.Errorf("%w: customer name required", httpx.ErrValidation)
	}
	updated.ID = existing.ID
	return s.repo.Update(ctx, updated)
}

// Assign reassigns a customer. The route requires the assign permission.
func (s *Service) Assign(ctx context.Context, user authz.User, id int64, assignedTo *int64) error {
	if _, err := s.repo.Get(ctx, s.scope(ctx, user, authz.ActionViewAll, authz.ActionViewAssigned), id); err != nil {
		return err
	}
	return s.repo.Assign(ctx, id, assignedTo)
}

// Delete removes a customer the user may see.
func (s *Service) Delete(ctx context.Context, user authz.User, id int64) error {
	if _, err := s.repo.Get(ctx, s.scope(ctx, user, authz.ActionViewAll, authz.ActionViewAssigned), id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
