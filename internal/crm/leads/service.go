package leads

import (
	"context"
	"fmt"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
)

// RepositoryPort defines data access methods for leads.
type RepositoryPort interface {
	List(ctx context.Context, scope authz.DataScope, filter ListFilter) ([]Lead, int, error)
	Get(ctx context.Context, scope authz.DataScope, id int64) (Lead, error)
	Create(ctx context.Context, lead Lead) (Lead, error)
	Update(ctx context.Context, lead Lead) (Lead, error)
	Assign(ctx context.Context, id int64, assignedTo *int64) error
	Delete(ctx context.Context, id int64) error
}

// PermissionChecker answers exact permission queries. Satisfied by
// authz.Resolver.
type PermissionChecker interface {
	HasPermission(ctx context.Context, user authz.User, resource, action string) bool
}

// Service applies row-level visibility on top of the repository. Routes
// decide whether an operation is allowed at all; the service decides which
// rows it may touch.
type Service struct {
	repo  RepositoryPort
	perms PermissionChecker
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, perms PermissionChecker) *Service {
	return &Service{repo: repo, perms: perms}
}

func (s *Service) viewScope(ctx context.Context, user authz.User) authz.DataScope {
	if s.perms.HasPermission(ctx, user, authz.ResourceLeads, authz.ActionViewAll) {
		return authz.DataScope{Kind: authz.ScopeAll, UserID: user.ID}
	}
	if s.perms.HasPermission(ctx, user, authz.ResourceLeads, authz.ActionViewAssigned) {
		return authz.DataScope{Kind: authz.ScopeOwned, UserID: user.ID}
	}
	return authz.DataScope{Kind: authz.ScopeNone, UserID: user.ID}
}

func (s *Service) editScope(ctx context.Context, user authz.User) authz.DataScope {
	if s.perms.HasPermission(ctx, user, authz.ResourceLeads, authz.ActionEditAll) {
		return authz.DataScope{Kind: authz.ScopeAll, UserID: user.ID}
	}
	if s.perms.HasPermission(ctx, user, authz.ResourceLeads, authz.ActionEditAssigned) {
		return authz.DataScope{Kind: authz.ScopeOwned, UserID: user.ID}
	}
	return authz.DataScope{Kind: authz.ScopeNone, UserID: user.ID}
}

// List returns the page of leads visible to the user.
func (s *Service) List(ctx context.Context, user authz.User, filter ListFilter) ([]Lead, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, filter.Status)
	}
	return s.repo.List(ctx, s.viewScope(ctx, user), filter)
}

// Get fetches one lead the user may see. Out-of-scope rows are reported as
// missing, not forbidden, so callers cannot probe for existence.
func (s *Service) Get(ctx context.Context, user authz.User, id int64) (Lead, error) {
	return s.repo.Get(ctx, s.viewScope(ctx, user), id)
}

// Create registers a new lead owned by the caller. A caller without the
// assign permission always becomes the initial assignee.
func (s *Service) Create(ctx context.Context, user authz.User, lead Lead) (Lead, error) {
	if lead.Status == "" {
		lead.Status = StatusNew
	}
	if !lead.Status.Valid() {
		return Lead{}, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, lead.Status)
	}
	lead.CreatedBy = user.ID
	if lead.AssignedTo == nil || !s.perms.HasPermission(ctx, user, authz.ResourceLeads, authz.ActionAssign) {
		uid := user.ID
		lead.AssignedTo = &uid
	}
	return s.repo.Create(ctx, lead)
}

// Update rewrites a lead the user may edit.
func (s *Service) Update(ctx context.Context, user authz.User, id int64, updated Lead) (Lead, error) {
	existing, err := s.repo.Get(ctx, s.editScope(ctx, user), id)
	if err != nil {
		return Lead{}, err
	}
	if !updated.Status.Valid() {
		return Lead{}, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, updated.Status)
	}
	updated.ID = existing.ID
	return s.repo.Update(ctx, updated)
}

// Assign reassigns a lead. The route requires the assign permission.
func (s *Service) Assign(ctx context.Context, user authz.User, id int64, assignedTo *int64) error {
	if _, err := s.repo.Get(ctx, s.viewScope(ctx, user), id); err != nil {
		return err
	}
	return s.repo.Assign(ctx, id, assignedTo)
}

// Delete removes a lead the user may see. The route requires the delete
// permission.
func (s *Service) Delete(ctx context.Context, user authz.User, id int64) error {
	if _, err := s.repo.Get(ctx, s.viewScope(ctx, user), id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Export returns every visible lead without pagination, for CSV export.
func (s *Service) Export(ctx context.Context, user authz.User) ([]Lead, error) {
	out, _, err := s.repo.List(ctx, s.viewScope(ctx, user), ListFilter{Limit: 10000})
	return out, err
}
