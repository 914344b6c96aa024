package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
)

// RepositoryPort defines data access methods for tasks.
type RepositoryPort interface {
	List(ctx context.Context, scope authz.DataScope, filter ListFilter) ([]Task, int, error)
	Get(ctx context.Context, scope authz.DataScope, id int64) (Task, error)
	Create(ctx context.Context, t Task) (Task, error)
	Update(ctx context.Context, t Task) (Task, error)
	SetStatus(ctx context.Context, id int64, status Status) error
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
	if s.perms.HasPermission(ctx, user, authz.ResourceTasks, allAction) {
		return authz.DataScope{Kind: authz.ScopeAll, UserID: user.ID}
	}
	if s.perms.HasPermission(ctx, user, authz.ResourceTasks, assignedAction) {
		return authz.DataScope{Kind: authz.ScopeOwned, UserID: user.ID}
	}
	return authz.DataScope{Kind: authz.ScopeNone, UserID: user.ID}
}

func validateTask(t Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: task title required", httpx.ErrValidation)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", httpx.ErrValidation, t.Priority)
	}
	return nil
}

// List returns the page of tasks visible to the user.
func (s *Service) List(ctx context.Context, user authz.User, filter ListFilter) ([]Task, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, filter.Status)
	}
	return s.repo.List(ctx, s.scope(ctx, user, authz.ActionViewAll, authz.ActionViewAssigned), filter)
}

// Get fetches one task the user may see.
func (s *Service) Get(ctx context.Context, user authz.User, id int64) (Task, error) {
	return s.repo.Get(ctx, s.scope(ctx, user, authz.ActionViewAll, authz.ActionViewAssigned), id)
}

// Create registers a new task owned by the caller.
func (s *Service) Create(ctx context.Context, user authz.User, t Task) (Task, error) {
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	if err := validateTask(t); err != nil {
		return Task{}, err
	}
	t.CreatedBy = user.ID
	if t.AssignedTo == nil || !s.perms.HasPermission(ctx, user, authz.ResourceTasks, authz.ActionAssign) {
		uid := user.ID
		t.AssignedTo = &uid
	}
	return s.repo.Create(ctx, t)
}

// Update rewrites a task the user may edit.
func (s *Service) Update(ctx context.Context, user authz.User, id int64, updated Task) (Task, error) {
	existing, err := s.repo.Get(ctx, s.scope(ctx, user, authz.ActionEditAll, authz.ActionEditAssigned), id)
	if err != nil {
		return Task{}, err
	}
	if err := validateTask(updated); err != nil {
		return Task{}, err
	}
	updated.ID = existing.ID
	return s.repo.Update(ctx, updated)
}

// Complete marks a task the user may edit as done.
func (s *Service) Complete(ctx context.Context, user authz.User, id int64) error {
	if _, err := s.repo.Get(ctx, s.scope(ctx, user, authz.ActionEditAll, authz.ActionEditAssigned), id); err != nil {
		return err
	}
	return s.repo.SetStatus(ctx, id, StatusDone)
}

// Assign reassigns a task. The route requires the assign permission.
func (s *Service) Assign(ctx context.Context, user authz.User, id int64, assignedTo *int64) error {
	if _, err := s.repo.Get(ctx, s.scope(ctx, user, authz.ActionViewAll, authz.ActionViewAssigned), id); err != nil {
		return err
	}
	return s.repo.Assign(ctx, id, assignedTo)
}

// Delete removes a task the user may see.
func (s *Service) Delete(ctx context.Context, user authz.User, id int64) error {
	if _, err := s.repo.Get(ctx, s.scope(ctx, user, authz.ActionViewAll, authz.ActionViewAssigned), id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
