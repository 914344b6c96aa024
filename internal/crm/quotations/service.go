package quotations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
)

// ErrInvalidStatus indicates an illegal lifecycle transition.
var ErrInvalidStatus = errors.New("quotations: invalid status transition")

// RepositoryPort defines data access methods for quotations.
type RepositoryPort interface {
	List(ctx context.Context, scope authz.DataScope, filter ListFilter) ([]Quotation, int, error)
	Get(ctx context.Context, scope authz.DataScope, id int64) (Quotation, error)
	NextNumber(ctx context.Context, year int) (string, error)
	Create(ctx context.Context, q Quotation) (Quotation, error)
	ReplaceLines(ctx context.Context, id int64, lines []Line, subtotal, taxAmount, totalAmount float64) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Assign(ctx context.Context, id int64, assignedTo *int64) error
	Delete(ctx context.Context, id int64) error
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// CustomerChecker verifies a customer exists and is visible to the caller.
type CustomerChecker interface {
	Exists(ctx context.Context, user authz.User, customerID int64) error
}

// PermissionChecker answers exact permission queries. Satisfied by
// authz.Resolver.
type PermissionChecker interface {
	HasPermission(ctx context.Context, user authz.User, resource, action string) bool
}

// Service owns quotation lifecycle and pricing rules.
type Service struct {
	repo      RepositoryPort
	customers CustomerChecker
	perms     PermissionChecker
	now       func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, customers CustomerChecker, perms PermissionChecker) *Service {
	return &Service{repo: repo, customers: customers, perms: perms, now: time.Now}
}

func (s *Service) viewScope(ctx context.Context, user authz.User) authz.DataScope {
	if s.perms.HasPermission(ctx, user, authz.ResourceQuotations, authz.ActionViewAll) {
		return authz.DataScope{Kind: authz.ScopeAll, UserID: user.ID}
	}
	if s.perms.HasPermission(ctx, user, authz.ResourceQuotations, authz.ActionViewAssigned) {
		return authz.DataScope{Kind: authz.ScopeOwned, UserID: user.ID}
	}
	return authz.DataScope{Kind: authz.ScopeNone, UserID: user.ID}
}

func (s *Service) editScope(ctx context.Context, user authz.User) authz.DataScope {
	if s.perms.HasPermission(ctx, user, authz.ResourceQuotations, authz.ActionEditAll) {
		return authz.DataScope{Kind: authz.ScopeAll, UserID: user.ID}
	}
	if s.perms.HasPermission(ctx, user, authz.ResourceQuotations, authz.ActionEditAssigned) {
		return authz.DataScope{Kind: authz.ScopeOwned, UserID: user.ID}
	}
	return authz.DataScope{Kind: authz.ScopeNone, UserID: user.ID}
}

// priceLines fills the derived amounts of each line and returns the
// document totals.
func priceLines(lines []Line) (priced []Line, subtotal, taxAmount, totalAmount float64) {
	priced = make([]Line, len(lines))
	for i, l := range lines {
		discount, tax, lineTotal := CalculateLineTotals(l.Quantity, l.UnitPrice, l.DiscountPercent, l.TaxPercent)
		l.DiscountAmount = discount
		l.TaxAmount = tax
		l.LineTotal = lineTotal
		if l.LineOrder == 0 {
			l.LineOrder = i + 1
		}
		subtotal += (l.Quantity * l.UnitPrice) - discount
		taxAmount += tax
		totalAmount += lineTotal
		priced[i] = l
	}
	return priced, subtotal, taxAmount, totalAmount
}

// List returns the page of quotations visible to the user.
func (s *Service) List(ctx context.Context, user authz.User, filter ListFilter) ([]Quotation, int, error) {
	return s.repo.List(ctx, s.viewScope(ctx, user), filter)
}

// Get fetches one quotation with lines.
func (s *Service) Get(ctx context.Context, user authz.User, id int64) (Quotation, error) {
	return s.repo.Get(ctx, s.viewScope(ctx, user), id)
}

// Create registers a draft quotation with computed totals.
func (s *Service) Create(ctx context.Context, user authz.User, q Quotation) (Quotation, error) {
	if len(q.Lines) == 0 {
		return Quotation{}, fmt.Errorf("%w: at least one line required", httpx.ErrValidation)
	}
	if !q.ValidUntil.After(s.now()) {
		return Quotation{}, fmt.Errorf("%w: valid_until must be in the future", httpx.ErrValidation)
	}
	if err := s.customers.Exists(ctx, user, q.CustomerID); err != nil {
		return Quotation{}, err
	}

	number, err := s.repo.NextNumber(ctx, s.now().Year())
	if err != nil {
		return Quotation{}, fmt.Errorf("quotations: reserve number: %w", err)
	}

	q.Number = number
	q.Status = StatusDraft
	q.CreatedBy = user.ID
	if q.AssignedTo == nil || !s.perms.HasPermission(ctx, user, authz.ResourceQuotations, authz.ActionAssign) {
		uid := user.ID
		q.AssignedTo = &uid
	}
	q.Lines, q.Subtotal, q.TaxAmount, q.TotalAmount = priceLines(q.Lines)
	return s.repo.Create(ctx, q)
}

// UpdateLines replaces the lines of a draft the user may edit and reprices
// the document.
func (s *Service) UpdateLines(ctx context.Context, user authz.User, id int64, lines []Line) (Quotation, error) {
	existing, err := s.repo.Get(ctx, s.editScope(ctx, user), id)
	if err != nil {
		return Quotation{}, err
	}
	if existing.Status != StatusDraft {
		return Quotation{}, fmt.Errorf("%w: only drafts can be edited", ErrInvalidStatus)
	}
	if len(lines) == 0 {
		return Quotation{}, fmt.Errorf("%w: at least one line required", httpx.ErrValidation)
	}

	priced, subtotal, taxAmount, totalAmount := priceLines(lines)
	if err := s.repo.ReplaceLines(ctx, id, priced, subtotal, taxAmount, totalAmount); err != nil {
		return Quotation{}, err
	}
	return s.repo.Get(ctx, s.viewScope(ctx, user), id)
}

// Transition moves a quotation the user may edit to the next status.
func (s *Service) Transition(ctx context.Context, user authz.User, id int64, next Status) (Quotation, error) {
	existing, err := s.repo.Get(ctx, s.editScope(ctx, user), id)
	if err != nil {
		return Quotation{}, err
	}
	if !existing.Status.CanTransition(next) {
		return Quotation{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, existing.Status, next)
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return Quotation{}, err
	}
	return s.repo.Get(ctx, s.viewScope(ctx, user), id)
}

// Assign reassigns a quotation. The route requires the assign permission.
func (s *Service) Assign(ctx context.Context, user authz.User, id int64, assignedTo *int64) error {
	if _, err := s.repo.Get(ctx, s.viewScope(ctx, user), id); err != nil {
		return err
	}
	return s.repo.Assign(ctx, id, assignedTo)
}

// Delete removes a quotation the user may see.
func (s *Service) Delete(ctx context.Context, user authz.User, id int64) error {
	if _, err := s.repo.Get(ctx, s.viewScope(ctx, user), id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// ExpireOverdue marks sent quotations past their validity as expired.
func (s *Service) ExpireOverdue(ctx context.Context) (int64, error) {
	return s.repo.ExpireOverdue(ctx, s.now())
}
