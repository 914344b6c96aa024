package quotations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

type memRepo struct {
	quotes  map[int64]Quotation
	nextID  int64
	nextSeq int64
	expired int64
}

func newMemRepo(quotes ...Quotation) *memRepo {
	m := &memRepo{quotes: map[int64]Quotation{}, nextID: 1, nextSeq: 1}
	for _, q := range quotes {
		if q.ID >= m.nextID {
			m.nextID = q.ID + 1
		}
		m.quotes[q.ID] = q
	}
	return m
}

func (m *memRepo) List(_ context.Context, scope authz.DataScope, filter ListFilter) ([]Quotation, int, error) {
	var out []Quotation
	for _, q := range m.quotes {
		if !scope.Matches(q.AssignedTo, &q.CreatedBy) {
			continue
		}
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		out = append(out, q)
	}
	return out, len(out), nil
}

func (m *memRepo) Get(_ context.Context, scope authz.DataScope, id int64) (Quotation, error) {
	q, ok := m.quotes[id]
	if !ok || !scope.Matches(q.AssignedTo, &q.CreatedBy) {
		return Quotation{}, shared.ErrNotFound
	}
	return q, nil
}

func (m *memRepo) NextNumber(_ context.Context, year int) (string, error) {
	n := m.nextSeq
	m.nextSeq++
	return fmt.Sprintf("QT-%d-%05d", year, n), nil
}

func (m *memRepo) Create(_ context.Context, q Quotation) (Quotation, error) {
	q.ID = m.nextID
	m.nextID++
	m.quotes[q.ID] = q
	return q, nil
}

func (m *memRepo) ReplaceLines(_ context.Context, id int64, lines []Line, subtotal, taxAmount, totalAmount float64) error {
	q, ok := m.quotes[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.Lines, q.Subtotal, q.TaxAmount, q.TotalAmount = lines, subtotal, taxAmount, totalAmount
	m.quotes[id] = q
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	q, ok := m.quotes[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.Status = status
	m.quotes[id] = q
	return nil
}

func (m *memRepo) Assign(_ context.Context, id int64, assignedTo *int64) error {
	q, ok := m.quotes[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.AssignedTo = assignedTo
	m.quotes[id] = q
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.quotes[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.quotes, id)
	return nil
}

func (m *memRepo) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, q := range m.quotes {
		if q.Status == StatusSent && q.ValidUntil.Before(now) {
			q.Status = StatusExpired
			m.quotes[id] = q
			n++
		}
	}
	m.expired = n
	return n, nil
}

type okCustomers struct{}

func (okCustomers) Exists(_ context.Context, _ authz.User, _ int64) error { return nil }

type catalogPerms struct{}

func (catalogPerms) HasPermission(_ context.Context, user authz.User, resource, action string) bool {
	set, err := authz.Lookup(user.Role)
	if err != nil {
		return false
	}
	return set.Has(resource, action)
}

func ptr(v int64) *int64 { return &v }

var (
	manager = authz.User{ID: 1, Role: authz.RoleManager, IsActive: true}
	rep     = authz.User{ID: 2, Role: authz.RoleSales, IsActive: true}
)

func fixedNow() time.Time {
	return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
}

func newTestService(repo *memRepo) *Service {
	svc := NewService(repo, okCustomers{}, catalogPerms{})
	svc.now = fixedNow
	return svc
}

func TestCalculateLineTotals(t *testing.T) {
	discount, tax, total := CalculateLineTotals(10, 100, 10, 20)

	assert.InDelta(t, 100.0, discount, 1e-9)
	assert.InDelta(t, 180.0, tax, 1e-9)
	assert.InDelta(t, 1080.0, total, 1e-9)

	discount, tax, total = CalculateLineTotals(3, 19.99, 0, 0)
	assert.Zero(t, discount)
	assert.Zero(t, tax)
	assert.InDelta(t, 59.97, total, 1e-9)
}

func TestCreateComputesDocumentTotals(t *testing.T) {
	svc := newTestService(newMemRepo())

	q, err := svc.Create(context.Background(), rep, Quotation{
		CustomerID: 7,
		Currency:   "EUR",
		ValidUntil: fixedNow().Add(30 * 24 * time.Hour),
		Lines: []Line{
			{Description: "Licenses", Quantity: 10, UnitPrice: 100, DiscountPercent: 10, TaxPercent: 20},
			{Description: "Onboarding", Quantity: 1, UnitPrice: 500, TaxPercent: 20},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, q.Status)
	assert.InDelta(t, 1400.0, q.Subtotal, 1e-9)
	assert.InDelta(t, 280.0, q.TaxAmount, 1e-9)
	assert.InDelta(t, 1680.0, q.TotalAmount, 1e-9)
	require.Len(t, q.Lines, 2)
	assert.Equal(t, 1, q.Lines[0].LineOrder)
	assert.Equal(t, 2, q.Lines[1].LineOrder)
	assert.InDelta(t, 1080.0, q.Lines[0].LineTotal, 1e-9)
	require.NotNil(t, q.AssignedTo)
	assert.Equal(t, rep.ID, *q.AssignedTo)
}

func TestCreateRejectsEmptyAndStale(t *testing.T) {
	svc := newTestService(newMemRepo())

	_, err := svc.Create(context.Background(), rep, Quotation{
		CustomerID: 7,
		ValidUntil: fixedNow().Add(time.Hour),
	})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), rep, Quotation{
		CustomerID: 7,
		ValidUntil: fixedNow().Add(-time.Hour),
		Lines:      []Line{{Description: "x", Quantity: 1, UnitPrice: 1}},
	})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestTransitionEnforcesLifecycle(t *testing.T) {
	repo := newMemRepo(Quotation{ID: 5, Status: StatusDraft, CreatedBy: 1, AssignedTo: ptr(1)})
	svc := newTestService(repo)

	q, err := svc.Transition(context.Background(), manager, 5, StatusSent)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, q.Status)

	q, err = svc.Transition(context.Background(), manager, 5, StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, q.Status)

	_, err = svc.Transition(context.Background(), manager, 5, StatusSent)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestTransitionRejectsDraftToAccepted(t *testing.T) {
	repo := newMemRepo(Quotation{ID: 5, Status: StatusDraft, CreatedBy: 1})
	svc := newTestService(repo)

	_, err := svc.Transition(context.Background(), manager, 5, StatusAccepted)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateLinesOnlyOnDrafts(t *testing.T) {
	repo := newMemRepo(
		Quotation{ID: 1, Status: StatusDraft, CreatedBy: 2, AssignedTo: ptr(2)},
		Quotation{ID: 2, Status: StatusSent, CreatedBy: 2, AssignedTo: ptr(2)},
	)
	svc := newTestService(repo)

	q, err := svc.UpdateLines(context.Background(), rep, 1, []Line{
		{Description: "Support", Quantity: 2, UnitPrice: 250},
	})
	require.NoError(t, err)
	assert.InDelta(t, 500.0, q.TotalAmount, 1e-9)

	_, err = svc.UpdateLines(context.Background(), rep, 2, []Line{
		{Description: "Support", Quantity: 2, UnitPrice: 250},
	})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestScopeHidesForeignQuotations(t *testing.T) {
	repo := newMemRepo(
		Quotation{ID: 1, Status: StatusDraft, CreatedBy: 1, AssignedTo: ptr(3)},
		Quotation{ID: 2, Status: StatusDraft, CreatedBy: 2, AssignedTo: ptr(2)},
	)
	svc := newTestService(repo)

	_, err := svc.Get(context.Background(), rep, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	visible, total, err := svc.List(context.Background(), rep, ListFilter{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, visible, 1)
	assert.Equal(t, int64(2), visible[0].ID)
}

func TestExpireOverdue(t *testing.T) {
	repo := newMemRepo(
		Quotation{ID: 1, Status: StatusSent, ValidUntil: fixedNow().Add(-time.Hour), CreatedBy: 1},
		Quotation{ID: 2, Status: StatusSent, ValidUntil: fixedNow().Add(time.Hour), CreatedBy: 1},
		Quotation{ID: 3, Status: StatusDraft, ValidUntil: fixedNow().Add(-time.Hour), CreatedBy: 1},
	)
	svc := newTestService(repo)

	n, err := svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, StatusExpired, repo.quotes[1].Status)
	assert.Equal(t, StatusSent, repo.quotes[2].Status)
	assert.Equal(t, StatusDraft, repo.quotes[3].Status)
}
