package leads

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// memRepo applies scopes in memory the way the SQL fragments would.
type memRepo struct {
	leads  map[int64]Lead
	nextID int64
}

func newMemRepo(leads ...Lead) *memRepo {
	m := &memRepo{leads: map[int64]Lead{}, nextID: 1}
	for _, l := range leads {
		if l.ID >= m.nextID {
			m.nextID = l.ID + 1
		}
		m.leads[l.ID] = l
	}
	return m
}

func (m *memRepo) List(_ context.Context, scope authz.DataScope, filter ListFilter) ([]Lead, int, error) {
	var out []Lead
	for _, l := range m.leads {
		if !scope.Matches(l.AssignedTo, &l.CreatedBy) {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		out = append(out, l)
	}
	return out, len(out), nil
}

func (m *memRepo) Get(_ context.Context, scope authz.DataScope, id int64) (Lead, error) {
	l, ok := m.leads[id]
	if !ok || !scope.Matches(l.AssignedTo, &l.CreatedBy) {
		return Lead{}, shared.ErrNotFound
	}
	return l, nil
}

func (m *memRepo) Create(_ context.Context, lead Lead) (Lead, error) {
	lead.ID = m.nextID
	m.nextID++
	m.leads[lead.ID] = lead
	return lead, nil
}

func (m *memRepo) Update(_ context.Context, lead Lead) (Lead, error) {
	if _, ok := m.leads[lead.ID]; !ok {
		return Lead{}, shared.ErrNotFound
	}
	m.leads[lead.ID] = lead
	return lead, nil
}

func (m *memRepo) Assign(_ context.Context, id int64, assignedTo *int64) error {
	l, ok := m.leads[id]
	if !ok {
		return shared.ErrNotFound
	}
	l.AssignedTo = assignedTo
	m.leads[id] = l
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.leads[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.leads, id)
	return nil
}

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
	other   = authz.User{ID: 3, Role: authz.RoleSales, IsActive: true}
	super   = authz.User{ID: 4, Role: authz.RoleSuperadmin, IsActive: true}
)

func seedRepo() *memRepo {
	return newMemRepo(
		Lead{ID: 10, Name: "Acme", Status: StatusNew, AssignedTo: ptr(2), CreatedBy: 1},
		Lead{ID: 11, Name: "Globex", Status: StatusQualified, AssignedTo: ptr(3), CreatedBy: 1},
		Lead{ID: 12, Name: "Initech", Status: StatusNew, AssignedTo: nil, CreatedBy: 2},
	)
}

func TestListScopesByRole(t *testing.T) {
	svc := NewService(seedRepo(), catalogPerms{})

	all, total, err := svc.List(context.Background(), manager, ListFilter{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	mine, total, err := svc.List(context.Background(), rep, ListFilter{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, l := range mine {
		owned := (l.AssignedTo != nil && *l.AssignedTo == rep.ID) || l.CreatedBy == rep.ID
		assert.True(t, owned, "lead %d leaked outside scope", l.ID)
	}

	none, total, err := svc.List(context.Background(), super, ListFilter{Limit: 50})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc := NewService(seedRepo(), catalogPerms{})

	_, _, err := svc.List(context.Background(), manager, ListFilter{Status: "bogus"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestGetHidesOutOfScopeRows(t *testing.T) {
	svc := NewService(seedRepo(), catalogPerms{})

	_, err := svc.Get(context.Background(), rep, 11)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	lead, err := svc.Get(context.Background(), other, 11)
	require.NoError(t, err)
	assert.Equal(t, "Globex", lead.Name)
}

func TestCreateDefaultsAssigneeToCreator(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, catalogPerms{})

	lead, err := svc.Create(context.Background(), rep, Lead{Name: "Umbrella", AssignedTo: ptr(3)})
	require.NoError(t, err)
	// Sales reps cannot assign, so the requested assignee is ignored.
	require.NotNil(t, lead.AssignedTo)
	assert.Equal(t, rep.ID, *lead.AssignedTo)
	assert.Equal(t, rep.ID, lead.CreatedBy)
	assert.Equal(t, StatusNew, lead.Status)

	lead, err = svc.Create(context.Background(), manager, Lead{Name: "Hooli", AssignedTo: ptr(3)})
	require.NoError(t, err)
	require.NotNil(t, lead.AssignedTo)
	assert.Equal(t, int64(3), *lead.AssignedTo)
}

func TestUpdateEnforcesEditScope(t *testing.T) {
	svc := NewService(seedRepo(), catalogPerms{})

	updated := Lead{Name: "Globex Corp", Status: StatusContacted}
	_, err := svc.Update(context.Background(), rep, 11, updated)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	got, err := svc.Update(context.Background(), manager, 11, updated)
	require.NoError(t, err)
	assert.Equal(t, "Globex Corp", got.Name)
	assert.Equal(t, StatusContacted, got.Status)
}

func TestAssignRequiresVisibility(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, catalogPerms{})

	require.NoError(t, svc.Assign(context.Background(), manager, 10, ptr(3)))
	require.NotNil(t, repo.leads[10].AssignedTo)
	assert.Equal(t, int64(3), *repo.leads[10].AssignedTo)
}

func TestDeleteChecksScopeFirst(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, catalogPerms{})

	require.NoError(t, svc.Delete(context.Background(), manager, 12))
	assert.NotContains(t, repo.leads, int64(12))
}
