package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

type memRepo struct {
	tasks  map[int64]Task
	nextID int64
}

func newMemRepo(tasks ...Task) *memRepo {
	m := &memRepo{tasks: map[int64]Task{}, nextID: 1}
	for _, t := range tasks {
		if t.ID >= m.nextID {
			m.nextID = t.ID + 1
		}
		m.tasks[t.ID] = t
	}
	return m
}

func (m *memRepo) List(_ context.Context, scope authz.DataScope, filter ListFilter) ([]Task, int, error) {
	var out []Task
	for _, t := range m.tasks {
		if !scope.Matches(t.AssignedTo, &t.CreatedBy) {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *memRepo) Get(_ context.Context, scope authz.DataScope, id int64) (Task, error) {
	t, ok := m.tasks[id]
	if !ok || !scope.Matches(t.AssignedTo, &t.CreatedBy) {
		return Task{}, shared.ErrNotFound
	}
	return t, nil
}

func (m *memRepo) Create(_ context.Context, t Task) (Task, error) {
	t.ID = m.nextID
	m.nextID++
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memRepo) Update(_ context.Context, t Task) (Task, error) {
	if _, ok := m.tasks[t.ID]; !ok {
		return Task{}, shared.ErrNotFound
	}
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memRepo) SetStatus(_ context.Context, id int64, status Status) error {
	t, ok := m.tasks[id]
	if !ok {
		return shared.ErrNotFound
	}
	t.Status = status
	m.tasks[id] = t
	return nil
}

func (m *memRepo) Assign(_ context.Context, id int64, assignedTo *int64) error {
	t, ok := m.tasks[id]
	if !ok {
		return shared.ErrNotFound
	}
	t.AssignedTo = assignedTo
	m.tasks[id] = t
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.tasks[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.tasks, id)
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
)

func TestCreateAppliesDefaults(t *testing.T) {
	svc := NewService(newMemRepo(), catalogPerms{})

	task, err := svc.Create(context.Background(), rep, Task{Title: "Call Acme", AssignedTo: ptr(9)})
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, task.Status)
	assert.Equal(t, PriorityNormal, task.Priority)
	require.NotNil(t, task.AssignedTo)
	// Sales reps cannot assign, so the task lands on the creator.
	assert.Equal(t, rep.ID, *task.AssignedTo)
}

func TestCreateRejectsBlankTitle(t *testing.T) {
	svc := NewService(newMemRepo(), catalogPerms{})

	_, err := svc.Create(context.Background(), rep, Task{Title: "   "})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCompleteOnlyWithinEditScope(t *testing.T) {
	repo := newMemRepo(
		Task{ID: 1, Title: "Mine", Status: StatusOpen, AssignedTo: ptr(2), CreatedBy: 2},
		Task{ID: 2, Title: "Theirs", Status: StatusOpen, AssignedTo: ptr(3), CreatedBy: 1},
	)
	svc := NewService(repo, catalogPerms{})

	require.NoError(t, svc.Complete(context.Background(), rep, 1))
	assert.Equal(t, StatusDone, repo.tasks[1].Status)

	err := svc.Complete(context.Background(), rep, 2)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, svc.Complete(context.Background(), manager, 2))
	assert.Equal(t, StatusDone, repo.tasks[2].Status)
}

func TestListFiltersByStatusWithinScope(t *testing.T) {
	repo := newMemRepo(
		Task{ID: 1, Title: "A", Status: StatusOpen, AssignedTo: ptr(2), CreatedBy: 2},
		Task{ID: 2, Title: "B", Status: StatusDone, AssignedTo: ptr(2), CreatedBy: 2},
		Task{ID: 3, Title: "C", Status: StatusOpen, AssignedTo: ptr(3), CreatedBy: 1},
	)
	svc := NewService(repo, catalogPerms{})

	open, total, err := svc.List(context.Background(), rep, ListFilter{Status: StatusOpen, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, open, 1)
	assert.Equal(t, int64(1), open[0].ID)
}
