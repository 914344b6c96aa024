package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeForRoleMapping(t *testing.T) {
	assert.Equal(t, ScopeNone, ScopeFor(RoleSuperadmin, 1).Kind)
	assert.Equal(t, ScopeAll, ScopeFor(RoleAdmin, 1).Kind)
	assert.Equal(t, ScopeAll, ScopeFor(RoleManager, 1).Kind)
	assert.Equal(t, ScopeOwned, ScopeFor(RoleSales, 1).Kind)
	assert.Equal(t, ScopeOwned, ScopeFor(Role("CONTRACTOR"), 1).Kind, "unrecognized roles get the restrictive default")
}

func TestScopeMatches(t *testing.T) {
	uid := int64(42)
	other := int64(99)

	none := ScopeFor(RoleSuperadmin, uid)
	assert.False(t, none.Matches(&uid, &uid), "no-access matches nothing")

	all := ScopeFor(RoleAdmin, uid)
	assert.True(t, all.Matches(nil, nil))
	assert.True(t, all.Matches(&other, &other))

	owned := ScopeFor(RoleSales, uid)
	assert.True(t, owned.Matches(&uid, &other), "assigned to the user")
	assert.True(t, owned.Matches(&other, &uid), "created by the user")
	assert.False(t, owned.Matches(&other, &other))
	assert.False(t, owned.Matches(nil, nil))
}

func TestScopeSQL(t *testing.T) {
	frag, args := ScopeFor(RoleAdmin, 42).SQL(3)
	assert.Equal(t, "TRUE", frag)
	assert.Empty(t, args)

	frag, args = ScopeFor(RoleSuperadmin, 42).SQL(3)
	assert.Equal(t, "FALSE", frag)
	assert.Empty(t, args)

	frag, args = ScopeFor(RoleSales, 42).SQL(3)
	assert.Equal(t, "(assigned_to = $3 OR created_by = $4)", frag)
	assert.Equal(t, []any{int64(42), int64(42)}, args)
}

// The SQL fragment and the in-memory predicate must agree on semantics.
func TestScopeSQLMatchesPredicate(t *testing.T) {
	uid := int64(7)
	rows := []struct {
		assignedTo *int64
		createdBy  *int64
	}{
		{ptr(7), nil},
		{nil, ptr(7)},
		{ptr(8), ptr(9)},
		{nil, nil},
	}

	for _, role := range []Role{RoleSuperadmin, RoleAdmin, RoleSales} {
		scope := ScopeFor(role, uid)
		frag, _ := scope.SQL(1)
		for _, row := range rows {
			want := scope.Matches(row.assignedTo, row.createdBy)
			switch frag {
			case "TRUE":
				assert.True(t, want)
			case "FALSE":
				assert.False(t, want)
			default:
				got := (row.assignedTo != nil && *row.assignedTo == uid) ||
					(row.createdBy != nil && *row.createdBy == uid)
				assert.Equal(t, want, got)
			}
		}
	}
}
