package authz

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	sets  map[int64]Set
	err   error
	calls int
}

func (s *stubStore) ResolveCustomRole(ctx context.Context, roleID int64) (Set, error) {
	s.calls++
	if s.err != nil {
		return Set{}, s.err
	}
	set, ok := s.sets[roleID]
	if !ok {
		return Set{}, ErrRoleNotFound
	}
	return set, nil
}

func newTestResolver(store *stubStore, clock *fakeClock) *Resolver {
	cache := NewCacheWithClock(5*time.Minute, clock.Now)
	return NewResolver(store, cache, slog.New(slog.DiscardHandler))
}

func ptr(v int64) *int64 { return &v }

func TestResolveFixedRoleUsesCatalog(t *testing.T) {
	store := &stubStore{}
	resolver := newTestResolver(store, newFakeClock())

	user := User{ID: 10, Role: RoleSales, IsActive: true}
	set := resolver.Resolve(context.Background(), user)

	expected, err := Lookup(RoleSales)
	require.NoError(t, err)
	assert.True(t, set.Equal(expected))
	assert.Zero(t, store.calls, "no custom role, store must not be queried")
}

func TestResolveCustomRoleOverridesCatalog(t *testing.T) {
	store := &stubStore{sets: map[int64]Set{
		42: NewSet(Permission{Resource: "products", Action: "view"}),
	}}
	resolver := newTestResolver(store, newFakeClock())

	user := User{ID: 10, Role: RoleManager, CustomRoleID: ptr(42), IsActive: true}
	set := resolver.Resolve(context.Background(), user)

	assert.Equal(t, 1, set.Len())
	assert.True(t, set.Has("products", "view"))
	assert.False(t, set.Has(ResourceLeads, ActionViewAll), "fallback must not bleed in")
}

func TestResolveEmptyCustomRoleDeniesAll(t *testing.T) {
	// An active role deliberately configured with zero permissions locks the
	// user down; it must not silently regain the fixed-role permissions.
	store := &stubStore{sets: map[int64]Set{42: NewSet()}}
	resolver := newTestResolver(store, newFakeClock())

	user := User{ID: 10, Role: RoleManager, CustomRoleID: ptr(42), IsActive: true}
	set := resolver.Resolve(context.Background(), user)

	assert.True(t, set.IsEmpty())
}

func TestResolveFallbackOnRoleNotFound(t *testing.T) {
	store := &stubStore{sets: map[int64]Set{}}
	resolver := newTestResolver(store, newFakeClock())

	user := User{ID: 10, Role: RoleManager, CustomRoleID: ptr(99), IsActive: true}
	set := resolver.Resolve(context.Background(), user)

	expected, _ := Lookup(RoleManager)
	assert.True(t, set.Equal(expected))
	assert.Equal(t, 1, store.calls)
}

func TestResolveFallbackOnInactiveRole(t *testing.T) {
	store := &stubStore{err: ErrRoleInactive}
	resolver := newTestResolver(store, newFakeClock())

	user := User{ID: 10, Role: RoleSales, CustomRoleID: ptr(5), IsActive: true}
	set := resolver.Resolve(context.Background(), user)

	expected, _ := Lookup(RoleSales)
	assert.True(t, set.Equal(expected))
}

func TestResolveFallbackOnStoreUnavailable(t *testing.T) {
	store := &stubStore{err: errors.New("dial tcp: connection refused")}
	resolver := newTestResolver(store, newFakeClock())

	user := User{ID: 10, Role: RoleManager, CustomRoleID: ptr(5), IsActive: true}

	var set Set
	require.NotPanics(t, func() {
		set = resolver.Resolve(context.Background(), user)
	})
	expected, _ := Lookup(RoleManager)
	assert.True(t, set.Equal(expected), "store failure degrades to the MANAGER catalog entry")
}

func TestResolveUnknownRoleDenies(t *testing.T) {
	store := &stubStore{}
	resolver := newTestResolver(store, newFakeClock())

	set := resolver.Resolve(context.Background(), User{ID: 10, Role: Role("GHOST"), IsActive: true})
	assert.True(t, set.IsEmpty(), "unknown fixed role must deny, never grant")
}

func TestResolveCacheHitShortCircuit(t *testing.T) {
	store := &stubStore{sets: map[int64]Set{
		42: NewSet(Permission{Resource: "leads", Action: "view_all"}),
	}}
	clock := newFakeClock()
	resolver := newTestResolver(store, clock)
	user := User{ID: 10, Role: RoleSales, CustomRoleID: ptr(42), IsActive: true}

	first := resolver.Resolve(context.Background(), user)
	clock.Advance(time.Minute)
	second := resolver.Resolve(context.Background(), user)

	assert.True(t, first.Equal(second), "idempotent within the TTL window")
	assert.Equal(t, 1, store.calls, "second call must not re-invoke the store")

	clock.Advance(5 * time.Minute)
	resolver.Resolve(context.Background(), user)
	assert.Equal(t, 2, store.calls, "expired entry forces a fresh read")
}

func TestResolveAfterInvalidate(t *testing.T) {
	store := &stubStore{sets: map[int64]Set{
		42: NewSet(Permission{Resource: "leads", Action: "view_all"}),
	}}
	resolver := newTestResolver(store, newFakeClock())
	user := User{ID: 10, Role: RoleSales, CustomRoleID: ptr(42), IsActive: true}

	resolver.Resolve(context.Background(), user)
	resolver.Invalidate(user.ID)
	resolver.Resolve(context.Background(), user)

	assert.Equal(t, 2, store.calls, "invalidation re-invokes the source")

	resolver.InvalidateAll()
	resolver.Resolve(context.Background(), user)
	assert.Equal(t, 3, store.calls)
}

func TestResolveCachesFallbackResult(t *testing.T) {
	store := &stubStore{err: errors.New("store down")}
	resolver := newTestResolver(store, newFakeClock())
	user := User{ID: 10, Role: RoleManager, CustomRoleID: ptr(5), IsActive: true}

	resolver.Resolve(context.Background(), user)
	resolver.Resolve(context.Background(), user)

	assert.Equal(t, 1, store.calls, "no internal retries; the fallback is cached until expiry")
}

func TestDerivedQueries(t *testing.T) {
	store := &stubStore{}
	resolver := newTestResolver(store, newFakeClock())
	ctx := context.Background()
	user := User{ID: 10, Role: RoleSales, IsActive: true}

	assert.True(t, resolver.HasPermission(ctx, user, ResourceLeads, ActionViewAssigned))
	assert.False(t, resolver.HasPermission(ctx, user, ResourceLeads, ActionViewAll))

	viewEither := []Permission{
		{Resource: ResourceLeads, Action: ActionViewAll},
		{Resource: ResourceLeads, Action: ActionViewAssigned},
	}
	assert.True(t, resolver.HasAnyPermission(ctx, user, viewEither))
	assert.False(t, resolver.HasAllPermissions(ctx, user, viewEither))

	// Empty-list edge cases: OR over nothing is false, AND over nothing is true.
	assert.False(t, resolver.HasAnyPermission(ctx, user, nil))
	assert.True(t, resolver.HasAllPermissions(ctx, user, nil))
}

func TestCanAccessResourceMatchesResourceActions(t *testing.T) {
	store := &stubStore{}
	resolver := newTestResolver(store, newFakeClock())
	ctx := context.Background()

	for _, role := range FixedRoles() {
		user := User{ID: 10, Role: role, IsActive: true}
		for _, resource := range []string{ResourceLeads, ResourceCustomers, ResourceUsers, ResourceRoles, "nonexistent"} {
			actions := resolver.ResourceActions(ctx, user, resource)
			assert.Equal(t, len(actions) > 0, resolver.CanAccessResource(ctx, user, resource),
				"role=%s resource=%s", role, resource)
		}
	}
}

func TestSalesScenario(t *testing.T) {
	// A SALES user with no custom role sees only assigned work.
	store := &stubStore{}
	resolver := newTestResolver(store, newFakeClock())
	ctx := context.Background()
	user := User{ID: 77, Role: RoleSales, IsActive: true}

	assert.True(t, resolver.HasPermission(ctx, user, "leads", "view_assigned"))
	assert.False(t, resolver.HasPermission(ctx, user, "leads", "view_all"))

	scope := ScopeFor(user.Role, user.ID)
	assert.Equal(t, ScopeOwned, scope.Kind)
	assert.True(t, scope.Matches(ptr(77), nil))
	assert.True(t, scope.Matches(nil, ptr(77)))
	assert.False(t, scope.Matches(ptr(78), ptr(79)))
}
