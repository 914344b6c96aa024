package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

type stubUserSource struct {
	users map[int64]User
	err   error
}

func (s *stubUserSource) FindAuthzUser(_ context.Context, userID int64) (User, error) {
	if s.err != nil {
		return User{}, s.err
	}
	user, ok := s.users[userID]
	if !ok {
		return User{}, errors.New("user not found")
	}
	return user, nil
}

func newTestMiddleware(users map[int64]User) Middleware {
	return Middleware{
		Resolver: newTestResolver(&stubStore{}, newFakeClock()),
		Users:    &stubUserSource{users: users},
		Logger:   slog.New(slog.DiscardHandler),
	}
}

func sessionRequest(userID string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/leads", nil)
	sess := &shared.Session{ID: "test-session"}
	sess.SetUser(userID)
	return r.WithContext(shared.ContextWithSession(r.Context(), sess))
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAllowsPermittedUser(t *testing.T) {
	mw := newTestMiddleware(map[int64]User{5: {ID: 5, Role: RoleManager, IsActive: true}})

	var called bool
	rec := httptest.NewRecorder()
	mw.Require(ResourceLeads, ActionViewAll)(okHandler(&called)).ServeHTTP(rec, sessionRequest("5"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRequireRejectsMissingPermission(t *testing.T) {
	mw := newTestMiddleware(map[int64]User{5: {ID: 5, Role: RoleSales, IsActive: true}})

	var called bool
	rec := httptest.NewRecorder()
	mw.Require(ResourceLeads, ActionViewAll)(okHandler(&called)).ServeHTTP(rec, sessionRequest("5"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRequireRejectsAnonymous(t *testing.T) {
	mw := newTestMiddleware(nil)

	var called bool
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/leads", nil)
	mw.Require(ResourceLeads, ActionViewAll)(okHandler(&called)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestRequireRejectsSessionWithoutUser(t *testing.T) {
	mw := newTestMiddleware(nil)

	rec := httptest.NewRecorder()
	mw.Require(ResourceLeads, ActionViewAll)(okHandler(new(bool))).ServeHTTP(rec, sessionRequest(""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRejectsInactiveUser(t *testing.T) {
	mw := newTestMiddleware(map[int64]User{5: {ID: 5, Role: RoleAdmin, IsActive: false}})

	rec := httptest.NewRecorder()
	mw.Require(ResourceLeads, ActionViewAll)(okHandler(new(bool))).ServeHTTP(rec, sessionRequest("5"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRejectsUnknownUser(t *testing.T) {
	mw := newTestMiddleware(map[int64]User{})

	rec := httptest.NewRecorder()
	mw.Require(ResourceLeads, ActionViewAll)(okHandler(new(bool))).ServeHTTP(rec, sessionRequest("99"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRejectsMalformedUserID(t *testing.T) {
	mw := newTestMiddleware(nil)

	rec := httptest.NewRecorder()
	mw.Require(ResourceLeads, ActionViewAll)(okHandler(new(bool))).ServeHTTP(rec, sessionRequest("not-a-number"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAny(t *testing.T) {
	mw := newTestMiddleware(map[int64]User{5: {ID: 5, Role: RoleSales, IsActive: true}})

	perms := []Permission{
		{Resource: ResourceLeads, Action: ActionViewAll},
		{Resource: ResourceLeads, Action: ActionViewAssigned},
	}

	rec := httptest.NewRecorder()
	var called bool
	mw.RequireAny(perms...)(okHandler(&called)).ServeHTTP(rec, sessionRequest("5"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRequireAllRejectsPartialMatch(t *testing.T) {
	mw := newTestMiddleware(map[int64]User{5: {ID: 5, Role: RoleSales, IsActive: true}})

	perms := []Permission{
		{Resource: ResourceLeads, Action: ActionViewAssigned},
		{Resource: ResourceLeads, Action: ActionDelete},
	}

	rec := httptest.NewRecorder()
	mw.RequireAll(perms...)(okHandler(new(bool))).ServeHTTP(rec, sessionRequest("5"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireResource(t *testing.T) {
	mw := newTestMiddleware(map[int64]User{
		5: {ID: 5, Role: RoleSales, IsActive: true},
		6: {ID: 6, Role: RoleSuperadmin, IsActive: true},
	})

	rec := httptest.NewRecorder()
	mw.RequireResource(ResourceLeads)(okHandler(new(bool))).ServeHTTP(rec, sessionRequest("5"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mw.RequireResource(ResourceLeads)(okHandler(new(bool))).ServeHTTP(rec, sessionRequest("6"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthenticateStoresUserInContext(t *testing.T) {
	mw := newTestMiddleware(map[int64]User{5: {ID: 5, Role: RoleSales, CustomRoleID: ptr(3), IsActive: true}})

	var got User
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		got = user
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	mw.Authenticate(handler).ServeHTTP(rec, sessionRequest("5"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), got.ID)
	assert.Equal(t, RoleSales, got.Role)
	require.NotNil(t, got.CustomRoleID)
	assert.Equal(t, int64(3), *got.CustomRoleID)
}

func TestMiddlewareOnChiRouter(t *testing.T) {
	mw := newTestMiddleware(map[int64]User{
		1: {ID: 1, Role: RoleAdmin, IsActive: true},
		2: {ID: 2, Role: RoleSales, IsActive: true},
	})

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(mw.Require(ResourceUsers, ActionView))
		r.Get("/users", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	rec := httptest.NewRecorder()
	req := sessionRequest("1")
	req.URL.Path = "/users"
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = sessionRequest("2")
	req.URL.Path = "/users"
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
