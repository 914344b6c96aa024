package auth_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian-crm/internal/auth"
	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

type stubRepo struct {
	account  *auth.Account
	sessions map[string]int64
}

func newStubRepo(account *auth.Account) *stubRepo {
	return &stubRepo{account: account, sessions: map[string]int64{}}
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	if s.account == nil || s.account.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.account, nil
}

func (s *stubRepo) CreateSession(_ context.Context, id string, userID int64, _ time.Time, _, _ string) error {
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(_ context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func (s *stubRepo) DeleteExpiredSessions(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func testAccount(t *testing.T) *auth.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.Account{
		ID:           42,
		Email:        "jane@example.com",
		Name:         "Jane",
		PasswordHash: string(hash),
		Role:         authz.RoleSales,
		IsActive:     true,
	}
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	handler := auth.NewHandler(slog.New(slog.DiscardHandler), auth.NewService(repo), sessions, csrf)
	return handler, sessions
}

func doLogin(t *testing.T, handler *auth.Handler, sessions *shared.SessionManager, body string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	rec := httptest.NewRecorder()
	routes(handler).ServeHTTP(rec, req)
	require.NoError(t, sessions.Commit(req.Context(), rec, sess))
	return rec, sess
}

func routes(handler *auth.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)
	return r
}

func TestLoginSuccess(t *testing.T) {
	repo := newStubRepo(testAccount(t))
	handler, sessions := newAuthHandler(t, repo)

	rec, sess := doLogin(t, handler, sessions, `{"email":"jane@example.com","password":"correct-horse"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		UserID    int64  `json:"user_id"`
		Role      string `json:"role"`
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.UserID)
	assert.Equal(t, "SALES", resp.Role)
	assert.NotEmpty(t, resp.CSRFToken)
	assert.Equal(t, "42", sess.User())
	assert.Contains(t, repo.sessions, sess.ID)

	// rec.Result() snapshots headers at the handler's first write, before the
	// post-ServeHTTP Commit sets the cookie; read the live header map instead.
	var sawCookie bool
	for _, c := range (&http.Response{Header: rec.Header()}).Cookies() {
		if c.Name == "test_session" && c.Value == sess.ID {
			sawCookie = true
		}
	}
	assert.True(t, sawCookie, "expected session cookie in response")
}

func TestLoginRotatesSessionID(t *testing.T) {
	repo := newStubRepo(testAccount(t))
	handler, sessions := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"jane@example.com","password":"correct-horse"}`))
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	preLoginID := sess.ID
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	rec := httptest.NewRecorder()
	routes(handler).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, preLoginID, sess.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newStubRepo(testAccount(t))
	handler, sessions := newAuthHandler(t, repo)

	rec, sess := doLogin(t, handler, sessions, `{"email":"jane@example.com","password":"wrong-password"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, sess.User())
	assert.Empty(t, repo.sessions)
}

func TestLoginInactiveAccount(t *testing.T) {
	account := testAccount(t)
	account.IsActive = false
	handler, sessions := newAuthHandler(t, newStubRepo(account))

	rec, _ := doLogin(t, handler, sessions, `{"email":"jane@example.com","password":"correct-horse"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	handler, sessions := newAuthHandler(t, newStubRepo(nil))

	rec, _ := doLogin(t, handler, sessions, `{"email":"nobody@example.com","password":"correct-horse"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	handler, sessions := newAuthHandler(t, newStubRepo(testAccount(t)))

	rec, _ := doLogin(t, handler, sessions, `{"email":"not-an-email","password":"short"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := newStubRepo(testAccount(t))
	handler, sessions := newAuthHandler(t, repo)

	_, sess := doLogin(t, handler, sessions, `{"email":"jane@example.com","password":"correct-horse"}`)
	require.Contains(t, repo.sessions, sess.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	routes(handler).ServeHTTP(rec, req)
	require.NoError(t, sessions.Commit(req.Context(), rec, sess))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, repo.sessions, sess.ID)
}
