package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// UserSource loads the engine's read-only user view for the middleware.
// Implemented by the users repository.
type UserSource interface {
	FindAuthzUser(ctx context.Context, userID int64) (User, error)
}

type userContextKey struct{}

// ContextWithUser stores the resolved caller in the request context.
func ContextWithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts the caller placed by the middleware. The second
// return is false for unauthenticated requests.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userContextKey{}).(User)
	return user, ok
}

// Middleware wires permission gating into HTTP handlers. Authorization
// failures surface as 403 problem responses; the engine itself never leaks
// errors to the client.
type Middleware struct {
	Resolver *Resolver
	Users    UserSource
	Logger   *slog.Logger
}

// Require gates a route on one exact (resource, action) permission.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return m.guard(func(ctx context.Context, user User) bool {
		return m.Resolver.HasPermission(ctx, user, resource, action)
	})
}

// RequireAny gates a route on holding at least one of the permissions.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return m.guard(func(ctx context.Context, user User) bool {
		return m.Resolver.HasAnyPermission(ctx, user, perms)
	})
}

// RequireAll gates a route on holding every permission.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	return m.guard(func(ctx context.Context, user User) bool {
		return m.Resolver.HasAllPermissions(ctx, user, perms)
	})
}

// RequireResource gates a route on holding any action for the resource,
// used as a coarse gate ahead of action-specific checks in the handler.
func (m Middleware) RequireResource(resource string) func(http.Handler) http.Handler {
	return m.guard(func(ctx context.Context, user User) bool {
		return m.Resolver.CanAccessResource(ctx, user, resource)
	})
}

// Authenticate loads the caller into the context without any permission
// check. Routes that only need an identity (such as /api/me) use it alone.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.currentUser(r)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

func (m Middleware) guard(allowed func(context.Context, User) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := m.currentUser(r)
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			ctx := r.Context()
			if !allowed(ctx, user) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(ctx, user)))
		})
	}
}

// currentUser resolves the session identity into the engine's user view.
// Inactive accounts are rejected as if unauthenticated.
func (m Middleware) currentUser(r *http.Request) (User, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return User{}, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return User{}, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authz: parse session user id", slog.String("value", raw))
		}
		return User{}, false
	}
	user, err := m.Users.FindAuthzUser(r.Context(), id)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("authz: load user for session", slog.Int64("user_id", id), slog.Any("error", err))
		}
		return User{}, false
	}
	if !user.IsActive {
		return User{}, false
	}
	return user, true
}
