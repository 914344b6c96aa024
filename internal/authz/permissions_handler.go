package authz

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
)

// PermissionsHandler exposes the caller's effective permissions so the UI
// can compute its affordances (which buttons and menus to show).
type PermissionsHandler struct {
	resolver   *Resolver
	middleware Middleware
}

// NewPermissionsHandler builds a PermissionsHandler.
func NewPermissionsHandler(resolver *Resolver, middleware Middleware) *PermissionsHandler {
	return &PermissionsHandler{resolver: resolver, middleware: middleware}
}

// MountRoutes registers the introspection routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.middleware.Authenticate)
		r.Get("/permissions", h.myPermissions)
	})
}

type permissionView struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type permissionsResponse struct {
	UserID      int64               `json:"user_id"`
	Role        string              `json:"role"`
	Permissions []permissionView    `json:"permissions"`
	Resources   map[string][]string `json:"resources"`
	Scope       string              `json:"scope"`
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	set := h.resolver.Resolve(r.Context(), user)
	perms := set.Slice()

	resp := permissionsResponse{
		UserID:      user.ID,
		Role:        string(user.Role),
		Permissions: make([]permissionView, 0, len(perms)),
		Resources:   make(map[string][]string),
		Scope:       ScopeFor(user.Role, user.ID).Kind.String(),
	}
	for _, p := range perms {
		resp.Permissions = append(resp.Permissions, permissionView{Resource: p.Resource, Action: p.Action})
		resp.Resources[p.Resource] = append(resp.Resources[p.Resource], p.Action)
	}

	httpx.JSON(w, http.StatusOK, resp)
}
