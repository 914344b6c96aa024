package customers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler exposes customer endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(
			authz.Permission{Resource: authz.ResourceCustomers, Action: authz.ActionViewAll},
			authz.Permission{Resource: authz.ResourceCustomers, Action: authz.ActionViewAssigned},
		))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceCustomers, authz.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(
			authz.Permission{Resource: authz.ResourceCustomers, Action: authz.ActionEditAll},
			authz.Permission{Resource: authz.ResourceCustomers, Action: authz.ActionEditAssigned},
		))
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceCustomers, authz.ActionAssign))
		r.Post("/{id}/assign", h.assign)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceCustomers, authz.ActionDelete))
		r.Delete("/{id}", h.delete)
	})
}

type customerRequest struct {
	Name       string  `json:"name" validate:"required,max=200"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	TaxID      *string `json:"tax_id,omitempty" validate:"omitempty,max=50"`
	City       *string `json:"city,omitempty" validate:"omitempty,max=100"`
	Country    string  `json:"country" validate:"required,len=2"`
	IsActive   *bool   `json:"is_active,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	AssignedTo *int64  `json:"assigned_to,omitempty" validate:"omitempty,gt=0"`
}

type assignRequest struct {
	AssignedTo *int64 `json:"assigned_to" validate:"omitempty,gt=0"`
}

type listResponse struct {
	Customers  []Customer        `json:"customers"`
	Pagination shared.Pagination `json:"pagination"`
}

func (req customerRequest) toCustomer() Customer {
	c := Customer{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		TaxID:      req.TaxID,
		City:       req.City,
		Country:    req.Country,
		IsActive:   true,
		Notes:      req.Notes,
		AssignedTo: req.AssignedTo,
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	return c
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	page, perPage := shared.PageParams(r)
	filter := ListFilter{
		Search:     r.URL.Query().Get("q"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	}
	items, total, err := h.service.List(r.Context(), user, filter)
	if err != nil {
		h.respondError(w, "list customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Customers:  items,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		h.respondError(w, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	var req customerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), user, req.toCustomer())
	if err != nil {
		h.respondError(w, "create customer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req customerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Update(r.Context(), user, id, req.toCustomer())
	if err != nil {
		h.respondError(w, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Assign(r.Context(), user, id, req.AssignedTo); err != nil {
		h.respondError(w, "assign customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), user, id); err != nil {
		h.respondError(w, "delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "customer not found")
	case errors.Is(err, ErrCodeTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "customer code already taken")
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("customers: "+op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.ErrValidation
	}
	return id, nil
}
