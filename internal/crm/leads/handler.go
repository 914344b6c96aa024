package leads

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler exposes lead endpoints.
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
			authz.Permission{Resource: authz.ResourceLeads, Action: authz.ActionViewAll},
			authz.Permission{Resource: authz.ResourceLeads, Action: authz.ActionViewAssigned},
		))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceLeads, authz.ActionExport))
		r.Get("/export", h.export)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceLeads, authz.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(
			authz.Permission{Resource: authz.ResourceLeads, Action: authz.ActionEditAll},
			authz.Permission{Resource: authz.ResourceLeads, Action: authz.ActionEditAssigned},
		))
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceLeads, authz.ActionAssign))
		r.Post("/{id}/assign", h.assign)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceLeads, authz.ActionDelete))
		r.Delete("/{id}", h.delete)
	})
}

type leadRequest struct {
	Name           string  `json:"name" validate:"required,max=200"`
	Company        *string `json:"company,omitempty" validate:"omitempty,max=200"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone          *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Source         *string `json:"source,omitempty" validate:"omitempty,max=100"`
	Status         string  `json:"status,omitempty"`
	EstimatedValue float64 `json:"estimated_value" validate:"gte=0"`
	Notes          *string `json:"notes,omitempty"`
	AssignedTo     *int64  `json:"assigned_to,omitempty" validate:"omitempty,gt=0"`
}

type assignRequest struct {
	AssignedTo *int64 `json:"assigned_to" validate:"omitempty,gt=0"`
}

type listResponse struct {
	Leads      []Lead            `json:"leads"`
	Pagination shared.Pagination `json:"pagination"`
}

func (req leadRequest) toLead() Lead {
	return Lead{
		Name:           req.Name,
		Company:        req.Company,
		Email:          req.Email,
		Phone:          req.Phone,
		Source:         req.Source,
		Status:         Status(req.Status),
		EstimatedValue: req.EstimatedValue,
		Notes:          req.Notes,
		AssignedTo:     req.AssignedTo,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	page, perPage := shared.PageParams(r)
	filter := ListFilter{
		Status: Status(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("q"),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	items, total, err := h.service.List(r.Context(), user, filter)
	if err != nil {
		h.respondError(w, "list leads", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Leads:      items,
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
	lead, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		h.respondError(w, "get lead", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	var req leadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lead, err := h.service.Create(r.Context(), user, req.toLead())
	if err != nil {
		h.respondError(w, "create lead", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lead)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req leadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lead, err := h.service.Update(r.Context(), user, id, req.toLead())
	if err != nil {
		h.respondError(w, "update lead", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
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
		h.respondError(w, "assign lead", err)
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
		h.respondError(w, "delete lead", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	items, err := h.service.Export(r.Context(), user)
	if err != nil {
		h.respondError(w, "export leads", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "name", "company", "email", "phone", "source", "status", "estimated_value", "assigned_to", "created_at"})
	for _, l := range items {
		_ = cw.Write([]string{
			strconv.FormatInt(l.ID, 10),
			l.Name,
			deref(l.Company),
			deref(l.Email),
			deref(l.Phone),
			deref(l.Source),
			string(l.Status),
			strconv.FormatFloat(l.EstimatedValue, 'f', 2, 64),
			derefID(l.AssignedTo),
			l.CreatedAt.Format("2006-01-02"),
		})
	}
	cw.Flush()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "lead not found")
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("leads: "+op, slog.Any("error", err))
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
