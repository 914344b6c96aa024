package tasks

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler exposes task endpoints.
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
			authz.Permission{Resource: authz.ResourceTasks, Action: authz.ActionViewAll},
			authz.Permission{Resource: authz.ResourceTasks, Action: authz.ActionViewAssigned},
		))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceTasks, authz.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(
			authz.Permission{Resource: authz.ResourceTasks, Action: authz.ActionEditAll},
			authz.Permission{Resource: authz.ResourceTasks, Action: authz.ActionEditAssigned},
		))
		r.Put("/{id}", h.update)
		r.Post("/{id}/complete", h.complete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceTasks, authz.ActionAssign))
		r.Post("/{id}/assign", h.assign)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceTasks, authz.ActionDelete))
		r.Delete("/{id}", h.delete)
	})
}

type taskRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description *string    `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	RelatedKind *string    `json:"related_kind,omitempty" validate:"omitempty,oneof=lead customer quotation"`
	RelatedID   *int64     `json:"related_id,omitempty" validate:"omitempty,gt=0"`
	AssignedTo  *int64     `json:"assigned_to,omitempty" validate:"omitempty,gt=0"`
}

type assignRequest struct {
	AssignedTo *int64 `json:"assigned_to" validate:"omitempty,gt=0"`
}

type listResponse struct {
	Tasks      []Task            `json:"tasks"`
	Pagination shared.Pagination `json:"pagination"`
}

func (req taskRequest) toTask() Task {
	t := Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      Status(req.Status),
		Priority:    Priority(req.Priority),
		DueAt:       req.DueAt,
		RelatedID:   req.RelatedID,
		AssignedTo:  req.AssignedTo,
	}
	if req.RelatedKind != nil {
		kind := RelatedKind(*req.RelatedKind)
		t.RelatedKind = &kind
	}
	return t
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	page, perPage := shared.PageParams(r)
	filter := ListFilter{
		Status: Status(r.URL.Query().Get("status")),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if due := r.URL.Query().Get("due_by"); due != "" {
		t, err := time.Parse(time.RFC3339, due)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		filter.DueBy = &t
	}
	items, total, err := h.service.List(r.Context(), user, filter)
	if err != nil {
		h.respondError(w, "list tasks", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Tasks:      items,
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
	t, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		h.respondError(w, "get task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	var req taskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Create(r.Context(), user, req.toTask())
	if err != nil {
		h.respondError(w, "create task", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req taskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Update(r.Context(), user, id, req.toTask())
	if err != nil {
		h.respondError(w, "update task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Complete(r.Context(), user, id); err != nil {
		h.respondError(w, "complete task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
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
		h.respondError(w, "assign task", err)
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
		h.respondError(w, "delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "task not found")
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("tasks: "+op, slog.Any("error", err))
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
