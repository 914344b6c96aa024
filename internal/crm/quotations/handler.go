package quotations

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

// Handler exposes quotation endpoints.
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
			authz.Permission{Resource: authz.ResourceQuotations, Action: authz.ActionViewAll},
			authz.Permission{Resource: authz.ResourceQuotations, Action: authz.ActionViewAssigned},
		))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceQuotations, authz.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(
			authz.Permission{Resource: authz.ResourceQuotations, Action: authz.ActionEditAll},
			authz.Permission{Resource: authz.ResourceQuotations, Action: authz.ActionEditAssigned},
		))
		r.Put("/{id}/lines", h.updateLines)
		r.Post("/{id}/send", h.transitionTo(StatusSent))
		r.Post("/{id}/accept", h.transitionTo(StatusAccepted))
		r.Post("/{id}/reject", h.transitionTo(StatusRejected))
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceQuotations, authz.ActionAssign))
		r.Post("/{id}/assign", h.assign)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceQuotations, authz.ActionDelete))
		r.Delete("/{id}", h.delete)
	})
}

type lineRequest struct {
	Description     string  `json:"description" validate:"required,max=500"`
	Quantity        float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxPercent      float64 `json:"tax_percent" validate:"gte=0,lte=100"`
	LineOrder       int     `json:"line_order" validate:"gte=0"`
}

type createRequest struct {
	CustomerID int64         `json:"customer_id" validate:"required,gt=0"`
	Currency   string        `json:"currency" validate:"required,len=3"`
	ValidUntil time.Time     `json:"valid_until" validate:"required"`
	Notes      *string       `json:"notes,omitempty"`
	AssignedTo *int64        `json:"assigned_to,omitempty" validate:"omitempty,gt=0"`
	Lines      []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type updateLinesRequest struct {
	Lines []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type assignRequest struct {
	AssignedTo *int64 `json:"assigned_to" validate:"omitempty,gt=0"`
}

type listResponse struct {
	Quotations []Quotation       `json:"quotations"`
	Pagination shared.Pagination `json:"pagination"`
}

func toLines(reqs []lineRequest) []Line {
	lines := make([]Line, len(reqs))
	for i, lr := range reqs {
		lines[i] = Line{
			Description:     lr.Description,
			Quantity:        lr.Quantity,
			UnitPrice:       lr.UnitPrice,
			DiscountPercent: lr.DiscountPercent,
			TaxPercent:      lr.TaxPercent,
			LineOrder:       lr.LineOrder,
		}
	}
	return lines
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	page, perPage := shared.PageParams(r)
	customerID, _ := strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
	filter := ListFilter{
		Status:     Status(r.URL.Query().Get("status")),
		CustomerID: customerID,
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	}
	items, total, err := h.service.List(r.Context(), user, filter)
	if err != nil {
		h.respondError(w, "list quotations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Quotations: items,
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
	q, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		h.respondError(w, "get quotation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Create(r.Context(), user, Quotation{
		CustomerID: req.CustomerID,
		Currency:   req.Currency,
		ValidUntil: req.ValidUntil,
		Notes:      req.Notes,
		AssignedTo: req.AssignedTo,
		Lines:      toLines(req.Lines),
	})
	if err != nil {
		h.respondError(w, "create quotation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) updateLines(w http.ResponseWriter, r *http.Request) {
	user, _ := authz.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateLinesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.UpdateLines(r.Context(), user, id, toLines(req.Lines))
	if err != nil {
		h.respondError(w, "update quotation lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) transitionTo(next Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := authz.UserFromContext(r.Context())
		id, err := pathID(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		q, err := h.service.Transition(r.Context(), user, id, next)
		if err != nil {
			h.respondError(w, "transition quotation", err)
			return
		}
		httpx.JSON(w, http.StatusOK, q)
	}
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
		h.respondError(w, "assign quotation", err)
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
		h.respondError(w, "delete quotation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "quotation not found")
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("quotations: "+op, slog.Any("error", err))
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
