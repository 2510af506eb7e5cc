package assignments

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jobready/accesscore/internal/authz"
	"github.com/jobready/accesscore/internal/platform/httpx"
	"github.com/jobready/accesscore/internal/shared"
)

// Handler wires HTTP endpoints for the assignment ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers ledger routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/assignments", func(r chi.Router) {
		r.With(h.guard.RequireAdmin()).Post("/", h.assign)
		r.With(h.guard.RequireAdmin()).Delete("/", h.unassign)
		r.With(h.guard.RequireAny(shared.PermAssignmentsView)).Get("/counts", h.counts)
	})
	r.With(h.guard.RequireAny(shared.PermAssignmentsView)).
		Get("/principals/{id}/roles", h.listForPrincipal)
}

type assignmentResponse struct {
	ID          int64      `json:"id"`
	PrincipalID uuid.UUID  `json:"principal_id"`
	RoleID      int64      `json:"role_id"`
	AssignedBy  *uuid.UUID `json:"assigned_by,omitempty"`
	Status      string     `json:"status"`
	AssignedAt  time.Time  `json:"assigned_at"`
}

type grantResponse struct {
	assignmentResponse
	RoleName        string `json:"role_name"`
	RoleDescription string `json:"role_description,omitempty"`
	RoleStatus      string `json:"role_status"`
}

func toAssignmentResponse(a Assignment) assignmentResponse {
	return assignmentResponse{
		ID:          a.ID,
		PrincipalID: a.PrincipalID,
		RoleID:      a.RoleID,
		AssignedBy:  a.AssignedBy,
		Status:      string(a.Status),
		AssignedAt:  a.AssignedAt,
	}
}

type assignRequest struct {
	PrincipalID string `json:"principal_id" validate:"required,uuid"`
	RoleID      int64  `json:"role_id" validate:"required,gt=0"`
	AssignedBy  string `json:"assigned_by" validate:"omitempty,uuid"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	principalID, _ := uuid.Parse(req.PrincipalID)

	// The assigner defaults to the authenticated caller, matching the
	// audit expectation that every grant has an attributable origin.
	var assignedBy *uuid.UUID
	if req.AssignedBy != "" {
		id, _ := uuid.Parse(req.AssignedBy)
		assignedBy = &id
	} else if identity, ok := shared.IdentityFromContext(r.Context()); ok {
		id := identity.PrincipalID
		assignedBy = &id
	}

	created, err := h.service.AssignRole(r.Context(), principalID, req.RoleID, assignedBy)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAssignmentResponse(created))
}

type unassignRequest struct {
	PrincipalID string `json:"principal_id" validate:"required,uuid"`
	RoleID      int64  `json:"role_id" validate:"required,gt=0"`
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	var req unassignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	principalID, _ := uuid.Parse(req.PrincipalID)
	if err := h.service.UnassignRole(r.Context(), principalID, req.RoleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listForPrincipal(w http.ResponseWriter, r *http.Request) {
	principalID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid principal id")
		return
	}
	activeOnly := r.URL.Query().Get("active_only") != "false"
	grants, err := h.service.ListRolesForPrincipal(r.Context(), principalID, activeOnly)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantResponse{
			assignmentResponse: toAssignmentResponse(g.Assignment),
			RoleName:           g.RoleName,
			RoleDescription:    g.RoleDescription,
			RoleStatus:         string(g.RoleStatus),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out, "total": len(out)})
}

func (h *Handler) counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.CountActiveAssignmentsPerRole(r.Context())
	if err != nil {
		h.logger.Error("assignment counts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, counts)
}
