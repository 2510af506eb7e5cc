package roles

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jobready/accesscore/internal/authz"
	"github.com/jobready/accesscore/internal/platform/httpx"
	"github.com/jobready/accesscore/internal/shared"
)

// Handler wires HTTP endpoints for role catalog management.
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

// MountRoutes registers role routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.With(h.guard.RequireAny(shared.PermRolesView)).Get("/", h.list)
		r.With(h.guard.RequireAdmin()).Get("/stats", h.stats)
		r.With(h.guard.RequireAdmin()).Post("/", h.create)
		r.With(h.guard.RequireAny(shared.PermRolesView)).Get("/{id}", h.get)
		r.With(h.guard.RequireAdmin()).Patch("/{id}", h.update)
		r.With(h.guard.RequireAdmin()).Delete("/{id}", h.remove)
		r.With(h.guard.RequireAdmin()).Post("/{id}/deactivate", h.deactivate)
		r.With(h.guard.RequireAdmin()).Post("/{id}/permissions", h.addPermission)
		r.With(h.guard.RequireAdmin()).Delete("/{id}/permissions/{token}", h.removePermission)
	})
}

type roleResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toResponse(role Role) roleResponse {
	perms := role.Permissions
	if perms == nil {
		perms = []string{}
	}
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Permissions: perms,
		Status:      string(role.Status),
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

func parseRoleID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

type createRoleRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=50"`
	Description string   `json:"description" validate:"max=1000"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	created, err := h.service.CreateRole(r.Context(), req.Name, req.Description, req.Permissions)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ListFilter{
		Search:     query.Get("search"),
		ActiveOnly: query.Get("active_only") != "false",
		Page:       atoiDefault(query.Get("page"), 1),
		PerPage:    atoiDefault(query.Get("per_page"), 20),
	}
	items, paging, err := h.service.ListRoles(r.Context(), filter)
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(items))
	for _, role := range items {
		out = append(out, toResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out, "pagination": paging})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRoleID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid role id")
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(role))
}

type updateRoleRequest struct {
	Name        *string   `json:"name" validate:"omitempty,min=2,max=50"`
	Description *string   `json:"description" validate:"omitempty,max=1000"`
	Permissions *[]string `json:"permissions"`
	Status      *string   `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRoleID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid role id")
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	var status *shared.Status
	if req.Status != nil {
		s := shared.Status(*req.Status)
		status = &s
	}
	updated, err := h.service.UpdateRole(r.Context(), id, UpdatePatch{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
		Status:      status,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

type addPermissionRequest struct {
	Token string `json:"token" validate:"required,max=200"`
}

func (h *Handler) addPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRoleID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid role id")
		return
	}
	var req addPermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	if err := h.service.AddPermission(r.Context(), id, req.Token); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRoleID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid role id")
		return
	}
	token, err := url.PathUnescape(chi.URLParam(r, "token"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid permission token")
		return
	}
	if err := h.service.RemovePermission(r.Context(), id, token); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRoleID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid role id")
		return
	}
	if err := h.service.DeactivateRole(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRoleID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid role id")
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("role stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if stats.MostAssigned == nil {
		stats.MostAssigned = []RoleUsage{}
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func atoiDefault(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
