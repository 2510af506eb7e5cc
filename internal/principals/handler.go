package principals

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jobready/accesscore/internal/authz"
	"github.com/jobready/accesscore/internal/platform/httpx"
	"github.com/jobready/accesscore/internal/shared"
)

// Handler wires HTTP endpoints for principal management.
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

// MountRoutes registers principal routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/principals", func(r chi.Router) {
		r.With(h.guard.RequireAny(shared.PermPrincipalsView)).Get("/", h.list)
		r.With(h.guard.RequireAny(shared.PermPrincipalsEdit)).Post("/", h.register)
		r.With(h.guard.RequireAny(shared.PermPrincipalsView)).Get("/{id}", h.get)
		r.Get("/{id}/active", h.active)
		r.With(h.guard.RequireAny(shared.PermPrincipalsEdit)).Post("/{id}/status", h.setStatus)
		r.With(h.guard.RequireAny(shared.PermPrincipalsEdit)).Delete("/{id}", h.remove)
	})
}

type principalResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Status    string    `json:"status"`
	Superuser bool      `json:"superuser"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(p Principal) principalResponse {
	return principalResponse{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		Status:    string(p.Status),
		Superuser: p.Superuser,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func parseID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ListFilter{
		Search:     query.Get("search"),
		ActiveOnly: query.Get("active_only") != "false",
		Page:       atoiDefault(query.Get("page"), 1),
		PerPage:    atoiDefault(query.Get("per_page"), 20),
	}
	items, paging, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list principals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]principalResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out, "pagination": paging})
}

type registerRequest struct {
	ID        string `json:"id" validate:"omitempty,uuid"`
	Email     string `json:"email" validate:"required,email"`
	FullName  string `json:"full_name" validate:"max=200"`
	Superuser bool   `json:"superuser"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	input := RegisterInput{Email: req.Email, FullName: req.FullName, Superuser: req.Superuser}
	if req.ID != "" {
		input.ID, _ = uuid.Parse(req.ID)
	}
	created, err := h.service.Register(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid principal id")
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid principal id")
		return
	}
	activeNow, err := h.service.IsActive(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"active": activeNow})
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid principal id")
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	if err := h.service.SetStatus(r.Context(), actorFrom(r), id, shared.Status(req.Status)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid principal id")
		return
	}
	if err := h.service.Delete(r.Context(), actorFrom(r), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actorFrom(r *http.Request) uuid.UUID {
	if identity, ok := shared.IdentityFromContext(r.Context()); ok {
		return identity.PrincipalID
	}
	return uuid.Nil
}

func atoiDefault(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
