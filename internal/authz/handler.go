package authz

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jobready/accesscore/internal/platform/httpx"
)

// Handler exposes evaluation results to external consumers. The resume
// and scoring services only ever call these read endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers evaluation routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/principals/{id}/permissions", h.effectivePermissions)
	r.Get("/principals/{id}/permissions/{token}", h.hasCapability)
	r.Get("/principals/{id}/admin", h.isAdmin)
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid principal id")
		return
	}
	set, err := h.service.EffectivePermissions(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tokens := set.Tokens()
	if tokens == nil {
		tokens = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"all": set.All(), "tokens": tokens})
}

func (h *Handler) hasCapability(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid principal id")
		return
	}
	token, err := url.PathUnescape(chi.URLParam(r, "token"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid permission token")
		return
	}
	granted, err := h.service.HasCapability(r.Context(), id, token)
	if err != nil {
		h.logger.Error("has capability", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"granted": granted})
}

func (h *Handler) isAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid principal id")
		return
	}
	admin, err := h.service.IsAdmin(r.Context(), id)
	if err != nil {
		h.logger.Error("is admin", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"admin": admin})
}
