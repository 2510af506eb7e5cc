package projection

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jobready/accesscore/internal/platform/httpx"
)

// Handler exposes the principal view endpoint.
type Handler struct {
	logger  *slog.Logger
	builder *Builder
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, builder *Builder) *Handler {
	return &Handler{logger: logger, builder: builder}
}

// MountRoutes registers projection routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/principals/{id}/view", h.principalView)
}

type viewResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	Status      string    `json:"status"`
	Superuser   bool      `json:"superuser"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	RoleNames   []string  `json:"role_names"`
	Permissions []string  `json:"permissions"`
}

func (h *Handler) principalView(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid principal id")
		return
	}
	view, err := h.builder.BuildPrincipalView(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewResponse{
		ID:          view.ID,
		Email:       view.Email,
		FullName:    view.FullName,
		Status:      string(view.Status),
		Superuser:   view.Superuser,
		CreatedAt:   view.CreatedAt,
		UpdatedAt:   view.UpdatedAt,
		RoleNames:   view.RoleNames,
		Permissions: view.Permissions,
	})
}
