package roles

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jobready/accesscore/internal/authz"
	"github.com/jobready/accesscore/internal/shared"
)

func newTestRouter(repo *memoryRepo, policy DeactivationPolicy) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, nil, nil, policy, logger)
	handler := NewHandler(logger, svc, authz.Middleware{Logger: logger})

	r := chi.NewRouter()
	// Stand-in for the trusted identity layer: every request arrives
	// as a superuser so guards pass without a live evaluator.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			identity := shared.Identity{PrincipalID: uuid.New(), Superuser: true}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithIdentity(req.Context(), identity)))
		})
	})
	handler.MountRoutes(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateRoleEndpoint(t *testing.T) {
	router := newTestRouter(newMemoryRepo(), PolicyBlock)

	rec := doJSON(t, router, http.MethodPost, "/roles", map[string]any{
		"name":        "editor",
		"description": "can edit",
		"permissions": []string{"doc:write", "doc:read"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created roleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "editor", created.Name)
	require.Equal(t, []string{"doc:read", "doc:write"}, created.Permissions)
	require.Equal(t, "active", created.Status)
}

func TestCreateRoleConflict(t *testing.T) {
	router := newTestRouter(newMemoryRepo(), PolicyBlock)

	rec := doJSON(t, router, http.MethodPost, "/roles", map[string]any{"name": "editor"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/roles", map[string]any{"name": "Editor"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestCreateRoleValidation(t *testing.T) {
	router := newTestRouter(newMemoryRepo(), PolicyBlock)

	rec := doJSON(t, router, http.MethodPost, "/roles", map[string]any{"name": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/roles", bytes.NewReader([]byte("{not json")))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestGetRoleNotFound(t *testing.T) {
	router := newTestRouter(newMemoryRepo(), PolicyBlock)

	rec := doJSON(t, router, http.MethodGet, "/roles/42", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/roles/banana", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeactivateBlockedEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	router := newTestRouter(repo, PolicyBlock)

	rec := doJSON(t, router, http.MethodPost, "/roles", map[string]any{"name": "editor"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created roleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	repo.assign(created.ID, uuid.New())

	rec = doJSON(t, router, http.MethodPost, "/roles/1/deactivate", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateRoleStatusEndpoint(t *testing.T) {
	router := newTestRouter(newMemoryRepo(), PolicyAllow)

	rec := doJSON(t, router, http.MethodPost, "/roles", map[string]any{"name": "editor"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/roles/1/deactivate", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/roles/1", map[string]any{"status": "retired"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/roles/1", map[string]any{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated roleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, "active", updated.Status)
}

func TestPermissionEndpoints(t *testing.T) {
	router := newTestRouter(newMemoryRepo(), PolicyBlock)

	rec := doJSON(t, router, http.MethodPost, "/roles", map[string]any{"name": "editor"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/roles/1/permissions", map[string]any{"token": "doc:write"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/roles/1/permissions/doc:write", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/roles/99/permissions", map[string]any{"token": "doc:write"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGuardRejectsAnonymous(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(newMemoryRepo(), nil, nil, PolicyBlock, logger)
	handler := NewHandler(logger, svc, authz.Middleware{Logger: logger})

	r := chi.NewRouter()
	handler.MountRoutes(r)

	rec := doJSON(t, r, http.MethodPost, "/roles", map[string]any{"name": "editor"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}
