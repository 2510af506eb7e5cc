package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jobready/accesscore/internal/shared"
)

func guardedRequest(t *testing.T, mw func(http.Handler) http.Handler, identity *shared.Identity) int {
	t.Helper()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if identity != nil {
		req = req.WithContext(shared.ContextWithIdentity(req.Context(), *identity))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAny(t *testing.T) {
	editor := uuid.New()
	repo := &stubGrantsRepo{grants: map[uuid.UUID]Grants{
		editor: {PrincipalActive: true, Tokens: []string{"doc:read"}},
	}}
	mw := Middleware{Service: NewService(repo, nil, nil, "")}

	code := guardedRequest(t, mw.RequireAny("doc:read", "doc:write"), &shared.Identity{PrincipalID: editor})
	require.Equal(t, http.StatusOK, code)

	code = guardedRequest(t, mw.RequireAny("doc:delete"), &shared.Identity{PrincipalID: editor})
	require.Equal(t, http.StatusForbidden, code)

	code = guardedRequest(t, mw.RequireAny("doc:read"), nil)
	require.Equal(t, http.StatusForbidden, code)
}

func TestRequireAll(t *testing.T) {
	editor := uuid.New()
	repo := &stubGrantsRepo{grants: map[uuid.UUID]Grants{
		editor: {PrincipalActive: true, Tokens: []string{"doc:read", "doc:write"}},
	}}
	mw := Middleware{Service: NewService(repo, nil, nil, "")}

	code := guardedRequest(t, mw.RequireAll("doc:read", "doc:write"), &shared.Identity{PrincipalID: editor})
	require.Equal(t, http.StatusOK, code)

	code = guardedRequest(t, mw.RequireAll("doc:read", "doc:delete"), &shared.Identity{PrincipalID: editor})
	require.Equal(t, http.StatusForbidden, code)
}

func TestGuardSuperuserBypass(t *testing.T) {
	repo := &stubGrantsRepo{grants: map[uuid.UUID]Grants{}}
	mw := Middleware{Service: NewService(repo, nil, nil, "")}
	identity := &shared.Identity{PrincipalID: uuid.New(), Superuser: true}

	code := guardedRequest(t, mw.RequireAll("doc:read", "doc:write"), identity)
	require.Equal(t, http.StatusOK, code)
	require.Zero(t, repo.calls)

	code = guardedRequest(t, mw.RequireAdmin(), identity)
	require.Equal(t, http.StatusOK, code)
	require.Zero(t, repo.calls)
}

func TestGuardUnknownPrincipalDenied(t *testing.T) {
	repo := &stubGrantsRepo{grants: map[uuid.UUID]Grants{}}
	mw := Middleware{Service: NewService(repo, nil, nil, "")}

	code := guardedRequest(t, mw.RequireAny("doc:read"), &shared.Identity{PrincipalID: uuid.New()})
	require.Equal(t, http.StatusForbidden, code)
}

func TestRequireAdmin(t *testing.T) {
	admin := uuid.New()
	plain := uuid.New()
	repo := &stubGrantsRepo{grants: map[uuid.UUID]Grants{
		admin: {PrincipalActive: true, RoleNames: []string{"admin"}},
		plain: {PrincipalActive: true, Tokens: []string{"doc:read"}},
	}}
	mw := Middleware{Service: NewService(repo, nil, nil, "admin")}

	code := guardedRequest(t, mw.RequireAdmin(), &shared.Identity{PrincipalID: admin})
	require.Equal(t, http.StatusOK, code)

	code = guardedRequest(t, mw.RequireAdmin(), &shared.Identity{PrincipalID: plain})
	require.Equal(t, http.StatusForbidden, code)

	code = guardedRequest(t, mw.RequireAdmin(), nil)
	require.Equal(t, http.StatusForbidden, code)
}
