package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jobready/accesscore/internal/shared"
)

func TestTrustedIdentityParsesHeaders(t *testing.T) {
	principalID := uuid.New()
	var captured shared.Identity
	var present bool

	handler := TrustedIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, present = shared.IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	req.Header.Set(HeaderPrincipalID, principalID.String())
	req.Header.Set(HeaderSuperuser, "true")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, present)
	require.Equal(t, principalID, captured.PrincipalID)
	require.True(t, captured.Superuser)
}

func TestTrustedIdentityAnonymous(t *testing.T) {
	var present bool
	handler := TrustedIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = shared.IdentityFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roles", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, present)
}

func TestTrustedIdentityRejectsMalformedID(t *testing.T) {
	called := false
	handler := TrustedIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	req.Header.Set(HeaderPrincipalID, "not-a-uuid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, called)
}

func TestTrustedIdentityIgnoresBogusSuperuserValue(t *testing.T) {
	var captured shared.Identity
	handler := TrustedIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = shared.IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	req.Header.Set(HeaderPrincipalID, uuid.NewString())
	req.Header.Set(HeaderSuperuser, "TRUE")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.False(t, captured.Superuser)
}
