package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jobready/accesscore/internal/shared"
)

// Middleware wires authorization guards for HTTP handlers. The caller
// identity is whatever the trusted authentication layer put in context;
// superusers bypass token checks entirely.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny ensures the caller holds at least one of the required
// permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	required := normalizeTokens(perms)
	return m.guard(required, func(set PermissionSet) bool {
		for _, token := range required {
			if set.Has(token) {
				return true
			}
		}
		return false
	})
}

// RequireAll ensures the caller holds every required permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	required := normalizeTokens(perms)
	return m.guard(required, func(set PermissionSet) bool {
		for _, token := range required {
			if !set.Has(token) {
				return false
			}
		}
		return true
	})
}

// RequireAdmin ensures the caller passes the two-tier admin check.
func (m Middleware) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if identity.Superuser {
				next.ServeHTTP(w, r)
				return
			}
			admin, err := m.Service.IsAdmin(r.Context(), identity.PrincipalID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz require admin", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !admin {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) guard(required []string, allowed func(PermissionSet) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			identity, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if identity.Superuser {
				next.ServeHTTP(w, r)
				return
			}
			set, err := m.Service.EffectivePermissions(r.Context(), identity.PrincipalID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
				if m.Logger != nil {
					m.Logger.Error("authz require", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if allowed(set) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func normalizeTokens(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := unique[p]; ok {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
