package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jobready/accesscore/internal/shared"
)

// RepositoryPort resolves raw grants for a principal.
type RepositoryPort interface {
	Grants(ctx context.Context, principalID uuid.UUID) (Grants, error)
}

// MetricsPort records cache outcomes.
type MetricsPort interface {
	CacheHit()
	CacheMiss()
}

// Service evaluates effective permissions.
type Service struct {
	repo        RepositoryPort
	cache       *Cache
	metrics     MetricsPort
	group       singleflight.Group
	adminMarker string
}

// NewService builds a Service instance. adminMarker is the role name or
// permission token that marks a principal as admin alongside the
// superuser flag.
func NewService(repo RepositoryPort, cache *Cache, metrics MetricsPort, adminMarker string) *Service {
	if adminMarker == "" {
		adminMarker = "admin"
	}
	return &Service{repo: repo, cache: cache, metrics: metrics, adminMarker: adminMarker}
}

// EffectivePermissions resolves the union of tokens granted through all
// active role assignments. Nothing granted is an empty set, never an
// error; only an unknown principal fails.
func (s *Service) EffectivePermissions(ctx context.Context, principalID uuid.UUID) (PermissionSet, error) {
	if set, ok := s.cache.Get(ctx, principalID); ok {
		if s.metrics != nil {
			s.metrics.CacheHit()
		}
		return set, nil
	}
	if s.metrics != nil {
		s.metrics.CacheMiss()
	}

	// Concurrent misses for the same principal collapse into one
	// database round trip.
	result, err, _ := s.group.Do(principalID.String(), func() (any, error) {
		grants, err := s.repo.Grants(ctx, principalID)
		if err != nil {
			return nil, err
		}
		set := NewPermissionSet(grants.Tokens)
		s.cache.Set(ctx, principalID, set)
		return set, nil
	})
	if err != nil {
		return PermissionSet{}, err
	}
	return result.(PermissionSet), nil
}

// HasCapability reports whether the principal holds the token. The
// all-granted sentinel short-circuits.
func (s *Service) HasCapability(ctx context.Context, principalID uuid.UUID, token string) (bool, error) {
	set, err := s.EffectivePermissions(ctx, principalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return set.Has(token), nil
}

// IsAdmin applies the documented two-tier check: the superuser flag OR
// the configured admin marker appearing as a role name or permission
// token. Both paths are kept deliberately until product intent narrows
// them down.
func (s *Service) IsAdmin(ctx context.Context, principalID uuid.UUID) (bool, error) {
	grants, err := s.repo.Grants(ctx, principalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if grants.Superuser {
		return true, nil
	}
	for _, name := range grants.RoleNames {
		if name == s.adminMarker {
			return true, nil
		}
	}
	set := NewPermissionSet(grants.Tokens)
	return set.Has(s.adminMarker), nil
}

// Invalidate drops the cached evaluation for a principal.
func (s *Service) Invalidate(ctx context.Context, principalID uuid.UUID) {
	s.cache.InvalidatePrincipal(ctx, principalID)
}
