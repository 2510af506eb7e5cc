package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jobready/accesscore/internal/shared"
)

// RepositoryPort defines data access methods for the role catalog.
type RepositoryPort interface {
	Create(ctx context.Context, role Role) (Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	GetByName(ctx context.Context, name string) (Role, error)
	List(ctx context.Context, filter ListFilter) ([]Role, int, error)
	Update(ctx context.Context, id int64, patch UpdatePatch) (Role, error)
	AddPermission(ctx context.Context, roleID int64, token string) error
	RemovePermission(ctx context.Context, roleID int64, token string) error
	Deactivate(ctx context.Context, id int64, policy DeactivationPolicy) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	ActivePrincipalIDs(ctx context.Context, roleID int64) ([]uuid.UUID, error)
	Stats(ctx context.Context) (Stats, error)
}

// AuditPort records mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached effective permissions. Targeted mutations
// invalidate per principal; a hard delete sweeps the whole cache.
type Invalidator interface {
	InvalidatePrincipal(ctx context.Context, id uuid.UUID)
	InvalidateAll(ctx context.Context) error
}

// Service handles role catalog business logic.
type Service struct {
	repo       RepositoryPort
	audit      AuditPort
	invalidate Invalidator
	policy     DeactivationPolicy
	logger     *slog.Logger
}

// NewService builds a Service instance. The deactivation policy is a
// deployment choice; block is the safe default.
func NewService(repo RepositoryPort, audit AuditPort, invalidate Invalidator, policy DeactivationPolicy, logger *slog.Logger) *Service {
	if !policy.Valid() {
		policy = PolicyBlock
	}
	return &Service{repo: repo, audit: audit, invalidate: invalidate, policy: policy, logger: logger}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("roles: name required: %w", shared.ErrInvalidInput)
	}
	return name, nil
}

// CreateRole inserts a new role with a sanitized permission set. The
// wildcard token is stored as an ordinary token; only the evaluator
// interprets it.
func (s *Service) CreateRole(ctx context.Context, name, description string, permissions []string) (Role, error) {
	name, err := validateName(name)
	if err != nil {
		return Role{}, err
	}
	created, err := s.repo.Create(ctx, Role{
		Name:        name,
		Description: strings.TrimSpace(description),
		Permissions: SanitizeTokens(permissions),
		Status:      shared.StatusActive,
	})
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, "ROLE_CREATE", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

// GetRoleByName fetches a role by case-insensitive name.
func (s *Service) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return s.repo.GetByName(ctx, name)
}

// ListRoles returns roles with pagination metadata.
func (s *Service) ListRoles(ctx context.Context, filter ListFilter) ([]Role, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// UpdateRole applies a partial update. A patched permission list is
// sanitized the same way creation is; a status patch of 'active'
// reactivates a previously deactivated role.
func (s *Service) UpdateRole(ctx context.Context, id int64, patch UpdatePatch) (Role, error) {
	if patch.Name != nil {
		name, err := validateName(*patch.Name)
		if err != nil {
			return Role{}, err
		}
		patch.Name = &name
	}
	if patch.Description != nil {
		trimmed := strings.TrimSpace(*patch.Description)
		patch.Description = &trimmed
	}
	if patch.Permissions != nil {
		clean := SanitizeTokens(*patch.Permissions)
		patch.Permissions = &clean
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return Role{}, fmt.Errorf("roles: status %q: %w", *patch.Status, shared.ErrInvalidInput)
	}
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Role{}, err
	}
	// Both the token set and the lifecycle state feed the evaluator,
	// so either patch drops the holders' cached permissions.
	if patch.Permissions != nil || patch.Status != nil {
		s.dropCacheForRole(ctx, id)
	}
	s.recordAudit(ctx, "ROLE_UPDATE", id, map[string]any{"name": updated.Name})
	return updated, nil
}

// AddPermission grants a token to the role. Empty tokens are ignored
// and duplicates are a no-op.
func (s *Service) AddPermission(ctx context.Context, roleID int64, token string) error {
	token = NormalizeToken(token)
	if token == "" {
		return nil
	}
	if _, err := s.repo.Get(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.AddPermission(ctx, roleID, token); err != nil {
		return err
	}
	s.dropCacheForRole(ctx, roleID)
	s.recordAudit(ctx, "ROLE_PERM_ADD", roleID, map[string]any{"token": token})
	return nil
}

// RemovePermission revokes a token from the role; absence is a no-op.
func (s *Service) RemovePermission(ctx context.Context, roleID int64, token string) error {
	token = NormalizeToken(token)
	if token == "" {
		return nil
	}
	if err := s.repo.RemovePermission(ctx, roleID, token); err != nil {
		return err
	}
	s.dropCacheForRole(ctx, roleID)
	s.recordAudit(ctx, "ROLE_PERM_REMOVE", roleID, map[string]any{"token": token})
	return nil
}

// DeactivateRole retires a role from further assignment under the
// configured policy.
func (s *Service) DeactivateRole(ctx context.Context, id int64) error {
	// Principals to invalidate must be captured before a cascade
	// flips their assignments inactive.
	principalIDs, err := s.repo.ActivePrincipalIDs(ctx, id)
	if err != nil {
		return err
	}
	cascaded, err := s.repo.Deactivate(ctx, id, s.policy)
	if err != nil {
		return err
	}
	s.dropCacheFor(ctx, principalIDs)
	s.recordAudit(ctx, "ROLE_DEACTIVATE", id, map[string]any{"policy": string(s.policy), "assignments_deactivated": cascaded})
	return nil
}

// DeleteRole hard-removes a role; every assignment referencing it goes
// in the same transaction. Deletion also takes inactive assignments
// with it, so the cache is swept rather than invalidated per holder.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.dropCacheAll(ctx)
	s.recordAudit(ctx, "ROLE_DELETE", id, map[string]any{"assignments_removed": removed})
	return nil
}

// Stats reports catalog and ledger usage.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) dropCacheForRole(ctx context.Context, roleID int64) {
	ids, err := s.repo.ActivePrincipalIDs(ctx, roleID)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("roles cache invalidation", slog.Any("error", err))
		}
		return
	}
	s.dropCacheFor(ctx, ids)
}

func (s *Service) dropCacheFor(ctx context.Context, ids []uuid.UUID) {
	if s.invalidate == nil {
		return
	}
	for _, id := range ids {
		s.invalidate.InvalidatePrincipal(ctx, id)
	}
}

func (s *Service) dropCacheAll(ctx context.Context) {
	if s.invalidate == nil {
		return
	}
	if err := s.invalidate.InvalidateAll(ctx); err != nil && s.logger != nil {
		s.logger.Error("roles cache sweep", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, roleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	var actor uuid.UUID
	if identity, ok := shared.IdentityFromContext(ctx); ok {
		actor = identity.PrincipalID
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "roles",
		EntityID: strconv.FormatInt(roleID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("role audit", slog.Any("error", err))
	}
}
