package assignments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jobready/accesscore/internal/principals"
	"github.com/jobready/accesscore/internal/roles"
	"github.com/jobready/accesscore/internal/shared"
)

// RepositoryPort defines data access methods for the ledger.
type RepositoryPort interface {
	Upsert(ctx context.Context, principalID uuid.UUID, roleID int64, assignedBy *uuid.UUID) (Assignment, error)
	Deactivate(ctx context.Context, principalID uuid.UUID, roleID int64) error
	ListForPrincipal(ctx context.Context, principalID uuid.UUID, activeOnly bool) ([]RoleGrant, error)
	CountActivePerRole(ctx context.Context) (map[int64]int, error)
}

// PrincipalPort exposes the principal lookups the ledger validates
// against.
type PrincipalPort interface {
	Get(ctx context.Context, id uuid.UUID) (principals.Principal, error)
}

// RolePort exposes the role lookups the ledger validates against.
type RolePort interface {
	GetRole(ctx context.Context, id int64) (roles.Role, error)
}

// AuditPort records mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached effective permissions for a principal.
type Invalidator interface {
	InvalidatePrincipal(ctx context.Context, id uuid.UUID)
}

// Service orchestrates the assignment ledger.
type Service struct {
	repo       RepositoryPort
	principals PrincipalPort
	roles      RolePort
	audit      AuditPort
	invalidate Invalidator
	logger     *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, principalPort PrincipalPort, rolePort RolePort, audit AuditPort, invalidate Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, principals: principalPort, roles: rolePort, audit: audit, invalidate: invalidate, logger: logger}
}

// AssignRole grants the role to the principal. Assigning an already
// held role is a success that returns the existing row; an inactive
// role is never silently assigned.
func (s *Service) AssignRole(ctx context.Context, principalID uuid.UUID, roleID int64, assignedBy *uuid.UUID) (Assignment, error) {
	if _, err := s.principals.Get(ctx, principalID); err != nil {
		return Assignment{}, fmt.Errorf("assignments: principal %s: %w", principalID, err)
	}
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return Assignment{}, fmt.Errorf("assignments: role %d: %w", roleID, err)
	}
	if !role.Status.IsActive() {
		return Assignment{}, fmt.Errorf("assignments: role %q is inactive: %w", role.Name, shared.ErrConflict)
	}

	created, err := s.repo.Upsert(ctx, principalID, roleID, assignedBy)
	if err != nil {
		return Assignment{}, err
	}
	s.dropCache(ctx, principalID)
	s.recordAudit(ctx, "ROLE_ASSIGN", created, map[string]any{"role": role.Name})
	return created, nil
}

// UnassignRole soft-deactivates the active assignment, preserving the
// row for audit history.
func (s *Service) UnassignRole(ctx context.Context, principalID uuid.UUID, roleID int64) error {
	if err := s.repo.Deactivate(ctx, principalID, roleID); err != nil {
		return err
	}
	s.dropCache(ctx, principalID)
	s.recordAudit(ctx, "ROLE_UNASSIGN", Assignment{PrincipalID: principalID, RoleID: roleID}, nil)
	return nil
}

// ListRolesForPrincipal returns the principal's grants ordered by
// assignment time. A principal with zero roles yields an empty slice,
// never an error.
func (s *Service) ListRolesForPrincipal(ctx context.Context, principalID uuid.UUID, activeOnly bool) ([]RoleGrant, error) {
	if _, err := s.principals.Get(ctx, principalID); err != nil {
		return nil, err
	}
	return s.repo.ListForPrincipal(ctx, principalID, activeOnly)
}

// CountActiveAssignmentsPerRole reports the active assignment count per
// role as one aggregate.
func (s *Service) CountActiveAssignmentsPerRole(ctx context.Context) (map[int64]int, error) {
	return s.repo.CountActivePerRole(ctx)
}

func (s *Service) dropCache(ctx context.Context, principalID uuid.UUID) {
	if s.invalidate != nil {
		s.invalidate.InvalidatePrincipal(ctx, principalID)
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, a Assignment, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["principal_id"] = a.PrincipalID.String()
	meta["role_id"] = a.RoleID
	var actor uuid.UUID
	if identity, ok := shared.IdentityFromContext(ctx); ok {
		actor = identity.PrincipalID
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "assignments",
		EntityID: fmt.Sprintf("%s:%d", a.PrincipalID, a.RoleID),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("assignment audit", slog.Any("error", err))
	}
}
