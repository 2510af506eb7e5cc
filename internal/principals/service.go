package principals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jobready/accesscore/internal/shared"
)

// RepositoryPort defines data access methods for principals.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (Principal, error)
	List(ctx context.Context, filter ListFilter) ([]Principal, int, error)
	Create(ctx context.Context, p Principal) (Principal, error)
	SetStatus(ctx context.Context, id uuid.UUID, status shared.Status) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// AuditPort records mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached effective permissions for a principal.
type Invalidator interface {
	InvalidatePrincipal(ctx context.Context, id uuid.UUID)
}

// Service handles principal business logic.
type Service struct {
	repo       RepositoryPort
	audit      AuditPort
	invalidate Invalidator
	logger     *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit AuditPort, invalidate Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, invalidate: invalidate, logger: logger}
}

// RegisterInput mirrors the identity handed over by the external
// registration flow.
type RegisterInput struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	Superuser bool
}

// Register records a principal created by the external account system.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Principal, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" {
		return Principal{}, fmt.Errorf("principals: email required: %w", shared.ErrInvalidInput)
	}
	if input.ID == uuid.Nil {
		input.ID = uuid.New()
	}
	created, err := s.repo.Create(ctx, Principal{
		ID:        input.ID,
		Email:     email,
		FullName:  strings.TrimSpace(input.FullName),
		Status:    shared.StatusActive,
		Superuser: input.Superuser,
	})
	if err != nil {
		return Principal{}, err
	}
	s.recordAudit(ctx, "PRINCIPAL_REGISTER", created.ID, map[string]any{"email": created.Email})
	return created, nil
}

// Get fetches a principal by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Principal, error) {
	return s.repo.Get(ctx, id)
}

// List returns principals with pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Principal, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// IsActive reports whether the principal exists and is active. External
// consumers (resume and scoring services) call this and nothing else.
func (s *Service) IsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.Status.IsActive(), nil
}

// SetStatus transitions a principal between active and inactive.
func (s *Service) SetStatus(ctx context.Context, actorID, id uuid.UUID, status shared.Status) error {
	if !status.Valid() {
		return fmt.Errorf("principals: status %q: %w", status, shared.ErrInvalidInput)
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return err
	}
	s.dropCache(ctx, id)
	s.recordAuditAs(ctx, actorID, "PRINCIPAL_STATUS", id, map[string]any{"status": string(status)})
	return nil
}

// Delete reacts to an external account deletion: the principal and all
// of its assignments vanish atomically.
func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.dropCache(ctx, id)
	s.recordAuditAs(ctx, actorID, "PRINCIPAL_DELETE", id, map[string]any{"assignments_removed": removed})
	return nil
}

func (s *Service) dropCache(ctx context.Context, id uuid.UUID) {
	if s.invalidate != nil {
		s.invalidate.InvalidatePrincipal(ctx, id)
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, id uuid.UUID, meta map[string]any) {
	s.recordAuditAs(ctx, uuid.Nil, action, id, meta)
}

func (s *Service) recordAuditAs(ctx context.Context, actorID uuid.UUID, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if actorID == uuid.Nil {
		if identity, ok := shared.IdentityFromContext(ctx); ok {
			actorID = identity.PrincipalID
		}
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "principals",
		EntityID: id.String(),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("principal audit", slog.Any("error", err))
	}
}
