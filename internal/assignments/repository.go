package assignments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobready/accesscore/internal/shared"
)

// Repository provides PostgreSQL backed persistence. The ledger keeps
// one row per (principal, role) pair guarded by a unique constraint;
// concurrent assigns for the same pair serialize on the upsert instead
// of racing to insert duplicates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert creates the assignment or returns the existing row. An active
// row comes back unchanged (idempotent assign); an inactive row is
// reactivated with fresh audit metadata.
func (r *Repository) Upsert(ctx context.Context, principalID uuid.UUID, roleID int64, assignedBy *uuid.UUID) (Assignment, error) {
	var a Assignment
	err := r.pool.QueryRow(ctx, `
		INSERT INTO assignments (principal_id, role_id, assigned_by, status, assigned_at)
		VALUES ($1, $2, $3, 'active', NOW())
		ON CONFLICT (principal_id, role_id) DO UPDATE SET
			status      = 'active',
			assigned_by = CASE WHEN assignments.status = 'inactive' THEN EXCLUDED.assigned_by ELSE assignments.assigned_by END,
			assigned_at = CASE WHEN assignments.status = 'inactive' THEN NOW() ELSE assignments.assigned_at END
		RETURNING id, principal_id, role_id, assigned_by, status, assigned_at`,
		principalID, roleID, assignedBy).
		Scan(&a.ID, &a.PrincipalID, &a.RoleID, &a.AssignedBy, &a.Status, &a.AssignedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			// Principal or role vanished between validation and write.
			return Assignment{}, fmt.Errorf("assignments: missing reference: %w", shared.ErrNotFound)
		}
		return Assignment{}, fmt.Errorf("assignments: upsert: %w", err)
	}
	return a, nil
}

// Deactivate soft-removes the active assignment for the pair.
func (r *Repository) Deactivate(ctx context.Context, principalID uuid.UUID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assignments SET status = 'inactive'
		WHERE principal_id = $1 AND role_id = $2 AND status = 'active'`,
		principalID, roleID)
	if err != nil {
		return fmt.Errorf("assignments: deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListForPrincipal fetches assignments joined with their roles, ordered
// by assignment time, in a single query.
func (r *Repository) ListForPrincipal(ctx context.Context, principalID uuid.UUID, activeOnly bool) ([]RoleGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.principal_id, a.role_id, a.assigned_by, a.status, a.assigned_at,
		       r.name, r.description, r.status
		FROM assignments a
		JOIN roles r ON r.id = a.role_id
		WHERE a.principal_id = $1 AND (NOT $2 OR a.status = 'active')
		ORDER BY a.assigned_at, a.id`,
		principalID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("assignments: list for principal: %w", err)
	}
	defer rows.Close()

	grants := make([]RoleGrant, 0)
	for rows.Next() {
		var g RoleGrant
		err := rows.Scan(&g.ID, &g.PrincipalID, &g.RoleID, &g.AssignedBy, &g.Status, &g.AssignedAt,
			&g.RoleName, &g.RoleDescription, &g.RoleStatus)
		if err != nil {
			return nil, fmt.Errorf("assignments: scan: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// CountActivePerRole aggregates active assignments per role in one
// GROUP BY query.
func (r *Repository) CountActivePerRole(ctx context.Context) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT role_id, COUNT(*)
		FROM assignments
		WHERE status = 'active'
		GROUP BY role_id`)
	if err != nil {
		return nil, fmt.Errorf("assignments: count per role: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var roleID int64
		var count int
		if err := rows.Scan(&roleID, &count); err != nil {
			return nil, err
		}
		counts[roleID] = count
	}
	return counts, rows.Err()
}
