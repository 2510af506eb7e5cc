package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobready/accesscore/internal/platform/db"
	"github.com/jobready/accesscore/internal/shared"
)

// Repository fetches projection snapshots from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FetchPrincipal reads the principal and every active grant in one
// RepeatableRead transaction, so the view cannot mix states from
// before and after a concurrent mutation.
func (r *Repository) FetchPrincipal(ctx context.Context, id uuid.UUID) (PrincipalRecord, error) {
	var record PrincipalRecord
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, email, full_name, status, superuser, created_at, updated_at
			FROM principals WHERE id = $1`, id).
			Scan(&record.ID, &record.Email, &record.FullName, &record.Status,
				&record.Superuser, &record.CreatedAt, &record.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return fmt.Errorf("projection: principal: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT r.name, a.assigned_at,
			       COALESCE(array_agg(p.token ORDER BY p.token) FILTER (WHERE p.token IS NOT NULL), '{}')
			FROM assignments a
			JOIN roles r ON r.id = a.role_id AND r.status = 'active'
			LEFT JOIN role_permissions p ON p.role_id = r.id
			WHERE a.principal_id = $1 AND a.status = 'active'
			GROUP BY r.id, r.name, a.assigned_at, a.id
			ORDER BY a.assigned_at, a.id`, id)
		if err != nil {
			return fmt.Errorf("projection: grants: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var grant GrantRecord
			if err := rows.Scan(&grant.RoleName, &grant.AssignedAt, &grant.Tokens); err != nil {
				return fmt.Errorf("projection: scan: %w", err)
			}
			record.Grants = append(record.Grants, grant)
		}
		return rows.Err()
	})
	if err != nil {
		return PrincipalRecord{}, err
	}
	return record, nil
}
