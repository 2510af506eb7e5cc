package authz

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

// Repository resolves grants from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Grants gathers everything one evaluation needs inside a single
// RepeatableRead transaction: the principal row, its active roles, and
// their tokens. A missing principal yields ErrNotFound; an inactive one
// yields empty grants, not an error.
func (r *Repository) Grants(ctx context.Context, principalID uuid.UUID) (Grants, error) {
	var grants Grants
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status shared.Status
		err := tx.QueryRow(ctx, `SELECT status, superuser FROM principals WHERE id = $1`, principalID).
			Scan(&status, &grants.Superuser)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return fmt.Errorf("authz: principal: %w", err)
		}
		grants.PrincipalActive = status.IsActive()
		if !grants.PrincipalActive {
			// Inactive principals contribute nothing; superuser does
			// not outlive deactivation either.
			grants.Superuser = false
			return nil
		}

		rows, err := tx.Query(ctx, `
			SELECT DISTINCT r.name, p.token
			FROM assignments a
			JOIN roles r ON r.id = a.role_id AND r.status = 'active'
			LEFT JOIN role_permissions p ON p.role_id = r.id
			WHERE a.principal_id = $1 AND a.status = 'active'`,
			principalID)
		if err != nil {
			return fmt.Errorf("authz: grants: %w", err)
		}
		defer rows.Close()

		names := make(map[string]struct{})
		tokens := make(map[string]struct{})
		for rows.Next() {
			var name string
			var token *string
			if err := rows.Scan(&name, &token); err != nil {
				return fmt.Errorf("authz: scan: %w", err)
			}
			names[name] = struct{}{}
			if token != nil {
				tokens[*token] = struct{}{}
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		for name := range names {
			grants.RoleNames = append(grants.RoleNames, name)
		}
		for token := range tokens {
			grants.Tokens = append(grants.Tokens, token)
		}
		return nil
	})
	if err != nil {
		return Grants{}, err
	}
	return grants, nil
}
