package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobready/accesscore/internal/shared"
)

// Repository provides PostgreSQL backed persistence. Permission tokens
// live in a normalized role_permissions table with row-level inserts
// and deletes, so concurrent token mutations never lose updates the way
// a read-modify-written blob would.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `r.id, r.name, r.description, r.status, r.created_at, r.updated_at`

const roleWithTokens = `
	SELECT ` + roleColumns + `,
	       COALESCE(array_agg(p.token ORDER BY p.token) FILTER (WHERE p.token IS NOT NULL), '{}')
	FROM roles r
	LEFT JOIN role_permissions p ON p.role_id = r.id`

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Status, &r.CreatedAt, &r.UpdatedAt, &r.Permissions)
	return r, err
}

func translateRoleError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("roles: name taken: %w", shared.ErrDuplicateName)
		case "23503":
			return fmt.Errorf("roles: missing reference: %w", shared.ErrNotFound)
		}
	}
	return err
}

// Create inserts the role and its permission rows in one transaction.
func (r *Repository) Create(ctx context.Context, role Role) (Role, error) {
	var created Role
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO roles (name, name_folded, description, status)
			VALUES ($1, $2, $3, $4)
			RETURNING id, name, description, status, created_at, updated_at`,
			role.Name, FoldName(role.Name), role.Description, role.Status)
		if err := row.Scan(&created.ID, &created.Name, &created.Description, &created.Status, &created.CreatedAt, &created.UpdatedAt); err != nil {
			return translateRoleError(err)
		}
		if err := insertTokens(ctx, tx, created.ID, role.Permissions); err != nil {
			return err
		}
		created.Permissions = role.Permissions
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	return created, nil
}

func insertTokens(ctx context.Context, tx pgx.Tx, roleID int64, tokens []string) error {
	for _, token := range tokens {
		_, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, token)
			VALUES ($1, $2)
			ON CONFLICT (role_id, token) DO NOTHING`, roleID, token)
		if err != nil {
			return fmt.Errorf("roles: insert token: %w", translateRoleError(err))
		}
	}
	return nil
}

// Get fetches a role with its tokens.
func (r *Repository) Get(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, roleWithTokens+` WHERE r.id = $1 GROUP BY r.id`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, fmt.Errorf("roles: get: %w", err)
	}
	return role, nil
}

// GetByName fetches a role by case-insensitive name.
func (r *Repository) GetByName(ctx context.Context, name string) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, roleWithTokens+` WHERE r.name_folded = $1 GROUP BY r.id`, FoldName(name)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, fmt.Errorf("roles: get by name: %w", err)
	}
	return role, nil
}

// List returns roles matching the filter plus the unpaged total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Role, int, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	where := `WHERE ($1 = '' OR r.name ILIKE '%' || $1 || '%' OR r.description ILIKE '%' || $1 || '%')
	          AND (NOT $2 OR r.status = 'active')`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles r `+where, filter.Search, filter.ActiveOnly).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("roles: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, roleWithTokens+` `+where+` GROUP BY r.id ORDER BY r.name LIMIT $3 OFFSET $4`,
		filter.Search, filter.ActiveOnly, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()

	var result []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("roles: scan: %w", err)
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Update applies the patch inside one transaction. A permissions patch
// replaces the token rows atomically.
func (r *Repository) Update(ctx context.Context, id int64, patch UpdatePatch) (Role, error) {
	var updated Role
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE roles SET
				name        = COALESCE($2, name),
				name_folded = COALESCE($3, name_folded),
				description = COALESCE($4, description),
				status      = COALESCE($5, status),
				updated_at  = NOW()
			WHERE id = $1
			RETURNING id, name, description, status, created_at, updated_at`,
			id, patch.Name, foldedOrNil(patch.Name), patch.Description, statusOrNil(patch.Status))
		if err := row.Scan(&updated.ID, &updated.Name, &updated.Description, &updated.Status, &updated.CreatedAt, &updated.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return translateRoleError(err)
		}
		if patch.Permissions != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
				return fmt.Errorf("roles: clear tokens: %w", err)
			}
			if err := insertTokens(ctx, tx, id, *patch.Permissions); err != nil {
				return err
			}
			updated.Permissions = *patch.Permissions
			return nil
		}
		return tx.QueryRow(ctx, `
			SELECT COALESCE(array_agg(token ORDER BY token), '{}')
			FROM role_permissions WHERE role_id = $1`, id).Scan(&updated.Permissions)
	})
	if err != nil {
		return Role{}, err
	}
	return updated, nil
}

func foldedOrNil(name *string) *string {
	if name == nil {
		return nil
	}
	folded := FoldName(*name)
	return &folded
}

func statusOrNil(status *shared.Status) *string {
	if status == nil {
		return nil
	}
	s := string(*status)
	return &s
}

// AddPermission inserts the token row; duplicates are a no-op.
func (r *Repository) AddPermission(ctx context.Context, roleID int64, token string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, token)
		VALUES ($1, $2)
		ON CONFLICT (role_id, token) DO NOTHING`, roleID, token)
	if err != nil {
		return translateRoleError(err)
	}
	return nil
}

// RemovePermission deletes the token row; absence is a no-op as long as
// the role itself exists.
func (r *Repository) RemovePermission(ctx context.Context, roleID int64, token string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND token = $2`, roleID, token)
	if err != nil {
		return fmt.Errorf("roles: remove token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
			return fmt.Errorf("roles: remove token: %w", err)
		}
		if !exists {
			return shared.ErrNotFound
		}
	}
	return nil
}

// Deactivate transitions the role to inactive under the given policy.
// The role row is locked first so the assignment count cannot change
// underneath the decision.
func (r *Repository) Deactivate(ctx context.Context, id int64, policy DeactivationPolicy) (int64, error) {
	var cascaded int64
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		var status shared.Status
		err := tx.QueryRow(ctx, `SELECT status FROM roles WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return fmt.Errorf("roles: lock role: %w", err)
		}

		var activeAssignments int64
		err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM assignments WHERE role_id = $1 AND status = 'active'`, id).Scan(&activeAssignments)
		if err != nil {
			return fmt.Errorf("roles: count assignments: %w", err)
		}

		switch {
		case activeAssignments > 0 && policy == PolicyBlock:
			return fmt.Errorf("roles: %d active assignments: %w", activeAssignments, shared.ErrConflict)
		case activeAssignments > 0 && policy == PolicyCascade:
			tag, err := tx.Exec(ctx, `UPDATE assignments SET status = 'inactive' WHERE role_id = $1 AND status = 'active'`, id)
			if err != nil {
				return fmt.Errorf("roles: cascade deactivate: %w", err)
			}
			cascaded = tag.RowsAffected()
		}

		_, err = tx.Exec(ctx, `UPDATE roles SET status = 'inactive', updated_at = NOW() WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return 0, err
	}
	return cascaded, nil
}

// Delete hard-removes the role; its assignments and permission rows go
// in the same transaction so no dangling reference survives.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM assignments WHERE role_id = $1`, id)
		if err != nil {
			return fmt.Errorf("roles: cascade assignments: %w", err)
		}
		removed = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("roles: delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ActivePrincipalIDs lists principals currently holding the role, used
// to invalidate their cached effective permissions after a catalog
// mutation.
func (r *Repository) ActivePrincipalIDs(ctx context.Context, roleID int64) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT principal_id FROM assignments WHERE role_id = $1 AND status = 'active'`, roleID)
	if err != nil {
		return nil, fmt.Errorf("roles: principals for role: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats aggregates catalog usage in a handful of queries; the top-roles
// ranking is a single GROUP BY, never a per-role lookup.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM roles),
			(SELECT COUNT(*) FROM roles WHERE status = 'active'),
			(SELECT COUNT(*) FROM assignments),
			(SELECT COUNT(*) FROM assignments WHERE status = 'active')`).
		Scan(&stats.TotalRoles, &stats.ActiveRoles, &stats.TotalAssignments, &stats.ActiveAssignments)
	if err != nil {
		return Stats{}, fmt.Errorf("roles: stats: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, COUNT(a.id)
		FROM roles r
		JOIN assignments a ON a.role_id = r.id AND a.status = 'active'
		GROUP BY r.id, r.name
		ORDER BY COUNT(a.id) DESC, r.name
		LIMIT 10`)
	if err != nil {
		return Stats{}, fmt.Errorf("roles: top roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var usage RoleUsage
		if err := rows.Scan(&usage.RoleID, &usage.RoleName, &usage.Assignments); err != nil {
			return Stats{}, err
		}
		stats.MostAssigned = append(stats.MostAssigned, usage)
	}
	return stats, rows.Err()
}
