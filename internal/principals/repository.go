package principals

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

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const principalColumns = `id, email, full_name, status, superuser, created_at, updated_at`

func scanPrincipal(row pgx.Row) (Principal, error) {
	var p Principal
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Status, &p.Superuser, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Get fetches a principal by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Principal, error) {
	p, err := scanPrincipal(r.pool.QueryRow(ctx, `SELECT `+principalColumns+` FROM principals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, shared.ErrNotFound
		}
		return Principal{}, fmt.Errorf("principals: get: %w", err)
	}
	return p, nil
}

// List returns principals matching the filter plus the unpaged total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Principal, int, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	where := `WHERE ($1 = '' OR email ILIKE '%' || $1 || '%' OR full_name ILIKE '%' || $1 || '%')
	          AND (NOT $2 OR status = 'active')`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM principals `+where, filter.Search, filter.ActiveOnly).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("principals: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+principalColumns+` FROM principals `+where+` ORDER BY email LIMIT $3 OFFSET $4`,
		filter.Search, filter.ActiveOnly, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("principals: list: %w", err)
	}
	defer rows.Close()

	var result []Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("principals: scan: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Create inserts a principal row. Registration itself happens outside
// this core; the row mirrors the identity it hands us.
func (r *Repository) Create(ctx context.Context, p Principal) (Principal, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO principals (id, email, full_name, status, superuser)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+principalColumns,
		p.ID, p.Email, p.FullName, p.Status, p.Superuser)
	created, err := scanPrincipal(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Principal{}, fmt.Errorf("principals: email taken: %w", shared.ErrConflict)
		}
		return Principal{}, fmt.Errorf("principals: create: %w", err)
	}
	return created, nil
}

// SetStatus transitions the principal lifecycle state.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status shared.Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE principals SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("principals: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the principal and all of its assignments in one
// transaction so no reader can observe an orphaned assignment. The FK
// cascade would do the same; the explicit delete lets us report how
// many assignment rows went with the principal.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	var removed int64
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return 0, fmt.Errorf("principals: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM assignments WHERE principal_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("principals: cascade assignments: %w", err)
	}
	removed = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM principals WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("principals: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, shared.ErrNotFound
	}
	return removed, tx.Commit(ctx)
}
