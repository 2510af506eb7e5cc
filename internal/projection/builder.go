// Package projection assembles read views spanning principals, their
// assignments, and the role catalog. Every traversal happens inside one
// repository snapshot; what comes out is plain immutable data that can
// safely cross goroutine and request boundaries.
package projection

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jobready/accesscore/internal/shared"
)

// PrincipalView is the external read model for a principal: identity
// fields, role names in assignment order, and the deduplicated union of
// permission tokens. No field re-resolves anything lazily.
type PrincipalView struct {
	ID          uuid.UUID
	Email       string
	FullName    string
	Status      shared.Status
	Superuser   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RoleNames   []string
	Permissions []string
}

// PrincipalRecord is the raw snapshot a repository hands the builder.
type PrincipalRecord struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	Status    shared.Status
	Superuser bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Grants    []GrantRecord
}

// GrantRecord is one active assignment with its role data, already
// joined at fetch time.
type GrantRecord struct {
	RoleName   string
	AssignedAt time.Time
	Tokens     []string
}

// RepositoryPort fetches the complete snapshot in one consistent read.
type RepositoryPort interface {
	FetchPrincipal(ctx context.Context, id uuid.UUID) (PrincipalRecord, error)
}

// Builder turns snapshots into views.
type Builder struct {
	repo RepositoryPort
}

// NewBuilder constructs a Builder.
func NewBuilder(repo RepositoryPort) *Builder {
	return &Builder{repo: repo}
}

// BuildPrincipalView assembles the view for one principal. Role names
// keep assignment order; tokens are deduplicated across roles.
func (b *Builder) BuildPrincipalView(ctx context.Context, id uuid.UUID) (PrincipalView, error) {
	record, err := b.repo.FetchPrincipal(ctx, id)
	if err != nil {
		return PrincipalView{}, err
	}

	view := PrincipalView{
		ID:          record.ID,
		Email:       record.Email,
		FullName:    record.FullName,
		Status:      record.Status,
		Superuser:   record.Superuser,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
		RoleNames:   make([]string, 0, len(record.Grants)),
		Permissions: []string{},
	}

	seen := make(map[string]struct{})
	for _, grant := range record.Grants {
		view.RoleNames = append(view.RoleNames, grant.RoleName)
		for _, token := range grant.Tokens {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			view.Permissions = append(view.Permissions, token)
		}
	}
	return view, nil
}
