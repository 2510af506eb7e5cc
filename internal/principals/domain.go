package principals

import (
	"time"

	"github.com/google/uuid"

	"github.com/jobready/accesscore/internal/shared"
)

// Principal represents an authenticated identity capable of holding
// roles. The full profile lives outside this core; only the fields the
// evaluator and ledger depend on are kept here.
type Principal struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	Status    shared.Status
	Superuser bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListFilter narrows principal listings.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	Page       int
	PerPage    int
}
