package assignments

import (
	"time"

	"github.com/google/uuid"

	"github.com/jobready/accesscore/internal/shared"
)

// Assignment records that a principal holds (or once held) a role.
// Unassignment deactivates the row; only a cascade from principal or
// role deletion removes it, so the audit trail survives.
type Assignment struct {
	ID          int64
	PrincipalID uuid.UUID
	RoleID      int64
	AssignedBy  *uuid.UUID
	Status      shared.Status
	AssignedAt  time.Time
}

// RoleGrant is an assignment joined with its role, fetched eagerly so
// callers never traverse a relation outside the originating snapshot.
type RoleGrant struct {
	Assignment
	RoleName        string
	RoleDescription string
	RoleStatus      shared.Status
}
