package shared

import "errors"

var (
	// ErrNotFound indicates a missing principal, role, or assignment.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName indicates a role name collision.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrInvalidInput indicates a malformed name or permission token.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates a mutation that violates current state.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized indicates the caller lacks the required capability.
	ErrUnauthorized = errors.New("unauthorized")
)
