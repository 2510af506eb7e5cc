package shared

// Status is the lifecycle state shared by principals, roles, and
// assignments. Deleted entities have no status; their rows are removed
// by cascade and the state is terminal.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether the status is one of the declared states.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// IsActive reports whether the entity participates in evaluation.
func (s Status) IsActive() bool {
	return s == StatusActive
}
