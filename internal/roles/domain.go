package roles

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/jobready/accesscore/internal/shared"
)

// Role is a named, reusable bundle of permission tokens.
type Role struct {
	ID          int64
	Name        string
	Description string
	Permissions []string
	Status      shared.Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPermission reports whether the role carries the exact token.
// Wildcard interpretation belongs to the evaluator, not the catalog.
func (r Role) HasPermission(token string) bool {
	token = NormalizeToken(token)
	for _, t := range r.Permissions {
		if t == token {
			return true
		}
	}
	return false
}

// FoldName normalizes a role name for case-insensitive uniqueness.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// NormalizeToken trims a permission token. An empty result means the
// token must be ignored.
func NormalizeToken(token string) string {
	return strings.TrimSpace(token)
}

// SanitizeTokens drops empty and duplicate tokens and returns a sorted
// copy. Applied on every write path so a stored set never carries
// whitespace-only entries.
func SanitizeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = NormalizeToken(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// UpdatePatch carries optional role mutations. Nil fields are left
// untouched. A status patch moves the role between active and
// inactive; it is the reverse path out of DeactivateRole.
type UpdatePatch struct {
	Name        *string
	Description *string
	Permissions *[]string
	Status      *shared.Status
}

// ListFilter narrows role listings.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	Page       int
	PerPage    int
}

// DeactivationPolicy decides what happens to a role that still has
// active assignments when it is deactivated.
type DeactivationPolicy string

const (
	// PolicyBlock rejects deactivation while active assignments exist.
	PolicyBlock DeactivationPolicy = "block"
	// PolicyCascade deactivates the role and its active assignments together.
	PolicyCascade DeactivationPolicy = "cascade"
	// PolicyAllow deactivates the role and leaves assignments untouched;
	// they stop granting anything via the evaluator's active-role filter.
	PolicyAllow DeactivationPolicy = "allow"
)

// Valid reports whether the policy is a known value.
func (p DeactivationPolicy) Valid() bool {
	return p == PolicyBlock || p == PolicyCascade || p == PolicyAllow
}

// RoleUsage pairs a role with its active assignment count.
type RoleUsage struct {
	RoleID      int64
	RoleName    string
	Assignments int
}

// Stats summarizes catalog and ledger usage.
type Stats struct {
	TotalRoles        int
	ActiveRoles       int
	TotalAssignments  int
	ActiveAssignments int
	MostAssigned      []RoleUsage
}
