package authz

import (
	"encoding/json"
	"sort"
)

// Wildcard is the token that grants every capability. The catalog
// stores it like any other token; only this package interprets it.
const Wildcard = "*"

// PermissionSet is the resolved grant set for a principal. It is a
// plain immutable value: once built it never re-resolves anything, so
// it is safe to cache and to hand across goroutines.
type PermissionSet struct {
	all    bool
	tokens map[string]struct{}
}

// NewPermissionSet builds a set from raw tokens. The wildcard collapses
// the set into the all-granted sentinel.
func NewPermissionSet(tokens []string) PermissionSet {
	set := PermissionSet{tokens: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		if t == Wildcard {
			return PermissionSet{all: true}
		}
		set.tokens[t] = struct{}{}
	}
	return set
}

// All reports whether the set carries the all-granted sentinel.
func (s PermissionSet) All() bool {
	return s.all
}

// Has reports whether the token is granted.
func (s PermissionSet) Has(token string) bool {
	if s.all {
		return true
	}
	_, ok := s.tokens[token]
	return ok
}

// Empty reports whether nothing is granted.
func (s PermissionSet) Empty() bool {
	return !s.all && len(s.tokens) == 0
}

// Tokens returns the granted tokens sorted; nil for the sentinel.
func (s PermissionSet) Tokens() []string {
	if s.all {
		return nil
	}
	out := make([]string, 0, len(s.tokens))
	for t := range s.tokens {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

type permissionSetPayload struct {
	All    bool     `json:"all"`
	Tokens []string `json:"tokens,omitempty"`
}

// MarshalJSON implements json.Marshaler for cache storage.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(permissionSetPayload{All: s.all, Tokens: s.Tokens()})
}

// UnmarshalJSON implements json.Unmarshaler for cache retrieval.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var payload permissionSetPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.All {
		*s = PermissionSet{all: true}
		return nil
	}
	*s = NewPermissionSet(payload.Tokens)
	return nil
}

// Grants is the eagerly fetched raw material for one evaluation: the
// principal's flags plus the tokens and names of its active roles, all
// read under one snapshot.
type Grants struct {
	PrincipalActive bool
	Superuser       bool
	RoleNames       []string
	Tokens          []string
}
