package permission

import "strings"

// VisibilityKey identifies a data category whose visibility is scoped.
type VisibilityKey string

// String returns the string representation of the key.
func (k VisibilityKey) String() string {
	return string(k)
}

const (
	VisibilityFinancials    VisibilityKey = "financials"
	VisibilityParticipants  VisibilityKey = "participants"
	VisibilityDocuments     VisibilityKey = "documents"
	VisibilityDealTerms     VisibilityKey = "deal_terms"
	VisibilityContributions VisibilityKey = "contributions"
	VisibilityEarnings      VisibilityKey = "earnings"
)

// Scope is how much of a data category a participant can see.
// Scopes are ordered: each one sees a superset of the previous.
type Scope string

const (
	ScopeNone      Scope = "none"
	ScopeOwnOnly   Scope = "own_only"
	ScopeRoleBased Scope = "role_based"
	ScopeAll       Scope = "all"
)

var scopeRank = map[Scope]int{
	ScopeNone:      0,
	ScopeOwnOnly:   1,
	ScopeRoleBased: 2,
	ScopeAll:       3,
}

// AllScopes returns every scope in ascending order.
func AllScopes() []Scope {
	return []Scope{ScopeNone, ScopeOwnOnly, ScopeRoleBased, ScopeAll}
}

// ParseScope parses a scope name. Matching is case-insensitive.
func ParseScope(s string) (Scope, bool) {
	scope := Scope(strings.ToLower(strings.TrimSpace(s)))
	return scope, scope.IsValid()
}

// IsValid reports whether the scope is one of the known scopes.
func (s Scope) IsValid() bool {
	_, ok := scopeRank[s]
	return ok
}

// String returns the string representation of the scope.
func (s Scope) String() string {
	return string(s)
}

// Rank returns the position of the scope in the ordering, or -1 when unknown.
func (s Scope) Rank() int {
	if r, ok := scopeRank[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether s sees at least as much as other.
func (s Scope) AtLeast(other Scope) bool {
	return s.IsValid() && other.IsValid() && s.Rank() >= other.Rank()
}
