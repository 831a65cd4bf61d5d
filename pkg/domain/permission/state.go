package permission

import (
	"maps"
	"slices"
)

// RoleCustom is recorded as role type when a state was not produced by a preset.
const RoleCustom = "custom"

// State is the resolved permission and visibility record of one participant.
//
// RoleType is the name of the last applied preset. It is not cleared by
// manual edits, so it records provenance rather than guaranteeing the maps
// still equal the preset.
type State struct {
	RoleType    string                  `json:"role_type"`
	Permissions map[Key]bool            `json:"permissions"`
	Visibility  map[VisibilityKey]Scope `json:"visibility"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	return State{
		RoleType:    s.RoleType,
		Permissions: cloneOrEmpty(s.Permissions),
		Visibility:  cloneOrEmpty(s.Visibility),
	}
}

// Equal reports whether both states hold the same role type and maps.
func (s State) Equal(other State) bool {
	return s.RoleType == other.RoleType &&
		maps.Equal(s.Permissions, other.Permissions) &&
		maps.Equal(s.Visibility, other.Visibility)
}

// Granted returns the granted permission keys, sorted.
func (s State) Granted() []Key {
	return Granted(s.Permissions)
}

// ScopeChange describes a visibility key whose scope changed.
type ScopeChange struct {
	Key  VisibilityKey `json:"key"`
	From Scope         `json:"from"`
	To   Scope         `json:"to"`
}

// Changes lists what differs between two states.
type Changes struct {
	RoleType   string        `json:"role_type,omitempty"`
	Granted    []Key         `json:"granted,omitempty"`
	Revoked    []Key         `json:"revoked,omitempty"`
	Visibility []ScopeChange `json:"visibility,omitempty"`
}

// IsEmpty reports whether nothing changed.
func (c Changes) IsEmpty() bool {
	return c.RoleType == "" && len(c.Granted) == 0 && len(c.Revoked) == 0 && len(c.Visibility) == 0
}

// Diff computes the changes that turn before into after. RoleType is set only
// when it differs. A key missing from a map counts as false / none.
func Diff(before, after State) Changes {
	var c Changes
	if before.RoleType != after.RoleType {
		c.RoleType = after.RoleType
	}

	for _, k := range unionKeys(before.Permissions, after.Permissions) {
		was, now := before.Permissions[k], after.Permissions[k]
		switch {
		case !was && now:
			c.Granted = append(c.Granted, k)
		case was && !now:
			c.Revoked = append(c.Revoked, k)
		}
	}

	for _, k := range unionKeys(before.Visibility, after.Visibility) {
		from, to := scopeOrNone(before.Visibility, k), scopeOrNone(after.Visibility, k)
		if from != to {
			c.Visibility = append(c.Visibility, ScopeChange{Key: k, From: from, To: to})
		}
	}
	return c
}

func scopeOrNone(m map[VisibilityKey]Scope, k VisibilityKey) Scope {
	if s, ok := m[k]; ok {
		return s
	}
	return ScopeNone
}

func unionKeys[K ~string, V any](a, b map[K]V) []K {
	keys := make([]K, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

func cloneOrEmpty[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return make(map[K]V)
	}
	return maps.Clone(m)
}
