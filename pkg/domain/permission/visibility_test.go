package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		in    string
		want  Scope
		valid bool
	}{
		{"none", ScopeNone, true},
		{"own_only", ScopeOwnOnly, true},
		{" ROLE_BASED ", ScopeRoleBased, true},
		{"All", ScopeAll, true},
		{"", "", false},
		{"everyone", "everyone", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseScope(tt.in)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScope_Ordering(t *testing.T) {
	scopes := AllScopes()
	for i, s := range scopes {
		assert.Equal(t, i, s.Rank())
		assert.True(t, s.AtLeast(ScopeNone))
		assert.True(t, ScopeAll.AtLeast(s))
	}

	assert.False(t, ScopeOwnOnly.AtLeast(ScopeRoleBased))
	assert.Equal(t, -1, Scope("x").Rank())
	assert.False(t, Scope("x").AtLeast(ScopeNone))
	assert.False(t, ScopeAll.AtLeast("x"))
}
