package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Clone(t *testing.T) {
	s := State{
		RoleType:    PresetVendor,
		Permissions: map[Key]bool{ViewDocuments: true},
		Visibility:  map[VisibilityKey]Scope{VisibilityDocuments: ScopeOwnOnly},
	}

	c := s.Clone()
	c.Permissions[ViewDocuments] = false
	c.Visibility[VisibilityDocuments] = ScopeAll

	assert.True(t, s.Permissions[ViewDocuments])
	assert.Equal(t, ScopeOwnOnly, s.Visibility[VisibilityDocuments])

	empty := State{}.Clone()
	assert.NotNil(t, empty.Permissions)
	assert.NotNil(t, empty.Visibility)
}

func TestState_Equal(t *testing.T) {
	a := State{RoleType: "x", Permissions: map[Key]bool{ViewDocuments: true}}
	b := State{RoleType: "x", Permissions: map[Key]bool{ViewDocuments: true}}
	assert.True(t, a.Equal(b))

	b.RoleType = "y"
	assert.False(t, a.Equal(b))

	b = a.Clone()
	b.Permissions[ViewDocuments] = false
	assert.False(t, a.Equal(b))
}

func TestDiff(t *testing.T) {
	r := NewDefaultResolver()
	observer, err := r.ApplyPreset(PresetObserver)
	assert.NoError(t, err)

	assert.True(t, Diff(observer, observer.Clone()).IsEmpty())

	t.Run("toggle", func(t *testing.T) {
		after, err := r.TogglePermission(observer, SendMessages)
		assert.NoError(t, err)
		after, err = r.TogglePermission(after, ViewDocuments)
		assert.NoError(t, err)

		c := Diff(observer, after)
		assert.Empty(t, c.RoleType)
		assert.Equal(t, []Key{SendMessages}, c.Granted)
		assert.Equal(t, []Key{ViewDocuments}, c.Revoked)
		assert.Empty(t, c.Visibility)
	})

	t.Run("visibility", func(t *testing.T) {
		after, err := r.SetVisibility(observer, VisibilityFinancials, ScopeRoleBased)
		assert.NoError(t, err)

		c := Diff(observer, after)
		assert.Equal(t, []ScopeChange{{Key: VisibilityFinancials, From: ScopeNone, To: ScopeRoleBased}}, c.Visibility)
	})

	t.Run("preset change", func(t *testing.T) {
		vendor, err := r.ApplyPreset(PresetVendor)
		assert.NoError(t, err)

		c := Diff(observer, vendor)
		assert.Equal(t, PresetVendor, c.RoleType)
		assert.Contains(t, c.Granted, SubmitDeliverables)
		assert.Contains(t, c.Revoked, ViewParticipants)
	})

	t.Run("missing keys count as denied", func(t *testing.T) {
		c := Diff(State{}, observer)
		assert.Equal(t, PresetObserver, c.RoleType)
		assert.Equal(t, observer.Granted(), c.Granted)
		assert.Empty(t, c.Revoked)
		// only non-none scopes show up
		for _, sc := range c.Visibility {
			assert.Equal(t, ScopeNone, sc.From)
			assert.NotEqual(t, ScopeNone, sc.To)
		}
	})
}

func TestGrantedAndToStrings(t *testing.T) {
	perms := map[Key]bool{SendMessages: true, ArchiveDeal: true, CloseDeal: false}
	keys := Granted(perms)
	assert.Equal(t, []Key{ArchiveDeal, SendMessages}, keys)
	assert.Equal(t, []string{"archive_deal", "send_messages"}, ToStrings(keys))
	assert.Empty(t, Granted(nil))
}
