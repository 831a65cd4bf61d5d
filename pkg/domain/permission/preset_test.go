package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPresetTable(t *testing.T) {
	table := DefaultPresetTable()

	assert.Equal(t, []string{
		PresetCreator, PresetAdmin, PresetInvestor, PresetAdvisor,
		PresetVendor, PresetPartner, PresetParticipant, PresetObserver,
	}, table.Names())
	assert.False(t, table.Has(RoleCustom))

	creator, err := table.Get(PresetCreator)
	require.NoError(t, err)
	assert.Len(t, creator.Grants, 24)
	for _, scope := range creator.Visibility {
		assert.Equal(t, ScopeAll, scope)
	}

	admin, err := table.Get(PresetAdmin)
	require.NoError(t, err)
	assert.Contains(t, admin.Grants, CloseDeal)
	assert.NotContains(t, admin.Grants, ArchiveDeal)

	observer, err := table.Get(PresetObserver)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Key{ViewDocuments, ViewParticipants, ViewDealTerms}, observer.Grants)
	assert.NotEmpty(t, observer.Label)
	assert.NotEmpty(t, observer.Color)
}

func TestPresetTable_GetReturnsCopy(t *testing.T) {
	table := DefaultPresetTable()

	p, err := table.Get(PresetVendor)
	require.NoError(t, err)
	p.Grants[0] = CloseDeal
	p.Visibility[VisibilityFinancials] = ScopeAll

	again, err := table.Get(PresetVendor)
	require.NoError(t, err)
	assert.Equal(t, ViewDocuments, again.Grants[0])
	assert.Equal(t, ScopeNone, again.Visibility[VisibilityFinancials])
}

func TestPresetTable_GetUnknown(t *testing.T) {
	_, err := DefaultPresetTable().Get("superuser")
	assert.ErrorIs(t, err, ErrUnknownPreset)
	assert.Contains(t, err.Error(), `"superuser"`)
}

func TestNewPresetTable_Invalid(t *testing.T) {
	catalog := DefaultCatalog()
	valid := func() RolePreset {
		return RolePreset{Name: "ok", Grants: []Key{ViewDocuments}, Visibility: fullVisibility(ScopeNone)}
	}

	tests := []struct {
		name    string
		mutate  func(p *RolePreset)
		presets func(p RolePreset) []RolePreset
	}{
		{name: "empty name", mutate: func(p *RolePreset) { p.Name = "" }},
		{name: "reserved name", mutate: func(p *RolePreset) { p.Name = RoleCustom }},
		{name: "unknown grant", mutate: func(p *RolePreset) { p.Grants = append(p.Grants, "teleport") }},
		{name: "unknown visibility key", mutate: func(p *RolePreset) { p.Visibility["salaries"] = ScopeAll }},
		{name: "invalid scope", mutate: func(p *RolePreset) { p.Visibility[VisibilityEarnings] = "public" }},
		{name: "missing visibility key", mutate: func(p *RolePreset) { delete(p.Visibility, VisibilityEarnings) }},
		{name: "duplicate", presets: func(p RolePreset) []RolePreset { return []RolePreset{p, p} }},
		{name: "none", presets: func(RolePreset) []RolePreset { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			presets := []RolePreset{p}
			if tt.presets != nil {
				presets = tt.presets(p)
			}

			table, err := NewPresetTable(catalog, presets...)
			assert.Nil(t, table)
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}

	_, err := NewPresetTable(nil, valid())
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestNewPresetTable_CopiesInput(t *testing.T) {
	p := RolePreset{Name: "solo", Grants: []Key{ViewDocuments}, Visibility: fullVisibility(ScopeOwnOnly)}
	table, err := NewPresetTable(DefaultCatalog(), p)
	require.NoError(t, err)

	p.Grants[0] = CloseDeal
	p.Visibility[VisibilityDocuments] = ScopeAll

	got, err := table.Get("solo")
	require.NoError(t, err)
	assert.Equal(t, []Key{ViewDocuments}, got.Grants)
	assert.Equal(t, ScopeOwnOnly, got.Visibility[VisibilityDocuments])
}
