package presets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/domain/shared"
)

const sample = `
categories:
  - name: Documents
    keys: [view_documents, upload_documents]
  - name: Admin
    keys: [close_deal]
visibility_keys: [financials, participants]
presets:
  - name: observer
    label: Observer
    color: "#64748b"
    grants: [view_documents]
    visibility: {financials: none, participants: all}
  - name: owner
    grants: [view_documents, upload_documents, close_deal]
    visibility: {financials: ALL, participants: all}
`

func TestParse(t *testing.T) {
	tables, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Len(t, tables.Catalog.Keys(), 3)
	assert.Equal(t, []string{"observer", "owner"}, tables.Presets.Names())

	r, err := permission.NewResolver(tables.Catalog, tables.Presets)
	require.NoError(t, err)

	state, err := r.ApplyPreset("observer")
	require.NoError(t, err)
	assert.Equal(t, map[permission.Key]bool{
		"view_documents":   true,
		"upload_documents": false,
		"close_deal":       false,
	}, state.Permissions)
	assert.Equal(t, permission.ScopeAll, state.Visibility["participants"])

	owner, err := tables.Presets.Get("owner")
	require.NoError(t, err)
	assert.Equal(t, permission.ScopeAll, owner.Visibility["financials"])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"malformed", "categories: ["},
		{"unknown field", "colour: red\n"},
		{"no categories", "visibility_keys: [a]\npresets: []\n"},
		{"bad scope", `
categories: [{name: A, keys: [a]}]
visibility_keys: [v]
presets: [{name: p, grants: [a], visibility: {v: public}}]
`},
		{"unknown grant", `
categories: [{name: A, keys: [a]}]
visibility_keys: [v]
presets: [{name: p, grants: [b], visibility: {v: all}}]
`},
		{"missing visibility", `
categories: [{name: A, keys: [a]}]
visibility_keys: [v, w]
presets: [{name: p, grants: [a], visibility: {v: all}}]
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err), err.Error())
		})
	}
}

func TestExport_RoundTripsDefaults(t *testing.T) {
	catalog := permission.DefaultCatalog()
	table := permission.MustNewPresetTable(catalog, permission.DefaultPresets()...)

	data, err := yaml.Marshal(Export(catalog, table))
	require.NoError(t, err)

	tables, err := Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, catalog.Keys(), tables.Catalog.Keys())
	assert.Equal(t, table.Names(), tables.Presets.Names())

	for _, name := range table.Names() {
		want, _ := table.Get(name)
		got, err := tables.Presets.Get(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLoadFileAndResolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	r, err := Resolver(path)
	require.NoError(t, err)
	assert.True(t, r.Presets().Has("owner"))

	r, err = Resolver("")
	require.NoError(t, err)
	assert.True(t, r.Presets().Has(permission.PresetCreator))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
