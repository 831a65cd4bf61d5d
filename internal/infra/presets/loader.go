// Package presets loads permission catalogs and role presets from YAML so a
// deployment can replace the built-in tables without a rebuild.
package presets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dealroom/api/pkg/domain/permission"
)

// File is the on-disk layout of a preset file.
type File struct {
	Categories     []CategoryEntry `yaml:"categories"`
	VisibilityKeys []string        `yaml:"visibility_keys"`
	Presets        []PresetEntry   `yaml:"presets"`
}

// CategoryEntry is one catalog category.
type CategoryEntry struct {
	Name string   `yaml:"name"`
	Keys []string `yaml:"keys"`
}

// PresetEntry is one role preset.
type PresetEntry struct {
	Name       string            `yaml:"name"`
	Label      string            `yaml:"label"`
	Color      string            `yaml:"color"`
	Grants     []string          `yaml:"grants"`
	Visibility map[string]string `yaml:"visibility"`
}

// Tables are the validated tables built from a preset file.
type Tables struct {
	Catalog *permission.Catalog
	Presets *permission.PresetTable
}

// LoadFile reads and validates a preset file.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read preset file: %w", err)
	}
	tables, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("preset file %s: %w", path, err)
	}
	return tables, nil
}

// Parse decodes a preset document. Unknown fields are rejected.
func Parse(r io.Reader) (*Tables, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty preset document", permission.ErrInvalidTable)
		}
		return nil, fmt.Errorf("%w: %v", permission.ErrInvalidTable, err)
	}
	return f.Build()
}

// Build converts the file into validated tables.
func (f File) Build() (*Tables, error) {
	categories := make([]permission.Category, 0, len(f.Categories))
	for _, c := range f.Categories {
		keys := make([]permission.Key, 0, len(c.Keys))
		for _, k := range c.Keys {
			keys = append(keys, permission.Key(k))
		}
		categories = append(categories, permission.Category{Name: c.Name, Keys: keys})
	}

	visKeys := make([]permission.VisibilityKey, 0, len(f.VisibilityKeys))
	for _, vk := range f.VisibilityKeys {
		visKeys = append(visKeys, permission.VisibilityKey(vk))
	}

	catalog, err := permission.NewCatalog(categories, visKeys)
	if err != nil {
		return nil, err
	}

	presets := make([]permission.RolePreset, 0, len(f.Presets))
	for _, p := range f.Presets {
		preset := permission.RolePreset{
			Name:       p.Name,
			Label:      p.Label,
			Color:      p.Color,
			Grants:     make([]permission.Key, 0, len(p.Grants)),
			Visibility: make(map[permission.VisibilityKey]permission.Scope, len(p.Visibility)),
		}
		for _, g := range p.Grants {
			preset.Grants = append(preset.Grants, permission.Key(g))
		}
		for k, v := range p.Visibility {
			scope, ok := permission.ParseScope(v)
			if !ok {
				return nil, fmt.Errorf("%w: preset %q: %q", permission.ErrUnknownScope, p.Name, v)
			}
			preset.Visibility[permission.VisibilityKey(k)] = scope
		}
		presets = append(presets, preset)
	}

	table, err := permission.NewPresetTable(catalog, presets...)
	if err != nil {
		return nil, err
	}
	return &Tables{Catalog: catalog, Presets: table}, nil
}

// Export converts tables back into the file layout, e.g. to seed a custom
// preset file from the built-in tables.
func Export(catalog *permission.Catalog, table *permission.PresetTable) File {
	var f File
	for _, c := range catalog.Categories() {
		f.Categories = append(f.Categories, CategoryEntry{Name: c.Name, Keys: permission.ToStrings(c.Keys)})
	}
	for _, vk := range catalog.VisibilityKeys() {
		f.VisibilityKeys = append(f.VisibilityKeys, vk.String())
	}
	for _, p := range table.All() {
		vis := make(map[string]string, len(p.Visibility))
		for k, v := range p.Visibility {
			vis[k.String()] = v.String()
		}
		f.Presets = append(f.Presets, PresetEntry{
			Name:       p.Name,
			Label:      p.Label,
			Color:      p.Color,
			Grants:     permission.ToStrings(p.Grants),
			Visibility: vis,
		})
	}
	return f
}

// Resolver builds a resolver from a preset file, or from the built-in tables
// when path is empty.
func Resolver(path string) (*permission.Resolver, error) {
	if path == "" {
		return permission.NewDefaultResolver(), nil
	}
	tables, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return permission.NewResolver(tables.Catalog, tables.Presets)
}
