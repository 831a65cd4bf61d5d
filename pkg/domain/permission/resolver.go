package permission

import (
	"fmt"
	"maps"
)

// Resolver computes participant permission states from an injected catalog
// and preset table. It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	catalog *Catalog
	presets *PresetTable
}

// NewResolver creates a Resolver. Every preset is checked against the catalog
// so that a table validated against a different catalog is rejected.
func NewResolver(catalog *Catalog, presets *PresetTable) (*Resolver, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog is required", ErrInvalidTable)
	}
	if presets == nil {
		return nil, fmt.Errorf("%w: preset table is required", ErrInvalidTable)
	}
	for _, p := range presets.All() {
		if err := validatePreset(catalog, p); err != nil {
			return nil, err
		}
	}
	return &Resolver{catalog: catalog, presets: presets}, nil
}

// NewDefaultResolver returns a Resolver over the built-in tables.
func NewDefaultResolver() *Resolver {
	catalog := DefaultCatalog()
	return &Resolver{
		catalog: catalog,
		presets: MustNewPresetTable(catalog, DefaultPresets()...),
	}
}

// Catalog returns the catalog the resolver validates against.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Presets returns the preset table.
func (r *Resolver) Presets() *PresetTable {
	return r.presets
}

// ApplyPreset builds a fresh state from the named preset: every known key is
// denied, then the preset grants are set; visibility is copied from the preset.
func (r *Resolver) ApplyPreset(name string) (State, error) {
	preset, err := r.presets.Get(name)
	if err != nil {
		return State{}, err
	}

	perms := r.allPermissions(false)
	for _, k := range preset.Grants {
		perms[k] = true
	}

	return State{
		RoleType:    preset.Name,
		Permissions: perms,
		Visibility:  maps.Clone(preset.Visibility),
	}, nil
}

// TogglePermission flips a single key. RoleType and visibility are kept.
func (r *Resolver) TogglePermission(state State, key Key) (State, error) {
	if !r.catalog.HasKey(key) {
		return State{}, fmt.Errorf("%w: %q", ErrUnknownPermissionKey, key)
	}
	next := r.Normalize(state)
	next.Permissions[key] = !next.Permissions[key]
	return next, nil
}

// SetVisibility sets the scope of a single visibility key. Any scope may be
// set from any other.
func (r *Resolver) SetVisibility(state State, key VisibilityKey, scope Scope) (State, error) {
	if !r.catalog.HasVisibilityKey(key) {
		return State{}, fmt.Errorf("%w: %q", ErrUnknownVisibilityKey, key)
	}
	if !scope.IsValid() {
		return State{}, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
	next := r.Normalize(state)
	next.Visibility[key] = scope
	return next, nil
}

// EnableAll grants every key and opens every visibility key to ScopeAll.
// A bulk action is not a preset, so RoleType is kept.
func (r *Resolver) EnableAll(state State) State {
	return State{
		RoleType:    state.RoleType,
		Permissions: r.allPermissions(true),
		Visibility:  r.allVisibility(ScopeAll),
	}
}

// DisableAll denies every key and closes every visibility key to ScopeNone.
func (r *Resolver) DisableAll(state State) State {
	return State{
		RoleType:    state.RoleType,
		Permissions: r.allPermissions(false),
		Visibility:  r.allVisibility(ScopeNone),
	}
}

// ResolveEffectivePermissions applies overrides in order on top of the base
// permissions; later overrides win. The base state is not modified.
func (r *Resolver) ResolveEffectivePermissions(base State, overrides []Override) (map[Key]bool, error) {
	for _, o := range overrides {
		if !r.catalog.HasKey(o.Key) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPermissionKey, o.Key)
		}
	}

	effective := maps.Clone(base.Permissions)
	if effective == nil {
		effective = make(map[Key]bool, len(overrides))
	}
	for _, o := range overrides {
		effective[o.Key] = o.Granted
	}
	return effective, nil
}

// Normalize returns a copy of state holding exactly the catalog keys. Missing
// permissions default to false and missing visibility keys to ScopeNone;
// keys unknown to the catalog are dropped.
func (r *Resolver) Normalize(state State) State {
	perms := make(map[Key]bool, len(r.catalog.keys))
	for _, k := range r.catalog.keys {
		perms[k] = state.Permissions[k]
	}

	vis := make(map[VisibilityKey]Scope, len(r.catalog.visibilityKeys))
	for _, vk := range r.catalog.visibilityKeys {
		scope, ok := state.Visibility[vk]
		if !ok || !scope.IsValid() {
			scope = ScopeNone
		}
		vis[vk] = scope
	}

	return State{RoleType: state.RoleType, Permissions: perms, Visibility: vis}
}

// Drifted reports whether the state no longer matches the preset recorded in
// its RoleType. States whose RoleType is not a known preset always drift.
func (r *Resolver) Drifted(state State) bool {
	expected, err := r.ApplyPreset(state.RoleType)
	if err != nil {
		return true
	}
	return !expected.Equal(r.Normalize(state))
}

func (r *Resolver) allPermissions(granted bool) map[Key]bool {
	perms := make(map[Key]bool, len(r.catalog.keys))
	for _, k := range r.catalog.keys {
		perms[k] = granted
	}
	return perms
}

func (r *Resolver) allVisibility(scope Scope) map[VisibilityKey]Scope {
	vis := make(map[VisibilityKey]Scope, len(r.catalog.visibilityKeys))
	for _, vk := range r.catalog.visibilityKeys {
		vis[vk] = scope
	}
	return vis
}
