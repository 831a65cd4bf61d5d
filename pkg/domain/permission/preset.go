package permission

import (
	"fmt"
	"maps"
	"slices"
)

// Preset names.
const (
	PresetCreator     = "creator"
	PresetAdmin       = "admin"
	PresetInvestor    = "investor"
	PresetAdvisor     = "advisor"
	PresetVendor      = "vendor"
	PresetPartner     = "partner"
	PresetParticipant = "participant"
	PresetObserver    = "observer"
)

// RolePreset is a named bundle of granted keys and a full visibility mapping.
// Keys not listed in Grants are denied.
type RolePreset struct {
	Name       string
	Label      string
	Color      string
	Grants     []Key
	Visibility map[VisibilityKey]Scope
}

func (p RolePreset) clone() RolePreset {
	p.Grants = slices.Clone(p.Grants)
	p.Visibility = maps.Clone(p.Visibility)
	return p
}

// PresetTable is the immutable, ordered set of role presets.
type PresetTable struct {
	presets map[string]RolePreset
	order   []string
}

// NewPresetTable validates presets against the catalog and builds a table.
// Every preset must have a unique name, grant only known keys and define a
// valid scope for every visibility key of the catalog.
func NewPresetTable(catalog *Catalog, presets ...RolePreset) (*PresetTable, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog is required", ErrInvalidTable)
	}
	if len(presets) == 0 {
		return nil, fmt.Errorf("%w: at least one preset is required", ErrInvalidTable)
	}

	t := &PresetTable{presets: make(map[string]RolePreset, len(presets))}
	for _, p := range presets {
		if err := validatePreset(catalog, p); err != nil {
			return nil, err
		}
		if _, dup := t.presets[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate preset %q", ErrInvalidTable, p.Name)
		}
		t.presets[p.Name] = p.clone()
		t.order = append(t.order, p.Name)
	}
	return t, nil
}

func validatePreset(catalog *Catalog, p RolePreset) error {
	if p.Name == "" {
		return fmt.Errorf("%w: preset name is required", ErrInvalidTable)
	}
	if p.Name == RoleCustom {
		return fmt.Errorf("%w: preset name %q is reserved", ErrInvalidTable, RoleCustom)
	}
	for _, k := range p.Grants {
		if !catalog.HasKey(k) {
			return fmt.Errorf("%w: preset %q grants unknown key %q", ErrInvalidTable, p.Name, k)
		}
	}
	for vk, scope := range p.Visibility {
		if !catalog.HasVisibilityKey(vk) {
			return fmt.Errorf("%w: preset %q sets unknown visibility key %q", ErrInvalidTable, p.Name, vk)
		}
		if !scope.IsValid() {
			return fmt.Errorf("%w: preset %q sets invalid scope %q for %q", ErrInvalidTable, p.Name, scope, vk)
		}
	}
	for _, vk := range catalog.VisibilityKeys() {
		if _, ok := p.Visibility[vk]; !ok {
			return fmt.Errorf("%w: preset %q is missing visibility key %q", ErrInvalidTable, p.Name, vk)
		}
	}
	return nil
}

// MustNewPresetTable is NewPresetTable that panics on error.
func MustNewPresetTable(catalog *Catalog, presets ...RolePreset) *PresetTable {
	t, err := NewPresetTable(catalog, presets...)
	if err != nil {
		panic(err)
	}
	return t
}

// Get returns a copy of the named preset.
func (t *PresetTable) Get(name string) (RolePreset, error) {
	p, ok := t.presets[name]
	if !ok {
		return RolePreset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p.clone(), nil
}

// Has reports whether the named preset exists.
func (t *PresetTable) Has(name string) bool {
	_, ok := t.presets[name]
	return ok
}

// Names returns preset names in declaration order.
func (t *PresetTable) Names() []string {
	return slices.Clone(t.order)
}

// All returns copies of every preset in declaration order.
func (t *PresetTable) All() []RolePreset {
	out := make([]RolePreset, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.presets[name].clone())
	}
	return out
}

func fullVisibility(scope Scope) map[VisibilityKey]Scope {
	return map[VisibilityKey]Scope{
		VisibilityFinancials:    scope,
		VisibilityParticipants:  scope,
		VisibilityDocuments:     scope,
		VisibilityDealTerms:     scope,
		VisibilityContributions: scope,
		VisibilityEarnings:      scope,
	}
}

// DefaultPresets returns the built-in deal room presets, most privileged first.
func DefaultPresets() []RolePreset {
	return []RolePreset{
		{
			Name:  PresetCreator,
			Label: "Creator",
			Color: "#7c3aed",
			Grants: []Key{
				ViewDocuments, UploadDocuments, EditDocuments, DeleteDocuments,
				ViewParticipants, InviteParticipants, RemoveParticipants, ManageRoles,
				ViewFinancials, EditFinancials, ApprovePayments,
				ViewDealTerms, ProposeTerms, ApproveTerms,
				ViewDeliverables, SubmitDeliverables, ApproveDeliverables,
				ViewMessages, SendMessages, CreateAnnouncements,
				ManageSettings, CloseDeal, ArchiveDeal, ExportData,
			},
			Visibility: fullVisibility(ScopeAll),
		},
		{
			Name:  PresetAdmin,
			Label: "Admin",
			Color: "#dc2626",
			// Everything except archiving, which stays with the creator.
			Grants: []Key{
				ViewDocuments, UploadDocuments, EditDocuments, DeleteDocuments,
				ViewParticipants, InviteParticipants, RemoveParticipants, ManageRoles,
				ViewFinancials, EditFinancials, ApprovePayments,
				ViewDealTerms, ProposeTerms, ApproveTerms,
				ViewDeliverables, SubmitDeliverables, ApproveDeliverables,
				ViewMessages, SendMessages, CreateAnnouncements,
				ManageSettings, CloseDeal, ExportData,
			},
			Visibility: fullVisibility(ScopeAll),
		},
		{
			Name:  PresetInvestor,
			Label: "Investor",
			Color: "#16a34a",
			Grants: []Key{
				ViewDocuments,
				ViewParticipants,
				ViewFinancials,
				ViewDealTerms, ProposeTerms, ApproveTerms,
				ViewDeliverables,
				ViewMessages, SendMessages,
				ExportData,
			},
			Visibility: map[VisibilityKey]Scope{
				VisibilityFinancials:    ScopeAll,
				VisibilityParticipants:  ScopeAll,
				VisibilityDocuments:     ScopeAll,
				VisibilityDealTerms:     ScopeAll,
				VisibilityContributions: ScopeRoleBased,
				VisibilityEarnings:      ScopeOwnOnly,
			},
		},
		{
			Name:  PresetAdvisor,
			Label: "Advisor",
			Color: "#2563eb",
			Grants: []Key{
				ViewDocuments, UploadDocuments, EditDocuments,
				ViewParticipants,
				ViewFinancials,
				ViewDealTerms, ProposeTerms,
				ViewDeliverables,
				ViewMessages, SendMessages,
			},
			Visibility: map[VisibilityKey]Scope{
				VisibilityFinancials:    ScopeRoleBased,
				VisibilityParticipants:  ScopeAll,
				VisibilityDocuments:     ScopeAll,
				VisibilityDealTerms:     ScopeAll,
				VisibilityContributions: ScopeRoleBased,
				VisibilityEarnings:      ScopeNone,
			},
		},
		{
			Name:  PresetVendor,
			Label: "Vendor",
			Color: "#ea580c",
			Grants: []Key{
				ViewDocuments, UploadDocuments,
				ViewDeliverables, SubmitDeliverables,
				ViewMessages, SendMessages,
			},
			Visibility: map[VisibilityKey]Scope{
				VisibilityFinancials:    ScopeNone,
				VisibilityParticipants:  ScopeRoleBased,
				VisibilityDocuments:     ScopeRoleBased,
				VisibilityDealTerms:     ScopeOwnOnly,
				VisibilityContributions: ScopeOwnOnly,
				VisibilityEarnings:      ScopeOwnOnly,
			},
		},
		{
			Name:  PresetPartner,
			Label: "Partner",
			Color: "#0d9488",
			Grants: []Key{
				ViewDocuments, UploadDocuments, EditDocuments,
				ViewParticipants, InviteParticipants,
				ViewFinancials,
				ViewDealTerms, ProposeTerms,
				ViewDeliverables, SubmitDeliverables, ApproveDeliverables,
				ViewMessages, SendMessages, CreateAnnouncements,
			},
			Visibility: map[VisibilityKey]Scope{
				VisibilityFinancials:    ScopeRoleBased,
				VisibilityParticipants:  ScopeAll,
				VisibilityDocuments:     ScopeAll,
				VisibilityDealTerms:     ScopeAll,
				VisibilityContributions: ScopeAll,
				VisibilityEarnings:      ScopeOwnOnly,
			},
		},
		{
			Name:  PresetParticipant,
			Label: "Participant",
			Color: "#6b7280",
			Grants: []Key{
				ViewDocuments, UploadDocuments,
				ViewParticipants,
				ViewDealTerms,
				ViewDeliverables, SubmitDeliverables,
				ViewMessages, SendMessages,
			},
			Visibility: map[VisibilityKey]Scope{
				VisibilityFinancials:    ScopeNone,
				VisibilityParticipants:  ScopeAll,
				VisibilityDocuments:     ScopeRoleBased,
				VisibilityDealTerms:     ScopeAll,
				VisibilityContributions: ScopeOwnOnly,
				VisibilityEarnings:      ScopeOwnOnly,
			},
		},
		{
			Name:   PresetObserver,
			Label:  "Observer",
			Color:  "#94a3b8",
			Grants: []Key{ViewDocuments, ViewParticipants, ViewDealTerms},
			Visibility: map[VisibilityKey]Scope{
				VisibilityFinancials:    ScopeNone,
				VisibilityParticipants:  ScopeAll,
				VisibilityDocuments:     ScopeRoleBased,
				VisibilityDealTerms:     ScopeAll,
				VisibilityContributions: ScopeNone,
				VisibilityEarnings:      ScopeNone,
			},
		},
	}
}

// DefaultPresetTable returns DefaultPresets validated against DefaultCatalog.
func DefaultPresetTable() *PresetTable {
	return MustNewPresetTable(DefaultCatalog(), DefaultPresets()...)
}
