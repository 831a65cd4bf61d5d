package permission

import (
	"fmt"
	"slices"
)

// Catalog is the immutable table of permission categories and visibility keys.
type Catalog struct {
	categories     []Category
	keys           []Key
	categoryOf     map[Key]string
	visibilityKeys []VisibilityKey
	visibilitySet  map[VisibilityKey]struct{}
}

// NewCatalog builds a catalog. Category names, keys and visibility keys must
// be non-empty and unique.
func NewCatalog(categories []Category, visibilityKeys []VisibilityKey) (*Catalog, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: at least one category is required", ErrInvalidTable)
	}
	if len(visibilityKeys) == 0 {
		return nil, fmt.Errorf("%w: at least one visibility key is required", ErrInvalidTable)
	}

	c := &Catalog{
		categories:    make([]Category, 0, len(categories)),
		categoryOf:    make(map[Key]string),
		visibilitySet: make(map[VisibilityKey]struct{}, len(visibilityKeys)),
	}

	seenCategories := make(map[string]struct{}, len(categories))
	for _, cat := range categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("%w: category name is required", ErrInvalidTable)
		}
		if _, dup := seenCategories[cat.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidTable, cat.Name)
		}
		seenCategories[cat.Name] = struct{}{}

		for _, k := range cat.Keys {
			if k == "" {
				return nil, fmt.Errorf("%w: empty key in category %q", ErrInvalidTable, cat.Name)
			}
			if owner, dup := c.categoryOf[k]; dup {
				return nil, fmt.Errorf("%w: key %q listed in %q and %q", ErrInvalidTable, k, owner, cat.Name)
			}
			c.categoryOf[k] = cat.Name
			c.keys = append(c.keys, k)
		}
		c.categories = append(c.categories, Category{Name: cat.Name, Keys: slices.Clone(cat.Keys)})
	}

	for _, vk := range visibilityKeys {
		if vk == "" {
			return nil, fmt.Errorf("%w: empty visibility key", ErrInvalidTable)
		}
		if _, dup := c.visibilitySet[vk]; dup {
			return nil, fmt.Errorf("%w: duplicate visibility key %q", ErrInvalidTable, vk)
		}
		c.visibilitySet[vk] = struct{}{}
		c.visibilityKeys = append(c.visibilityKeys, vk)
	}

	return c, nil
}

// MustNewCatalog is NewCatalog that panics on error.
// Use only for tables compiled into the binary.
func MustNewCatalog(categories []Category, visibilityKeys []VisibilityKey) *Catalog {
	c, err := NewCatalog(categories, visibilityKeys)
	if err != nil {
		panic(err)
	}
	return c
}

// Categories returns a copy of the categories in declaration order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = Category{Name: cat.Name, Keys: slices.Clone(cat.Keys)}
	}
	return out
}

// Keys returns every permission key, category by category.
func (c *Catalog) Keys() []Key {
	return slices.Clone(c.keys)
}

// VisibilityKeys returns every visibility key in declaration order.
func (c *Catalog) VisibilityKeys() []VisibilityKey {
	return slices.Clone(c.visibilityKeys)
}

// HasKey reports whether k is a known permission key.
func (c *Catalog) HasKey(k Key) bool {
	_, ok := c.categoryOf[k]
	return ok
}

// HasVisibilityKey reports whether k is a known visibility key.
func (c *Catalog) HasVisibilityKey(k VisibilityKey) bool {
	_, ok := c.visibilitySet[k]
	return ok
}

// CategoryOf returns the category owning k.
func (c *Catalog) CategoryOf(k Key) (string, bool) {
	name, ok := c.categoryOf[k]
	return name, ok
}

// DefaultCatalog returns the built-in deal room catalog.
func DefaultCatalog() *Catalog {
	return MustNewCatalog(
		[]Category{
			{Name: CategoryDocuments, Keys: []Key{ViewDocuments, UploadDocuments, EditDocuments, DeleteDocuments}},
			{Name: CategoryParticipants, Keys: []Key{ViewParticipants, InviteParticipants, RemoveParticipants, ManageRoles}},
			{Name: CategoryFinancials, Keys: []Key{ViewFinancials, EditFinancials, ApprovePayments}},
			{Name: CategoryDealTerms, Keys: []Key{ViewDealTerms, ProposeTerms, ApproveTerms}},
			{Name: CategoryDeliverables, Keys: []Key{ViewDeliverables, SubmitDeliverables, ApproveDeliverables}},
			{Name: CategoryCommunication, Keys: []Key{ViewMessages, SendMessages, CreateAnnouncements}},
			{Name: CategoryAdmin, Keys: []Key{ManageSettings, CloseDeal, ArchiveDeal, ExportData}},
		},
		[]VisibilityKey{
			VisibilityFinancials,
			VisibilityParticipants,
			VisibilityDocuments,
			VisibilityDealTerms,
			VisibilityContributions,
			VisibilityEarnings,
		},
	)
}
