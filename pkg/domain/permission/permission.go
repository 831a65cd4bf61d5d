// Package permission resolves deal room participant permissions and data
// visibility from role presets.
//
// Permissions are boolean flags identified by a Key and grouped into ordered
// categories. Visibility is tracked per data category (VisibilityKey) as a
// Scope. A RolePreset bundles a grant list with a complete visibility mapping.
//
// The tables are static configuration: a Catalog of keys and a PresetTable of
// presets are built once at startup and injected into a Resolver. All
// Resolver operations are pure: they take a State value and return a new one.
package permission

import "slices"

// Key identifies a single boolean permission.
type Key string

// String returns the string representation of the key.
func (k Key) String() string {
	return string(k)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

const (
	ViewDocuments   Key = "view_documents"
	UploadDocuments Key = "upload_documents"
	EditDocuments   Key = "edit_documents"
	DeleteDocuments Key = "delete_documents"
)

// =============================================================================
// PARTICIPANTS
// =============================================================================

const (
	ViewParticipants   Key = "view_participants"
	InviteParticipants Key = "invite_participants"
	RemoveParticipants Key = "remove_participants"
	ManageRoles        Key = "manage_roles"
)

// =============================================================================
// FINANCIALS
// =============================================================================

const (
	ViewFinancials  Key = "view_financials"
	EditFinancials  Key = "edit_financials"
	ApprovePayments Key = "approve_payments"
)

// =============================================================================
// DEAL TERMS
// =============================================================================

const (
	ViewDealTerms Key = "view_deal_terms"
	ProposeTerms  Key = "propose_terms"
	ApproveTerms  Key = "approve_terms"
)

// =============================================================================
// DELIVERABLES
// =============================================================================

const (
	ViewDeliverables    Key = "view_deliverables"
	SubmitDeliverables  Key = "submit_deliverables"
	ApproveDeliverables Key = "approve_deliverables"
)

// =============================================================================
// COMMUNICATION
// =============================================================================

const (
	ViewMessages        Key = "view_messages"
	SendMessages        Key = "send_messages"
	CreateAnnouncements Key = "create_announcements"
)

// =============================================================================
// ADMIN
// =============================================================================

const (
	ManageSettings Key = "manage_settings"
	CloseDeal      Key = "close_deal"
	ArchiveDeal    Key = "archive_deal"
	ExportData     Key = "export_data"
)

// Category names.
const (
	CategoryDocuments     = "Documents"
	CategoryParticipants  = "Participants"
	CategoryFinancials    = "Financials"
	CategoryDealTerms     = "Deal Terms"
	CategoryDeliverables  = "Deliverables"
	CategoryCommunication = "Communication"
	CategoryAdmin         = "Admin"
)

// Category is a named, ordered group of permission keys.
type Category struct {
	Name string
	Keys []Key
}

// Override is a per-participant patch on top of the base permissions.
type Override struct {
	Key     Key  `json:"key" yaml:"key"`
	Granted bool `json:"granted" yaml:"granted"`
}

// Granted returns the keys set to true in perms, sorted.
func Granted(perms map[Key]bool) []Key {
	keys := make([]Key, 0, len(perms))
	for k, v := range perms {
		if v {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// ToStrings converts keys to strings.
func ToStrings(keys []Key) []string {
	result := make([]string, len(keys))
	for i, k := range keys {
		result[i] = k.String()
	}
	return result
}
