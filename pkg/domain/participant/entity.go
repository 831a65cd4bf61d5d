// Package participant holds the persisted permission record of a deal room
// participant: the resolved state plus the overrides patched on top of it.
package participant

import (
	"slices"
	"time"

	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/domain/shared"
)

// Permissions is the permission record of one participant in one deal.
type Permissions struct {
	participantID shared.ID
	dealID        shared.ID
	state         permission.State
	overrides     []permission.Override
	version       int
	createdAt     time.Time
	updatedAt     time.Time
}

// New creates a record for a participant with an initial state.
func New(participantID, dealID shared.ID, state permission.State) (*Permissions, error) {
	if participantID.IsZero() || dealID.IsZero() {
		return nil, ErrInvalidID
	}
	now := time.Now().UTC()
	return &Permissions{
		participantID: participantID,
		dealID:        dealID,
		state:         state.Clone(),
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// Reconstitute recreates a record from persistence data.
func Reconstitute(
	participantID shared.ID,
	dealID shared.ID,
	state permission.State,
	overrides []permission.Override,
	version int,
	createdAt time.Time,
	updatedAt time.Time,
) *Permissions {
	return &Permissions{
		participantID: participantID,
		dealID:        dealID,
		state:         state,
		overrides:     overrides,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// ParticipantID returns the participant ID.
func (p *Permissions) ParticipantID() shared.ID { return p.participantID }

// DealID returns the deal ID.
func (p *Permissions) DealID() shared.ID { return p.dealID }

// State returns a copy of the resolved state.
func (p *Permissions) State() permission.State { return p.state.Clone() }

// RoleType returns the last applied preset name.
func (p *Permissions) RoleType() string { return p.state.RoleType }

// Overrides returns a copy of the overrides in application order.
func (p *Permissions) Overrides() []permission.Override { return slices.Clone(p.overrides) }

// Version returns the write counter.
func (p *Permissions) Version() int { return p.version }

// CreatedAt returns when the record was created.
func (p *Permissions) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns when the record was last changed.
func (p *Permissions) UpdatedAt() time.Time { return p.updatedAt }

// Replace swaps in a new resolved state.
func (p *Permissions) Replace(state permission.State) {
	p.state = state.Clone()
	p.touch()
}

// SetOverrides replaces the override list.
func (p *Permissions) SetOverrides(overrides []permission.Override) {
	p.overrides = slices.Clone(overrides)
	p.touch()
}

// AddOverride appends an override. It is applied after all existing ones.
func (p *Permissions) AddOverride(o permission.Override) {
	p.overrides = append(p.overrides, o)
	p.touch()
}

// ClearOverrides drops every override.
func (p *Permissions) ClearOverrides() {
	p.overrides = nil
	p.touch()
}

func (p *Permissions) touch() {
	p.version++
	p.updatedAt = time.Now().UTC()
}
