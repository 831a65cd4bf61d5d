// Package audit records who changed a participant's permissions and what
// changed.
package audit

import (
	"fmt"
	"time"

	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/domain/shared"
)

// Action represents the type of change performed.
type Action string

const (
	ActionParticipantCreated Action = "participant.created"
	ActionParticipantRemoved Action = "participant.removed"

	ActionPresetApplied  Action = "permissions.preset_applied"
	ActionToggled        Action = "permissions.toggled"
	ActionVisibilitySet  Action = "permissions.visibility_set"
	ActionEnabledAll     Action = "permissions.enabled_all"
	ActionDisabledAll    Action = "permissions.disabled_all"
	ActionOverridesSet   Action = "overrides.replaced"
	ActionOverrideAdded  Action = "overrides.added"
	ActionOverridesClear Action = "overrides.cleared"
)

var validActions = map[Action]bool{
	ActionParticipantCreated: true,
	ActionParticipantRemoved: true,
	ActionPresetApplied:      true,
	ActionToggled:            true,
	ActionVisibilitySet:      true,
	ActionEnabledAll:         true,
	ActionDisabledAll:        true,
	ActionOverridesSet:       true,
	ActionOverrideAdded:      true,
	ActionOverridesClear:     true,
}

// IsValid checks if the action is known.
func (a Action) IsValid() bool {
	return validActions[a]
}

// String returns the string representation.
func (a Action) String() string {
	return string(a)
}

// Event is one audited change. It travels as a job payload, so every field
// is exported and JSON tagged.
type Event struct {
	ID            shared.ID             `json:"id"`
	ParticipantID shared.ID             `json:"participant_id"`
	DealID        shared.ID             `json:"deal_id"`
	ActorID       string                `json:"actor_id,omitempty"`
	Action        Action                `json:"action"`
	RoleType      string                `json:"role_type"`
	Changes       permission.Changes    `json:"changes"`
	Overrides     []permission.Override `json:"overrides,omitempty"`
	OccurredAt    time.Time             `json:"occurred_at"`
}

// NewEvent creates an event stamped with a fresh ID and the current time.
func NewEvent(action Action, participantID, dealID shared.ID, actorID, roleType string, changes permission.Changes) (*Event, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: invalid audit action %q", shared.ErrValidation, action)
	}
	if participantID.IsZero() {
		return nil, fmt.Errorf("%w: participant id is required", shared.ErrValidation)
	}
	return &Event{
		ID:            shared.NewID(),
		ParticipantID: participantID,
		DealID:        dealID,
		ActorID:       actorID,
		Action:        action,
		RoleType:      roleType,
		Changes:       changes,
		OccurredAt:    time.Now().UTC(),
	}, nil
}

// WithOverrides records the override list after the change.
func (e *Event) WithOverrides(overrides []permission.Override) *Event {
	e.Overrides = overrides
	return e
}
