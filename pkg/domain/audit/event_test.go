package audit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/domain/shared"
)

func TestNewEvent(t *testing.T) {
	pid, did := shared.NewID(), shared.NewID()
	changes := permission.Changes{Granted: []permission.Key{permission.CloseDeal}}

	e, err := NewEvent(ActionToggled, pid, did, "actor-1", permission.PresetAdmin, changes)
	require.NoError(t, err)

	assert.False(t, e.ID.IsZero())
	assert.Equal(t, pid, e.ParticipantID)
	assert.Equal(t, did, e.DealID)
	assert.Equal(t, "actor-1", e.ActorID)
	assert.Equal(t, changes, e.Changes)
	assert.False(t, e.OccurredAt.IsZero())
}

func TestNewEvent_Invalid(t *testing.T) {
	_, err := NewEvent("permissions.exploded", shared.NewID(), shared.NewID(), "", "", permission.Changes{})
	assert.True(t, shared.IsValidation(err))

	_, err = NewEvent(ActionToggled, shared.ID{}, shared.NewID(), "", "", permission.Changes{})
	assert.True(t, shared.IsValidation(err))
}

func TestEvent_JSONPayload(t *testing.T) {
	e, err := NewEvent(ActionVisibilitySet, shared.NewID(), shared.NewID(), "", permission.PresetObserver, permission.Changes{
		Visibility: []permission.ScopeChange{{Key: permission.VisibilityFinancials, From: permission.ScopeNone, To: permission.ScopeAll}},
	})
	require.NoError(t, err)
	e.WithOverrides([]permission.Override{{Key: permission.ExportData, Granted: true}})

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, e.Action, decoded.Action)
	assert.Equal(t, e.Changes, decoded.Changes)
	assert.Equal(t, e.Overrides, decoded.Overrides)
	assert.True(t, e.OccurredAt.Equal(decoded.OccurredAt))
}
