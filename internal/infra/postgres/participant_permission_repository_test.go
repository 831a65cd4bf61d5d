package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealroom/api/pkg/domain/audit"
	"github.com/dealroom/api/pkg/domain/participant"
	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/domain/shared"
)

// fakeRow replays column values through Scan.
type fakeRow struct {
	values []any
	err    error
}

func (f fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	if len(dest) != len(f.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = f.values[i].(string)
		case *[]byte:
			*p = f.values[i].([]byte)
		case *int:
			*p = f.values[i].(int)
		case *time.Time:
			*p = f.values[i].(time.Time)
		default:
			return errors.New("unsupported destination")
		}
	}
	return nil
}

func TestParticipantRow_RoundTrip(t *testing.T) {
	r := permission.NewDefaultResolver()
	state, err := r.ApplyPreset(permission.PresetInvestor)
	require.NoError(t, err)
	state, err = r.TogglePermission(state, permission.CloseDeal)
	require.NoError(t, err)

	p, err := participant.New(shared.NewID(), shared.NewID(), state)
	require.NoError(t, err)
	p.AddOverride(permission.Override{Key: permission.ExportData, Granted: false})

	row, err := toParticipantRow(p)
	require.NoError(t, err)
	assert.Equal(t, permission.PresetInvestor, row.roleType)

	got, err := scanParticipantPermissions(fakeRow{values: []any{
		row.participantID, row.dealID, row.roleType,
		row.permissions, row.visibility, row.overrides,
		row.version, row.createdAt, row.updatedAt,
	}})
	require.NoError(t, err)

	assert.Equal(t, p.ParticipantID(), got.ParticipantID())
	assert.Equal(t, p.DealID(), got.DealID())
	assert.True(t, p.State().Equal(got.State()))
	assert.Equal(t, p.Overrides(), got.Overrides())
	assert.Equal(t, p.Version(), got.Version())
}

func TestParticipantRow_EmptyOverridesStoredAsArray(t *testing.T) {
	p, err := participant.New(shared.NewID(), shared.NewID(), permission.State{RoleType: permission.RoleCustom})
	require.NoError(t, err)

	row, err := toParticipantRow(p)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(row.overrides))
}

func TestScanParticipantPermissions_BadID(t *testing.T) {
	_, err := scanParticipantPermissions(fakeRow{values: []any{
		"not-a-uuid", shared.NewID().String(), "x",
		[]byte(`{}`), []byte(`{}`), []byte(`[]`),
		1, time.Now(), time.Now(),
	}})
	assert.True(t, shared.IsValidation(err))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("plain")))
}

func TestAuditPayload_JSON(t *testing.T) {
	payload := auditPayload{
		Changes:   permission.Changes{Revoked: []permission.Key{permission.CloseDeal}},
		Overrides: []permission.Override{{Key: permission.CloseDeal, Granted: true}},
	}
	data, err := toJSONB(payload)
	require.NoError(t, err)

	var decoded auditPayload
	require.NoError(t, fromJSONB(data, &decoded))
	assert.Equal(t, payload, decoded)

	assert.NoError(t, fromJSONB(nil, &decoded))
}

func TestNullString(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.Equal(t, "", nullStringValue(nullString("")))
	assert.Equal(t, "admin-1", nullStringValue(nullString("admin-1")))
}

func TestBuildAuditWhere(t *testing.T) {
	where, args := buildAuditWhere(audit.Filter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	id := shared.NewID()
	where, args = buildAuditWhere(audit.Filter{
		ParticipantID: id,
		Actions:       []audit.Action{audit.ActionToggled, audit.ActionPresetApplied},
	})
	assert.Equal(t, " WHERE participant_id = $1 AND action = ANY($2)", where)
	require.Len(t, args, 2)
	assert.Equal(t, id.String(), args[0])
	assert.Equal(t, pq.Array([]string{"permissions.toggled", "permissions.preset_applied"}), args[1])
}
