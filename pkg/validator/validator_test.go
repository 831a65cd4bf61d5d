package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type visibilityInput struct {
	Key   string `validate:"required,visibility_key"`
	Scope string `validate:"required,visibility_scope"`
}

type participantInput struct {
	ParticipantID string `validate:"required,uuid"`
	Preset        string `validate:"omitempty,preset_name"`
	PermissionKey string `validate:"omitempty,permission_key"`
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs), "expected ValidationErrors, got %v", err)
	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		out[e.Field] = e.Message
	}
	return out
}

func TestValidate_Visibility(t *testing.T) {
	v := New(nil)

	assert.NoError(t, v.Validate(visibilityInput{Key: "financials", Scope: "role_based"}))

	errs := fieldErrors(t, v.Validate(visibilityInput{Key: "salaries", Scope: "everyone"}))
	assert.Contains(t, errs["key"], "financials")
	assert.Equal(t, "must be one of: none, own_only, role_based, all", errs["scope"])

	errs = fieldErrors(t, v.Validate(visibilityInput{}))
	assert.Equal(t, "is required", errs["key"])
	assert.Equal(t, "is required", errs["scope"])
}

func TestValidate_Participant(t *testing.T) {
	v := New(nil)

	assert.NoError(t, v.Validate(participantInput{
		ParticipantID: "6f1c2a8e-4a44-4f7e-9d7e-0e1a2b3c4d5e",
		Preset:        "investor",
		PermissionKey: "close_deal",
	}))
	assert.NoError(t, v.Validate(participantInput{ParticipantID: "6f1c2a8e-4a44-4f7e-9d7e-0e1a2b3c4d5e"}))

	errs := fieldErrors(t, v.Validate(participantInput{
		ParticipantID: "nope",
		Preset:        "custom",
		PermissionKey: "launch",
	}))
	assert.Equal(t, "must be a valid UUID", errs["participant_id"])
	assert.Contains(t, errs["preset"], "observer")
	assert.Equal(t, "must be a known permission key", errs["permission_key"])
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}
	assert.Equal(t, "a: x; b: y", errs.Error())
	assert.Empty(t, ValidationErrors{}.Error())
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "participant_id", toSnakeCase("ParticipantID"))
	assert.Equal(t, "deal_id", toSnakeCase("DealId"))
	assert.Equal(t, "http_server", toSnakeCase("HTTPServer"))
	assert.Equal(t, "key", toSnakeCase("Key"))
}
