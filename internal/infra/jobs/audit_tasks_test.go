package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealroom/api/pkg/domain/audit"
	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/domain/shared"
	"github.com/dealroom/api/pkg/logger"
	"github.com/dealroom/api/pkg/pagination"
)

type fakeAuditRepo struct {
	created []*audit.Event
	err     error
}

func (r *fakeAuditRepo) Create(_ context.Context, e *audit.Event) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, e)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, _ audit.Filter, page pagination.Pagination) (pagination.Result[*audit.Event], error) {
	return pagination.NewResult(r.created, int64(len(r.created)), page), nil
}

func newEvent(t *testing.T) *audit.Event {
	t.Helper()
	e, err := audit.NewEvent(audit.ActionToggled, shared.NewID(), shared.NewID(), "admin-7",
		permission.PresetAdmin, permission.Changes{Revoked: []permission.Key{permission.CloseDeal}})
	require.NoError(t, err)
	return e.WithOverrides([]permission.Override{{Key: permission.ExportData, Granted: true}})
}

func TestNewAuditTask(t *testing.T) {
	event := newEvent(t)

	task, err := NewAuditTask(event)
	require.NoError(t, err)
	assert.Equal(t, TypePermissionAudit, task.Type())

	decoded, err := DecodeAuditTask(task)
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.ParticipantID, decoded.ParticipantID)
	assert.Equal(t, audit.ActionToggled, decoded.Action)
	assert.Equal(t, "admin-7", decoded.ActorID)
	assert.Equal(t, []permission.Key{permission.CloseDeal}, decoded.Changes.Revoked)
	assert.Equal(t, event.Overrides, decoded.Overrides)

	_, err = NewAuditTask(nil)
	assert.Error(t, err)
}

func TestDecodeAuditTask_SkipsRetryOnBadPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "{"},
		{"missing fields", `{"action":"permissions.toggled"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAuditTask(asynq.NewTask(TypePermissionAudit, []byte(tt.payload)))
			require.Error(t, err)
			assert.ErrorIs(t, err, asynq.SkipRetry)
		})
	}
}

func TestAuditTaskHandler_HandleAudit(t *testing.T) {
	repo := &fakeAuditRepo{}
	h := NewAuditTaskHandler(repo, logger.NewNop())

	event := newEvent(t)
	task, err := NewAuditTask(event)
	require.NoError(t, err)

	require.NoError(t, h.HandleAudit(context.Background(), task))
	require.Len(t, repo.created, 1)
	assert.Equal(t, event.ID, repo.created[0].ID)

	repo.err = errors.New("db down")
	err = h.HandleAudit(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	err = h.HandleAudit(context.Background(), asynq.NewTask(TypePermissionAudit, []byte("nope")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
