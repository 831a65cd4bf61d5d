// Package jobs provides background job definitions and handlers using Asynq.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dealroom/api/internal/metrics"
	"github.com/dealroom/api/pkg/domain/audit"
	"github.com/dealroom/api/pkg/logger"
)

// Task types
const (
	TypePermissionAudit = "permission:audit"
)

// QueueAudit is the queue audit tasks are enqueued on.
const QueueAudit = "audit"

const auditMaxRetry = 5

// NewAuditTask creates a task carrying a permission audit event.
// The event ID doubles as the task ID so a retried enqueue is not duplicated.
func NewAuditTask(event *audit.Event) (*asynq.Task, error) {
	if event == nil {
		return nil, fmt.Errorf("audit event is required")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit payload: %w", err)
	}
	return asynq.NewTask(
		TypePermissionAudit,
		data,
		asynq.MaxRetry(auditMaxRetry),
		asynq.Timeout(30*time.Second),
		asynq.Queue(QueueAudit),
		asynq.TaskID(event.ID.String()),
	), nil
}

// DecodeAuditTask returns the audit event carried by t.
func DecodeAuditTask(t *asynq.Task) (*audit.Event, error) {
	var event audit.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if event.ID.IsZero() || event.ParticipantID.IsZero() || event.Action == "" {
		return nil, fmt.Errorf("incomplete audit payload: %w", asynq.SkipRetry)
	}
	return &event, nil
}

// AuditTaskHandler stores audit events taken off the queue.
type AuditTaskHandler struct {
	repo   audit.Repository
	logger *logger.Logger
}

// NewAuditTaskHandler creates a new audit task handler.
func NewAuditTaskHandler(repo audit.Repository, log *logger.Logger) *AuditTaskHandler {
	return &AuditTaskHandler{
		repo:   repo,
		logger: log.With("handler", "permission_audit"),
	}
}

// RegisterHandlers registers the audit handlers on mux.
func (h *AuditTaskHandler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypePermissionAudit, h.HandleAudit)
}

// HandleAudit persists one audit event. Malformed payloads are not retried.
func (h *AuditTaskHandler) HandleAudit(ctx context.Context, t *asynq.Task) error {
	event, err := DecodeAuditTask(t)
	if err != nil {
		h.logger.Error("dropping audit task", "error", err)
		return err
	}

	if err := h.repo.Create(ctx, event); err != nil {
		h.logger.Error("failed to store audit event",
			"event_id", event.ID.String(),
			"participant_id", event.ParticipantID.String(),
			"action", string(event.Action),
			"error", err,
		)
		metrics.RecordAuditEvent(err)
		return fmt.Errorf("store audit event: %w", err)
	}

	h.logger.Debug("audit event stored",
		"event_id", event.ID.String(),
		"action", string(event.Action),
	)
	metrics.RecordAuditEvent(nil)
	return nil
}
