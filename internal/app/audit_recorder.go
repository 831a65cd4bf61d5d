package app

import (
	"context"

	"github.com/dealroom/api/pkg/domain/audit"
)

// RepositoryAuditRecorder writes audit events straight to storage.
// It is used when the background worker is disabled.
type RepositoryAuditRecorder struct {
	repo audit.Repository
}

// NewRepositoryAuditRecorder creates a recorder backed by repo.
func NewRepositoryAuditRecorder(repo audit.Repository) *RepositoryAuditRecorder {
	return &RepositoryAuditRecorder{repo: repo}
}

// Record stores the event.
func (r *RepositoryAuditRecorder) Record(ctx context.Context, event *audit.Event) error {
	return r.repo.Create(ctx, event)
}
