package audit

import (
	"context"

	"github.com/dealroom/api/pkg/domain/shared"
	"github.com/dealroom/api/pkg/pagination"
)

// Filter narrows an audit listing.
type Filter struct {
	ParticipantID shared.ID
	Actions       []Action
	// Sort holds allowed columns only. Nil or empty sorts newest first.
	Sort *pagination.SortOption
}

// Repository defines the interface for audit event persistence.
type Repository interface {
	// Create persists an event. Inserting the same event twice is a no-op,
	// so job retries are safe.
	Create(ctx context.Context, event *Event) error

	// List returns one page of events matching the filter.
	List(ctx context.Context, filter Filter, page pagination.Pagination) (pagination.Result[*Event], error)
}

// SortFields maps the sortable request fields to their columns.
var SortFields = map[string]string{
	"occurred_at": "occurred_at",
	"action":      "action",
}
