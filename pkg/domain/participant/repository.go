package participant

import (
	"context"

	"github.com/dealroom/api/pkg/domain/shared"
)

// Repository defines the interface for participant permission persistence.
type Repository interface {
	// Create stores a new record. Returns ErrAlreadyExists when the
	// participant already has one.
	Create(ctx context.Context, p *Permissions) error

	// GetByID retrieves the record of a participant.
	GetByID(ctx context.Context, participantID shared.ID) (*Permissions, error)

	// ListByDeal returns every record of a deal ordered by creation time.
	ListByDeal(ctx context.Context, dealID shared.ID) ([]*Permissions, error)

	// Update overwrites the stored record. Last write wins.
	Update(ctx context.Context, p *Permissions) error

	// Delete removes the record of a participant.
	Delete(ctx context.Context, participantID shared.ID) error
}
