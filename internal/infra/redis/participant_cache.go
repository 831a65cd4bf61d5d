package redis

import (
	"context"
	"errors"
	"time"

	"github.com/dealroom/api/pkg/domain/participant"
	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/domain/shared"
)

const participantCachePrefix = "participant_permissions"

type participantSnapshot struct {
	ParticipantID shared.ID             `json:"participant_id"`
	DealID        shared.ID             `json:"deal_id"`
	State         permission.State      `json:"state"`
	Overrides     []permission.Override `json:"overrides,omitempty"`
	Version       int                   `json:"version"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func toSnapshot(p *participant.Permissions) participantSnapshot {
	return participantSnapshot{
		ParticipantID: p.ParticipantID(),
		DealID:        p.DealID(),
		State:         p.State(),
		Overrides:     p.Overrides(),
		Version:       p.Version(),
		CreatedAt:     p.CreatedAt(),
		UpdatedAt:     p.UpdatedAt(),
	}
}

func (s participantSnapshot) toDomain() *participant.Permissions {
	return participant.Reconstitute(
		s.ParticipantID, s.DealID, s.State.Clone(), s.Overrides, s.Version, s.CreatedAt, s.UpdatedAt,
	)
}

// ParticipantCache caches participant permission records by participant ID.
type ParticipantCache struct {
	cache *Cache[participantSnapshot]
}

// NewParticipantCache creates a participant cache with the given TTL.
func NewParticipantCache(client *Client, ttl time.Duration) (*ParticipantCache, error) {
	cache, err := NewCache[participantSnapshot](client, participantCachePrefix, ttl)
	if err != nil {
		return nil, err
	}
	return &ParticipantCache{cache: cache}, nil
}

// Get returns the cached record, or nil without error on a miss.
func (c *ParticipantCache) Get(ctx context.Context, participantID shared.ID) (*participant.Permissions, error) {
	snap, err := c.cache.Get(ctx, participantID.String())
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap.toDomain(), nil
}

// Set stores the record.
func (c *ParticipantCache) Set(ctx context.Context, p *participant.Permissions) error {
	return c.cache.Set(ctx, p.ParticipantID().String(), toSnapshot(p))
}

// Invalidate drops the cached record.
func (c *ParticipantCache) Invalidate(ctx context.Context, participantID shared.ID) error {
	return c.cache.Delete(ctx, participantID.String())
}
