package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dealroom/api/pkg/domain/participant"
	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/domain/shared"
)

// ParticipantPermissionRepository implements participant.Repository using PostgreSQL.
type ParticipantPermissionRepository struct {
	db *DB
}

// NewParticipantPermissionRepository creates a new ParticipantPermissionRepository.
func NewParticipantPermissionRepository(db *DB) *ParticipantPermissionRepository {
	return &ParticipantPermissionRepository{db: db}
}

var _ participant.Repository = (*ParticipantPermissionRepository)(nil)

const selectParticipantPermissions = `
	SELECT participant_id, deal_id, role_type, permissions, visibility, overrides,
	       version, created_at, updated_at
	FROM participant_permissions
`

// Create inserts a new record.
func (r *ParticipantPermissionRepository) Create(ctx context.Context, p *participant.Permissions) error {
	row, err := toParticipantRow(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO participant_permissions (
			participant_id, deal_id, role_type, permissions, visibility, overrides,
			version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		row.participantID, row.dealID, row.roleType,
		row.permissions, row.visibility, row.overrides,
		row.version, row.createdAt, row.updatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return participant.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create participant permissions: %w", err)
	}
	return nil
}

// GetByID retrieves the record of a participant.
func (r *ParticipantPermissionRepository) GetByID(ctx context.Context, participantID shared.ID) (*participant.Permissions, error) {
	query := selectParticipantPermissions + ` WHERE participant_id = $1`

	p, err := scanParticipantPermissions(r.db.QueryRowContext(ctx, query, participantID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, participant.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get participant permissions: %w", err)
	}
	return p, nil
}

// ListByDeal returns every record of a deal in creation order.
func (r *ParticipantPermissionRepository) ListByDeal(ctx context.Context, dealID shared.ID) ([]*participant.Permissions, error) {
	query := selectParticipantPermissions + ` WHERE deal_id = $1 ORDER BY created_at, participant_id`

	rows, err := r.db.QueryContext(ctx, query, dealID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list participant permissions: %w", err)
	}
	defer rows.Close()

	var result []*participant.Permissions
	for rows.Next() {
		p, err := scanParticipantPermissions(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant permissions: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participant permissions: %w", err)
	}
	return result, nil
}

// Update overwrites the stored record. Concurrent writers are not detected;
// the last write wins.
func (r *ParticipantPermissionRepository) Update(ctx context.Context, p *participant.Permissions) error {
	row, err := toParticipantRow(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE participant_permissions
		SET role_type = $2, permissions = $3, visibility = $4, overrides = $5,
		    version = $6, updated_at = $7
		WHERE participant_id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		row.participantID, row.roleType,
		row.permissions, row.visibility, row.overrides,
		row.version, row.updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update participant permissions: %w", err)
	}
	return requireAffected(res, participant.ErrNotFound)
}

// Delete removes the record of a participant.
func (r *ParticipantPermissionRepository) Delete(ctx context.Context, participantID shared.ID) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM participant_permissions WHERE participant_id = $1", participantID.String())
	if err != nil {
		return fmt.Errorf("failed to delete participant permissions: %w", err)
	}
	return requireAffected(res, participant.ErrNotFound)
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// participantRow is the column form of participant.Permissions.
type participantRow struct {
	participantID string
	dealID        string
	roleType      string
	permissions   []byte
	visibility    []byte
	overrides     []byte
	version       int
	createdAt     time.Time
	updatedAt     time.Time
}

func toParticipantRow(p *participant.Permissions) (participantRow, error) {
	state := p.State()

	perms, err := toJSONB(state.Permissions)
	if err != nil {
		return participantRow{}, fmt.Errorf("failed to marshal permissions: %w", err)
	}
	vis, err := toJSONB(state.Visibility)
	if err != nil {
		return participantRow{}, fmt.Errorf("failed to marshal visibility: %w", err)
	}
	overrides := p.Overrides()
	if overrides == nil {
		overrides = []permission.Override{}
	}
	ovr, err := toJSONB(overrides)
	if err != nil {
		return participantRow{}, fmt.Errorf("failed to marshal overrides: %w", err)
	}

	return participantRow{
		participantID: p.ParticipantID().String(),
		dealID:        p.DealID().String(),
		roleType:      state.RoleType,
		permissions:   perms,
		visibility:    vis,
		overrides:     ovr,
		version:       p.Version(),
		createdAt:     p.CreatedAt(),
		updatedAt:     p.UpdatedAt(),
	}, nil
}

func (row participantRow) toDomain() (*participant.Permissions, error) {
	participantID, err := shared.IDFromString(row.participantID)
	if err != nil {
		return nil, err
	}
	dealID, err := shared.IDFromString(row.dealID)
	if err != nil {
		return nil, err
	}

	state := permission.State{RoleType: row.roleType}
	if err := fromJSONB(row.permissions, &state.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}
	if err := fromJSONB(row.visibility, &state.Visibility); err != nil {
		return nil, fmt.Errorf("failed to unmarshal visibility: %w", err)
	}
	var overrides []permission.Override
	if err := fromJSONB(row.overrides, &overrides); err != nil {
		return nil, fmt.Errorf("failed to unmarshal overrides: %w", err)
	}

	return participant.Reconstitute(
		participantID, dealID, state, overrides,
		row.version, row.createdAt, row.updatedAt,
	), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipantPermissions(s rowScanner) (*participant.Permissions, error) {
	var row participantRow
	err := s.Scan(
		&row.participantID, &row.dealID, &row.roleType,
		&row.permissions, &row.visibility, &row.overrides,
		&row.version, &row.createdAt, &row.updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}
