package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/dealroom/api/pkg/domain/audit"
	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/domain/shared"
	"github.com/dealroom/api/pkg/pagination"
)

// AuditRepository implements audit.Repository using PostgreSQL.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

var _ audit.Repository = (*AuditRepository)(nil)

const defaultAuditSort = "occurred_at DESC"

// auditOrderBy returns the ORDER BY terms for a list query. Every ordering
// ends on id so rows with equal sort values keep a fixed position across pages.
func auditOrderBy(sort *pagination.SortOption) string {
	return sort.SQLWithDefault(defaultAuditSort) + ", id DESC"
}

// Create persists an event. A retried job inserting the same event ID again
// is ignored.
func (r *AuditRepository) Create(ctx context.Context, e *audit.Event) error {
	changes, err := toJSONB(auditPayload{Changes: e.Changes, Overrides: e.Overrides})
	if err != nil {
		return fmt.Errorf("failed to marshal changes: %w", err)
	}

	query := `
		INSERT INTO permission_audit_events (
			id, participant_id, deal_id, actor_id, action, role_type, changes, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query,
		e.ID.String(),
		e.ParticipantID.String(),
		e.DealID.String(),
		nullString(e.ActorID),
		e.Action.String(),
		e.RoleType,
		changes,
		e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit event: %w", err)
	}
	return nil
}

// List returns one page of events matching the filter, newest first unless
// the filter sorts otherwise.
func (r *AuditRepository) List(ctx context.Context, filter audit.Filter, page pagination.Pagination) (pagination.Result[*audit.Event], error) {
	where, args := buildAuditWhere(filter)

	countQuery := `SELECT COUNT(*) FROM permission_audit_events` + where
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return pagination.Result[*audit.Event]{}, fmt.Errorf("failed to count audit events: %w", err)
	}

	query := `
		SELECT id, participant_id, deal_id, actor_id, action, role_type, changes, occurred_at
		FROM permission_audit_events` + where +
		" ORDER BY " + auditOrderBy(filter.Sort) +
		fmt.Sprintf(" LIMIT %d OFFSET %d", page.Limit(), page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return pagination.Result[*audit.Event]{}, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return pagination.Result[*audit.Event]{}, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return pagination.Result[*audit.Event]{}, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return pagination.NewResult(events, total, page), nil
}

// purgeBatchSize bounds the rows one retention statement deletes so a large
// backlog does not hold locks for long.
const purgeBatchSize = 5000

// DeleteBefore deletes events that occurred before cutoff, in batches, and
// returns how many were removed.
func (r *AuditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM permission_audit_events
		WHERE id IN (
			SELECT id FROM permission_audit_events
			WHERE occurred_at < $1
			LIMIT $2
		)
	`
	var total int64
	for {
		result, err := r.db.ExecContext(ctx, query, cutoff, purgeBatchSize)
		if err != nil {
			return total, fmt.Errorf("failed to delete audit events: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to count deleted audit events: %w", err)
		}
		total += n
		if n < purgeBatchSize {
			return total, nil
		}
	}
}

func buildAuditWhere(filter audit.Filter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if !filter.ParticipantID.IsZero() {
		args = append(args, filter.ParticipantID.String())
		conditions = append(conditions, fmt.Sprintf("participant_id = $%d", len(args)))
	}
	if len(filter.Actions) > 0 {
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = a.String()
		}
		args = append(args, pq.Array(actions))
		conditions = append(conditions, fmt.Sprintf("action = ANY($%d)", len(args)))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// auditPayload is the JSON stored in the changes column.
type auditPayload struct {
	Changes   permission.Changes    `json:"changes"`
	Overrides []permission.Override `json:"overrides,omitempty"`
}

func scanAuditEvent(s rowScanner) (*audit.Event, error) {
	var (
		id, participantID, dealID string
		actorID                   sql.NullString
		action, roleType          string
		changes                   []byte
		e                         audit.Event
	)
	if err := s.Scan(&id, &participantID, &dealID, &actorID, &action, &roleType, &changes, &e.OccurredAt); err != nil {
		return nil, err
	}

	var err error
	if e.ID, err = shared.IDFromString(id); err != nil {
		return nil, err
	}
	if e.ParticipantID, err = shared.IDFromString(participantID); err != nil {
		return nil, err
	}
	if e.DealID, err = shared.IDFromString(dealID); err != nil {
		return nil, err
	}

	var payload auditPayload
	if err := fromJSONB(changes, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
	}

	e.ActorID = nullStringValue(actorID)
	e.Action = audit.Action(action)
	e.RoleType = roleType
	e.Changes = payload.Changes
	e.Overrides = payload.Overrides
	return &e, nil
}
