package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dealroom/api/internal/metrics"
	"github.com/dealroom/api/pkg/domain/audit"
	"github.com/dealroom/api/pkg/domain/participant"
	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/domain/shared"
	"github.com/dealroom/api/pkg/logger"
	"github.com/dealroom/api/pkg/pagination"
)

// StateCache caches participant permission records.
// Get returns nil without error on a miss.
type StateCache interface {
	Get(ctx context.Context, participantID shared.ID) (*participant.Permissions, error)
	Set(ctx context.Context, p *participant.Permissions) error
	Invalidate(ctx context.Context, participantID shared.ID) error
}

// AuditRecorder delivers permission audit events.
type AuditRecorder interface {
	Record(ctx context.Context, event *audit.Event) error
}

// ChangeNotifier is told about every committed permission change.
// Implementations must not block.
type ChangeNotifier interface {
	PermissionsChanged(change PermissionChange)
}

// PermissionChange describes a committed change to one participant.
type PermissionChange struct {
	Action        audit.Action            `json:"action"`
	ParticipantID string                  `json:"participant_id"`
	DealID        string                  `json:"deal_id"`
	ActorID       string                  `json:"actor_id,omitempty"`
	RoleType      string                  `json:"role_type"`
	Version       int                     `json:"version"`
	Changes       permission.Changes      `json:"changes"`
	Effective     map[permission.Key]bool `json:"effective,omitempty"`
	OccurredAt    time.Time               `json:"occurred_at"`
}

// AuditContext identifies who performed an action.
type AuditContext struct {
	ActorID string
}

// ParticipantView is a stored record together with what it resolves to.
type ParticipantView struct {
	Record *participant.Permissions
	// State is the stored state normalized against the current catalog.
	State permission.State
	// Effective is the base permissions with the overrides applied.
	Effective map[permission.Key]bool
	// Drifted is true when the state no longer equals its recorded preset.
	Drifted bool
}

const auditTimeout = 5 * time.Second

// PermissionService manages the permissions of deal room participants.
type PermissionService struct {
	repo          participant.Repository
	resolver      *permission.Resolver
	defaultPreset string
	cache         StateCache
	recorder      AuditRecorder
	auditRepo     audit.Repository
	notifier      ChangeNotifier
	logger        *logger.Logger
}

// PermissionServiceOption is a functional option for PermissionService.
type PermissionServiceOption func(*PermissionService)

// WithDefaultPreset sets the preset seeded into new participants.
func WithDefaultPreset(name string) PermissionServiceOption {
	return func(s *PermissionService) {
		if name != "" {
			s.defaultPreset = name
		}
	}
}

// WithStateCache sets the cache used for reads.
func WithStateCache(cache StateCache) PermissionServiceOption {
	return func(s *PermissionService) {
		s.cache = cache
	}
}

// WithAuditRecorder sets where audit events are delivered.
func WithAuditRecorder(recorder AuditRecorder) PermissionServiceOption {
	return func(s *PermissionService) {
		s.recorder = recorder
	}
}

// WithAuditRepository enables reading the audit log.
func WithAuditRepository(repo audit.Repository) PermissionServiceOption {
	return func(s *PermissionService) {
		s.auditRepo = repo
	}
}

// WithChangeNotifier sets who is told about committed changes.
func WithChangeNotifier(n ChangeNotifier) PermissionServiceOption {
	return func(s *PermissionService) {
		s.notifier = n
	}
}

// NewPermissionService creates a new PermissionService.
func NewPermissionService(
	repo participant.Repository,
	resolver *permission.Resolver,
	log *logger.Logger,
	opts ...PermissionServiceOption,
) *PermissionService {
	if resolver == nil {
		resolver = permission.NewDefaultResolver()
	}
	s := &PermissionService{
		repo:          repo,
		resolver:      resolver,
		defaultPreset: permission.PresetParticipant,
		logger:        log.With("service", "permission"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver returns the resolver the service runs on.
func (s *PermissionService) Resolver() *permission.Resolver {
	return s.resolver
}

// Catalog returns the permission catalog.
func (s *PermissionService) Catalog() *permission.Catalog {
	return s.resolver.Catalog()
}

// Presets returns every role preset in declaration order.
func (s *PermissionService) Presets() []permission.RolePreset {
	return s.resolver.Presets().All()
}

// Preset returns one role preset.
func (s *PermissionService) Preset(name string) (permission.RolePreset, error) {
	return s.resolver.Presets().Get(name)
}

// CreateParticipantInput represents the input for adding a participant.
type CreateParticipantInput struct {
	ParticipantID string `json:"participant_id" validate:"required,uuid"`
	DealID        string `json:"deal_id" validate:"required,uuid"`
	Preset        string `json:"preset,omitempty" validate:"omitempty,preset_name"`
}

// CreateParticipant seeds the permissions of a new participant from the
// requested preset, or the default one.
func (s *PermissionService) CreateParticipant(ctx context.Context, input CreateParticipantInput, actx AuditContext) (view *ParticipantView, err error) {
	defer func() { metrics.RecordOperation("create_participant", err) }()

	participantID, err := parseID("participant", input.ParticipantID)
	if err != nil {
		return nil, err
	}
	dealID, err := parseID("deal", input.DealID)
	if err != nil {
		return nil, err
	}

	preset := input.Preset
	if preset == "" {
		preset = s.defaultPreset
	}
	state, err := s.resolver.ApplyPreset(preset)
	if err != nil {
		return nil, err
	}

	rec, err := participant.New(participantID, dealID, state)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create participant permissions: %w", err)
	}

	s.logger.Info("participant permissions created",
		"participant_id", participantID.String(),
		"deal_id", dealID.String(),
		"preset", preset,
	)
	metrics.RecordPresetApplied(preset)
	view = s.view(rec)
	changes := permission.Diff(permission.State{}, state)
	s.recordAudit(ctx, actx, audit.ActionParticipantCreated, rec, changes)
	s.notify(actx, audit.ActionParticipantCreated, rec, changes, view.Effective)

	return view, nil
}

// GetParticipant returns the permissions of a participant.
func (s *PermissionService) GetParticipant(ctx context.Context, participantID string) (*ParticipantView, error) {
	id, err := parseID("participant", participantID)
	if err != nil {
		return nil, err
	}
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(rec), nil
}

// ListDealParticipants returns the permissions of every participant of a deal.
func (s *PermissionService) ListDealParticipants(ctx context.Context, dealID string) ([]*ParticipantView, error) {
	id, err := parseID("deal", dealID)
	if err != nil {
		return nil, err
	}
	recs, err := s.repo.ListByDeal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list deal participants: %w", err)
	}

	views := make([]*ParticipantView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, s.view(rec))
	}
	return views, nil
}

// EffectivePermissions returns the permissions of a participant with the
// overrides applied.
func (s *PermissionService) EffectivePermissions(ctx context.Context, participantID string) (map[permission.Key]bool, error) {
	v, err := s.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	return v.Effective, nil
}

// ApplyPreset replaces the permissions of a participant with a preset.
func (s *PermissionService) ApplyPreset(ctx context.Context, participantID, preset string, actx AuditContext) (*ParticipantView, error) {
	view, err := s.mutate(ctx, "apply_preset", participantID, actx, audit.ActionPresetApplied,
		func(rec *participant.Permissions) error {
			state, err := s.resolver.ApplyPreset(preset)
			if err != nil {
				return err
			}
			rec.Replace(state)
			return nil
		})
	if err == nil {
		metrics.RecordPresetApplied(preset)
	}
	return view, err
}

// TogglePermission flips one permission of a participant.
func (s *PermissionService) TogglePermission(ctx context.Context, participantID string, key permission.Key, actx AuditContext) (*ParticipantView, error) {
	return s.mutate(ctx, "toggle_permission", participantID, actx, audit.ActionToggled,
		func(rec *participant.Permissions) error {
			state, err := s.resolver.TogglePermission(rec.State(), key)
			if err != nil {
				return err
			}
			rec.Replace(state)
			return nil
		})
}

// SetVisibility sets the scope of one visibility key of a participant.
func (s *PermissionService) SetVisibility(ctx context.Context, participantID string, key permission.VisibilityKey, scope permission.Scope, actx AuditContext) (*ParticipantView, error) {
	return s.mutate(ctx, "set_visibility", participantID, actx, audit.ActionVisibilitySet,
		func(rec *participant.Permissions) error {
			state, err := s.resolver.SetVisibility(rec.State(), key, scope)
			if err != nil {
				return err
			}
			rec.Replace(state)
			return nil
		})
}

// EnableAll grants every permission and opens every visibility key.
func (s *PermissionService) EnableAll(ctx context.Context, participantID string, actx AuditContext) (*ParticipantView, error) {
	return s.mutate(ctx, "enable_all", participantID, actx, audit.ActionEnabledAll,
		func(rec *participant.Permissions) error {
			rec.Replace(s.resolver.EnableAll(rec.State()))
			return nil
		})
}

// DisableAll revokes every permission and closes every visibility key.
func (s *PermissionService) DisableAll(ctx context.Context, participantID string, actx AuditContext) (*ParticipantView, error) {
	return s.mutate(ctx, "disable_all", participantID, actx, audit.ActionDisabledAll,
		func(rec *participant.Permissions) error {
			rec.Replace(s.resolver.DisableAll(rec.State()))
			return nil
		})
}

// ReplaceOverrides swaps the whole override list of a participant.
func (s *PermissionService) ReplaceOverrides(ctx context.Context, participantID string, overrides []permission.Override, actx AuditContext) (*ParticipantView, error) {
	return s.mutate(ctx, "replace_overrides", participantID, actx, audit.ActionOverridesSet,
		func(rec *participant.Permissions) error {
			if err := s.validateOverrides(overrides); err != nil {
				return err
			}
			rec.SetOverrides(overrides)
			return nil
		})
}

// AddOverride appends one override. It wins over every earlier one.
func (s *PermissionService) AddOverride(ctx context.Context, participantID string, override permission.Override, actx AuditContext) (*ParticipantView, error) {
	return s.mutate(ctx, "add_override", participantID, actx, audit.ActionOverrideAdded,
		func(rec *participant.Permissions) error {
			if err := s.validateOverrides([]permission.Override{override}); err != nil {
				return err
			}
			rec.AddOverride(override)
			return nil
		})
}

// ClearOverrides drops every override of a participant.
func (s *PermissionService) ClearOverrides(ctx context.Context, participantID string, actx AuditContext) (*ParticipantView, error) {
	return s.mutate(ctx, "clear_overrides", participantID, actx, audit.ActionOverridesClear,
		func(rec *participant.Permissions) error {
			rec.ClearOverrides()
			return nil
		})
}

// RemoveParticipant deletes the permissions of a participant.
func (s *PermissionService) RemoveParticipant(ctx context.Context, participantID string, actx AuditContext) (err error) {
	defer func() { metrics.RecordOperation("remove_participant", err) }()

	id, err := parseID("participant", participantID)
	if err != nil {
		return err
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete participant permissions: %w", err)
	}
	s.invalidate(ctx, id)

	s.logger.Info("participant permissions removed",
		"participant_id", id.String(),
		"deal_id", rec.DealID().String(),
	)
	changes := permission.Diff(rec.State(), permission.State{})
	s.recordAudit(ctx, actx, audit.ActionParticipantRemoved, rec, changes)
	s.notify(actx, audit.ActionParticipantRemoved, rec, changes, nil)
	return nil
}

// AuditLogInput selects a page of a participant's audit log.
type AuditLogInput struct {
	ParticipantID string
	Actions       []string
	// Sort is a comma separated field list, e.g. "-occurred_at,action".
	Sort string
	Page pagination.Pagination
}

// AuditLog returns one page of a participant's audit events, newest first
// unless Sort says otherwise.
func (s *PermissionService) AuditLog(ctx context.Context, input AuditLogInput) (pagination.Result[*audit.Event], error) {
	if s.auditRepo == nil {
		return pagination.Result[*audit.Event]{}, fmt.Errorf("%w: audit log is not configured", shared.ErrInternal)
	}
	id, err := parseID("participant", input.ParticipantID)
	if err != nil {
		return pagination.Result[*audit.Event]{}, err
	}

	filter := audit.Filter{
		ParticipantID: id,
		Sort:          pagination.NewSortOption(audit.SortFields).Parse(input.Sort),
	}
	for _, raw := range input.Actions {
		action := audit.Action(raw)
		if !action.IsValid() {
			return pagination.Result[*audit.Event]{}, fmt.Errorf("%w: unknown audit action %q", shared.ErrValidation, raw)
		}
		filter.Actions = append(filter.Actions, action)
	}

	return s.auditRepo.List(ctx, filter, input.Page)
}

// mutate loads a record from the repository, applies fn, stores the result
// and reports the change. The cache is bypassed so the write starts from the
// latest stored version.
func (s *PermissionService) mutate(
	ctx context.Context,
	operation string,
	participantID string,
	actx AuditContext,
	action audit.Action,
	fn func(rec *participant.Permissions) error,
) (view *ParticipantView, err error) {
	defer func() { metrics.RecordOperation(operation, err) }()

	id, err := parseID("participant", participantID)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	before := rec.State()
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update participant permissions: %w", err)
	}
	s.invalidate(ctx, id)

	s.logger.Info("participant permissions updated",
		"operation", operation,
		"participant_id", id.String(),
		"role_type", rec.RoleType(),
		"version", rec.Version(),
	)
	view = s.view(rec)
	changes := permission.Diff(before, rec.State())
	s.recordAudit(ctx, actx, action, rec, changes)
	s.notify(actx, action, rec, changes, view.Effective)

	return view, nil
}

// load reads through the cache. Cache failures are logged and skipped.
func (s *PermissionService) load(ctx context.Context, id shared.ID) (*participant.Permissions, error) {
	if s.cache != nil {
		rec, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("participant cache get failed", "participant_id", id.String(), "error", err)
		}
		if rec != nil {
			return rec, nil
		}
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, rec); err != nil {
			s.logger.Warn("participant cache set failed", "participant_id", id.String(), "error", err)
		}
	}
	return rec, nil
}

func (s *PermissionService) invalidate(ctx context.Context, id shared.ID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("participant cache invalidate failed", "participant_id", id.String(), "error", err)
	}
}

// view resolves a record. Overrides naming keys that left the catalog are
// skipped so an old record stays readable.
func (s *PermissionService) view(rec *participant.Permissions) *ParticipantView {
	state := s.resolver.Normalize(rec.State())

	catalog := s.resolver.Catalog()
	overrides := make([]permission.Override, 0, len(rec.Overrides()))
	for _, o := range rec.Overrides() {
		if !catalog.HasKey(o.Key) {
			s.logger.Warn("skipping override for unknown key",
				"participant_id", rec.ParticipantID().String(),
				"key", o.Key.String(),
			)
			continue
		}
		overrides = append(overrides, o)
	}

	effective, err := s.resolver.ResolveEffectivePermissions(state, overrides)
	if err != nil {
		// unreachable: overrides were filtered against the same catalog
		effective = state.Permissions
	}

	return &ParticipantView{
		Record:    rec,
		State:     state,
		Effective: effective,
		Drifted:   s.resolver.Drifted(rec.State()),
	}
}

func (s *PermissionService) validateOverrides(overrides []permission.Override) error {
	catalog := s.resolver.Catalog()
	for _, o := range overrides {
		if !catalog.HasKey(o.Key) {
			return fmt.Errorf("%w: %q", permission.ErrUnknownPermissionKey, o.Key)
		}
	}
	return nil
}

// recordAudit hands an event to the recorder. Failures are logged and never
// fail the calling operation.
func (s *PermissionService) recordAudit(ctx context.Context, actx AuditContext, action audit.Action, rec *participant.Permissions, changes permission.Changes) {
	if s.recorder == nil {
		return
	}

	event, err := audit.NewEvent(action, rec.ParticipantID(), rec.DealID(), actx.ActorID, rec.RoleType(), changes)
	if err != nil {
		s.logger.Error("failed to build audit event", "action", string(action), "error", err)
		return
	}
	event.WithOverrides(rec.Overrides())

	// The request context may already be cancelled once the response is out.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	err = s.recorder.Record(auditCtx, event)
	if err != nil {
		s.logger.Error("failed to record audit event", "action", string(action), "error", err)
	}
	metrics.RecordAuditEvent(err)
}

func (s *PermissionService) notify(actx AuditContext, action audit.Action, rec *participant.Permissions, changes permission.Changes, effective map[permission.Key]bool) {
	if s.notifier == nil {
		return
	}
	s.notifier.PermissionsChanged(PermissionChange{
		Action:        action,
		ParticipantID: rec.ParticipantID().String(),
		DealID:        rec.DealID().String(),
		ActorID:       actx.ActorID,
		RoleType:      rec.RoleType(),
		Version:       rec.Version(),
		Changes:       changes,
		Effective:     effective,
		OccurredAt:    time.Now().UTC(),
	})
}

func parseID(kind, raw string) (shared.ID, error) {
	id, err := shared.IDFromString(raw)
	if err != nil || id.IsZero() {
		return shared.ID{}, fmt.Errorf("%w: invalid %s id format", shared.ErrValidation, kind)
	}
	return id, nil
}
