package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dealroom/api/internal/app"
	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/logger"
	"github.com/dealroom/api/pkg/pagination"
	"github.com/dealroom/api/pkg/validator"
)

// PermissionHandler handles participant permission requests.
type PermissionHandler struct {
	service   *app.PermissionService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewPermissionHandler creates a new permission handler.
func NewPermissionHandler(svc *app.PermissionService, v *validator.Validator, log *logger.Logger) *PermissionHandler {
	return &PermissionHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// =============================================================================
// Request Types
// =============================================================================

// CreateParticipantRequest adds a participant to a deal.
type CreateParticipantRequest struct {
	ParticipantID string `json:"participant_id" validate:"required,uuid"`
	DealID        string `json:"deal_id" validate:"required,uuid"`
	Preset        string `json:"preset" validate:"omitempty,preset_name"`
}

// ApplyPresetRequest replaces a participant's state with a preset.
type ApplyPresetRequest struct {
	Preset string `json:"preset" validate:"required,preset_name"`
}

// TogglePermissionRequest flips one permission.
type TogglePermissionRequest struct {
	Key string `json:"key" validate:"required,permission_key"`
}

// SetVisibilityRequest sets the scope of one visibility key.
type SetVisibilityRequest struct {
	Key   string `json:"key" validate:"required,visibility_key"`
	Scope string `json:"scope" validate:"required,visibility_scope"`
}

// OverrideRequest is a single permission override.
type OverrideRequest struct {
	Key     string `json:"key" validate:"required,permission_key"`
	Granted *bool  `json:"granted" validate:"required"`
}

func (o OverrideRequest) toDomain() permission.Override {
	return permission.Override{Key: permission.Key(o.Key), Granted: *o.Granted}
}

// ReplaceOverridesRequest replaces the whole override list.
type ReplaceOverridesRequest struct {
	Overrides []OverrideRequest `json:"overrides" validate:"max=200,dive"`
}

// =============================================================================
// Response Types
// =============================================================================

// ParticipantPermissionsResponse is a participant record with its resolution.
type ParticipantPermissionsResponse struct {
	ParticipantID string                                        `json:"participant_id"`
	DealID        string                                        `json:"deal_id"`
	RoleType      string                                        `json:"role_type"`
	Permissions   map[permission.Key]bool                       `json:"permissions"`
	Visibility    map[permission.VisibilityKey]permission.Scope `json:"visibility"`
	Overrides     []permission.Override                         `json:"overrides"`
	Effective     map[permission.Key]bool                       `json:"effective"`
	Drifted       bool                                          `json:"drifted"`
	Version       int                                           `json:"version"`
	CreatedAt     time.Time                                     `json:"created_at"`
	UpdatedAt     time.Time                                     `json:"updated_at"`
}

// EffectivePermissionsResponse holds the permissions with overrides applied.
type EffectivePermissionsResponse struct {
	ParticipantID string                  `json:"participant_id"`
	Effective     map[permission.Key]bool `json:"effective"`
	Granted       []permission.Key        `json:"granted"`
}

func toParticipantResponse(v *app.ParticipantView) ParticipantPermissionsResponse {
	rec := v.Record
	state := v.State
	overrides := rec.Overrides()
	if overrides == nil {
		overrides = []permission.Override{}
	}
	return ParticipantPermissionsResponse{
		ParticipantID: rec.ParticipantID().String(),
		DealID:        rec.DealID().String(),
		RoleType:      state.RoleType,
		Permissions:   state.Permissions,
		Visibility:    state.Visibility,
		Overrides:     overrides,
		Effective:     v.Effective,
		Drifted:       v.Drifted,
		Version:       rec.Version(),
		CreatedAt:     rec.CreatedAt(),
		UpdatedAt:     rec.UpdatedAt(),
	}
}

// =============================================================================
// Participant Handlers
// =============================================================================

// Create handles POST /api/v1/participants
func (h *PermissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateParticipantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	view, err := h.service.CreateParticipant(r.Context(), app.CreateParticipantInput{
		ParticipantID: req.ParticipantID,
		DealID:        req.DealID,
		Preset:        req.Preset,
	}, auditContext(r))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toParticipantResponse(view))
}

// Get handles GET /api/v1/participants/{participantId}/permissions
func (h *PermissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetParticipant(r.Context(), chi.URLParam(r, "participantId"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantResponse(view))
}

// Remove handles DELETE /api/v1/participants/{participantId}/permissions
func (h *PermissionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveParticipant(r.Context(), chi.URLParam(r, "participantId"), auditContext(r)); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDealParticipants handles GET /api/v1/deals/{dealId}/participants
func (h *PermissionHandler) ListDealParticipants(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListDealParticipants(r.Context(), chi.URLParam(r, "dealId"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	data := make([]ParticipantPermissionsResponse, len(views))
	for i, v := range views {
		data[i] = toParticipantResponse(v)
	}
	writeJSON(w, http.StatusOK, newListResponse(data))
}

// Effective handles GET /api/v1/participants/{participantId}/permissions/effective
func (h *PermissionHandler) Effective(w http.ResponseWriter, r *http.Request) {
	participantID := chi.URLParam(r, "participantId")
	effective, err := h.service.EffectivePermissions(r.Context(), participantID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, EffectivePermissionsResponse{
		ParticipantID: participantID,
		Effective:     effective,
		Granted:       permission.Granted(effective),
	})
}

// AuditLog handles GET /api/v1/participants/{participantId}/permissions/audit
// Query: page, per_page, sort (e.g. "-occurred_at"), action (repeatable).
func (h *PermissionHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.service.AuditLog(r.Context(), app.AuditLogInput{
		ParticipantID: chi.URLParam(r, "participantId"),
		Actions:       q["action"],
		Sort:          q.Get("sort"),
		Page:          pagination.FromQuery(q.Get("page"), q.Get("per_page")),
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// Mutation Handlers
// =============================================================================

// ApplyPreset handles PUT /api/v1/participants/{participantId}/permissions/preset
func (h *PermissionHandler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	var req ApplyPresetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	view, err := h.service.ApplyPreset(r.Context(), chi.URLParam(r, "participantId"), req.Preset, auditContext(r))
	h.writeView(w, view, err)
}

// Toggle handles POST /api/v1/participants/{participantId}/permissions/toggle
func (h *PermissionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req TogglePermissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	view, err := h.service.TogglePermission(r.Context(), chi.URLParam(r, "participantId"), permission.Key(req.Key), auditContext(r))
	h.writeView(w, view, err)
}

// SetVisibility handles PUT /api/v1/participants/{participantId}/permissions/visibility
func (h *PermissionHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req SetVisibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	view, err := h.service.SetVisibility(
		r.Context(),
		chi.URLParam(r, "participantId"),
		permission.VisibilityKey(req.Key),
		permission.Scope(req.Scope),
		auditContext(r),
	)
	h.writeView(w, view, err)
}

// EnableAll handles POST /api/v1/participants/{participantId}/permissions/enable-all
func (h *PermissionHandler) EnableAll(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.EnableAll(r.Context(), chi.URLParam(r, "participantId"), auditContext(r))
	h.writeView(w, view, err)
}

// DisableAll handles POST /api/v1/participants/{participantId}/permissions/disable-all
func (h *PermissionHandler) DisableAll(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.DisableAll(r.Context(), chi.URLParam(r, "participantId"), auditContext(r))
	h.writeView(w, view, err)
}

// ReplaceOverrides handles PUT /api/v1/participants/{participantId}/permissions/overrides
func (h *PermissionHandler) ReplaceOverrides(w http.ResponseWriter, r *http.Request) {
	var req ReplaceOverridesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	overrides := make([]permission.Override, len(req.Overrides))
	for i, o := range req.Overrides {
		overrides[i] = o.toDomain()
	}

	view, err := h.service.ReplaceOverrides(r.Context(), chi.URLParam(r, "participantId"), overrides, auditContext(r))
	h.writeView(w, view, err)
}

// AddOverride handles POST /api/v1/participants/{participantId}/permissions/overrides
func (h *PermissionHandler) AddOverride(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	view, err := h.service.AddOverride(r.Context(), chi.URLParam(r, "participantId"), req.toDomain(), auditContext(r))
	h.writeView(w, view, err)
}

// ClearOverrides handles DELETE /api/v1/participants/{participantId}/permissions/overrides
func (h *PermissionHandler) ClearOverrides(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ClearOverrides(r.Context(), chi.URLParam(r, "participantId"), auditContext(r))
	h.writeView(w, view, err)
}

func (h *PermissionHandler) writeView(w http.ResponseWriter, view *app.ParticipantView, err error) {
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantResponse(view))
}
