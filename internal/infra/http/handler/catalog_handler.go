package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dealroom/api/internal/app"
	"github.com/dealroom/api/pkg/apierror"
	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/logger"
)

// CatalogHandler serves the read-only permission tables.
type CatalogHandler struct {
	service *app.PermissionService
	logger  *logger.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(svc *app.PermissionService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logger:  log,
	}
}

// CategoryResponse is one permission category.
type CategoryResponse struct {
	Name string           `json:"name"`
	Keys []permission.Key `json:"keys"`
}

// CatalogResponse lists every permission and visibility key.
type CatalogResponse struct {
	Categories     []CategoryResponse         `json:"categories"`
	VisibilityKeys []permission.VisibilityKey `json:"visibility_keys"`
	Scopes         []permission.Scope         `json:"scopes"`
}

// PresetResponse is a role preset.
type PresetResponse struct {
	Name       string                                        `json:"name"`
	Label      string                                        `json:"label"`
	Color      string                                        `json:"color,omitempty"`
	Grants     []permission.Key                              `json:"grants"`
	Visibility map[permission.VisibilityKey]permission.Scope `json:"visibility"`
}

func toPresetResponse(p permission.RolePreset) PresetResponse {
	grants := p.Grants
	if grants == nil {
		grants = []permission.Key{}
	}
	return PresetResponse{
		Name:       p.Name,
		Label:      p.Label,
		Color:      p.Color,
		Grants:     grants,
		Visibility: p.Visibility,
	}
}

// Catalog handles GET /api/v1/permissions/catalog
func (h *CatalogHandler) Catalog(w http.ResponseWriter, _ *http.Request) {
	catalog := h.service.Catalog()

	categories := catalog.Categories()
	resp := CatalogResponse{
		Categories:     make([]CategoryResponse, len(categories)),
		VisibilityKeys: catalog.VisibilityKeys(),
		Scopes:         permission.AllScopes(),
	}
	for i, c := range categories {
		resp.Categories[i] = CategoryResponse{Name: c.Name, Keys: c.Keys}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListPresets handles GET /api/v1/permissions/presets
func (h *CatalogHandler) ListPresets(w http.ResponseWriter, _ *http.Request) {
	presets := h.service.Presets()
	data := make([]PresetResponse, len(presets))
	for i, p := range presets {
		data[i] = toPresetResponse(p)
	}
	writeJSON(w, http.StatusOK, newListResponse(data))
}

// GetPreset handles GET /api/v1/permissions/presets/{name}
func (h *CatalogHandler) GetPreset(w http.ResponseWriter, r *http.Request) {
	preset, err := h.service.Preset(chi.URLParam(r, "name"))
	if errors.Is(err, permission.ErrUnknownPreset) {
		apierror.NotFound("Preset").WriteJSON(w)
		return
	}
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPresetResponse(preset))
}
