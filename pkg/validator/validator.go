// Package validator provides struct validation with custom tags for the
// permission vocabulary.
package validator

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dealroom/api/pkg/domain/permission"
)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
	resolver *permission.Resolver
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s: %s", e.Field, e.Message)
	}
	return sb.String()
}

// New creates a Validator whose permission tags check against the tables of
// the given resolver. A nil resolver uses the built-in tables.
//
// Registered tags:
//   - permission_key: a key of the catalog
//   - visibility_key: a visibility key of the catalog
//   - visibility_scope: none, own_only, role_based or all
//   - preset_name: a preset of the preset table
func New(resolver *permission.Resolver) *Validator {
	if resolver == nil {
		resolver = permission.NewDefaultResolver()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	pv := &Validator{validate: v, resolver: resolver}

	_ = v.RegisterValidation("permission_key", pv.validatePermissionKey)
	_ = v.RegisterValidation("visibility_key", pv.validateVisibilityKey)
	_ = v.RegisterValidation("visibility_scope", validateVisibilityScope)
	_ = v.RegisterValidation("preset_name", pv.validatePresetName)

	return pv
}

// Validate validates a struct and returns ValidationErrors if validation fails.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: v.formatErrorMessage(e),
		})
	}

	return result
}

// Empty values pass every custom tag; 'required' handles them.

func (v *Validator) validatePermissionKey(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || v.resolver.Catalog().HasKey(permission.Key(value))
}

func (v *Validator) validateVisibilityKey(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || v.resolver.Catalog().HasVisibilityKey(permission.VisibilityKey(value))
}

func (v *Validator) validatePresetName(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || v.resolver.Presets().Has(value)
}

func validateVisibilityScope(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || permission.Scope(value).IsValid()
}

func (v *Validator) formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "permission_key":
		return "must be a known permission key"
	case "visibility_key":
		return fmt.Sprintf("must be one of: %s", joinVisibilityKeys(v.resolver.Catalog().VisibilityKeys()))
	case "visibility_scope":
		return fmt.Sprintf("must be one of: %s", joinScopes(permission.AllScopes()))
	case "preset_name":
		return fmt.Sprintf("must be one of: %s", strings.Join(v.resolver.Presets().Names(), ", "))
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case. Runs of capitals
// are kept together, so ParticipantID becomes participant_id.
func toSnakeCase(s string) string {
	runes := []rune(s)
	var result strings.Builder
	for i, r := range runes {
		if i > 0 && isUpper(r) {
			prevLower := !isUpper(runes[i-1])
			nextLower := i+1 < len(runes) && !isUpper(runes[i+1])
			if prevLower || nextLower {
				result.WriteByte('_')
			}
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

func joinScopes(scopes []permission.Scope) string {
	strs := make([]string, len(scopes))
	for i, s := range scopes {
		strs[i] = s.String()
	}
	return strings.Join(strs, ", ")
}

func joinVisibilityKeys(keys []permission.VisibilityKey) string {
	strs := make([]string, len(keys))
	for i, k := range keys {
		strs[i] = k.String()
	}
	return strings.Join(strs, ", ")
}
