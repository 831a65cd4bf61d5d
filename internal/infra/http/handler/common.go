package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dealroom/api/internal/app"
	"github.com/dealroom/api/internal/infra/http/middleware"
	"github.com/dealroom/api/pkg/apierror"
	"github.com/dealroom/api/pkg/domain/participant"
	"github.com/dealroom/api/pkg/domain/shared"
	"github.com/dealroom/api/pkg/logger"
	"github.com/dealroom/api/pkg/validator"
)

// ListResponse wraps list payloads.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

func newListResponse[T any](data []T) ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return ListResponse[T]{Data: data, Total: len(data)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the request body into dst and writes the error response
// when it cannot. It reports whether the handler should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierror.PayloadTooLarge().WriteJSON(w)
			return false
		}
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return false
	}
	return true
}

// auditContext builds the audit identity from the request.
func auditContext(r *http.Request) app.AuditContext {
	return app.AuditContext{ActorID: middleware.GetActorID(r.Context())}
}

func handleValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apiErrors := make([]apierror.ValidationError, len(validationErrors))
		for i, ve := range validationErrors {
			apiErrors[i] = apierror.ValidationError{
				Field:   ve.Field,
				Message: ve.Message,
			}
		}
		apierror.ValidationFailed("Validation failed", apiErrors).WriteJSON(w)
		return
	}
	apierror.BadRequest("Validation error").WriteJSON(w)
}

func handleServiceError(w http.ResponseWriter, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, participant.ErrNotFound), errors.Is(err, shared.ErrNotFound):
		apierror.NotFound("Participant permissions").WriteJSON(w)
	case errors.Is(err, shared.ErrAlreadyExists):
		apierror.Conflict("Participant permissions already exist").WriteJSON(w)
	case errors.Is(err, shared.ErrValidation):
		apierror.BadRequest(trimErrorClass(err.Error())).WriteJSON(w)
	default:
		log.Error("service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}

// trimErrorClass drops the leading "validation error: " of wrapped errors.
func trimErrorClass(msg string) string {
	if idx := strings.Index(msg, ": "); idx != -1 {
		return msg[idx+2:]
	}
	return msg
}
