package participant

import (
	"errors"
	"fmt"

	"github.com/dealroom/api/pkg/domain/shared"
)

// Domain errors for participant permission records.
var (
	ErrNotFound      = fmt.Errorf("%w: participant permissions not found", shared.ErrNotFound)
	ErrAlreadyExists = fmt.Errorf("%w: participant permissions already exist", shared.ErrAlreadyExists)
	ErrInvalidID     = fmt.Errorf("%w: participant and deal ids are required", shared.ErrValidation)
)

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an already exists error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
