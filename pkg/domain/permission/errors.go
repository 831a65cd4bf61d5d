package permission

import (
	"fmt"

	"github.com/dealroom/api/pkg/domain/shared"
)

// Errors returned for references outside the fixed tables. They indicate the
// caller is out of sync with the configuration and are never retried.
var (
	ErrUnknownPreset        = fmt.Errorf("%w: unknown role preset", shared.ErrValidation)
	ErrUnknownPermissionKey = fmt.Errorf("%w: unknown permission key", shared.ErrValidation)
	ErrUnknownVisibilityKey = fmt.Errorf("%w: unknown visibility key", shared.ErrValidation)
	ErrUnknownScope         = fmt.Errorf("%w: unknown visibility scope", shared.ErrValidation)
	ErrInvalidTable         = fmt.Errorf("%w: invalid permission table", shared.ErrValidation)
)
