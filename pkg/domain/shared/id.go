package shared

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID identifies participants, deals and audit events.
type ID struct {
	value uuid.UUID
}

// NewID returns a random ID.
func NewID() ID {
	return ID{value: uuid.New()}
}

// IDFromString parses a UUID string.
func IDFromString(s string) (ID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: invalid id %q", ErrValidation, s)
	}
	return ID{value: parsed}, nil
}

// MustIDFromString parses s and panics when it is not a UUID.
func MustIDFromString(s string) ID {
	id, err := IDFromString(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical UUID form.
func (id ID) String() string {
	return id.value.String()
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id.value == uuid.Nil
}

// Value implements driver.Valuer.
func (id ID) Value() (driver.Value, error) {
	return id.value.String(), nil
}

// Scan implements sql.Scanner.
func (id *ID) Scan(src any) error {
	var (
		parsed uuid.UUID
		err    error
	)
	switch v := src.(type) {
	case string:
		parsed, err = uuid.Parse(v)
	case []byte:
		parsed, err = uuid.ParseBytes(v)
	default:
		return fmt.Errorf("cannot scan type %T into ID", src)
	}
	if err != nil {
		return err
	}
	id.value = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	id.value = parsed
	return nil
}
