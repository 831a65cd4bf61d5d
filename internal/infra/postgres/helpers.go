package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
)

// nullString stores "" as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

// isUniqueViolation reports whether err is a 23505 from a unique index,
// such as a second record for the same participant.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

// toJSONB encodes permission maps, overrides and audit payloads for their
// JSONB columns.
func toJSONB(v any) ([]byte, error) {
	return json.Marshal(v)
}

// fromJSONB leaves target untouched for an empty column.
func fromJSONB(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}
