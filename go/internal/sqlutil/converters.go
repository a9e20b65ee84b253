package sqlutil

import "database/sql"

// Helper functions for converting between Go types and sql.Null* types

// ToSqlString maps an empty string to NULL
func ToSqlString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}

// FromSqlString maps NULL to an empty string
func FromSqlString(val sql.NullString) string {
	if !val.Valid {
		return ""
	}
	return val.String
}
