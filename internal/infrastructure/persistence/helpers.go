package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// executor is the subset of *sql.DB / *sql.Tx the repositories use.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// conn resolves the statement target: a transaction injected into the context
// by TransactionManager, or the pooled connection otherwise.
func conn(ctx context.Context, db *sql.DB) executor {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return db
}

// parseTime converts a raw MySQL timestamp column into time.Time. The driver
// hands timestamps back as []byte when parseTime is off (sqlmock does the
// same), so both representations are accepted.
func parseTime(raw []byte) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, string(raw)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseNullTime is parseTime for nullable columns.
func parseNullTime(raw []byte) *time.Time {
	if len(raw) == 0 {
		return nil
	}
	t := parseTime(raw)
	if t.IsZero() {
		return nil
	}
	return &t
}

// marshalJSON serializes a value for a JSON column. nil maps and slices are
// stored as SQL NULL rather than the string "null".
func marshalJSON(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON column: %w", err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	return string(data), nil
}

// unmarshalJSON deserializes a nullable JSON column into target. Empty and
// NULL columns leave the target untouched.
func unmarshalJSON(raw []byte, target interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON column: %w", err)
	}
	return nil
}

// nullableString converts *string to a driver-friendly value.
func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// nullableTime converts *time.Time to a driver-friendly value.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// scanNullString converts a scanned sql.NullString back to *string.
func scanNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
