package table

import "errors"

// Common errors returned by the table package.
var (
	// ErrInvalidQuery is returned when a filter expression cannot be parsed.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrColumnNotFound is returned when a column name is not in the schema.
	ErrColumnNotFound = errors.New("column not found")

	// ErrNoColumns is returned when a selection keeps no column.
	ErrNoColumns = errors.New("no columns selected")
)
