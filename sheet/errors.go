package sheet

import "errors"

// Common errors returned while reading a sheet and converting it.
var (
	// ErrSheetNotFound is returned when a selector matches no sheet.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrUnmappedType is returned when a declared cell type has no column type.
	ErrUnmappedType = errors.New("unmapped cell type")

	// ErrTypeMismatch is returned when a cell value cannot be read as the requested type.
	ErrTypeMismatch = errors.New("cell type mismatch")

	// ErrMissingHeader is returned when the sheet does not start with a header row.
	ErrMissingHeader = errors.New("missing header row")

	// ErrIncompleteSampleRow is returned when the type sample row does not
	// cover every header column.
	ErrIncompleteSampleRow = errors.New("incomplete type sample row")

	// ErrColumnOutOfRange is returned when a cell lies beyond the header width.
	ErrColumnOutOfRange = errors.New("column out of range")

	// ErrNoCell is returned by ReadCell when the sheet is exhausted.
	ErrNoCell = errors.New("no cell available")

	// ErrSheetNotStarted is returned when cells are read before BeginSheet.
	ErrSheetNotStarted = errors.New("sheet iteration not started")

	// ErrStalledSource is returned when a source reports pending cells but
	// yields an empty batch.
	ErrStalledSource = errors.New("source stalled with cells pending")
)
