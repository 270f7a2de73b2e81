package sheet

import "github.com/apache/arrow-go/v18/arrow"

// Source yields the cells of one sheet at a time in row-major,
// left-to-right order. Implementations are not safe for concurrent use;
// the read cursor only moves forward.
type Source interface {
	// SheetTitles returns the ordered sheet names of the workbook.
	SheetTitles() ([]string, error)

	// BeginSheet starts iteration on the named sheet.
	// Returns ErrSheetNotFound if no sheet has that title.
	BeginSheet(title string) error

	// EndSheet finishes iteration on the current sheet.
	EndSheet() error

	// HasCell reports whether another cell can be read.
	// A pending read error also reports true so ReadCell can surface it.
	HasCell() bool

	// ReadCell returns the next cell.
	// Returns ErrNoCell if the sheet is exhausted.
	ReadCell() (Cell, error)

	// ReadBatch reads up to maxRows whole rows into a record conforming to schema.
	// Cells are placed by column index; missing cells become nulls.
	ReadBatch(schema *arrow.Schema, maxRows int) (arrow.Record, error)
}
