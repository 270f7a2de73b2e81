// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package xlsx streams the cells of an Office Open XML workbook.
package xlsx

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/xuri/excelize/v2"

	"github.com/magpierre/xlsxarrow/celltype"
	"github.com/magpierre/xlsxarrow/sheet"
)

// Reader is a sheet.Source backed by an excelize workbook.
//
// Rows are read through the excelize row iterator. The first row fixes the
// sheet width: later rows are padded with empty cells or truncated to it,
// and rows without any value produce no cells.
type Reader struct {
	f        *excelize.File
	opts     options
	log      *slog.Logger
	date1904 bool
	styles   map[int]bool // style id -> displays a date

	sheet   string
	rows    *excelize.Rows
	rowNum  int
	width   int
	pending []sheet.Cell
	err     error
	done    bool
}

var _ sheet.Source = (*Reader)(nil)

// Open reads a workbook from r. The caller must Close the Reader.
func Open(r io.Reader, opts ...Option) (*Reader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	f, err := excelize.OpenReader(r, excelize.Options{Password: o.password})
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return newReader(f, o)
}

// OpenFile opens the workbook at path. The caller must Close the Reader.
func OpenFile(path string, opts ...Option) (*Reader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	f, err := excelize.OpenFile(path, excelize.Options{Password: o.password})
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return newReader(f, o)
}

func newReader(f *excelize.File, o options) (*Reader, error) {
	props, err := f.GetWorkbookProps()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read workbook properties: %w", err)
	}

	return &Reader{
		f:        f,
		opts:     o,
		log:      o.logger,
		date1904: props.Date1904 != nil && *props.Date1904,
		styles:   make(map[int]bool),
	}, nil
}

// Date1904 reports whether the workbook uses the 1904 date system.
// Date serials read from such workbooks are shifted to the 1900 system.
func (r *Reader) Date1904() bool { return r.date1904 }

// SheetTitles returns the sheet names in workbook order.
func (r *Reader) SheetTitles() ([]string, error) {
	return r.f.GetSheetList(), nil
}

// BeginSheet starts iteration on the named sheet, ending any sheet in progress.
func (r *Reader) BeginSheet(title string) error {
	if !slices.Contains(r.f.GetSheetList(), title) {
		return fmt.Errorf("%w: no sheet named %q", sheet.ErrSheetNotFound, title)
	}
	if r.rows != nil {
		if err := r.EndSheet(); err != nil {
			return err
		}
	}

	rows, err := r.f.Rows(title)
	if err != nil {
		return fmt.Errorf("failed to iterate sheet %q: %w", title, err)
	}

	r.sheet = title
	r.rows = rows
	r.log.Debug("sheet begun", slog.String("sheet", title), slog.Bool("date1904", r.date1904))
	return nil
}

// EndSheet closes the row iterator of the current sheet.
func (r *Reader) EndSheet() error {
	if r.rows == nil {
		return sheet.ErrSheetNotStarted
	}

	err := r.rows.Close()
	r.reset()
	if err != nil {
		return fmt.Errorf("failed to close row iterator: %w", err)
	}
	return nil
}

// Close ends any sheet in progress and closes the workbook.
func (r *Reader) Close() error {
	if r.rows != nil {
		_ = r.rows.Close()
		r.reset()
	}
	return r.f.Close()
}

func (r *Reader) reset() {
	r.sheet = ""
	r.rows = nil
	r.rowNum = 0
	r.width = 0
	r.pending = nil
	r.err = nil
	r.done = false
}

// HasCell reports whether another cell, or a pending read error, is available.
func (r *Reader) HasCell() bool {
	if r.rows == nil {
		return false
	}
	r.fill()
	return len(r.pending) > 0 || r.err != nil
}

// ReadCell returns the next cell with its type resolved from the workbook.
func (r *Reader) ReadCell() (sheet.Cell, error) {
	if r.rows == nil {
		return sheet.Cell{}, sheet.ErrSheetNotStarted
	}
	r.fill()
	if r.err != nil {
		return sheet.Cell{}, r.err
	}
	if len(r.pending) == 0 {
		return sheet.Cell{}, sheet.ErrNoCell
	}

	c := r.pending[0]
	r.pending = r.pending[1:]
	return c, nil
}

// ReadBatch reads up to maxRows rows into a record for schema.
//
// Cells already buffered by HasCell or ReadCell are completed first. Every
// row skips the per-cell type lookup: each raw value is read as the type of
// the column it lands in.
func (r *Reader) ReadBatch(schema *arrow.Schema, maxRows int) (arrow.Record, error) {
	if r.rows == nil {
		return nil, sheet.ErrSheetNotStarted
	}
	if r.err != nil {
		return nil, r.err
	}

	bb := celltype.NewBatchBuilder(r.opts.mem, schema)
	defer bb.Release()

	if len(r.pending) > 0 && maxRows > 0 {
		for _, c := range r.pending {
			if c.Column() > schema.NumFields() {
				break
			}
			dt := schema.Field(c.Column() - 1).Type
			if err := bb.Append(r.batchCell(c.Row(), c.Column(), c.Raw(), dt)); err != nil {
				return nil, err
			}
		}
		r.pending = nil
		bb.EndRow()
	}

	for bb.Rows() < maxRows {
		cols, ok, err := r.nextRow()
		if err != nil {
			r.err = err
			return nil, err
		}
		if !ok {
			break
		}

		for i, raw := range cols {
			col := i + 1
			if col > schema.NumFields() {
				break
			}
			if err := bb.Append(r.batchCell(r.rowNum, col, raw, schema.Field(i).Type)); err != nil {
				return nil, err
			}
		}
		bb.EndRow()
	}

	if bb.Skipped > 0 {
		r.log.Debug("cells ignored", slog.String("sheet", r.sheet), slog.Int("count", bb.Skipped), slog.Int("through_row", r.rowNum))
	}
	return bb.NewRecord(), nil
}

// fill buffers the cells of the next non-blank row.
func (r *Reader) fill() {
	if len(r.pending) > 0 || r.err != nil || r.done {
		return
	}

	cols, ok, err := r.nextRow()
	if err != nil {
		r.err = err
		return
	}
	if !ok {
		return
	}

	cells := make([]sheet.Cell, 0, len(cols))
	for i, raw := range cols {
		c, err := r.typedCell(r.rowNum, i+1, raw)
		if err != nil {
			r.err = err
			return
		}
		cells = append(cells, c)
	}
	r.pending = cells
}

// nextRow advances to the next row holding a value and returns its raw
// values shaped to the sheet width.
func (r *Reader) nextRow() ([]string, bool, error) {
	if r.done {
		return nil, false, nil
	}

	for r.rows.Next() {
		r.rowNum++
		cols, err := r.rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, false, fmt.Errorf("failed to read row %d of sheet %q: %w", r.rowNum, r.sheet, err)
		}
		if cols = r.shape(cols); cols != nil {
			return cols, true, nil
		}
	}

	r.done = true
	if err := r.rows.Error(); err != nil {
		return nil, false, fmt.Errorf("failed to iterate sheet %q: %w", r.sheet, err)
	}
	return nil, false, nil
}

// shape trims trailing empty values, fixes the width from row 1 and pads or
// truncates later rows to it. It returns nil for a row without values.
func (r *Reader) shape(cols []string) []string {
	if r.width > 0 && len(cols) > r.width {
		cols = cols[:r.width]
	}

	last := len(cols) - 1
	for last >= 0 && cols[last] == "" {
		last--
	}
	if last < 0 {
		return nil
	}

	if r.rowNum == 1 {
		r.width = last + 1
		return cols[:r.width]
	}
	if r.width > len(cols) {
		padded := make([]string, r.width)
		copy(padded, cols)
		return padded
	}
	return cols
}

// typedCell resolves the declared type and date formatting of one cell.
//
// TODO: GetCellType and GetCellStyle each look the cell up in the worksheet
// again; pass the row's raw cell entries through once excelize exposes them
// from the row iterator.
func (r *Reader) typedCell(row, col int, raw string) (sheet.Cell, error) {
	if raw == "" {
		return sheet.NewCell(row, col, sheet.TypeEmpty, ""), nil
	}

	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return sheet.Cell{}, err
	}

	ct, err := r.f.GetCellType(r.sheet, name)
	if err != nil {
		return sheet.Cell{}, fmt.Errorf("failed to read type of %s: %w", name, err)
	}
	typ, err := declaredType(ct, raw)
	if err != nil {
		return sheet.Cell{}, fmt.Errorf("cell %s: %w", name, err)
	}

	var isDate bool
	if typ == sheet.TypeNumber {
		styleID, err := r.f.GetCellStyle(r.sheet, name)
		if err != nil {
			return sheet.Cell{}, fmt.Errorf("failed to read style of %s: %w", name, err)
		}
		isDate = r.isDateStyle(styleID)
	}

	return sheet.NewCell(row, col, typ, raw,
		sheet.WithDateFormat(isDate),
		sheet.WithDate1904(r.date1904)), nil
}

// batchCell builds a cell for a column whose type is already fixed.
func (r *Reader) batchCell(row, col int, raw string, dt arrow.DataType) sheet.Cell {
	if raw == "" {
		return sheet.NewCell(row, col, sheet.TypeEmpty, "")
	}

	switch dt.ID() {
	case arrow.FLOAT64:
		return sheet.NewCell(row, col, sheet.TypeNumber, raw)
	case arrow.BOOL:
		return sheet.NewCell(row, col, sheet.TypeBoolean, raw)
	case arrow.DATE32:
		if _, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return sheet.NewCell(row, col, sheet.TypeNumber, raw,
				sheet.WithDateFormat(true),
				sheet.WithDate1904(r.date1904))
		}
		return sheet.NewCell(row, col, sheet.TypeDate, raw)
	default:
		return sheet.NewCell(row, col, sheet.TypeSharedString, raw)
	}
}

func (r *Reader) isDateStyle(styleID int) bool {
	if isDate, ok := r.styles[styleID]; ok {
		return isDate
	}

	var isDate bool
	if style, err := r.f.GetStyle(styleID); err == nil && style != nil {
		isDate = isDateStyle(style.NumFmt, style.CustomNumFmt)
	}
	r.styles[styleID] = isDate
	return isDate
}

// declaredType maps an excelize cell type to a declared type. Cells without
// a type attribute hold numbers.
func declaredType(ct excelize.CellType, raw string) (sheet.DeclaredType, error) {
	switch ct {
	case excelize.CellTypeUnset:
		if raw == "" {
			return sheet.TypeEmpty, nil
		}
		return sheet.TypeNumber, nil
	case excelize.CellTypeBool:
		return sheet.TypeBoolean, nil
	case excelize.CellTypeDate:
		return sheet.TypeDate, nil
	case excelize.CellTypeError:
		return sheet.TypeError, nil
	case excelize.CellTypeFormula:
		return sheet.TypeFormulaString, nil
	case excelize.CellTypeInlineString:
		return sheet.TypeInlineString, nil
	case excelize.CellTypeNumber:
		return sheet.TypeNumber, nil
	case excelize.CellTypeSharedString:
		return sheet.TypeSharedString, nil
	default:
		return 0, fmt.Errorf("%w: excelize type %d", sheet.ErrUnmappedType, ct)
	}
}
