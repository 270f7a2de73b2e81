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

// Package convert turns a stream of spreadsheet cells into an Arrow table.
//
// Row 1 names the columns, row 2 decides their types, and every later row
// is read in batches under the schema frozen after row 2.
package convert

import (
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/magpierre/xlsxarrow/celltype"
	"github.com/magpierre/xlsxarrow/sheet"
)

// state is the position of a conversion in its forward-only lifecycle.
type state int

const (
	stateUnopened state = iota
	stateHeaderRow
	stateTypeSampleRow
	stateStreaming
	stateClosed
)

// String returns the string representation of a state.
func (s state) String() string {
	switch s {
	case stateUnopened:
		return "Unopened"
	case stateHeaderRow:
		return "HeaderRow"
	case stateTypeSampleRow:
		return "TypeSampleRow"
	case stateStreaming:
		return "Streaming"
	case stateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// converter holds the state of one Convert call.
type converter struct {
	src  sheet.Source
	opts options
	log  *slog.Logger

	state     state
	names     map[int]string // header column index -> name
	maxColumn int

	fields  []arrow.Field
	sample  []arrow.Array // single-element arrays from row 2
	schema  *arrow.Schema
	batches []arrow.Record
}

// Convert reads the sheet chosen by sel from src and returns it as one
// Arrow table. The caller owns the table and must release it.
//
// A sheet holding only a header row yields a zero-row table of string
// columns. On error nothing is returned and all intermediate batches are
// released.
func Convert(src sheet.Source, sel sheet.Selector, opts ...Option) (arrow.Table, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &converter{
		src:   src,
		opts:  o,
		log:   o.logger,
		state: stateUnopened,
		names: make(map[int]string),
	}
	defer c.release()

	return c.run(sel)
}

func (c *converter) run(sel sheet.Selector) (tbl arrow.Table, err error) {
	titles, err := c.src.SheetTitles()
	if err != nil {
		return nil, fmt.Errorf("failed to list sheets: %w", err)
	}

	title, err := sel.Resolve(titles)
	if err != nil {
		return nil, err
	}

	if err := c.src.BeginSheet(title); err != nil {
		return nil, fmt.Errorf("failed to begin sheet %q: %w", title, err)
	}
	c.state = stateHeaderRow
	c.log.Debug("sheet opened", slog.String("sheet", title), slog.String("selector", sel.String()))

	defer func() {
		if err != nil {
			_ = c.src.EndSheet()
		}
	}()

	if err := c.inferSchema(); err != nil {
		return nil, err
	}
	if err := c.stream(); err != nil {
		return nil, err
	}

	if err := c.src.EndSheet(); err != nil {
		c.state = stateClosed
		return nil, fmt.Errorf("failed to end sheet %q: %w", title, err)
	}
	c.state = stateClosed

	tbl = array.NewTableFromRecords(c.schema, c.batches)
	c.log.Debug("sheet converted",
		slog.String("sheet", title),
		slog.Int64("rows", tbl.NumRows()),
		slog.Int64("columns", tbl.NumCols()),
		slog.Int("batches", len(c.batches)))

	return tbl, nil
}

// inferSchema consumes the header row and the type sample row.
func (c *converter) inferSchema() error {
	for c.state != stateStreaming && c.src.HasCell() {
		cell, err := c.src.ReadCell()
		if err != nil {
			return fmt.Errorf("failed to read cell: %w", err)
		}
		if err := c.step(cell); err != nil {
			return err
		}
	}

	switch c.state {
	case stateHeaderRow:
		if len(c.names) == 0 {
			return fmt.Errorf("%w: sheet has no cells", sheet.ErrMissingHeader)
		}
		c.freezeHeaderOnly()
	case stateTypeSampleRow:
		return fmt.Errorf("%w: sheet ended after column %d of %d",
			sheet.ErrIncompleteSampleRow, len(c.fields), c.maxColumn)
	}
	return nil
}

// step applies one cell to the header or type sample phase.
func (c *converter) step(cell sheet.Cell) error {
	row := cell.Row()

	switch c.state {
	case stateHeaderRow:
		switch {
		case row == 1:
			c.names[cell.Column()] = cell.String()
			c.maxColumn = max(c.maxColumn, cell.Column())
			return nil
		case len(c.names) == 0:
			return fmt.Errorf("%w: first cell is at row %d", sheet.ErrMissingHeader, row)
		case row == 2:
			c.state = stateTypeSampleRow
			return c.sampleCell(cell)
		default:
			return fmt.Errorf("%w: row %d follows the header", sheet.ErrIncompleteSampleRow, row)
		}

	case stateTypeSampleRow:
		if row != 2 {
			return fmt.Errorf("%w: row %d started after column %d of %d",
				sheet.ErrIncompleteSampleRow, row, len(c.fields), c.maxColumn)
		}
		return c.sampleCell(cell)

	default:
		return fmt.Errorf("unexpected cell (%d,%d) in state %s", row, cell.Column(), c.state)
	}
}

// sampleCell infers the type of one column from its row-2 cell.
func (c *converter) sampleCell(cell sheet.Cell) error {
	col := cell.Column()
	if col > c.maxColumn {
		return fmt.Errorf("%w: column %d beyond header width %d", sheet.ErrColumnOutOfRange, col, c.maxColumn)
	}
	if col != len(c.fields)+1 {
		return fmt.Errorf("%w: column %d sampled before column %d",
			sheet.ErrIncompleteSampleRow, col, len(c.fields)+1)
	}

	dt, err := celltype.FieldType(cell.Type(), cell.IsDateFormat())
	if err != nil {
		return fmt.Errorf("column %d: %w", col, err)
	}
	v, err := celltype.Extract(cell)
	if err != nil {
		return fmt.Errorf("column %d: %w", col, err)
	}
	arr, err := celltype.NewSingleElementArray(c.opts.mem, v, dt)
	if err != nil {
		return fmt.Errorf("column %d: %w", col, err)
	}

	c.fields = append(c.fields, arrow.Field{Name: c.names[col], Type: dt, Nullable: true})
	c.sample = append(c.sample, arr)

	if col == c.maxColumn {
		c.freeze()
	}
	return nil
}

// freeze fixes the schema and emits row 2 as the first batch.
func (c *converter) freeze() {
	c.schema = arrow.NewSchema(c.fields, nil)

	rec := array.NewRecord(c.schema, c.sample, 1)
	for _, arr := range c.sample {
		arr.Release()
	}
	c.sample = nil

	c.batches = append(c.batches, rec)
	c.state = stateStreaming
	c.log.Debug("schema frozen", slog.String("schema", c.schema.String()))
}

// freezeHeaderOnly builds an all-string schema when the sheet has no data rows.
func (c *converter) freezeHeaderOnly() {
	c.fields = make([]arrow.Field, c.maxColumn)
	for i := range c.fields {
		c.fields[i] = arrow.Field{Name: c.names[i+1], Type: arrow.BinaryTypes.String, Nullable: true}
	}
	c.schema = arrow.NewSchema(c.fields, nil)
	c.state = stateStreaming
	c.log.Debug("header only sheet", slog.Int("columns", c.maxColumn))
}

// stream requests batches until the source is exhausted.
func (c *converter) stream() error {
	for c.src.HasCell() {
		rec, err := c.src.ReadBatch(c.schema, c.opts.batchSize)
		if err != nil {
			return fmt.Errorf("failed to read batch %d: %w", len(c.batches), err)
		}
		if !rec.Schema().Equal(c.schema) {
			rec.Release()
			return fmt.Errorf("batch %d schema %s does not match %s", len(c.batches), rec.Schema(), c.schema)
		}
		if rec.NumRows() == 0 {
			rec.Release()
			return fmt.Errorf("batch %d: %w", len(c.batches), sheet.ErrStalledSource)
		}

		c.batches = append(c.batches, rec)
		c.log.Debug("batch read", slog.Int("batch", len(c.batches)-1), slog.Int64("rows", rec.NumRows()))
	}
	return nil
}

// release frees every Arrow object still owned by the converter.
// The table returned by run holds its own references.
func (c *converter) release() {
	for _, arr := range c.sample {
		arr.Release()
	}
	for _, rec := range c.batches {
		rec.Release()
	}
	c.sample = nil
	c.batches = nil
}
