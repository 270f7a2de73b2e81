package celltype

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/magpierre/xlsxarrow/sheet"
)

// BatchBuilder assembles cells into a record for a frozen schema.
// Cells are placed by column index. Columns a row did not provide are
// filled with nulls when the row ends.
type BatchBuilder struct {
	b    *array.RecordBuilder
	rows int

	// Skipped counts cells that were ignored: beyond the schema width,
	// repeated within a row, or unreadable as the column type.
	Skipped int
}

// NewBatchBuilder creates a builder for schema. Release it when done.
func NewBatchBuilder(mem memory.Allocator, schema *arrow.Schema) *BatchBuilder {
	return &BatchBuilder{b: array.NewRecordBuilder(mem, schema)}
}

// Rows returns the number of completed rows.
func (bb *BatchBuilder) Rows() int { return bb.rows }

// Append adds a cell to the current row.
func (bb *BatchBuilder) Append(c sheet.Cell) error {
	idx := c.Column() - 1
	if idx < 0 || idx >= len(bb.b.Fields()) {
		bb.Skipped++
		return nil
	}

	fb := bb.b.Field(idx)
	if fb.Len() > bb.rows {
		bb.Skipped++
		return nil
	}

	ok, err := appendCell(fb, c)
	if err != nil {
		return err
	}
	if !ok {
		bb.Skipped++
	}
	return nil
}

// EndRow completes the current row, padding absent columns with nulls.
func (bb *BatchBuilder) EndRow() {
	for _, fb := range bb.b.Fields() {
		if fb.Len() <= bb.rows {
			fb.AppendNull()
		}
	}
	bb.rows++
}

// NewRecord returns the accumulated rows and resets the builder.
func (bb *BatchBuilder) NewRecord() arrow.Record {
	bb.rows = 0
	return bb.b.NewRecord()
}

// Release frees the underlying builders.
func (bb *BatchBuilder) Release() {
	bb.b.Release()
}

// appendCell appends c to a builder using the accessor matching the
// builder's type. It reports false when the value was stored as null
// because it cannot be read as that type. Empty cells are null in every
// column except strings, where they are the empty string.
func appendCell(builder array.Builder, c sheet.Cell) (bool, error) {
	if c.Type() == sheet.TypeEmpty {
		if b, ok := builder.(*array.StringBuilder); ok {
			b.Append(c.String())
		} else {
			builder.AppendNull()
		}
		return true, nil
	}

	switch b := builder.(type) {
	case *array.Float64Builder:
		v, err := c.Float()
		if err != nil {
			b.AppendNull()
			return false, nil
		}
		b.Append(v)
	case *array.StringBuilder:
		b.Append(c.String())
	case *array.BooleanBuilder:
		v, err := c.Bool()
		if err != nil {
			b.AppendNull()
			return false, nil
		}
		b.Append(v)
	case *array.Date32Builder:
		v, err := c.Uint()
		if err != nil {
			b.AppendNull()
			return false, nil
		}
		b.Append(SerialToDate32(v))
	case *array.Uint32Builder:
		v, err := c.Uint()
		if err != nil {
			b.AppendNull()
			return false, nil
		}
		b.Append(v)
	default:
		return false, unmappedBuilder(builder)
	}
	return true, nil
}
