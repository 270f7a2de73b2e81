package celltype

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/xlsxarrow/sheet"
)

func TestFieldType(t *testing.T) {
	tests := []struct {
		typ    sheet.DeclaredType
		isDate bool
		want   arrow.DataType
	}{
		{sheet.TypeNumber, false, arrow.PrimitiveTypes.Float64},
		{sheet.TypeNumber, true, arrow.FixedWidthTypes.Date32},
		{sheet.TypeSharedString, false, arrow.BinaryTypes.String},
		{sheet.TypeInlineString, false, arrow.BinaryTypes.String},
		{sheet.TypeFormulaString, false, arrow.BinaryTypes.String},
		{sheet.TypeError, false, arrow.BinaryTypes.String},
		{sheet.TypeBoolean, false, arrow.FixedWidthTypes.Boolean},
		{sheet.TypeDate, false, arrow.FixedWidthTypes.Date32},
		{sheet.TypeEmpty, false, arrow.BinaryTypes.String},
		// the date flag is ignored for non-numeric cells
		{sheet.TypeSharedString, true, arrow.BinaryTypes.String},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			got, err := FieldType(tt.typ, tt.isDate)
			require.NoError(t, err)
			assert.True(t, arrow.TypeEqual(tt.want, got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestFieldTypeUnmapped(t *testing.T) {
	_, err := FieldType(sheet.DeclaredType(99), false)
	assert.ErrorIs(t, err, sheet.ErrUnmappedType)

	_, err = Extract(sheet.NewCell(2, 1, sheet.DeclaredType(99), "x"))
	assert.ErrorIs(t, err, sheet.ErrUnmappedType)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		cell sheet.Cell
		want any
	}{
		{"number", sheet.NewCell(2, 1, sheet.TypeNumber, "10.5"), 10.5},
		{"date formatted number", sheet.NewCell(2, 1, sheet.TypeNumber, "45000.75", sheet.WithDateFormat(true)), uint32(45000)},
		{"shared string", sheet.NewCell(2, 1, sheet.TypeSharedString, "abc"), "abc"},
		{"inline string", sheet.NewCell(2, 1, sheet.TypeInlineString, "def"), "def"},
		{"formula string", sheet.NewCell(2, 1, sheet.TypeFormulaString, "ghi"), "ghi"},
		{"error", sheet.NewCell(2, 1, sheet.TypeError, "#DIV/0!"), "#DIV/0!"},
		{"empty", sheet.NewCell(2, 1, sheet.TypeEmpty, ""), ""},
		{"boolean", sheet.NewCell(2, 1, sheet.TypeBoolean, "0"), false},
		{"date", sheet.NewCell(2, 1, sheet.TypeDate, "2024-01-02"), uint32(45293)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.cell)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSingleElementArray(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	arr, err := NewSingleElementArray(mem, 10.5, arrow.PrimitiveTypes.Float64)
	require.NoError(t, err)
	assert.Equal(t, 1, arr.Len())
	assert.Equal(t, 10.5, arr.(*array.Float64).Value(0))
	arr.Release()

	arr, err = NewSingleElementArray(mem, uint32(45293), arrow.FixedWidthTypes.Date32)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", arr.(*array.Date32).Value(0).ToTime().Format("2006-01-02"))
	arr.Release()

	_, err = NewSingleElementArray(mem, "oops", arrow.PrimitiveTypes.Float64)
	assert.ErrorIs(t, err, sheet.ErrTypeMismatch)

	_, err = NewSingleElementArray(mem, int64(1), arrow.PrimitiveTypes.Int64)
	assert.ErrorIs(t, err, sheet.ErrUnmappedType)
}

func TestSerialToDate32(t *testing.T) {
	assert.Equal(t, arrow.Date32(0), SerialToDate32(sheet.UnixEpochSerial))
	assert.Equal(t, arrow.Date32(-1), SerialToDate32(sheet.UnixEpochSerial-1))
}

func TestBatchBuilder(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "paid", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
	}, nil)

	bb := NewBatchBuilder(mem, schema)
	defer bb.Release()

	// complete row
	require.NoError(t, bb.Append(sheet.NewCell(3, 1, sheet.TypeSharedString, "a")))
	require.NoError(t, bb.Append(sheet.NewCell(3, 2, sheet.TypeNumber, "1.5")))
	require.NoError(t, bb.Append(sheet.NewCell(3, 3, sheet.TypeBoolean, "1")))
	bb.EndRow()

	// short row, an unreadable number and an extra column
	require.NoError(t, bb.Append(sheet.NewCell(4, 1, sheet.TypeEmpty, "")))
	require.NoError(t, bb.Append(sheet.NewCell(4, 2, sheet.TypeSharedString, "n/a")))
	require.NoError(t, bb.Append(sheet.NewCell(4, 4, sheet.TypeNumber, "9")))
	bb.EndRow()

	assert.Equal(t, 2, bb.Rows())
	assert.Equal(t, 2, bb.Skipped)

	rec := bb.NewRecord()
	defer rec.Release()

	require.Equal(t, int64(2), rec.NumRows())
	names := rec.Column(0).(*array.String)
	assert.Equal(t, "a", names.Value(0))
	assert.Equal(t, "", names.Value(1))
	assert.False(t, names.IsNull(1))

	amounts := rec.Column(1).(*array.Float64)
	assert.Equal(t, 1.5, amounts.Value(0))
	assert.True(t, amounts.IsNull(1))

	paid := rec.Column(2).(*array.Boolean)
	assert.True(t, paid.Value(0))
	assert.True(t, paid.IsNull(1))
}
