package convert

import (
	"errors"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/xlsxarrow/celltype"
	"github.com/magpierre/xlsxarrow/sheet"
)

// dateNum is a number cell formatted as a date.
type dateNum float64

// cellsOf builds the cells of one row from Go values.
func cellsOf(row int, vals ...any) []sheet.Cell {
	cells := make([]sheet.Cell, 0, len(vals))
	for i, v := range vals {
		col := i + 1
		switch v := v.(type) {
		case nil:
			cells = append(cells, sheet.NewCell(row, col, sheet.TypeEmpty, ""))
		case string:
			cells = append(cells, sheet.NewCell(row, col, sheet.TypeSharedString, v))
		case float64:
			cells = append(cells, sheet.NewCell(row, col, sheet.TypeNumber, fmt.Sprint(v)))
		case dateNum:
			cells = append(cells, sheet.NewCell(row, col, sheet.TypeNumber, fmt.Sprint(float64(v)), sheet.WithDateFormat(true)))
		case bool:
			raw := "0"
			if v {
				raw = "1"
			}
			cells = append(cells, sheet.NewCell(row, col, sheet.TypeBoolean, raw))
		case sheet.Cell:
			cells = append(cells, v)
		default:
			panic(fmt.Sprintf("unsupported test value %T", v))
		}
	}
	return cells
}

// rows flattens rows given as value lists, numbering them from 1.
func rows(vals ...[]any) []sheet.Cell {
	var cells []sheet.Cell
	for i, r := range vals {
		cells = append(cells, cellsOf(i+1, r...)...)
	}
	return cells
}

// fakeSource is an in-memory sheet.Source.
type fakeSource struct {
	mem    memory.Allocator
	titles []string
	sheets map[string][]sheet.Cell

	cells []sheet.Cell
	pos   int

	begun    string
	ended    bool
	batchErr error
	stuck    bool
}

func newFakeSource(mem memory.Allocator, cells []sheet.Cell) *fakeSource {
	return &fakeSource{
		mem:    mem,
		titles: []string{"Sheet1"},
		sheets: map[string][]sheet.Cell{"Sheet1": cells},
	}
}

func (f *fakeSource) SheetTitles() ([]string, error) { return f.titles, nil }

func (f *fakeSource) BeginSheet(title string) error {
	cells, ok := f.sheets[title]
	if !ok {
		return sheet.ErrSheetNotFound
	}
	f.begun = title
	f.cells = cells
	f.pos = 0
	return nil
}

func (f *fakeSource) EndSheet() error {
	f.ended = true
	return nil
}

func (f *fakeSource) HasCell() bool { return f.pos < len(f.cells) }

func (f *fakeSource) ReadCell() (sheet.Cell, error) {
	if !f.HasCell() {
		return sheet.Cell{}, sheet.ErrNoCell
	}
	c := f.cells[f.pos]
	f.pos++
	return c, nil
}

func (f *fakeSource) ReadBatch(schema *arrow.Schema, maxRows int) (arrow.Record, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	bb := celltype.NewBatchBuilder(f.mem, schema)
	defer bb.Release()

	if f.stuck {
		return bb.NewRecord(), nil
	}

	for bb.Rows() < maxRows && f.HasCell() {
		row := f.cells[f.pos].Row()
		for f.HasCell() && f.cells[f.pos].Row() == row {
			if err := bb.Append(f.cells[f.pos]); err != nil {
				return nil, err
			}
			f.pos++
		}
		bb.EndRow()
	}
	return bb.NewRecord(), nil
}

func column[T any](t *testing.T, tbl arrow.Table, i int, value func(arrow.Array, int) T) []T {
	t.Helper()
	var out []T
	for _, chunk := range tbl.Column(i).Data().Chunks() {
		for j := 0; j < chunk.Len(); j++ {
			out = append(out, value(chunk, j))
		}
	}
	return out
}

func stringAt(a arrow.Array, i int) string   { return a.(*array.String).Value(i) }
func floatAt(a arrow.Array, i int) float64   { return a.(*array.Float64).Value(i) }
func dateAt(a arrow.Array, i int) arrow.Date32 { return a.(*array.Date32).Value(i) }

func TestConvertScenario(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	src := newFakeSource(mem, rows(
		[]any{"id", "amount"},
		[]any{"1", 10.5},
		[]any{"2", 20.25},
	))

	tbl, err := Convert(src, sheet.FirstSheet(), WithAllocator(mem))
	require.NoError(t, err)
	defer tbl.Release()

	want := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
	assert.True(t, want.Equal(tbl.Schema()), "schema: %s", tbl.Schema())
	assert.Equal(t, int64(2), tbl.NumRows())
	assert.Equal(t, []string{"1", "2"}, column(t, tbl, 0, stringAt))
	assert.Equal(t, []float64{10.5, 20.25}, column(t, tbl, 1, floatAt))
	assert.Equal(t, "Sheet1", src.begun)
	assert.True(t, src.ended)
}

func TestConvertDateFormattedNumber(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	src := newFakeSource(mem, rows(
		[]any{"when", "qty"},
		[]any{dateNum(45000.75), 3.0},
		[]any{dateNum(45001.25), 4.0},
	))

	tbl, err := Convert(src, sheet.FirstSheet(), WithAllocator(mem))
	require.NoError(t, err)
	defer tbl.Release()

	assert.True(t, arrow.TypeEqual(arrow.FixedWidthTypes.Date32, tbl.Schema().Field(0).Type))
	assert.Equal(t,
		[]arrow.Date32{arrow.Date32(45000 - sheet.UnixEpochSerial), arrow.Date32(45001 - sheet.UnixEpochSerial)},
		column(t, tbl, 0, dateAt))
}

func TestConvertHeaderOnly(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	src := newFakeSource(mem, rows([]any{"id", "amount", "note"}))

	tbl, err := Convert(src, sheet.FirstSheet(), WithAllocator(mem))
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(0), tbl.NumRows())
	require.Equal(t, int64(3), tbl.NumCols())
	for i, name := range []string{"id", "amount", "note"} {
		f := tbl.Schema().Field(i)
		assert.Equal(t, name, f.Name)
		assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, f.Type))
	}
	assert.True(t, src.ended)
}

func TestConvertBatching(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	data := [][]any{{"n", "label"}}
	for i := 0; i < 25; i++ {
		data = append(data, []any{float64(i), fmt.Sprintf("row-%d", i)})
	}
	src := newFakeSource(mem, rows(data...))

	tbl, err := Convert(src, sheet.FirstSheet(), WithAllocator(mem), WithBatchSize(10))
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(25), tbl.NumRows())

	var lens []int
	for _, chunk := range tbl.Column(0).Data().Chunks() {
		lens = append(lens, chunk.Len())
	}
	assert.Equal(t, []int{1, 10, 10, 4}, lens)

	nums := column(t, tbl, 0, floatAt)
	labels := column(t, tbl, 1, stringAt)
	for i := 0; i < 25; i++ {
		assert.Equal(t, float64(i), nums[i])
		assert.Equal(t, fmt.Sprintf("row-%d", i), labels[i])
	}
}

func TestConvertColumnOrder(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	src := newFakeSource(mem, rows(
		[]any{"e", "d", "c", "b", "a"},
		[]any{"x", 1.0, true, nil, "y"},
		[]any{"z", 2.0, false, "w", "v"},
	))

	tbl, err := Convert(src, sheet.FirstSheet(), WithAllocator(mem))
	require.NoError(t, err)
	defer tbl.Release()

	var names []string
	for _, f := range tbl.Schema().Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, names)
	assert.True(t, arrow.TypeEqual(arrow.FixedWidthTypes.Boolean, tbl.Schema().Field(2).Type))
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, tbl.Schema().Field(3).Type))
	assert.Equal(t, []string{"", "w"}, column(t, tbl, 3, stringAt))
}

func TestConvertIdempotent(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	cells := rows(
		[]any{"id", "amount", "ok"},
		[]any{"a", 1.5, true},
		[]any{"b", 2.5, false},
		[]any{"c", 3.5, true},
	)

	first, err := Convert(newFakeSource(mem, cells), sheet.FirstSheet(), WithAllocator(mem), WithBatchSize(1))
	require.NoError(t, err)
	defer first.Release()

	second, err := Convert(newFakeSource(mem, cells), sheet.FirstSheet(), WithAllocator(mem), WithBatchSize(1))
	require.NoError(t, err)
	defer second.Release()

	assert.True(t, first.Schema().Equal(second.Schema()))
	assert.True(t, array.TableEqual(first, second))
}

func TestConvertSheetSelection(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	newSource := func() *fakeSource {
		src := newFakeSource(mem, rows([]any{"a"}, []any{"first"}))
		src.titles = []string{"Sheet1", "Other"}
		src.sheets["Other"] = rows([]any{"b"}, []any{"second"})
		return src
	}

	for _, sel := range []sheet.Selector{sheet.SheetIndex(1), sheet.SheetName("Other")} {
		t.Run(sel.String(), func(t *testing.T) {
			src := newSource()
			tbl, err := Convert(src, sel, WithAllocator(mem))
			require.NoError(t, err)
			defer tbl.Release()

			assert.Equal(t, "Other", src.begun)
			assert.Equal(t, []string{"second"}, column(t, tbl, 0, stringAt))
		})
	}

	for _, sel := range []sheet.Selector{sheet.SheetIndex(2), sheet.SheetIndex(-1), sheet.SheetName("Missing")} {
		t.Run("missing "+sel.String(), func(t *testing.T) {
			src := newSource()
			tbl, err := Convert(src, sel, WithAllocator(mem))
			assert.ErrorIs(t, err, sheet.ErrSheetNotFound)
			assert.Nil(t, tbl)
			assert.Empty(t, src.begun)
		})
	}
}

func TestConvertMalformed(t *testing.T) {
	tests := []struct {
		name    string
		cells   []sheet.Cell
		wantErr error
	}{
		{
			name:    "empty sheet",
			cells:   nil,
			wantErr: sheet.ErrMissingHeader,
		},
		{
			name:    "data before header",
			cells:   cellsOf(3, "x", "y"),
			wantErr: sheet.ErrMissingHeader,
		},
		{
			name:    "sample row shorter than header",
			cells:   append(rows([]any{"a", "b", "c"}, []any{"x", "y"}), cellsOf(3, "p", "q", "r")...),
			wantErr: sheet.ErrIncompleteSampleRow,
		},
		{
			name:    "sheet ends inside sample row",
			cells:   rows([]any{"a", "b", "c"}, []any{"x"}),
			wantErr: sheet.ErrIncompleteSampleRow,
		},
		{
			name:    "missing sample row",
			cells:   append(cellsOf(1, "a", "b"), cellsOf(3, "x", "y")...),
			wantErr: sheet.ErrIncompleteSampleRow,
		},
		{
			name: "sample row skips a column",
			cells: append(cellsOf(1, "a", "b", "c"),
				sheet.NewCell(2, 1, sheet.TypeSharedString, "x"),
				sheet.NewCell(2, 3, sheet.TypeSharedString, "z")),
			wantErr: sheet.ErrIncompleteSampleRow,
		},
		{
			name: "sample cell beyond header",
			cells: append(cellsOf(1, "a", "b"),
				sheet.NewCell(2, 1, sheet.TypeSharedString, "x"),
				sheet.NewCell(2, 5, sheet.TypeSharedString, "z")),
			wantErr: sheet.ErrColumnOutOfRange,
		},
		{
			name:    "unmapped declared type",
			cells:   append(cellsOf(1, "a"), sheet.NewCell(2, 1, sheet.DeclaredType(99), "?")),
			wantErr: sheet.ErrUnmappedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			src := newFakeSource(mem, tt.cells)
			tbl, err := Convert(src, sheet.FirstSheet(), WithAllocator(mem))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, tbl)
			assert.True(t, src.ended, "sheet iteration must be ended on failure")
		})
	}
}

func TestConvertBatchErrorDiscardsBatches(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	boom := errors.New("disk on fire")
	src := newFakeSource(mem, rows(
		[]any{"id"},
		[]any{"1"},
		[]any{"2"},
	))
	src.batchErr = boom

	tbl, err := Convert(src, sheet.FirstSheet(), WithAllocator(mem))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, tbl)
	assert.True(t, src.ended)
}

func TestConvertFailsOnStalledSource(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	src := newFakeSource(mem, rows(
		[]any{"id"},
		[]any{"1"},
		[]any{"2"},
		[]any{"3"},
	))
	src.stuck = true

	tbl, err := Convert(src, sheet.FirstSheet(), WithAllocator(mem))
	assert.ErrorIs(t, err, sheet.ErrStalledSource)
	assert.Nil(t, tbl)
	assert.True(t, src.HasCell())
	assert.True(t, src.ended)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "HeaderRow", stateHeaderRow.String())
	assert.Equal(t, "Closed", stateClosed.String())
	assert.Equal(t, "Unknown(9)", state(9).String())
}
