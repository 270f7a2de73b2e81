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

// Package table selects, filters and limits converted Arrow tables.
//
// Every function returns a new table reference that the caller must
// release, even when the result shares all data with the input.
package table

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Options holds the column selection, filter and row limit applied to a table.
type Options struct {
	// Columns to keep, in schema order. Empty keeps all columns.
	Columns []string
	// Predicate is a filter expression understood by Parse.
	Predicate string
	// Limit caps the number of rows. Values <= 0 mean no limit.
	Limit int64
}

// Apply filters tbl by the predicate, then selects columns and limits rows.
// The predicate may refer to columns that are not selected.
func Apply(mem memory.Allocator, tbl arrow.Table, opts Options) (arrow.Table, error) {
	q, err := Parse(opts.Predicate, ColumnNames(tbl.Schema()))
	if err != nil {
		return nil, err
	}

	filtered, err := Filter(mem, tbl, q)
	if err != nil {
		return nil, err
	}
	defer filtered.Release()

	selected, err := Select(filtered, opts.Columns)
	if err != nil {
		return nil, err
	}
	defer selected.Release()

	return Limit(selected, opts.Limit), nil
}

// ColumnNames returns the field names of schema in order.
func ColumnNames(schema *arrow.Schema) []string {
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	return names
}

// Select keeps the named columns in schema order. Names match
// case-insensitively. An empty list keeps every column.
func Select(tbl arrow.Table, columns []string) (arrow.Table, error) {
	if len(columns) == 0 {
		tbl.Retain()
		return tbl, nil
	}

	schema := tbl.Schema()
	byName := make(map[string]int, schema.NumFields())
	for i, f := range schema.Fields() {
		byName[strings.ToLower(f.Name)] = i
	}

	keep := make([]bool, schema.NumFields())
	for _, name := range columns {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		i, ok := byName[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
		}
		keep[i] = true
	}

	var indices []int
	for i, k := range keep {
		if k {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil, ErrNoColumns
	}

	fields := make([]arrow.Field, len(indices))
	cols := make([]arrow.Column, len(indices))
	for i, idx := range indices {
		fields[i] = schema.Field(idx)
		cols[i] = *tbl.Column(idx)
	}

	return array.NewTable(arrow.NewSchema(fields, nil), cols, tbl.NumRows()), nil
}

// Limit keeps the first n rows. Values <= 0 keep every row.
func Limit(tbl arrow.Table, n int64) arrow.Table {
	if n <= 0 || n >= tbl.NumRows() {
		tbl.Retain()
		return tbl
	}

	cols := make([]arrow.Column, tbl.NumCols())
	for i := range cols {
		col := tbl.Column(i)

		var (
			chunks []arrow.Array
			rows   int64
		)
		for _, chunk := range col.Data().Chunks() {
			if rows >= n {
				break
			}
			take := min(int64(chunk.Len()), n-rows)
			chunks = append(chunks, array.NewSlice(chunk, 0, take))
			rows += take
		}

		chunked := arrow.NewChunked(col.DataType(), chunks)
		for _, c := range chunks {
			c.Release()
		}
		cols[i] = *arrow.NewColumn(col.Field(), chunked)
		chunked.Release()
	}

	out := array.NewTable(tbl.Schema(), cols, n)
	for i := range cols {
		cols[i].Release()
	}
	return out
}

// Filter keeps the rows matched by q. A nil query keeps every row.
// Values are compared in their FormatValue form.
func Filter(mem memory.Allocator, tbl arrow.Table, q *Query) (arrow.Table, error) {
	if q == nil {
		tbl.Retain()
		return tbl, nil
	}

	tr := array.NewTableReader(tbl, 0)
	defer tr.Release()

	b := array.NewRecordBuilder(mem, tbl.Schema())
	defer b.Release()

	row := make([]string, tbl.NumCols())
	for tr.Next() {
		rec := tr.Record()
		for r := 0; r < int(rec.NumRows()); r++ {
			for c, col := range rec.Columns() {
				row[c] = FormatValue(col, r)
			}
			if !q.Match(row) {
				continue
			}
			for c, col := range rec.Columns() {
				appendValue(b.Field(c), col, r)
			}
		}
	}
	if err := tr.Err(); err != nil {
		return nil, fmt.Errorf("error reading table: %w", err)
	}

	rec := b.NewRecord()
	defer rec.Release()
	return array.NewTableFromRecords(tbl.Schema(), []arrow.Record{rec}), nil
}
