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

// Package export writes Arrow tables as Parquet, CSV, JSON or Arrow IPC files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/magpierre/xlsxarrow/table"
)

type options struct {
	codec compress.Compression
	mem   memory.Allocator
}

// Option configures an export.
type Option func(*options)

// WithCompression sets the codec for Parquet and Arrow output. Arrow IPC
// files support only zstd and lz4; other codecs leave them uncompressed.
func WithCompression(codec compress.Compression) Option {
	return func(o *options) { o.codec = codec }
}

// WithAllocator sets the allocator used while writing.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) {
		if mem != nil {
			o.mem = mem
		}
	}
}

func newOptions(opts []Option) options {
	o := options{codec: compress.Codecs.Snappy, mem: memory.DefaultAllocator}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Write writes tbl to w in the given format.
func Write(w io.Writer, tbl arrow.Table, format Format, opts ...Option) error {
	switch format {
	case FormatParquet:
		return ToParquet(w, tbl, opts...)
	case FormatCSV:
		return ToCSV(w, tbl)
	case FormatJSON:
		return ToJSON(w, tbl)
	case FormatArrow:
		return ToArrow(w, tbl, opts...)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// WriteFile creates path and writes tbl to it in the given format.
func WriteFile(path string, tbl arrow.Table, format Format, opts ...Option) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", format, err)
	}
	return writeAndClose(file, tbl, format, opts...)
}

// writeAndClose writes tbl to wc and closes it. A failed close is reported
// even when the write succeeded.
func writeAndClose(wc io.WriteCloser, tbl arrow.Table, format Format, opts ...Option) (err error) {
	defer func() {
		if cerr := wc.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close %s file: %w", format, cerr))
		}
	}()

	return Write(wc, tbl, format, opts...)
}

// ToParquet writes tbl as a Parquet file with the Arrow schema embedded.
func ToParquet(w io.Writer, tbl arrow.Table, opts ...Option) error {
	o := newOptions(opts)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(o.codec),
		parquet.WithAllocator(o.mem))
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
		pqarrow.WithAllocator(o.mem))

	writer, err := pqarrow.NewFileWriter(tbl.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	chunkSize := max(tbl.NumRows(), 1)
	if err := writer.WriteTable(tbl, chunkSize); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write table to parquet: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// ToArrow writes tbl as an Arrow IPC file.
func ToArrow(w io.Writer, tbl arrow.Table, opts ...Option) error {
	o := newOptions(opts)

	ipcOpts := []ipc.Option{ipc.WithSchema(tbl.Schema()), ipc.WithAllocator(o.mem)}
	switch o.codec {
	case compress.Codecs.Zstd:
		ipcOpts = append(ipcOpts, ipc.WithZstd())
	case compress.Codecs.Lz4Raw:
		ipcOpts = append(ipcOpts, ipc.WithLZ4())
	}

	writer, err := ipc.NewFileWriter(w, ipcOpts...)
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}

	tr := array.NewTableReader(tbl, 0)
	defer tr.Release()

	for tr.Next() {
		if err := writer.Write(tr.Record()); err != nil {
			_ = writer.Close()
			return fmt.Errorf("failed to write arrow record: %w", err)
		}
	}
	if tr.Err() != nil {
		_ = writer.Close()
		return fmt.Errorf("error reading table: %w", tr.Err())
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close arrow writer: %w", err)
	}
	return nil
}

// ToCSV writes a header line of column names followed by one line per row.
// Nulls are written as empty fields.
func ToCSV(w io.Writer, tbl arrow.Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(table.ColumnNames(tbl.Schema())); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	tr := array.NewTableReader(tbl, 0)
	defer tr.Release()

	row := make([]string, tbl.NumCols())
	for tr.Next() {
		rec := tr.Record()
		for r := 0; r < int(rec.NumRows()); r++ {
			for c, col := range rec.Columns() {
				row[c] = table.FormatValue(col, r)
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}
	if tr.Err() != nil {
		return fmt.Errorf("error reading table: %w", tr.Err())
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// ToJSON writes the rows as an indented JSON array of objects keyed by
// column name.
func ToJSON(w io.Writer, tbl arrow.Table) error {
	tr := array.NewTableReader(tbl, 0)
	defer tr.Release()

	names := table.ColumnNames(tbl.Schema())
	records := make([]map[string]any, 0, tbl.NumRows())

	for tr.Next() {
		rec := tr.Record()
		for r := 0; r < int(rec.NumRows()); r++ {
			record := make(map[string]any, len(names))
			for c, col := range rec.Columns() {
				record[names[c]] = table.TypedValue(col, r)
			}
			records = append(records, record)
		}
	}
	if tr.Err() != nil {
		return fmt.Errorf("error reading table: %w", tr.Err())
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
