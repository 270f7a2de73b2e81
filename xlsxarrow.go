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

// Package xlsxarrow converts a sheet of an XLSX workbook into an Arrow table.
//
// The first row of the sheet holds column names and the second row decides
// the column types:
//
//	tbl, err := xlsxarrow.ConvertFile("sales.xlsx", sheet.SheetName("2024"))
//	if err != nil {
//		return err
//	}
//	defer tbl.Release()
package xlsxarrow

import (
	"io"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/magpierre/xlsxarrow/convert"
	"github.com/magpierre/xlsxarrow/sheet"
	"github.com/magpierre/xlsxarrow/xlsx"
)

type options struct {
	batchSize int
	mem       memory.Allocator
	logger    *slog.Logger
	password  string
}

// Option configures a conversion.
type Option func(*options)

// WithBatchSize sets the maximum rows read per batch.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithAllocator sets the allocator for all Arrow memory of the conversion.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.mem = mem }
}

// WithLogger sets the logger for debug events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithPassword opens an encrypted workbook.
func WithPassword(password string) Option {
	return func(o *options) { o.password = password }
}

func apply(opts []Option) ([]xlsx.Option, []convert.Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return []xlsx.Option{
			xlsx.WithAllocator(o.mem),
			xlsx.WithLogger(o.logger),
			xlsx.WithPassword(o.password),
		}, []convert.Option{
			convert.WithBatchSize(o.batchSize),
			convert.WithAllocator(o.mem),
			convert.WithLogger(o.logger),
		}
}

// Convert reads the workbook from r and converts the sheet chosen by sel.
// The caller must release the returned table.
func Convert(r io.Reader, sel sheet.Selector, opts ...Option) (arrow.Table, error) {
	readerOpts, convertOpts := apply(opts)

	src, err := xlsx.Open(r, readerOpts...)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return convert.Convert(src, sel, convertOpts...)
}

// ConvertFile converts the sheet chosen by sel from the workbook at path.
// The caller must release the returned table.
func ConvertFile(path string, sel sheet.Selector, opts ...Option) (arrow.Table, error) {
	readerOpts, convertOpts := apply(opts)

	src, err := xlsx.OpenFile(path, readerOpts...)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return convert.Convert(src, sel, convertOpts...)
}

// SheetTitles lists the sheets of the workbook at path.
func SheetTitles(path string, opts ...Option) ([]string, error) {
	readerOpts, _ := apply(opts)

	src, err := xlsx.OpenFile(path, readerOpts...)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return src.SheetTitles()
}
