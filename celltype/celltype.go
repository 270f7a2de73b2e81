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

// Package celltype maps declared spreadsheet cell types to Arrow column
// types and moves cell values into Arrow arrays.
package celltype

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/magpierre/xlsxarrow/sheet"
)

// FieldType returns the Arrow type of a column whose sample cell has the
// declared type t. isDate only matters for numbers.
func FieldType(t sheet.DeclaredType, isDate bool) (arrow.DataType, error) {
	switch t {
	case sheet.TypeNumber:
		if isDate {
			return arrow.FixedWidthTypes.Date32, nil
		}
		return arrow.PrimitiveTypes.Float64, nil
	case sheet.TypeSharedString,
		sheet.TypeInlineString,
		sheet.TypeFormulaString,
		sheet.TypeError,
		sheet.TypeEmpty:
		return arrow.BinaryTypes.String, nil
	case sheet.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case sheet.TypeDate:
		return arrow.FixedWidthTypes.Date32, nil
	default:
		return nil, fmt.Errorf("%w: %s", sheet.ErrUnmappedType, t)
	}
}

// Extract returns the scalar held by c: float64 for numbers, uint32 serial
// days for dates and date-formatted numbers, bool for booleans and string
// for everything else.
func Extract(c sheet.Cell) (any, error) {
	switch c.Type() {
	case sheet.TypeNumber:
		if c.IsDateFormat() {
			return c.Uint()
		}
		return c.Float()
	case sheet.TypeSharedString,
		sheet.TypeInlineString,
		sheet.TypeFormulaString,
		sheet.TypeError,
		sheet.TypeEmpty:
		return c.String(), nil
	case sheet.TypeBoolean:
		return c.Bool()
	case sheet.TypeDate:
		return c.Uint()
	default:
		return nil, fmt.Errorf("%w: %s", sheet.ErrUnmappedType, c.Type())
	}
}

// SerialToDate32 converts a 1900-system serial day number to days since
// the Unix epoch.
func SerialToDate32(serial uint32) arrow.Date32 {
	return arrow.Date32(int64(serial) - sheet.UnixEpochSerial)
}

// NewSingleElementArray builds a length-1 array of type dt holding v.
// The caller owns the returned array and must release it.
func NewSingleElementArray(mem memory.Allocator, v any, dt arrow.DataType) (arrow.Array, error) {
	builder := array.NewBuilder(mem, dt)
	defer builder.Release()

	if err := appendScalar(builder, v); err != nil {
		return nil, err
	}
	return builder.NewArray(), nil
}

// appendScalar appends one extracted scalar to a builder of the matching type.
func appendScalar(builder array.Builder, v any) error {
	switch b := builder.(type) {
	case *array.Float64Builder:
		f, ok := v.(float64)
		if !ok {
			return scalarMismatch(v, b.Type())
		}
		b.Append(f)
	case *array.StringBuilder:
		s, ok := v.(string)
		if !ok {
			return scalarMismatch(v, b.Type())
		}
		b.Append(s)
	case *array.BooleanBuilder:
		bl, ok := v.(bool)
		if !ok {
			return scalarMismatch(v, b.Type())
		}
		b.Append(bl)
	case *array.Date32Builder:
		u, ok := v.(uint32)
		if !ok {
			return scalarMismatch(v, b.Type())
		}
		b.Append(SerialToDate32(u))
	case *array.Uint32Builder:
		u, ok := v.(uint32)
		if !ok {
			return scalarMismatch(v, b.Type())
		}
		b.Append(u)
	default:
		return unmappedBuilder(builder)
	}
	return nil
}

func unmappedBuilder(b array.Builder) error {
	return fmt.Errorf("%w: no builder for %s", sheet.ErrUnmappedType, b.Type())
}

func scalarMismatch(v any, dt arrow.DataType) error {
	return fmt.Errorf("%w: %T value for %s column", sheet.ErrTypeMismatch, v, dt)
}
