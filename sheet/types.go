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

// Package sheet defines the cell model and the streaming source contract
// consumed by the spreadsheet to Arrow converter.
package sheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DeclaredType is the type tag a spreadsheet cell carries.
type DeclaredType int

const (
	// TypeEmpty is a cell with no stored value.
	TypeEmpty DeclaredType = iota
	// TypeBoolean is a TRUE/FALSE cell.
	TypeBoolean
	// TypeDate is an ISO 8601 date cell.
	TypeDate
	// TypeError is a formula error such as #DIV/0!.
	TypeError
	// TypeInlineString is a string stored in the cell itself.
	TypeInlineString
	// TypeNumber is a numeric cell.
	TypeNumber
	// TypeSharedString is a string stored in the shared string table.
	TypeSharedString
	// TypeFormulaString is the cached string result of a formula.
	TypeFormulaString
)

// String returns the string representation of a DeclaredType.
func (t DeclaredType) String() string {
	switch t {
	case TypeEmpty:
		return "Empty"
	case TypeBoolean:
		return "Boolean"
	case TypeDate:
		return "Date"
	case TypeError:
		return "Error"
	case TypeInlineString:
		return "InlineString"
	case TypeNumber:
		return "Number"
	case TypeSharedString:
		return "SharedString"
	case TypeFormulaString:
		return "FormulaString"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

const (
	// UnixEpochSerial is the 1900-system serial day number of 1970-01-01.
	UnixEpochSerial = 25569

	// date1904Offset converts a 1904-system serial to the 1900 system.
	date1904Offset = 1462
)

// dateLayouts are tried in order when reading a TypeDate cell.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Cell is an immutable observation at a 1-based (row, column) coordinate.
// The raw value is interpreted through one of the typed accessors.
type Cell struct {
	row        int
	col        int
	typ        DeclaredType
	raw        string
	dateFormat bool
	date1904   bool
}

// CellOption configures optional attributes of a Cell.
type CellOption func(*Cell)

// WithDateFormat marks a numeric cell whose display format is a date.
func WithDateFormat(isDate bool) CellOption {
	return func(c *Cell) { c.dateFormat = isDate }
}

// WithDate1904 marks a cell read from a workbook using the 1904 date system.
func WithDate1904(is1904 bool) CellOption {
	return func(c *Cell) { c.date1904 = is1904 }
}

// NewCell creates a cell. Row and column are 1-based.
func NewCell(row, col int, typ DeclaredType, raw string, opts ...CellOption) Cell {
	c := Cell{row: row, col: col, typ: typ, raw: raw}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Row returns the 1-based row index.
func (c Cell) Row() int { return c.row }

// Column returns the 1-based column index.
func (c Cell) Column() int { return c.col }

// Type returns the declared type.
func (c Cell) Type() DeclaredType { return c.typ }

// IsDateFormat reports whether a numeric cell is formatted as a date.
func (c Cell) IsDateFormat() bool { return c.dateFormat }

// Raw returns the stored text of the cell.
func (c Cell) Raw() string { return c.raw }

// String returns the cell value as text. It never fails: every declared
// type has a textual form.
func (c Cell) String() string {
	if c.typ == TypeBoolean {
		if b, err := strconv.ParseBool(strings.TrimSpace(c.raw)); err == nil {
			if b {
				return "TRUE"
			}
			return "FALSE"
		}
	}
	return c.raw
}

// Float returns the numeric value of the cell.
func (c Cell) Float() (float64, error) {
	switch c.typ {
	case TypeEmpty:
		return 0, c.mismatch("float64")
	case TypeBoolean:
		b, err := c.Bool()
		if err != nil {
			return 0, err
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case TypeDate:
		t, err := c.time()
		if err != nil {
			return 0, err
		}
		secs := float64(t.Unix()) + float64(t.Nanosecond())/1e9
		return secs/86400 + UnixEpochSerial, nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(c.raw), 64)
	if err != nil {
		return 0, c.mismatch("float64")
	}
	if c.date1904 && c.dateFormat {
		v += date1904Offset
	}
	return v, nil
}

// Bool returns the boolean value of the cell. Numbers are true when non-zero.
func (c Cell) Bool() (bool, error) {
	raw := strings.TrimSpace(c.raw)
	if c.typ == TypeNumber {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return false, c.mismatch("bool")
		}
		return v != 0, nil
	}

	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, c.mismatch("bool")
	}
	return b, nil
}

// Uint returns the cell as an unsigned whole number. For dates and
// date-formatted numbers this is the 1900-system serial day number.
func (c Cell) Uint() (uint32, error) {
	var v float64
	switch c.typ {
	case TypeEmpty:
		return 0, c.mismatch("uint32")
	case TypeDate:
		t, err := c.time()
		if err != nil {
			return 0, err
		}
		days := math.Floor(float64(t.Unix()) / 86400)
		v = days + UnixEpochSerial
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(c.raw), 64)
		if err != nil {
			return 0, c.mismatch("uint32")
		}
		v = math.Floor(f)
		if c.date1904 && c.dateFormat {
			v += date1904Offset
		}
	}

	if v < 0 || v > math.MaxUint32 {
		return 0, c.mismatch("uint32")
	}
	return uint32(v), nil
}

func (c Cell) time() (time.Time, error) {
	raw := strings.TrimSpace(c.raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, c.mismatch("date")
}

func (c Cell) mismatch(want string) error {
	return fmt.Errorf("%w: cell (%d,%d) of type %s holds %q, not a %s",
		ErrTypeMismatch, c.row, c.col, c.typ, c.raw, want)
}
