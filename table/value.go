package table

import (
	"encoding/json"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

const dateLayout = "2006-01-02"

// FormatValue renders the value at pos as text. Nulls render as "".
func FormatValue(col arrow.Array, pos int) string {
	if col.IsNull(pos) {
		return ""
	}

	switch c := col.(type) {
	case *array.String:
		return c.Value(pos)
	case *array.LargeString:
		return c.Value(pos)
	case *array.Binary:
		return string(c.Value(pos))
	case *array.Boolean:
		return strconv.FormatBool(c.Value(pos))
	case *array.Float64:
		return strconv.FormatFloat(c.Value(pos), 'f', -1, 64)
	case *array.Float32:
		return strconv.FormatFloat(float64(c.Value(pos)), 'f', -1, 32)
	case *array.Date32:
		return c.Value(pos).ToTime().Format(dateLayout)
	case *array.Date64:
		return c.Value(pos).ToTime().Format(dateLayout)
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return c.Value(pos).ToTime(unit).Format("2006-01-02 15:04:05.999999999")
	case *array.Decimal128:
		return c.Value(pos).BigInt().String()
	default:
		return col.ValueStr(pos)
	}
}

// TypedValue returns the value at pos as a Go value suitable for JSON
// encoding. Dates become "YYYY-MM-DD" strings and nulls become nil.
func TypedValue(col arrow.Array, pos int) any {
	if col.IsNull(pos) {
		return nil
	}

	switch c := col.(type) {
	case *array.String:
		return c.Value(pos)
	case *array.Boolean:
		return c.Value(pos)
	case *array.Float64:
		return c.Value(pos)
	case *array.Float32:
		return c.Value(pos)
	case *array.Int8:
		return c.Value(pos)
	case *array.Int16:
		return c.Value(pos)
	case *array.Int32:
		return c.Value(pos)
	case *array.Int64:
		return c.Value(pos)
	case *array.Uint8:
		return c.Value(pos)
	case *array.Uint16:
		return c.Value(pos)
	case *array.Uint32:
		return c.Value(pos)
	case *array.Uint64:
		return c.Value(pos)
	case *array.Date32, *array.Date64, *array.Binary, *array.Decimal128:
		return FormatValue(col, pos)
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return c.Value(pos).ToTime(unit).Format("2006-01-02T15:04:05.999999999Z")
	case *array.Struct, *array.List:
		var v any
		if err := json.Unmarshal([]byte(col.ValueStr(pos)), &v); err == nil {
			return v
		}
		return col.ValueStr(pos)
	default:
		return FormatValue(col, pos)
	}
}

// appendValue copies the value at pos of col into a builder of the same type.
func appendValue(b array.Builder, col arrow.Array, pos int) {
	if col.IsNull(pos) {
		b.AppendNull()
		return
	}

	switch c := col.(type) {
	case *array.String:
		b.(*array.StringBuilder).Append(c.Value(pos))
	case *array.Boolean:
		b.(*array.BooleanBuilder).Append(c.Value(pos))
	case *array.Float64:
		b.(*array.Float64Builder).Append(c.Value(pos))
	case *array.Date32:
		b.(*array.Date32Builder).Append(c.Value(pos))
	case *array.Uint32:
		b.(*array.Uint32Builder).Append(c.Value(pos))
	case *array.Int64:
		b.(*array.Int64Builder).Append(c.Value(pos))
	case *array.Binary:
		b.(*array.BinaryBuilder).Append(c.Value(pos))
	case *array.Timestamp:
		b.(*array.TimestampBuilder).Append(c.Value(pos))
	default:
		if err := b.AppendValueFromString(col.ValueStr(pos)); err != nil {
			b.AppendNull()
		}
	}
}
