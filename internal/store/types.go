// Package store implements the columnar store: an immutable, in-memory,
// Arrow-style schema plus per-column typed arrays, optional validity
// bitmaps, and a row count. Once Frozen, a Batch is shared read-only
// across every query that runs against it.
package store

import "fmt"

// LogicalType is one of the closed set of column types the engine supports.
type LogicalType int

const (
	Int8 LogicalType = iota
	Int16
	Int32
	Int64
	Float32Type
	Float64Type
	Decimal128Type
	BoolType
	Utf8
	DateType
	TimestampType
	DictionaryType
)

func (t LogicalType) String() string {
	switch t {
	case Int8:
		return "Int8"
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Float32Type:
		return "Float32"
	case Float64Type:
		return "Float64"
	case Decimal128Type:
		return "Decimal128"
	case BoolType:
		return "Bool"
	case Utf8:
		return "Utf8"
	case DateType:
		return "Date"
	case TimestampType:
		return "Timestamp"
	case DictionaryType:
		return "Dictionary"
	default:
		return fmt.Sprintf("LogicalType(%d)", int(t))
	}
}

// IsNumeric reports whether the type participates in NumericCmp / the
// numeric aggregators (Sum/Avg/Min/Max).
func (t LogicalType) IsNumeric() bool {
	switch t {
	case Int8, Int16, Int32, Int64, Float32Type, Float64Type, Decimal128Type:
		return true
	default:
		return false
	}
}

// TimeUnit is the resolution of a Timestamp column.
type TimeUnit int

const (
	Second TimeUnit = iota
	Millisecond
	Microsecond
	Nanosecond
)

func (u TimeUnit) String() string {
	switch u {
	case Second:
		return "s"
	case Millisecond:
		return "ms"
	case Microsecond:
		return "us"
	case Nanosecond:
		return "ns"
	default:
		return "?"
	}
}

// Field describes one schema column: a unique name, its logical type, and
// whether it may contain nulls.
type Field struct {
	Name       string
	Type       LogicalType
	Nullable   bool
	DictValue  LogicalType // value type for DictionaryType fields (only Utf8 supported)
	TimeUnit   TimeUnit    // unit for TimestampType fields
	DecScale   int32       // scale for Decimal128Type fields
}
