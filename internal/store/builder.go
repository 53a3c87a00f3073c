package store

import (
	"go.uber.org/multierr"

	"colq/internal/bitmap"
	"colq/internal/colqerr"
)

// FieldData is what an external builder hands the store for one column:
// the field descriptor, exactly one populated values slice matching
// Field.Type, and an optional validity mask (nil means the column has no
// nulls at all).
//
// Ingestion from arbitrary user objects into these slices — a
// reflection-style "record builder" layer — is explicitly out of scope;
// FieldData is the boundary the engine validates against.
type FieldData struct {
	Field Field

	Int8Values        []int8
	Int16Values       []int16
	Int32Values       []int32
	Int64Values       []int64
	Float32Values     []float32
	Float64Values     []float64
	DecimalValues     []Decimal128
	BoolValues        []bool
	StringValues      []string
	DateValues        []int32
	TimestampValues   []int64
	DictionaryIndices []int32
	DictionaryValues  []string

	// Validity is optional; when non-nil its length must equal the row
	// count and it marks which rows are non-null (true == valid).
	Validity []bool
}

func (fd FieldData) length() int {
	switch fd.Field.Type {
	case Int8:
		return len(fd.Int8Values)
	case Int16:
		return len(fd.Int16Values)
	case Int32:
		return len(fd.Int32Values)
	case Int64:
		return len(fd.Int64Values)
	case Float32Type:
		return len(fd.Float32Values)
	case Float64Type:
		return len(fd.Float64Values)
	case Decimal128Type:
		return len(fd.DecimalValues)
	case BoolType:
		return len(fd.BoolValues)
	case Utf8:
		return len(fd.StringValues)
	case DateType:
		return len(fd.DateValues)
	case TimestampType:
		return len(fd.TimestampValues)
	case DictionaryType:
		return len(fd.DictionaryIndices)
	default:
		return 0
	}
}

// Builder accumulates FieldData entries and Freezes them into an
// immutable Batch, performing the structural validation the store
// boundary requires of every field before it becomes part of a shared,
// read-only Batch.
type Builder struct {
	fields []FieldData
}

func NewBuilder() *Builder { return &Builder{} }

// Add appends one column's data. Order of Add calls determines schema
// field order.
func (b *Builder) Add(fd FieldData) *Builder {
	b.fields = append(b.fields, fd)
	return b
}

// Freeze validates every added field and, if nothing is wrong, constructs
// the Schema and Batch. Every structural problem found is combined via
// multierr so the caller sees all of them at once, not just the first.
func (b *Builder) Freeze() (*Batch, error) {
	if len(b.fields) == 0 {
		return &Batch{schema: &Schema{index: map[string]int{}}, rowCount: 0}, nil
	}

	var errs error
	rowCount := b.fields[0].length()
	for _, fd := range b.fields {
		if n := fd.length(); n != rowCount {
			errs = multierr.Append(errs, colqerr.WithColumn(colqerr.InvalidArg, fd.Field.Name,
				"column has %d rows, expected %d", n, rowCount))
		}
		if fd.Validity != nil && len(fd.Validity) != fd.length() {
			errs = multierr.Append(errs, colqerr.WithColumn(colqerr.InvalidArg, fd.Field.Name,
				"validity buffer length %d does not match column length %d", len(fd.Validity), fd.length()))
		}
		if fd.Field.Type == DictionaryType {
			for row, code := range fd.DictionaryIndices {
				valid := fd.Validity == nil || fd.Validity[row]
				if !valid {
					continue
				}
				if code < 0 || int(code) >= len(fd.DictionaryValues) {
					errs = multierr.Append(errs, colqerr.WithColumn(colqerr.InvalidArg, fd.Field.Name,
						"dictionary index %d at row %d out of bounds [0,%d)", code, row, len(fd.DictionaryValues)))
					break
				}
			}
		}
	}
	if errs != nil {
		return nil, errs
	}

	fields := make([]Field, len(b.fields))
	columns := make([]Column, len(b.fields))
	for i, fd := range b.fields {
		fields[i] = fd.Field
		columns[i] = buildColumn(fd, rowCount)
	}

	schema, err := NewSchema(fields)
	if err != nil {
		return nil, err
	}
	return &Batch{schema: schema, columns: columns, rowCount: rowCount}, nil
}

func validityBitmap(v []bool, n int) *bitmap.Bitmap {
	if v == nil {
		return nil
	}
	bm := bitmap.New(n, false)
	for i, ok := range v {
		if ok {
			bm.Set(i)
		}
	}
	return bm
}

func buildColumn(fd FieldData, n int) Column {
	validity := validityBitmap(fd.Validity, n)
	base := newBase(n, validity)
	switch fd.Field.Type {
	case Int8:
		return &Int8Column{baseColumn: base, Values: fd.Int8Values}
	case Int16:
		return &Int16Column{baseColumn: base, Values: fd.Int16Values}
	case Int32:
		return &Int32Column{baseColumn: base, Values: fd.Int32Values}
	case Int64:
		return &Int64Column{baseColumn: base, Values: fd.Int64Values}
	case Float32Type:
		return &Float32Column{baseColumn: base, Values: fd.Float32Values}
	case Float64Type:
		return &Float64Column{baseColumn: base, Values: fd.Float64Values}
	case Decimal128Type:
		return &Decimal128Column{baseColumn: base, Values: fd.DecimalValues, Scale: fd.Field.DecScale}
	case BoolType:
		values := bitmap.New(n, false)
		for i, v := range fd.BoolValues {
			if v {
				values.Set(i)
			}
		}
		return &BoolColumn{baseColumn: base, values: values}
	case Utf8:
		offsets := make([]int32, n+1)
		var bytesLen int32
		for i, s := range fd.StringValues {
			offsets[i] = bytesLen
			bytesLen += int32(len(s))
		}
		offsets[n] = bytesLen
		buf := make([]byte, 0, bytesLen)
		for _, s := range fd.StringValues {
			buf = append(buf, s...)
		}
		return &StringColumn{baseColumn: base, Offsets: offsets, Bytes: buf}
	case DateType:
		return &DateColumn{baseColumn: base, Values: fd.DateValues}
	case TimestampType:
		return &TimestampColumn{baseColumn: base, Values: fd.TimestampValues, Unit: fd.Field.TimeUnit}
	case DictionaryType:
		return &DictionaryColumn{baseColumn: base, Indices: fd.DictionaryIndices, Dictionary: fd.DictionaryValues}
	default:
		return nil
	}
}
