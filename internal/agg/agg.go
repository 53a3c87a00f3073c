// Package agg implements the per-scalar-type column aggregators:
// sum/avg/min/max/count over a selection, plus grouped aggregation. Every
// aggregate is block-based: the column's validity bitmap is ANDed into
// the selection once up front so the hot loop never has to branch on
// nullability, then rows are walked via the selection bitmap's
// trailing-zero iterator.
package agg

import (
	"runtime"

	"colq/internal/bitmap"
	"colq/internal/colqerr"
	"colq/internal/store"
)

// Options controls the parallel/chunked behaviour of the block-based
// aggregators; the zero value is normalized to the documented defaults:
// row counts >= 50000 split into fixed-size chunks, default 65536 rows.
type Options struct {
	Parallel     bool
	RowThreshold int
	ChunkRows    int
	MaxWorkers   int
}

func (o Options) normalized() Options {
	if o.RowThreshold <= 0 {
		o.RowThreshold = 50_000
	}
	if o.ChunkRows <= 0 {
		o.ChunkRows = 65_536
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = runtime.NumCPU()
	}
	return o
}

// DefaultOptions returns the documented defaults with parallel execution on.
func DefaultOptions() Options {
	return Options{Parallel: true}.normalized()
}

// Count reduces to popcount(selection AND validity) when the column is
// nullable, or selection.CountSet() otherwise — it never touches the
// column's values.
func Count(col store.Column, selection *bitmap.Bitmap) int {
	validity := col.Validity()
	if validity == nil {
		return selection.CountSet()
	}
	masked := selection.Clone()
	defer masked.Release()
	_ = masked.And(validity)
	return masked.CountSet()
}

// effectiveSelection returns the selection restricted to valid rows, cloning
// only when the column is nullable. The returned release func must always
// be called.
func effectiveSelection(selection *bitmap.Bitmap, validity *bitmap.Bitmap) (*bitmap.Bitmap, func()) {
	if validity == nil {
		return selection, func() {}
	}
	masked := selection.Clone()
	_ = masked.And(validity)
	return masked, masked.Release
}

// numericAccessor resolves a float64 value accessor for any primitive
// numeric, date, or timestamp column (decimal columns are handled
// separately in decimal.go since they are not SIMDable).
func numericAccessor(col store.Column) (func(int) float64, bool) {
	switch c := col.(type) {
	case *store.Int8Column:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	case *store.Int16Column:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	case *store.Int32Column:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	case *store.Int64Column:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	case *store.Float32Column:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	case *store.Float64Column:
		return func(i int) float64 { return c.Values[i] }, true
	case *store.DateColumn:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	case *store.TimestampColumn:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	default:
		return nil, false
	}
}

func typeMismatch(col store.Column) error {
	return colqerr.New(colqerr.TypeMismatch, "column type %s does not support numeric aggregation", col.Type())
}

// Sum adds every selected, valid value. An empty selection sums to 0, unlike
// Min/Max which fail with EmptySequence.
func Sum(col store.Column, selection *bitmap.Bitmap, opts Options) (float64, error) {
	accessor, ok := numericAccessor(col)
	if !ok {
		return 0, typeMismatch(col)
	}
	opts = opts.normalized()
	masked, release := effectiveSelection(selection, col.Validity())
	defer release()

	if opts.Parallel && masked.Len() >= opts.RowThreshold {
		partials, err := parallelReduce(masked, opts, func(start, end int) partial {
			return sumPartialRange(masked, start, end, accessor)
		})
		if err != nil {
			return 0, err
		}
		return combinePartials(partials).sum, nil
	}

	return sumPartial(masked, accessor).sum, nil
}

// Avg divides Sum by the non-null selected count; an empty selection fails
// with EmptySequence.
func Avg(col store.Column, selection *bitmap.Bitmap, opts Options) (float64, error) {
	accessor, ok := numericAccessor(col)
	if !ok {
		return 0, typeMismatch(col)
	}
	opts = opts.normalized()
	masked, release := effectiveSelection(selection, col.Validity())
	defer release()

	var p partial
	if opts.Parallel && masked.Len() >= opts.RowThreshold {
		partials, err := parallelReduce(masked, opts, func(start, end int) partial {
			return sumPartialRange(masked, start, end, accessor)
		})
		if err != nil {
			return 0, err
		}
		p = combinePartials(partials)
	} else {
		p = sumPartial(masked, accessor)
	}

	if p.count == 0 {
		return 0, colqerr.New(colqerr.EmptySequence, "avg over empty selection")
	}
	return p.sum / float64(p.count), nil
}

// Min returns the smallest selected, valid value. NaN is treated as
// neither greater nor less than any value, per IEEE-754.
func Min(col store.Column, selection *bitmap.Bitmap, opts Options) (float64, error) {
	return reduceMinMax(col, selection, opts, true)
}

// Max returns the largest selected, valid value.
func Max(col store.Column, selection *bitmap.Bitmap, opts Options) (float64, error) {
	return reduceMinMax(col, selection, opts, false)
}

func reduceMinMax(col store.Column, selection *bitmap.Bitmap, opts Options, wantMin bool) (float64, error) {
	accessor, ok := numericAccessor(col)
	if !ok {
		return 0, typeMismatch(col)
	}
	opts = opts.normalized()
	masked, release := effectiveSelection(selection, col.Validity())
	defer release()

	var p partial
	if opts.Parallel && masked.Len() >= opts.RowThreshold {
		partials, err := parallelReduce(masked, opts, func(start, end int) partial {
			return minMaxPartialRange(masked, start, end, accessor)
		})
		if err != nil {
			return 0, err
		}
		p = combinePartials(partials)
	} else {
		p = minMaxPartial(masked, accessor)
	}

	if !p.hasValue {
		return 0, colqerr.New(colqerr.EmptySequence, "min/max over empty selection")
	}
	if wantMin {
		return p.min, nil
	}
	return p.max, nil
}
