package agg

import (
	"sort"
	"strconv"

	"colq/internal/bitmap"
	"colq/internal/colqerr"
	"colq/internal/store"
)

// AggFuncKind names one of the scalar reductions available per group.
type AggFuncKind int

const (
	AggSum AggFuncKind = iota
	AggAvg
	AggMin
	AggMax
	AggCount
)

// AggSpec is one named aggregate to compute per group: Name is the output
// field, Column is the input column (ignored for AggCount when empty, which
// then counts group membership instead of a specific column's non-nulls).
type AggSpec struct {
	Name   string
	Column string
	Func   AggFuncKind
}

// GroupResult is one group's key plus its named aggregate outputs. Decimal
// input columns populate both Values (an approximate float64, for uniform
// access) and Decimals (the precise value); every other column type only
// populates Values.
type GroupResult struct {
	Key      string
	Values   map[string]float64
	Decimals map[string]store.Decimal128
}

// singlePassCardinalityLimit and singlePassMinSelection gate the
// dictionary-indexed accumulator-array strategy: preferred when the key
// column is dictionary-encoded with cardinality <= 256 and selection size
// >= 1000.
const (
	singlePassCardinalityLimit = 256
	singlePassMinSelection     = 1000
)

// GroupBy dispatches to the single-pass dictionary-accumulator strategy
// when the key column qualifies, otherwise falls back to the general
// two-pass strategy (the default for high-cardinality or non-dictionary
// keys).
func GroupBy(batch *store.Batch, keyColumn string, selection *bitmap.Bitmap, specs []AggSpec) ([]GroupResult, error) {
	keyCol, err := batch.ColumnByName(keyColumn)
	if err != nil {
		return nil, err
	}

	if dc, ok := keyCol.(*store.DictionaryColumn); ok &&
		dc.Cardinality() <= singlePassCardinalityLimit && selection.CountSet() >= singlePassMinSelection {
		return singlePass(batch, dc, selection, specs)
	}
	return twoPass(batch, keyCol, selection, specs)
}

// groupKeyString resolves row's key column value to a string bucket key,
// reporting ok=false for a null key; null keys are dropped.
func groupKeyString(col store.Column, row int) (string, bool) {
	if !col.IsValid(row) {
		return "", false
	}
	switch c := col.(type) {
	case *store.StringColumn:
		return c.Value(row), true
	case *store.DictionaryColumn:
		return c.Value(row), true
	case *store.Int8Column:
		return strconv.FormatInt(int64(c.Values[row]), 10), true
	case *store.Int16Column:
		return strconv.FormatInt(int64(c.Values[row]), 10), true
	case *store.Int32Column:
		return strconv.FormatInt(int64(c.Values[row]), 10), true
	case *store.Int64Column:
		return strconv.FormatInt(c.Values[row], 10), true
	case *store.BoolColumn:
		return strconv.FormatBool(c.Value(row)), true
	case *store.DateColumn:
		return strconv.FormatInt(int64(c.Values[row]), 10), true
	case *store.TimestampColumn:
		return strconv.FormatInt(c.Values[row], 10), true
	default:
		return "", false
	}
}

type specColumn struct {
	spec AggSpec
	col  store.Column // nil for bare Count
}

func resolveSpecColumns(batch *store.Batch, specs []AggSpec) ([]specColumn, error) {
	out := make([]specColumn, len(specs))
	for i, spec := range specs {
		if spec.Func == AggCount && spec.Column == "" {
			out[i] = specColumn{spec: spec}
			continue
		}
		col, err := batch.ColumnByName(spec.Column)
		if err != nil {
			return nil, err
		}
		out[i] = specColumn{spec: spec, col: col}
	}
	return out, nil
}

// twoPass scans the selection, materializes group -> list of row indices,
// then runs each aggregate spec per group.
func twoPass(batch *store.Batch, keyCol store.Column, selection *bitmap.Bitmap, specs []AggSpec) ([]GroupResult, error) {
	buckets := make(map[string][]int)
	var order []string
	for row := range selection.SelectedIndices() {
		key, ok := groupKeyString(keyCol, row)
		if !ok {
			continue
		}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], row)
	}
	sort.Strings(order)

	specCols, err := resolveSpecColumns(batch, specs)
	if err != nil {
		return nil, err
	}

	results := make([]GroupResult, 0, len(order))
	for _, key := range order {
		groupSel := bitmap.Acquire(keyCol.Len(), false)
		for _, r := range buckets[key] {
			groupSel.Set(r)
		}

		gr := GroupResult{Key: key, Values: map[string]float64{}, Decimals: map[string]store.Decimal128{}}
		for _, sc := range specCols {
			if err := applySpec(sc, groupSel, &gr); err != nil {
				groupSel.Release()
				return nil, err
			}
		}
		groupSel.Release()
		results = append(results, gr)
	}
	return results, nil
}

func applySpec(sc specColumn, sel *bitmap.Bitmap, gr *GroupResult) error {
	if sc.spec.Func == AggCount && sc.col == nil {
		gr.Values[sc.spec.Name] = float64(sel.CountSet())
		return nil
	}

	if dc, ok := sc.col.(*store.Decimal128Column); ok {
		var (
			v   store.Decimal128
			err error
		)
		switch sc.spec.Func {
		case AggSum:
			v, err = SumDecimal(dc, sel)
		case AggAvg:
			v, err = AvgDecimal(dc, sel)
		case AggMin:
			v, err = MinDecimal(dc, sel)
		case AggMax:
			v, err = MaxDecimal(dc, sel)
		case AggCount:
			gr.Values[sc.spec.Name] = float64(Count(dc, sel))
			return nil
		}
		if err != nil {
			return err
		}
		gr.Decimals[sc.spec.Name] = v
		gr.Values[sc.spec.Name] = v.Float64()
		return nil
	}

	opts := Options{Parallel: false}.normalized()
	var (
		v   float64
		err error
	)
	switch sc.spec.Func {
	case AggSum:
		v, err = Sum(sc.col, sel, opts)
	case AggAvg:
		v, err = Avg(sc.col, sel, opts)
	case AggMin:
		v, err = Min(sc.col, sel, opts)
	case AggMax:
		v, err = Max(sc.col, sel, opts)
	case AggCount:
		v = float64(Count(sc.col, sel))
	default:
		return colqerr.New(colqerr.Unsupported, "unknown aggregate function %d", sc.spec.Func)
	}
	if err != nil {
		return err
	}
	gr.Values[sc.spec.Name] = v
	return nil
}

// numAccArray is a fixed-size (sum, min, max, count, hasValue) accumulator
// array indexed by dictionary code, one per AggSpec.
type numAccArray struct {
	sum, min, max []float64
	count         []int
	has           []bool
}

func newNumAccArray(card int) *numAccArray {
	return &numAccArray{
		sum: make([]float64, card), min: make([]float64, card), max: make([]float64, card),
		count: make([]int, card), has: make([]bool, card),
	}
}

func (a *numAccArray) add(code int32, v float64, fn AggFuncKind) {
	switch fn {
	case AggSum, AggAvg:
		a.sum[code] += v
		a.count[code]++
	case AggMin:
		if !a.has[code] || v < a.min[code] {
			a.min[code] = v
		}
		a.has[code] = true
	case AggMax:
		if !a.has[code] || v > a.max[code] {
			a.max[code] = v
		}
		a.has[code] = true
	case AggCount:
		a.count[code]++
	}
}

// decAccArray is numAccArray's Decimal128 counterpart.
type decAccArray struct {
	sum, best []store.Decimal128
	count     []int
	has       []bool
	scale     int32
}

func newDecAccArray(card int, scale int32) *decAccArray {
	sum := make([]store.Decimal128, card)
	for i := range sum {
		sum[i] = store.NewDecimal128(0, scale)
	}
	return &decAccArray{sum: sum, best: make([]store.Decimal128, card), count: make([]int, card), has: make([]bool, card), scale: scale}
}

func (a *decAccArray) add(code int32, v store.Decimal128, fn AggFuncKind) {
	switch fn {
	case AggSum, AggAvg:
		a.sum[code] = a.sum[code].Add(v)
		a.count[code]++
	case AggMin:
		if !a.has[code] || v.Cmp(a.best[code]) < 0 {
			a.best[code] = v
		}
		a.has[code] = true
	case AggMax:
		if !a.has[code] || v.Cmp(a.best[code]) > 0 {
			a.best[code] = v
		}
		a.has[code] = true
	case AggCount:
		a.count[code]++
	}
}

// singlePass allocates one fixed-size accumulator array per aggregate spec,
// indexed by dictionary code, and iterates selected rows exactly once,
// dispatching via cached per-aggregate value accessors that carry a
// tagged column type to avoid per-row dispatch cost.
func singlePass(batch *store.Batch, keyCol *store.DictionaryColumn, selection *bitmap.Bitmap, specs []AggSpec) ([]GroupResult, error) {
	specCols, err := resolveSpecColumns(batch, specs)
	if err != nil {
		return nil, err
	}
	card := keyCol.Cardinality()

	numAccs := make([]*numAccArray, len(specCols))
	decAccs := make([]*decAccArray, len(specCols))
	bareCounts := make([][]int, len(specCols))
	numValue := make([]func(int) float64, len(specCols))
	decValue := make([]func(int) store.Decimal128, len(specCols))

	for i, sc := range specCols {
		if sc.spec.Func == AggCount && sc.col == nil {
			bareCounts[i] = make([]int, card)
			continue
		}
		if dc, ok := sc.col.(*store.Decimal128Column); ok {
			decAccs[i] = newDecAccArray(card, dc.Scale)
			decValue[i] = func(row int) store.Decimal128 { return dc.Values[row] }
			continue
		}
		acc, ok := numericAccessor(sc.col)
		if !ok {
			return nil, colqerr.New(colqerr.TypeMismatch, "column %s does not support aggregation", sc.spec.Column)
		}
		numAccs[i] = newNumAccArray(card)
		numValue[i] = acc
	}

	present := make([]bool, card)
	for row := range selection.SelectedIndices() {
		if !keyCol.IsValid(row) {
			continue
		}
		code := keyCol.Code(row)
		present[code] = true

		for i, sc := range specCols {
			switch {
			case bareCounts[i] != nil:
				bareCounts[i][code]++
			case decAccs[i] != nil:
				if sc.col.IsValid(row) {
					decAccs[i].add(code, decValue[i](row), sc.spec.Func)
				}
			case numAccs[i] != nil:
				if sc.col.IsValid(row) {
					numAccs[i].add(code, numValue[i](row), sc.spec.Func)
				}
			}
		}
	}

	var results []GroupResult
	for code := 0; code < card; code++ {
		if !present[code] {
			continue
		}
		gr := GroupResult{Key: keyCol.Dictionary[code], Values: map[string]float64{}, Decimals: map[string]store.Decimal128{}}
		for i, sc := range specCols {
			switch {
			case bareCounts[i] != nil:
				gr.Values[sc.spec.Name] = float64(bareCounts[i][code])
			case decAccs[i] != nil:
				a := decAccs[i]
				switch sc.spec.Func {
				case AggSum:
					gr.Decimals[sc.spec.Name] = a.sum[code]
					gr.Values[sc.spec.Name] = a.sum[code].Float64()
				case AggAvg:
					v := a.sum[code]
					if a.count[code] > 0 {
						v = v.DivInt64(int64(a.count[code]))
					}
					gr.Decimals[sc.spec.Name] = v
					gr.Values[sc.spec.Name] = v.Float64()
				case AggMin, AggMax:
					gr.Decimals[sc.spec.Name] = a.best[code]
					gr.Values[sc.spec.Name] = a.best[code].Float64()
				case AggCount:
					gr.Values[sc.spec.Name] = float64(a.count[code])
				}
			case numAccs[i] != nil:
				a := numAccs[i]
				switch sc.spec.Func {
				case AggSum:
					gr.Values[sc.spec.Name] = a.sum[code]
				case AggAvg:
					if a.count[code] > 0 {
						gr.Values[sc.spec.Name] = a.sum[code] / float64(a.count[code])
					}
				case AggMin:
					gr.Values[sc.spec.Name] = a.min[code]
				case AggMax:
					gr.Values[sc.spec.Name] = a.max[code]
				case AggCount:
					gr.Values[sc.spec.Name] = float64(a.count[code])
				}
			}
		}
		results = append(results, gr)
	}
	return results, nil
}
