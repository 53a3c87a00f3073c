package agg

import (
	"colq/internal/bitmap"
	"colq/internal/colqerr"
	"colq/internal/store"
)

// SumDecimal accumulates in a wide decimal via the sparse iterator
// exclusively; decimal columns are not SIMDable.
func SumDecimal(col *store.Decimal128Column, selection *bitmap.Bitmap) (store.Decimal128, error) {
	masked, release := effectiveSelection(selection, col.Validity())
	defer release()

	sum := store.NewDecimal128(0, col.Scale)
	for row := range masked.SelectedIndices() {
		sum = sum.Add(col.Values[row])
	}
	return sum, nil
}

// AvgDecimal divides SumDecimal by the block-based (non-null) count.
func AvgDecimal(col *store.Decimal128Column, selection *bitmap.Bitmap) (store.Decimal128, error) {
	masked, release := effectiveSelection(selection, col.Validity())
	defer release()

	count := masked.CountSet()
	if count == 0 {
		return store.Decimal128{}, colqerr.New(colqerr.EmptySequence, "avg over empty selection")
	}

	sum := store.NewDecimal128(0, col.Scale)
	for row := range masked.SelectedIndices() {
		sum = sum.Add(col.Values[row])
	}
	return sum.DivInt64(int64(count)), nil
}

// MinDecimal and MaxDecimal walk the sparse iterator comparing via Cmp.
func MinDecimal(col *store.Decimal128Column, selection *bitmap.Bitmap) (store.Decimal128, error) {
	return reduceDecimal(col, selection, true)
}

func MaxDecimal(col *store.Decimal128Column, selection *bitmap.Bitmap) (store.Decimal128, error) {
	return reduceDecimal(col, selection, false)
}

func reduceDecimal(col *store.Decimal128Column, selection *bitmap.Bitmap, wantMin bool) (store.Decimal128, error) {
	masked, release := effectiveSelection(selection, col.Validity())
	defer release()

	var (
		best     store.Decimal128
		hasValue bool
	)
	for row := range masked.SelectedIndices() {
		v := col.Values[row]
		if !hasValue {
			best, hasValue = v, true
			continue
		}
		cmp := v.Cmp(best)
		if (wantMin && cmp < 0) || (!wantMin && cmp > 0) {
			best = v
		}
	}
	if !hasValue {
		return store.Decimal128{}, colqerr.New(colqerr.EmptySequence, "min/max over empty selection")
	}
	return best, nil
}
