package predicate

import (
	"colq/internal/bitmap"
	"colq/internal/store"
)

// BoolCmp compares a boolean column for equality/inequality; only OpEQ
// and OpNE are meaningful operators for it.
type BoolCmp struct {
	Column string
	Op     CompareOp // only OpEQ / OpNE are meaningful
	Value  bool
}

func (p *BoolCmp) Columns() []string { return []string{p.Column} }

func (p *BoolCmp) Evaluate(batch *store.Batch, selection *bitmap.Bitmap) error {
	if err := checkLength(batch, selection); err != nil {
		return err
	}
	col, err := columnOrError(batch, p.Column)
	if err != nil {
		return err
	}
	bc, ok := col.(*store.BoolColumn)
	if !ok {
		return typeMismatch(p.Column, col)
	}

	evalMasked(selection, bc.Validity(), func(row int) bool {
		v := bc.Value(row)
		if p.Op == OpNE {
			return v != p.Value
		}
		return v == p.Value
	})
	return nil
}
