package predicate

import (
	"colq/internal/bitmap"
	"colq/internal/store"
	"colq/internal/zonemap"
)

// IsNull selects rows where Column is null (or, with Negate, where it is
// not). It is the only predicate in the tree that ever selects a null row.
type IsNull struct {
	Column string
	Negate bool
}

func (p *IsNull) Columns() []string { return []string{p.Column} }

func (p *IsNull) Evaluate(batch *store.Batch, selection *bitmap.Bitmap) error {
	if err := checkLength(batch, selection); err != nil {
		return err
	}
	col, err := columnOrError(batch, p.Column)
	if err != nil {
		return err
	}

	evalMasked(selection, nil, func(row int) bool {
		valid := col.IsValid(row)
		if p.Negate {
			return valid
		}
		return !valid
	})
	return nil
}

// PruneColumn / PossiblyMatches implement zonemap.Pruner: a chunk with no
// nulls can never satisfy IsNull. IsNull{Negate: true} never prunes; a
// chunk summary does not record whether every row in it is null.
func (p *IsNull) PruneColumn() (string, bool) { return p.Column, true }

func (p *IsNull) PossiblyMatches(summary zonemap.ChunkSummary) bool {
	if p.Negate {
		return true
	}
	return summary.HasNulls
}
