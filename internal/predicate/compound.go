package predicate

import (
	"colq/internal/bitmap"
	"colq/internal/store"
)

// And restricts selection to rows that satisfy every child, by handing each
// child the same accumulating selection in turn — equivalent to chaining
// the children as separate predicates but packaged as one node for the
// optimizer and the compiled predicate builder.
type And struct {
	Children []Predicate
}

func (p *And) Columns() []string { return unionColumns(p.Children) }

func (p *And) Evaluate(batch *store.Batch, selection *bitmap.Bitmap) error {
	for _, child := range p.Children {
		if err := child.Evaluate(batch, selection); err != nil {
			return err
		}
	}
	return nil
}

// Or restricts selection to rows where at least one child matches, computed
// as result = incoming AND (P_result OR Q_result OR ...): each child
// evaluates against its own fresh copy of the incoming selection so that one
// child's eliminations don't starve the next child's input, and the copies
// are unioned back together at the end.
type Or struct {
	Children []Predicate
}

func (p *Or) Columns() []string { return unionColumns(p.Children) }

func (p *Or) Evaluate(batch *store.Batch, selection *bitmap.Bitmap) error {
	if len(p.Children) == 0 {
		// Or of no disjuncts matches nothing.
		empty := bitmap.Acquire(selection.Len(), false)
		defer empty.Release()
		return selection.And(empty)
	}

	union := bitmap.Acquire(selection.Len(), false)
	defer union.Release()

	for _, child := range p.Children {
		copySel := selection.Clone()
		if err := child.Evaluate(batch, copySel); err != nil {
			copySel.Release()
			return err
		}
		_ = union.Or(copySel)
		copySel.Release()
	}

	return selection.And(union)
}

// Not restricts selection to rows where Child does not match: evaluated
// against a fresh copy of the incoming selection (so Child sees the same
// candidate rows And/Or siblings would), inverted, then ANDed back with the
// original incoming selection.
type Not struct {
	Child Predicate
}

func (p *Not) Columns() []string { return p.Child.Columns() }

func (p *Not) Evaluate(batch *store.Batch, selection *bitmap.Bitmap) error {
	copySel := selection.Clone()
	defer copySel.Release()

	if err := p.Child.Evaluate(batch, copySel); err != nil {
		return err
	}
	copySel.Not()
	return selection.And(copySel)
}

func unionColumns(children []Predicate) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range children {
		for _, col := range c.Columns() {
			if !seen[col] {
				seen[col] = true
				out = append(out, col)
			}
		}
	}
	return out
}
