// Package predicate implements the typed predicate evaluation tree:
// column-typed comparison nodes plus And/Or/Not compound nodes, all
// sharing one contract —
//
//	Evaluate(batch, selection) restricts selection in place to the rows
//	that satisfy the predicate, ANDing into whatever was already selected
//	so a chained list of predicates accumulates — chained filters are
//	cumulative.
//
// Null semantics: op(NULL, x) is always false for ordinary comparisons —
// IsNull is the only predicate that ever selects a null row.
package predicate

import (
	"colq/internal/bitmap"
	"colq/internal/colqerr"
	"colq/internal/store"
)

// Predicate is the shared contract for every node in the tree.
type Predicate interface {
	// Evaluate restricts selection to rows satisfying the predicate.
	// Precondition: selection.Len() == batch.RowCount().
	Evaluate(batch *store.Batch, selection *bitmap.Bitmap) error

	// Columns returns the set of column names this predicate (and its
	// children) reads, used by predicate pushdown and the compiled
	// predicate builder's column binding.
	Columns() []string
}

// CompareOp is shared by NumericCmp, DateTimeCmp and StringCmp.
type CompareOp int

const (
	OpEQ CompareOp = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
	OpLike // StringCmp only
)

func (op CompareOp) String() string {
	switch op {
	case OpEQ:
		return "="
	case OpNE:
		return "!="
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	case OpLike:
		return "LIKE"
	default:
		return "?"
	}
}

func checkLength(batch *store.Batch, selection *bitmap.Bitmap) error {
	if selection.Len() != batch.RowCount() {
		return colqerr.New(colqerr.InvalidArg, "selection length %d does not match batch row count %d",
			selection.Len(), batch.RowCount())
	}
	return nil
}

func columnOrError(batch *store.Batch, name string) (store.Column, error) {
	col, err := batch.ColumnByName(name)
	if err != nil {
		return nil, err
	}
	return col, nil
}
