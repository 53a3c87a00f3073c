package query

import "colq/internal/colqerr"

// The following LINQ-surface operators are explicit non-goals: no
// cross-sequence or ordering-identity operations. Each returns an error
// immediately rather than silently degrading, so a caller porting LINQ code
// finds out at the call site rather than from a wrong result downstream.

func (q *Query) Join(other *Query, outerKey, innerKey string) (*Query, error) {
	return nil, colqerr.New(colqerr.Unsupported, "Join is not supported")
}

func (q *Query) GroupJoin(other *Query, outerKey, innerKey string) (*Query, error) {
	return nil, colqerr.New(colqerr.Unsupported, "GroupJoin is not supported")
}

func (q *Query) Union(other *Query) (*Query, error) {
	return nil, colqerr.New(colqerr.Unsupported, "Union is not supported")
}

func (q *Query) Intersect(other *Query) (*Query, error) {
	return nil, colqerr.New(colqerr.Unsupported, "Intersect is not supported")
}

func (q *Query) Except(other *Query) (*Query, error) {
	return nil, colqerr.New(colqerr.Unsupported, "Except is not supported")
}

func (q *Query) Zip(other *Query) (*Query, error) {
	return nil, colqerr.New(colqerr.Unsupported, "Zip is not supported")
}

func (q *Query) Reverse() (*Query, error) {
	return nil, colqerr.New(colqerr.Unsupported, "Reverse is not supported")
}

func (q *Query) SequenceEqual(other *Query) (bool, error) {
	return false, colqerr.New(colqerr.Unsupported, "SequenceEqual is not supported")
}

// Aggregate is LINQ's general fold/reduce terminal operator; the engine
// only supports the fixed Sum/Avg/Min/Max/Count reductions, not an
// arbitrary accumulator function.
func (q *Query) Aggregate(seed any, fold func(acc, row any) any) (any, error) {
	return nil, colqerr.New(colqerr.Unsupported, "Aggregate (arbitrary fold) is not supported; use Sum/Average/Min/Max/Count")
}
