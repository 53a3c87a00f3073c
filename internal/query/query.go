// Package query implements the chained, LINQ-like query surface:
// Where/Select/GroupBy/OrderBy/Take/Skip/Distinct build an explicit
// internal/plan tree through the same node constructors the SQL front end
// (internal/sqlfront) uses, so both surfaces always optimize and execute
// identically. There is no host-language expression tree or reflection
// over Go closures — every clause is built from the package's own
// predicate/column helpers, not an expression-reflection emulation of
// LINQ.
package query

import (
	"context"
	"fmt"

	"colq/internal/agg"
	"colq/internal/colqerr"
	"colq/internal/compile"
	"colq/internal/exec"
	"colq/internal/optimizer"
	"colq/internal/physical"
	"colq/internal/plan"
	"colq/internal/predicate"
	"colq/internal/store"
)

// Runner takes a fully-built logical plan and returns a materialized
// result; it is the seam the root facade package uses to interpose the
// plan cache and adaptive executor between query-building and execution.
// DefaultRunner runs the bare optimizer/physical-planner/executor
// pipeline with no caching for callers that just want a plan to run once.
type Runner func(ctx context.Context, root plan.Node) (*exec.Result, error)

// DefaultRunner optimizes, annotates, and executes root with the given
// compiler (nil disables compiled-predicate evaluation) and no logger.
func DefaultRunner(compiler *compile.Compiler, opts exec.Options) Runner {
	return func(ctx context.Context, root plan.Node) (*exec.Result, error) {
		optimized := optimizer.Optimize(root)
		physical.Annotate(optimized, physical.DefaultOptions())
		return exec.Run(ctx, optimized, opts, compiler, nil)
	}
}

// Query is a builder: every chained method except ThenBy/ThenByDescending
// and HavingKeyIn returns a new Query wrapping a new plan node, the input
// node untouched, so a partially-built Query can be reused as a base for
// more than one chain. ThenBy/ThenByDescending and HavingKeyIn modify the
// current Sort/GroupBy node in place and return the same Query.
type Query struct {
	node plan.Node
	run  Runner
	// err short-circuits the chain once a builder method detects a misuse
	// (e.g. HavingKeyIn with no preceding GroupBy): every later chained call
	// is a no-op and the error surfaces at the first terminal call, so
	// callers don't need to check err after every intermediate step.
	err error
}

// From starts a query over batch using run to execute terminal operators.
func From(batch *store.Batch, run Runner) *Query {
	return &Query{node: plan.NewScan(batch), run: run}
}

func (q *Query) clone(n plan.Node) *Query {
	if q.err != nil {
		return q
	}
	return &Query{node: n, run: q.run}
}

func (q *Query) fail(err error) *Query {
	return &Query{node: q.node, run: q.run, err: err}
}

// Plan exposes the built logical plan, for callers (the SQL front end,
// tests) that want to inspect or execute it directly.
func (q *Query) Plan() plan.Node { return q.node }

// Where narrows rows to those matching every predicate (an implicit AND
// across the call, matching the chained-filters-are-cumulative semantics
// of a second Where call).
func (q *Query) Where(preds ...predicate.Predicate) *Query {
	return q.clone(plan.NewFilter(q.node, preds...))
}

// Column is one Select output: a plain rename/passthrough (use As) or a
// computed expression (use Compute).
type Column = plan.ProjectedColumn

// As projects name directly from source.
func As(name, source string) Column { return Column{Name: name, Source: source} }

// Ident projects a column under its own name.
func Ident(name string) Column { return Column{Name: name, Source: name} }

// ComputeColumn projects a derived value; the optimizer never pushes
// predicates or limits through a Select containing one of these.
func ComputeColumn(name string, fn func(batch *store.Batch, row int) (any, error)) Column {
	return Column{Name: name, Compute: fn}
}

// Select projects columns, in order.
func (q *Query) Select(columns ...Column) *Query {
	return q.clone(plan.NewProject(q.node, columns...))
}

// GroupBy partitions by keyColumn and computes the given aggregates per
// group.
func (q *Query) GroupBy(keyColumn string, aggregates ...agg.AggSpec) *Query {
	return q.clone(plan.NewGroupBy(q.node, keyColumn, aggregates...))
}

// Reduce collapses the whole (ungrouped) sequence to the given named
// aggregates, the builder-level equivalent of Sum/Average/Min/Max/Count
// for a caller (the SQL front end) that wants more than one reduction out
// of a single query, or one under a caller-chosen name. Named Reduce, not
// Aggregate, since that name is reserved for LINQ's unsupported arbitrary
// fold operator (see unsupported.go).
func (q *Query) Reduce(aggregates ...agg.AggSpec) *Query {
	return q.clone(plan.NewAggregate(q.node, aggregates...))
}

// HavingKeyIn restricts a GroupBy's emitted groups to those whose key is in
// keys. Only the group key can be filtered this way — HAVING on an
// aggregate value is not supported (see DESIGN.md).
func (q *Query) HavingKeyIn(keys ...string) *Query {
	gb, ok := q.node.(*plan.GroupBy)
	if !ok {
		return q.fail(colqerr.New(colqerr.Unsupported, "HavingKeyIn requires a preceding GroupBy"))
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	gb.HavingKeys = set
	return q
}

// OrderBy/OrderByDescending start a new sort; ThenBy/ThenByDescending
// refine the most recent OrderBy with an additional tie-breaking key.
func (q *Query) OrderBy(column string) *Query           { return q.clone(plan.NewSort(q.node, plan.SortKey{Column: column})) }
func (q *Query) OrderByDescending(column string) *Query {
	return q.clone(plan.NewSort(q.node, plan.SortKey{Column: column, Descending: true}))
}

func (q *Query) thenBy(column string, desc bool) *Query {
	s, ok := q.node.(*plan.Sort)
	if !ok {
		return q.clone(plan.NewSort(q.node, plan.SortKey{Column: column, Descending: desc}))
	}
	s.Keys = append(s.Keys, plan.SortKey{Column: column, Descending: desc})
	return q
}

func (q *Query) ThenBy(column string) *Query           { return q.thenBy(column, false) }
func (q *Query) ThenByDescending(column string) *Query { return q.thenBy(column, true) }

// Take caps the output to the first n rows (post-sort, if any).
func (q *Query) Take(n int) *Query { return q.clone(plan.NewLimit(q.node, n)) }

// Skip drops the first n rows.
func (q *Query) Skip(n int) *Query { return q.clone(plan.NewOffset(q.node, n)) }

// Distinct removes duplicate rows, compared over columns (no columns means
// the whole row).
func (q *Query) Distinct(columns ...string) *Query {
	return q.clone(plan.NewDistinct(q.node, columns...))
}

// --- terminal operators ---

func (q *Query) exec(ctx context.Context, node plan.Node) (*exec.Result, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.run == nil {
		return nil, colqerr.New(colqerr.Unsupported, "query has no Runner configured")
	}
	return q.run(ctx, node)
}

// Result executes the query and returns the raw executor result, letting a
// caller that doesn't know ahead of time whether the query is row- or
// group-shaped (the SQL front end, building a plan from arbitrary SELECT
// text) inspect Result.Rows/Groups/Scalar itself rather than committing to
// one of the typed terminal operators below.
func (q *Query) Result(ctx context.Context) (*exec.Result, error) {
	return q.exec(ctx, q.node)
}

// ToList materializes every row of a row-shaped query.
func (q *Query) ToList(ctx context.Context) ([]exec.Row, error) {
	res, err := q.exec(ctx, q.node)
	if err != nil {
		return nil, err
	}
	if res.Rows == nil {
		return nil, colqerr.New(colqerr.Unsupported, "ToList requires a row-shaped query (not GroupBy/Aggregate)")
	}
	return res.Rows, nil
}

// ToArray is ToList under another name, matching the LINQ surface's naming
// (Go slices serve both roles).
func (q *Query) ToArray(ctx context.Context) ([]exec.Row, error) { return q.ToList(ctx) }

// ToDictionary materializes rows keyed by the string form of keyColumn's
// value; a duplicate key overwrites an earlier row (last writer wins).
func (q *Query) ToDictionary(ctx context.Context, keyColumn string) (map[string]exec.Row, error) {
	rows, err := q.ToList(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]exec.Row, len(rows))
	for _, r := range rows {
		out[fmt.Sprint(r[keyColumn])] = r
	}
	return out, nil
}

// Groups materializes a GroupBy query's per-group results.
func (q *Query) Groups(ctx context.Context) ([]agg.GroupResult, error) {
	res, err := q.exec(ctx, q.node)
	if err != nil {
		return nil, err
	}
	if res.Groups == nil {
		return nil, colqerr.New(colqerr.Unsupported, "Groups requires a GroupBy query")
	}
	return res.Groups, nil
}

// First returns the first row, failing with EmptySequence if there is none.
func (q *Query) First(ctx context.Context) (exec.Row, error) {
	rows, err := q.Take(1).ToList(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, colqerr.New(colqerr.EmptySequence, "First on an empty sequence")
	}
	return rows[0], nil
}

// FirstOrDefault returns the first row, or an empty Row if there is none.
func (q *Query) FirstOrDefault(ctx context.Context) (exec.Row, error) {
	rows, err := q.Take(1).ToList(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return exec.Row{}, nil
	}
	return rows[0], nil
}

// Any reports whether the query produces at least one row.
func (q *Query) Any(ctx context.Context) (bool, error) {
	rows, err := q.Take(1).ToList(ctx)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Count returns the number of rows the query produces.
func (q *Query) Count(ctx context.Context) (int, error) {
	res, err := q.exec(ctx, plan.NewAggregate(q.node, agg.AggSpec{Name: "count", Func: agg.AggCount}))
	if err != nil {
		return 0, err
	}
	return int(res.Scalar["count"].(float64)), nil
}

// LongCount is Count widened to int64, matching the LINQ surface's naming.
func (q *Query) LongCount(ctx context.Context) (int64, error) {
	c, err := q.Count(ctx)
	return int64(c), err
}

func (q *Query) scalarAgg(ctx context.Context, column string, fn agg.AggFuncKind) (float64, error) {
	res, err := q.exec(ctx, plan.NewAggregate(q.node, agg.AggSpec{Name: "v", Column: column, Func: fn}))
	if err != nil {
		return 0, err
	}
	switch v := res.Scalar["v"].(type) {
	case float64:
		return v, nil
	case store.Decimal128:
		return v.Float64(), nil
	default:
		return 0, colqerr.New(colqerr.TypeMismatch, "aggregate result was not numeric")
	}
}

func (q *Query) Sum(ctx context.Context, column string) (float64, error) {
	return q.scalarAgg(ctx, column, agg.AggSum)
}
func (q *Query) Average(ctx context.Context, column string) (float64, error) {
	return q.scalarAgg(ctx, column, agg.AggAvg)
}
func (q *Query) Min(ctx context.Context, column string) (float64, error) {
	return q.scalarAgg(ctx, column, agg.AggMin)
}
func (q *Query) Max(ctx context.Context, column string) (float64, error) {
	return q.scalarAgg(ctx, column, agg.AggMax)
}
