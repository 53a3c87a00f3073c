// Package plan implements the logical query plan: a small tagged tree of
// Scan/Filter/Project/GroupBy/Aggregate/Distinct/Sort/Limit/Offset nodes,
// each carrying a cached estimatedRows derived bottom-up. The optimizer
// (internal/optimizer) rewrites this tree in place; the physical planner
// (internal/physical) walks the rewritten tree and attaches an execution
// strategy per node.
//
// Row-count estimation:
//
//	Scan       = the batch's actual row count (no estimation needed)
//	Filter     = input rows × selectivity
//	Project    = input rows (pass-through)
//	GroupBy    = sqrt(input rows), floor 1
//	Aggregate  = 1 (a single scalar row)
//	Distinct   = input rows / 2
//	Sort       = input rows (pass-through)
//	Limit      = min(limit, input rows)
//	Offset     = max(input rows - offset, 0)
//
// These are deliberately crude heuristics — approximate, not a query
// planner's cost model — used only to pick between Sequential/SIMD/Parallel
// strategies and to decide whether a rewrite (e.g. limit pushdown) is safe.
package plan

import (
	"math"

	"colq/internal/agg"
	"colq/internal/predicate"
	"colq/internal/store"
	"colq/internal/zonemap"
)

// Kind tags the concrete type of a Node without a type switch at every call
// site; Kind() is cheap and stable across optimizer rewrites.
type Kind int

const (
	KindScan Kind = iota
	KindFilter
	KindProject
	KindGroupBy
	KindAggregate
	KindDistinct
	KindSort
	KindLimit
	KindOffset
)

func (k Kind) String() string {
	switch k {
	case KindScan:
		return "Scan"
	case KindFilter:
		return "Filter"
	case KindProject:
		return "Project"
	case KindGroupBy:
		return "GroupBy"
	case KindAggregate:
		return "Aggregate"
	case KindDistinct:
		return "Distinct"
	case KindSort:
		return "Sort"
	case KindLimit:
		return "Limit"
	case KindOffset:
		return "Offset"
	default:
		return "?"
	}
}

// Strategy is the execution strategy the physical planner (internal/
// physical) chooses for a Filter or Aggregate node.
type Strategy int

const (
	StrategyUnset Strategy = iota
	StrategySequential
	StrategySIMD
	StrategyParallel
	// StrategyCompiled names the compiled fused-closure path. No code path
	// selects it: the physical planner and the adaptive tracker's heuristic
	// choose only among the three above, and the tracker only learns
	// strategies it has run. A node set to it runs the same inline filter
	// pass as Sequential/SIMD.
	StrategyCompiled
)

func (s Strategy) String() string {
	switch s {
	case StrategySequential:
		return "Sequential"
	case StrategySIMD:
		return "SIMD"
	case StrategyParallel:
		return "Parallel"
	case StrategyCompiled:
		return "Compiled"
	default:
		return "Unset"
	}
}

// GroupStrategy is the execution strategy chosen for a GroupBy node.
type GroupStrategy int

const (
	GroupStrategyUnset GroupStrategy = iota
	HashAggregate
	SortedAggregate
)

func (s GroupStrategy) String() string {
	switch s {
	case HashAggregate:
		return "HashAggregate"
	case SortedAggregate:
		return "SortedAggregate"
	default:
		return "Unset"
	}
}

// Node is the shared contract for every plan node. Nodes are produced
// fresh per query and mutated in place by the optimizer; once optimized, a
// tree may be stored in the root package's plan cache and reused by later
// queries with the same fingerprint. EstimatedRows is cached rather than recomputed per read
// since it may be read many times during one optimization fixpoint.
type Node interface {
	Kind() Kind
	Children() []Node
	EstimatedRows() float64
	setEstimatedRows(float64)
}

// base is embedded by every concrete node and carries the cached estimate.
type base struct {
	estRows float64
}

func (b *base) EstimatedRows() float64    { return b.estRows }
func (b *base) setEstimatedRows(v float64) { b.estRows = v }

// Scan reads an entire batch. ChunkMask, when non-nil, is a per-chunk
// keep/skip mask attached by the optimizer's zone-map pruning pass; nil
// means "no pruning attempted or every chunk survived".
type Scan struct {
	base
	Batch     *store.Batch
	ZoneMap   *zonemap.ZoneMap
	ChunkMask []bool
}

func NewScan(batch *store.Batch) *Scan {
	s := &Scan{Batch: batch}
	s.estRows = float64(batch.RowCount())
	return s
}

func (s *Scan) Kind() Kind        { return KindScan }
func (s *Scan) Children() []Node  { return nil }

// Filter restricts rows to those satisfying every predicate in Predicates:
// an implicit AND across the slice, since chained filters are cumulative.
// Selectivity is the optimizer's current estimate in [0,1];
// EstimateRows uses it directly, so re-running EstimateRows after the
// optimizer revises Selectivity (from zone-map/column statistics) updates
// the cached row count too.
type Filter struct {
	base
	Input       Node
	Predicates  []predicate.Predicate
	Selectivity float64
	// Strategy is filled in by the physical planner (internal/physical);
	// zero value (StrategyUnset) before that pass runs.
	Strategy Strategy
}

// NewFilter defaults Selectivity to a conservative 0.5 per predicate,
// multiplicatively, until the optimizer narrows it from real statistics.
func NewFilter(input Node, preds ...predicate.Predicate) *Filter {
	sel := 1.0
	for range preds {
		sel *= 0.5
	}
	f := &Filter{Input: input, Predicates: preds, Selectivity: sel}
	EstimateRows(f)
	return f
}

func (f *Filter) Kind() Kind       { return KindFilter }
func (f *Filter) Children() []Node { return []Node{f.Input} }

// ProjectedColumn is one output column of a Project node: either a direct
// passthrough of an input column (Source set, Compute nil) or a computed
// expression (Compute set) that the optimizer never pushes predicates
// through and the physical planner never vectorizes — computed columns are
// always evaluated row-by-row at materialization time.
type ProjectedColumn struct {
	Name     string
	Source   string
	Compute  func(batch *store.Batch, row int) (any, error)
}

// Project narrows/renames/derives columns. A Project whose Columns are all
// plain passthroughs (every ProjectedColumn.Compute == nil) is safe for the
// optimizer to push filters and limits through; one with any computed
// column is not.
type Project struct {
	base
	Input   Node
	Columns []ProjectedColumn
}

func NewProject(input Node, columns ...ProjectedColumn) *Project {
	p := &Project{Input: input, Columns: columns}
	EstimateRows(p)
	return p
}

func (p *Project) Kind() Kind       { return KindProject }
func (p *Project) Children() []Node { return []Node{p.Input} }

// IsPassthrough reports whether every output column is a direct column
// reference, with no computed expression — the condition under which
// predicate/limit pushdown below a Project is legal.
func (p *Project) IsPassthrough() bool {
	for _, c := range p.Columns {
		if c.Compute != nil {
			return false
		}
	}
	return true
}

// GroupBy partitions rows by KeyColumn (a single dictionary or discrete
// column) and computes Aggregates per group.
type GroupBy struct {
	base
	Input      Node
	KeyColumn  string
	Aggregates []agg.AggSpec
	// HavingKeys, when non-nil, restricts the emitted groups to those whose
	// key string is in this set. Documented HAVING limitation: only the
	// group key can be filtered, never an aggregate value (see DESIGN.md
	// Open Question decision).
	HavingKeys map[string]bool
	// OrderedOutputRequested is set by the query/SQL builder when the
	// caller explicitly asked for grouped output in key order (e.g. a
	// GroupBy immediately followed by an OrderBy on the same key with no
	// intervening operator). The physical planner only considers
	// SortedAggregate when this is true and no later Sort exists over it.
	OrderedOutputRequested bool
	// Strategy is filled in by the physical planner.
	Strategy GroupStrategy
}

func NewGroupBy(input Node, keyColumn string, aggregates ...agg.AggSpec) *GroupBy {
	g := &GroupBy{Input: input, KeyColumn: keyColumn, Aggregates: aggregates}
	EstimateRows(g)
	return g
}

func (g *GroupBy) Kind() Kind       { return KindGroupBy }
func (g *GroupBy) Children() []Node { return []Node{g.Input} }

// Aggregate computes a single ungrouped scalar reduction per AggSpec (e.g.
// the whole-result Sum/Count/Avg the LINQ surface's terminal operators
// produce), always yielding exactly one output row.
type Aggregate struct {
	base
	Input      Node
	Aggregates []agg.AggSpec
	// Strategy is filled in by the physical planner.
	Strategy Strategy
}

func NewAggregate(input Node, aggregates ...agg.AggSpec) *Aggregate {
	a := &Aggregate{Input: input, Aggregates: aggregates}
	EstimateRows(a)
	return a
}

func (a *Aggregate) Kind() Kind       { return KindAggregate }
func (a *Aggregate) Children() []Node { return []Node{a.Input} }

// Distinct removes duplicate rows, compared over Columns (empty Columns
// means "every output column", a whole-row distinct).
type Distinct struct {
	base
	Input   Node
	Columns []string
	// InputSorted is set by the optimizer's distinct-of-sort collapse when
	// Input is already a Sort over the same rows: the physical planner can
	// then dedupe by comparing adjacent rows instead of building a hash
	// set.
	InputSorted bool
}

func NewDistinct(input Node, columns ...string) *Distinct {
	d := &Distinct{Input: input, Columns: columns}
	EstimateRows(d)
	return d
}

func (d *Distinct) Kind() Kind       { return KindDistinct }
func (d *Distinct) Children() []Node { return []Node{d.Input} }

// SortKey is one OrderBy/ThenBy clause.
type SortKey struct {
	Column     string
	Descending bool
}

// Sort orders rows by Keys, stably: ThenBy refines ties, never reorders
// rows already distinguished by an earlier key.
type Sort struct {
	base
	Input Node
	Keys  []SortKey
}

func NewSort(input Node, keys ...SortKey) *Sort {
	s := &Sort{Input: input, Keys: keys}
	EstimateRows(s)
	return s
}

func (s *Sort) Kind() Kind       { return KindSort }
func (s *Sort) Children() []Node { return []Node{s.Input} }

// Limit caps the output to the first N rows of its input.
type Limit struct {
	base
	Input Node
	N     int
}

func NewLimit(input Node, n int) *Limit {
	l := &Limit{Input: input, N: n}
	EstimateRows(l)
	return l
}

func (l *Limit) Kind() Kind       { return KindLimit }
func (l *Limit) Children() []Node { return []Node{l.Input} }

// Offset skips the first N rows of its input.
type Offset struct {
	base
	Input Node
	N     int
}

func NewOffset(input Node, n int) *Offset {
	o := &Offset{Input: input, N: n}
	EstimateRows(o)
	return o
}

func (o *Offset) Kind() Kind       { return KindOffset }
func (o *Offset) Children() []Node { return []Node{o.Input} }

// EstimateRows recomputes and caches n's estimatedRows from its (already
// estimated) children, per the formulas in the package doc comment. Callers
// must estimate children before parents; the New* constructors do this
// automatically for a freshly built single node, and Recompute walks an
// entire tree bottom-up for use after an optimizer rewrite changes a
// subtree's shape or a Filter's Selectivity.
func EstimateRows(n Node) {
	switch t := n.(type) {
	case *Scan:
		t.setEstimatedRows(float64(t.Batch.RowCount()))
	case *Filter:
		in := inputRows(t.Input)
		t.setEstimatedRows(in * clamp01(t.Selectivity))
	case *Project:
		t.setEstimatedRows(inputRows(t.Input))
	case *GroupBy:
		in := inputRows(t.Input)
		t.setEstimatedRows(math.Max(1, math.Sqrt(in)))
	case *Aggregate:
		t.setEstimatedRows(1)
	case *Distinct:
		in := inputRows(t.Input)
		t.setEstimatedRows(math.Max(1, in/2))
	case *Sort:
		t.setEstimatedRows(inputRows(t.Input))
	case *Limit:
		in := inputRows(t.Input)
		t.setEstimatedRows(math.Min(float64(t.N), in))
	case *Offset:
		in := inputRows(t.Input)
		t.setEstimatedRows(math.Max(in-float64(t.N), 0))
	}
}

func inputRows(n Node) float64 {
	if n == nil {
		return 0
	}
	return n.EstimatedRows()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Recompute walks the tree rooted at n bottom-up, re-deriving every cached
// estimatedRows. Used by the optimizer after a rewrite pass changes node
// shape (e.g. filter merging) or Selectivity (zone-map/column-statistics
// re-estimation) so estimates downstream of the change stay consistent.
func Recompute(n Node) {
	if n == nil {
		return
	}
	for _, c := range n.Children() {
		Recompute(c)
	}
	EstimateRows(n)
}

// Walk visits every node in the tree rooted at n, pre-order, calling fn on
// each. fn has no return value, so the walk always visits every node; it
// exists purely for read-only visitors.
func Walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}
