// Package physical implements the physical planner: a single top-down
// pass over an already-optimized logical plan that annotates each
// Filter/Aggregate/GroupBy node with the execution strategy the executor
// should use. Unlike the optimizer, this pass never reshapes the tree —
// it only writes Strategy/Strategy/GroupStrategy fields the executor
// reads.
package physical

import (
	"colq/internal/agg"
	"colq/internal/plan"
)

// Options' zero value normalizes to the engine's documented literal
// constants; a caller wanting the configured ParallelRowThreshold/
// SIMDRowThreshold to actually drive strategy selection builds an Options
// from internal/config.Config and passes it to Annotate directly, the way
// the root package's runner does.
type Options struct {
	ParallelRowThreshold int
	SIMDRowThreshold     int
	SIMDAvailable        bool
}

func (o Options) normalized() Options {
	if o.ParallelRowThreshold <= 0 {
		o.ParallelRowThreshold = 50_000
	}
	if o.SIMDRowThreshold <= 0 {
		o.SIMDRowThreshold = 1_000
	}
	return o
}

// DefaultOptions assumes SIMD is available, matching the usual deployment
// target (amd64/arm64 with vectorized primitive kernels); callers on
// hardware without it should pass Options{SIMDAvailable: false}.
func DefaultOptions() Options {
	return Options{SIMDAvailable: true}.normalized()
}

// Annotate walks root top-down, assigning a Strategy to every Filter and
// Aggregate node and a GroupStrategy to every GroupBy node. Row-count
// thresholds are read from each node's Input.EstimatedRows() — the rows
// flowing into the node, not its own estimated output.
func Annotate(root plan.Node, opts Options) {
	opts = opts.normalized()
	annotate(root, opts, false)
}

func annotate(n plan.Node, opts Options, ancestorSort bool) {
	if n == nil {
		return
	}

	nextAncestorSort := ancestorSort
	switch t := n.(type) {
	case *plan.Sort:
		nextAncestorSort = true

	case *plan.Filter:
		t.Strategy = filterStrategy(t, opts)

	case *plan.Aggregate:
		t.Strategy = aggregateStrategy(t, opts)

	case *plan.GroupBy:
		t.Strategy = groupByStrategy(t, ancestorSort)
	}

	for _, c := range n.Children() {
		annotate(c, opts, nextAncestorSort)
	}
}

func filterStrategy(f *plan.Filter, opts Options) plan.Strategy {
	rows := inputRows(f.Input)
	switch {
	case rows >= float64(opts.ParallelRowThreshold) && len(f.Predicates) > 1:
		return plan.StrategyParallel
	case rows >= float64(opts.SIMDRowThreshold) && opts.SIMDAvailable:
		return plan.StrategySIMD
	default:
		return plan.StrategySequential
	}
}

func aggregateStrategy(a *plan.Aggregate, opts Options) plan.Strategy {
	if isBareCount(a.Aggregates) {
		return plan.StrategySequential
	}
	rows := inputRows(a.Input)
	switch {
	case rows >= float64(opts.ParallelRowThreshold):
		return plan.StrategyParallel
	case rows >= float64(opts.SIMDRowThreshold):
		return plan.StrategySIMD
	default:
		return plan.StrategySequential
	}
}

func isBareCount(specs []agg.AggSpec) bool {
	return len(specs) == 1 && specs[0].Func == agg.AggCount && specs[0].Column == ""
}

func groupByStrategy(g *plan.GroupBy, ancestorSort bool) plan.GroupStrategy {
	if g.OrderedOutputRequested && !ancestorSort {
		return plan.SortedAggregate
	}
	return plan.HashAggregate
}

func inputRows(n plan.Node) float64 {
	if n == nil {
		return 0
	}
	return n.EstimatedRows()
}
