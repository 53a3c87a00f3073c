// Package optimizer rewrites a logical plan to fixpoint: filter merging,
// predicate pushdown below Project, constant folding, zone-map pruning
// attachment, selectivity re-estimation from the attached zone map, limit
// pushdown, and the distinct-of-sort collapse. Every rewrite preserves
// query semantics; only Limit-below-Filter is a documented approximation
// (pushed only when the filter is estimated ≥50% selective), trading a
// small amount of result-set accuracy for the ability to short-circuit
// scanning early.
package optimizer

import (
	"colq/internal/plan"
	"colq/internal/predicate"
	"colq/internal/zonemap"
)

const maxPasses = 16

// Optimize rewrites root to fixpoint (or maxPasses, whichever comes first —
// real query trees are shallow enough that fixpoint is reached in a handful
// of passes; the cap only guards against a rewrite-rule bug looping) and
// returns the (possibly different) new root with estimatedRows recomputed
// throughout.
func Optimize(root plan.Node) plan.Node {
	for i := 0; i < maxPasses; i++ {
		rewritten, changed := rewrite(root)
		root = rewritten
		if !changed {
			break
		}
	}
	plan.Recompute(root)
	return root
}

func rewrite(n plan.Node) (plan.Node, bool) {
	if n == nil {
		return nil, false
	}

	switch t := n.(type) {
	case *plan.Scan:
		return t, false

	case *plan.Filter:
		return rewriteFilter(t)

	case *plan.Project:
		newInput, changed := rewrite(t.Input)
		t.Input = newInput
		return t, changed

	case *plan.GroupBy:
		newInput, changed := rewrite(t.Input)
		t.Input = newInput
		return t, changed

	case *plan.Aggregate:
		newInput, changed := rewrite(t.Input)
		t.Input = newInput
		return t, changed

	case *plan.Distinct:
		return rewriteDistinct(t)

	case *plan.Sort:
		newInput, changed := rewrite(t.Input)
		t.Input = newInput
		return t, changed

	case *plan.Limit:
		return rewriteLimit(t)

	case *plan.Offset:
		newInput, changed := rewrite(t.Input)
		t.Input = newInput
		return t, changed

	default:
		return n, false
	}
}

func rewriteFilter(f *plan.Filter) (plan.Node, bool) {
	newInput, changed := rewrite(f.Input)
	f.Input = newInput

	// Rule 3a: drop trivially-true predicates (currently only an empty
	// *predicate.And).
	kept := f.Predicates[:0:0]
	for _, p := range f.Predicates {
		if isTriviallyTrue(p) {
			changed = true
			continue
		}
		kept = append(kept, p)
	}
	f.Predicates = kept

	// Rule 3b: a trivially-false predicate anywhere in the chain makes the
	// whole Filter produce zero rows; replace the subtree with
	// emptyScanLike's zero-row stand-in, a Limit(0) over the same input.
	for _, p := range f.Predicates {
		if isTriviallyFalse(p) {
			return emptyScanLike(f.Input), true
		}
	}

	if len(f.Predicates) == 0 {
		// Rule 3a fully emptied the predicate list: the Filter is a no-op.
		return f.Input, true
	}

	// Rule 1: merge with an immediately nested Filter.
	if inner, ok := f.Input.(*plan.Filter); ok {
		merged := append(append([]predicate.Predicate{}, inner.Predicates...), f.Predicates...)
		nf := plan.NewFilter(inner.Input, merged...)
		return rewrite(nf)
	}

	// Rule 2: push below a passthrough Project when every predicate column
	// is one of the Project's output names (so it maps onto an input column
	// directly via Source).
	if proj, ok := f.Input.(*plan.Project); ok && proj.IsPassthrough() && allColumnsPassthrough(f.Predicates, proj) {
		nf := plan.NewFilter(proj.Input, remapThroughProject(f.Predicates, proj)...)
		np := plan.NewProject(nf, proj.Columns...)
		return rewrite(np)
	}

	// Rule 4 + 5: attach zone-map pruning to an underlying Scan and use the
	// resulting chunk-survival fraction as a statistics-based selectivity
	// re-estimate.
	if scan, ok := f.Input.(*plan.Scan); ok && scan.ZoneMap != nil {
		pruners := collectPruners(f.Predicates)
		if len(pruners) > 0 {
			mask := scan.ZoneMap.Prune(scan.Batch.RowCount(), pruners)
			scan.ChunkMask = mask
			if surviving, total := countMask(mask); total > 0 {
				f.Selectivity = float64(surviving) / float64(total)
				changed = true
			}
		}
	}

	plan.EstimateRows(f)
	return f, changed
}

func rewriteDistinct(d *plan.Distinct) (plan.Node, bool) {
	newInput, changed := rewrite(d.Input)
	d.Input = newInput

	// Distinct(Distinct(x)) == Distinct(x): idempotent.
	if inner, ok := d.Input.(*plan.Distinct); ok {
		nd := plan.NewDistinct(inner.Input, d.Columns...)
		return rewrite(nd)
	}

	// Rule 7: distinct-of-sort collapses into a single sorted-unique pass —
	// the physical planner can walk Sort's already-ordered output comparing
	// adjacent rows instead of building a hash set, so this is recorded as
	// an annotation rather than a tree rewrite (the Sort node still has to
	// run; nothing downstream needs a different shape).
	if _, ok := d.Input.(*plan.Sort); ok {
		d.InputSorted = true
		changed = true
	}

	return d, changed
}

func rewriteLimit(l *plan.Limit) (plan.Node, bool) {
	newInput, changed := rewrite(l.Input)
	l.Input = newInput

	if inner, ok := l.Input.(*plan.Limit); ok {
		n := inner.N
		if l.N < n {
			n = l.N
		}
		nl := plan.NewLimit(inner.Input, n)
		return rewrite(nl)
	}

	// Rule 6, first half: Limit always safely pushes below a passthrough
	// Project (projection doesn't change row count or order).
	if proj, ok := l.Input.(*plan.Project); ok && proj.IsPassthrough() {
		nl := plan.NewLimit(proj.Input, l.N)
		np := plan.NewProject(nl, proj.Columns...)
		return rewrite(np)
	}

	// Rule 6, second half: Limit pushes below Filter only when the filter
	// is estimated ≥50% selective — an approximation that trades a little
	// result-set precision for early termination when the filter is
	// unlikely to discard much.
	if f, ok := l.Input.(*plan.Filter); ok && f.Selectivity >= 0.5 {
		nl := plan.NewLimit(f.Input, l.N)
		nf := plan.NewFilter(nl, f.Predicates...)
		nf.Selectivity = f.Selectivity
		plan.EstimateRows(nf)
		return rewrite(nf)
	}

	return l, changed
}

// isTriviallyTrue reports whether p always matches, regardless of row
// content — currently only an empty And (the vacuous-conjunction case).
func isTriviallyTrue(p predicate.Predicate) bool {
	a, ok := p.(*predicate.And)
	return ok && len(a.Children) == 0
}

// isTriviallyFalse reports whether p never matches any row — currently
// only an empty Or (the vacuous-disjunction case).
func isTriviallyFalse(p predicate.Predicate) bool {
	o, ok := p.(*predicate.Or)
	return ok && len(o.Children) == 0
}

// emptyScanLike represents "this subtree provably produces zero rows":
// a trivially-false predicate replaces the subtree with an empty scan.
// Rather than fabricating a zero-row Batch with a matching
// Schema — extra bookkeeping for no behavioral difference — this wraps the
// existing subtree in Limit(0): every physical strategy and every executor
// path already has to handle "limit reached after zero rows" correctly, so
// no node type needs to special-case an empty-scan shape.
func emptyScanLike(input plan.Node) plan.Node {
	return plan.NewLimit(input, 0)
}

// allColumnsPassthrough reports whether every column a predicate reads is
// both an output of proj and unrenamed (Source == Name) — the condition
// under which the predicate still resolves correctly once evaluated
// against proj's input schema instead of its output schema — its columns
// are preserved unrenamed.
func allColumnsPassthrough(preds []predicate.Predicate, proj *plan.Project) bool {
	unrenamed := make(map[string]bool, len(proj.Columns))
	for _, c := range proj.Columns {
		if c.Source == c.Name {
			unrenamed[c.Name] = true
		}
	}
	for _, p := range preds {
		for _, col := range p.Columns() {
			if !unrenamed[col] {
				return false
			}
		}
	}
	return true
}

// remapThroughProject is a no-op today: pushed-down predicates reference
// output names, and allColumnsPassthrough has already checked that every
// column they read is output unrenamed (Source == Name), so those names
// resolve the same against proj's input. Kept as a named step so a future
// renaming Project only needs a lookup table added here, not a change to
// the rewrite rule itself.
func remapThroughProject(preds []predicate.Predicate, _ *plan.Project) []predicate.Predicate {
	return preds
}

func collectPruners(preds []predicate.Predicate) []zonemap.Pruner {
	var out []zonemap.Pruner
	for _, p := range preds {
		if pr, ok := p.(zonemap.Pruner); ok {
			if _, supported := pr.PruneColumn(); supported {
				out = append(out, pr)
			}
		}
	}
	return out
}

func countMask(mask []bool) (surviving, total int) {
	total = len(mask)
	for _, v := range mask {
		if v {
			surviving++
		}
	}
	return surviving, total
}
