// Package exec is the interpreted glue between an optimized, physically
// annotated logical plan (internal/plan) and a concrete result: it walks
// the tree bottom-up, drives internal/predicate (optionally via
// internal/compile's fused closures) to narrow a internal/bitmap
// selection, drives internal/agg for Aggregate/GroupBy nodes, and
// materializes Sort/Distinct/Limit/Offset/terminal output as ordered Row
// values.
package exec

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"colq/internal/agg"
	"colq/internal/bitmap"
	"colq/internal/colqerr"
	"colq/internal/compile"
	"colq/internal/plan"
	"colq/internal/predicate"
	"colq/internal/store"
)

// Options controls the executor's runtime behaviour; it is the
// internal/config.Config view the executor actually consumes.
type Options struct {
	EnableCompiledPredicates bool
	EnableParallelExecution  bool
	ParallelChunkRows        int
	MaxWorkers               int
	RowThreshold             int
}

func (o Options) normalized() Options {
	if o.ParallelChunkRows <= 0 {
		o.ParallelChunkRows = 65_536
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 1
	}
	return o
}

func (o Options) aggOptions(parallel bool) agg.Options {
	return agg.Options{
		Parallel:     parallel && o.EnableParallelExecution,
		RowThreshold: o.RowThreshold,
		ChunkRows:    o.ParallelChunkRows,
		MaxWorkers:   o.MaxWorkers,
	}
}

// Row is one materialized output record, column name -> value. Nulls are
// represented as a nil entry (absent key also means null/unavailable).
type Row map[string]any

// Result is what Run returns: exactly one of Rows, Groups, or Scalar is
// meaningful. Kind names the root node that produced it, not which field
// is set: a Sort, Limit or Offset over a GroupBy carries Groups.
type Result struct {
	Kind    plan.Kind
	Rows    []Row
	Groups  []agg.GroupResult
	Scalar  Row
}

// Run executes root (already optimizer-rewritten and physical-planner
// annotated) against its scan's batch and returns the materialized result.
func Run(ctx context.Context, root plan.Node, opts Options, compiler *compile.Compiler, logger *zap.Logger) (*Result, error) {
	opts = opts.normalized()
	if logger == nil {
		logger = zap.NewNop()
	}
	return dispatch(ctx, root, opts, compiler, logger)
}

func dispatch(ctx context.Context, n plan.Node, opts Options, compiler *compile.Compiler, logger *zap.Logger) (*Result, error) {
	switch t := n.(type) {
	case *plan.GroupBy:
		return runGroupBy(ctx, t, opts, compiler, logger)
	case *plan.Aggregate:
		return runAggregate(ctx, t, opts, compiler, logger)
	case *plan.Distinct:
		return runDistinct(ctx, t, opts, compiler, logger)
	case *plan.Sort:
		return runSort(ctx, t, opts, compiler, logger)
	case *plan.Limit:
		return runLimit(ctx, t, opts, compiler, logger)
	case *plan.Offset:
		return runOffset(ctx, t, opts, compiler, logger)
	case *plan.Project:
		return runProject(ctx, t, opts, compiler, logger)
	case *plan.Filter:
		batch, sel, err := runToSelection(ctx, t, opts, compiler, logger)
		if err != nil {
			return nil, err
		}
		defer sel.Release()
		return &Result{Kind: plan.KindFilter, Rows: materializeAll(batch, sel, nil)}, nil
	case *plan.Scan:
		batch, sel, err := runToSelection(ctx, t, opts, compiler, logger)
		if err != nil {
			return nil, err
		}
		defer sel.Release()
		return &Result{Kind: plan.KindScan, Rows: materializeAll(batch, sel, nil)}, nil
	default:
		return nil, colqerr.New(colqerr.Unsupported, "executor: unhandled plan node %T", n)
	}
}

// runToSelection resolves n down to (batch, selection bitmap), for the row-
// shaped nodes (Scan/Filter/Project-passthrough) that don't change row
// identity. The caller owns the returned bitmap and must Release it.
func runToSelection(ctx context.Context, n plan.Node, opts Options, compiler *compile.Compiler, logger *zap.Logger) (*store.Batch, *bitmap.Bitmap, error) {
	switch t := n.(type) {
	case *plan.Scan:
		return t.Batch, scanSelection(t), nil

	case *plan.Filter:
		batch, sel, err := runToSelection(ctx, t.Input, opts, compiler, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := applyFilter(ctx, batch, t, sel, opts, compiler, logger); err != nil {
			sel.Release()
			return nil, nil, err
		}
		return batch, sel, nil

	case *plan.Project:
		if !t.IsPassthrough() {
			return nil, nil, colqerr.New(colqerr.Unsupported, "executor: computed Project is only reachable at materialization, not selection")
		}
		return runToSelection(ctx, t.Input, opts, compiler, logger)

	default:
		return nil, nil, colqerr.New(colqerr.Unsupported, "executor: %T cannot be evaluated as a row selection", n)
	}
}

// scanSelection builds the initial all-candidate-rows bitmap, honoring any
// zone-map chunk mask the optimizer attached. A false positive — failing
// to exclude a chunk — is fine, since the predicate evaluation below still
// re-checks every row in a surviving chunk.
func scanSelection(s *plan.Scan) *bitmap.Bitmap {
	n := s.Batch.RowCount()
	sel := bitmap.Acquire(n, true)
	if s.ChunkMask == nil || s.ZoneMap == nil {
		return sel
	}
	chunkRows := s.ZoneMap.ChunkRows
	for chunkIdx, survives := range s.ChunkMask {
		if survives {
			continue
		}
		start := chunkIdx * chunkRows
		end := start + chunkRows
		if end > n {
			end = n
		}
		for row := start; row < end; row++ {
			sel.Clear(row)
		}
	}
	return sel
}

// applyFilter narrows sel in place according to f.Strategy.
func applyFilter(ctx context.Context, batch *store.Batch, f *plan.Filter, sel *bitmap.Bitmap, opts Options, compiler *compile.Compiler, logger *zap.Logger) error {
	if len(f.Predicates) == 0 {
		return nil
	}

	if f.Strategy == plan.StrategyParallel && opts.EnableParallelExecution {
		return applyFilterParallel(ctx, batch, f.Predicates, sel, opts)
	}
	return applyFilterInline(batch, f.Predicates, sel, opts, compiler, logger)
}

// applyFilterInline tries the compiled fused closure first (Sequential and
// SIMD strategies both run the interpreted evaluator's own dense/sparse
// dispatch internally — the distinction between them is the row-count
// threshold the physical planner used to choose this path, not a different
// code path here), falling back to the interpreter for the whole predicate
// list on any compile error — the fallback is transparent to the caller,
// logged at Warn rather than surfaced as an error.
func applyFilterInline(batch *store.Batch, preds []predicate.Predicate, sel *bitmap.Bitmap, opts Options, compiler *compile.Compiler, logger *zap.Logger) error {
	if opts.EnableCompiledPredicates && compiler != nil {
		if fn, err := compiler.Compile(batch, preds); err == nil {
			sel.FilterInPlace(fn)
			return nil
		} else {
			logger.Warn("compiled predicate builder fell back to interpreter", zap.Error(err))
		}
	}
	for _, p := range preds {
		if err := p.Evaluate(batch, sel); err != nil {
			return err
		}
	}
	return nil
}

// applyFilterParallel splits sel's row range into opts.ParallelChunkRows
// chunks and evaluates preds against each chunk's own masked copy
// concurrently — data-parallel, worker-pool-bounded, no shared mutable
// state between chunks — merging the per-chunk survivors back into sel.
func applyFilterParallel(ctx context.Context, batch *store.Batch, preds []predicate.Predicate, sel *bitmap.Bitmap, opts Options) error {
	n := sel.Len()
	chunkRows := opts.ParallelChunkRows
	numChunks := (n + chunkRows - 1) / chunkRows
	if numChunks <= 1 {
		for _, p := range preds {
			if err := p.Evaluate(batch, sel); err != nil {
				return err
			}
		}
		return nil
	}

	chunkResults := make([]*bitmap.Bitmap, numChunks)
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxWorkers)

	for i := 0; i < numChunks; i++ {
		i := i
		start := i * chunkRows
		end := start + chunkRows
		if end > n {
			end = n
		}
		g.Go(func() error {
			chunkSel := sel.Clone()
			chunkSel.FilterInPlace(func(row int) bool { return row >= start && row < end })
			for _, p := range preds {
				if err := p.Evaluate(batch, chunkSel); err != nil {
					chunkSel.Release()
					return err
				}
			}
			chunkResults[i] = chunkSel
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, c := range chunkResults {
			if c != nil {
				c.Release()
			}
		}
		return err
	}

	merged := bitmap.Acquire(n, false)
	for _, c := range chunkResults {
		_ = merged.Or(c)
		c.Release()
	}
	empty := bitmap.Acquire(n, false)
	_ = sel.And(empty)
	empty.Release()
	_ = sel.Or(merged)
	merged.Release()
	return nil
}

// runProject takes the fast path — resolving straight to a (batch,
// selection) pair — whenever its input is a Scan/Filter/passthrough-Project
// chain, avoiding materializing every column before the projection narrows
// them. Any other input shape (Sort/Limit/Offset/Distinct/GroupBy, or a
// computed Project) has already been materialized into Rows by the time it
// reaches here, so Project falls back to remapping those Rows directly;
// that path only supports plain column rename/passthrough (Source set),
// since a Compute column needs the original (batch, row) pair that row
// materialization has already discarded.
func runProject(ctx context.Context, p *plan.Project, opts Options, compiler *compile.Compiler, logger *zap.Logger) (*Result, error) {
	if batch, sel, ok, err := resolveSelectionThroughProject(ctx, p.Input, opts, compiler, logger); ok {
		if err != nil {
			return nil, err
		}
		defer sel.Release()
		return &Result{Kind: plan.KindProject, Rows: materializeAll(batch, sel, p.Columns)}, nil
	}

	input, err := dispatch(ctx, p.Input, opts, compiler, logger)
	if err != nil {
		return nil, err
	}
	if input.Rows == nil {
		return nil, colqerr.New(colqerr.Unsupported, "Project requires a row-shaped input")
	}
	rows := make([]Row, len(input.Rows))
	for i, r := range input.Rows {
		out := Row{}
		for _, c := range p.Columns {
			if c.Compute != nil {
				return nil, colqerr.New(colqerr.Unsupported, "computed Project columns require a direct Scan/Filter input")
			}
			out[c.Name] = r[c.Source]
		}
		rows[i] = out
	}
	return &Result{Kind: plan.KindProject, Rows: rows}, nil
}

// resolveSelectionThroughProject reports ok=false (no error) when n's shape
// isn't a Scan/Filter/Project chain, so the caller can fall back to the
// general materialized-Rows path instead of treating it as a failure.
func resolveSelectionThroughProject(ctx context.Context, n plan.Node, opts Options, compiler *compile.Compiler, logger *zap.Logger) (*store.Batch, *bitmap.Bitmap, bool, error) {
	switch t := n.(type) {
	case *plan.Project:
		if !t.IsPassthrough() {
			return nil, nil, false, nil
		}
		return resolveSelectionThroughProject(ctx, t.Input, opts, compiler, logger)
	case *plan.Scan, *plan.Filter:
		batch, sel, err := runToSelection(ctx, n, opts, compiler, logger)
		return batch, sel, true, err
	default:
		return nil, nil, false, nil
	}
}

func materializeAll(batch *store.Batch, sel *bitmap.Bitmap, columns []plan.ProjectedColumn) []Row {
	rows := make([]Row, 0, sel.CountSet())
	for row := range sel.SelectedIndices() {
		rows = append(rows, materializeRow(batch, row, columns))
	}
	return rows
}

func materializeRow(batch *store.Batch, row int, columns []plan.ProjectedColumn) Row {
	out := Row{}
	if len(columns) == 0 {
		for i := 0; i < batch.Schema().Len(); i++ {
			field := batch.Schema().Field(i)
			out[field.Name] = columnValue(batch.Column(i), row)
		}
		return out
	}
	for _, c := range columns {
		if c.Compute != nil {
			v, err := c.Compute(batch, row)
			if err == nil {
				out[c.Name] = v
			}
			continue
		}
		col, err := batch.ColumnByName(c.Source)
		if err != nil {
			continue
		}
		out[c.Name] = columnValue(col, row)
	}
	return out
}

func columnValue(col store.Column, row int) any {
	if !col.IsValid(row) {
		return nil
	}
	switch c := col.(type) {
	case *store.Int8Column:
		return c.Value(row)
	case *store.Int16Column:
		return c.Value(row)
	case *store.Int32Column:
		return c.Value(row)
	case *store.Int64Column:
		return c.Value(row)
	case *store.Float32Column:
		return c.Value(row)
	case *store.Float64Column:
		return c.Value(row)
	case *store.Decimal128Column:
		return c.Value(row)
	case *store.BoolColumn:
		return c.Value(row)
	case *store.StringColumn:
		return c.Value(row)
	case *store.DateColumn:
		return c.Value(row)
	case *store.TimestampColumn:
		return c.Value(row)
	case *store.DictionaryColumn:
		return c.Value(row)
	default:
		return nil
	}
}

func runGroupBy(ctx context.Context, g *plan.GroupBy, opts Options, compiler *compile.Compiler, logger *zap.Logger) (*Result, error) {
	batch, sel, err := runToSelection(ctx, g.Input, opts, compiler, logger)
	if err != nil {
		return nil, err
	}
	defer sel.Release()

	groups, err := agg.GroupBy(batch, g.KeyColumn, sel, g.Aggregates)
	if err != nil {
		return nil, err
	}
	if g.HavingKeys != nil {
		filtered := groups[:0:0]
		for _, gr := range groups {
			if g.HavingKeys[gr.Key] {
				filtered = append(filtered, gr)
			}
		}
		groups = filtered
	}
	return &Result{Kind: plan.KindGroupBy, Groups: groups}, nil
}

func runAggregate(ctx context.Context, a *plan.Aggregate, opts Options, compiler *compile.Compiler, logger *zap.Logger) (*Result, error) {
	batch, sel, err := runToSelection(ctx, a.Input, opts, compiler, logger)
	if err != nil {
		return nil, err
	}
	defer sel.Release()

	parallel := a.Strategy == plan.StrategyParallel
	row := Row{}
	for _, spec := range a.Aggregates {
		if spec.Func == agg.AggCount && spec.Column == "" {
			row[spec.Name] = float64(sel.CountSet())
			continue
		}
		col, err := batch.ColumnByName(spec.Column)
		if err != nil {
			return nil, err
		}
		if dc, ok := col.(*store.Decimal128Column); ok {
			v, err := decimalAgg(dc, sel, spec.Func)
			if err != nil {
				return nil, err
			}
			row[spec.Name] = v
			continue
		}
		v, err := numericAgg(col, sel, spec.Func, opts.aggOptions(parallel))
		if err != nil {
			return nil, err
		}
		row[spec.Name] = v
	}
	return &Result{Kind: plan.KindAggregate, Scalar: row}, nil
}

func numericAgg(col store.Column, sel *bitmap.Bitmap, fn agg.AggFuncKind, opts agg.Options) (float64, error) {
	switch fn {
	case agg.AggSum:
		return agg.Sum(col, sel, opts)
	case agg.AggAvg:
		return agg.Avg(col, sel, opts)
	case agg.AggMin:
		return agg.Min(col, sel, opts)
	case agg.AggMax:
		return agg.Max(col, sel, opts)
	case agg.AggCount:
		return float64(agg.Count(col, sel)), nil
	default:
		return 0, colqerr.New(colqerr.Unsupported, "unknown aggregate function %d", fn)
	}
}

func decimalAgg(col *store.Decimal128Column, sel *bitmap.Bitmap, fn agg.AggFuncKind) (store.Decimal128, error) {
	switch fn {
	case agg.AggSum:
		return agg.SumDecimal(col, sel)
	case agg.AggAvg:
		return agg.AvgDecimal(col, sel)
	case agg.AggMin:
		return agg.MinDecimal(col, sel)
	case agg.AggMax:
		return agg.MaxDecimal(col, sel)
	case agg.AggCount:
		return store.NewDecimal128(int64(agg.Count(col, sel)), 0), nil
	default:
		return store.Decimal128{}, colqerr.New(colqerr.Unsupported, "unknown aggregate function %d", fn)
	}
}

func runDistinct(ctx context.Context, d *plan.Distinct, opts Options, compiler *compile.Compiler, logger *zap.Logger) (*Result, error) {
	input, err := dispatch(ctx, d.Input, opts, compiler, logger)
	if err != nil {
		return nil, err
	}
	if input.Rows == nil {
		return nil, colqerr.New(colqerr.Unsupported, "Distinct requires a row-shaped input")
	}

	seen := make(map[string]bool, len(input.Rows))
	out := make([]Row, 0, len(input.Rows))
	for _, row := range input.Rows {
		key := rowKey(row, d.Columns)
		if d.InputSorted {
			if len(out) > 0 && rowKey(out[len(out)-1], d.Columns) == key {
				continue
			}
			out = append(out, row)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return &Result{Kind: plan.KindDistinct, Rows: out}, nil
}

func rowKey(row Row, columns []string) string {
	if len(columns) == 0 {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		columns = keys
	}
	key := ""
	for _, c := range columns {
		key += sortableValue(row[c]) + "\x00"
	}
	return key
}

func runSort(ctx context.Context, s *plan.Sort, opts Options, compiler *compile.Compiler, logger *zap.Logger) (*Result, error) {
	input, err := dispatch(ctx, s.Input, opts, compiler, logger)
	if err != nil {
		return nil, err
	}
	if input.Groups != nil {
		groups := input.Groups
		sort.SliceStable(groups, func(i, j int) bool {
			for _, key := range s.Keys {
				a, b := groupSortValue(groups[i], key.Column), groupSortValue(groups[j], key.Column)
				if a == b {
					continue
				}
				if key.Descending {
					return a > b
				}
				return a < b
			}
			return false
		})
		return &Result{Kind: plan.KindSort, Groups: groups}, nil
	}
	if input.Rows == nil {
		return nil, colqerr.New(colqerr.Unsupported, "Sort requires a row-shaped input")
	}
	rows := input.Rows
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range s.Keys {
			a, b := sortableValue(rows[i][key.Column]), sortableValue(rows[j][key.Column])
			if a == b {
				continue
			}
			if key.Descending {
				return a > b
			}
			return a < b
		}
		return false
	})
	return &Result{Kind: plan.KindSort, Rows: rows}, nil
}

// groupSortValue resolves a Sort key against a grouped result: the literal
// key column name (or "key") compares the group key string, anything else
// looks up a named aggregate's value.
func groupSortValue(gr agg.GroupResult, column string) string {
	if column == "" || column == "key" {
		return "s:" + gr.Key
	}
	if d, ok := gr.Decimals[column]; ok {
		return numericSortKey(d.Float64())
	}
	return numericSortKey(gr.Values[column])
}

func runLimit(ctx context.Context, l *plan.Limit, opts Options, compiler *compile.Compiler, logger *zap.Logger) (*Result, error) {
	if l.N < 0 {
		return nil, colqerr.New(colqerr.InvalidArg, "Limit n must be >= 0, got %d", l.N)
	}
	input, err := dispatch(ctx, l.Input, opts, compiler, logger)
	if err != nil {
		return nil, err
	}
	if input.Groups != nil {
		n := l.N
		if n > len(input.Groups) {
			n = len(input.Groups)
		}
		return &Result{Kind: plan.KindLimit, Groups: input.Groups[:n]}, nil
	}
	if input.Rows == nil {
		return input, nil
	}
	n := l.N
	if n > len(input.Rows) {
		n = len(input.Rows)
	}
	return &Result{Kind: plan.KindLimit, Rows: input.Rows[:n]}, nil
}

func runOffset(ctx context.Context, o *plan.Offset, opts Options, compiler *compile.Compiler, logger *zap.Logger) (*Result, error) {
	if o.N < 0 {
		return nil, colqerr.New(colqerr.InvalidArg, "Offset n must be >= 0, got %d", o.N)
	}
	input, err := dispatch(ctx, o.Input, opts, compiler, logger)
	if err != nil {
		return nil, err
	}
	if input.Groups != nil {
		n := o.N
		if n > len(input.Groups) {
			n = len(input.Groups)
		}
		return &Result{Kind: plan.KindOffset, Groups: input.Groups[n:]}, nil
	}
	if input.Rows == nil {
		return input, nil
	}
	n := o.N
	if n > len(input.Rows) {
		n = len(input.Rows)
	}
	return &Result{Kind: plan.KindOffset, Rows: input.Rows[n:]}, nil
}

// sortableValue renders any materialized value as a byte-comparable string
// for Sort/Distinct keying. Numeric types are zero-padded by sign+exponent
// so lexical order matches numeric order; this is an executor-level
// convenience, never used on the hot predicate/aggregate paths.
func sortableValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "\x00nil"
	case string:
		return "s:" + t
	case bool:
		if t {
			return "b:1"
		}
		return "b:0"
	case store.Decimal128:
		return numericSortKey(t.Float64())
	default:
		if f, ok := toFloat64(v); ok {
			return numericSortKey(f)
		}
		return "?"
	}
}

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// numericSortKey maps a float64 onto a string that sorts lexically the same
// way the float sorts numerically, via IEEE-754 bit ordering: non-negative
// floats sort directly on their bit pattern, negative floats on the
// complement (so more-negative == lexically smaller).
func numericSortKey(f float64) string {
	bits := float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	return string([]byte{
		byte(bits >> 56), byte(bits >> 48), byte(bits >> 40), byte(bits >> 32),
		byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits),
	})
}

func float64bits(f float64) uint64 {
	return math.Float64bits(f)
}
