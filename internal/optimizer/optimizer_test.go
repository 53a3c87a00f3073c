package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colq/internal/agg"
	"colq/internal/fixture"
	"colq/internal/plan"
	"colq/internal/predicate"
	"colq/internal/zonemap"
)

func TestFilterMergeCombinesAdjacentFilters(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	inner := plan.NewFilter(s, &predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 20})
	outer := plan.NewFilter(inner, &predicate.BoolCmp{Column: "active", Op: predicate.OpEQ, Value: true})

	root := Optimize(outer)
	f, ok := root.(*plan.Filter)
	require.True(t, ok)
	assert.Len(t, f.Predicates, 2)
	_, innerStillFilter := f.Input.(*plan.Filter)
	assert.False(t, innerStillFilter, "nested Filter should have been merged away")
}

func TestConstantFoldingDropsTriviallyTrueAndRemovesFilter(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	f := plan.NewFilter(s, &predicate.And{})

	root := Optimize(f)
	_, stillFilter := root.(*plan.Filter)
	assert.False(t, stillFilter, "an all-trivially-true Filter should fold away entirely")
}

func TestConstantFoldingTriviallyFalseProducesEmptyLimit(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	f := plan.NewFilter(s, &predicate.Or{})

	root := Optimize(f)
	l, ok := root.(*plan.Limit)
	require.True(t, ok, "a trivially-false predicate should collapse the subtree to Limit(0)")
	assert.Equal(t, 0, l.N)
}

func TestPredicatePushdownBelowPassthroughProject(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	p := plan.NewProject(s, plan.ProjectedColumn{Name: "age", Source: "age"}, plan.ProjectedColumn{Name: "name", Source: "name"})
	f := plan.NewFilter(p, &predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 40})

	root := Optimize(f)
	proj, ok := root.(*plan.Project)
	require.True(t, ok, "Filter should have been pushed below Project")
	_, isFilter := proj.Input.(*plan.Filter)
	assert.True(t, isFilter)
}

func TestPredicatePushdownDoesNotCrossRenamingProject(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	p := plan.NewProject(s, plan.ProjectedColumn{Name: "years", Source: "age"})
	f := plan.NewFilter(p, &predicate.NumericCmp[int32]{Column: "years", Op: predicate.OpGT, Value: 40})

	root := Optimize(f)
	_, ok := root.(*plan.Filter)
	assert.True(t, ok, "Filter referencing a renamed column must stay above the Project")
}

func TestZoneMapPruningAttachesChunkMask(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)
	zm := zonemap.Build(batch, 2)

	s := plan.NewScan(batch)
	s.ZoneMap = zm
	f := plan.NewFilter(s, &predicate.IsNull{Column: "age"})

	root := Optimize(f)
	rf, ok := root.(*plan.Filter)
	require.True(t, ok)
	scan, ok := rf.Input.(*plan.Scan)
	require.True(t, ok)
	assert.NotNil(t, scan.ChunkMask)
}

func TestLimitPushesBelowHighlySelectiveFilter(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	f := plan.NewFilter(s, &predicate.BoolCmp{Column: "active", Op: predicate.OpEQ, Value: true})
	f.Selectivity = 0.8
	l := plan.NewLimit(f, 2)

	root := Optimize(l)
	rf, ok := root.(*plan.Filter)
	require.True(t, ok, "Limit should have pushed below a >=50%% selective Filter")
	_, limitBelow := rf.Input.(*plan.Limit)
	assert.True(t, limitBelow)
}

func TestLimitDoesNotPushBelowLowSelectivityFilter(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	f := plan.NewFilter(s, &predicate.BoolCmp{Column: "active", Op: predicate.OpEQ, Value: true})
	f.Selectivity = 0.1
	l := plan.NewLimit(f, 2)

	root := Optimize(l)
	rl, ok := root.(*plan.Limit)
	require.True(t, ok)
	_, filterBelow := rl.Input.(*plan.Filter)
	assert.True(t, filterBelow)
}

func TestLimitMergeTakesMinimum(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	outer := plan.NewLimit(plan.NewLimit(s, 10), 3)

	root := Optimize(outer)
	l, ok := root.(*plan.Limit)
	require.True(t, ok)
	assert.Equal(t, 3, l.N)
	_, nestedLimit := l.Input.(*plan.Limit)
	assert.False(t, nestedLimit)
}

func TestDistinctIdempotence(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	outer := plan.NewDistinct(plan.NewDistinct(s, "category"), "category")

	root := Optimize(outer)
	d, ok := root.(*plan.Distinct)
	require.True(t, ok)
	_, nestedDistinct := d.Input.(*plan.Distinct)
	assert.False(t, nestedDistinct)
}

func TestDistinctOfSortAnnotatesInputSorted(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	sorted := plan.NewSort(s, plan.SortKey{Column: "age"})
	d := plan.NewDistinct(sorted, "age")

	root := Optimize(d)
	rd, ok := root.(*plan.Distinct)
	require.True(t, ok)
	assert.True(t, rd.InputSorted)
}

func TestOptimizeLeavesAggregateUntouched(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	a := plan.NewAggregate(s, agg.AggSpec{Name: "total", Column: "salary", Func: agg.AggSum})

	root := Optimize(a)
	_, ok := root.(*plan.Aggregate)
	assert.True(t, ok)
}
