package physical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colq/internal/agg"
	"colq/internal/fixture"
	"colq/internal/plan"
	"colq/internal/predicate"
	"colq/internal/store"
)

func bigBatch(t *testing.T, n int) *store.Batch {
	t.Helper()
	values := make([]int32, n)
	for i := range values {
		values[i] = int32(i)
	}
	b := store.NewBuilder()
	b.Add(store.FieldData{Field: store.Field{Name: "v", Type: store.Int32}, Int32Values: values})
	batch, err := b.Freeze()
	require.NoError(t, err)
	return batch
}

func TestFilterSequentialWhenSmall(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	f := plan.NewFilter(s, &predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 40})

	Annotate(f, DefaultOptions())
	assert.Equal(t, plan.StrategySequential, f.Strategy)
}

func TestFilterSIMDWhenAboveSIMDThresholdSinglePredicate(t *testing.T) {
	batch := bigBatch(t, 5000)
	s := plan.NewScan(batch)
	f := plan.NewFilter(s, &predicate.NumericCmp[int32]{Column: "v", Op: predicate.OpGT, Value: 10})

	Annotate(f, DefaultOptions())
	assert.Equal(t, plan.StrategySIMD, f.Strategy)
}

func TestFilterParallelWhenAboveParallelThresholdMultiPredicate(t *testing.T) {
	batch := bigBatch(t, 60_000)
	s := plan.NewScan(batch)
	f := plan.NewFilter(s,
		&predicate.NumericCmp[int32]{Column: "v", Op: predicate.OpGT, Value: 10},
		&predicate.NumericCmp[int32]{Column: "v", Op: predicate.OpLT, Value: 50_000})

	Annotate(f, DefaultOptions())
	assert.Equal(t, plan.StrategyParallel, f.Strategy)
}

func TestFilterNotParallelWithSinglePredicateEvenAboveThreshold(t *testing.T) {
	batch := bigBatch(t, 60_000)
	s := plan.NewScan(batch)
	f := plan.NewFilter(s, &predicate.NumericCmp[int32]{Column: "v", Op: predicate.OpGT, Value: 10})

	Annotate(f, DefaultOptions())
	assert.Equal(t, plan.StrategySIMD, f.Strategy)
}

func TestFilterSequentialWhenSIMDUnavailable(t *testing.T) {
	batch := bigBatch(t, 5000)
	s := plan.NewScan(batch)
	f := plan.NewFilter(s, &predicate.NumericCmp[int32]{Column: "v", Op: predicate.OpGT, Value: 10})

	Annotate(f, Options{SIMDAvailable: false})
	assert.Equal(t, plan.StrategySequential, f.Strategy)
}

func TestAggregateBareCountAlwaysSequential(t *testing.T) {
	batch := bigBatch(t, 100_000)
	s := plan.NewScan(batch)
	a := plan.NewAggregate(s, agg.AggSpec{Name: "n", Func: agg.AggCount})

	Annotate(a, DefaultOptions())
	assert.Equal(t, plan.StrategySequential, a.Strategy)
}

func TestAggregateParallelWhenLarge(t *testing.T) {
	batch := bigBatch(t, 100_000)
	s := plan.NewScan(batch)
	a := plan.NewAggregate(s, agg.AggSpec{Name: "total", Column: "v", Func: agg.AggSum})

	Annotate(a, DefaultOptions())
	assert.Equal(t, plan.StrategyParallel, a.Strategy)
}

func TestGroupByDefaultsToHashAggregate(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	g := plan.NewGroupBy(s, "category", agg.AggSpec{Name: "n", Func: agg.AggCount})

	Annotate(g, DefaultOptions())
	assert.Equal(t, plan.HashAggregate, g.Strategy)
}

func TestGroupBySortedAggregateWhenOrderedRequestedAndNoLaterSort(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	g := plan.NewGroupBy(s, "category", agg.AggSpec{Name: "n", Func: agg.AggCount})
	g.OrderedOutputRequested = true

	Annotate(g, DefaultOptions())
	assert.Equal(t, plan.SortedAggregate, g.Strategy)
}

func TestGroupByHashAggregateWhenLaterSortExists(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	s := plan.NewScan(batch)
	g := plan.NewGroupBy(s, "category", agg.AggSpec{Name: "n", Func: agg.AggCount})
	g.OrderedOutputRequested = true
	sorted := plan.NewSort(g, plan.SortKey{Column: "category"})

	Annotate(sorted, DefaultOptions())
	assert.Equal(t, plan.HashAggregate, g.Strategy)
}
