package adaptive

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colq/internal/fixture"
	"colq/internal/plan"
	"colq/internal/store"
)

func mustBatch(t *testing.T) *store.Batch {
	t.Helper()
	batch, err := fixture.Employees()
	require.NoError(t, err)
	return batch
}

func TestSuggestStrategyUsesHeuristicBeforeEnoughSamples(t *testing.T) {
	tr := NewTracker(nil)
	assert.Equal(t, plan.StrategySequential, tr.SuggestStrategy("fp", 500, 1))
	assert.Equal(t, plan.StrategySIMD, tr.SuggestStrategy("fp", 10_000, 1))
	assert.Equal(t, plan.StrategyParallel, tr.SuggestStrategy("fp", 100_000, 2))
}

func TestLearnedOptimalStrategyTakesOverAfterEnoughSamples(t *testing.T) {
	tr := NewTracker(nil)
	fp := "fp-learn"

	// SIMD consistently faster than Parallel for this fingerprint.
	for i := 0; i < 3; i++ {
		tr.Record(fp, Sample{Strategy: plan.StrategySIMD, ElapsedMs: 1.0})
		tr.Record(fp, Sample{Strategy: plan.StrategyParallel, ElapsedMs: 5.0})
	}

	optimal, count, improved := tr.Stats(fp)
	assert.Equal(t, plan.StrategySIMD, optimal)
	assert.Equal(t, 6, count)
	assert.True(t, improved)

	assert.Equal(t, plan.StrategySIMD, tr.SuggestStrategy(fp, 10_000, 1))
}

func TestNoOptimalUntilTwoStrategiesHaveTwoSamples(t *testing.T) {
	tr := NewTracker(nil)
	fp := "fp-single-strategy"

	for i := 0; i < 6; i++ {
		tr.Record(fp, Sample{Strategy: plan.StrategySequential, ElapsedMs: 1.0})
	}

	optimal, _, improved := tr.Stats(fp)
	assert.Equal(t, plan.StrategyUnset, optimal)
	assert.False(t, improved)
	// Falls back to heuristic since no optimum was ever learned.
	assert.Equal(t, plan.StrategySequential, tr.SuggestStrategy(fp, 500, 1))
}

func TestRingBufferCapsAtCapacity(t *testing.T) {
	tr := NewTracker(nil)
	fp := "fp-ring"
	for i := 0; i < ringCapacity+50; i++ {
		tr.Record(fp, Sample{Strategy: plan.StrategySequential, ElapsedMs: 1.0})
	}
	_, count, _ := tr.Stats(fp)
	assert.Equal(t, ringCapacity, count)
}

func TestExecuteRecordsAndReturnsResult(t *testing.T) {
	tr := NewTracker(nil)

	s := plan.NewScan(mustBatch(t))
	result, err := Execute(context.Background(), nil, tr, s, "fp-exec", 1, func(ctx context.Context, strategy plan.Strategy) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)

	_, count, _ := tr.Stats("fp-exec")
	assert.Equal(t, 1, count)
}

func TestMetricsAreUpdated(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tr := NewTracker(metrics)

	tr.Record("fp-metrics", Sample{Strategy: plan.StrategySIMD, ElapsedMs: 2.5})

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}
