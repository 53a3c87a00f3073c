package exec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"colq/internal/agg"
	"colq/internal/exec"
	"colq/internal/fixture"
	"colq/internal/plan"
	"colq/internal/predicate"
)

func defaultOptions() exec.Options {
	return exec.Options{
		EnableCompiledPredicates: true,
		EnableParallelExecution:  true,
		ParallelChunkRows:        2,
		MaxWorkers:               2,
	}
}

func TestRunScanMaterializesEveryRow(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	scan := plan.NewScan(batch)
	res, err := exec.Run(context.Background(), scan, defaultOptions(), nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 6)
}

func TestRunFilterAgeGreaterThan40(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	scan := plan.NewScan(batch)
	filter := plan.NewFilter(scan, &predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 40})
	filter.Strategy = plan.StrategySequential

	res, err := exec.Run(context.Background(), filter, defaultOptions(), nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3) // Bob 45, Carol 55, Eve 60
}

func TestRunFilterParallelMatchesSequential(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	scan := plan.NewScan(batch)
	seqFilter := plan.NewFilter(scan, &predicate.BoolCmp{Column: "active", Op: predicate.OpEQ, Value: true})
	seqFilter.Strategy = plan.StrategySequential
	seqRes, err := exec.Run(context.Background(), seqFilter, defaultOptions(), nil, nil)
	require.NoError(t, err)

	parFilter := plan.NewFilter(scan, &predicate.BoolCmp{Column: "active", Op: predicate.OpEQ, Value: true})
	parFilter.Strategy = plan.StrategyParallel
	parRes, err := exec.Run(context.Background(), parFilter, defaultOptions(), nil, nil)
	require.NoError(t, err)

	require.Len(t, parRes.Rows, len(seqRes.Rows))
	require.Len(t, parRes.Rows, 4) // Alice, Bob, Dan, Eve
}

func TestRunAggregateSumSalaryWhereActive(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	scan := plan.NewScan(batch)
	filter := plan.NewFilter(scan, &predicate.BoolCmp{Column: "active", Op: predicate.OpEQ, Value: true})
	aggregate := plan.NewAggregate(filter, agg.AggSpec{Name: "total", Column: "salary", Func: agg.AggSum})

	res, err := exec.Run(context.Background(), aggregate, defaultOptions(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, "280000.00", res.Scalar["total"].(interface{ String() string }).String())
}

func TestRunGroupByCategory(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	scan := plan.NewScan(batch)
	group := plan.NewGroupBy(scan, "category", agg.AggSpec{Name: "headcount", Func: agg.AggCount})

	res, err := exec.Run(context.Background(), group, defaultOptions(), nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Groups, 3)
}

func TestRunIsNullSelectFirst(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	scan := plan.NewScan(batch)
	filter := plan.NewFilter(scan, &predicate.IsNull{Column: "age"})
	project := plan.NewProject(filter, plan.ProjectedColumn{Name: "name", Source: "name"})

	res, err := exec.Run(context.Background(), project, defaultOptions(), nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "Fred", res.Rows[0]["name"])
}

func TestRunSortLimitSelect(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	scan := plan.NewScan(batch)
	filter := plan.NewFilter(scan, &predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 40})
	sorted := plan.NewSort(filter, plan.SortKey{Column: "age", Descending: true})
	limited := plan.NewLimit(sorted, 2)
	project := plan.NewProject(limited, plan.ProjectedColumn{Name: "name", Source: "name"})

	res, err := exec.Run(context.Background(), project, defaultOptions(), nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.Equal(t, []exec.Row{{"name": "Eve"}, {"name": "Carol"}}, res.Rows)
}

func TestRunDistinctCategory(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	scan := plan.NewScan(batch)
	project := plan.NewProject(scan, plan.ProjectedColumn{Name: "category", Source: "category"})
	distinct := plan.NewDistinct(project, "category")

	res, err := exec.Run(context.Background(), distinct, defaultOptions(), nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
}
