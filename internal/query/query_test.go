package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"colq/internal/agg"
	"colq/internal/compile"
	"colq/internal/exec"
	"colq/internal/fixture"
	"colq/internal/query"
)

func runner() query.Runner {
	return query.DefaultRunner(compile.NewCompiler(), exec.Options{
		EnableCompiledPredicates: true,
		EnableParallelExecution:  true,
		ParallelChunkRows:        2,
		MaxWorkers:               2,
	})
}

func TestQueryWhereCount(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	n, err := query.From(batch, runner()).Where(query.Col("age").GT(40)).Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestQueryWhereSumDecimal(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	sum, err := query.From(batch, runner()).
		Where(query.Col("active").EQ(true)).
		Sum(context.Background(), "salary")
	require.NoError(t, err)
	require.InDelta(t, 280000.0, sum, 0.001)
}

func TestQueryGroupBy(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	groups, err := query.From(batch, runner()).
		GroupBy("category", agg.AggSpec{Name: "headcount", Func: agg.AggCount}).
		Groups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 3)
}

func TestQueryLikeOrCount(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	n, err := query.From(batch, runner()).
		Where(query.Or(query.Col("name").Like("%a%"), query.Col("name").Like("%e%"))).
		Where(query.Col("category").EQ("Sales")).
		Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestQueryIsNullSelectFirst(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	row, err := query.From(batch, runner()).
		Where(query.Col("age").IsNull()).
		Select(query.Ident("name")).
		First(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Fred", row["name"])
}

func TestQueryOrderByTakeSelect(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	rows, err := query.From(batch, runner()).
		Where(query.Col("age").GT(40)).
		OrderByDescending("age").
		Take(2).
		Select(query.Ident("name")).
		ToList(context.Background())
	require.NoError(t, err)
	require.Equal(t, []exec.Row{{"name": "Eve"}, {"name": "Carol"}}, rows)
}

func TestQueryJoinUnsupported(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	q := query.From(batch, runner())
	_, err = q.Join(q, "id", "id")
	require.Error(t, err)
}
