// Package scenarios runs the engine's literal end-to-end worked examples
// against the public colq facade: a single six-row employees batch,
// checked by both the chained query surface and the SQL front end.
package scenarios

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"colq"
	"colq/internal/agg"
	"colq/internal/exec"
	"colq/internal/fixture"
)

func openStore(t *testing.T) *colq.Store {
	t.Helper()
	batch, err := fixture.Employees()
	require.NoError(t, err)
	return colq.Open(batch)
}

// 1. Where(age > 40).Count() -> 3 (rows 2, 3, 5; row 6 excluded by NULL).
func TestScenarioWhereAgeGTCount(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	count, err := s.AsQueryable().
		Where(colq.Col("age").GT(40)).
		Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

// 2. Where(active = true).Sum(salary) -> 280000.00 (rows 1, 2, 4, 5).
func TestScenarioWhereActiveSumSalary(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	sum, err := s.AsQueryable().
		Where(colq.Col("active").EQ(true)).
		Sum(ctx, "salary")
	require.NoError(t, err)
	require.InDelta(t, 280000.00, sum, 1e-6)
}

// 3. GroupBy(category).Select((k, g) => (k, g.Count(), g.Sum(salary))) ->
// {("Eng", 3, 260000.00), ("Sales", 2, 125000.00), ("HR", 1, 40000.00)}
// (insertion order not guaranteed; as a set, equal).
func TestScenarioGroupByCategoryCountSum(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	groups, err := s.AsQueryable().
		GroupBy("category",
			agg.AggSpec{Name: "headcount", Func: agg.AggCount},
			agg.AggSpec{Name: "total", Column: "salary", Func: agg.AggSum},
		).
		Groups(ctx)
	require.NoError(t, err)

	want := map[string]struct {
		count int
		total float64
	}{
		"Eng":   {3, 260000.00},
		"Sales": {2, 125000.00},
		"HR":    {1, 40000.00},
	}
	require.Len(t, groups, len(want))
	for _, g := range groups {
		exp, ok := want[g.Key]
		require.True(t, ok, "unexpected group key %q", g.Key)
		require.InDelta(t, float64(exp.count), g.Values["headcount"], 1e-9)
		require.InDelta(t, exp.total, decimalOrFloat(g, "total"), 1e-6)
	}
}

func decimalOrFloat(g agg.GroupResult, name string) float64 {
	if d, ok := g.Decimals[name]; ok {
		return d.Float64()
	}
	return g.Values[name]
}

// 4. SELECT COUNT(*) FROM employees WHERE name LIKE 'A%' OR name LIKE 'E%'
// -> 2 (Alice, Eve).
func TestScenarioSQLCountLikeOr(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	res, err := s.ExecuteSQL(ctx, `SELECT COUNT(*) AS n FROM employees WHERE name LIKE 'A%' OR name LIKE 'E%'`)
	require.NoError(t, err)
	require.Equal(t, exec.Row{"n": float64(2)}, res.Scalar)
}

// 5. Where(age IS NULL).Select(name).First() -> "Fred".
func TestScenarioWhereAgeIsNullFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	row, err := s.AsQueryable().
		Where(colq.Col("age").IsNull()).
		Select(colq.Ident("name")).
		First(ctx)
	require.NoError(t, err)
	require.Equal(t, "Fred", row["name"])
}

// 6. Where(salary >= 50000 AND active = true).OrderByDescending(salary).
// Take(2).Select(name).ToList() -> ["Eve", "Bob"].
func TestScenarioWhereSalaryActiveOrderTakeSelect(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	rows, err := s.AsQueryable().
		Where(colq.And(colq.Col("salary").GE(50000), colq.Col("active").EQ(true))).
		OrderByDescending("salary").
		Take(2).
		Select(colq.Ident("name")).
		ToList(ctx)
	require.NoError(t, err)
	require.Equal(t, []exec.Row{{"name": "Eve"}, {"name": "Bob"}}, rows)
}
