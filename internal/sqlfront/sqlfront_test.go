package sqlfront_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"colq/internal/compile"
	"colq/internal/exec"
	"colq/internal/fixture"
	"colq/internal/query"
	"colq/internal/sqlfront"
)

func frontend() *sqlfront.Frontend {
	return sqlfront.New(query.DefaultRunner(compile.NewCompiler(), exec.Options{
		EnableCompiledPredicates: true,
	}))
}

func TestSQLSelectWhereProject(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	res, err := frontend().Query(context.Background(), `SELECT name FROM employees WHERE age > 40`, batch)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
}

func TestSQLSelectStarWhere(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	res, err := frontend().Query(context.Background(), `SELECT * FROM employees WHERE active = true`, batch)
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)
}

func TestSQLGroupByHaving(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	res, err := frontend().Query(context.Background(), `
		SELECT category, COUNT(*) AS headcount
		FROM employees
		GROUP BY category
		HAVING category IN ('Eng', 'Sales')
	`, batch)
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)
}

func TestSQLOrderByLimitOffset(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	res, err := frontend().Query(context.Background(), `
		SELECT name FROM employees ORDER BY age DESC LIMIT 2 OFFSET 1
	`, batch)
	require.NoError(t, err)
	require.Equal(t, []exec.Row{{"name": "Carol"}, {"name": "Bob"}}, res.Rows)
}

func TestSQLDistinct(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	res, err := frontend().Query(context.Background(), `SELECT DISTINCT category FROM employees`, batch)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
}

func TestSQLJoinUnsupported(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	_, err = frontend().Query(context.Background(), `SELECT a.name FROM employees a JOIN employees b ON a.id = b.id`, batch)
	require.Error(t, err)
}

func TestSQLIsNullLike(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	res, err := frontend().Query(context.Background(), `SELECT name FROM employees WHERE age IS NULL OR name LIKE '%a%'`, batch)
	require.NoError(t, err)
	require.True(t, len(res.Rows) >= 1)
}
