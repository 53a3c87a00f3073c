package agg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colq/internal/bitmap"
	"colq/internal/fixture"
	"colq/internal/store"
)

func allSelected(t *testing.T, n int) *bitmap.Bitmap {
	t.Helper()
	return bitmap.New(n, true)
}

func TestSumAgeIgnoresNull(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	col, err := batch.ColumnByName("age")
	require.NoError(t, err)

	sel := allSelected(t, batch.RowCount())
	sum, err := Sum(col, sel, Options{})
	require.NoError(t, err)
	// 30+45+55+25+60 (Fred's NULL excluded)
	assert.Equal(t, float64(30+45+55+25+60), sum)
}

func TestAvgAge(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)
	col, err := batch.ColumnByName("age")
	require.NoError(t, err)

	sel := allSelected(t, batch.RowCount())
	avg, err := Avg(col, sel, Options{})
	require.NoError(t, err)
	assert.InDelta(t, float64(30+45+55+25+60)/5, avg, 0.0001)
}

func TestMinMaxAge(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)
	col, err := batch.ColumnByName("age")
	require.NoError(t, err)

	sel := allSelected(t, batch.RowCount())
	min, err := Min(col, sel, Options{})
	require.NoError(t, err)
	assert.Equal(t, float64(25), min)

	max, err := Max(col, sel, Options{})
	require.NoError(t, err)
	assert.Equal(t, float64(60), max)
}

func TestMinMaxEmptySelectionFails(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)
	col, err := batch.ColumnByName("age")
	require.NoError(t, err)

	sel := bitmap.New(batch.RowCount(), false)
	_, err = Min(col, sel, Options{})
	assert.Error(t, err)
}

func TestCountHonorsNullability(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)
	col, err := batch.ColumnByName("age")
	require.NoError(t, err)

	sel := allSelected(t, batch.RowCount())
	assert.Equal(t, 5, Count(col, sel))
}

func TestMinMaxIgnoresNaN(t *testing.T) {
	b := store.NewBuilder()
	b.Add(store.FieldData{
		Field:         store.Field{Name: "v", Type: store.Float64Type},
		Float64Values: []float64{1, math.NaN(), 3},
	})
	batch, err := b.Freeze()
	require.NoError(t, err)

	col, err := batch.ColumnByName("v")
	require.NoError(t, err)

	sel := allSelected(t, batch.RowCount())
	max, err := Max(col, sel, Options{})
	require.NoError(t, err)
	assert.Equal(t, float64(3), max)
}

func TestSumParallelMatchesSequential(t *testing.T) {
	b := store.NewBuilder()
	n := 200_000
	values := make([]int32, n)
	for i := range values {
		values[i] = int32(i % 7)
	}
	b.Add(store.FieldData{Field: store.Field{Name: "v", Type: store.Int32}, Int32Values: values})
	batch, err := b.Freeze()
	require.NoError(t, err)

	col, err := batch.ColumnByName("v")
	require.NoError(t, err)

	sel := allSelected(t, batch.RowCount())
	seq, err := Sum(col, sel, Options{Parallel: false})
	require.NoError(t, err)

	par, err := Sum(col, sel, Options{Parallel: true, RowThreshold: 1000, ChunkRows: 4096})
	require.NoError(t, err)

	assert.Equal(t, seq, par)
}

func TestDecimalSumAndAvg(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)
	col, err := batch.ColumnByName("salary")
	require.NoError(t, err)
	dc := col.(*store.Decimal128Column)

	sel := allSelected(t, batch.RowCount())
	sum, err := SumDecimal(dc, sel)
	require.NoError(t, err)
	assert.Equal(t, "425000.00", sum.String())

	avg, err := AvgDecimal(dc, sel)
	require.NoError(t, err)
	assert.Equal(t, "70833.33", avg.String())
}
