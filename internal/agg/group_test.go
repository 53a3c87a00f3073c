package agg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colq/internal/bitmap"
	"colq/internal/fixture"
	"colq/internal/store"
)

func TestGroupByTwoPassCategoryAvgSalary(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	sel := allSelected(t, batch.RowCount())
	results, err := GroupBy(batch, "category", sel, []AggSpec{
		{Name: "avg_salary", Column: "salary", Func: AggAvg},
		{Name: "n", Func: AggCount},
	})
	require.NoError(t, err)

	byKey := map[string]GroupResult{}
	for _, r := range results {
		byKey[r.Key] = r
	}
	require.Contains(t, byKey, "Eng")
	require.Contains(t, byKey, "Sales")
	require.Contains(t, byKey, "HR")

	// Eng: Alice 50000, Carol 90000, Eve 120000 -> avg 86666.67
	assert.InDelta(t, (50000.0+90000.0+120000.0)/3, byKey["Eng"].Values["avg_salary"], 0.01)
	assert.Equal(t, float64(3), byKey["Eng"].Values["n"])

	// Sales: Bob 70000, Fred 55000
	assert.Equal(t, float64(2), byKey["Sales"].Values["n"])

	// HR: Dan only
	assert.Equal(t, float64(1), byKey["HR"].Values["n"])
}

// buildLargeDictionaryBatch builds a batch large enough (>= 1000 selected
// rows, cardinality well under 256) to exercise the single-pass strategy
// via GroupBy's own dispatch rule.
func buildLargeDictionaryBatch(t *testing.T) *store.Batch {
	t.Helper()
	const n = 5000
	dict := []string{"a", "b", "c", "d"}
	indices := make([]int32, n)
	values := make([]int64, n)
	for i := 0; i < n; i++ {
		indices[i] = int32(i % len(dict))
		values[i] = int64(i)
	}

	b := store.NewBuilder()
	b.Add(store.FieldData{
		Field:             store.Field{Name: "bucket", Type: store.DictionaryType},
		DictionaryIndices: indices,
		DictionaryValues:  dict,
	})
	b.Add(store.FieldData{Field: store.Field{Name: "v", Type: store.Int64}, Int64Values: values})
	batch, err := b.Freeze()
	require.NoError(t, err)
	return batch
}

func TestGroupBySinglePassMatchesTwoPass(t *testing.T) {
	batch := buildLargeDictionaryBatch(t)
	sel := bitmap.New(batch.RowCount(), true)

	specs := []AggSpec{
		{Name: "total", Column: "v", Func: AggSum},
		{Name: "count", Func: AggCount},
	}

	keyCol, err := batch.ColumnByName("bucket")
	require.NoError(t, err)
	dc := keyCol.(*store.DictionaryColumn)
	require.LessOrEqual(t, dc.Cardinality(), singlePassCardinalityLimit)
	require.GreaterOrEqual(t, sel.CountSet(), singlePassMinSelection)

	single, err := singlePass(batch, dc, sel, specs)
	require.NoError(t, err)

	two, err := twoPass(batch, keyCol, sel, specs)
	require.NoError(t, err)

	singleByKey := map[string]GroupResult{}
	for _, r := range single {
		singleByKey[r.Key] = r
	}
	require.Len(t, single, len(two))
	for _, r := range two {
		sr, ok := singleByKey[r.Key]
		require.True(t, ok, "missing key %q in single-pass result", r.Key)
		assert.Equal(t, r.Values["total"], sr.Values["total"], "key=%s", r.Key)
		assert.Equal(t, r.Values["count"], sr.Values["count"], "key=%s", r.Key)
	}
}

func TestGroupByDispatchesToSinglePassAboveThreshold(t *testing.T) {
	batch := buildLargeDictionaryBatch(t)
	sel := bitmap.New(batch.RowCount(), true)

	results, err := GroupBy(batch, "bucket", sel, []AggSpec{
		{Name: "total", Column: "v", Func: AggSum},
	})
	require.NoError(t, err)
	assert.Len(t, results, 4)

	sum := 0.0
	for _, r := range results {
		sum += r.Values["total"]
	}
	expected := 0.0
	for i := 0; i < batch.RowCount(); i++ {
		expected += float64(i)
	}
	assert.Equal(t, expected, sum)
}

func TestGroupByNullKeyIsDropped(t *testing.T) {
	b := store.NewBuilder()
	b.Add(store.FieldData{
		Field:       store.Field{Name: "k", Type: store.Int32, Nullable: true},
		Int32Values: []int32{1, 2, 0},
		Validity:    []bool{true, true, false},
	})
	b.Add(store.FieldData{Field: store.Field{Name: "v", Type: store.Int32}, Int32Values: []int32{10, 20, 30}})
	batch, err := b.Freeze()
	require.NoError(t, err)

	sel := bitmap.New(batch.RowCount(), true)
	results, err := GroupBy(batch, "k", sel, []AggSpec{{Name: "total", Column: "v", Func: AggSum}})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
