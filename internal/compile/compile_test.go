package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colq/internal/fixture"
	"colq/internal/predicate"
)

func TestCompileNumericCmpMatchesInterpreter(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	c := NewCompiler()
	fn, err := c.Compile(batch, []predicate.Predicate{
		&predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 40},
	})
	require.NoError(t, err)

	var matched []int
	for row := 0; row < batch.RowCount(); row++ {
		if fn(row) {
			matched = append(matched, row)
		}
	}
	// Bob(45), Carol(55), Eve(60) > 40; Fred's age is NULL -> never matches.
	assert.Len(t, matched, 3)
}

func TestCompileFusesMultiplePredicatesWithShortCircuit(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	c := NewCompiler()
	fn, err := c.Compile(batch, []predicate.Predicate{
		&predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 20},
		&predicate.BoolCmp{Column: "active", Op: predicate.OpEQ, Value: true},
	})
	require.NoError(t, err)

	count := 0
	for row := 0; row < batch.RowCount(); row++ {
		if fn(row) {
			count++
		}
	}
	assert.Greater(t, count, 0)
	assert.Less(t, count, batch.RowCount())
}

func TestCompileCachesByFingerprint(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	c := NewCompiler()
	preds := []predicate.Predicate{&predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 40}}
	preds2 := []predicate.Predicate{&predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 40}}

	fn1, err := c.Compile(batch, preds)
	require.NoError(t, err)
	fn2, err := c.Compile(batch, preds2)
	require.NoError(t, err)

	// Distinct *Filter predicate slices with identical fingerprints must
	// resolve to the same cached closure.
	assert.Equal(t, Fingerprint(preds), Fingerprint(preds2))
	assert.Len(t, c.cache, 1)
	_ = fn1
	_ = fn2
}

func TestCompileUnsupportedPredicateFallsBack(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	c := NewCompiler()
	_, err = c.Compile(batch, []predicate.Predicate{
		&predicate.StringCmp{Column: "name", Op: predicate.OpLike, Value: "A%"},
	})
	require.Error(t, err)
}

func TestFingerprintDiffersOnConstant(t *testing.T) {
	a := []predicate.Predicate{&predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 30}}
	b := []predicate.Predicate{&predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 40}}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintSameForStructurallyEqualPredicates(t *testing.T) {
	a := []predicate.Predicate{&predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 30}}
	b := []predicate.Predicate{&predicate.NumericCmp[int32]{Column: "age", Op: predicate.OpGT, Value: 30}}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}
