package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderFreezeHappyPath(t *testing.T) {
	b := NewBuilder()
	b.Add(FieldData{
		Field:       Field{Name: "id", Type: Int32},
		Int32Values: []int32{1, 2, 3},
	})
	b.Add(FieldData{
		Field:       Field{Name: "age", Type: Int32, Nullable: true},
		Int32Values: []int32{10, 0, 30},
		Validity:    []bool{true, false, true},
	})

	batch, err := b.Freeze()
	require.NoError(t, err)
	assert.Equal(t, 3, batch.RowCount())

	age, err := batch.ColumnByName("age")
	require.NoError(t, err)
	assert.True(t, age.Nullable())
	assert.Equal(t, 1, age.NullCount())
	assert.False(t, age.IsValid(1))
}

func TestBuilderFreezeRowCountMismatch(t *testing.T) {
	b := NewBuilder()
	b.Add(FieldData{Field: Field{Name: "id", Type: Int32}, Int32Values: []int32{1, 2, 3}})
	b.Add(FieldData{Field: Field{Name: "name", Type: Utf8}, StringValues: []string{"a", "b"}})

	_, err := b.Freeze()
	require.Error(t, err)
}

func TestBuilderFreezeDictionaryOutOfBounds(t *testing.T) {
	b := NewBuilder()
	b.Add(FieldData{
		Field:             Field{Name: "cat", Type: DictionaryType, DictValue: Utf8},
		DictionaryValues:  []string{"a", "b"},
		DictionaryIndices: []int32{0, 1, 5},
	})

	_, err := b.Freeze()
	require.Error(t, err)
}

func TestBuilderFreezeValidityLengthMismatch(t *testing.T) {
	b := NewBuilder()
	b.Add(FieldData{
		Field:       Field{Name: "id", Type: Int32, Nullable: true},
		Int32Values: []int32{1, 2, 3},
		Validity:    []bool{true, false},
	})

	_, err := b.Freeze()
	require.Error(t, err)
}

func TestStringColumnValues(t *testing.T) {
	b := NewBuilder()
	b.Add(FieldData{Field: Field{Name: "name", Type: Utf8}, StringValues: []string{"Alice", "", "Carol"}})
	batch, err := b.Freeze()
	require.NoError(t, err)

	col, err := batch.ColumnByName("name")
	require.NoError(t, err)
	sc := col.(*StringColumn)
	assert.Equal(t, "Alice", sc.Value(0))
	assert.Equal(t, "", sc.Value(1))
	assert.Equal(t, "Carol", sc.Value(2))
}

func TestUnknownColumn(t *testing.T) {
	b := NewBuilder()
	b.Add(FieldData{Field: Field{Name: "id", Type: Int32}, Int32Values: []int32{1}})
	batch, err := b.Freeze()
	require.NoError(t, err)

	_, err = batch.ColumnByName("missing")
	require.Error(t, err)
}
