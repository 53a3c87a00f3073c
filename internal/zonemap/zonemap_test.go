package zonemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colq/internal/fixture"
)

func TestBuildSummarizesMinMaxAndNulls(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)

	zm := Build(batch, 4) // force two chunks within 6 rows
	ageZm := zm.Columns["age"]
	require.Len(t, ageZm.Chunks, 2)

	// rows 0-3: ages 30,45,55,25 -> min 25 max 55, no nulls
	assert.Equal(t, float64(25), ageZm.Chunks[0].MinF)
	assert.Equal(t, float64(55), ageZm.Chunks[0].MaxF)
	assert.False(t, ageZm.Chunks[0].HasNulls)

	// rows 4-5: age 60, NULL -> hasNulls true
	assert.True(t, ageZm.Chunks[1].HasNulls)
	assert.Equal(t, float64(60), ageZm.Chunks[1].MinF)
}

func TestBuildDefaultChunkSize(t *testing.T) {
	batch, err := fixture.Employees()
	require.NoError(t, err)
	zm := Build(batch, 0)
	assert.Equal(t, 65536, zm.ChunkRows)
	assert.Len(t, zm.Columns["id"].Chunks, 1)
}
