package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colq/internal/store"
)

func buildDateTimeBatch(t *testing.T) *store.Batch {
	t.Helper()
	b := store.NewBuilder()
	b.Add(store.FieldData{
		Field:      store.Field{Name: "joined", Type: store.DateType},
		DateValues: []int32{100, 200, 300},
	})
	b.Add(store.FieldData{
		Field:           store.Field{Name: "logged_at", Type: store.TimestampType, TimeUnit: store.Millisecond},
		TimestampValues: []int64{1000, 2000, 3000},
	})
	batch, err := b.Freeze()
	require.NoError(t, err)
	return batch
}

func TestDateTimeCmpDateColumn(t *testing.T) {
	batch := buildDateTimeBatch(t)
	sel := allSelected(t, batch.RowCount())

	p := &DateTimeCmp{Column: "joined", Op: OpGT, Value: 150, IsDate: true}
	require.NoError(t, p.Evaluate(batch, sel))
	assert.Equal(t, 2, sel.CountSet()) // days 200,300 > 150
}

func TestDateTimeCmpTimestampMillisVsSeconds(t *testing.T) {
	batch := buildDateTimeBatch(t)
	sel := allSelected(t, batch.RowCount())

	// column stores milliseconds; compare against a value expressed in seconds
	p := &DateTimeCmp{Column: "logged_at", Op: OpGE, Value: 2, Unit: store.Second}
	require.NoError(t, p.Evaluate(batch, sel))
	assert.Equal(t, 2, sel.CountSet()) // 2000ms and 3000ms are >= 2s
}
