// Package zonemap implements the per-column, per-chunk (min, max, hasNulls)
// summaries used to skip whole chunks during predicate evaluation.
// Pruning is purely a hint: a false positive
// (failing to prune a chunk that could have been pruned) is fine, a false
// negative (pruning a chunk that contained a match) is a correctness bug,
// so every Prune implementation here errs toward "keep the chunk".
package zonemap

import (
	"colq/internal/store"
)

// ChunkSummary is one chunk's (min, max, hasNulls, rowStart, rowEnd). Only
// one of the Min/Max pairs is meaningful, selected by Numeric.
type ChunkSummary struct {
	RowStart, RowEnd int
	HasNulls         bool
	Numeric          bool
	MinF, MaxF       float64
	MinS, MaxS       string
}

// ColumnZoneMap is the ordered list of chunk summaries for one column.
type ColumnZoneMap struct {
	Chunks []ChunkSummary
}

// ZoneMap holds one ColumnZoneMap per column, keyed by column name.
type ZoneMap struct {
	ChunkRows int
	Columns   map[string]*ColumnZoneMap
}

// Pruner is implemented by predicates that can participate in zone-map
// pruning. Predicates over columns/operators the zone map cannot reason
// about precisely (e.g. StringCmp with an operator other than =) should not
// implement it, or should implement PossiblyMatches to always return true.
type Pruner interface {
	// PruneColumn returns the single column this predicate could prune
	// chunks for, and whether pruning is supported for it at all.
	PruneColumn() (column string, supported bool)
	// PossiblyMatches reports whether the chunk could contain a surviving
	// row; returning true when unsure is always safe.
	PossiblyMatches(summary ChunkSummary) bool
}

// Build computes zone-map summaries for every column of batch, using a
// fixed chunkSize (default 64K rows).
func Build(batch *store.Batch, chunkSize int) *ZoneMap {
	if chunkSize <= 0 {
		chunkSize = 65536
	}
	zm := &ZoneMap{ChunkRows: chunkSize, Columns: make(map[string]*ColumnZoneMap, batch.Schema().Len())}
	for i := 0; i < batch.Schema().Len(); i++ {
		field := batch.Schema().Field(i)
		col := batch.Column(i)
		zm.Columns[field.Name] = buildColumnZoneMap(col, batch.RowCount(), chunkSize)
	}
	return zm
}

func buildColumnZoneMap(col store.Column, rowCount, chunkSize int) *ColumnZoneMap {
	czm := &ColumnZoneMap{}
	for start := 0; start < rowCount; start += chunkSize {
		end := start + chunkSize
		if end > rowCount {
			end = rowCount
		}
		czm.Chunks = append(czm.Chunks, summarizeChunk(col, start, end))
	}
	return czm
}

func summarizeChunk(col store.Column, start, end int) ChunkSummary {
	s := ChunkSummary{RowStart: start, RowEnd: end}
	numeric, isNumeric := numericAccessor(col)
	strAccessor, isString := stringAccessor(col)

	first := true
	for row := start; row < end; row++ {
		if !col.IsValid(row) {
			s.HasNulls = true
			continue
		}
		switch {
		case isNumeric:
			v := numeric(row)
			if first || v < s.MinF {
				s.MinF = v
			}
			if first || v > s.MaxF {
				s.MaxF = v
			}
		case isString:
			v := strAccessor(row)
			if first || v < s.MinS {
				s.MinS = v
			}
			if first || v > s.MaxS {
				s.MaxS = v
			}
		}
		first = false
	}
	s.Numeric = isNumeric
	return s
}

func numericAccessor(col store.Column) (func(int) float64, bool) {
	switch c := col.(type) {
	case *store.Int8Column:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	case *store.Int16Column:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	case *store.Int32Column:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	case *store.Int64Column:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	case *store.Float32Column:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	case *store.Float64Column:
		return func(i int) float64 { return c.Values[i] }, true
	case *store.Decimal128Column:
		return func(i int) float64 { return c.Values[i].Float64() }, true
	case *store.DateColumn:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	case *store.TimestampColumn:
		return func(i int) float64 { return float64(c.Values[i]) }, true
	default:
		return nil, false
	}
}

func stringAccessor(col store.Column) (func(int) string, bool) {
	switch c := col.(type) {
	case *store.StringColumn:
		return c.Value, true
	case *store.DictionaryColumn:
		return c.Value, true
	default:
		return nil, false
	}
}

// Prune evaluates every Pruner among preds against every chunk and returns a
// bool slice (len == number of chunks for the relevant column(s)) marking
// which chunks survive. Predicates that are not Pruners, or whose
// PruneColumn reports unsupported, leave every chunk marked as surviving.
func (zm *ZoneMap) Prune(rowCount int, preds []Pruner) []bool {
	numChunks := (rowCount + zm.ChunkRows - 1) / zm.ChunkRows
	if numChunks == 0 {
		numChunks = 1
	}
	survive := make([]bool, numChunks)
	for i := range survive {
		survive[i] = true
	}

	for _, p := range preds {
		col, ok := p.PruneColumn()
		if !ok {
			continue
		}
		czm, ok := zm.Columns[col]
		if !ok {
			continue
		}
		for i, chunk := range czm.Chunks {
			if i >= len(survive) {
				break
			}
			if survive[i] && !p.PossiblyMatches(chunk) {
				survive[i] = false
			}
		}
	}
	return survive
}

// ChunkIndexForRow returns the index of the chunk containing row, for
// looking row up in a per-chunk survive mask built with the same ChunkRows.
func (zm *ZoneMap) ChunkIndexForRow(row int) int {
	return row / zm.ChunkRows
}
