package predicate

import (
	"colq/internal/bitmap"
	"colq/internal/store"
	"colq/internal/zonemap"
)

// unitScale converts one tick of unit into nanoseconds, so a DateTimeCmp
// value expressed in one unit can be compared against a column stored in
// another: comparisons between differing time units are normalized before
// compare, never truncated.
func unitScale(u store.TimeUnit) int64 {
	switch u {
	case store.Second:
		return 1_000_000_000
	case store.Millisecond:
		return 1_000_000
	case store.Microsecond:
		return 1_000
	case store.Nanosecond:
		return 1
	default:
		return 1
	}
}

// DateTimeCmp compares a Date or Timestamp column against a constant.
// Against a Date column, Value is raw days-since-epoch and Unit is ignored;
// against a Timestamp column, Value is expressed in Unit-ticks and is
// normalized to the column's own unit before compare — comparisons between
// differing time units are normalized before compare, never truncated.
// IsDate records which interpretation applies, since it
// also determines whether PossiblyMatches can prune precisely: the zone map
// stores Date chunks as raw days (unambiguous) but Timestamp chunks in
// whatever unit that column declared, which PossiblyMatches cannot recover
// from the summary alone.
type DateTimeCmp struct {
	Column string
	Op     CompareOp
	Value  int64
	Unit   store.TimeUnit
	IsDate bool
}

func (p *DateTimeCmp) Columns() []string { return []string{p.Column} }

func (p *DateTimeCmp) Evaluate(batch *store.Batch, selection *bitmap.Bitmap) error {
	if err := checkLength(batch, selection); err != nil {
		return err
	}
	col, err := columnOrError(batch, p.Column)
	if err != nil {
		return err
	}

	switch c := col.(type) {
	case *store.DateColumn:
		evalMasked(selection, c.Validity(), func(row int) bool {
			return compareOrdered(int64(c.Value(row)), p.Value, p.Op)
		})
		return nil
	case *store.TimestampColumn:
		colScale, valueScale := unitScale(c.Unit), unitScale(p.Unit)
		if valueScale >= colScale {
			valueInColUnit := p.Value * (valueScale / colScale)
			evalMasked(selection, c.Validity(), func(row int) bool {
				return compareOrdered(c.Value(row), valueInColUnit, p.Op)
			})
			return nil
		}
		// Value is finer than the column's unit: compare in Value's unit so
		// no fraction of a column tick is dropped.
		factor := colScale / valueScale
		evalMasked(selection, c.Validity(), func(row int) bool {
			return compareOrdered(c.Value(row)*factor, p.Value, p.Op)
		})
		return nil
	default:
		return typeMismatch(p.Column, col)
	}
}

func (p *DateTimeCmp) PruneColumn() (string, bool) { return p.Column, p.IsDate }

// PossiblyMatches only prunes for Date columns, where the zone map's
// MinF/MaxF are unambiguously raw days-since-epoch.
func (p *DateTimeCmp) PossiblyMatches(summary zonemap.ChunkSummary) bool {
	if !p.IsDate || !summary.Numeric {
		return true
	}
	days := float64(p.Value)
	switch p.Op {
	case OpEQ:
		return days >= summary.MinF && days <= summary.MaxF
	case OpLT:
		return summary.MinF < days
	case OpLE:
		return summary.MinF <= days
	case OpGT:
		return summary.MaxF > days
	case OpGE:
		return summary.MaxF >= days
	default:
		return true
	}
}
