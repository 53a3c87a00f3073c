package predicate

import (
	"colq/internal/bitmap"
	"colq/internal/colqerr"
	"colq/internal/store"
	"colq/internal/zonemap"
)

// numeric is the Go-generics rendering of NumericCmp<T> for T in
// {i8,i16,i32,i64,f32,f64}. Decimal128 is not a machine primitive (it
// carries a big.Int mantissa), so it gets its own DecimalCmp below with the
// identical contract.
type numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// NumericCmp compares one numeric column against a constant.
type NumericCmp[T numeric] struct {
	Column string
	Op     CompareOp
	Value  T
}

func (p *NumericCmp[T]) Columns() []string { return []string{p.Column} }

func compareOrdered[T numeric](a, b T, op CompareOp) bool {
	switch op {
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	case OpLT:
		return a < b
	case OpLE:
		return a <= b
	case OpGT:
		return a > b
	case OpGE:
		return a >= b
	default:
		return false
	}
}

func (p *NumericCmp[T]) Evaluate(batch *store.Batch, selection *bitmap.Bitmap) error {
	if err := checkLength(batch, selection); err != nil {
		return err
	}
	col, err := columnOrError(batch, p.Column)
	if err != nil {
		return err
	}

	accessor, validity, err := numericColumnAccessor[T](col, p.Column)
	if err != nil {
		return err
	}

	evalMasked(selection, validity, func(row int) bool {
		return compareOrdered(accessor(row), p.Value, p.Op)
	})
	return nil
}

// numericColumnAccessor returns a typed value accessor for col, failing with
// TypeMismatch when col's concrete type does not match T.
func numericColumnAccessor[T numeric](col store.Column, name string) (func(int) T, *bitmap.Bitmap, error) {
	var zero T
	switch any(zero).(type) {
	case int8:
		c, ok := col.(*store.Int8Column)
		if !ok {
			return nil, nil, typeMismatch(name, col)
		}
		return func(i int) T { return T(c.Values[i]) }, c.Validity(), nil
	case int16:
		c, ok := col.(*store.Int16Column)
		if !ok {
			return nil, nil, typeMismatch(name, col)
		}
		return func(i int) T { return T(c.Values[i]) }, c.Validity(), nil
	case int32:
		c, ok := col.(*store.Int32Column)
		if !ok {
			return nil, nil, typeMismatch(name, col)
		}
		return func(i int) T { return T(c.Values[i]) }, c.Validity(), nil
	case int64:
		c, ok := col.(*store.Int64Column)
		if !ok {
			return nil, nil, typeMismatch(name, col)
		}
		return func(i int) T { return T(c.Values[i]) }, c.Validity(), nil
	case float32:
		c, ok := col.(*store.Float32Column)
		if !ok {
			return nil, nil, typeMismatch(name, col)
		}
		return func(i int) T { return T(c.Values[i]) }, c.Validity(), nil
	case float64:
		c, ok := col.(*store.Float64Column)
		if !ok {
			return nil, nil, typeMismatch(name, col)
		}
		return func(i int) T { return T(c.Values[i]) }, c.Validity(), nil
	default:
		return nil, nil, typeMismatch(name, col)
	}
}

func typeMismatch(name string, col store.Column) error {
	return colqerr.WithColumn(colqerr.TypeMismatch, name, "predicate type does not match column type %s", col.Type())
}

// PruneColumn / PossiblyMatches implement zonemap.Pruner.
func (p *NumericCmp[T]) PruneColumn() (string, bool) { return p.Column, true }

func (p *NumericCmp[T]) PossiblyMatches(summary zonemap.ChunkSummary) bool {
	if !summary.Numeric {
		return true
	}
	v := float64(p.Value)
	switch p.Op {
	case OpEQ:
		return v >= summary.MinF && v <= summary.MaxF
	case OpNE:
		return true // a single-value chunk could still be pruned, but that's an optimization we don't attempt
	case OpLT:
		return summary.MinF < v
	case OpLE:
		return summary.MinF <= v
	case OpGT:
		return summary.MaxF > v
	case OpGE:
		return summary.MaxF >= v
	default:
		return true
	}
}

// DecimalCmp compares a Decimal128 column against a constant value.
type DecimalCmp struct {
	Column string
	Op     CompareOp
	Value  store.Decimal128
}

func (p *DecimalCmp) Columns() []string { return []string{p.Column} }

func (p *DecimalCmp) Evaluate(batch *store.Batch, selection *bitmap.Bitmap) error {
	if err := checkLength(batch, selection); err != nil {
		return err
	}
	col, err := columnOrError(batch, p.Column)
	if err != nil {
		return err
	}
	dc, ok := col.(*store.Decimal128Column)
	if !ok {
		return typeMismatch(p.Column, col)
	}

	evalMasked(selection, dc.Validity(), func(row int) bool {
		cmp := dc.Values[row].Cmp(p.Value)
		switch p.Op {
		case OpEQ:
			return cmp == 0
		case OpNE:
			return cmp != 0
		case OpLT:
			return cmp < 0
		case OpLE:
			return cmp <= 0
		case OpGT:
			return cmp > 0
		case OpGE:
			return cmp >= 0
		default:
			return false
		}
	})
	return nil
}

func (p *DecimalCmp) PruneColumn() (string, bool) { return p.Column, true }

func (p *DecimalCmp) PossiblyMatches(summary zonemap.ChunkSummary) bool {
	if !summary.Numeric {
		return true
	}
	v := p.Value.Float64()
	switch p.Op {
	case OpEQ:
		return v >= summary.MinF && v <= summary.MaxF
	case OpLT:
		return summary.MinF < v
	case OpLE:
		return summary.MinF <= v
	case OpGT:
		return summary.MaxF > v
	case OpGE:
		return summary.MaxF >= v
	default:
		return true
	}
}
