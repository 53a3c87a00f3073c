package query

import (
	"colq/internal/bitmap"
	"colq/internal/colqerr"
	"colq/internal/predicate"
	"colq/internal/store"
)

// ColumnRef names a column to build typed comparison predicates against,
// the query surface's equivalent of a LINQ lambda parameter member access
// (e.g. `x => x.Age > 40` becomes `query.Col("age").GT(40)`).
type ColumnRef struct {
	name string
}

// Col refers to a column by name.
func Col(name string) ColumnRef { return ColumnRef{name: name} }

func (c ColumnRef) EQ(v any) predicate.Predicate { return compare(c.name, predicate.OpEQ, v) }
func (c ColumnRef) NE(v any) predicate.Predicate { return compare(c.name, predicate.OpNE, v) }
func (c ColumnRef) LT(v any) predicate.Predicate { return compare(c.name, predicate.OpLT, v) }
func (c ColumnRef) LE(v any) predicate.Predicate { return compare(c.name, predicate.OpLE, v) }
func (c ColumnRef) GT(v any) predicate.Predicate { return compare(c.name, predicate.OpGT, v) }
func (c ColumnRef) GE(v any) predicate.Predicate { return compare(c.name, predicate.OpGE, v) }

// Like builds a StringCmp with a SQL-style % wildcard pattern.
func (c ColumnRef) Like(pattern string) predicate.Predicate {
	return &predicate.StringCmp{Column: c.name, Op: predicate.OpLike, Value: pattern}
}

// IsNull / IsNotNull build an IsNull predicate, the only predicate that
// ever selects a null row.
func (c ColumnRef) IsNull() predicate.Predicate    { return &predicate.IsNull{Column: c.name} }
func (c ColumnRef) IsNotNull() predicate.Predicate { return &predicate.IsNull{Column: c.name, Negate: true} }

// And/Or/Not combine predicates, matching internal/predicate's compound
// node contract directly.
func And(preds ...predicate.Predicate) predicate.Predicate { return &predicate.And{Children: preds} }
func Or(preds ...predicate.Predicate) predicate.Predicate  { return &predicate.Or{Children: preds} }
func Not(p predicate.Predicate) predicate.Predicate        { return &predicate.Not{Child: p} }

func compare(column string, op predicate.CompareOp, v any) predicate.Predicate {
	switch t := v.(type) {
	case int:
		return &numericCmpAny{column: column, op: op, value: float64(t)}
	case int8:
		return &numericCmpAny{column: column, op: op, value: float64(t)}
	case int16:
		return &numericCmpAny{column: column, op: op, value: float64(t)}
	case int32:
		return &numericCmpAny{column: column, op: op, value: float64(t)}
	case int64:
		return &numericCmpAny{column: column, op: op, value: float64(t)}
	case float32:
		return &numericCmpAny{column: column, op: op, value: float64(t)}
	case float64:
		return &numericCmpAny{column: column, op: op, value: t}
	case bool:
		return &predicate.BoolCmp{Column: column, Op: op, Value: t}
	case string:
		return &predicate.StringCmp{Column: column, Op: op, Value: t}
	case store.Decimal128:
		return &predicate.DecimalCmp{Column: column, Op: op, Value: t}
	default:
		return unsupportedPredicate(column, v)
	}
}

// numericCmpAny defers the choice of NumericCmp[T]'s T until Evaluate,
// when the column's actual concrete type is known. Col("age").GT(40) has
// no schema in hand at build time — the literal 40 is just an untyped Go
// int — so building a NumericCmp[int64] eagerly would TypeMismatch against
// an Int32 column. Evaluate resolves the real type and forwards to it.
type numericCmpAny struct {
	column string
	op     predicate.CompareOp
	value  float64
}

func (p *numericCmpAny) Columns() []string { return []string{p.column} }

func (p *numericCmpAny) Evaluate(batch *store.Batch, selection *bitmap.Bitmap) error {
	col, err := batch.ColumnByName(p.column)
	if err != nil {
		return err
	}
	switch col.Type() {
	case store.Int8:
		return (&predicate.NumericCmp[int8]{Column: p.column, Op: p.op, Value: int8(p.value)}).Evaluate(batch, selection)
	case store.Int16:
		return (&predicate.NumericCmp[int16]{Column: p.column, Op: p.op, Value: int16(p.value)}).Evaluate(batch, selection)
	case store.Int32:
		return (&predicate.NumericCmp[int32]{Column: p.column, Op: p.op, Value: int32(p.value)}).Evaluate(batch, selection)
	case store.Int64:
		return (&predicate.NumericCmp[int64]{Column: p.column, Op: p.op, Value: int64(p.value)}).Evaluate(batch, selection)
	case store.Float32Type:
		return (&predicate.NumericCmp[float32]{Column: p.column, Op: p.op, Value: float32(p.value)}).Evaluate(batch, selection)
	case store.Float64Type:
		return (&predicate.NumericCmp[float64]{Column: p.column, Op: p.op, Value: p.value}).Evaluate(batch, selection)
	case store.Decimal128Type:
		return (&predicate.DecimalCmp{Column: p.column, Op: p.op, Value: store.DecimalFromFloat(p.value, decimalScaleOf(batch, p.column))}).Evaluate(batch, selection)
	default:
		return colqerr.WithColumn(colqerr.TypeMismatch, p.column, "column is not numeric (%s)", col.Type())
	}
}

func decimalScaleOf(batch *store.Batch, column string) int32 {
	idx, err := batch.Schema().IndexOf(column)
	if err != nil {
		return 0
	}
	return batch.Schema().Field(idx).DecScale
}

func unsupportedPredicate(column string, v any) predicate.Predicate {
	return &unsupportedCmp{
		column: column,
		err:    colqerr.WithColumn(colqerr.TypeMismatch, column, "unsupported comparison value type %T", v),
	}
}

// unsupportedCmp implements predicate.Predicate so the fluent Col(...)
// chain never panics on a bad literal type; the error surfaces the first
// time the query actually executes.
type unsupportedCmp struct {
	column string
	err    error
}

func (p *unsupportedCmp) Columns() []string { return []string{p.column} }

func (p *unsupportedCmp) Evaluate(*store.Batch, *bitmap.Bitmap) error { return p.err }
