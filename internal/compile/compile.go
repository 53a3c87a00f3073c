// Package compile implements the compiled predicate builder: given a bound
// batch and a list of predicates, produces one fused closure
// `func(row int) bool` with column references resolved and constants
// inlined, short-circuiting like a hand-written `&&` chain. Compilation
// only covers NumericCmp and BoolCmp today — trivially extendable to other
// typed scalar comparisons — any other predicate type fails with
// Unsupported, and the interpreter (internal/predicate, via internal/exec)
// is always a legal fallback.
package compile

import (
	"fmt"
	"sync"

	"colq/internal/colqerr"
	"colq/internal/predicate"
	"colq/internal/store"
)

// RowFunc is the compiled per-row predicate: true if the row at index row
// satisfies the fused predicate list.
type RowFunc func(row int) bool

// Compiler caches fused closures by the concatenated fingerprint of the
// predicate list that produced them. A Compiler is safe for concurrent
// use; callers typically keep one per store alongside the plan cache.
type Compiler struct {
	mu    sync.Mutex
	cache map[string]RowFunc
}

func NewCompiler() *Compiler {
	return &Compiler{cache: make(map[string]RowFunc)}
}

// Compile returns the fused closure for preds against batch, building and
// caching it on first use. Every predicate in preds must individually
// compile; a single unsupported predicate fails the whole call so the
// caller falls back to the interpreter for the entire list rather than
// mixing compiled and interpreted evaluation mid-chain.
func (c *Compiler) Compile(batch *store.Batch, preds []predicate.Predicate) (RowFunc, error) {
	fp := Fingerprint(preds)

	c.mu.Lock()
	if fn, ok := c.cache[fp]; ok {
		c.mu.Unlock()
		return fn, nil
	}
	c.mu.Unlock()

	fns := make([]RowFunc, 0, len(preds))
	for _, p := range preds {
		fn, err := compileOne(batch, p)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	fused := fuse(fns)

	c.mu.Lock()
	c.cache[fp] = fused
	c.mu.Unlock()
	return fused, nil
}

func fuse(fns []RowFunc) RowFunc {
	return func(row int) bool {
		for _, fn := range fns {
			if !fn(row) {
				return false
			}
		}
		return true
	}
}

func compileOne(batch *store.Batch, p predicate.Predicate) (RowFunc, error) {
	switch pr := p.(type) {
	case *predicate.NumericCmp[int8]:
		return compileNumeric(batch, pr.Column, pr.Op, pr.Value)
	case *predicate.NumericCmp[int16]:
		return compileNumeric(batch, pr.Column, pr.Op, pr.Value)
	case *predicate.NumericCmp[int32]:
		return compileNumeric(batch, pr.Column, pr.Op, pr.Value)
	case *predicate.NumericCmp[int64]:
		return compileNumeric(batch, pr.Column, pr.Op, pr.Value)
	case *predicate.NumericCmp[float32]:
		return compileNumeric(batch, pr.Column, pr.Op, pr.Value)
	case *predicate.NumericCmp[float64]:
		return compileNumeric(batch, pr.Column, pr.Op, pr.Value)
	case *predicate.BoolCmp:
		return compileBool(batch, pr)
	default:
		return nil, colqerr.New(colqerr.Unsupported,
			"compiled predicate builder does not yet support %T; interpreter fallback required", p)
	}
}

// numeric mirrors internal/predicate's own type constraint; the compiled
// path deliberately keeps its own copy rather than importing an unexported
// helper, since it is a distinct code path from the interpreter: compiled
// and interpreted evaluation are alternatives, not layers sharing
// internals.
type numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

func compileNumeric[T numeric](batch *store.Batch, column string, op predicate.CompareOp, value T) (RowFunc, error) {
	col, err := batch.ColumnByName(column)
	if err != nil {
		return nil, err
	}
	accessor, err := numericAccessor[T](col, column)
	if err != nil {
		return nil, err
	}
	return func(row int) bool {
		if !col.IsValid(row) {
			return false
		}
		return compareOrdered(accessor(row), value, op)
	}, nil
}

func numericAccessor[T numeric](col store.Column, name string) (func(int) T, error) {
	var zero T
	switch any(zero).(type) {
	case int8:
		c, ok := col.(*store.Int8Column)
		if !ok {
			return nil, typeMismatch(name, col)
		}
		return func(i int) T { return T(c.Values[i]) }, nil
	case int16:
		c, ok := col.(*store.Int16Column)
		if !ok {
			return nil, typeMismatch(name, col)
		}
		return func(i int) T { return T(c.Values[i]) }, nil
	case int32:
		c, ok := col.(*store.Int32Column)
		if !ok {
			return nil, typeMismatch(name, col)
		}
		return func(i int) T { return T(c.Values[i]) }, nil
	case int64:
		c, ok := col.(*store.Int64Column)
		if !ok {
			return nil, typeMismatch(name, col)
		}
		return func(i int) T { return T(c.Values[i]) }, nil
	case float32:
		c, ok := col.(*store.Float32Column)
		if !ok {
			return nil, typeMismatch(name, col)
		}
		return func(i int) T { return T(c.Values[i]) }, nil
	case float64:
		c, ok := col.(*store.Float64Column)
		if !ok {
			return nil, typeMismatch(name, col)
		}
		return func(i int) T { return T(c.Values[i]) }, nil
	default:
		return nil, typeMismatch(name, col)
	}
}

func compareOrdered[T numeric](a, b T, op predicate.CompareOp) bool {
	switch op {
	case predicate.OpEQ:
		return a == b
	case predicate.OpNE:
		return a != b
	case predicate.OpLT:
		return a < b
	case predicate.OpLE:
		return a <= b
	case predicate.OpGT:
		return a > b
	case predicate.OpGE:
		return a >= b
	default:
		return false
	}
}

func compileBool(batch *store.Batch, pr *predicate.BoolCmp) (RowFunc, error) {
	col, err := batch.ColumnByName(pr.Column)
	if err != nil {
		return nil, err
	}
	bc, ok := col.(*store.BoolColumn)
	if !ok {
		return nil, typeMismatch(pr.Column, col)
	}
	want := pr.Value
	if pr.Op == predicate.OpNE {
		want = !want
	} else if pr.Op != predicate.OpEQ {
		return nil, colqerr.New(colqerr.Unsupported, "BoolCmp compiles only for = and != (got %s)", pr.Op)
	}
	return func(row int) bool {
		if !bc.IsValid(row) {
			return false
		}
		return bc.Value(row) == want
	}, nil
}

func typeMismatch(name string, col store.Column) error {
	return colqerr.WithColumn(colqerr.TypeMismatch, name, "compiled predicate type does not match column type %s", col.Type())
}

// Fingerprint deterministically encodes preds as a byte-comparable string
// suitable for both the compiled-closure cache above and (combined with
// other plan elements) the plan cache (internal/cache). Structurally equal
// predicate lists share a fingerprint; differing constants or operators do
// not.
func Fingerprint(preds []predicate.Predicate) string {
	var out []byte
	for _, p := range preds {
		out = append(out, fingerprintOne(p)...)
		out = append(out, ';')
	}
	return string(out)
}

func fingerprintOne(p predicate.Predicate) string {
	switch pr := p.(type) {
	case *predicate.NumericCmp[int8]:
		return fmt.Sprintf("num(%s,%s,i8,%d)", pr.Column, pr.Op, pr.Value)
	case *predicate.NumericCmp[int16]:
		return fmt.Sprintf("num(%s,%s,i16,%d)", pr.Column, pr.Op, pr.Value)
	case *predicate.NumericCmp[int32]:
		return fmt.Sprintf("num(%s,%s,i32,%d)", pr.Column, pr.Op, pr.Value)
	case *predicate.NumericCmp[int64]:
		return fmt.Sprintf("num(%s,%s,i64,%d)", pr.Column, pr.Op, pr.Value)
	case *predicate.NumericCmp[float32]:
		return fmt.Sprintf("num(%s,%s,f32,%v)", pr.Column, pr.Op, pr.Value)
	case *predicate.NumericCmp[float64]:
		return fmt.Sprintf("num(%s,%s,f64,%v)", pr.Column, pr.Op, pr.Value)
	case *predicate.DecimalCmp:
		return fmt.Sprintf("dec(%s,%s,%s)", pr.Column, pr.Op, pr.Value.String())
	case *predicate.BoolCmp:
		return fmt.Sprintf("bool(%s,%s,%v)", pr.Column, pr.Op, pr.Value)
	case *predicate.StringCmp:
		return fmt.Sprintf("str(%s,%s,%q)", pr.Column, pr.Op, pr.Value)
	case *predicate.IsNull:
		return fmt.Sprintf("isnull(%s,%v)", pr.Column, pr.Negate)
	case *predicate.DateTimeCmp:
		return fmt.Sprintf("dt(%s,%s,%d,%v)", pr.Column, pr.Op, pr.Value, pr.IsDate)
	case *predicate.And:
		return "and(" + Fingerprint(pr.Children) + ")"
	case *predicate.Or:
		return "or(" + Fingerprint(pr.Children) + ")"
	case *predicate.Not:
		return "not(" + fingerprintOne(pr.Child) + ")"
	default:
		// Predicate types defined elsewhere (e.g. internal/query's deferred
		// numeric comparison) are encoded with their field values so that
		// differing constants still yield differing fingerprints.
		return fmt.Sprintf("other(%T,%+v)", p, p)
	}
}
