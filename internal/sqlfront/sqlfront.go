// Package sqlfront implements the SQL subset front end: it parses a
// single SELECT statement with TiDB's MySQL grammar and walks the
// resulting ast.SelectStmt into the same internal/plan tree
// internal/query's chained builder constructs. Anything outside the
// supported subset — joins, subqueries, window functions, multi-column
// GROUP BY, HAVING on anything but the group key — surfaces as
// colqerr.Unsupported rather than being silently dropped.
package sqlfront

import (
	"context"
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	driver "github.com/pingcap/tidb/pkg/parser/test_driver"

	"colq/internal/agg"
	"colq/internal/colqerr"
	"colq/internal/exec"
	"colq/internal/predicate"
	"colq/internal/query"
	"colq/internal/store"
)

// Frontend parses SQL text into query.Query plans and runs them against a
// single already-loaded batch; it holds no state of its own beyond the
// parser, so one Frontend can be shared across queries/goroutines.
type Frontend struct {
	p   *parser.Parser
	run query.Runner
}

// New builds a Frontend that executes plans through run.
func New(run query.Runner) *Frontend {
	return &Frontend{p: parser.New(), run: run}
}

// Query parses sqlText as a single SELECT statement and executes it against
// batch, returning the same Result shape internal/exec produces for the
// chained query surface.
func (f *Frontend) Query(ctx context.Context, sqlText string, batch *store.Batch) (*exec.Result, error) {
	q, err := f.Build(sqlText, batch)
	if err != nil {
		return nil, err
	}
	return q.Result(ctx)
}

// Build parses sqlText and returns the query.Query it compiles to, without
// executing it — useful for callers that want to inspect or cache the plan
// (Plan()) before running it.
func (f *Frontend) Build(sqlText string, batch *store.Batch) (*query.Query, error) {
	stmtNodes, _, err := f.p.Parse(sqlText, "", "")
	if err != nil {
		return nil, colqerr.New(colqerr.ParseErr, "sql parse error: %v", err)
	}
	if len(stmtNodes) != 1 {
		return nil, colqerr.New(colqerr.Unsupported, "expected exactly one SQL statement, got %d", len(stmtNodes))
	}
	sel, ok := stmtNodes[0].(*ast.SelectStmt)
	if !ok {
		return nil, colqerr.New(colqerr.Unsupported, "only SELECT statements are supported")
	}
	return f.buildSelect(sel, batch)
}

func (f *Frontend) buildSelect(sel *ast.SelectStmt, batch *store.Batch) (*query.Query, error) {
	if err := checkFrom(sel.From); err != nil {
		return nil, err
	}

	q := query.From(batch, f.run)

	if sel.Where != nil {
		pred, err := exprToPredicate(sel.Where)
		if err != nil {
			return nil, err
		}
		q = q.Where(pred)
	}

	aggregates, projected, wildcard, err := splitFields(sel.Fields)
	if err != nil {
		return nil, err
	}
	if sel.Distinct && (sel.GroupBy != nil || len(aggregates) > 0) {
		return nil, colqerr.New(colqerr.Unsupported, "DISTINCT with GROUP BY or an aggregate is not supported")
	}

	switch {
	case sel.GroupBy != nil:
		keyColumn, err := groupKeyColumn(sel.GroupBy)
		if err != nil {
			return nil, err
		}
		q = q.GroupBy(keyColumn, aggregates...)
		if sel.Having != nil {
			keys, err := havingKeys(sel.Having)
			if err != nil {
				return nil, err
			}
			q = q.HavingKeyIn(keys...)
		}
	case len(aggregates) > 0:
		if sel.Having != nil {
			return nil, colqerr.New(colqerr.Unsupported, "HAVING without GROUP BY is not supported")
		}
		q = q.Reduce(aggregates...)
	default:
		if sel.Having != nil {
			return nil, colqerr.New(colqerr.Unsupported, "HAVING requires a preceding GROUP BY")
		}
	}

	if sel.GroupBy == nil && len(aggregates) == 0 {
		// ORDER BY is applied before the projection so it can sort on
		// columns the SELECT list leaves out.
		if sel.OrderBy != nil {
			q, err = applyOrderBy(q, sel.OrderBy)
			if err != nil {
				return nil, err
			}
		}

		if !wildcard {
			q = q.Select(projected...)
		}

		if sel.Distinct {
			q = q.Distinct(distinctColumns(projected)...)
		}
	} else if sel.OrderBy != nil {
		q, err = applyOrderBy(q, sel.OrderBy)
		if err != nil {
			return nil, err
		}
	}

	if sel.Limit != nil {
		q, err = applyLimit(q, sel.Limit)
		if err != nil {
			return nil, err
		}
	}

	return q, nil
}

func checkFrom(from *ast.TableRefsClause) error {
	if from == nil {
		return colqerr.New(colqerr.Unsupported, "SELECT without FROM is not supported")
	}
	join := from.TableRefs
	if join.Right != nil {
		return colqerr.New(colqerr.Unsupported, "joins are not supported")
	}
	source, ok := join.Left.(*ast.TableSource)
	if !ok {
		return colqerr.New(colqerr.Unsupported, "only a single table source is supported")
	}
	if _, ok := source.Source.(*ast.TableName); !ok {
		return colqerr.New(colqerr.Unsupported, "subqueries in FROM are not supported")
	}
	return nil
}

// splitFields separates plain/renamed column references (projected) from
// aggregate function calls (aggregates); a "SELECT *" reports wildcard=true
// and both slices empty.
func splitFields(list *ast.FieldList) (aggregates []agg.AggSpec, projected []query.Column, wildcard bool, err error) {
	if list == nil {
		return nil, nil, true, nil
	}
	for _, field := range list.Fields {
		if field.WildCard != nil {
			wildcard = true
			continue
		}
		switch expr := field.Expr.(type) {
		case *ast.AggregateFuncExpr:
			spec, specErr := aggregateSpec(expr, field)
			if specErr != nil {
				return nil, nil, false, specErr
			}
			aggregates = append(aggregates, spec)
		case *ast.ColumnNameExpr:
			name := expr.Name.Name.O
			out := name
			if field.AsName.O != "" {
				out = field.AsName.O
			}
			projected = append(projected, query.As(out, name))
		default:
			return nil, nil, false, colqerr.New(colqerr.Unsupported, "unsupported select expression %T", field.Expr)
		}
	}
	return aggregates, projected, wildcard, nil
}

func aggregateSpec(fn *ast.AggregateFuncExpr, field *ast.SelectField) (agg.AggSpec, error) {
	name := field.AsName.O
	if name == "" {
		name = strings.ToLower(fn.F)
	}
	kind, err := aggFuncKind(fn.F)
	if err != nil {
		return agg.AggSpec{}, err
	}
	column := ""
	if kind != agg.AggCount || len(fn.Args) > 0 {
		if len(fn.Args) != 1 {
			return agg.AggSpec{}, colqerr.New(colqerr.Unsupported, "aggregate %s requires exactly one argument", fn.F)
		}
		if col, ok := fn.Args[0].(*ast.ColumnNameExpr); ok {
			column = col.Name.Name.O
		} else if _, ok := fn.Args[0].(*driver.ValueExpr); !ok || kind != agg.AggCount {
			return agg.AggSpec{}, colqerr.New(colqerr.Unsupported, "unsupported aggregate argument to %s", fn.F)
		}
	}
	return agg.AggSpec{Name: name, Column: column, Func: kind}, nil
}

func aggFuncKind(f string) (agg.AggFuncKind, error) {
	switch strings.ToUpper(f) {
	case "SUM":
		return agg.AggSum, nil
	case "AVG":
		return agg.AggAvg, nil
	case "MIN":
		return agg.AggMin, nil
	case "MAX":
		return agg.AggMax, nil
	case "COUNT":
		return agg.AggCount, nil
	default:
		return 0, colqerr.New(colqerr.Unsupported, "unsupported aggregate function %s", f)
	}
}

func groupKeyColumn(gb *ast.GroupByClause) (string, error) {
	if len(gb.Items) != 1 {
		return "", colqerr.New(colqerr.Unsupported, "GROUP BY supports exactly one column")
	}
	col, ok := gb.Items[0].Expr.(*ast.ColumnNameExpr)
	if !ok {
		return "", colqerr.New(colqerr.Unsupported, "GROUP BY requires a plain column reference")
	}
	return col.Name.Name.O, nil
}

// havingKeys supports only `HAVING key = 'v'` and `HAVING key IN (...)`,
// matching the engine's decision (DESIGN.md) that HAVING only filters on
// the group key, never on an aggregate value.
func havingKeys(h *ast.HavingClause) ([]string, error) {
	switch e := h.Expr.(type) {
	case *ast.BinaryOperationExpr:
		if e.Op != opcode.EQ {
			return nil, colqerr.New(colqerr.Unsupported, "HAVING only supports equality/IN on the group key")
		}
		_, val, err := columnAndLiteral(e.L, e.R)
		if err != nil {
			return nil, err
		}
		s, ok := val.(string)
		if !ok {
			s = fmt.Sprint(val)
		}
		return []string{s}, nil
	case *ast.PatternInExpr:
		if e.Not {
			return nil, colqerr.New(colqerr.Unsupported, "HAVING NOT IN is not supported")
		}
		keys := make([]string, 0, len(e.List))
		for _, item := range e.List {
			v, ok := literalValue(item)
			if !ok {
				return nil, colqerr.New(colqerr.Unsupported, "HAVING IN list must be literals")
			}
			if s, ok := v.(string); ok {
				keys = append(keys, s)
			} else {
				keys = append(keys, fmt.Sprint(v))
			}
		}
		return keys, nil
	default:
		return nil, colqerr.New(colqerr.Unsupported, "unsupported HAVING expression %T", h.Expr)
	}
}

func applyOrderBy(q *query.Query, ob *ast.OrderByClause) (*query.Query, error) {
	for i, item := range ob.Items {
		col, ok := item.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return nil, colqerr.New(colqerr.Unsupported, "ORDER BY requires a plain column reference")
		}
		name := col.Name.Name.O
		if i == 0 {
			if item.Desc {
				q = q.OrderByDescending(name)
			} else {
				q = q.OrderBy(name)
			}
			continue
		}
		if item.Desc {
			q = q.ThenByDescending(name)
		} else {
			q = q.ThenBy(name)
		}
	}
	return q, nil
}

func applyLimit(q *query.Query, lim *ast.Limit) (*query.Query, error) {
	if lim.Offset != nil {
		n, ok := literalInt(lim.Offset)
		if !ok {
			return nil, colqerr.New(colqerr.Unsupported, "LIMIT offset must be a literal integer")
		}
		q = q.Skip(int(n))
	}
	n, ok := literalInt(lim.Count)
	if !ok {
		return nil, colqerr.New(colqerr.Unsupported, "LIMIT count must be a literal integer")
	}
	return q.Take(int(n)), nil
}

func distinctColumns(projected []query.Column) []string {
	cols := make([]string, len(projected))
	for i, c := range projected {
		cols[i] = c.Name
	}
	return cols
}

// exprToPredicate converts a WHERE/ON boolean expression tree into the
// engine's own predicate tree.
func exprToPredicate(e ast.ExprNode) (predicate.Predicate, error) {
	switch expr := e.(type) {
	case *ast.ParenthesesExpr:
		return exprToPredicate(expr.Expr)
	case *ast.BinaryOperationExpr:
		switch expr.Op {
		case opcode.LogicAnd:
			l, err := exprToPredicate(expr.L)
			if err != nil {
				return nil, err
			}
			r, err := exprToPredicate(expr.R)
			if err != nil {
				return nil, err
			}
			return query.And(l, r), nil
		case opcode.LogicOr:
			l, err := exprToPredicate(expr.L)
			if err != nil {
				return nil, err
			}
			r, err := exprToPredicate(expr.R)
			if err != nil {
				return nil, err
			}
			return query.Or(l, r), nil
		default:
			return comparisonPredicate(expr)
		}
	case *ast.UnaryOperationExpr:
		if expr.Op != opcode.Not {
			return nil, colqerr.New(colqerr.Unsupported, "unsupported unary operator in WHERE")
		}
		inner, err := exprToPredicate(expr.V)
		if err != nil {
			return nil, err
		}
		return query.Not(inner), nil
	case *ast.PatternLikeOrIlikeExpr:
		col, ok := expr.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return nil, colqerr.New(colqerr.Unsupported, "LIKE requires a plain column on the left")
		}
		pattern, ok := literalValue(expr.Pattern)
		if !ok {
			return nil, colqerr.New(colqerr.Unsupported, "LIKE pattern must be a string literal")
		}
		ps, ok := pattern.(string)
		if !ok {
			return nil, colqerr.New(colqerr.Unsupported, "LIKE pattern must be a string literal")
		}
		p := query.Col(col.Name.Name.O).Like(ps)
		if expr.Not {
			return query.Not(p), nil
		}
		return p, nil
	case *ast.IsNullExpr:
		col, ok := expr.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return nil, colqerr.New(colqerr.Unsupported, "IS NULL requires a plain column")
		}
		if expr.Not {
			return query.Col(col.Name.Name.O).IsNotNull(), nil
		}
		return query.Col(col.Name.Name.O).IsNull(), nil
	default:
		return nil, colqerr.New(colqerr.Unsupported, "unsupported WHERE expression %T", e)
	}
}

func comparisonPredicate(expr *ast.BinaryOperationExpr) (predicate.Predicate, error) {
	op, flip, err := compareOp(expr.Op)
	if err != nil {
		return nil, err
	}
	col, val, err := columnAndLiteral(expr.L, expr.R)
	if err != nil {
		return nil, err
	}
	if flip {
		op = flipOp(op)
	}
	return columnCompare(col, op, val), nil
}

func compareOp(op opcode.Op) (predicate.CompareOp, bool, error) {
	switch op {
	case opcode.EQ:
		return predicate.OpEQ, false, nil
	case opcode.NE:
		return predicate.OpNE, false, nil
	case opcode.LT:
		return predicate.OpLT, false, nil
	case opcode.LE:
		return predicate.OpLE, false, nil
	case opcode.GT:
		return predicate.OpGT, false, nil
	case opcode.GE:
		return predicate.OpGE, false, nil
	default:
		return 0, false, colqerr.New(colqerr.Unsupported, "unsupported comparison operator")
	}
}

func flipOp(op predicate.CompareOp) predicate.CompareOp {
	switch op {
	case predicate.OpLT:
		return predicate.OpGT
	case predicate.OpLE:
		return predicate.OpGE
	case predicate.OpGT:
		return predicate.OpLT
	case predicate.OpGE:
		return predicate.OpLE
	default:
		return op
	}
}

// columnAndLiteral figures out which side of a binary comparison is the
// column reference and which is the literal, since SQL allows either order
// (`age > 40` and `40 < age` mean the same thing).
func columnAndLiteral(l, r ast.ExprNode) (column string, value any, err error) {
	if col, ok := l.(*ast.ColumnNameExpr); ok {
		if v, ok := literalValue(r); ok {
			return col.Name.Name.O, v, nil
		}
	}
	if col, ok := r.(*ast.ColumnNameExpr); ok {
		if v, ok := literalValue(l); ok {
			return col.Name.Name.O, v, nil
		}
	}
	return "", nil, colqerr.New(colqerr.Unsupported, "comparisons must be between a column and a literal")
}

func literalValue(e ast.ExprNode) (any, bool) {
	ve, ok := e.(*driver.ValueExpr)
	if !ok {
		return nil, false
	}
	v := ve.Datum.GetValue()
	switch t := v.(type) {
	case []byte:
		return string(t), true
	case uint64:
		return int64(t), true
	default:
		return v, true
	}
}

func literalInt(e ast.ExprNode) (int64, bool) {
	v, ok := literalValue(e)
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

// columnCompare dispatches through query.Col so the same typed-predicate
// construction the chained query surface uses backs SQL comparisons too.
func columnCompare(column string, op predicate.CompareOp, v any) predicate.Predicate {
	switch op {
	case predicate.OpEQ:
		return query.Col(column).EQ(v)
	case predicate.OpNE:
		return query.Col(column).NE(v)
	case predicate.OpLT:
		return query.Col(column).LT(v)
	case predicate.OpLE:
		return query.Col(column).LE(v)
	case predicate.OpGT:
		return query.Col(column).GT(v)
	default:
		return query.Col(column).GE(v)
	}
}
