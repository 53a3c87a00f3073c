package cache

import (
	"fmt"
	"sort"
	"strings"

	"colq/internal/compile"
	"colq/internal/plan"
)

// Fingerprint deterministically encodes root's shape as a byte-comparable
// string, extending internal/compile.Fingerprint's predicate encoding
// with every other structural element of the plan: two structurally equal
// query plans share a cache entry. It never reads the batch's data: a Scan
// is encoded by its row count only, so the same query against two batches
// with the same row count shares an entry.
func Fingerprint(root plan.Node) string {
	var b strings.Builder
	plan.Walk(root, func(n plan.Node) {
		fingerprintNode(&b, n)
		b.WriteByte('|')
	})
	return b.String()
}

func fingerprintNode(b *strings.Builder, n plan.Node) {
	switch t := n.(type) {
	case *plan.Scan:
		fmt.Fprintf(b, "scan(%d)", t.Batch.RowCount())
	case *plan.Filter:
		fmt.Fprintf(b, "filter(%s)", compile.Fingerprint(t.Predicates))
	case *plan.Project:
		b.WriteString("project(")
		for _, c := range t.Columns {
			if c.Compute != nil {
				fmt.Fprintf(b, "%s=compute;", c.Name)
			} else {
				fmt.Fprintf(b, "%s=%s;", c.Name, c.Source)
			}
		}
		b.WriteByte(')')
	case *plan.GroupBy:
		fmt.Fprintf(b, "groupby(%s,", t.KeyColumn)
		for _, a := range t.Aggregates {
			fmt.Fprintf(b, "%s=%s(%d);", a.Name, a.Column, a.Func)
		}
		if t.HavingKeys != nil {
			keys := make([]string, 0, len(t.HavingKeys))
			for k := range t.HavingKeys {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(b, "having=%q", keys)
		}
		b.WriteByte(')')
	case *plan.Aggregate:
		b.WriteString("agg(")
		for _, a := range t.Aggregates {
			fmt.Fprintf(b, "%s=%s(%d);", a.Name, a.Column, a.Func)
		}
		b.WriteByte(')')
	case *plan.Distinct:
		fmt.Fprintf(b, "distinct(%v,sorted=%v)", t.Columns, t.InputSorted)
	case *plan.Sort:
		b.WriteString("sort(")
		for _, k := range t.Keys {
			fmt.Fprintf(b, "%s:%v;", k.Column, k.Descending)
		}
		b.WriteByte(')')
	case *plan.Limit:
		fmt.Fprintf(b, "limit(%d)", t.N)
	case *plan.Offset:
		fmt.Fprintf(b, "offset(%d)", t.N)
	default:
		fmt.Fprintf(b, "unknown(%T)", n)
	}
}
