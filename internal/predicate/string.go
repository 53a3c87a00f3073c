package predicate

import (
	"strings"

	"colq/internal/bitmap"
	"colq/internal/store"
	"colq/internal/zonemap"
)

// StringCmp compares a Utf8 or Dictionary column against a string constant.
// Op may be any CompareOp including OpLike, whose Value is a SQL-style
// pattern using % as a wildcard: Like supports leading, trailing, or
// surrounding % wildcards.
type StringCmp struct {
	Column string
	Op     CompareOp
	Value  string
}

func (p *StringCmp) Columns() []string { return []string{p.Column} }

func (p *StringCmp) Evaluate(batch *store.Batch, selection *bitmap.Bitmap) error {
	if err := checkLength(batch, selection); err != nil {
		return err
	}
	col, err := columnOrError(batch, p.Column)
	if err != nil {
		return err
	}

	switch c := col.(type) {
	case *store.StringColumn:
		evalMasked(selection, c.Validity(), func(row int) bool {
			return stringMatches(c.Value(row), p.Op, p.Value)
		})
		return nil
	case *store.DictionaryColumn:
		// Resolve the constant to the set of dictionary codes it matches
		// once, then compare codes instead of re-decoding strings per row.
		matchingCodes := dictionaryCodesMatching(c, p.Op, p.Value)
		evalMasked(selection, c.Validity(), func(row int) bool {
			return matchingCodes[c.Code(row)]
		})
		return nil
	default:
		return typeMismatch(p.Column, col)
	}
}

func dictionaryCodesMatching(c *store.DictionaryColumn, op CompareOp, value string) map[int32]bool {
	matches := make(map[int32]bool, len(c.Dictionary))
	for code, entry := range c.Dictionary {
		if stringMatches(entry, op, value) {
			matches[int32(code)] = true
		}
	}
	return matches
}

func stringMatches(v string, op CompareOp, value string) bool {
	switch op {
	case OpEQ:
		return v == value
	case OpNE:
		return v != value
	case OpLT:
		return v < value
	case OpLE:
		return v <= value
	case OpGT:
		return v > value
	case OpGE:
		return v >= value
	case OpLike:
		return likeMatches(v, value)
	default:
		return false
	}
}

// likeMatches implements the % wildcard subset: a pattern with no %
// requires an exact match, and a leading/trailing/surrounding % anchors a
// prefix/suffix/substring match on the rest of the pattern, taken
// literally (any inner % included). A pattern whose % signs are all inner
// falls back to a split-on-% check: the first part anchors the start, the
// last part anchors the end, and the parts must appear in order.
func likeMatches(v, pattern string) bool {
	if !strings.Contains(pattern, "%") {
		return v == pattern
	}
	leading := strings.HasPrefix(pattern, "%")
	trailing := strings.HasSuffix(pattern, "%")
	trimmed := strings.Trim(pattern, "%")

	switch {
	case leading && trailing:
		return strings.Contains(v, trimmed)
	case trailing:
		return strings.HasPrefix(v, trimmed)
	case leading:
		return strings.HasSuffix(v, trimmed)
	default:
		parts := strings.Split(pattern, "%")
		pos := 0
		for i, part := range parts {
			if part == "" {
				continue
			}
			idx := strings.Index(v[pos:], part)
			if idx < 0 {
				return false
			}
			if i == 0 && idx != 0 {
				return false
			}
			pos += idx + len(part)
		}
		if !strings.HasSuffix(pattern, "%") {
			return strings.HasSuffix(v, parts[len(parts)-1])
		}
		return true
	}
}

// PruneColumn / PossiblyMatches implement zonemap.Pruner. For string
// columns, pruning is only attempted for = and IS NULL; every other
// operator (including Like) is conservative.
func (p *StringCmp) PruneColumn() (string, bool) { return p.Column, p.Op == OpEQ }

func (p *StringCmp) PossiblyMatches(summary zonemap.ChunkSummary) bool {
	if p.Op != OpEQ || summary.Numeric {
		return true
	}
	return p.Value >= summary.MinS && p.Value <= summary.MaxS
}
