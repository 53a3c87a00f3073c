package store

import "colq/internal/colqerr"

// Schema is an ordered sequence of fields with a name->index mapping built
// once at construction for fast repeated lookups.
type Schema struct {
	Fields []Field
	index  map[string]int
}

// NewSchema builds a Schema from an ordered field list, failing with
// InvalidArgument if two fields share a name.
func NewSchema(fields []Field) (*Schema, error) {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		if _, exists := idx[f.Name]; exists {
			return nil, colqerr.WithColumn(colqerr.InvalidArg, f.Name, "duplicate field name")
		}
		idx[f.Name] = i
	}
	return &Schema{Fields: fields, index: idx}, nil
}

// IndexOf returns the position of a field by name, or UnknownColumn.
func (s *Schema) IndexOf(name string) (int, error) {
	i, ok := s.index[name]
	if !ok {
		return -1, colqerr.WithColumn(colqerr.UnknownColumn, name, "unknown column")
	}
	return i, nil
}

// Field returns the field at position i.
func (s *Schema) Field(i int) Field { return s.Fields[i] }

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.Fields) }

// Has reports whether name is a known column.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}
