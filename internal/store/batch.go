package store

// Batch is an immutable, frozen record batch: a schema plus one Column per
// field, all sharing the same row count. It carries no
// mutation methods — once Builder.Freeze returns one, every downstream
// package (predicates, aggregators, the executor) holds it as a shared,
// non-owning, read-only reference.
type Batch struct {
	schema   *Schema
	columns  []Column
	rowCount int
}

func (b *Batch) Schema() *Schema  { return b.schema }
func (b *Batch) RowCount() int    { return b.rowCount }
func (b *Batch) NumColumns() int  { return len(b.columns) }

// Column returns the column at position i.
func (b *Batch) Column(i int) Column { return b.columns[i] }

// ColumnByName resolves a column by name, failing with UnknownColumn.
func (b *Batch) ColumnByName(name string) (Column, error) {
	i, err := b.schema.IndexOf(name)
	if err != nil {
		return nil, err
	}
	return b.columns[i], nil
}
