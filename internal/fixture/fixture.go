// Package fixture builds the literal 6-row "employees" batch used across
// the engine's end-to-end worked examples, shared by every package's
// tests so the fixture data stays in exactly one place.
package fixture

import "colq/internal/store"

// Employees builds:
//
//	id | name    | age  | salary    | active | category
//	 1 | "Alice"  |  30  | 50000.00  | true   | "Eng"
//	 2 | "Bob"    |  45  | 70000.00  | true   | "Sales"
//	 3 | "Carol"  |  55  | 90000.00  | false  | "Eng"
//	 4 | "Dan"    |  25  | 40000.00  | true   | "HR"
//	 5 | "Eve"    |  60  | 120000.00 | true   | "Eng"
//	 6 | "Fred"   | NULL | 55000.00  | false  | "Sales"
func Employees() (*store.Batch, error) {
	b := store.NewBuilder()

	b.Add(store.FieldData{
		Field:      store.Field{Name: "id", Type: store.Int32},
		Int32Values: []int32{1, 2, 3, 4, 5, 6},
	})
	b.Add(store.FieldData{
		Field:        store.Field{Name: "name", Type: store.Utf8},
		StringValues: []string{"Alice", "Bob", "Carol", "Dan", "Eve", "Fred"},
	})
	b.Add(store.FieldData{
		Field:       store.Field{Name: "age", Type: store.Int32, Nullable: true},
		Int32Values: []int32{30, 45, 55, 25, 60, 0},
		Validity:    []bool{true, true, true, true, true, false},
	})
	b.Add(store.FieldData{
		Field: store.Field{Name: "salary", Type: store.Decimal128Type, DecScale: 2},
		DecimalValues: []store.Decimal128{
			store.NewDecimal128(5000000, 2),
			store.NewDecimal128(7000000, 2),
			store.NewDecimal128(9000000, 2),
			store.NewDecimal128(4000000, 2),
			store.NewDecimal128(12000000, 2),
			store.NewDecimal128(5500000, 2),
		},
	})
	b.Add(store.FieldData{
		Field:     store.Field{Name: "active", Type: store.BoolType},
		BoolValues: []bool{true, true, false, true, true, false},
	})
	b.Add(store.FieldData{
		Field:             store.Field{Name: "category", Type: store.DictionaryType, DictValue: store.Utf8},
		DictionaryValues:  []string{"Eng", "Sales", "HR"},
		DictionaryIndices: []int32{0, 1, 0, 2, 0, 1},
	})

	return b.Freeze()
}
