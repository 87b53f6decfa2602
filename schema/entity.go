// Package schema describes how entities map to table rows without
// reflection: an entity lists its own columns and a RowMapper builds it back
// from a fetched row.
package schema

import (
	"reflect"

	"github.com/Konsultn-Engineering/txscope/database"
)

// Field is one column and the value an entity holds for it.
type Field struct {
	Name  string
	Value any
}

// F is shorthand for Field{Name: name, Value: value}.
func F(name string, value any) Field {
	return Field{Name: name, Value: value}
}

// Entity is a value persisted as a table row. Fields lists the columns in
// insertion order.
type Entity interface {
	Fields() []Field
}

// Named entities choose their own table name.
type Named interface {
	TableName() string
}

// RowMapper builds an entity from a fetched row.
type RowMapper[T Entity] func(row database.Row) (T, error)

// FieldMap returns the fields of e keyed by column name.
func FieldMap(e Entity) database.Row {
	return RowOf(e.Fields())
}

// RowOf keys fields by column name.
func RowOf(fields []Field) database.Row {
	m := make(database.Row, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Value
	}
	return m
}

// Columns returns the column names of fields in order.
func Columns(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// Lookup returns the value of the named field.
func Lookup(fields []Field, name string) (any, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of the named field, appending it when absent.
func Set(fields []Field, name string, value any) []Field {
	for i := range fields {
		if fields[i].Name == name {
			fields[i].Value = value
			return fields
		}
	}
	return append(fields, Field{Name: name, Value: value})
}

// TableNameOf returns the table for T: the TableName method when *T or T
// implements Named, otherwise TableName of the type name.
func TableNameOf[T Entity]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if n, ok := reflect.New(t).Interface().(Named); ok {
		return n.TableName()
	}
	return TableName(t.Name())
}
