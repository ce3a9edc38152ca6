package schema

import (
	"fmt"
	"regexp"
)

var tableNameExpr = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// A Table describes the layout of one named backend table: its ordered
// fields and a column lookup. Tables are immutable after creation.
type Table struct {
	name     string
	fields   []*Field
	byColumn map[string]*Field
}

// New creates a new table layout from the given fields.
func New(name string, fields ...*Field) (*Table, error) {
	if !tableNameExpr.MatchString(name) {
		return nil, ErrInvalidTableName
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	byColumn := make(map[string]*Field, len(fields))
	for _, field := range fields {
		if field.Column == "" || field.Kind == InvalidKind {
			return nil, fmt.Errorf("table %s: field %q is incomplete", name, field.Column)
		}
		if _, ok := byColumn[field.Column]; ok {
			return nil, fmt.Errorf("table %s: %w: %s", name, ErrDuplicateField, field.Column)
		}
		byColumn[field.Column] = field
	}

	return &Table{
		name:     name,
		fields:   fields,
		byColumn: byColumn,
	}, nil
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Fields returns the table's fields in declaration order.
func (t *Table) Fields() []*Field {
	fields := make([]*Field, len(t.fields))
	copy(fields, t.fields)
	return fields
}

// Columns returns the raw column names in declaration order.
func (t *Table) Columns() []string {
	columns := make([]string, 0, len(t.fields))
	for _, field := range t.fields {
		columns = append(columns, field.Column)
	}
	return columns
}

// Field returns the field bound to the given column.
func (t *Table) Field(column string) (*Field, error) {
	field, ok := t.byColumn[column]
	if !ok {
		return nil, fmt.Errorf("table %s: %w: %s", t.name, ErrUnknownField, column)
	}
	return field, nil
}

// Has reports whether the table has a field for the given column.
func (t *Table) Has(column string) bool {
	_, ok := t.byColumn[column]
	return ok
}

// Owns reports whether the given field belongs to this table. It compares
// identity, so an equally named field of another table does not count.
func (t *Table) Owns(field *Field) bool {
	owned, ok := t.byColumn[field.Column]
	return ok && owned == field
}
