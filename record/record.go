// Package record implements the in-memory representation of one table row.
//
// A record owns the raw column values as the backend sent them and decodes
// them lazily, per field, on access. Mutations run the field's encode and
// validation path immediately, so a record never holds a raw value its
// schema would reject. Records produced by a query are bound to the backend
// they came from and can be saved and deleted; standalone records must be
// attached first.
package record

import (
	"errors"

	"github.com/mitchellh/copystructure"
	"github.com/tevino/abool"

	"github.com/gatewise/tabular/backend"
	"github.com/gatewise/tabular/log"
	"github.com/gatewise/tabular/schema"
)

// ErrDetached is returned when saving or deleting a record that is not bound
// to a backend.
var ErrDetached = errors.New("record is not bound to a backend")

// Record is one row of a backend table.
type Record struct {
	table *schema.Table
	raw   backend.Raw
	dirty *abool.AtomicBool
	db    backend.Interface
}

// New creates an empty, detached record. It is dirty until saved.
func New(table *schema.Table) *Record {
	return &Record{
		table: table,
		raw:   make(backend.Raw),
		dirty: abool.NewBool(true),
	}
}

// NewFromValues creates a detached record from field values. Every value
// runs through its field's encode and validation path. Nil values are
// omitted rather than stored.
func NewFromValues(table *schema.Table, values map[string]interface{}) (*Record, error) {
	r := New(table)
	for column, value := range values {
		if value == nil {
			continue
		}
		if err := r.Set(column, value); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// FromRaw wraps a raw backend record. The record is clean and detached; use
// WithBackend to bind it.
func FromRaw(table *schema.Table, raw backend.Raw) *Record {
	return &Record{
		table: table,
		raw:   raw,
		dirty: abool.NewBool(false),
	}
}

// WithBackend binds the record to a backend and returns it.
func (r *Record) WithBackend(db backend.Interface) *Record {
	r.db = db
	return r
}

// Table returns the record's table layout.
func (r *Record) Table() *schema.Table {
	return r.table
}

// Raw returns a copy of the record's raw column values.
func (r *Record) Raw() backend.Raw {
	return r.raw.Clone()
}

// IsDirty reports whether the record has unsaved changes.
func (r *Record) IsDirty() bool {
	return r.dirty.IsSet()
}

// Get decodes the value of the given column. It returns nil without error if
// the column is not set.
func (r *Record) Get(column string) (interface{}, error) {
	field, err := r.table.Field(column)
	if err != nil {
		return nil, err
	}
	raw, ok := r.raw[column]
	if !ok {
		return nil, nil
	}
	return field.Decode(raw)
}

// Set encodes and stores a value for the given column and marks the record
// dirty. Setting nil clears the column.
func (r *Record) Set(column string, value interface{}) error {
	if value == nil {
		return r.Clear(column)
	}
	field, err := r.table.Field(column)
	if err != nil {
		return err
	}
	raw, err := field.Encode(value)
	if err != nil {
		return err
	}
	r.raw[column] = raw
	r.dirty.Set()
	return nil
}

// Clear removes the column's value and marks the record dirty.
func (r *Record) Clear(column string) error {
	if _, err := r.table.Field(column); err != nil {
		return err
	}
	if _, ok := r.raw[column]; ok {
		delete(r.raw, column)
		r.dirty.Set()
	}
	return nil
}

// Save writes the record to its backend through an insert-or-update session.
// The dirty flag is cleared only after a successful commit.
func (r *Record) Save() error {
	if r.db == nil {
		return ErrDetached
	}

	session, err := r.db.BeginUpsert(r.table.Name())
	if err != nil {
		return err
	}
	if err := session.Send(r.raw.Clone()); err != nil {
		return err
	}
	if err := session.Commit(); err != nil {
		return err
	}

	r.dirty.UnSet()
	log.Tracef("record: saved %s record", r.table.Name())
	return nil
}

// Delete removes the record from its backend through a delete-by-key
// session. The in-memory record stays dirty afterwards, as it no longer
// reflects backend state.
func (r *Record) Delete() error {
	if r.db == nil {
		return ErrDetached
	}

	session, err := r.db.BeginDelete(r.table.Name())
	if err != nil {
		return err
	}
	if err := session.Send(r.raw.Clone()); err != nil {
		return err
	}
	if err := session.Commit(); err != nil {
		return err
	}

	r.dirty.Set()
	log.Tracef("record: deleted %s record", r.table.Name())
	return nil
}

// Equal reports whether both records belong to the same table and hold
// exactly the same raw values.
func (r *Record) Equal(other *Record) bool {
	if other == nil {
		return false
	}
	return r.table.Name() == other.table.Name() && r.raw.Equal(other.raw)
}

// Copy returns a detached deep copy of the record.
func (r *Record) Copy() *Record {
	copied, err := copystructure.Copy(r.raw)
	if err != nil {
		// Raw records are flat string maps, copying them cannot fail.
		copied = r.raw.Clone()
	}
	return &Record{
		table: r.table,
		raw:   copied.(backend.Raw),
		dirty: abool.NewBool(r.dirty.IsSet()),
	}
}
