// Package query implements the typed query and update engine over a remote
// tabular backend.
//
// A Query is a copy-on-write plan: every builder call returns a new Query
// with fresh materialization state, so parameter changes always force a
// fresh fetch and never alias an in-flight cache. Results are materialized
// lazily on first access, cached append-only, and shared by every cursor
// over the same Query.
package query

import (
	"fmt"
	"sort"

	"github.com/mitchellh/copystructure"

	"github.com/gatewise/tabular/backend"
	"github.com/gatewise/tabular/record"
	"github.com/gatewise/tabular/schema"
)

// Query is an immutable-parameter, cache-bearing plan for reading and
// writing one table.
type Query struct {
	db    backend.Interface
	table *schema.Table

	bufferSize int
	selected   map[string]struct{}
	filters    map[string]string
	onlyUnread bool

	cell *cacheCell
}

// New creates a query over the given table.
func New(db backend.Interface, table *schema.Table) *Query {
	return &Query{
		db:       db,
		table:    table,
		selected: make(map[string]struct{}),
		filters:  make(map[string]string),
		cell:     newCacheCell(),
	}
}

// Table returns the table this query reads and writes.
func (q *Query) Table() *schema.Table {
	return q.table
}

// clone returns a new query with copied parameters and fresh
// materialization state.
func (q *Query) clone() *Query {
	selected := make(map[string]struct{}, len(q.selected))
	for column := range q.selected {
		selected[column] = struct{}{}
	}

	filters := make(map[string]string, len(q.filters))
	if copied, err := copystructure.Copy(q.filters); err == nil {
		filters = copied.(map[string]string)
	} else {
		for column, value := range q.filters {
			filters[column] = value
		}
	}

	return &Query{
		db:         q.db,
		table:      q.table,
		bufferSize: q.bufferSize,
		selected:   selected,
		filters:    filters,
		onlyUnread: q.onlyUnread,
		cell:       newCacheCell(),
	}
}

// Select restricts the fetched columns. Repeated calls are additive: the new
// selection is the union of the previous one and the given columns.
func (q *Query) Select(columns ...string) (*Query, error) {
	for _, column := range columns {
		if _, err := q.table.Field(column); err != nil {
			return nil, err
		}
	}

	nq := q.clone()
	for _, column := range columns {
		nq.selected[column] = struct{}{}
	}
	return nq, nil
}

// SelectFields is Select for field references. A field belonging to another
// table is rejected with a TypeMismatchError.
func (q *Query) SelectFields(fields ...*schema.Field) (*Query, error) {
	for _, field := range fields {
		if !q.table.Owns(field) {
			return nil, &schema.TypeMismatchError{
				Column:   field.Column,
				Expected: fmt.Sprintf("field of table %s", q.table.Name()),
				Got:      "field of another table",
			}
		}
	}

	columns := make([]string, 0, len(fields))
	for _, field := range fields {
		columns = append(columns, field.Column)
	}
	return q.Select(columns...)
}

// Where adds equality filters. Values are encoded through their fields.
// Repeated calls merge, with later entries overwriting earlier ones.
func (q *Query) Where(filters map[string]interface{}) (*Query, error) {
	if len(filters) == 0 {
		return nil, ErrEmptyFilter
	}

	encoded := make(map[string]string, len(filters))
	for column, value := range filters {
		field, err := q.table.Field(column)
		if err != nil {
			return nil, err
		}
		raw, err := field.Encode(value)
		if err != nil {
			return nil, err
		}
		encoded[column] = raw
	}

	nq := q.clone()
	for column, raw := range encoded {
		nq.filters[column] = raw
	}
	return nq, nil
}

// OnlyUnread restricts the query to records not yet served by the backend.
// It is idempotent.
func (q *Query) OnlyUnread() *Query {
	nq := q.clone()
	nq.onlyUnread = true
	return nq
}

// WithBufferSize sets an explicit transport buffer size, skipping the
// count-based estimate on materialization.
func (q *Query) WithBufferSize(size int) *Query {
	nq := q.clone()
	nq.bufferSize = size
	return nq
}

// Copy returns an equivalent query with reset materialization state.
func (q *Query) Copy() *Query {
	return q.clone()
}

// ClearCache returns an equivalent query whose next access fetches fresh
// data.
func (q *Query) ClearCache() *Query {
	return q.clone()
}

// columns returns the raw column names to fetch, or the wildcard if no
// selection was made.
func (q *Query) columns() []string {
	if len(q.selected) == 0 {
		return backend.WildcardColumns
	}
	columns := make([]string, 0, len(q.selected))
	for column := range q.selected {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

// Count returns the backend's record count for the table without
// materializing the query.
func (q *Query) Count() (int, error) {
	return q.db.RecordCount(q.table.Name())
}

// Len drains the query's backend stream into the cache and returns the
// number of cached records.
func (q *Query) Len() (int, error) {
	q.cell.lock.Lock()
	defer q.cell.lock.Unlock()

	if err := q.materializeLocked(); err != nil {
		return 0, err
	}
	for {
		_, ok, err := q.pullLocked()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
	}
	return len(q.cell.records), nil
}

// wrap turns a cached raw record into a backend-bound record.
func (q *Query) wrap(raw backend.Raw) *record.Record {
	return record.FromRaw(q.table, raw.Clone()).WithBackend(q.db)
}
