// Package hashmap provides an in-memory backend for development and tests.
// It implements the full backend contract including equality filters, column
// projection, unread marking and the streaming write protocol.
package hashmap

import (
	"sync"

	"github.com/gatewise/tabular/backend"
)

// Native failure codes reported through backend.Error.
const (
	codeMissingKey = 1
)

// DefaultKeyColumn is used for upsert and delete matching unless a table has
// its own key column configured.
const DefaultKeyColumn = "Id"

type row struct {
	data backend.Raw
	read bool
}

// HashMap is an in-memory backend.
type HashMap struct {
	lock       sync.Mutex
	tables     map[string][]*row
	keyColumns map[string]string
}

// New creates an empty in-memory backend.
func New() *HashMap {
	return &HashMap{
		tables:     make(map[string][]*row),
		keyColumns: make(map[string]string),
	}
}

// SetKeyColumn configures the column used for upsert and delete matching on
// the given table.
func (hm *HashMap) SetKeyColumn(table, column string) {
	hm.lock.Lock()
	defer hm.lock.Unlock()
	hm.keyColumns[table] = column
}

func (hm *HashMap) keyColumn(table string) string {
	if column, ok := hm.keyColumns[table]; ok {
		return column
	}
	return DefaultKeyColumn
}

// RecordCount returns the number of records in the table.
func (hm *HashMap) RecordCount(table string) (int, error) {
	hm.lock.Lock()
	defer hm.lock.Unlock()
	return len(hm.tables[table]), nil
}

// Fetch streams the table's records matching the given filters.
func (hm *HashMap) Fetch(table string, columns []string, filters map[string]string, bufferSize int, onlyUnread bool) (*backend.Stream, error) {
	stream := backend.NewStream(chanSize(bufferSize))
	go hm.fetchExecutor(stream, table, columns, filters, onlyUnread)
	return stream, nil
}

// chanSize maps the byte-oriented buffer size hint to a channel capacity.
func chanSize(bufferSize int) int {
	size := bufferSize / 256
	if size < 1 {
		size = 1
	}
	if size > 1024 {
		size = 1024
	}
	return size
}

func (hm *HashMap) fetchExecutor(stream *backend.Stream, table string, columns []string, filters map[string]string, onlyUnread bool) {
	hm.lock.Lock()
	matching := make([]*row, 0, len(hm.tables[table]))
	for _, r := range hm.tables[table] {
		if onlyUnread && r.read {
			continue
		}
		if matches(r.data, filters) {
			matching = append(matching, r)
		}
	}
	hm.lock.Unlock()

	for _, r := range matching {
		if onlyUnread {
			hm.lock.Lock()
			r.read = true
			hm.lock.Unlock()
		}

		select {
		case stream.Next <- project(r.data, columns):
		case <-stream.Done:
			stream.Finish(nil)
			return
		}
	}

	stream.Finish(nil)
}

func matches(data backend.Raw, filters map[string]string) bool {
	for column, want := range filters {
		if data[column] != want {
			return false
		}
	}
	return true
}

func project(data backend.Raw, columns []string) backend.Raw {
	if len(columns) == 1 && columns[0] == "*" {
		return data.Clone()
	}
	projected := make(backend.Raw, len(columns))
	for _, column := range columns {
		if value, ok := data[column]; ok {
			projected[column] = value
		}
	}
	return projected
}

const (
	opUpsert = iota
	opDelete
	opDeleteAll
)

type session struct {
	hm      *HashMap
	table   string
	op      int
	pending []backend.Raw
	closed  bool
}

// BeginUpsert opens an insert-or-update streaming session.
func (hm *HashMap) BeginUpsert(table string) (backend.Session, error) {
	return &session{hm: hm, table: table, op: opUpsert}, nil
}

// BeginDelete opens a delete-by-key streaming session.
func (hm *HashMap) BeginDelete(table string) (backend.Session, error) {
	return &session{hm: hm, table: table, op: opDelete}, nil
}

// BeginDeleteAll opens a streaming session deleting every sent record.
func (hm *HashMap) BeginDeleteAll(table string) (backend.Session, error) {
	return &session{hm: hm, table: table, op: opDeleteAll}, nil
}

func (s *session) Send(r backend.Raw) error {
	if s.closed {
		return backend.ErrClosed
	}
	s.pending = append(s.pending, r.Clone())
	return nil
}

func (s *session) Commit() error {
	if s.closed {
		return backend.ErrClosed
	}
	s.closed = true

	// Zero sends followed by commit performs no backend call.
	if len(s.pending) == 0 {
		return nil
	}

	s.hm.lock.Lock()
	defer s.hm.lock.Unlock()

	switch s.op {
	case opUpsert:
		return s.hm.applyUpsert(s.table, s.pending)
	default:
		return s.hm.applyDelete(s.table, s.pending)
	}
}

// applyUpsert replaces rows with a matching key and appends the rest. Caller
// must hold the lock.
func (hm *HashMap) applyUpsert(table string, pending []backend.Raw) error {
	keyColumn := hm.keyColumn(table)

	for _, data := range pending {
		key, ok := data[keyColumn]
		if !ok {
			return &backend.Error{Op: "upsert", Table: table, Code: codeMissingKey}
		}

		replaced := false
		for _, r := range hm.tables[table] {
			if r.data[keyColumn] == key {
				r.data = data
				r.read = false
				replaced = true
				break
			}
		}
		if !replaced {
			hm.tables[table] = append(hm.tables[table], &row{data: data})
		}
	}
	return nil
}

// applyDelete removes rows with a matching key. Caller must hold the lock.
func (hm *HashMap) applyDelete(table string, pending []backend.Raw) error {
	keyColumn := hm.keyColumn(table)

	for _, data := range pending {
		key, ok := data[keyColumn]
		if !ok {
			return &backend.Error{Op: "delete", Table: table, Code: codeMissingKey}
		}

		rows := hm.tables[table]
		kept := rows[:0]
		for _, r := range rows {
			if r.data[keyColumn] != key {
				kept = append(kept, r)
			}
		}
		hm.tables[table] = kept
	}
	return nil
}
