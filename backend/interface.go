// Package backend defines the boundary to the remote tabular store: record
// counting, bulk fetching as a lazy stream, and the three-phase streaming
// write protocol (begin, N sends, commit).
//
// Implementations talk to a slow, line-oriented device; everything in this
// package is synchronous and blocking by design.
package backend

// Raw is a flat backend record: raw column name to string value.
type Raw map[string]string

// Clone returns a copy of the raw record.
func (r Raw) Clone() Raw {
	clone := make(Raw, len(r))
	for k, v := range r {
		clone[k] = v
	}
	return clone
}

// Equal reports whether both raw records hold exactly the same columns and
// values.
func (r Raw) Equal(other Raw) bool {
	if len(r) != len(other) {
		return false
	}
	for k, v := range r {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// WildcardColumns requests all columns of a table from Fetch.
var WildcardColumns = []string{"*"}

// Interface is the backend storage API, scoped by table name.
type Interface interface {
	// RecordCount returns the number of records in the table.
	RecordCount(table string) (int, error)

	// Fetch requests the table's records as a lazy stream. Columns is either
	// WildcardColumns or the raw column names to project. Filters are
	// equality matches on encoded values. BufferSize is a hint for the
	// transport allocation of the reply channel. If onlyUnread is set, only
	// records not yet served are returned and served records are marked
	// read.
	Fetch(table string, columns []string, filters map[string]string, bufferSize int, onlyUnread bool) (*Stream, error)

	// BeginUpsert opens an insert-or-update streaming session.
	BeginUpsert(table string) (Session, error)
	// BeginDelete opens a delete-by-key streaming session.
	BeginDelete(table string) (Session, error)
	// BeginDeleteAll opens a streaming session that deletes every sent
	// record.
	BeginDeleteAll(table string) (Session, error)
}

// Session is one streaming write: zero or more sends followed by exactly one
// commit. Committing with zero records sent must not hit the backend.
// Sessions are strictly sequential and not safe for concurrent use. Records
// sent before a failed or abandoned session are not rolled back.
type Session interface {
	Send(r Raw) error
	Commit() error
}
