// Package bbolt provides a persistent backend over a local bbolt file. It is
// meant as a mirror store: a local stand-in with the same contract as the
// remote device, useful for offline work and integration tests.
package bbolt

import (
	"fmt"
	"path/filepath"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/gatewise/tabular/backend"
	"github.com/gatewise/tabular/codec"
)

// Native failure codes reported through backend.Error.
const (
	codeMissingKey = 1
	codeStorage    = 2
)

// DefaultKeyColumn is used for upsert and delete matching unless a table has
// its own key column configured.
const DefaultKeyColumn = "Id"

// readMarkSuffix separates the read-marker bucket of a table from its data
// bucket. The NUL byte cannot appear in table names.
const readMarkSuffix = "\x00read"

// BBolt is a persistent backend over a single bbolt file.
type BBolt struct {
	db *bbolt.DB

	lock       sync.Mutex
	keyColumns map[string]string
}

// New opens or creates a bbolt backed store in the given directory.
func New(location string) (*BBolt, error) {
	db, err := bbolt.Open(filepath.Join(location, "tables.bbolt"), 0o600, nil)
	if err != nil {
		return nil, err
	}

	return &BBolt{
		db:         db,
		keyColumns: make(map[string]string),
	}, nil
}

// Close closes the underlying database file.
func (b *BBolt) Close() error {
	return b.db.Close()
}

// SetKeyColumn configures the column used for upsert and delete matching on
// the given table.
func (b *BBolt) SetKeyColumn(table, column string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.keyColumns[table] = column
}

func (b *BBolt) keyColumn(table string) string {
	b.lock.Lock()
	defer b.lock.Unlock()
	if column, ok := b.keyColumns[table]; ok {
		return column
	}
	return DefaultKeyColumn
}

// RecordCount returns the number of records in the table.
func (b *BBolt) RecordCount(table string) (int, error) {
	count := 0
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(table))
		if bucket == nil {
			return nil
		}
		count = bucket.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Fetch streams the table's records matching the given filters. The bucket
// is snapshotted inside a single read transaction, then streamed without
// holding the transaction open.
func (b *BBolt) Fetch(table string, columns []string, filters map[string]string, bufferSize int, onlyUnread bool) (*backend.Stream, error) {
	var matching []backend.Raw
	var servedKeys [][]byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(table))
		if bucket == nil {
			return nil
		}
		var readMarks *bbolt.Bucket
		if onlyUnread {
			readMarks = tx.Bucket([]byte(table + readMarkSuffix))
		}

		return bucket.ForEach(func(key, value []byte) error {
			if readMarks != nil && readMarks.Get(key) != nil {
				return nil
			}

			data := make(backend.Raw)
			if _, txErr := codec.Load(value, &data); txErr != nil {
				return fmt.Errorf("decode record %q: %w", key, txErr)
			}
			if !matches(data, filters) {
				return nil
			}

			matching = append(matching, project(data, columns))
			if onlyUnread {
				keyCopy := make([]byte, len(key))
				copy(keyCopy, key)
				servedKeys = append(servedKeys, keyCopy)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if onlyUnread && len(servedKeys) > 0 {
		err = b.db.Update(func(tx *bbolt.Tx) error {
			readMarks, txErr := tx.CreateBucketIfNotExists([]byte(table + readMarkSuffix))
			if txErr != nil {
				return txErr
			}
			for _, key := range servedKeys {
				if txErr := readMarks.Put(key, []byte{1}); txErr != nil {
					return txErr
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	stream := backend.NewStream(chanSize(bufferSize))
	go func() {
		for _, data := range matching {
			select {
			case stream.Next <- data:
			case <-stream.Done:
				stream.Finish(nil)
				return
			}
		}
		stream.Finish(nil)
	}()
	return stream, nil
}

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
		return data
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
)

type session struct {
	b       *BBolt
	table   string
	op      int
	pending []backend.Raw
	closed  bool
}

// BeginUpsert opens an insert-or-update streaming session.
func (b *BBolt) BeginUpsert(table string) (backend.Session, error) {
	return &session{b: b, table: table, op: opUpsert}, nil
}

// BeginDelete opens a delete-by-key streaming session.
func (b *BBolt) BeginDelete(table string) (backend.Session, error) {
	return &session{b: b, table: table, op: opDelete}, nil
}

// BeginDeleteAll opens a streaming session deleting every sent record.
func (b *BBolt) BeginDeleteAll(table string) (backend.Session, error) {
	return &session{b: b, table: table, op: opDelete}, nil
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

	keyColumn := s.b.keyColumn(s.table)

	err := s.b.db.Update(func(tx *bbolt.Tx) error {
		bucket, txErr := tx.CreateBucketIfNotExists([]byte(s.table))
		if txErr != nil {
			return txErr
		}
		readMarks, txErr := tx.CreateBucketIfNotExists([]byte(s.table + readMarkSuffix))
		if txErr != nil {
			return txErr
		}

		for _, data := range s.pending {
			key, ok := data[keyColumn]
			if !ok {
				return &backend.Error{Op: opName(s.op), Table: s.table, Code: codeMissingKey}
			}

			switch s.op {
			case opUpsert:
				value, txErr := codec.Dump(data, codec.AUTO)
				if txErr != nil {
					return txErr
				}
				if txErr := bucket.Put([]byte(key), value); txErr != nil {
					return txErr
				}
				// New data is unread again.
				if txErr := readMarks.Delete([]byte(key)); txErr != nil {
					return txErr
				}
			default:
				if txErr := bucket.Delete([]byte(key)); txErr != nil {
					return txErr
				}
				if txErr := readMarks.Delete([]byte(key)); txErr != nil {
					return txErr
				}
			}
		}
		return nil
	})
	if err != nil {
		if backend.IsBackendError(err) {
			return err
		}
		return fmt.Errorf("%w: %s", &backend.Error{Op: opName(s.op), Table: s.table, Code: codeStorage}, err)
	}
	return nil
}

func opName(op int) string {
	if op == opUpsert {
		return "upsert"
	}
	return "delete"
}
