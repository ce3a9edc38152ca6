package query

import (
	"math"
	"math/bits"
	"sync"

	"github.com/gatewise/tabular/backend"
	"github.com/gatewise/tabular/log"
	"github.com/gatewise/tabular/record"
)

// recordSizeEstimate is the assumed encoded size of one record, in bytes,
// used to derive the transport buffer size from the backend's record count.
const recordSizeEstimate = 256

// Unbounded as a slice stop reads until the backend stream is exhausted.
const Unbounded = math.MaxInt

// cacheCell holds a query's materialization state: the append-only cache and
// the remaining backend stream. Builder operations never share a cell; all
// cursors over one query do.
type cacheCell struct {
	lock sync.Mutex

	started  bool
	complete bool
	records  []backend.Raw
	pending  *backend.Stream
	failure  error
}

func newCacheCell() *cacheCell {
	return &cacheCell{}
}

// materializeLocked issues the first backend fetch for this query. The
// caller must hold the cell lock.
func (q *Query) materializeLocked() error {
	cell := q.cell
	if cell.started {
		return cell.failure
	}

	size := q.bufferSize
	if size == 0 {
		count, err := q.db.RecordCount(q.table.Name())
		if err != nil {
			return err
		}
		if count == 0 {
			// Nothing to fetch, finalize the cache empty.
			cell.started = true
			cell.complete = true
			cell.records = []backend.Raw{}
			log.Tracef("query: table %s is empty, skipping fetch", q.table.Name())
			return nil
		}
		size = nextPowerOfTwo(count * recordSizeEstimate)
	}

	stream, err := q.db.Fetch(q.table.Name(), q.columns(), q.filters, size, q.onlyUnread)
	if err != nil {
		return err
	}

	cell.started = true
	cell.pending = stream
	metricFetches.Inc()
	log.Tracef("query: fetching table %s with buffer size %d", q.table.Name(), size)
	return nil
}

// pullLocked moves one record from the backend stream into the cache. The
// caller must hold the cell lock.
func (q *Query) pullLocked() (backend.Raw, bool, error) {
	cell := q.cell
	if cell.complete {
		return nil, false, cell.failure
	}

	raw, ok := <-cell.pending.Next
	if !ok {
		cell.complete = true
		cell.failure = cell.pending.Err()
		cell.pending = nil
		return nil, false, cell.failure
	}

	cell.records = append(cell.records, raw)
	metricRecords.Inc()
	return raw, true, nil
}

// ensureLocked fills the cache until it covers the given index or the
// stream ends. It reports whether the index is available. The caller must
// hold the cell lock.
func (q *Query) ensureLocked(index int) (bool, error) {
	if err := q.materializeLocked(); err != nil {
		return false, err
	}
	for index >= len(q.cell.records) {
		_, ok, err := q.pullLocked()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Get returns the record at the given index, fetching only as much as
// needed. Negative indices are rejected; the backend has no reverse-order
// concept. An index beyond the available data fails with ErrOutOfRange.
func (q *Query) Get(index int) (*record.Record, error) {
	if index < 0 {
		return nil, ErrIndexRange
	}

	q.cell.lock.Lock()
	defer q.cell.lock.Unlock()

	alreadyCached := index < len(q.cell.records)

	available, err := q.ensureLocked(index)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, ErrOutOfRange
	}

	if alreadyCached {
		metricCacheHits.Inc()
	}
	return q.wrap(q.cell.records[index]), nil
}

// nextPowerOfTwo returns the smallest power of two that is >= n.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
