package query

import (
	"github.com/gatewise/tabular/record"
)

// A Cursor reads a slice of a query's results, serving from the shared
// cache first and pulling further backend records into it as needed. Use it
// like a scanner:
//
//	cursor := q.All()
//	for cursor.Next() {
//		r := cursor.Record()
//		// ...
//	}
//	if err := cursor.Err(); err != nil {
//		// ...
//	}
//
// Multiple cursors over the same query may interleave freely; the cache is
// append-only, so records pulled by one cursor are served to the others
// without another backend round-trip.
type Cursor struct {
	q *Query

	next int
	stop int
	step int

	current   *record.Record
	err       error
	exhausted bool
}

// Slice returns a cursor over the records at indices start, start+step, …
// up to but excluding stop. Pass Unbounded as stop to read until the stream
// is exhausted. Negative bounds and non-positive steps are rejected; a
// start at or past stop yields an empty cursor, not an error.
func (q *Query) Slice(start, stop, step int) (*Cursor, error) {
	if start < 0 || stop < 0 || step < 1 {
		return nil, ErrIndexRange
	}
	return &Cursor{
		q:    q,
		next: start,
		stop: stop,
		step: step,
	}, nil
}

// All returns a cursor over every record of the query.
func (q *Query) All() *Cursor {
	cursor, _ := q.Slice(0, Unbounded, 1)
	return cursor
}

// Next advances the cursor. It returns false when the slice bound or the
// backend stream is exhausted, or on error; check Err afterwards.
func (c *Cursor) Next() bool {
	if c.exhausted || c.err != nil {
		return false
	}

	cell := c.q.cell
	cell.lock.Lock()
	defer cell.lock.Unlock()

	if err := c.q.materializeLocked(); err != nil {
		c.err = err
		c.exhausted = true
		return false
	}

	pulled := false
	for c.next < c.stop {
		index := c.next

		if index < len(cell.records) {
			if !pulled {
				metricCacheHits.Inc()
			}
			c.current = c.q.wrap(cell.records[index])
			c.next += c.step
			return true
		}

		_, ok, err := c.q.pullLocked()
		pulled = true
		if err != nil {
			c.err = err
			c.exhausted = true
			return false
		}
		if !ok {
			c.exhausted = true
			return false
		}
	}

	c.exhausted = true
	return false
}

// Record returns the record the cursor currently points at. It is only
// valid after a call to Next returned true.
func (c *Cursor) Record() *record.Record {
	return c.current
}

// Err returns the first error the cursor ran into.
func (c *Cursor) Err() error {
	return c.err
}
