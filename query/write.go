package query

import (
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/gatewise/tabular/backend"
	"github.com/gatewise/tabular/log"
	"github.com/gatewise/tabular/record"
)

// Batch writes stream items into a backend session one at a time, so a
// failing item aborts the session with everything before it already
// forwarded and nothing after it sent. This layer does not roll back: the
// session is simply never committed and the error propagates. Whether the
// backend applies uncommitted records is backend-defined; validate whole
// batches up front (record.Validate) if that matters.

// Upsert inserts or updates the given items. Each item is a
// *record.Record, a keyword map (column to domain value, encoded and
// validated per field), or an already-raw column-to-string map; anything
// else fails with ErrRecordType.
func (q *Query) Upsert(items ...interface{}) error {
	return q.streamItems("upsert", q.db.BeginUpsert, items)
}

// DeleteMany deletes the given items by key. Items follow the same rules as
// Upsert.
func (q *Query) DeleteMany(items ...interface{}) error {
	return q.streamItems("delete", q.db.BeginDelete, items)
}

// DeleteAll deletes every record currently matched by the query. It drains
// the query's own materialization, so the query should not be reused for
// further writes afterwards; chain a fresh builder call instead.
func (q *Query) DeleteAll() error {
	q.cell.lock.Lock()
	defer q.cell.lock.Unlock()

	if err := q.materializeLocked(); err != nil {
		return err
	}
	for {
		_, ok, err := q.pullLocked()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}

	items := make([]interface{}, 0, len(q.cell.records))
	for _, raw := range q.cell.records {
		items = append(items, raw)
	}
	return q.streamItems("delete-all", q.db.BeginDeleteAll, items)
}

func (q *Query) streamItems(op string, begin func(string) (backend.Session, error), items []interface{}) error {
	session, err := begin(q.table.Name())
	if err != nil {
		return err
	}

	sessionID := ""
	if id, err := uuid.NewV4(); err == nil {
		sessionID = id.String()
	}
	log.Tracef("query: %s session %s opened on table %s", op, sessionID, q.table.Name())

	sent := 0
	for _, item := range items {
		raw, err := q.rawOf(item)
		if err != nil {
			// Already-sent items stay forwarded, the session is never
			// committed.
			metricAborts.Inc()
			log.Warningf("query: %s session %s aborted after %d records: %s", op, sessionID, sent, err)
			return err
		}
		if err := session.Send(raw); err != nil {
			metricAborts.Inc()
			return err
		}
		sent++
	}

	if err := session.Commit(); err != nil {
		return err
	}
	metricCommits.Inc()
	log.Tracef("query: %s session %s committed %d records", op, sessionID, sent)
	return nil
}

// rawOf extracts the raw column map of a batch item. Records and raw string
// maps are forwarded as they are; keyword maps are encoded and validated
// field by field, exactly as a record built from them would have been.
func (q *Query) rawOf(item interface{}) (backend.Raw, error) {
	switch v := item.(type) {
	case *record.Record:
		return v.Raw(), nil
	case map[string]interface{}:
		r, err := record.NewFromValues(q.table, v)
		if err != nil {
			return nil, err
		}
		return r.Raw(), nil
	case backend.Raw:
		return v.Clone(), nil
	case map[string]string:
		return backend.Raw(v).Clone(), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrRecordType, item)
	}
}
