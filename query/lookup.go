package query

import (
	"errors"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"

	"github.com/gatewise/tabular/backend"
	"github.com/gatewise/tabular/record"
	"github.com/gatewise/tabular/schema"
)

// Lookup is a read-through cache for single-record equality lookups, for
// the hot case of resolving one row by key over a slow backend. Entries are
// kept in an LRU with optional expiry; concurrent misses for the same key
// share one backend query.
type Lookup struct {
	db    backend.Interface
	table *schema.Table
	cache gcache.Cache
	group singleflight.Group
}

// NewLookup creates a lookup cache holding up to size records. A ttl of
// zero disables expiry.
func NewLookup(db backend.Interface, table *schema.Table, size int, ttl time.Duration) *Lookup {
	builder := gcache.New(size).LRU()
	if ttl > 0 {
		builder = builder.Expiration(ttl)
	}
	return &Lookup{
		db:    db,
		table: table,
		cache: builder.Build(),
	}
}

// Get returns the first record whose column equals the given value, or
// ErrNotFound. The returned record is a detached copy bound to the backend;
// mutating it does not affect the cache.
func (l *Lookup) Get(column string, value interface{}) (*record.Record, error) {
	field, err := l.table.Field(column)
	if err != nil {
		return nil, err
	}
	raw, err := field.Encode(value)
	if err != nil {
		return nil, err
	}
	key := column + "=" + raw

	if cached, err := l.cache.Get(key); err == nil {
		metricCacheHits.Inc()
		return cached.(*record.Record).Copy().WithBackend(l.db), nil
	}

	result, err, _ := l.group.Do(key, func() (interface{}, error) {
		q, err := New(l.db, l.table).Where(map[string]interface{}{column: value})
		if err != nil {
			return nil, err
		}
		r, err := q.Get(0)
		if err != nil {
			if errors.Is(err, ErrOutOfRange) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		_ = l.cache.Set(key, r)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*record.Record).Copy().WithBackend(l.db), nil
}

// Invalidate drops the cached record for the given column value, if any.
func (l *Lookup) Invalidate(column string, value interface{}) {
	field, err := l.table.Field(column)
	if err != nil {
		return
	}
	raw, err := field.Encode(value)
	if err != nil {
		return
	}
	l.cache.Remove(column + "=" + raw)
}
