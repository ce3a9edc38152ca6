package query

import (
	"errors"
	"testing"

	"github.com/gatewise/tabular/backend"
	"github.com/gatewise/tabular/schema"
)

// testBackend serves rows from memory and counts backend calls.
type testBackend struct {
	rows          map[string][]backend.Raw
	countOverride map[string]int

	countCalls int
	fetchCalls int

	lastColumns    []string
	lastFilters    map[string]string
	lastBufferSize int
	lastOnlyUnread bool

	sessions []*testSession
}

type testSession struct {
	op        string
	table     string
	sent      []backend.Raw
	committed bool
}

func newTestBackend() *testBackend {
	return &testBackend{
		rows:          make(map[string][]backend.Raw),
		countOverride: make(map[string]int),
	}
}

func (tb *testBackend) RecordCount(table string) (int, error) {
	tb.countCalls++
	if count, ok := tb.countOverride[table]; ok {
		return count, nil
	}
	return len(tb.rows[table]), nil
}

func (tb *testBackend) Fetch(table string, columns []string, filters map[string]string, bufferSize int, onlyUnread bool) (*backend.Stream, error) {
	tb.fetchCalls++
	tb.lastColumns = columns
	tb.lastFilters = filters
	tb.lastBufferSize = bufferSize
	tb.lastOnlyUnread = onlyUnread

	var matching []backend.Raw
	for _, row := range tb.rows[table] {
		matched := true
		for column, want := range filters {
			if row[column] != want {
				matched = false
				break
			}
		}
		if matched {
			matching = append(matching, row.Clone())
		}
	}

	stream := backend.NewStream(len(matching) + 1)
	go func() {
		for _, row := range matching {
			select {
			case stream.Next <- row:
			case <-stream.Done:
				stream.Finish(nil)
				return
			}
		}
		stream.Finish(nil)
	}()
	return stream, nil
}

func (tb *testBackend) session(op, table string) *testSession {
	s := &testSession{op: op, table: table}
	tb.sessions = append(tb.sessions, s)
	return s
}

func (tb *testBackend) BeginUpsert(table string) (backend.Session, error) {
	return tb.session("upsert", table), nil
}

func (tb *testBackend) BeginDelete(table string) (backend.Session, error) {
	return tb.session("delete", table), nil
}

func (tb *testBackend) BeginDeleteAll(table string) (backend.Session, error) {
	return tb.session("delete-all", table), nil
}

func (s *testSession) Send(r backend.Raw) error {
	s.sent = append(s.sent, r.Clone())
	return nil
}

func (s *testSession) Commit() error {
	s.committed = true
	return nil
}

func usersTable(t *testing.T) *schema.Table {
	t.Helper()
	table, err := schema.New("users",
		&schema.Field{Column: "Id", Kind: schema.UintKind},
		&schema.Field{Column: "Name", Kind: schema.StringKind},
		&schema.Field{Column: "Dept", Kind: schema.StringKind},
		&schema.Field{
			Column: "Pin",
			Kind:   schema.StringKind,
			Validate: func(value interface{}) bool {
				s, ok := value.(string)
				return ok && len(s) == 4
			},
		},
	)
	if err != nil {
		t.Fatalf("failed to create table: %s", err)
	}
	return table
}

func seedUsers(tb *testBackend, n int) {
	depts := []string{"ops", "dev"}
	for i := 0; i < n; i++ {
		tb.rows["users"] = append(tb.rows["users"], backend.Raw{
			"Id":   string(rune('1' + i)),
			"Name": "user" + string(rune('a'+i)),
			"Dept": depts[i%2],
		})
	}
}

func TestAdditiveSelect(t *testing.T) {
	table := usersTable(t)
	q := New(newTestBackend(), table)

	q1, err := q.Select("Id")
	if err != nil {
		t.Fatalf("select failed: %s", err)
	}
	q2, err := q1.Select("Name")
	if err != nil {
		t.Fatalf("select failed: %s", err)
	}

	columns := q2.columns()
	if len(columns) != 2 || columns[0] != "Id" || columns[1] != "Name" {
		t.Errorf("expected selection {Id, Name}, got %v", columns)
	}
	// The source query is untouched.
	if len(q1.selected) != 1 {
		t.Errorf("source query selection mutated: %v", q1.selected)
	}

	if _, err := q.Select("Nope"); !errors.Is(err, schema.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestSelectFieldsForeignTable(t *testing.T) {
	table := usersTable(t)
	other, err := schema.New("groups", &schema.Field{Column: "Id", Kind: schema.UintKind})
	if err != nil {
		t.Fatalf("failed to create table: %s", err)
	}

	q := New(newTestBackend(), table)
	own, _ := table.Field("Id")
	if _, err := q.SelectFields(own); err != nil {
		t.Errorf("own field rejected: %s", err)
	}

	foreign, _ := other.Field("Id")
	_, err = q.SelectFields(foreign)
	tmErr := &schema.TypeMismatchError{}
	if !errors.As(err, &tmErr) {
		t.Errorf("expected TypeMismatchError, got %v", err)
	}
}

func TestFilterMerge(t *testing.T) {
	table := usersTable(t)
	q := New(newTestBackend(), table)

	q1, err := q.Where(map[string]interface{}{"Id": uint(1)})
	if err != nil {
		t.Fatalf("where failed: %s", err)
	}
	q2, err := q1.Where(map[string]interface{}{"Id": uint(2), "Name": "bob"})
	if err != nil {
		t.Fatalf("where failed: %s", err)
	}

	if q2.filters["Id"] != "2" || q2.filters["Name"] != "bob" || len(q2.filters) != 2 {
		t.Errorf("unexpected merged filters: %v", q2.filters)
	}
	if q1.filters["Id"] != "1" {
		t.Errorf("source query filters mutated: %v", q1.filters)
	}

	if _, err := q.Where(nil); !errors.Is(err, ErrEmptyFilter) {
		t.Errorf("expected ErrEmptyFilter, got %v", err)
	}
	if _, err := q.Where(map[string]interface{}{"Nope": 1}); !errors.Is(err, schema.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestOnlyUnreadIdempotent(t *testing.T) {
	tb := newTestBackend()
	seedUsers(tb, 2)
	table := usersTable(t)

	once := New(tb, table).OnlyUnread()
	twice := once.OnlyUnread()

	if _, err := twice.Len(); err != nil {
		t.Fatalf("len failed: %s", err)
	}
	if !tb.lastOnlyUnread {
		t.Error("only-unread flag not passed to backend")
	}
	if !once.onlyUnread || !twice.onlyUnread {
		t.Error("only-unread flag lost in chain")
	}
}

func TestFreshFetchOnChain(t *testing.T) {
	tb := newTestBackend()
	seedUsers(tb, 4)
	table := usersTable(t)

	q := New(tb, table)
	if _, err := q.Get(0); err != nil {
		t.Fatalf("get failed: %s", err)
	}
	if tb.fetchCalls != 1 {
		t.Fatalf("expected 1 fetch, got %d", tb.fetchCalls)
	}

	chained, err := q.Where(map[string]interface{}{"Dept": "ops"})
	if err != nil {
		t.Fatalf("where failed: %s", err)
	}
	if _, err := chained.Get(0); err != nil {
		t.Fatalf("get failed: %s", err)
	}
	if tb.fetchCalls != 2 {
		t.Errorf("chained query must fetch fresh, got %d fetches", tb.fetchCalls)
	}
}

func TestCacheReuse(t *testing.T) {
	tb := newTestBackend()
	seedUsers(tb, 5)
	table := usersTable(t)
	q := New(tb, table)

	if _, err := q.Get(0); err != nil {
		t.Fatalf("get failed: %s", err)
	}
	if _, err := q.Get(1); err != nil {
		t.Fatalf("get failed: %s", err)
	}
	if tb.fetchCalls != 1 {
		t.Errorf("expected at most one fetch for sequential gets, got %d", tb.fetchCalls)
	}

	cursor, err := q.Slice(0, 3, 1)
	if err != nil {
		t.Fatalf("slice failed: %s", err)
	}
	served := 0
	for cursor.Next() {
		served++
	}
	if err := cursor.Err(); err != nil {
		t.Fatalf("cursor failed: %s", err)
	}
	if served != 3 {
		t.Fatalf("expected 3 records, got %d", served)
	}

	if _, err := q.Get(4); err != nil {
		t.Fatalf("get failed: %s", err)
	}
	if tb.fetchCalls != 1 {
		t.Errorf("cached records must not be re-fetched, got %d fetches", tb.fetchCalls)
	}
}

func TestIndexRangeRejection(t *testing.T) {
	q := New(newTestBackend(), usersTable(t))

	if _, err := q.Get(-1); !errors.Is(err, ErrIndexRange) {
		t.Errorf("expected ErrIndexRange for negative index, got %v", err)
	}
	if _, err := q.Slice(0, -1, 1); !errors.Is(err, ErrIndexRange) {
		t.Errorf("expected ErrIndexRange for negative stop, got %v", err)
	}
	if _, err := q.Slice(-2, Unbounded, 1); !errors.Is(err, ErrIndexRange) {
		t.Errorf("expected ErrIndexRange for negative start, got %v", err)
	}
	if _, err := q.Slice(0, Unbounded, 0); !errors.Is(err, ErrIndexRange) {
		t.Errorf("expected ErrIndexRange for zero step, got %v", err)
	}
}

func TestEmptyBound(t *testing.T) {
	tb := newTestBackend()
	seedUsers(tb, 4)
	q := New(tb, usersTable(t))

	cursor, err := q.Slice(3, 2, 1)
	if err != nil {
		t.Fatalf("slice failed: %s", err)
	}
	if cursor.Next() {
		t.Error("expected empty cursor for start >= stop")
	}
	if cursor.Err() != nil {
		t.Errorf("empty bound must not error: %s", cursor.Err())
	}
}

func TestStep(t *testing.T) {
	tb := newTestBackend()
	seedUsers(tb, 5)
	q := New(tb, usersTable(t))

	cursor, err := q.Slice(0, Unbounded, 2)
	if err != nil {
		t.Fatalf("slice failed: %s", err)
	}

	var ids []interface{}
	for cursor.Next() {
		id, err := cursor.Record().Get("Id")
		if err != nil {
			t.Fatalf("get failed: %s", err)
		}
		ids = append(ids, id)
	}
	if err := cursor.Err(); err != nil {
		t.Fatalf("cursor failed: %s", err)
	}
	if len(ids) != 3 || ids[0] != uint64(1) || ids[1] != uint64(3) || ids[2] != uint64(5) {
		t.Errorf("unexpected stepped ids: %v", ids)
	}

	// A drained cursor stays exhausted.
	if cursor.Next() {
		t.Error("exhausted cursor advanced again")
	}
}

func TestInterleavedCursors(t *testing.T) {
	tb := newTestBackend()
	seedUsers(tb, 4)
	q := New(tb, usersTable(t))

	c1 := q.All()
	c2 := q.All()

	seen1, seen2 := 0, 0
	for c1.Next() {
		seen1++
		if c2.Next() {
			seen2++
		}
	}
	for c2.Next() {
		seen2++
	}

	if seen1 != 4 || seen2 != 4 {
		t.Errorf("cursors disagree: %d vs %d", seen1, seen2)
	}
	if tb.fetchCalls != 1 {
		t.Errorf("interleaved cursors share the cache, got %d fetches", tb.fetchCalls)
	}
}

func TestBufferSizing(t *testing.T) {
	tb := newTestBackend()
	seedUsers(tb, 5)
	q := New(tb, usersTable(t))

	if _, err := q.Get(0); err != nil {
		t.Fatalf("get failed: %s", err)
	}
	// 5 records x 256 bytes = 1280, rounded up to the next power of two.
	if tb.lastBufferSize != 2048 {
		t.Errorf("expected buffer size 2048, got %d", tb.lastBufferSize)
	}
	if len(tb.lastColumns) != 1 || tb.lastColumns[0] != "*" {
		t.Errorf("expected wildcard columns, got %v", tb.lastColumns)
	}

	// An explicit buffer size skips the count round-trip.
	tb2 := newTestBackend()
	seedUsers(tb2, 5)
	q2 := New(tb2, usersTable(t)).WithBufferSize(512)
	if _, err := q2.Get(0); err != nil {
		t.Fatalf("get failed: %s", err)
	}
	if tb2.countCalls != 0 {
		t.Errorf("explicit buffer size must skip the count, got %d count calls", tb2.countCalls)
	}
	if tb2.lastBufferSize != 512 {
		t.Errorf("expected buffer size 512, got %d", tb2.lastBufferSize)
	}
}

func TestZeroRecordTable(t *testing.T) {
	tb := newTestBackend()
	q := New(tb, usersTable(t))

	if _, err := q.Get(0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if cursor := q.All(); cursor.Next() {
		t.Error("expected no records from an empty table")
	}
	if tb.fetchCalls != 0 {
		t.Errorf("a zero count must skip the fetch, got %d fetches", tb.fetchCalls)
	}
}

func TestCountMismatchTolerated(t *testing.T) {
	table := usersTable(t)

	// Backend over-reports: the stream just ends early.
	tb := newTestBackend()
	seedUsers(tb, 2)
	tb.countOverride["users"] = 10
	length, err := New(tb, table).Len()
	if err != nil {
		t.Fatalf("len failed: %s", err)
	}
	if length != 2 {
		t.Errorf("expected 2 records despite count 10, got %d", length)
	}

	// Backend under-reports: the stream is drained anyway.
	tb2 := newTestBackend()
	seedUsers(tb2, 3)
	tb2.countOverride["users"] = 1
	length, err = New(tb2, table).Len()
	if err != nil {
		t.Fatalf("len failed: %s", err)
	}
	if length != 3 {
		t.Errorf("expected 3 records despite count 1, got %d", length)
	}
}

func TestCountAndLen(t *testing.T) {
	tb := newTestBackend()
	seedUsers(tb, 3)
	q := New(tb, usersTable(t))

	count, err := q.Count()
	if err != nil || count != 3 {
		t.Fatalf("expected count 3, got %d (%v)", count, err)
	}
	if tb.fetchCalls != 0 {
		t.Error("count must not materialize the query")
	}

	length, err := q.Len()
	if err != nil || length != 3 {
		t.Fatalf("expected len 3, got %d (%v)", length, err)
	}
	if tb.fetchCalls != 1 {
		t.Errorf("len must materialize exactly once, got %d fetches", tb.fetchCalls)
	}
}

func nextPowerOfTwoTestCase(t *testing.T, n, want int) {
	t.Helper()
	if got := nextPowerOfTwo(n); got != want {
		t.Errorf("nextPowerOfTwo(%d) = %d, want %d", n, got, want)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	nextPowerOfTwoTestCase(t, 0, 1)
	nextPowerOfTwoTestCase(t, 1, 1)
	nextPowerOfTwoTestCase(t, 2, 2)
	nextPowerOfTwoTestCase(t, 3, 4)
	nextPowerOfTwoTestCase(t, 1280, 2048)
	nextPowerOfTwoTestCase(t, 2048, 2048)
}
