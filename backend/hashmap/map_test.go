package hashmap

import (
	"errors"
	"testing"

	"github.com/gatewise/tabular/backend"
)

func fill(t *testing.T, hm *HashMap, table string, rows ...backend.Raw) {
	t.Helper()
	session, err := hm.BeginUpsert(table)
	if err != nil {
		t.Fatalf("begin upsert failed: %s", err)
	}
	for _, r := range rows {
		if err := session.Send(r); err != nil {
			t.Fatalf("send failed: %s", err)
		}
	}
	if err := session.Commit(); err != nil {
		t.Fatalf("commit failed: %s", err)
	}
}

func drain(t *testing.T, stream *backend.Stream) []backend.Raw {
	t.Helper()
	var got []backend.Raw
	for r := range stream.Next {
		got = append(got, r)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream failed: %s", err)
	}
	return got
}

func TestFetch(t *testing.T) {
	hm := New()
	fill(t, hm, "users",
		backend.Raw{"Id": "1", "Name": "alice", "Dept": "ops"},
		backend.Raw{"Id": "2", "Name": "bob", "Dept": "dev"},
		backend.Raw{"Id": "3", "Name": "carol", "Dept": "ops"},
	)

	count, err := hm.RecordCount("users")
	if err != nil || count != 3 {
		t.Fatalf("expected 3 records, got %d (%v)", count, err)
	}

	stream, err := hm.Fetch("users", backend.WildcardColumns, map[string]string{"Dept": "ops"}, 1024, false)
	if err != nil {
		t.Fatalf("fetch failed: %s", err)
	}
	got := drain(t, stream)
	if len(got) != 2 {
		t.Fatalf("expected 2 filtered records, got %d", len(got))
	}

	// Projection keeps only the requested columns.
	stream, err = hm.Fetch("users", []string{"Name"}, nil, 1024, false)
	if err != nil {
		t.Fatalf("fetch failed: %s", err)
	}
	got = drain(t, stream)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for _, r := range got {
		if _, ok := r["Id"]; ok {
			t.Errorf("projection leaked a column: %v", r)
		}
	}
}

func TestOnlyUnread(t *testing.T) {
	hm := New()
	fill(t, hm, "events",
		backend.Raw{"Id": "1"},
		backend.Raw{"Id": "2"},
	)

	stream, err := hm.Fetch("events", backend.WildcardColumns, nil, 512, true)
	if err != nil {
		t.Fatalf("fetch failed: %s", err)
	}
	if got := drain(t, stream); len(got) != 2 {
		t.Fatalf("expected 2 unread records, got %d", len(got))
	}

	// Everything was marked read by the first fetch.
	stream, err = hm.Fetch("events", backend.WildcardColumns, nil, 512, true)
	if err != nil {
		t.Fatalf("fetch failed: %s", err)
	}
	if got := drain(t, stream); len(got) != 0 {
		t.Fatalf("expected no unread records, got %d", len(got))
	}

	// An upsert resets the read mark.
	fill(t, hm, "events", backend.Raw{"Id": "1", "Ack": "true"})
	stream, err = hm.Fetch("events", backend.WildcardColumns, nil, 512, true)
	if err != nil {
		t.Fatalf("fetch failed: %s", err)
	}
	if got := drain(t, stream); len(got) != 1 {
		t.Fatalf("expected 1 unread record after upsert, got %d", len(got))
	}
}

func TestSessions(t *testing.T) {
	hm := New()
	fill(t, hm, "users", backend.Raw{"Id": "1", "Name": "alice"})

	// Upsert with an existing key replaces.
	fill(t, hm, "users", backend.Raw{"Id": "1", "Name": "alicia"})
	count, _ := hm.RecordCount("users")
	if count != 1 {
		t.Fatalf("expected 1 record after replace, got %d", count)
	}

	// Delete by key.
	session, _ := hm.BeginDelete("users")
	if err := session.Send(backend.Raw{"Id": "1"}); err != nil {
		t.Fatalf("send failed: %s", err)
	}
	if err := session.Commit(); err != nil {
		t.Fatalf("commit failed: %s", err)
	}
	count, _ = hm.RecordCount("users")
	if count != 0 {
		t.Fatalf("expected 0 records after delete, got %d", count)
	}

	// Double commit fails.
	if err := session.Commit(); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := session.Send(backend.Raw{"Id": "2"}); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Zero sends plus commit is a no-op.
	session, _ = hm.BeginDeleteAll("users")
	if err := session.Commit(); err != nil {
		t.Errorf("empty commit failed: %s", err)
	}

	// A record without the key column fails with a native code.
	session, _ = hm.BeginUpsert("users")
	_ = session.Send(backend.Raw{"Name": "keyless"})
	err := session.Commit()
	var be *backend.Error
	if !errors.As(err, &be) {
		t.Fatalf("expected backend.Error, got %v", err)
	}
	if be.Code != codeMissingKey {
		t.Errorf("unexpected code: %d", be.Code)
	}
}

func TestStreamCancel(t *testing.T) {
	hm := New()
	fill(t, hm, "users",
		backend.Raw{"Id": "1"},
		backend.Raw{"Id": "2"},
		backend.Raw{"Id": "3"},
	)

	stream, err := hm.Fetch("users", backend.WildcardColumns, nil, 0, false)
	if err != nil {
		t.Fatalf("fetch failed: %s", err)
	}
	<-stream.Next
	stream.Cancel()

	// The producer must finish without delivering everything.
	for range stream.Next {
	}
	if err := stream.Err(); err != nil {
		t.Errorf("unexpected stream error: %s", err)
	}
}
