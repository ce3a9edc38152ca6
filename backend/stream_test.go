package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamFinish(t *testing.T) {
	stream := NewStream(2)

	go func() {
		stream.Next <- Raw{"Id": "1"}
		stream.Next <- Raw{"Id": "2"}
		stream.Finish(nil)
	}()

	var got []Raw
	for r := range stream.Next {
		got = append(got, r)
	}
	assert.Len(t, got, 2)
	assert.NoError(t, stream.Err())
}

func TestStreamFinishWithError(t *testing.T) {
	streamErr := errors.New("device went away")
	stream := NewStream(1)

	go func() {
		stream.Next <- Raw{"Id": "1"}
		stream.Finish(streamErr)
	}()

	for range stream.Next {
	}
	assert.Equal(t, streamErr, stream.Err())
}

func TestStreamCancel(t *testing.T) {
	stream := NewStream(1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case stream.Next <- Raw{"Id": "x"}:
			case <-stream.Done:
				stream.Finish(nil)
				return
			}
		}
	}()

	<-stream.Next
	stream.Cancel()
	stream.Cancel() // safe to repeat
	<-done
}

func TestRawCloneAndEqual(t *testing.T) {
	a := Raw{"Id": "1", "Name": "alice"}
	b := a.Clone()

	assert.True(t, a.Equal(b))

	b["Name"] = "bob"
	assert.False(t, a.Equal(b))
	assert.Equal(t, "alice", a["Name"])

	assert.False(t, a.Equal(Raw{"Id": "1"}))
}
