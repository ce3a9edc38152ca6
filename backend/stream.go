package backend

import (
	"sync"

	"github.com/tevino/abool"
)

// A Stream is a lazy sequence of raw records produced by a Fetch. The
// producer sends on Next and calls Finish exactly once; the consumer ranges
// over Next and checks Err afterwards, or closes Done to abandon the stream
// early.
type Stream struct {
	Next chan Raw
	Done chan struct{}

	errLock    sync.Mutex
	err        error
	doneClosed *abool.AtomicBool
}

// NewStream creates a stream whose Next channel buffers up to size records.
func NewStream(size int) *Stream {
	if size < 1 {
		size = 1
	}
	return &Stream{
		Next:       make(chan Raw, size),
		Done:       make(chan struct{}),
		doneClosed: abool.NewBool(false),
	}
}

// Finish is called by the stream producer when no more records will be sent,
// with an error if production failed.
func (s *Stream) Finish(err error) {
	s.errLock.Lock()
	s.err = err
	s.errLock.Unlock()

	close(s.Next)
	if s.doneClosed.SetToIf(false, true) {
		close(s.Done)
	}
}

// Cancel tells the producer to stop. It is safe to call more than once and
// after Finish.
func (s *Stream) Cancel() {
	if s.doneClosed.SetToIf(false, true) {
		close(s.Done)
	}
}

// Err returns the production error, if any. Only valid after Next was
// closed.
func (s *Stream) Err() error {
	s.errLock.Lock()
	defer s.errLock.Unlock()
	return s.err
}
