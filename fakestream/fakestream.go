// Package fakestream implements the in-memory, full-duplex byte channel
// used to bridge the protocol (connection) side of the server with the
// application (dispatcher) side. It is the Go analogue of secr::dispatch's
// fake_stream: it models an AsyncReadStream/AsyncWriteStream pair but
// decouples producer and consumer so that reads and writes can complete on
// caller-chosen executors instead of in a shared call stack.
package fakestream

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/badu/dispatch/executor"
)

// ErrAborted is delivered to a pending consumer cancelled via Cancel or
// Reset, mirroring asio's operation_aborted. Cancel and Reset never store it
// as the stream's sticky error; a caller may still store it via SetError.
var ErrAborted = errors.New("fakestream: operation aborted")

// consumer is the pending read registered via AsyncReadSome or ReadSome.
type consumer struct {
	buf  []byte
	n    int
	err  error
	done chan struct{} // non-nil only for the synchronous ReadSome path
	cb   func(err error, n int)
}

// FakeStream is a single-producer/single-consumer in-memory pipe. Reads and
// writes never block the other side of the mutex: a write appends to an
// internal buffer and, if a read is pending, hands bytes to it immediately;
// a read either consumes already-buffered bytes or registers itself to be
// woken by the next write/error.
type FakeStream struct {
	readExec  executor.Executor
	writeExec executor.Executor

	mu      sync.Mutex
	buf     bytes.Buffer
	err     error
	pending *consumer
}

// New constructs a stream. readExec is the executor on which AsyncReadSome
// completions fire. writeExec is stored for symmetry with the source design;
// no method of this type posts to it, since WriteSome/SetError/Close
// complete inline.
func New(readExec, writeExec executor.Executor) *FakeStream {
	return &FakeStream{readExec: readExec, writeExec: writeExec}
}

// WriteSome appends p to the internal buffer and flushes to any pending
// consumer. It never blocks.
func (s *FakeStream) WriteSome(p []byte) (int, error) {
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return 0, err
	}
	n, _ := s.buf.Write(p)
	s.flushLocked()
	s.mu.Unlock()
	return n, nil
}

// SetError stores a sticky error and wakes any pending consumer. err must
// not be nil.
func (s *FakeStream) SetError(err error) {
	if err == nil {
		panic("fakestream: SetError requires a non-nil error")
	}
	s.mu.Lock()
	s.err = err
	s.flushLocked()
	s.mu.Unlock()
}

// Close is equivalent to SetError(io.EOF).
func (s *FakeStream) Close() {
	s.SetError(io.EOF)
}

// Cancel completes any pending consumer with ErrAborted without recording
// that as the stream's sticky error.
func (s *FakeStream) Cancel() {
	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()

	if p != nil {
		s.complete(p, ErrAborted, 0)
	}
}

// Reset clears the error and buffer and cancels any pending consumer;
// subsequent writes resume normally.
func (s *FakeStream) Reset() {
	s.mu.Lock()
	s.err = nil
	s.buf.Reset()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()

	if p != nil {
		s.complete(p, ErrAborted, 0)
	}
}

// AsyncReadSome registers buf as the target of the next available bytes (or
// error), completing handler on the read executor. It is a precondition
// violation to call this while another consumer is already pending.
func (s *FakeStream) AsyncReadSome(buf []byte, handler func(err error, n int)) {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		panic("fakestream: async_read_some called with a consumer already pending")
	}
	c := &consumer{buf: buf, cb: handler}
	s.pending = c
	s.flushLocked()
	s.mu.Unlock()
}

// ReadSome is the synchronous equivalent of AsyncReadSome: it blocks the
// calling goroutine until data or an error is available.
func (s *FakeStream) ReadSome(buf []byte) (int, error) {
	s.mu.Lock()
	if avail := s.buf.Len(); avail > 0 {
		n, _ := s.buf.Read(buf)
		s.mu.Unlock()
		return n, nil
	}
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return 0, err
	}
	if s.pending != nil {
		s.mu.Unlock()
		panic("fakestream: read_some called with a consumer already pending")
	}
	done := make(chan struct{})
	c := &consumer{buf: buf, done: done}
	s.pending = c
	s.mu.Unlock()

	<-done
	return c.n, c.err
}

// flushLocked must be called with s.mu held. If a consumer is pending and
// bytes or an error are available, it completes the consumer.
func (s *FakeStream) flushLocked() {
	c := s.pending
	if c == nil {
		return
	}
	if s.buf.Len() > 0 {
		n, _ := s.buf.Read(c.buf)
		s.pending = nil
		s.complete(c, nil, n)
		return
	}
	if s.err != nil {
		s.pending = nil
		s.complete(c, s.err, 0)
	}
}

// complete delivers a consumer's result. Synchronous (ReadSome) consumers
// are woken directly since the calling goroutine is already off the mutex by
// the time complete runs; asynchronous consumers are always posted to the
// read executor, even for the FakeStream driving their own completion, so a
// handler never runs on the writer's goroutine.
func (s *FakeStream) complete(c *consumer, err error, n int) {
	if c.done != nil {
		c.err = err
		c.n = n
		close(c.done)
		return
	}
	cb := c.cb
	s.readExec.Post(func() {
		cb(err, n)
	})
}
