// Package netconn adapts a net.Conn into the asynchronous ByteStream shape
// the connection core expects (AsyncReadSome/AsyncWriteSome/Cancel/Close),
// the same role played by fakestream.FakeStream on the dispatcher side of
// one request. It is grounded on the teacher's conn.go: one goroutine per
// blocking read/write and deadlines used to make a pending read
// cancellable. Shutdown half-closes the receive side with CloseRead.
package netconn

import (
	"errors"
	"net"
	"time"

	"github.com/badu/dispatch/executor"
)

// ErrAborted is returned to a pending AsyncReadSome/AsyncWriteSome callback
// when Cancel unblocks it via a deadline in the past.
var ErrAborted = errors.New("netconn: operation aborted")

// closeReader is implemented by *net.TCPConn and similar.
type closeReader interface {
	CloseRead() error
}

// Conn wraps a net.Conn, dispatching read and write completions through
// the supplied executors rather than the caller's own goroutine, matching
// the completion-posting discipline of fakestream.FakeStream.
type Conn struct {
	raw       net.Conn
	readExec  executor.Executor
	writeExec executor.Executor
}

// Wrap adapts conn for asynchronous use. readExec receives AsyncReadSome
// completions; writeExec receives AsyncWriteSome completions. Passing the
// connection's own strand for both serializes all I/O completions with the
// rest of that connection's state transitions.
func Wrap(conn net.Conn, readExec, writeExec executor.Executor) *Conn {
	return &Conn{raw: conn, readExec: readExec, writeExec: writeExec}
}

// AsyncReadSome issues one blocking Read on a fresh goroutine and posts the
// result to readExec. Only one read may be outstanding at a time; callers
// (the connection strand) are expected to honor that themselves.
func (c *Conn) AsyncReadSome(buf []byte, handler func(err error, n int)) {
	go func() {
		n, err := c.raw.Read(buf)
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			err = ErrAborted
		}
		c.readExec.Post(func() { handler(err, n) })
	}()
}

// AsyncWriteSome issues one blocking Write on a fresh goroutine and posts
// the result to writeExec.
func (c *Conn) AsyncWriteSome(buf []byte, handler func(err error, n int)) {
	go func() {
		n, err := c.raw.Write(buf)
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			err = ErrAborted
		}
		c.writeExec.Post(func() { handler(err, n) })
	}()
}

// Cancel aborts any outstanding Read by forcing its deadline into the past.
// The read goroutine wakes with a timeout error, which AsyncReadSome
// translates to ErrAborted.
func (c *Conn) Cancel() {
	_ = c.raw.SetReadDeadline(time.Now().Add(-time.Second))
	_ = c.raw.SetWriteDeadline(time.Now().Add(-time.Second))
}

// Shutdown half-closes the receive side (CloseRead) without tearing down
// the file descriptor, so no further bytes are read while writes can still
// complete. A net.Conn without CloseRead is left untouched.
func (c *Conn) Shutdown() error {
	if cr, ok := c.raw.(closeReader); ok {
		return cr.CloseRead()
	}
	return nil
}

// Close tears down the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// SetDeadline clears any deadline set by Cancel so a fresh read/write can
// proceed, matching the teacher's reset-to-zero-value pattern on hijack.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.raw.SetDeadline(t)
}
