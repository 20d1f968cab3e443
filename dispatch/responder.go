package dispatch

import (
	"io"

	"github.com/badu/dispatch/executor"
)

// responseWriter is the subset of netconn.Conn a responder needs to drain
// a response onto the wire.
type responseWriter interface {
	AsyncWriteSome(buf []byte, handler func(err error, n int))
}

// responder is the per-connection serial pump that forwards each request's
// response stream onto the socket in request order, one at a time, exactly
// as the source's responder does via its strand-confined operation queue.
// Submit and SubmitError enqueue work; AsyncWait registers a one-shot
// completion handler that fires once the queue has drained and a terminal
// error has been recorded.
type responder struct {
	strand executor.Executor
	socket responseWriter
	bufLen int

	operations []func()
	responding bool
	lastErr    error
	completion func(error)
}

// newResponder constructs a responder. strand is the connection's own
// serialisation domain; every private method below runs only from within
// it. bufLen sizes the read buffer used to drain each request's response
// stream.
func newResponder(strand executor.Executor, socket responseWriter, bufLen int) *responder {
	if bufLen <= 0 {
		bufLen = defaultReadBufferSize
	}
	return &responder{strand: strand, socket: socket, bufLen: bufLen}
}

// Submit enqueues ctx's response stream to be drained onto the socket once
// every earlier request's response has completed.
func (r *responder) Submit(ctx *RequestContext) {
	r.strand.Post(func() {
		r.operations = append(r.operations, func() {
			r.pumpFromContext(ctx)
		})
		r.startResponding()
	})
}

// SubmitError enqueues a terminal failure: the first one recorded wins and
// short-circuits every response still queued behind it.
func (r *responder) SubmitError(err error) {
	r.strand.Post(func() {
		r.operations = append(r.operations, func() {
			if r.lastErr == nil {
				r.lastErr = err
			}
			r.responseComplete()
		})
		r.startResponding()
	})
}

// AsyncWait registers handler to run, posted to the responder's strand,
// once the responder is idle and a terminal error has been recorded. Calling it twice before it has fired is a misuse of the
// API and overwrites the earlier registration.
func (r *responder) AsyncWait(handler func(error)) {
	r.strand.Post(func() {
		r.completion = handler
		r.completionCheck()
	})
}

func (r *responder) startResponding() {
	if r.responding || len(r.operations) == 0 {
		return
	}
	r.responding = true
	op := r.operations[0]
	r.operations = r.operations[1:]
	op()
}

func (r *responder) responseComplete() {
	if len(r.operations) > 0 {
		op := r.operations[0]
		r.operations = r.operations[1:]
		op()
		return
	}
	r.responding = false
	r.completionCheck()
}

// pumpFromContext copies ctx's response stream onto the socket until the
// stream reaches EOF or either side errors, mirroring the source's
// asioex::transfer loop in responder.hpp: every read is posted
// (ResponseStream.AsyncReadSome), never blocked on, so the connection
// strand is free to keep driving OnBody/OnHeadersComplete callbacks for the
// request that is still feeding the handler producing this very response.
// A blocking read here would deadlock any handler whose request body or
// response body spans more than one socket read.
func (r *responder) pumpFromContext(ctx *RequestContext) {
	if r.lastErr != nil {
		r.responseComplete()
		return
	}
	buf := make([]byte, r.bufLen)
	ctx.ResponseStream.AsyncReadSome(buf, func(readErr error, n int) {
		r.strand.Post(func() {
			r.afterRead(ctx, buf, n, readErr)
		})
	})
}

func (r *responder) afterRead(ctx *RequestContext, buf []byte, n int, readErr error) {
	if n > 0 {
		r.socket.AsyncWriteSome(buf[:n], func(writeErr error, _ int) {
			r.strand.Post(func() {
				r.afterTransfer(ctx, readErr, writeErr)
			})
		})
		return
	}
	r.afterTransfer(ctx, readErr, nil)
}

func (r *responder) afterTransfer(ctx *RequestContext, readErr, writeErr error) {
	if writeErr != nil {
		if r.lastErr == nil {
			r.lastErr = writeErr
		}
		r.responseComplete()
		return
	}
	switch {
	case readErr == nil:
		r.pumpFromContext(ctx)
	case readErr == io.EOF:
		if ctx.MustForceCloseOnResponse() {
			r.lastErr = errOperationAborted
			r.operations = r.operations[:0]
		}
		r.responseComplete()
	default:
		if r.lastErr == nil {
			r.lastErr = readErr
		}
		r.responseComplete()
	}
}

func (r *responder) working() bool {
	return r.responding || len(r.operations) > 0
}

func (r *responder) completionCheck() {
	if r.completion != nil && !r.working() && r.lastErr != nil {
		f := r.completion
		r.completion = nil
		err := r.lastErr
		r.strand.Post(func() { f(err) })
	}
}
