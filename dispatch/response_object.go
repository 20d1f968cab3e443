package dispatch

import (
	"io"
	"strconv"
	"strings"

	"github.com/badu/dispatch/apierr"
	"github.com/badu/dispatch/fakestream"
	"github.com/badu/dispatch/wire"
)

type responseMode int

const (
	modeUndecided responseMode = iota
	modeContentLength
	modeChunked
	modeRaw
)

// ResponseObject is the write side of one RequestContext: a response
// header plus a framing mode decided on first use and never revisited.
// Every public method first checks the last-error slot; once set, further
// calls are no-ops that return it.
type ResponseObject struct {
	ctx *RequestContext

	headerCommitted bool
	mode            responseMode
	remaining       int64
	lastErr         error
}

func newResponseObject(ctx *RequestContext) *ResponseObject {
	return &ResponseObject{ctx: ctx}
}

// MutableHeader exposes the response header for building. It is only
// meaningful before the header is committed.
func (r *ResponseObject) MutableHeader() *wire.ResponseHeader {
	return &r.ctx.ResponseHeader
}

// Header returns the response header for read-only inspection.
func (r *ResponseObject) Header() *wire.ResponseHeader {
	return &r.ctx.ResponseHeader
}

// HeaderCommitted reports whether CommitHeader has already run.
func (r *ResponseObject) HeaderCommitted() bool { return r.headerCommitted }

// CommitHeader serialises the status line and headers and writes them to
// the response stream. The header must already carry a status.
func (r *ResponseObject) CommitHeader() error {
	if r.lastErr != nil {
		return r.lastErr
	}
	if !r.ctx.ResponseHeader.HasStatus() {
		return ErrMissingStatusLine
	}
	data := wire.EncodeResponseHeader(&r.ctx.ResponseHeader)
	if _, err := r.ctx.ResponseStream.WriteSome(data); err != nil {
		r.lastErr = err
		return err
	}
	r.headerCommitted = true
	return nil
}

// AsyncCommitHeader runs CommitHeader and posts the result to the
// dispatcher executor rather than returning it inline.
func (r *ResponseObject) AsyncCommitHeader(handler func(error)) {
	err := r.CommitHeader()
	r.ctx.dispatcherExec.Post(func() { handler(err) })
}

// WriteSome writes p to the response, deciding the framing mode and
// committing the header (with a synthesised 200 OK status if none was set)
// on first use.
func (r *ResponseObject) WriteSome(p []byte) (int, error) {
	if r.lastErr != nil {
		return 0, r.lastErr
	}
	if r.mode == modeUndecided {
		r.SetContentLengthVariable()
	}
	if !r.headerCommitted {
		if !r.ctx.ResponseHeader.HasStatus() {
			r.ctx.ResponseHeader.SetStatus(200, "OK")
		}
		if err := r.CommitHeader(); err != nil {
			return 0, err
		}
	}

	switch r.mode {
	case modeChunked:
		return r.writeChunk(p)
	case modeContentLength:
		return r.writeBounded(p)
	case modeRaw:
		return r.writeUnbounded(p)
	default:
		r.lastErr = ErrResponseModeNotSet
		return 0, ErrResponseModeNotSet
	}
}

func (r *ResponseObject) writeBounded(p []byte) (int, error) {
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.ctx.ResponseStream.WriteSome(p)
	r.remaining -= int64(n)
	if err != nil {
		r.lastErr = err
	}
	return n, err
}

func (r *ResponseObject) writeUnbounded(p []byte) (int, error) {
	n, err := r.ctx.ResponseStream.WriteSome(p)
	if err != nil {
		r.lastErr = err
	}
	return n, err
}

func (r *ResponseObject) writeChunk(p []byte) (int, error) {
	header := wire.EncodeChunkHeader(len(p))
	if _, err := r.ctx.ResponseStream.WriteSome(header); err != nil {
		r.lastErr = err
		return 0, err
	}
	n, err := r.ctx.ResponseStream.WriteSome(p)
	if err != nil {
		r.lastErr = err
		return n, err
	}
	if _, err := r.ctx.ResponseStream.WriteSome(wire.CRLF); err != nil {
		r.lastErr = err
		return n, err
	}
	return n, nil
}

// Flush sets a fixed content-length equal to len(p) if the mode is still
// undecided, commits the header, writes p, and closes the stream.
func (r *ResponseObject) Flush(p []byte) (int, error) {
	if r.lastErr != nil {
		return 0, r.lastErr
	}
	if r.mode == modeUndecided {
		r.SetContentLengthFixed(len(p))
	}
	if !r.headerCommitted {
		if err := r.CommitHeader(); err != nil {
			return 0, err
		}
	}
	n, err := r.WriteSome(p)
	if err != nil {
		return n, err
	}
	if err := r.Close(); err != nil {
		return n, err
	}
	return n, nil
}

// Close ends the response: in chunked mode it emits the terminating
// zero-length chunk; in content-length/raw mode it simply closes the
// stream; with the mode still undecided (the handler never wrote or
// committed anything) it synthesises a "server did not respond" failure.
func (r *ResponseObject) Close() error {
	if r.lastErr != nil {
		return r.lastErr
	}
	switch r.mode {
	case modeChunked:
		if _, err := r.ctx.ResponseStream.WriteSome(wire.FinalChunk); err != nil {
			r.lastErr = err
			return err
		}
		r.ctx.ResponseStream.Close()
		r.lastErr = io.EOF
		return nil
	case modeContentLength, modeRaw:
		r.ctx.ResponseStream.Close()
		r.lastErr = io.EOF
		return nil
	default:
		r.SetException(errServerDidNotRespond)
		return nil
	}
}

// SetContentLengthFixed declares a fixed-length response body. Decides the
// response's Connection header from the request's own Connection header
// and version, per §4.3.
func (r *ResponseObject) SetContentLengthFixed(n int) {
	if r.mode != modeUndecided {
		return
	}
	r.ctx.ResponseHeader.Headers.Set("Content-Length", strconv.Itoa(n))
	r.remaining = int64(n)

	reqConn, hasConn := r.ctx.RequestHeader.Headers.Get("Connection")
	mustClose := !hasConn ||
		strings.EqualFold(reqConn, "close") ||
		(!r.ctx.RequestHeader.ProtoAtLeast(1, 1) && !strings.EqualFold(reqConn, "keep-alive"))

	if mustClose {
		r.ctx.ResponseHeader.Headers.Set("Connection", "close")
	} else {
		r.ctx.ResponseHeader.Headers.Set("Connection", "keep-alive")
	}
	r.mode = modeContentLength
}

// SetContentLengthVariable declares a framing mode for a body of unknown
// length ahead of time: chunked if the request supports HTTP/1.1, or a
// close-delimited raw stream for HTTP/1.0 clients.
func (r *ResponseObject) SetContentLengthVariable() {
	if r.mode != modeUndecided {
		return
	}
	r.ctx.ResponseHeader.Headers.Del("Content-Length")

	if supportsChunked(&r.ctx.RequestHeader) {
		r.ctx.ResponseHeader.Headers.Add("Transfer-Encoding", "chunked")
		if demandingClose(&r.ctx.RequestHeader) {
			r.ctx.ResponseHeader.Headers.Add("Connection", "close")
		} else {
			r.ctx.ResponseHeader.Headers.Add("Connection", "keep-alive")
		}
		r.mode = modeChunked
	} else {
		r.ctx.ResponseHeader.Headers.Add("Connection", "close")
		r.remaining = -1
		r.mode = modeRaw
	}
}

// SetException records err as this response's outcome. If the header has
// not yet been committed, it synthesises a 500 response carrying err's
// rendered exception; otherwise it aborts the response stream, which the
// responder observes as a read failure.
func (r *ResponseObject) SetException(err error) {
	if err == nil {
		err = errServerDidNotRespond
	}
	r.SetExceptionObject(apierr.FromError(err))
}

// SetExceptionObject is SetException for a caller that has already rendered
// an apierr.Exception (for example DispatchContext.Run after recovering a
// panic) and wants to preserve its full nested-cause tree rather than
// re-deriving it from a single flattened error.
func (r *ResponseObject) SetExceptionObject(exc *apierr.Exception) {
	if r.lastErr != nil {
		return
	}
	if !r.headerCommitted {
		r.commitWithException(exc)
		return
	}
	r.ctx.ResponseStream.SetError(fakestream.ErrAborted)
	r.lastErr = fakestream.ErrAborted
}

func (r *ResponseObject) commitWithException(exc *apierr.Exception) {
	body, encErr := apierr.AsJSON(exc, apierr.Compact())
	if encErr != nil {
		body = []byte(`{"name":"apierr.encode_failure","what":"` + encErr.Error() + `"}`)
	}

	h := &r.ctx.ResponseHeader
	h.SetStatus(500, "Internal Server Error")
	h.Major, h.Minor = 1, 1
	h.Headers.Set("Connection", "close")
	h.Headers.Set("Content-Length", strconv.Itoa(len(body)))
	h.Headers.Set("Content-Type", "application/json")
	h.Headers.Set("X-Secr-Content-Type", "protobuf-message")
	h.Headers.Set("X-Secr-Message-Type", "secr.api.Exception")

	data := wire.EncodeResponseHeader(h)
	if _, writeErr := r.ctx.ResponseStream.WriteSome(data); writeErr != nil {
		r.lastErr = writeErr
		return
	}
	r.headerCommitted = true
	r.mode = modeContentLength

	if _, writeErr := r.ctx.ResponseStream.WriteSome(body); writeErr != nil {
		r.lastErr = writeErr
		return
	}
	r.ctx.ResponseStream.Close()
	r.lastErr = io.EOF
}

func supportsChunked(rh *wire.RequestHeader) bool {
	return rh.ProtoAtLeast(1, 1)
}

func demandingClose(rh *wire.RequestHeader) bool {
	conn, ok := rh.Headers.Get("Connection")
	if !rh.ProtoAtLeast(1, 1) {
		return !ok || !strings.EqualFold(conn, "keep-alive")
	}
	if !ok || strings.EqualFold(conn, "keep-alive") {
		return false
	}
	return true
}
