package dispatch

import (
	"strings"
	"sync"

	"github.com/badu/dispatch/executor"
	"github.com/badu/dispatch/fakestream"
	"github.com/badu/dispatch/urlinfo"
	"github.com/badu/dispatch/wire"
)

// RequestContext holds everything the core tracks about one HTTP request:
// the request/response headers as the parser and application build them,
// and the paired fake streams that bridge the connection strand and the
// dispatcher side. It is constructed when the parser reports message-begin
// and is released once the responder has finished forwarding its response.
type RequestContext struct {
	id     RequestID
	connID ConnectionID

	controllerExec executor.Executor
	dispatcherExec executor.Executor

	RequestHeader  wire.RequestHeader
	ResponseHeader wire.ResponseHeader

	// RequestStream is written by the connection strand as body bytes
	// arrive and read by the application.
	RequestStream *fakestream.FakeStream
	// ResponseStream is written by the application and read by the
	// responder on the connection strand.
	ResponseStream *fakestream.FakeStream

	uriBuf        strings.Builder
	fieldBuf      strings.Builder
	valueBuf      strings.Builder
	buildingValue bool

	contentTypeMu  sync.Mutex
	contentType    *wire.ContentType
	contentTypeErr error
}

// NewRequestContext constructs a fresh context for a pipelined request on
// connID. controllerExec is the connection's own strand; dispatcherExec is
// the executor application-side completions post to.
func NewRequestContext(connID ConnectionID, controllerExec, dispatcherExec executor.Executor) *RequestContext {
	return &RequestContext{
		id:             newRequestID(),
		connID:         connID,
		controllerExec: controllerExec,
		dispatcherExec: dispatcherExec,
		RequestStream:  fakestream.New(dispatcherExec, controllerExec),
		ResponseStream: fakestream.New(controllerExec, dispatcherExec),
	}
}

// ID returns this request's identifier.
func (rc *RequestContext) ID() RequestID { return rc.id }

// ConnectionID returns the owning connection's identifier.
func (rc *RequestContext) ConnectionID() ConnectionID { return rc.connID }

// AppendURI appends a chunk of the request-target as the parser delivers
// it; the target may arrive across several calls.
func (rc *RequestContext) AppendURI(data []byte) {
	rc.uriBuf.Write(data)
}

// AppendHeaderField appends a chunk of a header name. Seeing a field chunk
// immediately after having started a value chunk means the previous
// name/value pair is complete and a new one is beginning.
func (rc *RequestContext) AppendHeaderField(data []byte) {
	if rc.buildingValue {
		rc.commitCurrentHeader()
	}
	rc.fieldBuf.Write(data)
}

// AppendHeaderValue appends a chunk of the current header's value.
func (rc *RequestContext) AppendHeaderValue(data []byte) {
	rc.buildingValue = true
	rc.valueBuf.Write(data)
}

func (rc *RequestContext) commitCurrentHeader() {
	if rc.fieldBuf.Len() == 0 {
		return
	}
	rc.RequestHeader.Headers.Add(rc.fieldBuf.String(), rc.valueBuf.String())
	rc.fieldBuf.Reset()
	rc.valueBuf.Reset()
	rc.buildingValue = false
}

// FinalizeHeader runs once the parser reports headers-complete: it flushes
// any in-progress header pair, copies method and version into the request
// header, and splits the accumulated request-target into its query parts.
func (rc *RequestContext) FinalizeHeader(method string, major, minor int) error {
	rc.commitCurrentHeader()

	rc.RequestHeader.Method = method
	rc.RequestHeader.URI = rc.uriBuf.String()
	rc.RequestHeader.Major = major
	rc.RequestHeader.Minor = minor
	rc.ResponseHeader.Major = major
	rc.ResponseHeader.Minor = minor

	qp, err := urlinfo.ParseRequestTarget(rc.RequestHeader.URI, method == "CONNECT")
	if err != nil {
		return errInvalidURL(rc.RequestHeader.URI)
	}
	rc.RequestHeader.Query = qp
	return nil
}

// ConsumeBody writes one chunk of body data to the request stream.
func (rc *RequestContext) ConsumeBody(data []byte) error {
	_, err := rc.RequestStream.WriteSome(data)
	return err
}

// NotifyEOF marks the request body complete.
func (rc *RequestContext) NotifyEOF() {
	rc.RequestStream.Close()
}

// ContentType lazily parses and caches the request's Content-Type header.
// Safe to call from the dispatcher goroutine concurrently with connection-
// strand mutation of other RequestContext fields, per the core's
// concurrency model.
func (rc *RequestContext) ContentType() (wire.ContentType, error) {
	rc.contentTypeMu.Lock()
	defer rc.contentTypeMu.Unlock()

	if rc.contentType != nil {
		return *rc.contentType, rc.contentTypeErr
	}
	raw, ok := rc.RequestHeader.Headers.Get("Content-Type")
	if !ok {
		rc.contentType = &wire.ContentType{}
		return *rc.contentType, nil
	}
	ct, err := wire.ParseContentType(raw)
	rc.contentType = &ct
	rc.contentTypeErr = err
	return ct, err
}

// MustForceCloseOnResponse implements the close-after-response truth table
// against the RESPONSE header (§4.2): absence of Connection, or an explicit
// close, forces a close; keep-alive, a declared Content-Length, or chunked
// Transfer-Encoding keep the connection open; anything else closes.
func (rc *RequestContext) MustForceCloseOnResponse() bool {
	conn, ok := rc.ResponseHeader.Headers.Get("Connection")
	if !ok {
		return true
	}
	if strings.EqualFold(conn, "close") {
		return true
	}
	if strings.EqualFold(conn, "keep-alive") {
		return false
	}
	if _, ok := rc.ResponseHeader.Headers.Get("Content-Length"); ok {
		return false
	}
	if te, ok := rc.ResponseHeader.Headers.Get("Transfer-Encoding"); ok && strings.EqualFold(te, "chunked") {
		return false
	}
	return true
}
