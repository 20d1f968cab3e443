package dispatch

import "github.com/badu/dispatch/wire"

// RequestObject is the read side of one RequestContext, exposed to
// application handlers: the parsed request header plus the body stream.
type RequestObject struct {
	ctx *RequestContext
}

func newRequestObject(ctx *RequestContext) *RequestObject {
	return &RequestObject{ctx: ctx}
}

// Header returns the request's status line and headers.
func (r *RequestObject) Header() *wire.RequestHeader {
	return &r.ctx.RequestHeader
}

// ContentType lazily parses and caches the request's Content-Type header.
func (r *RequestObject) ContentType() (wire.ContentType, error) {
	return r.ctx.ContentType()
}

// ReadSome reads the next chunk of the request body, blocking until data,
// EOF, or a transport error is available.
func (r *RequestObject) ReadSome(buf []byte) (int, error) {
	return r.ctx.RequestStream.ReadSome(buf)
}
