package dispatch

import "github.com/badu/dispatch/apierr"

// DispatchContext is the handle an application handler receives for one
// request: it pairs the read side (RequestObject) with the write side
// (ResponseObject) of a single RequestContext, standing in for the source's
// dispatch_context::shared_state -- whose destructor is what guarantees a
// response is always finalised. Go has no destructors, so Run reproduces
// that guarantee explicitly: whatever the handler does (write a response,
// return early, return an error, or panic), Run finalises the response
// exactly once before it returns.
type DispatchContext struct {
	Request  *RequestObject
	Response *ResponseObject

	ctx *RequestContext
}

// newDispatchContext builds a DispatchContext over ctx.
func newDispatchContext(ctx *RequestContext) *DispatchContext {
	return &DispatchContext{
		Request:  newRequestObject(ctx),
		Response: newResponseObject(ctx),
		ctx:      ctx,
	}
}

// ID returns the request's identifier.
func (d *DispatchContext) ID() RequestID { return d.ctx.ID() }

// ConnectionID returns the owning connection's identifier.
func (d *DispatchContext) ConnectionID() ConnectionID { return d.ctx.ConnectionID() }

// Run invokes handler and finalises the response exactly once. A panic is
// captured with recover and rendered to an apierr.Exception via
// apierr.FromRecover, mirroring the source's std::current_exception()
// capture in response_object's destructor. A returned error is rendered via
// ResponseObject.SetException. A handler that returns normally without ever
// committing a status is finalised through Close, which synthesises the
// "server did not respond" failure.
func (d *DispatchContext) Run(handler func(*DispatchContext) error) {
	var handlerErr error
	var recovered *apierr.Exception

	func() {
		defer func() {
			if r := recover(); r != nil {
				recovered = apierr.FromRecover(r)
			}
		}()
		handlerErr = handler(d)
	}()

	switch {
	case recovered != nil:
		d.Response.SetExceptionObject(recovered)
	case handlerErr != nil:
		d.Response.SetException(handlerErr)
	default:
		_ = d.Response.Close()
	}
}
