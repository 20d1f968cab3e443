package dispatch

import "errors"

// ErrMissingStatusLine is returned by CommitHeader when no status has been
// set on the response header.
var ErrMissingStatusLine = errors.New("dispatch: response header has no status line")

// ErrResponseModeNotSet is returned if WriteSome is somehow reached with the
// response mode still undecided after the commit path has run; this should
// be unreachable and indicates a logic error in ResponseObject.
var ErrResponseModeNotSet = errors.New("dispatch: response mode not set")

// ProtocolError wraps a parser or connection state-machine failure with a
// stable name, mirroring the http_parser-derived naming the source exposes
// through http_errno_name.
type ProtocolError struct {
	Name string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return e.Name
	}
	return e.Name + ": " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func newProtocolError(name string, err error) *ProtocolError {
	return &ProtocolError{Name: name, Err: err}
}

// logicError is a leaf error that reports a fixed ExceptionName, used to
// preserve the exact apierr.Exception{Name, What} pair the source produces
// for its synthesised failures (std::logic_error("server did not respond")
// in dispatcher.cpp).
type logicError struct {
	name string
	what string
}

func (e *logicError) Error() string         { return e.what }
func (e *logicError) ExceptionName() string { return e.name }

// errServerDidNotRespond is synthesised by ResponseObject's finalization
// path when a handler returns or panics without committing a status.
var errServerDidNotRespond = &logicError{name: "std::logic_error", what: "server did not respond"}

// errOperationAborted is recorded by the responder when a response stream
// hits clean EOF but the response it just finished demands the connection
// close, mirroring the source's use of asio::error::operation_aborted to
// unwind the remaining queued responses.
var errOperationAborted = errors.New("dispatch: operation aborted")

// errHeaderTooLarge is returned from a header-field/value parser callback
// once the cumulative header block exceeds Config.MaxHeaderBytes.
var errHeaderTooLarge = errors.New("dispatch: request header exceeds configured maximum size")

// errInvalidURL reports that a request-target failed to parse.
func errInvalidURL(uri string) error {
	return &logicError{name: "secr::dispatch::http::invalid_url", what: "invalid url: " + uri}
}
