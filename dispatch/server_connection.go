package dispatch

import (
	"io"

	"go.uber.org/zap"

	"github.com/badu/dispatch/executor"
	"github.com/badu/dispatch/reqparser"
)

// byteStream is the subset of netconn.Conn a ServerConnection drives: an
// async socket that can be read, written (through the responder), cancelled
// to unblock a pending read, and half-shut on its receive side once a
// protocol error is detected.
type byteStream interface {
	AsyncReadSome(buf []byte, handler func(err error, n int))
	AsyncWriteSome(buf []byte, handler func(err error, n int))
	Cancel()
	Shutdown() error
}

// ServerConnection owns one accepted socket end to end: it feeds bytes
// through an reqparser.Parser, builds a RequestContext per pipelined
// request, hands completed requests to whatever side calls
// AsyncWaitDispatch, and drains responses back onto the wire through a
// responder. Exported methods may be called from any goroutine and post
// their work onto the connection's own strand; every unexported method runs
// only on that strand -- this is the Go analogue of the source's
// single-threaded-by-strand connection actor.
type ServerConnection struct {
	id     ConnectionID
	cfg    Config
	socket byteStream

	strand         executor.Executor
	dispatcherExec executor.Executor

	parser  *reqparser.Parser
	readBuf []byte

	currentReceiver     *RequestContext
	pendingDispatch     []*RequestContext
	dispatchWaiter      func(*DispatchContext, error)
	headerBytesConsumed int

	resp *responder

	pauseCount        int
	workCount         int
	err               error
	responderComplete bool
	pendingFinished   func(error)
}

// NewServerConnection constructs a connection over socket, using strand as
// its private serialisation domain and dispatcherExec as the executor
// dispatched requests and their responses are driven from. Reading is held
// paused (matching the source's initial _pause_count of 1) until AsyncStart
// is called.
func NewServerConnection(id ConnectionID, socket byteStream, strand executor.Executor, dispatcherExec executor.Executor, cfg Config) *ServerConnection {
	cfg = cfg.withDefaults()
	c := &ServerConnection{
		id:             id,
		cfg:            cfg,
		socket:         socket,
		strand:         strand,
		dispatcherExec: dispatcherExec,
		readBuf:        make([]byte, cfg.ReadBufferSize),
		pauseCount:     1,
	}
	c.resp = newResponder(strand, socket, cfg.ReadBufferSize)
	c.parser = reqparser.New(reqparser.Settings{
		OnMessageBegin: func() {
			c.receiverEndRequest(io.EOF)
			c.newReceiver()
		},
		OnURL: func(data []byte) error {
			c.currentReceiver.AppendURI(data)
			return nil
		},
		OnHeaderField: func(data []byte) error {
			if err := c.checkHeaderBudget(len(data)); err != nil {
				return err
			}
			c.currentReceiver.AppendHeaderField(data)
			return nil
		},
		OnHeaderValue: func(data []byte) error {
			if err := c.checkHeaderBudget(len(data)); err != nil {
				return err
			}
			c.currentReceiver.AppendHeaderValue(data)
			return nil
		},
		OnHeadersComplete: func(method string, major, minor int) error {
			if err := c.currentReceiver.FinalizeHeader(method, major, minor); err != nil {
				return err
			}
			c.receiverAvailableForDispatch()
			return nil
		},
		OnBody: func(data []byte) error {
			return c.currentReceiver.ConsumeBody(data)
		},
		OnMessageComplete: func() error {
			c.receiverEndRequest(io.EOF)
			c.headerBytesConsumed = 0
			c.parser.Reset()
			return nil
		},
	})
	return c
}

func (c *ServerConnection) checkHeaderBudget(n int) error {
	if c.cfg.MaxHeaderBytes <= 0 {
		return nil
	}
	c.headerBytesConsumed += n
	if c.headerBytesConsumed > c.cfg.MaxHeaderBytes {
		return errHeaderTooLarge
	}
	return nil
}

// AsyncStart begins reading from the socket and arranges for handler to run
// (on the connection's own executor) once every request has been dispatched
// and responded to and the connection has reached a terminal error (which
// includes clean EOF).
func (c *ServerConnection) AsyncStart(handler func(error)) {
	c.strand.Post(func() {
		c.pushWork()
		c.resp.AsyncWait(func(err error) {
			c.strand.Post(func() {
				c.socket.Cancel()
				c.responderComplete = true
				c.popWork()
			})
		})

		c.pushWork()
		c.pendingFinished = handler
		c.cfg.Logger.Debug("connection started", zap.String("connection", c.id.String()))
		c.unpause()
		c.popWork()
	})
}

// AsyncWaitDispatch registers handler to receive the next request that
// becomes available for dispatch, or the connection's terminal error if one
// has already occurred and no further requests are queued. Only one
// registration may be outstanding at a time.
func (c *ServerConnection) AsyncWaitDispatch(handler func(*DispatchContext, error)) {
	c.strand.Post(func() {
		c.pushWork()
		c.dispatchWaiter = handler
		c.attemptDispatch()
		c.popWork()
	})
}

func (c *ServerConnection) collectMoreData() bool {
	if c.err != nil || c.pauseCount != 0 {
		return false
	}
	c.pause()
	c.pushWork()
	c.socket.AsyncReadSome(c.readBuf, func(err error, n int) {
		c.strand.Post(func() {
			c.handleRead(err, n)
			c.unpause()
			c.popWork()
		})
	})
	return true
}

func (c *ServerConnection) pause() { c.pauseCount++ }
func (c *ServerConnection) unpause() {
	c.pauseCount--
	if c.pauseCount == 0 {
		c.collectMoreData()
	}
}

func (c *ServerConnection) handleRead(err error, n int) {
	if n > 0 {
		if _, parseErr := c.parser.Execute(c.readBuf[:n]); parseErr != nil {
			c.handleProtocolError(parseErr)
		}
	}
	if err != nil {
		c.handleTransportError(err)
	}
}

func (c *ServerConnection) handleTransportError(err error) {
	if err == nil || c.err != nil {
		return
	}
	c.pause()
	c.receiverEndRequest(err)
	if err != io.EOF {
		c.pendingDispatch = nil
	}
	c.resp.SubmitError(err)
	c.err = err
	if err == io.EOF {
		c.cfg.Logger.Debug("connection closed by peer", zap.String("connection", c.id.String()))
	} else {
		c.cfg.Logger.Warn("transport error", zap.String("connection", c.id.String()), zap.Error(err))
	}
}

func (c *ServerConnection) handleProtocolError(err error) {
	if err == nil || c.err != nil {
		return
	}
	c.pause()
	c.receiverEndRequest(errOperationAborted)
	c.pendingDispatch = nil
	c.err = err
	_ = c.socket.Shutdown()
	c.resp.SubmitError(errOperationAborted)
	c.attemptDispatch()
	c.currentReceiver = nil
	c.cfg.Logger.Warn("protocol error", zap.String("connection", c.id.String()), zap.Error(err))
}

func (c *ServerConnection) newReceiver() {
	c.currentReceiver = NewRequestContext(c.id, c.strand, c.dispatcherExec)
}

func (c *ServerConnection) receiverEndRequest(err error) {
	if c.currentReceiver != nil {
		c.currentReceiver.RequestStream.SetError(err)
		c.currentReceiver = nil
	}
}

func (c *ServerConnection) receiverAvailableForDispatch() {
	if c.currentReceiver != nil {
		c.pendingDispatch = append(c.pendingDispatch, c.currentReceiver)
		c.attemptDispatch()
		c.receiverAvailableForResponse()
	}
}

func (c *ServerConnection) receiverAvailableForResponse() {
	c.resp.Submit(c.currentReceiver)
}

func (c *ServerConnection) attemptDispatch() {
	if c.dispatchWaiter == nil {
		return
	}
	if len(c.pendingDispatch) > 0 {
		ctx := c.pendingDispatch[0]
		c.pendingDispatch = c.pendingDispatch[1:]
		waiter := c.dispatchWaiter
		c.dispatchWaiter = nil
		dc := newDispatchContext(ctx)
		c.dispatcherExec.Post(func() { waiter(dc, nil) })
		return
	}
	if c.err != nil {
		waiter := c.dispatchWaiter
		c.dispatchWaiter = nil
		err := c.err
		c.dispatcherExec.Post(func() { waiter(nil, err) })
	}
}

func (c *ServerConnection) pushWork() { c.workCount++ }

func (c *ServerConnection) popWork() {
	c.workCount--
	if c.workCount == 0 && c.pendingFinished != nil && c.responderComplete && len(c.pendingDispatch) == 0 {
		pf := c.pendingFinished
		c.pendingFinished = nil
		err := c.err
		pf(err)
	}
}
