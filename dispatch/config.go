package dispatch

import (
	"time"

	"go.uber.org/zap"
)

// defaultReadBufferSize matches the source's std::array<char, 4096> read
// buffer.
const defaultReadBufferSize = 4096

// Config carries the ambient settings a ServerConnection needs beyond the
// wire itself.
type Config struct {
	// ReadBufferSize is the size of the fixed buffer used for each socket
	// read. Zero selects the default of 4096 bytes.
	ReadBufferSize int

	// MaxHeaderBytes bounds the total size of a request's header block.
	// Zero means unbounded.
	MaxHeaderBytes int

	// MaxQueuedDispatch is informational: the number of parsed-but-not-yet-
	// dispatched requests above which a caller may want to apply its own
	// backpressure. The connection itself queues without a hard limit.
	MaxQueuedDispatch int

	// ReadTimeout and WriteTimeout are carried in the configuration only:
	// ServerConnection does not read them, and neither netconn.Conn nor
	// cmd/dispatchd applies a deadline from them.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Logger receives structured connection/dispatch events. A nil Logger
	// is replaced with zap.NewNop().
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = defaultReadBufferSize
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
