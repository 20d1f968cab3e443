// Package executor provides the posting abstraction that stands in for the
// asio io_service/strand pairing the original design is built on: a handle
// on which a completion can be scheduled without ever running inline on the
// caller's goroutine.
package executor

import "sync"

// Executor schedules fn to run later, never on the calling goroutine.
type Executor interface {
	Post(fn func())
}

// Go is an Executor that runs every posted function on its own goroutine.
// It models an unbounded thread pool / independent io_service: posts never
// serialise against one another. Suitable for the application/dispatcher
// side, where handlers are expected to run concurrently.
type Go struct{}

// NewGo returns a Go executor.
func NewGo() Go { return Go{} }

// Post implements Executor.
func (Go) Post(fn func()) { go fn() }

// Strand is a single-consumer serial Executor: posted functions run one at a
// time, in the order they were posted, on one worker goroutine at a time. This is
// the Go analogue of a boost::asio::io_service::strand and is used as the
// per-connection serialisation domain.
type Strand struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

// NewStrand returns a ready-to-use Strand. There is no background goroutine
// until the first Post call; the strand's worker goroutine exits once its
// queue drains and is restarted lazily by the next Post.
func NewStrand() *Strand {
	return &Strand{}
}

// Post implements Executor. If no worker is currently draining the queue,
// one is started.
func (s *Strand) Post(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	start := !s.running
	if start {
		s.running = true
	}
	s.mu.Unlock()

	if start {
		go s.drain()
	}
}

func (s *Strand) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		fn()
	}
}
