// Package dispatch provides the concurrent ingestion front of the engine: a
// non-blocking publish surface that fans events out to every registered
// handler while guaranteeing per-handler serialized, in-order delivery.
// Producers on arbitrary goroutines call Publish; each handler drains its own
// unbounded mailbox on a dedicated worker goroutine, so no handler ever
// processes two events at once and distinct handlers proceed in parallel.
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
)

// Handler consumes events and markers under the dispatcher's serialization
// guarantee. Implementations need no internal locking for these methods.
type Handler interface {
	HandleEvent(domain.LocalEvent)
	HandleMarker(domain.LocalEvent)
}

// Lane is an unbounded FIFO executor: closures posted to it run in order on
// a single worker goroutine. Posts after Close are dropped, which is what
// makes late timer callbacks harmless.
type Lane struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

func newLane() *Lane {
	l := &Lane{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Post enqueues fn for execution on the lane's worker. It never blocks on
// the consumer side and reports whether the lane accepted the work.
func (l *Lane) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

func (l *Lane) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
	}
}

// Close stops intake, lets the worker drain what was already queued, and
// waits for it to exit.
func (l *Lane) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.cond.Broadcast()
	}
	l.mu.Unlock()
	<-l.done
}

type entry struct {
	lane    *Lane
	handler Handler
}

// Dispatcher fans published events out to every bound handler's lane. A
// publish acquires the fan-out lock once, so all lanes observe the same
// global enqueue order.
type Dispatcher struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries []entry
	closed  bool
}

// New builds an empty dispatcher. Events published before any handler is
// bound are delivered to no one; there is no buffering before trackers
// exist.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// NewLane opens a serialized lane for a handler that is about to be built.
// Handlers that schedule deferred work (timers) post it through this lane so
// it interleaves safely with event delivery.
func (d *Dispatcher) NewLane() *Lane {
	return newLane()
}

// Bind registers a handler behind its lane. Events published from this point
// on are delivered to it.
func (d *Dispatcher) Bind(lane *Lane, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.entries = append(d.entries, entry{lane: lane, handler: h})
}

// Publish enqueues the event for every bound handler and returns without
// waiting for delivery.
func (d *Dispatcher) Publish(ev domain.LocalEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for _, e := range d.entries {
		h := e.handler
		e.lane.Post(func() { h.HandleEvent(ev) })
	}
}

// PublishMarker enqueues the marker event for every bound handler.
func (d *Dispatcher) PublishMarker(ev domain.LocalEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for _, e := range d.entries {
		h := e.handler
		e.lane.Post(func() { h.HandleMarker(ev) })
	}
}

// Close stops intake, drains every lane, and waits for their workers to
// exit. After Close returns no handler code is running or will run again.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	entries := d.entries
	d.mu.Unlock()

	for _, e := range entries {
		e.lane.Close()
	}
}
