package eventloop

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/internal/core"
	"github.com/cryguy/hostbridge/task"
)

// Deliverer invokes a callback with the settled outcome of a completion.
// It runs on the engine goroutine and returns the exception, if any, that
// escaped the callback.
type Deliverer interface {
	Deliver(cb host.Value, fn func(c *host.Call) (host.Value, error)) error
}

// UncaughtError is an exception thrown by a callback during delivery.
type UncaughtError struct {
	ID  uint64
	Err error
}

func (e *UncaughtError) Error() string {
	return fmt.Sprintf("callback %d threw: %v", e.ID, e.Err)
}

func (e *UncaughtError) Unwrap() error { return e.Err }

// finished is a completion posted by a worker that has not been delivered.
type finished struct {
	id uint64
	fn func(c *host.Call) (host.Value, error)
}

// EventLoop carries results of background work back to the engine
// goroutine. It implements host.Loop: Schedule persists the callback and
// hands out a Completer, workers post completions from any goroutine, and
// Drain delivers them on the engine goroutine.
type EventLoop struct {
	h    host.Host
	exec task.Executor
	log  *zap.Logger

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]host.Value
	ready   []finished
	wake    chan struct{}
	closed  bool
}

var _ host.Loop = (*EventLoop)(nil)

// New returns a loop scheduling deliveries on h and running work on exec.
func New(h host.Host, exec task.Executor) *EventLoop {
	return &EventLoop{
		h:       h,
		exec:    exec,
		log:     core.Logger().Named("eventloop"),
		pending: make(map[uint64]host.Value),
		wake:    make(chan struct{}, 1),
	}
}

// Schedule registers a pending delivery to callback. Engine goroutine only.
func (el *EventLoop) Schedule(callback host.Value) (host.Completer, error) {
	cb := el.h.Persist(callback)
	el.mu.Lock()
	el.nextID++
	id := el.nextID
	el.pending[id] = cb
	el.mu.Unlock()
	el.log.Debug("delivery scheduled", zap.Uint64("id", id))
	return &completer{el: el, id: id}, nil
}

// Go runs work on the loop's executor.
func (el *EventLoop) Go(work func()) { el.exec.Go(work) }

type completer struct {
	el   *EventLoop
	id   uint64
	done atomic.Bool
}

func (c *completer) Complete(fn func(c *host.Call) (host.Value, error)) {
	if !c.done.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("eventloop: delivery %d completed twice", c.id))
	}
	c.el.mu.Lock()
	if c.el.closed {
		c.el.mu.Unlock()
		return
	}
	c.el.ready = append(c.el.ready, finished{id: c.id, fn: fn})
	c.el.mu.Unlock()
	select {
	case c.el.wake <- struct{}{}:
	default:
	}
}

// Pending returns how many scheduled deliveries have not run yet.
func (el *EventLoop) Pending() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.pending)
}

// DrainReady delivers every completion posted so far without blocking.
// It returns the number delivered and any callback exceptions.
func (el *EventLoop) DrainReady(d Deliverer) (int, []error) {
	el.mu.Lock()
	batch := el.ready
	el.ready = nil
	el.mu.Unlock()

	var uncaught []error
	for _, f := range batch {
		el.mu.Lock()
		cb, ok := el.pending[f.id]
		delete(el.pending, f.id)
		el.mu.Unlock()
		if !ok {
			panic(fmt.Sprintf("eventloop: completion %d has no scheduled callback", f.id))
		}

		err := d.Deliver(cb, f.fn)
		el.h.Release(cb)
		if err != nil {
			el.log.Warn("callback threw during delivery", zap.Uint64("id", f.id), zap.Error(err))
			uncaught = append(uncaught, &UncaughtError{ID: f.id, Err: err})
		}
	}
	return len(batch), uncaught
}

// Drain delivers completions until nothing is pending or ctx is done.
// Must be called on the engine goroutine. Deliveries still pending when ctx
// ends are kept for a later Drain.
func (el *EventLoop) Drain(ctx context.Context, d Deliverer) ([]error, error) {
	var uncaught []error
	for {
		_, errs := el.DrainReady(d)
		uncaught = append(uncaught, errs...)
		if el.Pending() == 0 {
			return uncaught, nil
		}
		select {
		case <-el.wake:
		case <-ctx.Done():
			return uncaught, fmt.Errorf("%d deliveries still pending: %w", el.Pending(), ctx.Err())
		}
	}
}

// Shutdown delivers completions already posted, then settles every
// remaining callback with cause, in scheduling order. Completions posted
// afterwards are dropped. Must be called on the engine goroutine.
func (el *EventLoop) Shutdown(d Deliverer, cause error) []error {
	_, uncaught := el.DrainReady(d)

	el.mu.Lock()
	el.closed = true
	el.ready = nil
	ids := make([]uint64, 0, len(el.pending))
	for id := range el.pending {
		ids = append(ids, id)
	}
	el.mu.Unlock()
	slices.Sort(ids)

	fail := func(*host.Call) (host.Value, error) { return nil, cause }
	for _, id := range ids {
		el.mu.Lock()
		cb := el.pending[id]
		delete(el.pending, id)
		el.mu.Unlock()

		err := d.Deliver(cb, fail)
		el.h.Release(cb)
		if err != nil {
			uncaught = append(uncaught, &UncaughtError{ID: id, Err: err})
		}
	}
	if len(ids) > 0 {
		el.log.Debug("settled pending deliveries at shutdown", zap.Int("count", len(ids)))
	}
	return uncaught
}
