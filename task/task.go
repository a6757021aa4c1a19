// Package task runs native work off the JavaScript goroutine and delivers the
// result to a JS callback.
//
// Only plain Go values cross goroutines: the task body runs on a worker and
// returns a native result, and conversion to a host value happens later on
// the engine goroutine when the event loop delivers it. The callback is
// invoked exactly once, as callback(err) or callback(null, value).
package task

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/internal/core"
	"github.com/cryguy/hostbridge/marshal"
	"github.com/cryguy/hostbridge/safeerr"
)

// State is the lifecycle of a task. There is no cancelled state: a
// scheduled task always completes.
type State int32

const (
	Scheduled State = iota
	Running
	CompletedOK
	CompletedErr
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	case CompletedOK:
		return "completed(ok)"
	case CompletedErr:
		return "completed(err)"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var nextID atomic.Uint64

// Task is one scheduled unit of work.
type Task[T any] struct {
	id    uint64
	name  string
	body  *Once[func() (T, error)]
	state atomic.Int32
}

// ID returns the task's process-unique id.
func (t *Task[T]) ID() uint64 { return t.id }

// State returns the current lifecycle state.
func (t *Task[T]) State() State { return State(t.state.Load()) }

// perform takes the body and runs it. A panicking body completes the task
// with an error so the callback still fires.
func (t *Task[T]) perform() (v T, err error) {
	f := t.body.Take()
	t.state.Store(int32(Running))
	defer func() {
		if p := recover(); p != nil {
			core.Logger().Error("task body panicked",
				zap.Uint64("task", t.id),
				zap.String("op", t.name),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
			err = safeerr.Errorf("task %s panicked: %v", t.name, p)
		}
		if err != nil {
			t.state.Store(int32(CompletedErr))
		} else {
			t.state.Store(int32(CompletedOK))
		}
	}()
	return f()
}

// Run schedules f on the call's loop. When f returns, its result is
// converted with into on the engine goroutine and passed to callback. The
// returned task is only for observation.
func Run[T any](c *host.Call, callback host.Value, f func() (T, error), into marshal.Into[T]) (*Task[T], error) {
	if callback == nil || callback.Kind() != host.KindFunction {
		got := host.KindUndefined
		if callback != nil {
			got = callback.Kind()
		}
		return nil, safeerr.MismatchError("function", got)
	}
	done, err := c.Loop.Schedule(callback)
	if err != nil {
		return nil, err
	}

	t := &Task[T]{id: nextID.Add(1), name: c.Name, body: NewOnce(f)}
	core.Logger().Debug("task scheduled", zap.Uint64("task", t.id), zap.String("op", c.Name))

	c.Loop.Go(func() {
		v, err := t.perform()
		done.Complete(func(c *host.Call) (host.Value, error) {
			if err != nil {
				return nil, err
			}
			return into(c.Host, v)
		})
	})
	return t, nil
}

// Builder constructs a host value on the engine goroutine.
type Builder func(h host.Host) (host.Value, error)

// RunFunc is Run for bodies that return their own host value builder.
func RunFunc(c *host.Call, callback host.Value, f func() (Builder, error)) (*Task[Builder], error) {
	return Run(c, callback, f, func(h host.Host, b Builder) (host.Value, error) {
		if b == nil {
			return h.Undefined(), nil
		}
		return b(h)
	})
}
