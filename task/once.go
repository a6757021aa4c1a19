package task

import "sync/atomic"

// Once holds a value that can be taken exactly once. Taking it again is a
// programming error and panics.
type Once[F any] struct {
	f     F
	taken atomic.Bool
}

// NewOnce returns a cell holding f.
func NewOnce[F any](f F) *Once[F] {
	return &Once[F]{f: f}
}

// Take returns the value and clears the cell.
func (o *Once[F]) Take() F {
	if !o.taken.CompareAndSwap(false, true) {
		panic("task: closure taken twice")
	}
	f := o.f
	var zero F
	o.f = zero
	return f
}

// Taken reports whether Take has been called.
func (o *Once[F]) Taken() bool { return o.taken.Load() }
