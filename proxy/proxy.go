// Package proxy shares one native resource between several JavaScript
// objects. A Proxy is a counted reference: each JS object that exposes the
// resource holds its own Proxy, and the resource's release function runs
// when the last one is released.
//
// Proxies do not lock the resource. A resource touched from task goroutines
// must synchronize itself.
package proxy

import (
	"sync/atomic"

	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/safeerr"
)

type shared[T any] struct {
	v       T
	refs    atomic.Int64
	release func(T)
}

// Proxy is one reference to a shared resource.
type Proxy[T any] struct {
	s        *shared[T]
	released atomic.Bool
}

// New wraps v with a single reference. release, if non-nil, runs once when
// the last reference is released.
func New[T any](v T, release func(T)) *Proxy[T] {
	s := &shared[T]{v: v, release: release}
	s.refs.Store(1)
	return &Proxy[T]{s: s}
}

// Clone returns a new reference to the same resource.
func (p *Proxy[T]) Clone() *Proxy[T] {
	p.live()
	p.s.refs.Add(1)
	return &Proxy[T]{s: p.s}
}

// Value returns the shared resource.
func (p *Proxy[T]) Value() T {
	p.live()
	return p.s.v
}

// Refs returns the number of live references to the resource.
func (p *Proxy[T]) Refs() int64 { return p.s.refs.Load() }

// Released reports whether this reference has been released.
func (p *Proxy[T]) Released() bool { return p.released.Load() }

// Release drops this reference. Releasing the same reference twice panics.
func (p *Proxy[T]) Release() {
	if !p.released.CompareAndSwap(false, true) {
		panic("proxy: reference released twice")
	}
	if p.s.refs.Add(-1) == 0 && p.s.release != nil {
		p.s.release(p.s.v)
	}
}

func (p *Proxy[T]) live() {
	if p.released.Load() {
		panic("proxy: use of released reference")
	}
}

// Finish settles a boundary call that produces a proxy for native use rather
// than a host value. A failure is signaled exactly as safeerr.Finish does.
func Finish[T any](h host.Host, p *Proxy[T], err error) (*Proxy[T], *safeerr.Thrown) {
	if err == nil {
		return p, nil
	}
	_, thrown := safeerr.Finish(h, nil, err)
	return nil, thrown
}
