package proxy

import (
	"sync"
)

// Releaser is any Proxy regardless of its resource type.
type Releaser interface {
	Release()
}

// Table maps the numeric ids handed to JavaScript onto proxies. It is safe
// for concurrent use.
type Table struct {
	mu   sync.Mutex
	next uint64
	m    map[uint64]Releaser
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{m: make(map[uint64]Releaser)}
}

// Put stores r and returns its id. Ids start at 1 and are never reused.
func (t *Table) Put(r Releaser) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.m[t.next] = r
	return t.next
}

// Get returns the entry for id.
func (t *Table) Get(id uint64) (Releaser, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.m[id]
	return r, ok
}

// Delete removes id and releases its proxy. It reports whether id was present.
func (t *Table) Delete(id uint64) bool {
	t.mu.Lock()
	r, ok := t.m[id]
	delete(t.m, id)
	t.mu.Unlock()
	if ok {
		r.Release()
	}
	return ok
}

// Len returns the number of stored proxies.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

// Close releases every remaining proxy.
func (t *Table) Close() {
	t.mu.Lock()
	m := t.m
	t.m = make(map[uint64]Releaser)
	t.mu.Unlock()
	for _, r := range m {
		r.Release()
	}
}

// Lookup returns the proxy stored under id if it wraps a T.
func Lookup[T any](t *Table, id uint64) (*Proxy[T], bool) {
	r, ok := t.Get(id)
	if !ok {
		return nil, false
	}
	p, ok := r.(*Proxy[T])
	return p, ok
}
