// Package hosttest provides an in-memory host runtime for testing native
// operations and converters without an engine.
//
// Values are plain Go data. The host tracks frames, pending exceptions and
// persisted values the way a real engine backend does, and panics on the
// same programming errors (double throw, value use after its frame).
package hosttest

import (
	"fmt"
	"math"
	"sync"

	"github.com/cryguy/hostbridge/host"
)

// Value is an in-memory host value.
type Value struct {
	kind  host.Kind
	b     bool
	n     float64
	s     string
	elems []host.Value
	props map[string]host.Value
	order []string
	bin   []byte
	fn    func(args ...host.Value) (host.Value, error)

	// ThrowOnRead makes every inspection of this value raise a runtime
	// exception carrying the given message, like a throwing getter.
	ThrowOnRead string
}

func (v *Value) Kind() host.Kind { return v.kind }

// Error is the exception object built by NewError.
type Error struct {
	Value
	Message string
}

// Bool, Num, Str, Arr, Obj, Bin, Fn, Undef and Null build values directly
// for use as call arguments.
func Bool(b bool) *Value   { return &Value{kind: host.KindBoolean, b: b} }
func Num(n float64) *Value { return &Value{kind: host.KindNumber, n: n} }
func Str(s string) *Value  { return &Value{kind: host.KindString, s: s} }
func Bin(b []byte) *Value  { return &Value{kind: host.KindBinary, bin: append([]byte(nil), b...)} }
func Undef() *Value        { return &Value{kind: host.KindUndefined} }
func Null() *Value         { return &Value{kind: host.KindNull} }
func Arr(e ...host.Value) *Value {
	return &Value{kind: host.KindArray, elems: e}
}

// Obj builds an object from alternating key, value pairs.
func Obj(kv ...any) *Value {
	v := &Value{kind: host.KindObject, props: map[string]host.Value{}}
	for i := 0; i+1 < len(kv); i += 2 {
		k := kv[i].(string)
		v.props[k] = kv[i+1].(host.Value)
		v.order = append(v.order, k)
	}
	return v
}

// Fn builds a callable value.
func Fn(f func(args ...host.Value) (host.Value, error)) *Value {
	return &Value{kind: host.KindFunction, fn: f}
}

// Throwing returns a value whose inspection raises msg.
func Throwing(kind host.Kind, msg string) *Value {
	return &Value{kind: kind, ThrowOnRead: msg}
}

// Host is an in-memory host.Host. It is safe to use from one goroutine at
// a time, like a real engine.
type Host struct {
	frame     uint64
	nextFrame uint64
	pending   host.Value
	throws    int
	persisted map[host.Value]int

	// Signal is installed by tests that need runtime exceptions raised
	// during inspection; it is normally safeerr.Signal.
	Signal func(h host.Host, exc host.Value) error
}

var _ host.Host = (*Host)(nil)

// New returns an empty host with no active frame.
func New() *Host {
	return &Host{persisted: make(map[host.Value]int)}
}

// Enter opens a boundary frame and returns its id.
func (h *Host) Enter() uint64 {
	if h.frame != 0 {
		panic("hosttest: frame already active")
	}
	h.nextFrame++
	h.frame = h.nextFrame
	h.pending = nil
	return h.frame
}

// Leave closes the current frame and returns the pending exception, if any.
func (h *Host) Leave() host.Value {
	exc := h.pending
	h.frame = 0
	h.pending = nil
	return exc
}

// Pending returns the exception thrown in the current frame.
func (h *Host) Pending() host.Value { return h.pending }

// Throws counts Throw calls across all frames.
func (h *Host) Throws() int { return h.throws }

// Persisted reports how many live Persist references v has.
func (h *Host) Persisted(v host.Value) int { return h.persisted[v] }

func (h *Host) Frame() uint64 { return h.frame }

func (h *Host) Throw(exc host.Value) {
	if h.frame == 0 {
		panic("hosttest: Throw outside a frame")
	}
	if h.pending != nil {
		panic("hosttest: exception already pending in this frame")
	}
	h.pending = exc
	h.throws++
}

func (h *Host) Undefined() host.Value       { return Undef() }
func (h *Host) Null() host.Value            { return Null() }
func (h *Host) Boolean(b bool) host.Value   { return Bool(b) }
func (h *Host) Number(f float64) host.Value { return Num(f) }
func (h *Host) String(s string) (host.Value, error) {
	return Str(s), nil
}

func (h *Host) Array(elems []host.Value) (host.Value, error) {
	return Arr(append([]host.Value(nil), elems...)...), nil
}

func (h *Host) Object(fields []host.Field) (host.Value, error) {
	v := &Value{kind: host.KindObject, props: map[string]host.Value{}}
	for _, f := range fields {
		if _, dup := v.props[f.Name]; !dup {
			v.order = append(v.order, f.Name)
		}
		v.props[f.Name] = f.Value
	}
	return v, nil
}

func (h *Host) Binary(data []byte) (host.Value, error) {
	if len(data) > math.MaxUint32 {
		return nil, fmt.Errorf("hosttest: buffer too large")
	}
	return Bin(data), nil
}

func (h *Host) NewError(msg string) (host.Value, error) {
	return &Error{Value: Value{kind: host.KindObject}, Message: msg}, nil
}

func (h *Host) read(v host.Value) (*Value, error) {
	switch tv := v.(type) {
	case *Value:
		if tv.ThrowOnRead != "" {
			return nil, h.raise(tv.ThrowOnRead)
		}
		return tv, nil
	case *Error:
		return &tv.Value, nil
	default:
		panic(fmt.Sprintf("hosttest: foreign value %T", v))
	}
}

func (h *Host) raise(msg string) error {
	if h.Signal == nil {
		panic("hosttest: runtime exception raised but Host.Signal is not set")
	}
	exc, _ := h.NewError(msg)
	return h.Signal(h, exc)
}

func (h *Host) BooleanOf(v host.Value) (bool, error) {
	tv, err := h.read(v)
	if err != nil {
		return false, err
	}
	return tv.b, nil
}

func (h *Host) NumberOf(v host.Value) (float64, error) {
	tv, err := h.read(v)
	if err != nil {
		return 0, err
	}
	return tv.n, nil
}

func (h *Host) StringOf(v host.Value) (string, error) {
	tv, err := h.read(v)
	if err != nil {
		return "", err
	}
	return tv.s, nil
}

func (h *Host) ElementsOf(v host.Value) ([]host.Value, error) {
	tv, err := h.read(v)
	if err != nil {
		return nil, err
	}
	return append([]host.Value(nil), tv.elems...), nil
}

func (h *Host) BinaryOf(v host.Value) ([]byte, error) {
	tv, err := h.read(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), tv.bin...), nil
}

func (h *Host) Get(obj host.Value, key string) (host.Value, error) {
	tv, err := h.read(obj)
	if err != nil {
		return nil, err
	}
	if p, ok := tv.props[key]; ok {
		return p, nil
	}
	return Undef(), nil
}

func (h *Host) Persist(v host.Value) host.Value {
	h.persisted[v]++
	return v
}

func (h *Host) Release(v host.Value) {
	n := h.persisted[v]
	if n == 0 {
		panic("hosttest: Release of a value that is not persisted")
	}
	if n == 1 {
		delete(h.persisted, v)
		return
	}
	h.persisted[v] = n - 1
}

// Call invokes a function value built with Fn.
func (h *Host) Call(fn host.Value, args ...host.Value) (host.Value, error) {
	tv, err := h.read(fn)
	if err != nil {
		return nil, err
	}
	if tv.fn == nil {
		return nil, fmt.Errorf("hosttest: %s is not callable", tv.kind)
	}
	return tv.fn(args...)
}

// Message returns the message of an exception object or thrown string.
func Message(v host.Value) string {
	switch tv := v.(type) {
	case *Error:
		return tv.Message
	case *Value:
		return tv.s
	default:
		return ""
	}
}

// StrOf returns the string payload of v.
func StrOf(v host.Value) string { return v.(*Value).s }

// NumOf returns the number payload of v.
func NumOf(v host.Value) float64 { return v.(*Value).n }

// BoolOf returns the boolean payload of v.
func BoolOf(v host.Value) bool { return v.(*Value).b }

// BinOf returns the bytes of a binary value.
func BinOf(v host.Value) []byte { return v.(*Value).bin }

// ElemsOf returns the elements of an array value.
func ElemsOf(v host.Value) []host.Value { return v.(*Value).elems }

// PropOf returns a property of an object value.
func PropOf(v host.Value, key string) host.Value { return v.(*Value).props[key] }

// Keys returns object keys in insertion order.
func Keys(v host.Value) []string { return v.(*Value).order }

// Loop is an in-memory host.Loop. Work runs on real goroutines; deliveries
// queue until Drain runs them on the caller's goroutine.
type Loop struct {
	h       *Host
	mu      sync.Mutex
	ready   []delivery
	pending int
	wake    chan struct{}

	// Deliver invokes a callback with the settled result. The default
	// calls the callback built with Fn as callback(err) or callback(null, v).
	Deliver func(cb host.Value, v host.Value, exc host.Value)

	// Settle turns a completion result into either a value or a pending
	// exception. Tests install the same settling the engines use.
	Settle func(h host.Host, v host.Value, err error) (host.Value, bool)
}

type delivery struct {
	cb host.Value
	fn func(c *host.Call) (host.Value, error)
}

var _ host.Loop = (*Loop)(nil)

// NewLoop returns a loop delivering on h.
func NewLoop(h *Host) *Loop {
	return &Loop{h: h, wake: make(chan struct{}, 1)}
}

func (l *Loop) Go(work func()) { go work() }

func (l *Loop) Schedule(cb host.Value) (host.Completer, error) {
	l.h.Persist(cb)
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()
	return &completer{l: l, cb: cb}, nil
}

type completer struct {
	l    *Loop
	cb   host.Value
	once sync.Once
}

func (c *completer) Complete(fn func(c *host.Call) (host.Value, error)) {
	called := false
	c.once.Do(func() {
		called = true
		c.l.mu.Lock()
		c.l.ready = append(c.l.ready, delivery{cb: c.cb, fn: fn})
		c.l.mu.Unlock()
		select {
		case c.l.wake <- struct{}{}:
		default:
		}
	})
	if !called {
		panic("hosttest: Complete called twice")
	}
}

// Pending returns how many scheduled deliveries have not run yet.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// Drain runs deliveries until n have been delivered in total for this call,
// blocking for completions. It returns the number delivered.
func (l *Loop) Drain(n int) int {
	delivered := 0
	for delivered < n {
		l.mu.Lock()
		batch := l.ready
		l.ready = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			<-l.wake
			continue
		}
		for _, d := range batch {
			l.deliver(d)
			delivered++
		}
	}
	return delivered
}

func (l *Loop) deliver(d delivery) {
	l.h.Enter()
	v, err := d.fn(&host.Call{Host: l.h, Loop: l, Name: "complete"})
	var exc host.Value
	if l.Settle != nil {
		settled, ok := l.Settle(l.h, v, err)
		if ok {
			v = settled
		} else {
			v = nil
		}
	} else if err != nil {
		v = nil
		exc, _ = l.h.NewError(err.Error())
	}
	if p := l.h.Leave(); p != nil {
		exc = p
	}

	deliver := l.Deliver
	if deliver == nil {
		deliver = func(cb, v, exc host.Value) {
			if exc != nil {
				_, _ = l.h.Call(cb, exc)
				return
			}
			_, _ = l.h.Call(cb, Null(), v)
		}
	}
	deliver(d.cb, v, exc)
	l.h.Release(d.cb)

	l.mu.Lock()
	l.pending--
	l.mu.Unlock()
}
