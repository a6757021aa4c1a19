// Package host describes the JavaScript runtime as seen from native code:
// tagged values, the single-threaded execution context that constructs and
// inspects them, the exception primitive, and the loop that carries results
// of background work back onto the runtime's goroutine.
//
// Engine backends (QuickJS, V8) implement these interfaces. Native code never
// touches engine types directly.
package host

// Kind is the runtime tag of a host value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindArray
	KindObject
	KindBinary // ArrayBuffer or an ArrayBuffer view (Uint8Array, Buffer, ...)
	KindFunction
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBoolean:   "boolean",
	KindNumber:    "number",
	KindString:    "string",
	KindArray:     "array",
	KindObject:    "object",
	KindBinary:    "binary",
	KindFunction:  "function",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsNullish reports whether k is null or undefined.
func (k Kind) IsNullish() bool {
	return k == KindNull || k == KindUndefined
}

// ParseKind maps the tag names used by backend classifier scripts back to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// Value is a handle to a host runtime value.
//
// A Value is only usable on the engine goroutine, and only for the frame it
// was obtained in unless it was passed to Host.Persist.
type Value interface {
	Kind() Kind
}

// Field is one named property of an object built with Host.Object.
type Field struct {
	Name  string
	Value Value
}

// Host is the runtime execution context of one engine instance. Every method
// must be called on the engine goroutine.
//
// Inspection methods return an error only when the runtime itself raised an
// exception (a throwing getter, a revoked proxy, ...). Such errors are
// already signaled and must be returned unchanged.
type Host interface {
	Undefined() Value
	Null() Value
	Boolean(b bool) Value
	Number(f float64) Value
	String(s string) (Value, error)
	Array(elems []Value) (Value, error)
	Object(fields []Field) (Value, error)
	Binary(data []byte) (Value, error)

	// NewError constructs an Error object carrying msg. It does not throw.
	NewError(msg string) (Value, error)

	BooleanOf(v Value) (bool, error)
	NumberOf(v Value) (float64, error)
	StringOf(v Value) (string, error)
	ElementsOf(v Value) ([]Value, error)
	BinaryOf(v Value) ([]byte, error)
	Get(obj Value, key string) (Value, error)

	// Throw makes exc the pending exception of the current frame. It is the
	// raw single-shot primitive: calling it twice in one frame is fatal.
	// Native code reaches it only through safeerr.
	Throw(exc Value)

	// Frame identifies the boundary call currently executing. Zero means no
	// frame is active.
	Frame() uint64

	// Persist keeps v alive past the current frame until Release.
	Persist(v Value) Value
	Release(v Value)
}

// Completer delivers the outcome of background work. Complete may be called
// from any goroutine, exactly once; fn runs later on the engine goroutine
// inside its own boundary frame.
type Completer interface {
	Complete(fn func(c *Call) (Value, error))
}

// Loop is the engine's callback-delivery channel.
type Loop interface {
	// Schedule registers a pending delivery to callback. The callback is
	// persisted until it has been invoked.
	Schedule(callback Value) (Completer, error)

	// Go runs work off the engine goroutine.
	Go(work func())
}

// Call is a single boundary invocation.
type Call struct {
	Host Host
	Loop Loop
	Name string
	Args []Value
}

// Func is a native operation callable from the host runtime. Its result is
// always settled by safeerr.Finish in the backend.
type Func func(c *Call) (Value, error)
