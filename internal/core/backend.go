package core

// EngineBackend is the interface that engine implementations (QuickJS, V8)
// must satisfy. The root hostbridge.Engine builds its host bridge on top of
// the backend's runtime and picks the backend by build tag.
type EngineBackend interface {
	// Runtime returns the engine's JavaScript runtime. It must only be used
	// from one goroutine at a time.
	Runtime() BridgeRuntime

	// Interrupt aborts the script currently running. It may be called from
	// any goroutine. The request stays in force, across nested evaluations
	// made by native functions, until ClearInterrupt.
	Interrupt()

	// ClearInterrupt withdraws an Interrupt before the next evaluation.
	ClearInterrupt()

	// Name identifies the engine ("quickjs" or "v8").
	Name() string

	Close()
}

// BridgeRuntime is a runtime that can also move binary data.
type BridgeRuntime interface {
	JSRuntime
	BinaryTransferer

	// Interrupted reports whether the backend has been interrupted and not
	// cleared since.
	Interrupted() bool
}
