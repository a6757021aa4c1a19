//go:build v8

// Package v8engine is the V8 backend, selected with the v8 build tag.
package v8engine

import (
	v8 "github.com/tommie/v8go"

	"github.com/cryguy/hostbridge/internal/core"
)

// Backend owns one V8 isolate and its context.
type Backend struct {
	iso *v8.Isolate
	ctx *v8.Context
	rt  *v8Runtime
}

var _ core.EngineBackend = (*Backend)(nil)

// New creates an isolate whose heap is bounded by cfg.MemoryLimitMB.
func New(cfg core.EngineConfig) (*Backend, error) {
	var iso *v8.Isolate
	if cfg.MemoryLimitMB > 0 {
		heapSize := uint64(cfg.MemoryLimitMB) * 1024 * 1024
		iso = v8.NewIsolate(v8.WithResourceConstraints(heapSize/2, heapSize))
	} else {
		iso = v8.NewIsolate()
	}
	ctx := v8.NewContext(iso)
	return &Backend{iso: iso, ctx: ctx, rt: &v8Runtime{iso: iso, ctx: ctx}}, nil
}

func (b *Backend) Runtime() core.BridgeRuntime { return b.rt }

// Interrupt terminates the script currently running in the isolate.
func (b *Backend) Interrupt() {
	b.rt.interrupted.Store(true)
	b.iso.TerminateExecution()
}

func (b *Backend) ClearInterrupt() { b.rt.interrupted.Store(false) }

func (b *Backend) Name() string { return "v8" }

func (b *Backend) Close() {
	b.ctx.Close()
	b.iso.Dispose()
}
