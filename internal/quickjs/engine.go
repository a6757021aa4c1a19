//go:build !v8

// Package quickjs is the default engine backend, built on the pure-Go
// modernc.org/quickjs port.
package quickjs

import (
	"fmt"

	"go.uber.org/zap"
	"modernc.org/quickjs"

	"github.com/cryguy/hostbridge/internal/core"
)

// Backend owns one QuickJS VM.
type Backend struct {
	vm *quickjs.VM
	rt *qjsRuntime
}

var _ core.EngineBackend = (*Backend)(nil)

// New creates a VM with the configured memory limit and binary transfer
// ready.
func New(cfg core.EngineConfig) (*Backend, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}
	if cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(cfg.MemoryLimitMB) * 1024 * 1024)
	}

	rt := &qjsRuntime{vm: vm}
	if err := rt.initBinaryTransfer(); err != nil {
		vm.Close()
		return nil, fmt.Errorf("binary transfer setup: %w", err)
	}
	if rt.useFallback {
		core.Logger().Warn("quickjs: C API unavailable, using chunked binary transfer",
			zap.String("engine", "quickjs"))
	}
	return &Backend{vm: vm, rt: rt}, nil
}

func (b *Backend) Runtime() core.BridgeRuntime { return b.rt }

// Interrupt aborts the script currently running in the VM. The request
// stays in force until ClearInterrupt.
func (b *Backend) Interrupt() { b.rt.interrupt() }

func (b *Backend) ClearInterrupt() { b.rt.interrupted.Store(false) }

func (b *Backend) Name() string { return "quickjs" }

func (b *Backend) Close() { b.vm.Close() }
