package hostbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/internal/bridge"
	"github.com/cryguy/hostbridge/internal/core"
	"github.com/cryguy/hostbridge/internal/eventloop"
	"github.com/cryguy/hostbridge/internal/script"
	"github.com/cryguy/hostbridge/proxy"
	"github.com/cryguy/hostbridge/task"
)

// ErrTimeout is returned when a script or callback runs past the
// configured execution timeout.
var ErrTimeout = errors.New("execution timed out")

// ErrClosed is returned by methods called after Close.
var ErrClosed = errors.New("engine closed")

// Engine is one JavaScript runtime with native functions installed. Its
// methods are safe for concurrent use; JavaScript itself runs on one
// goroutine at a time.
type Engine struct {
	mu      sync.Mutex
	cfg     core.EngineConfig
	backend core.EngineBackend
	rt      core.BridgeRuntime
	bridge  *bridge.Bridge
	loop    *eventloop.EventLoop
	exec    task.Executor
	proxies *proxy.Table
	log     *zap.Logger
	closed  bool
}

// Option configures NewEngine.
type Option func(*options)

type options struct {
	cfg    core.EngineConfig
	logger *zap.Logger
}

// WithConfig replaces the default configuration.
func WithConfig(cfg EngineConfig) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger installs l as the process-wide logger used by the engine and
// its packages.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewEngine creates an engine on the backend selected at build time.
func NewEngine(opts ...Option) (*Engine, error) {
	o := options{cfg: core.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		core.SetLogger(o.logger)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	backend, err := newBackend(o.cfg)
	if err != nil {
		return nil, err
	}
	rt := backend.Runtime()
	br, err := bridge.New(rt)
	if err != nil {
		backend.Close()
		return nil, err
	}

	var exec task.Executor
	switch o.cfg.TaskMode {
	case core.TaskModeSpawn:
		exec = &task.Spawn{}
	default:
		exec = task.NewPool(o.cfg.TaskWorkers)
	}
	loop := eventloop.New(br, exec)
	br.SetLoop(loop)

	e := &Engine{
		cfg:     o.cfg,
		backend: backend,
		rt:      rt,
		bridge:  br,
		loop:    loop,
		exec:    exec,
		proxies: proxy.NewTable(),
		log:     core.Logger().Named("engine"),
	}
	e.log.Debug("engine ready",
		zap.String("backend", backend.Name()),
		zap.String("task_mode", string(o.cfg.TaskMode)),
		zap.Int("workers", o.cfg.TaskWorkers))
	return e, nil
}

// Backend names the engine backend ("quickjs" or "v8").
func (e *Engine) Backend() string { return e.backend.Name() }

// Config returns the configuration the engine was built with.
func (e *Engine) Config() EngineConfig { return e.cfg }

// Proxies is the table shared resources are handed to JavaScript through.
// It is closed with the engine.
func (e *Engine) Proxies() *proxy.Table { return e.proxies }

// Register exposes fn as a global JavaScript function.
func (e *Engine) Register(name string, fn host.Func) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if err := e.bridge.Register(name, fn); err != nil {
		return fmt.Errorf("registering %s: %w", name, err)
	}
	return nil
}

// Functions lists the registered native function names.
func (e *Engine) Functions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bridge.Names()
}

// Eval runs src as a classic script and returns its completion value as a
// string. Pending microtasks run before it returns; task callbacks do not.
func (e *Engine) Eval(src string) (string, error) {
	return e.EvalContext(context.Background(), src)
}

// EvalContext is Eval with cancellation: a done ctx interrupts the script.
func (e *Engine) EvalContext(ctx context.Context, src string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", ErrClosed
	}
	var out string
	err := e.guard(ctx, func() (err error) {
		out, err = e.rt.EvalString(src)
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// RunScript prepares src (TypeScript is transformed by name), evaluates it
// and waits for every task it scheduled.
func (e *Engine) RunScript(ctx context.Context, name, src string) error {
	prepared, err := script.Prepare(name, src, script.Options{})
	if err != nil {
		return err
	}
	if _, err := e.EvalContext(ctx, prepared); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return e.Wait(ctx)
}

// Wait delivers task results until none is pending, the drain timeout
// passes or ctx is done. Exceptions thrown by callbacks are returned as
// *UncaughtError values joined with any drain error.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Drain())
	defer cancel()

	uncaught, err := e.loop.Drain(ctx, deliverer{e: e, ctx: ctx})
	if err != nil {
		uncaught = append(uncaught, err)
	}
	return errors.Join(uncaught...)
}

// Pending returns the number of task callbacks not yet delivered.
func (e *Engine) Pending() int { return e.loop.Pending() }

// Close settles every task callback still pending, then releases shared
// resources and the runtime. Callbacks whose task already finished receive
// its result; the others receive an ErrClosed error, so each callback still
// runs exactly once. Task bodies still running finish in the background and
// their results are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	uncaught := e.loop.Shutdown(deliverer{e: e, ctx: context.Background()}, ErrClosed)
	for _, err := range uncaught {
		e.log.Warn("callback threw during shutdown", zap.Error(err))
	}
	e.proxies.Close()
	e.backend.Close()
}

// guard runs f under the execution timeout. The watchdog and ctx both
// interrupt the running script. Microtasks are pumped afterwards.
func (e *Engine) guard(ctx context.Context, f func() error) error {
	timeout := e.cfg.Timeout()
	e.backend.ClearInterrupt()
	var timedOut atomic.Bool
	watchdog := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		e.backend.Interrupt()
	})
	stop := context.AfterFunc(ctx, e.backend.Interrupt)

	err := f()
	watchdog.Stop()
	stop()
	if err == nil {
		e.rt.RunMicrotasks()
	}

	switch {
	case err == nil:
		return nil
	case timedOut.Load():
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case ctx.Err() != nil:
		return fmt.Errorf("script interrupted: %w", ctx.Err())
	default:
		return err
	}
}

// deliverer runs each delivery under the same watchdog as Eval.
type deliverer struct {
	e   *Engine
	ctx context.Context
}

func (d deliverer) Deliver(cb host.Value, fn func(c *host.Call) (host.Value, error)) error {
	return d.e.guard(d.ctx, func() error { return d.e.bridge.Deliver(cb, fn) })
}
