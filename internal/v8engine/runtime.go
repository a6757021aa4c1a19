//go:build v8

package v8engine

import (
	"fmt"
	"sync/atomic"

	"github.com/cryguy/hostbridge/internal/core"
	v8 "github.com/tommie/v8go"
)

// v8Runtime implements core.BridgeRuntime on one V8 context.
type v8Runtime struct {
	iso         *v8.Isolate
	ctx         *v8.Context
	interrupted atomic.Bool
}

var _ core.BridgeRuntime = (*v8Runtime)(nil)

// stagingName holds the SharedArrayBuffer WriteBinaryToJS fills from Go.
const stagingName = "__hb_v8_staging"

func (r *v8Runtime) run(js string) (*v8.Value, error) {
	return r.ctx.RunScript(js, "hostbridge.js")
}

func (r *v8Runtime) Eval(js string) error {
	_, err := r.run(js)
	return err
}

func (r *v8Runtime) EvalString(js string) (string, error) {
	val, err := r.run(js)
	if err != nil || val == nil {
		return "", err
	}
	return val.String(), nil
}

func (r *v8Runtime) EvalBool(js string) (bool, error) {
	val, err := r.run(js)
	if err != nil || val == nil {
		return false, err
	}
	return val.Boolean(), nil
}

func (r *v8Runtime) EvalInt(js string) (int, error) {
	val, err := r.run(js)
	if err != nil || val == nil {
		return 0, err
	}
	return int(val.Integer()), nil
}

// RegisterFunc installs fn as a global function. Both arguments are read
// as strings; an error from fn is thrown as a string exception.
func (r *v8Runtime) RegisterFunc(name string, fn core.NativeFunc) error {
	tmpl := v8.NewFunctionTemplate(r.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 2 {
			r.throw(fmt.Sprintf("%s requires 2 arguments, got %d", name, len(args)))
			return nil
		}
		out, err := fn(args[0].String(), args[1].String())
		if err != nil {
			r.throw(fmt.Sprintf("calling %s: %s", name, err))
			return nil
		}
		val, err := v8.NewValue(r.iso, out)
		if err != nil {
			r.throw(fmt.Sprintf("calling %s: %s", name, err))
			return nil
		}
		return val
	})
	return r.ctx.Global().Set(name, tmpl.GetFunction(r.ctx))
}

func (r *v8Runtime) throw(msg string) {
	exc, err := v8.NewValue(r.iso, msg)
	if err != nil {
		return
	}
	r.iso.ThrowException(exc)
}

// Interrupted reports whether the isolate was terminated since the last
// clear. V8 keeps refusing nested scripts until the outer one unwinds.
func (r *v8Runtime) Interrupted() bool { return r.interrupted.Load() }

func (r *v8Runtime) RunMicrotasks() { r.ctx.PerformMicrotaskCheckpoint() }

// BinaryMode returns "sab": the bridge stages outgoing bytes in a
// SharedArrayBuffer whose contents Go can read directly.
func (r *v8Runtime) BinaryMode() string { return "sab" }

// ReadBinaryFromJS copies the SharedArrayBuffer at globalName and deletes
// the global.
func (r *v8Runtime) ReadBinaryFromJS(globalName string) ([]byte, error) {
	defer func() { _ = r.Eval(fmt.Sprintf("delete globalThis[%q];", globalName)) }()

	val, err := r.ctx.Global().Get(globalName)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", globalName, err)
	}
	contents, release, err := val.SharedArrayBufferGetContents()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", globalName, err)
	}
	defer release()
	return append([]byte(nil), contents...), nil
}

// WriteBinaryToJS fills a staging SharedArrayBuffer from Go and leaves a
// plain ArrayBuffer copy at globalName.
func (r *v8Runtime) WriteBinaryToJS(globalName string, data []byte) error {
	if err := r.Eval(fmt.Sprintf("globalThis[%q] = new SharedArrayBuffer(%d);", stagingName, len(data))); err != nil {
		return fmt.Errorf("allocating staging buffer: %w", err)
	}
	if len(data) > 0 {
		if err := r.fillStaging(data); err != nil {
			_ = r.Eval(fmt.Sprintf("delete globalThis[%q];", stagingName))
			return err
		}
	}
	err := r.Eval(fmt.Sprintf(`(function() {
		var s = globalThis[%q];
		delete globalThis[%q];
		var b = new ArrayBuffer(s.byteLength);
		new Uint8Array(b).set(new Uint8Array(s));
		globalThis[%q] = b;
	})()`, stagingName, stagingName, globalName))
	if err != nil {
		return fmt.Errorf("copying staging buffer: %w", err)
	}
	return nil
}

func (r *v8Runtime) fillStaging(data []byte) error {
	val, err := r.ctx.Global().Get(stagingName)
	if err != nil {
		return fmt.Errorf("reading staging buffer: %w", err)
	}
	contents, release, err := val.SharedArrayBufferGetContents()
	if err != nil {
		return fmt.Errorf("reading staging buffer: %w", err)
	}
	copy(contents, data)
	release()
	return nil
}
