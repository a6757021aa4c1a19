// Package bridge implements host.Host on top of a backend's core.JSRuntime,
// so the QuickJS and V8 backends share one handle table, one frame stack and
// one dispatcher.
//
// Native functions are reached through a single registered Go function. JS
// stores the call arguments in the handle table and passes their ids; the
// dispatcher opens a frame, runs the host.Func, settles the result with
// safeerr.Finish and answers with the id of the value to return or throw.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/internal/core"
	"github.com/cryguy/hostbridge/marshal"
	"github.com/cryguy/hostbridge/safeerr"
)

const (
	nativeName   = "__hb_native"
	completeName = "__hb.complete"
	binIn        = "__hb_bin_in"
	binOut       = "__hb_bin_out"
)

// ErrInterrupted is answered to native calls made after the backend was
// interrupted. The backend aborts the script at its next check.
var ErrInterrupted = errors.New("script interrupted")

type frame struct {
	id      uint64
	scope   []int64
	pending host.Value
}

type completion struct {
	fn func(c *host.Call) (host.Value, error)
}

// Bridge is the host.Host of one engine. Like the runtime under it, it must
// only be used from the engine goroutine.
type Bridge struct {
	rt  core.BridgeRuntime
	log *zap.Logger

	loop      host.Loop
	funcs     map[string]host.Func
	frames    []*frame
	nextFrame uint64
	persisted map[int64]int

	nextToken   uint64
	completions map[uint64]completion
}

var _ host.Host = (*Bridge)(nil)

// New installs the handle table and dispatcher into rt.
func New(rt core.BridgeRuntime) (*Bridge, error) {
	b := &Bridge{
		rt:          rt,
		log:         core.Logger().Named("bridge"),
		funcs:       make(map[string]host.Func),
		frames:      []*frame{{}},
		persisted:   make(map[int64]int),
		completions: make(map[uint64]completion),
	}
	if err := rt.RegisterFunc(nativeName, b.dispatch); err != nil {
		return nil, fmt.Errorf("registering %s: %w", nativeName, err)
	}
	if err := rt.Eval(preludeJS); err != nil {
		return nil, fmt.Errorf("evaluating bridge prelude: %w", err)
	}
	b.funcs[completeName] = b.complete
	return b, nil
}

// SetLoop sets the loop handed to native functions in host.Call.
func (b *Bridge) SetLoop(l host.Loop) { b.loop = l }

// Register exposes fn as the global function name.
func (b *Bridge) Register(name string, fn host.Func) error {
	if name == "" || strings.HasPrefix(name, "__hb") {
		return fmt.Errorf("invalid native function name %q", name)
	}
	b.funcs[name] = fn
	lit := jsString(name)
	return b.rt.Eval(fmt.Sprintf(
		"globalThis[%s] = function() { return __hb.invoke(%s, arguments); };", lit, lit))
}

// Names returns the registered native function names.
func (b *Bridge) Names() []string {
	out := make([]string, 0, len(b.funcs))
	for name := range b.funcs {
		if name != completeName {
			out = append(out, name)
		}
	}
	return out
}

// Handles reports how many non-constant values the handle table holds.
func (b *Bridge) Handles() (int, error) {
	return b.rt.EvalInt("__hb.size()")
}

// Persisted reports how many values are currently persisted.
func (b *Bridge) Persisted() int { return len(b.persisted) }

// dispatch is the Go side of __hb.invoke. The answer is the id of the
// result, prefixed with "!" when it must be thrown and "=" when JS must not
// delete it from the handle table.
func (b *Bridge) dispatch(name, args string) (string, error) {
	if b.rt.Interrupted() {
		return "", ErrInterrupted
	}
	fn, ok := b.funcs[name]
	if !ok {
		return "", fmt.Errorf("unknown native function %q", name)
	}

	f := b.enter()
	var keep int64
	defer func() { b.leave(f, keep) }()

	argv, err := b.parseTags(args)
	if err != nil {
		return "", err
	}

	c := &host.Call{Host: b, Loop: b.loop, Name: name, Args: argv}
	v, callErr := fn(c)
	out, thrown := safeerr.Finish(b, v, callErr)
	if thrown == nil && f.pending != nil {
		b.log.Warn("native function returned normally with a pending exception",
			zap.String("op", name))
	}

	prefix := ""
	if f.pending != nil {
		prefix = "!"
		out = f.pending
	}
	val := b.value(out)
	if val.id > 0 {
		if b.persisted[val.id] > 0 || val.frame != f.id {
			prefix += "="
		} else {
			keep = val.id
		}
	}
	return prefix + strconv.FormatInt(val.id, 10), nil
}

// complete runs a completion handed to Deliver inside the frame opened by
// the delivery trampoline.
func (b *Bridge) complete(c *host.Call) (host.Value, error) {
	token, err := marshal.Arg(c, 0, marshal.U64From)
	if err != nil {
		return nil, err
	}
	comp, ok := b.completions[token]
	if !ok {
		return nil, safeerr.Errorf("no pending completion %d", token)
	}
	delete(b.completions, token)
	return comp.fn(&host.Call{Host: b, Loop: b.loop, Name: c.Name})
}

// Deliver settles fn in a boundary frame and invokes cb with the outcome as
// cb(err) or cb(null, value). cb must be persisted. The returned error is an
// exception that escaped the callback.
func (b *Bridge) Deliver(cb host.Value, fn func(c *host.Call) (host.Value, error)) error {
	b.nextToken++
	token := b.nextToken
	b.completions[token] = completion{fn: fn}
	defer delete(b.completions, token)

	id := b.value(cb).id
	err := b.rt.Eval(fmt.Sprintf("__hb.deliver(%d, %d);", id, token))
	b.rt.RunMicrotasks()
	return err
}

func (b *Bridge) top() *frame { return b.frames[len(b.frames)-1] }

func (b *Bridge) enter() *frame {
	b.nextFrame++
	f := &frame{id: b.nextFrame}
	b.frames = append(b.frames, f)
	return f
}

// leave pops f and drops its handles, except keep and persisted values.
func (b *Bridge) leave(f *frame, keep int64) {
	if b.top() != f {
		panic(fmt.Sprintf("bridge: frame %d left out of order", f.id))
	}
	b.frames = b.frames[:len(b.frames)-1]

	var drop []string
	for _, id := range f.scope {
		if id != keep && b.persisted[id] == 0 {
			drop = append(drop, strconv.FormatInt(id, 10))
		}
	}
	if len(drop) == 0 {
		return
	}
	if err := b.rt.Eval(fmt.Sprintf("__hb.drop(%q);", strings.Join(drop, ","))); err != nil {
		b.log.Error("dropping frame handles", zap.Uint64("frame", f.id), zap.Error(err))
	}
}

func (b *Bridge) live(frameID uint64) bool {
	for _, f := range b.frames {
		if f.id == frameID {
			return true
		}
	}
	return false
}

func jsString(s string) string {
	lit, _ := json.Marshal(s)
	return string(lit)
}

// quote is jsString for text coming from native code, which must be valid
// UTF-8 to reach JS unchanged.
func quote(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", safeerr.Unrepresentablef("string %q is not valid UTF-8", s)
	}
	return jsString(s), nil
}
