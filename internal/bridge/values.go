package bridge

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/safeerr"
)

// value is a handle table entry owned by the frame it was created in.
type value struct {
	id    int64
	kind  host.Kind
	frame uint64
}

func (v *value) Kind() host.Kind { return v.kind }

var (
	undefinedValue = &value{id: -1, kind: host.KindUndefined}
	nullValue      = &value{id: -2, kind: host.KindNull}
	trueValue      = &value{id: -3, kind: host.KindBoolean}
	falseValue     = &value{id: -4, kind: host.KindBoolean}
)

// value checks that hv belongs to this bridge and is still reachable.
func (b *Bridge) value(hv host.Value) *value {
	v, ok := hv.(*value)
	if !ok {
		panic(fmt.Sprintf("bridge: foreign value %T", hv))
	}
	if v.id > 0 && b.persisted[v.id] == 0 && !b.live(v.frame) {
		panic(fmt.Sprintf("bridge: value %d used after frame %d ended", v.id, v.frame))
	}
	return v
}

// parseTag registers one "id:kind" answer from the prelude in the current frame.
func (b *Bridge) parseTag(s string) (*value, error) {
	idText, kindText, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("bridge: malformed handle %q", s)
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bridge: malformed handle %q: %w", s, err)
	}
	kind, ok := host.ParseKind(kindText)
	if !ok {
		return nil, fmt.Errorf("bridge: unknown kind in handle %q", s)
	}
	switch id {
	case -1:
		return undefinedValue, nil
	case -2:
		return nullValue, nil
	case -3:
		return trueValue, nil
	case -4:
		return falseValue, nil
	}
	f := b.top()
	f.scope = append(f.scope, id)
	return &value{id: id, kind: kind, frame: f.id}, nil
}

func (b *Bridge) parseTags(s string) ([]host.Value, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]host.Value, 0, len(parts))
	for _, p := range parts {
		v, err := b.parseTag(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// evalTags evaluates a prelude helper answering with tags, or with "!" and
// the tag of an exception it caught.
func (b *Bridge) evalTags(js string) ([]host.Value, error) {
	s, err := b.rt.EvalString(js)
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	if exc, ok := strings.CutPrefix(s, "!"); ok {
		v, err := b.parseTag(exc)
		if err != nil {
			return nil, err
		}
		return nil, safeerr.Signal(b, v)
	}
	return b.parseTags(s)
}

func (b *Bridge) evalTag(js string) (host.Value, error) {
	vs, err := b.evalTags(js)
	if err != nil {
		return nil, err
	}
	if len(vs) != 1 {
		return nil, fmt.Errorf("bridge: expected one handle, got %d", len(vs))
	}
	return vs[0], nil
}

func (b *Bridge) Undefined() host.Value { return undefinedValue }
func (b *Bridge) Null() host.Value      { return nullValue }

func (b *Bridge) Boolean(v bool) host.Value {
	if v {
		return trueValue
	}
	return falseValue
}

func (b *Bridge) Number(f float64) host.Value {
	var lit string
	switch {
	case math.IsNaN(f):
		lit = "NaN"
	case math.IsInf(f, 1):
		lit = "Infinity"
	case math.IsInf(f, -1):
		lit = "-Infinity"
	default:
		lit = strconv.FormatFloat(f, 'g', -1, 64)
	}
	v, err := b.evalTag("__hb.tag(" + lit + ")")
	if err != nil {
		b.log.Error("building number", zap.Float64("value", f), zap.Error(err))
		return undefinedValue
	}
	return v
}

func (b *Bridge) String(s string) (host.Value, error) {
	lit, err := quote(s)
	if err != nil {
		return nil, err
	}
	return b.evalTag("__hb.tag(" + lit + ")")
}

func (b *Bridge) Array(elems []host.Value) (host.Value, error) {
	ids := make([]string, len(elems))
	for i, e := range elems {
		ids[i] = strconv.FormatInt(b.value(e).id, 10)
	}
	return b.evalTag(fmt.Sprintf("__hb.arr(%q)", strings.Join(ids, ",")))
}

func (b *Bridge) Object(fields []host.Field) (host.Value, error) {
	var sb strings.Builder
	sb.WriteString("__hb.obj([")
	for i, f := range fields {
		name, err := quote(f.Name)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(name)
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatInt(b.value(f.Value).id, 10))
	}
	sb.WriteString("])")
	return b.evalTag(sb.String())
}

func (b *Bridge) Binary(data []byte) (host.Value, error) {
	if len(data) > math.MaxUint32 {
		return nil, safeerr.Unrepresentablef("buffer of %d bytes exceeds the runtime limit", len(data))
	}
	if err := b.rt.WriteBinaryToJS(binIn, data); err != nil {
		return nil, fmt.Errorf("bridge: writing binary: %w", err)
	}
	return b.evalTag(fmt.Sprintf("__hb.take(%q)", binIn))
}

func (b *Bridge) NewError(msg string) (host.Value, error) {
	return b.evalTag("__hb.tag(new Error(" + jsString(msg) + "))")
}

func (b *Bridge) BooleanOf(hv host.Value) (bool, error) {
	v := b.value(hv)
	switch v.id {
	case -3:
		return true, nil
	case -4:
		return false, nil
	}
	ok, err := b.rt.EvalBool(fmt.Sprintf("__hb.v[%d] === true", v.id))
	if err != nil {
		return false, fmt.Errorf("bridge: %w", err)
	}
	return ok, nil
}

func (b *Bridge) NumberOf(hv host.Value) (float64, error) {
	v := b.value(hv)
	s, err := b.rt.EvalString(fmt.Sprintf("__hb.num(%d)", v.id))
	if err != nil {
		return 0, fmt.Errorf("bridge: %w", err)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), nil
	}
	return f, nil
}

// StringOf reads the string as an ASCII JSON literal, so NUL and astral
// characters survive the runtime's C string conversion.
func (b *Bridge) StringOf(hv host.Value) (string, error) {
	v := b.value(hv)
	lit, err := b.rt.EvalString(fmt.Sprintf("__hb.str(%d)", v.id))
	if err != nil {
		return "", fmt.Errorf("bridge: %w", err)
	}
	if lit == "!" {
		return "", safeerr.Invalid("string contains an unpaired surrogate")
	}
	var s string
	if err := json.Unmarshal([]byte(lit), &s); err != nil {
		return "", fmt.Errorf("bridge: decoding string: %w", err)
	}
	return s, nil
}

func (b *Bridge) ElementsOf(hv host.Value) ([]host.Value, error) {
	return b.evalTags(fmt.Sprintf("__hb.elems(%d)", b.value(hv).id))
}

func (b *Bridge) BinaryOf(hv host.Value) ([]byte, error) {
	v := b.value(hv)
	n, err := b.rt.EvalInt(fmt.Sprintf("__hb.bin(%d, %q, %q)", v.id, b.rt.BinaryMode(), binOut))
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	if n == 0 {
		_ = b.rt.Eval(fmt.Sprintf("delete globalThis[%q];", binOut))
		return []byte{}, nil
	}
	data, err := b.rt.ReadBinaryFromJS(binOut)
	if err != nil {
		return nil, fmt.Errorf("bridge: reading binary: %w", err)
	}
	return data, nil
}

func (b *Bridge) Get(obj host.Value, key string) (host.Value, error) {
	lit, err := quote(key)
	if err != nil {
		return nil, err
	}
	return b.evalTag(fmt.Sprintf("__hb.get(%d, %s)", b.value(obj).id, lit))
}

func (b *Bridge) Throw(exc host.Value) {
	f := b.top()
	if f.id == 0 {
		panic("bridge: Throw outside a boundary frame")
	}
	if f.pending != nil {
		panic(fmt.Sprintf("bridge: exception already pending in frame %d", f.id))
	}
	f.pending = b.value(exc)
}

func (b *Bridge) Frame() uint64 { return b.top().id }

func (b *Bridge) Persist(hv host.Value) host.Value {
	v := b.value(hv)
	if v.id > 0 {
		b.persisted[v.id]++
	}
	return v
}

func (b *Bridge) Release(hv host.Value) {
	v, ok := hv.(*value)
	if !ok {
		panic(fmt.Sprintf("bridge: foreign value %T", hv))
	}
	if v.id < 0 {
		return
	}
	n := b.persisted[v.id]
	if n == 0 {
		panic(fmt.Sprintf("bridge: Release of value %d that is not persisted", v.id))
	}
	if n > 1 {
		b.persisted[v.id] = n - 1
		return
	}
	delete(b.persisted, v.id)
	if !b.live(v.frame) {
		if err := b.rt.Eval(fmt.Sprintf("__hb.drop(%q);", strconv.FormatInt(v.id, 10))); err != nil {
			b.log.Error("dropping released handle", zap.Int64("id", v.id), zap.Error(err))
		}
	}
}
