package marshal

import (
	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/safeerr"
)

// Optional maps null and undefined to nil and delegates anything else.
func Optional[T any](from From[T]) From[*T] {
	return func(h host.Host, v host.Value) (*T, error) {
		if v.Kind().IsNullish() {
			return nil, nil
		}
		t, err := from(h, v)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
}

// OptionalInto maps nil to null.
func OptionalInto[T any](into Into[T]) Into[*T] {
	return func(h host.Host, v *T) (host.Value, error) {
		if v == nil {
			return h.Null(), nil
		}
		return into(h, *v)
	}
}

// Slice converts each element of an array in order. The first failing
// element aborts the conversion with its error.
func Slice[T any](from From[T]) From[[]T] {
	return func(h host.Host, v host.Value) ([]T, error) {
		if err := expect(v, host.KindArray); err != nil {
			return nil, err
		}
		elems, err := h.ElementsOf(v)
		if err != nil {
			return nil, err
		}
		out := make([]T, 0, len(elems))
		for _, e := range elems {
			t, err := from(h, e)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	}
}

func SliceInto[T any](into Into[T]) Into[[]T] {
	return func(h host.Host, vs []T) (host.Value, error) {
		elems := make([]host.Value, 0, len(vs))
		for _, v := range vs {
			e, err := into(h, v)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return h.Array(elems)
	}
}

// Tuple is a heterogeneous pair.
type Tuple[A, B any] struct {
	First  A
	Second B
}

// Pair builds a two-element array [First, Second].
func Pair[A, B any](a Into[A], b Into[B]) Into[Tuple[A, B]] {
	return func(h host.Host, t Tuple[A, B]) (host.Value, error) {
		first, err := a(h, t.First)
		if err != nil {
			return nil, err
		}
		second, err := b(h, t.Second)
		if err != nil {
			return nil, err
		}
		return h.Array([]host.Value{first, second})
	}
}

// PairFrom reads a two-element array.
func PairFrom[A, B any](a From[A], b From[B]) From[Tuple[A, B]] {
	return func(h host.Host, v host.Value) (Tuple[A, B], error) {
		var t Tuple[A, B]
		if err := expect(v, host.KindArray); err != nil {
			return t, err
		}
		elems, err := h.ElementsOf(v)
		if err != nil {
			return t, err
		}
		if len(elems) != 2 {
			return t, safeerr.Invalidf("expected array of 2 elements, got %d", len(elems))
		}
		if t.First, err = a(h, elems[0]); err != nil {
			return t, err
		}
		if t.Second, err = b(h, elems[1]); err != nil {
			return t, err
		}
		return t, nil
	}
}

// FieldFunc builds one property of an object.
type FieldFunc func(h host.Host) (host.Field, error)

// Field converts v for the property name.
func Field[T any](name string, v T, into Into[T]) FieldFunc {
	return func(h host.Host) (host.Field, error) {
		hv, err := into(h, v)
		if err != nil {
			return host.Field{}, err
		}
		return host.Field{Name: name, Value: hv}, nil
	}
}

// Object builds a plain object. The first failing field aborts.
func Object(h host.Host, fields ...FieldFunc) (host.Value, error) {
	out := make([]host.Field, 0, len(fields))
	for _, f := range fields {
		hf, err := f(h)
		if err != nil {
			return nil, err
		}
		out = append(out, hf)
	}
	return h.Object(out)
}

// Get reads and converts the property key of an object.
func Get[T any](h host.Host, obj host.Value, key string, from From[T]) (T, error) {
	var zero T
	if err := expect(obj, host.KindObject); err != nil {
		return zero, err
	}
	v, err := h.Get(obj, key)
	if err != nil {
		return zero, err
	}
	return from(h, v)
}
