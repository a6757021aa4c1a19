package marshal

import (
	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/safeerr"
)

// Len returns the number of arguments passed to the call.
func Len(c *host.Call) int { return len(c.Args) }

// Arg converts the argument at position i. A missing argument is a
// recoverable error.
func Arg[T any](c *host.Call, i int, from From[T]) (T, error) {
	if i < 0 || i >= len(c.Args) {
		var zero T
		return zero, safeerr.Invalidf("%s: missing argument %d (got %d)", c.Name, i, len(c.Args))
	}
	return from(c.Host, c.Args[i])
}

// Callback returns the function-typed argument at position i.
func Callback(c *host.Call, i int) (host.Value, error) {
	return Arg(c, i, func(_ host.Host, v host.Value) (host.Value, error) {
		if err := expect(v, host.KindFunction); err != nil {
			return nil, err
		}
		return v, nil
	})
}

// Finish converts a native result and settles the boundary call through
// safeerr.Finish.
func Finish[T any](h host.Host, v T, err error, into Into[T]) (host.Value, *safeerr.Thrown) {
	if err != nil {
		return safeerr.Finish(h, nil, err)
	}
	hv, err := into(h, v)
	return safeerr.Finish(h, hv, err)
}

// Bind adapts a typed operation into a host.Func.
func Bind[T any](f func(c *host.Call) (T, error), into Into[T]) host.Func {
	return func(c *host.Call) (host.Value, error) {
		v, err := f(c)
		if err != nil {
			return nil, err
		}
		return into(c.Host, v)
	}
}
