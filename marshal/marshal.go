// Package marshal converts between native Go values and host runtime values.
//
// A From[T] reads a host value into T and fails with a not-yet-signaled
// safeerr.Error when the value has the wrong kind, is malformed, or is out of
// range. An Into[T] builds the host value for T; it fails only when T has no
// faithful host form. Exceptions raised by the runtime during inspection are
// returned unchanged.
package marshal

import (
	"errors"
	"math"
	"time"

	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/safeerr"
)

// From converts a host value to T.
type From[T any] func(h host.Host, v host.Value) (T, error)

// Into converts T to a host value.
type Into[T any] func(h host.Host, v T) (host.Value, error)

// MaxSafeInteger is the largest integer a host number holds exactly.
const MaxSafeInteger = 1<<53 - 1

// Numeric rejection reasons, reachable with errors.Is.
var (
	ErrNaN        = errors.New("NaN")
	ErrInfinite   = errors.New("infinite")
	ErrNegative   = errors.New("negative number")
	ErrFractional = errors.New("fractional number")
	ErrRange      = errors.New("number exceeding limits")
)

func expect(v host.Value, k host.Kind) error {
	if v.Kind() != k {
		return safeerr.MismatchError(k.String(), v.Kind())
	}
	return nil
}

// Value passes the host value through.
func Value(_ host.Host, v host.Value) (host.Value, error) { return v, nil }

// ValueInto passes the host value through.
func ValueInto(h host.Host, v host.Value) (host.Value, error) {
	if v == nil {
		return h.Undefined(), nil
	}
	return v, nil
}

// Unit builds undefined for operations without a result.
func Unit(h host.Host, _ struct{}) (host.Value, error) { return h.Undefined(), nil }

func StringFrom(h host.Host, v host.Value) (string, error) {
	if err := expect(v, host.KindString); err != nil {
		return "", err
	}
	return h.StringOf(v)
}

func StringInto(h host.Host, s string) (host.Value, error) { return h.String(s) }

func BoolFrom(h host.Host, v host.Value) (bool, error) {
	if err := expect(v, host.KindBoolean); err != nil {
		return false, err
	}
	return h.BooleanOf(v)
}

func BoolInto(h host.Host, b bool) (host.Value, error) { return h.Boolean(b), nil }

func Float64From(h host.Host, v host.Value) (float64, error) {
	if err := expect(v, host.KindNumber); err != nil {
		return 0, err
	}
	return h.NumberOf(v)
}

func Float64Into(h host.Host, f float64) (host.Value, error) { return h.Number(f), nil }

// checkNonNegative applies the policy shared by counts and durations.
func checkNonNegative(f float64, what string) error {
	switch {
	case math.IsNaN(f):
		return safeerr.Invalidf("got %w for %s", ErrNaN, what)
	case math.IsInf(f, 0):
		return safeerr.Invalidf("got %w for %s: %v", ErrInfinite, what, f)
	case f < 0:
		return safeerr.Invalidf("got %w for %s: %v", ErrNegative, what, f)
	}
	return nil
}

// U64From accepts a non-negative integral number no greater than
// MaxSafeInteger.
func U64From(h host.Host, v host.Value) (uint64, error) {
	f, err := Float64From(h, v)
	if err != nil {
		return 0, err
	}
	if err := checkNonNegative(f, "u64"); err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, safeerr.Invalidf("got %w for u64: %v", ErrFractional, f)
	}
	if f > MaxSafeInteger {
		return 0, safeerr.Invalidf("got %w of u64: %.0f", ErrRange, f)
	}
	return uint64(f), nil
}

// U64Into fails for values above MaxSafeInteger rather than rounding them.
func U64Into(h host.Host, n uint64) (host.Value, error) {
	if n > MaxSafeInteger {
		return nil, safeerr.Unrepresentablef("number %d exceeded limits of f64: %w", n, ErrRange)
	}
	return h.Number(float64(n)), nil
}

func U32From(h host.Host, v host.Value) (uint32, error) {
	f, err := Float64From(h, v)
	if err != nil {
		return 0, err
	}
	if err := checkNonNegative(f, "u32"); err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, safeerr.Invalidf("got %w for u32: %v", ErrFractional, f)
	}
	if f > math.MaxUint32 {
		return 0, safeerr.Invalidf("got %w of u32: %.0f", ErrRange, f)
	}
	return uint32(f), nil
}

func U32Into(h host.Host, n uint32) (host.Value, error) { return h.Number(float64(n)), nil }

// DurationFrom reads a number of milliseconds. Fractions of a millisecond are
// kept down to the nanosecond.
func DurationFrom(h host.Host, v host.Value) (time.Duration, error) {
	ms, err := Float64From(h, v)
	if err != nil {
		return 0, err
	}
	if err := checkNonNegative(ms, "Duration"); err != nil {
		return 0, err
	}
	ns := ms * float64(time.Millisecond)
	if ns >= math.MaxInt64 {
		return 0, safeerr.Invalidf("got %w of Duration: %v ms", ErrRange, ms)
	}
	return time.Duration(ns), nil
}

// DurationInto returns the duration in milliseconds.
func DurationInto(h host.Host, d time.Duration) (host.Value, error) {
	return h.Number(float64(d) / float64(time.Millisecond)), nil
}
