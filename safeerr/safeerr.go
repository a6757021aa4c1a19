// Package safeerr is the error model for calls that cross from the JavaScript
// runtime into native code.
//
// A failure is in one of two states:
//
//   - already signaled: the runtime's exception primitive has fired for the
//     current frame. The error carries a *Thrown proof and must travel
//     unchanged to the outermost boundary. Signaling again, or returning
//     normally as if nothing happened, leaves the runtime inconsistent.
//   - not yet signaled: the error carries a Payload describing the failure.
//     It may be inspected, downgraded to a message, combined, or dropped.
//     If it reaches the boundary it is rendered and signaled exactly once.
//
// Finish is the only place a native failure becomes a runtime exception.
//
//	v, thrown := safeerr.Finish(h, value, err)
//	if thrown != nil {
//		// the runtime has a pending exception; return to it immediately
//	}
package safeerr

import (
	"errors"
	"fmt"

	"github.com/cryguy/hostbridge/host"
)

// Class categorizes a failure.
type Class uint8

const (
	ClassOperation      Class = iota // reported by a native operation
	ClassValidation                  // malformed or out-of-range input from the runtime
	ClassRepresentation              // native value has no faithful runtime form
	ClassHost                        // exception raised by the runtime itself
)

func (c Class) String() string {
	switch c {
	case ClassOperation:
		return "operation"
	case ClassValidation:
		return "validation"
	case ClassRepresentation:
		return "representation"
	case ClassHost:
		return "host"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Thrown proves that Host.Throw was invoked in a specific frame.
// The zero value is not a valid proof.
type Thrown struct {
	frame uint64
	exc   host.Value
}

// Frame returns the boundary frame the exception is pending in.
func (t *Thrown) Frame() uint64 { return t.frame }

// Exception returns the value that was thrown.
func (t *Thrown) Exception() host.Value { return t.exc }

// check panics if t was not produced by Signal or belongs to another frame.
func (t *Thrown) check(h host.Host) {
	if t == nil || t.frame == 0 {
		panic("safeerr: Thrown was not produced by Signal")
	}
	if f := h.Frame(); f != t.frame {
		panic(fmt.Sprintf("safeerr: exception signaled in frame %d carried into frame %d", t.frame, f))
	}
}

// Error is the single error type of the boundary.
type Error struct {
	thrown  *Thrown
	payload Payload
	class   Class
	cause   error
}

func (e *Error) Error() string {
	if e.thrown != nil {
		return "exception already thrown"
	}
	return e.payload.String()
}

// Unwrap exposes the Go error this failure was built from, if any.
func (e *Error) Unwrap() error { return e.cause }

// Thrown returns the proof of signaling, or nil if the error is not yet signaled.
func (e *Error) Thrown() *Thrown { return e.thrown }

// Payload returns the native description, or nil if the error is already signaled.
func (e *Error) Payload() Payload { return e.payload }

// Class returns the failure category.
func (e *Error) Class() Class { return e.class }

// Downgrade returns the plain message of a not-yet-signaled error. It
// reports false for an already-signaled error, whose message lives in the
// runtime.
func (e *Error) Downgrade() (string, bool) {
	if e.thrown != nil {
		return "", false
	}
	return e.payload.String(), true
}

// New returns an operation failure with a fixed message.
func New(msg string) *Error {
	return &Error{payload: Static(msg), class: ClassOperation}
}

// Errorf returns an operation failure whose message is formatted only when
// rendered. Error arguments matched by %w are reachable with errors.Is/As.
func Errorf(format string, args ...any) *Error {
	return lazy(ClassOperation, format, args)
}

// Invalid returns a validation failure with a fixed message.
func Invalid(msg string) *Error {
	return &Error{payload: Static(msg), class: ClassValidation}
}

// Invalidf is the lazily formatted form of Invalid.
func Invalidf(format string, args ...any) *Error {
	return lazy(ClassValidation, format, args)
}

// Unrepresentablef reports a native value that has no faithful runtime form.
func Unrepresentablef(format string, args ...any) *Error {
	return lazy(ClassRepresentation, format, args)
}

// MismatchError reports a runtime value of the wrong kind.
func MismatchError(want string, got host.Kind) *Error {
	return &Error{payload: Mismatch{Want: want, Got: got}, class: ClassValidation}
}

func lazy(class Class, format string, args []any) *Error {
	return &Error{
		payload: Lazy{format: format, args: args},
		class:   class,
		cause:   wrapped(format, args),
	}
}

// wrapped approximates fmt's %w: when the format wraps, every error argument
// becomes a cause.
func wrapped(format string, args []any) error {
	if !containsWrapVerb(format) {
		return nil
	}
	var errs []error
	for _, a := range args {
		if err, ok := a.(error); ok {
			errs = append(errs, err)
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}

func containsWrapVerb(format string) bool {
	for i := 0; i+1 < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		if format[i+1] == '%' {
			i++
			continue
		}
		if format[i+1] == 'w' {
			return true
		}
	}
	return false
}

// From converts any Go error into an *Error. An *Error anywhere in err's
// chain that is already signaled is returned as is, so wrapping can never
// hide a pending exception.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if direct, ok := err.(*Error); ok {
			return direct
		}
		if e.thrown != nil {
			return e
		}
		return &Error{payload: Cause{Err: err}, class: e.class, cause: err}
	}
	return &Error{payload: Cause{Err: err}, class: ClassOperation, cause: err}
}

// Wrap is From for call sites that read better as a wrap.
func Wrap(err error) *Error { return From(err) }

// IsThrown reports whether err is already signaled.
func IsThrown(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.thrown != nil
}

// Recoverable reports whether err may be handled: it is non-nil and not
// already signaled. Fallback paths must check this before trying an
// alternative.
func Recoverable(err error) bool {
	return err != nil && !IsThrown(err)
}

// Combine reports two recoverable failures together. If either is already
// signaled it wins and is returned unchanged.
func Combine(first, second error) error {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	case IsThrown(first):
		return first
	case IsThrown(second):
		return second
	}
	a, b := From(first), From(second)
	return &Error{
		payload: Lazy{format: "%s; %s", args: []any{a.payload, b.payload}},
		class:   b.class,
		cause:   errors.Join(first, second),
	}
}

// Signal invokes the runtime's exception primitive with exc and returns the
// already-signaled error that proves it. Backends use it to surface
// exceptions the runtime raised while native code was inspecting values.
func Signal(h host.Host, exc host.Value) *Error {
	f := h.Frame()
	if f == 0 {
		panic("safeerr: Signal outside a boundary frame")
	}
	h.Throw(exc)
	return &Error{thrown: &Thrown{frame: f, exc: exc}, class: ClassHost}
}

// Finish settles a boundary call. On success it returns v (undefined if v is
// nil). An already-signaled err is passed through untouched. Any other err
// is rendered into an exception object and signaled exactly once.
func Finish(h host.Host, v host.Value, err error) (host.Value, *Thrown) {
	if err == nil {
		if v == nil {
			v = h.Undefined()
		}
		return v, nil
	}
	e := From(err)
	if e.thrown != nil {
		e.thrown.check(h)
		return nil, e.thrown
	}

	exc, rerr := e.payload.Render(h)
	if rerr != nil {
		if t := thrownOf(h, rerr); t != nil {
			return nil, t
		}
		// The runtime could not build an Error object; throw the bare message.
		if exc, rerr = h.String(e.payload.String()); rerr != nil {
			if t := thrownOf(h, rerr); t != nil {
				return nil, t
			}
			exc = h.Undefined()
		}
	}
	return nil, Signal(h, exc).thrown
}

// Render converts a not-yet-signaled error into an exception object without
// throwing it. Already-signaled errors cannot be rendered again.
func Render(h host.Host, err error) (host.Value, error) {
	e := From(err)
	if e.thrown != nil {
		return nil, e
	}
	return e.payload.Render(h)
}

func thrownOf(h host.Host, err error) *Thrown {
	var e *Error
	if errors.As(err, &e) && e.thrown != nil {
		e.thrown.check(h)
		return e.thrown
	}
	return nil
}
