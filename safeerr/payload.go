package safeerr

import (
	"fmt"

	"github.com/cryguy/hostbridge/host"
)

// Payload is the native description of a failure that has not been signaled.
// The set of payloads is closed so that errors from many independent
// conversions compose into the one *Error type.
type Payload interface {
	// Render builds the runtime exception object for this failure.
	Render(h host.Host) (host.Value, error)
	String() string
	payload()
}

// Static is a fixed message.
type Static string

func (s Static) Render(h host.Host) (host.Value, error) { return h.NewError(string(s)) }
func (s Static) String() string                         { return string(s) }
func (Static) payload()                                 {}

// Lazy defers formatting until the message is needed.
type Lazy struct {
	format string
	args   []any
}

func (l Lazy) Render(h host.Host) (host.Value, error) { return h.NewError(l.String()) }

func (l Lazy) String() string {
	// fmt.Errorf understands %w; Sprintf would print it as a bad verb.
	return fmt.Errorf(l.format, l.args...).Error()
}

func (Lazy) payload() {}

// Mismatch is a runtime value of the wrong kind.
type Mismatch struct {
	Want string
	Got  host.Kind
}

func (m Mismatch) Render(h host.Host) (host.Value, error) { return h.NewError(m.String()) }

func (m Mismatch) String() string {
	return fmt.Sprintf("failed to downcast %s to %s", m.Got, m.Want)
}

func (Mismatch) payload() {}

// Cause is an owned Go error.
type Cause struct {
	Err error
}

func (c Cause) Render(h host.Host) (host.Value, error) { return h.NewError(c.String()) }
func (c Cause) String() string                         { return c.Err.Error() }
func (Cause) payload()                                 {}
