// Package transport provides the byte links used to reach bench hardware.
//
// A ByteTransport delivers one byte at a time with a caller-supplied deadline
// and accepts whole frames on write. Two implementations are provided:
//   - Serial: a USB CDC serial port opened with go.bug.st/serial
//   - Buffer: an in-memory link for tests and simulations
package transport

import (
	"errors"
	"time"
)

// ErrTimeout is returned by ReadByteUntil when the deadline passes before a
// byte arrives. It reports Timeout() == true.
var ErrTimeout error = timeoutError{}

// ErrClosed is returned once the underlying link has been closed or has
// disappeared (for example, a USB device that was unplugged).
var ErrClosed = errors.New("transport: closed")

type timeoutError struct{}

func (timeoutError) Error() string   { return "transport: read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// ByteTransport is the byte-oriented link between the host and a device.
//
// Implementations are not required to be safe for concurrent use; a driver
// owns its transport exclusively for its lifetime.
type ByteTransport interface {
	// ReadByteUntil blocks until a byte is available or the deadline passes.
	// On deadline expiry it returns ErrTimeout.
	ReadByteUntil(deadline time.Time) (byte, error)

	// Write sends p in full.
	Write(p []byte) (int, error)

	// Close releases the link.
	Close() error
}

// InputFlusher is implemented by transports that can discard bytes already
// received but not yet read.
type InputFlusher interface {
	ResetInputBuffer() error
}

// ResetInput discards pending input if t supports it. It is a no-op otherwise.
func ResetInput(t ByteTransport) error {
	if f, ok := t.(InputFlusher); ok {
		return f.ResetInputBuffer()
	}
	return nil
}

// IsTimeout reports whether err is a read timeout.
func IsTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
