package transport

import (
	"bytes"
	"sync"
	"time"
)

// defaultPollInterval is how long Buffer sleeps between checks for input.
const defaultPollInterval = time.Millisecond

// Responder produces the bytes a simulated device sends back after a write.
type Responder func(written []byte) []byte

// Buffer is an in-memory ByteTransport.
//
// Bytes queued with Feed (or produced by the Responder after a Write) are
// returned by ReadByteUntil in order. When the queue is empty, ReadByteUntil
// waits until the deadline and returns ErrTimeout, which mirrors a silent
// serial line.
//
// Buffer is safe for concurrent use so a test can feed bytes from another
// goroutine while a driver is blocked reading.
type Buffer struct {
	mu       sync.Mutex
	rx       []byte
	writes   [][]byte
	respond  Responder
	readErr  error
	writeErr error
	closed   bool
	poll     time.Duration
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{poll: defaultPollInterval}
}

// SetResponder installs fn to be called with every successful write. The
// returned bytes are appended to the receive queue.
func (b *Buffer) SetResponder(fn Responder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.respond = fn
}

// Feed appends bytes to the receive queue.
func (b *Buffer) Feed(p ...byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rx = append(b.rx, p...)
}

// SetReadError makes subsequent reads fail with err. Pass nil to clear.
func (b *Buffer) SetReadError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readErr = err
}

// SetWriteError makes subsequent writes fail with err. Pass nil to clear.
func (b *Buffer) SetWriteError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

// ReadByteUntil implements ByteTransport.
func (b *Buffer) ReadByteUntil(deadline time.Time) (byte, error) {
	for {
		b.mu.Lock()
		switch {
		case b.readErr != nil:
			err := b.readErr
			b.mu.Unlock()
			return 0, err
		case len(b.rx) > 0:
			c := b.rx[0]
			b.rx = b.rx[1:]
			b.mu.Unlock()
			return c, nil
		case b.closed:
			b.mu.Unlock()
			return 0, ErrClosed
		}
		b.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, ErrTimeout
		}
		time.Sleep(min(remaining, b.poll))
	}
}

// Write implements ByteTransport.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}
	if b.writeErr != nil {
		return 0, b.writeErr
	}

	b.writes = append(b.writes, bytes.Clone(p))
	if b.respond != nil {
		b.rx = append(b.rx, b.respond(p)...)
	}
	return len(p), nil
}

// ResetInputBuffer implements InputFlusher.
func (b *Buffer) ResetInputBuffer() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rx = nil
	return nil
}

// Close implements ByteTransport. Queued bytes remain readable.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Writes returns a copy of every write made so far.
func (b *Buffer) Writes() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.writes))
	for i, w := range b.writes {
		out[i] = bytes.Clone(w)
	}
	return out
}

// Pending returns the number of queued, unread bytes.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rx)
}
