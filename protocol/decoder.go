package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ByteReader is the read side of a byte link. ReadByteUntil blocks until a
// byte is available or deadline passes. A read that gives up at the deadline
// returns an error whose Timeout method reports true.
type ByteReader interface {
	ReadByteUntil(deadline time.Time) (byte, error)
}

type decodeState int

const (
	stateWaitStart decodeState = iota
	stateReadType
	stateReadLength
	stateReadPayload
	stateReadChecksum
)

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithMismatchHandler registers fn to observe every checksum mismatch the
// decoder recovers from. fn runs on the decoding goroutine.
func WithMismatchHandler(fn func(*ChecksumError)) DecoderOption {
	return func(d *Decoder) {
		d.onMismatch = fn
	}
}

// Decoder recovers frames of one Layout from a byte stream.
//
// A Decoder is a small state machine that is fed one byte at a time. It
// hunts for the start marker, collects the header and payload, and releases
// the frame only if the trailing checksum matches. On a mismatch it drops
// the frame and resumes hunting from the next byte.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	layout     Layout
	onMismatch func(*ChecksumError)

	state   decodeState
	typ     byte
	length  int
	payload []byte
	sum     Checksum
}

// NewDecoder creates a decoder for layout. It panics if the layout is
// invalid, as layouts are program constants.
func NewDecoder(layout Layout, opts ...DecoderOption) *Decoder {
	if err := layout.Validate(); err != nil {
		panic(fmt.Sprintf("protocol: %v", err))
	}
	d := &Decoder{layout: layout}
	for _, opt := range opts {
		opt(d)
	}
	d.Reset()
	return d
}

// Layout returns the layout the decoder was built for.
func (d *Decoder) Layout() Layout {
	return d.layout
}

// Reset discards any partial frame and returns to hunting for a start marker.
func (d *Decoder) Reset() {
	d.state = stateWaitStart
	d.typ = 0
	d.length = 0
	d.payload = nil
	d.sum.Reset()
}

// Step feeds one byte to the decoder.
//
// It returns a frame when b completes one with a valid checksum. It returns
// a *ChecksumError when b completes a frame whose checksum does not match,
// and ErrUnexpectedType when a TypedFixed frame carries the wrong type. In
// both error cases the decoder is already back to hunting for a start marker.
// Otherwise it returns (nil, nil).
func (d *Decoder) Step(b byte) (*Frame, error) {
	switch d.state {
	case stateWaitStart:
		if b == StartMarker {
			d.sum.Reset()
			d.payload = nil
			switch d.layout.Variant {
			case FixedUntyped:
				d.beginPayload(d.layout.Length)
			default:
				d.state = stateReadType
			}
		}
		return nil, nil

	case stateReadType:
		if d.layout.Variant == TypedFixed && b != d.layout.Type {
			d.Reset()
			return nil, ErrUnexpectedType
		}
		d.typ = b
		d.sum.Add(b)
		if d.layout.Variant == TypedFixed {
			d.beginPayload(d.layout.Length)
		} else {
			d.state = stateReadLength
		}
		return nil, nil

	case stateReadLength:
		d.sum.Add(b)
		d.beginPayload(int(b))
		return nil, nil

	case stateReadPayload:
		d.sum.Add(b)
		d.payload = append(d.payload, b)
		if len(d.payload) == d.length {
			d.state = stateReadChecksum
		}
		return nil, nil

	case stateReadChecksum:
		frame := &Frame{Variant: d.layout.Variant, Payload: d.payload}
		if d.layout.HasType() {
			frame.Type = d.typ
		}
		expected := d.sum.Sum()
		d.Reset()

		if expected != b {
			return nil, &ChecksumError{
				Variant:  frame.Variant,
				Type:     frame.Type,
				Expected: expected,
				Actual:   b,
				Payload:  frame.Payload,
			}
		}
		return frame, nil
	}

	d.Reset()
	return nil, nil
}

func (d *Decoder) beginPayload(n int) {
	d.length = n
	d.payload = make([]byte, 0, n)
	if n == 0 {
		d.state = stateReadChecksum
	} else {
		d.state = stateReadPayload
	}
}

// Decode reads bytes from r until it recovers one valid frame or the
// deadline passes.
//
// Each call starts from a clean state; bytes consumed by a previous call
// that did not complete a frame are not carried over. Checksum mismatches
// are reported to the mismatch handler and decoding continues. The effective
// deadline is the earlier of deadline and the context's deadline.
//
// Returns ErrNoFrame if the deadline passes, ctx.Err() if the context is
// cancelled, or a wrapped transport error if the link fails.
func (d *Decoder) Decode(ctx context.Context, r ByteReader, deadline time.Time) (*Frame, error) {
	d.Reset()

	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, ErrNoFrame
		}

		b, err := r.ReadByteUntil(deadline)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return nil, fmt.Errorf("read byte: %w", err)
		}

		frame, err := d.Step(b)
		switch {
		case frame != nil:
			return frame, nil
		case err == nil, errors.Is(err, ErrUnexpectedType):
			continue
		default:
			var ce *ChecksumError
			if errors.As(err, &ce) && d.onMismatch != nil {
				d.onMismatch(ce)
			}
		}
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
