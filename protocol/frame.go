package protocol

import "fmt"

// Variant identifies one of the three framing shapes.
type Variant int

const (
	// TypedVariable frames carry an explicit type and length:
	//
	//	[START][TYPE][LEN][PAYLOAD(LEN)][CHECKSUM]
	TypedVariable Variant = iota

	// FixedUntyped frames carry only a payload of a size known in advance:
	//
	//	[START][PAYLOAD(N)][CHECKSUM]
	FixedUntyped

	// TypedFixed frames carry a type that must equal an expected value and a
	// payload of a size known in advance:
	//
	//	[START][TYPE][PAYLOAD(N)][CHECKSUM]
	TypedFixed
)

func (v Variant) String() string {
	switch v {
	case TypedVariable:
		return "typed-variable"
	case FixedUntyped:
		return "fixed-untyped"
	case TypedFixed:
		return "typed-fixed"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Layout describes how frames on one link are shaped. Type and Length are
// only meaningful for the variants that fix them in advance.
type Layout struct {
	Variant Variant

	// Type is the expected discriminator for TypedFixed frames
	Type byte

	// Length is the fixed payload size for FixedUntyped and TypedFixed frames
	Length int
}

// Predefined layouts for the two devices.
var (
	// SupplyLayout frames every message to and from the current source,
	// and host-to-device commands on the shunt monitor link.
	SupplyLayout = Layout{Variant: TypedVariable}

	// SampleLayout frames the shunt monitor measurement stream.
	SampleLayout = Layout{Variant: FixedUntyped, Length: SamplePayloadSize}

	// ConfigResponseLayout frames the shunt monitor config read response.
	ConfigResponseLayout = Layout{
		Variant: TypedFixed,
		Type:    TypeConfigResponse,
		Length:  ConfigResponsePayloadSize,
	}
)

// HasType reports whether frames of this layout carry a type byte.
func (l Layout) HasType() bool {
	return l.Variant == TypedVariable || l.Variant == TypedFixed
}

// HasLength reports whether frames of this layout carry a length byte.
func (l Layout) HasLength() bool {
	return l.Variant == TypedVariable
}

// Validate checks that the layout is internally consistent.
func (l Layout) Validate() error {
	switch l.Variant {
	case TypedVariable:
		return nil
	case FixedUntyped, TypedFixed:
		if l.Length < 1 || l.Length > MaxPayloadSize {
			return fmt.Errorf("%s layout length %d out of range 1-%d", l.Variant, l.Length, MaxPayloadSize)
		}
		return nil
	default:
		return fmt.Errorf("unknown frame variant %d", int(l.Variant))
	}
}

// Encode frames payload under this layout. For TypedFixed layouts typ is
// ignored and the layout's own Type is written.
//
// Returns the complete frame ready to send, or an error if the payload
// does not fit the layout.
func (l Layout) Encode(typ byte, payload []byte) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	switch l.Variant {
	case TypedVariable:
		if len(payload) > MaxPayloadSize {
			return nil, fmt.Errorf("payload length %d exceeds maximum %d bytes", len(payload), MaxPayloadSize)
		}
		frame := make([]byte, 0, TypedVariableOverhead+len(payload))
		frame = append(frame, StartMarker, typ, byte(len(payload)))
		frame = append(frame, payload...)
		return append(frame, Sum(frame[1:])), nil

	case FixedUntyped:
		if len(payload) != l.Length {
			return nil, fmt.Errorf("payload must be exactly %d bytes, got %d", l.Length, len(payload))
		}
		frame := make([]byte, 0, FixedUntypedOverhead+len(payload))
		frame = append(frame, StartMarker)
		frame = append(frame, payload...)
		return append(frame, Sum(frame[1:])), nil

	default: // TypedFixed
		if len(payload) != l.Length {
			return nil, fmt.Errorf("payload must be exactly %d bytes, got %d", l.Length, len(payload))
		}
		frame := make([]byte, 0, TypedFixedOverhead+len(payload))
		frame = append(frame, StartMarker, l.Type)
		frame = append(frame, payload...)
		return append(frame, Sum(frame[1:])), nil
	}
}

// Frame is one checksum-validated unit produced by a Decoder.
type Frame struct {
	// Variant is the framing shape the frame was decoded with
	Variant Variant

	// Type is the message type; zero for FixedUntyped frames
	Type byte

	// Payload holds the frame payload. The slice is owned by the frame.
	Payload []byte
}

// Len returns the payload length.
func (f *Frame) Len() int {
	return len(f.Payload)
}

func (f *Frame) String() string {
	if f.Variant == FixedUntyped {
		return fmt.Sprintf("%s frame len=%d", f.Variant, len(f.Payload))
	}
	return fmt.Sprintf("%s frame type=0x%02X len=%d", f.Variant, f.Type, len(f.Payload))
}
