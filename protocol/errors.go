package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFrame is returned by Decoder.Decode when the deadline passes
	// before a complete, valid frame is seen.
	ErrNoFrame = errors.New("no frame before deadline")

	// ErrUnexpectedType is returned by Decoder.Step when a TypedFixed frame
	// carries a type other than the layout's discriminator. It is not a
	// corruption event; the frame simply belongs to another message.
	ErrUnexpectedType = errors.New("unexpected message type")
)

// ChecksumError reports a frame whose trailing checksum did not match the
// bytes received. The decoder discards the frame and resynchronizes.
type ChecksumError struct {
	// Variant is the layout the frame was decoded under
	Variant Variant

	// Type is the frame type, if the variant carries one
	Type byte

	// Expected is the checksum computed over the received bytes
	Expected byte

	// Actual is the checksum byte that arrived on the wire
	Actual byte

	// Payload is the discarded payload
	Payload []byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%02X, got 0x%02X (%s, %d payload bytes discarded)",
		e.Expected, e.Actual, e.Variant, len(e.Payload))
}

// MessageError indicates a frame whose type or length does not match the
// message it is being parsed as.
type MessageError struct {
	// Message is the message being parsed, e.g. "current setting"
	Message string

	Type       byte
	Length     int
	WantType   byte
	WantLength int
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("invalid %s frame: got type 0x%02X length %d, expected type 0x%02X length %d",
		e.Message, e.Type, e.Length, e.WantType, e.WantLength)
}

// IsChecksumError returns true if err is or wraps a ChecksumError.
func IsChecksumError(err error) bool {
	var ce *ChecksumError
	return errors.As(err, &ce)
}

// messageName returns a human-readable name for a Typed-Variable message type.
func messageName(typ byte) string {
	switch typ {
	case TypeSetCurrent:
		return "set current"
	case TypeConfigWrite:
		return "config write"
	case TypeConfigRead:
		return "config read"
	case TypeSetStage:
		return "set stage"
	case TypeCurrentSetting:
		return "current setting"
	default:
		return fmt.Sprintf("unknown message type 0x%02X", typ)
	}
}
