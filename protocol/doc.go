// Package protocol implements the framed serial protocol shared by the
// programmable current source and the shunt monitor.
//
// This package provides functions to build command frames, parse response
// frames, and a byte-at-a-time Decoder that recovers frames from a noisy
// stream.
//
// # Protocol Overview
//
// Every frame begins with the start marker 0xAA and ends with an 8-bit
// additive checksum over every byte after the marker through the last
// payload byte. Three frame shapes are in use:
//
//	Typed-Variable: [0xAA][TYPE][LEN][PAYLOAD(LEN)][CHECKSUM]
//	Fixed-Untyped:  [0xAA][PAYLOAD(N)][CHECKSUM]
//	Typed-Fixed:    [0xAA][TYPE][PAYLOAD(N)][CHECKSUM]
//
// All multi-byte numbers are little-endian; floating-point values are
// IEEE-754 single precision.
//
// # Command Builders
//
// Use the Build* functions to create command frames:
//
//	frame, err := protocol.BuildStageCmd(7)      // AA 04 01 07 0C
//	frame, err := protocol.BuildCurrentCmd(1.0)  // AA 00 04 00 00 80 3F C3
//
// # Decoding
//
// A Decoder is bound to one Layout. Decode pulls bytes from a ByteReader
// until a frame with a valid checksum appears or the deadline passes:
//
//	dec := protocol.NewDecoder(protocol.SampleLayout)
//	frame, err := dec.Decode(ctx, port, time.Now().Add(100*time.Millisecond))
//	if errors.Is(err, protocol.ErrNoFrame) {
//	    // nothing valid arrived in time
//	}
//	sample, err := protocol.ParseSample(frame)
//
// # Limitations
//
// The Fixed-Untyped shape has no length or type to cross-check, so a 0xAA
// byte inside a payload can be mistaken for a start marker. The checksum
// rejects most such false starts and the decoder resynchronizes, but a
// false start whose bytes happen to sum correctly is indistinguishable from
// a real frame.
package protocol
