package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

var byteOrder = binary.LittleEndian

func putFloat32(p []byte, v float32) []byte {
	byteOrder.PutUint32(p, math.Float32bits(v))
	return p
}

func float32At(p []byte) float32 {
	return math.Float32frombits(byteOrder.Uint32(p))
}

// Encode frames cmd as a Typed-Variable frame.
//
// Frame structure:
//
//	[0xAA][TYPE][LEN][PAYLOAD(LEN)][CHECKSUM]
//
// Returns the complete frame ready to send, or an error if validation fails.
func Encode(cmd Command) ([]byte, error) {
	if c, ok := cmd.(StageCommand); ok && c.Stage > MaxStage {
		return nil, fmt.Errorf("stage must be %d-%d, got %d", MinStage, MaxStage, c.Stage)
	}
	return SupplyLayout.Encode(cmd.MessageType(), cmd.Payload())
}

// BuildStageCmd constructs a Set Stage command frame.
//
// Frame structure:
//
//	[0xAA][0x04][0x01][STAGE][CHECKSUM]
func BuildStageCmd(stage uint8) ([]byte, error) {
	return Encode(StageCommand{Stage: stage})
}

// BuildCurrentCmd constructs a Set Current command frame.
//
// Frame structure:
//
//	[0xAA][0x00][0x04][CURRENT_MA(f32 LE)][CHECKSUM]
func BuildCurrentCmd(milliamps float32) ([]byte, error) {
	return Encode(CurrentCommand{Milliamps: milliamps})
}

// BuildConfigWriteCmd constructs a Config Write command frame.
//
// Frame structure:
//
//	[0xAA][0x02][0x05][INDEX][VALUE(f32 LE)][CHECKSUM]
func BuildConfigWriteCmd(index byte, value float32) ([]byte, error) {
	return Encode(ConfigWriteCommand{Index: index, Value: value})
}

// BuildConfigReadCmd constructs a Config Read command frame.
//
// Frame structure:
//
//	[0xAA][0x03][0x01][INDEX][CHECKSUM]
func BuildConfigReadCmd(index byte) ([]byte, error) {
	return Encode(ConfigReadRequest{Index: index})
}

// EncodeCurrentSetting frames the current source's Current Setting reply.
func EncodeCurrentSetting(milliamps float32) ([]byte, error) {
	return Encode(CurrentSetResponse{Milliamps: milliamps})
}

// EncodeConfigResponse frames the shunt monitor's Config Response.
//
// Frame structure:
//
//	[0xAA][0x04][INDEX][VALUE(f32 LE)][CHECKSUM]
func EncodeConfigResponse(index byte, value float32) ([]byte, error) {
	r := ConfigReadResponse{Index: index, Value: value}
	return ConfigResponseLayout.Encode(TypeConfigResponse, r.Payload())
}

// EncodeSample frames one measurement sample.
//
// Frame structure:
//
//	[0xAA][TIMESTAMP(u32 LE)][CURRENT_MA(f32 LE)][CHECKSUM]
func EncodeSample(s MeasurementSample) ([]byte, error) {
	return SampleLayout.Encode(0, s.Payload())
}
