package protocol

import "fmt"

// ParseCurrentSetting parses the current source's Current Setting reply.
//
// Frame data format (CurrentSettingPayloadSize bytes):
//
//	[CURRENT_MA(f32 LE)]
func ParseCurrentSetting(f *Frame) (*CurrentSetResponse, error) {
	if err := expect(f, "current setting", TypedVariable, TypeCurrentSetting, CurrentSettingPayloadSize); err != nil {
		return nil, err
	}
	return &CurrentSetResponse{Milliamps: float32At(f.Payload)}, nil
}

// ParseConfigResponse parses a shunt monitor Config Response.
//
// Frame data format (ConfigResponsePayloadSize bytes):
//
//	[INDEX][VALUE(f32 LE)]
func ParseConfigResponse(f *Frame) (*ConfigReadResponse, error) {
	if err := expect(f, "config response", TypedFixed, TypeConfigResponse, ConfigResponsePayloadSize); err != nil {
		return nil, err
	}
	return &ConfigReadResponse{
		Index: f.Payload[0],
		Value: float32At(f.Payload[1:]),
	}, nil
}

// ParseSample parses one measurement from the shunt monitor stream.
//
// Frame data format (SamplePayloadSize bytes):
//
//	[TIMESTAMP(u32 LE)][CURRENT_MA(f32 LE)]
func ParseSample(f *Frame) (*MeasurementSample, error) {
	if err := expect(f, "sample", FixedUntyped, 0, SamplePayloadSize); err != nil {
		return nil, err
	}
	return &MeasurementSample{
		Timestamp: byteOrder.Uint32(f.Payload[0:4]),
		CurrentMA: float32At(f.Payload[4:8]),
	}, nil
}

// ParseCommand interprets a host command frame. It is the device side of
// Encode and is used by simulators and bench fixtures.
func ParseCommand(f *Frame) (Command, error) {
	if f.Variant != TypedVariable {
		return nil, fmt.Errorf("commands use %s frames, got %s", TypedVariable, f.Variant)
	}

	switch f.Type {
	case TypeSetStage:
		if err := expect(f, messageName(TypeSetStage), TypedVariable, TypeSetStage, StagePayloadSize); err != nil {
			return nil, err
		}
		if f.Payload[0] > MaxStage {
			return nil, fmt.Errorf("stage must be %d-%d, got %d", MinStage, MaxStage, f.Payload[0])
		}
		return StageCommand{Stage: f.Payload[0]}, nil

	case TypeSetCurrent:
		if err := expect(f, messageName(TypeSetCurrent), TypedVariable, TypeSetCurrent, CurrentPayloadSize); err != nil {
			return nil, err
		}
		return CurrentCommand{Milliamps: float32At(f.Payload)}, nil

	case TypeConfigWrite:
		if err := expect(f, messageName(TypeConfigWrite), TypedVariable, TypeConfigWrite, ConfigWritePayloadSize); err != nil {
			return nil, err
		}
		return ConfigWriteCommand{Index: f.Payload[0], Value: float32At(f.Payload[1:])}, nil

	case TypeConfigRead:
		if err := expect(f, messageName(TypeConfigRead), TypedVariable, TypeConfigRead, ConfigReadPayloadSize); err != nil {
			return nil, err
		}
		return ConfigReadRequest{Index: f.Payload[0]}, nil

	default:
		return nil, fmt.Errorf("%s", messageName(f.Type))
	}
}

func expect(f *Frame, name string, variant Variant, typ byte, length int) error {
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	if f.Variant != variant {
		return fmt.Errorf("expected %s frame, got %s", variant, f.Variant)
	}
	if (variant != FixedUntyped && f.Type != typ) || len(f.Payload) != length {
		return &MessageError{
			Message:    name,
			Type:       f.Type,
			Length:     len(f.Payload),
			WantType:   typ,
			WantLength: length,
		}
	}
	return nil
}
