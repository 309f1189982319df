package protocol

// Command is an outbound message carried in a Typed-Variable frame.
type Command interface {
	// MessageType is the frame type byte
	MessageType() byte

	// Payload returns the little-endian payload bytes
	Payload() []byte
}

// StageCommand selects a fixed-reference stage (0 = highest current, 7 = lowest).
type StageCommand struct {
	Stage uint8
}

// CurrentCommand sets the adjustable-reference output current.
type CurrentCommand struct {
	Milliamps float32
}

// ConfigWriteCommand stores a calibration parameter on the shunt monitor.
type ConfigWriteCommand struct {
	// Index is the parameter slot (see package calibration for the key map)
	Index byte

	// Value is the parameter value, in ohms for resistor parameters
	Value float32
}

// ConfigReadRequest asks the shunt monitor for a calibration parameter.
type ConfigReadRequest struct {
	Index byte
}

// CurrentSetResponse is the current source's echo of its active setting.
type CurrentSetResponse struct {
	Milliamps float32
}

// ConfigReadResponse carries a calibration parameter read back from the
// shunt monitor.
type ConfigReadResponse struct {
	Index byte
	Value float32
}

// MeasurementSample is one reading from the shunt monitor stream.
type MeasurementSample struct {
	// Timestamp is the device tick counter at the time of the reading
	Timestamp uint32

	// CurrentMA is the measured current in mA
	CurrentMA float32
}

// MessageType implements Command.
func (StageCommand) MessageType() byte { return TypeSetStage }

// MessageType implements Command.
func (CurrentCommand) MessageType() byte { return TypeSetCurrent }

// MessageType implements Command.
func (ConfigWriteCommand) MessageType() byte { return TypeConfigWrite }

// MessageType implements Command.
func (ConfigReadRequest) MessageType() byte { return TypeConfigRead }

// MessageType implements Command. The current source sends this message;
// it is a Command so simulators can frame it with Encode.
func (CurrentSetResponse) MessageType() byte { return TypeCurrentSetting }

// Payload implements Command.
func (c StageCommand) Payload() []byte {
	return []byte{c.Stage}
}

// Payload implements Command.
func (c CurrentCommand) Payload() []byte {
	return putFloat32(make([]byte, CurrentPayloadSize), c.Milliamps)
}

// Payload implements Command.
func (c ConfigWriteCommand) Payload() []byte {
	p := make([]byte, ConfigWritePayloadSize)
	p[0] = c.Index
	putFloat32(p[1:], c.Value)
	return p
}

// Payload implements Command.
func (c ConfigReadRequest) Payload() []byte {
	return []byte{c.Index}
}

// Payload implements Command.
func (c CurrentSetResponse) Payload() []byte {
	return putFloat32(make([]byte, CurrentSettingPayloadSize), c.Milliamps)
}

// Payload returns the Typed-Fixed payload: INDEX(1) + VALUE(f32).
func (r ConfigReadResponse) Payload() []byte {
	p := make([]byte, ConfigResponsePayloadSize)
	p[0] = r.Index
	putFloat32(p[1:], r.Value)
	return p
}

// Payload returns the Fixed-Untyped payload: TIMESTAMP(u32) + CURRENT_MA(f32).
func (s MeasurementSample) Payload() []byte {
	p := make([]byte, SamplePayloadSize)
	byteOrder.PutUint32(p[0:4], s.Timestamp)
	putFloat32(p[4:8], s.CurrentMA)
	return p
}
