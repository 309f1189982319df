package protocol

// Frame structure constants.
const (
	// StartMarker begins every frame in both directions (0xAA)
	StartMarker = 0xAA

	// ChecksumSize is the size of the trailing additive checksum
	ChecksumSize = 1

	// MaxPayloadSize is the largest payload a one-byte length field can describe
	MaxPayloadSize = 255

	// TypedVariableOverhead is the framing cost of a Typed-Variable frame:
	// START(1) + TYPE(1) + LEN(1) + CHECKSUM(1)
	TypedVariableOverhead = 4

	// FixedUntypedOverhead is START(1) + CHECKSUM(1)
	FixedUntypedOverhead = 2

	// TypedFixedOverhead is START(1) + TYPE(1) + CHECKSUM(1)
	TypedFixedOverhead = 3
)

// Message types on the current source link (Typed-Variable frames).
const (
	// TypeSetCurrent commands an output current in mA (adjustable reference)
	TypeSetCurrent = 0x00

	// TypeSetStage selects one of the fixed shunt stages (fixed reference)
	TypeSetStage = 0x04

	// TypeCurrentSetting is the device's echo of the active current setting
	TypeCurrentSetting = 0x05
)

// Message types on the shunt monitor link.
const (
	// TypeConfigWrite stores a calibration parameter
	TypeConfigWrite = 0x02

	// TypeConfigRead requests a calibration parameter
	TypeConfigRead = 0x03

	// TypeConfigResponse answers a config read. It is sent as a Typed-Fixed
	// frame, so the type byte doubles as the frame discriminator.
	TypeConfigResponse = 0x04
)

// Payload sizes.
const (
	// StagePayloadSize is the Set Stage payload: STAGE(1)
	StagePayloadSize = 1

	// CurrentPayloadSize is the Set Current payload: CURRENT_MA(f32)
	CurrentPayloadSize = 4

	// CurrentSettingPayloadSize is the Current Setting payload: CURRENT_MA(f32)
	CurrentSettingPayloadSize = 4

	// ConfigWritePayloadSize is the Config Write payload: INDEX(1) + VALUE(f32)
	ConfigWritePayloadSize = 5

	// ConfigReadPayloadSize is the Config Read payload: INDEX(1)
	ConfigReadPayloadSize = 1

	// ConfigResponsePayloadSize is the Config Response payload: INDEX(1) + VALUE(f32)
	ConfigResponsePayloadSize = 5

	// SamplePayloadSize is the measurement payload: TIMESTAMP(u32) + CURRENT_MA(f32)
	SamplePayloadSize = 8
)

// Stage limits for the fixed reference current source.
const (
	// MinStage is the highest-current stage
	MinStage = 0

	// MaxStage is the lowest-current stage
	MaxStage = 7

	// StageCount is the number of selectable stages
	StageCount = MaxStage + 1
)
