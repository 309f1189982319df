package protocol

import (
	"bytes"
	"strings"
	"testing"
)

func TestBuildStageCmd(t *testing.T) {
	tests := []struct {
		name    string
		stage   uint8
		want    []byte
		wantErr bool
		errMsg  string
	}{
		{
			name:  "stage 0",
			stage: 0,
			want:  []byte{0xAA, 0x04, 0x01, 0x00, 0x05},
		},
		{
			name:  "stage 7",
			stage: 7,
			want:  []byte{0xAA, 0x04, 0x01, 0x07, 0x0C},
		},
		{
			name:    "stage 8 rejected",
			stage:   8,
			wantErr: true,
			errMsg:  "stage must be 0-7",
		},
		{
			name:    "stage 255 rejected",
			stage:   255,
			wantErr: true,
			errMsg:  "stage must be 0-7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := BuildStageCmd(tt.stage)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(frame, tt.want) {
				t.Errorf("frame = % X, want % X", frame, tt.want)
			}
		})
	}
}

func TestBuildCurrentCmd(t *testing.T) {
	tests := []struct {
		name      string
		milliamps float32
		want      []byte
	}{
		{
			name:      "1.0 mA",
			milliamps: 1.0,
			want:      []byte{0xAA, 0x00, 0x04, 0x00, 0x00, 0x80, 0x3F, 0xC3},
		},
		{
			name:      "zero",
			milliamps: 0,
			want:      []byte{0xAA, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x04},
		},
		{
			name:      "negative 2.0 mA",
			milliamps: -2.0,
			want:      []byte{0xAA, 0x00, 0x04, 0x00, 0x00, 0x00, 0xC0, 0xC4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := BuildCurrentCmd(tt.milliamps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(frame, tt.want) {
				t.Errorf("frame = % X, want % X", frame, tt.want)
			}
		})
	}
}

func TestBuildConfigCmds(t *testing.T) {
	write, err := BuildConfigWriteCmd(0, 1.0)
	if err != nil {
		t.Fatalf("BuildConfigWriteCmd: %v", err)
	}
	wantWrite := []byte{0xAA, 0x02, 0x05, 0x00, 0x00, 0x00, 0x80, 0x3F, 0xC6}
	if !bytes.Equal(write, wantWrite) {
		t.Errorf("config write = % X, want % X", write, wantWrite)
	}

	read, err := BuildConfigReadCmd(3)
	if err != nil {
		t.Fatalf("BuildConfigReadCmd: %v", err)
	}
	wantRead := []byte{0xAA, 0x03, 0x01, 0x03, 0x07}
	if !bytes.Equal(read, wantRead) {
		t.Errorf("config read = % X, want % X", read, wantRead)
	}
}

func TestDeviceSideEncoders(t *testing.T) {
	tests := []struct {
		name   string
		encode func() ([]byte, error)
		want   []byte
	}{
		{
			name:   "current setting 1.0 mA",
			encode: func() ([]byte, error) { return EncodeCurrentSetting(1.0) },
			want:   []byte{0xAA, 0x05, 0x04, 0x00, 0x00, 0x80, 0x3F, 0xC8},
		},
		{
			name:   "config response index 2",
			encode: func() ([]byte, error) { return EncodeConfigResponse(2, 1.0) },
			want:   []byte{0xAA, 0x04, 0x02, 0x00, 0x00, 0x80, 0x3F, 0xC5},
		},
		{
			name: "sample at t=0",
			encode: func() ([]byte, error) {
				return EncodeSample(MeasurementSample{Timestamp: 0, CurrentMA: 1.0})
			},
			want: []byte{0xAA, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80, 0x3F, 0xBF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := tt.encode()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(frame, tt.want) {
				t.Errorf("frame = % X, want % X", frame, tt.want)
			}
		})
	}
}

func TestLayoutEncodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		layout  Layout
		payload []byte
		errMsg  string
	}{
		{
			name:    "typed-variable payload too long",
			layout:  SupplyLayout,
			payload: make([]byte, 256),
			errMsg:  "exceeds maximum 255 bytes",
		},
		{
			name:    "sample payload too short",
			layout:  SampleLayout,
			payload: make([]byte, 7),
			errMsg:  "exactly 8 bytes",
		},
		{
			name:    "config response payload too long",
			layout:  ConfigResponseLayout,
			payload: make([]byte, 6),
			errMsg:  "exactly 5 bytes",
		},
		{
			name:    "fixed layout without length",
			layout:  Layout{Variant: FixedUntyped},
			payload: nil,
			errMsg:  "out of range",
		},
		{
			name:    "unknown variant",
			layout:  Layout{Variant: Variant(9)},
			payload: nil,
			errMsg:  "unknown frame variant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.layout.Encode(0x01, tt.payload)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %v, want substring %q", err, tt.errMsg)
			}
		})
	}
}

func TestTypedFixedEncodeUsesLayoutType(t *testing.T) {
	frame, err := ConfigResponseLayout.Encode(0x77, []byte{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame[1] != TypeConfigResponse {
		t.Errorf("type byte = 0x%02X, want 0x%02X", frame[1], TypeConfigResponse)
	}
	if len(frame) != TypedFixedOverhead+5 {
		t.Errorf("frame length = %d, want %d", len(frame), TypedFixedOverhead+5)
	}
}

func TestEncodeChecksumCoversBody(t *testing.T) {
	layouts := []Layout{SupplyLayout, SampleLayout, ConfigResponseLayout}
	for _, layout := range layouts {
		t.Run(layout.Variant.String(), func(t *testing.T) {
			payload := make([]byte, 8)
			if layout.Variant == TypedFixed {
				payload = payload[:layout.Length]
			}
			for i := range payload {
				payload[i] = byte(0x30 + i)
			}

			frame, err := layout.Encode(0x09, payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if frame[0] != StartMarker {
				t.Errorf("start = 0x%02X, want 0x%02X", frame[0], StartMarker)
			}
			body := frame[1 : len(frame)-1]
			if got := frame[len(frame)-1]; got != Sum(body) {
				t.Errorf("checksum = 0x%02X, want 0x%02X", got, Sum(body))
			}
		})
	}
}
