package device

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-hdrbench/calibration"
	"github.com/moffa90/go-hdrbench/transport"
)

// ErrNoResponse is matched by every *NoResponseError via errors.Is.
var ErrNoResponse = errors.New("no response")

// Reason explains why an exchange produced no usable response.
type Reason string

const (
	// ReasonTimeout means nothing valid arrived before the deadline
	ReasonTimeout Reason = "timeout"

	// ReasonUnexpected means a valid frame arrived with the wrong shape
	ReasonUnexpected Reason = "unexpected response"

	// ReasonDisconnected means the link failed while reading
	ReasonDisconnected Reason = "disconnected"

	// ReasonWriteFailed means the command could not be written
	ReasonWriteFailed Reason = "write failed"

	// ReasonCancelled means the context ended the exchange
	ReasonCancelled Reason = "cancelled"
)

// NoResponseError reports an exchange that did not produce the expected
// reply. It matches ErrNoResponse and unwraps to the underlying cause, so
// errors.Is(err, transport.ErrClosed) still identifies a lost device.
type NoResponseError struct {
	Op     string
	Reason Reason
	Err    error
}

func (e *NoResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: no response (%s): %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: no response (%s)", e.Op, e.Reason)
}

func (e *NoResponseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrNoResponse.
func (e *NoResponseError) Is(target error) bool {
	return target == ErrNoResponse
}

// IsDisconnected reports whether err was caused by a lost or closed link.
func IsDisconnected(err error) bool {
	if errors.Is(err, transport.ErrClosed) {
		return true
	}
	var nr *NoResponseError
	return errors.As(err, &nr) && nr.Reason == ReasonDisconnected
}

// IsTimeout reports whether err is an exchange that ran out of time.
func IsTimeout(err error) bool {
	var nr *NoResponseError
	return errors.As(err, &nr) && nr.Reason == ReasonTimeout
}

// ModeError indicates an operation the supply's reference mode does not
// support. The command is never sent.
type ModeError struct {
	Mode SupplyMode
	Op   Operation
}

func (e *ModeError) Error() string {
	switch e.Op {
	case OpSetStage:
		return fmt.Sprintf("%s not available in %s mode: command current directly", e.Op, e.Mode)
	case OpSetCurrent:
		return fmt.Sprintf("%s not available in %s mode: select a stage instead", e.Op, e.Mode)
	default:
		return fmt.Sprintf("%s not available in %s mode", e.Op, e.Mode)
	}
}

// SettingError indicates that the current source never confirmed a setting
// within tolerance.
type SettingError struct {
	// WantMA is the current the setting should produce
	WantMA float64

	// GotMA is the last echoed setting (zero if none arrived)
	GotMA float64

	// Tolerance is the allowed relative error
	Tolerance float64

	// Attempts is the number of attempts made
	Attempts int

	// Err is the last exchange error, if the final attempt had no echo
	Err error
}

func (e *SettingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("setting %g mA not confirmed after %d attempts: %v", e.WantMA, e.Attempts, e.Err)
	}
	return fmt.Sprintf("setting %g mA not confirmed after %d attempts: echoed %g mA, outside %g%%",
		e.WantMA, e.Attempts, e.GotMA, e.Tolerance*100)
}

func (e *SettingError) Unwrap() error {
	return e.Err
}

// ConfigMismatchError indicates a calibration parameter that did not read
// back as written.
type ConfigMismatchError struct {
	Key  calibration.Key
	Want float64
	Got  float32

	// Err is set when no readback arrived at all
	Err error
}

func (e *ConfigMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: readback failed: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("config %s: read back %g ohm, want %g ohm", e.Key, e.Got, e.Want)
}

func (e *ConfigMismatchError) Unwrap() error {
	return e.Err
}
