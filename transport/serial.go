package transport

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is used when SerialConfig.BaudRate is zero. The devices
	// enumerate as USB CDC ports, so the value only matters to the host driver.
	DefaultBaudRate = 115200

	// maxReadSlice bounds a single blocking read so a long deadline still
	// polls the port regularly.
	maxReadSlice = 100 * time.Millisecond

	readChunkSize = 64
)

// SerialConfig holds the parameters used to open a serial port.
type SerialConfig struct {
	// PortName is the OS device name, e.g. /dev/ttyACM0 or COM4.
	PortName string

	// BaudRate defaults to DefaultBaudRate.
	BaudRate int
}

// Serial is a ByteTransport backed by an OS serial port.
type Serial struct {
	name    string
	port    serial.Port
	buf     [readChunkSize]byte
	pending []byte
}

// OpenSerial opens the named port and discards any stale input.
//
// Example:
//
//	link, err := transport.OpenSerial(transport.SerialConfig{PortName: "/dev/ttyACM0"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer link.Close()
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.PortName == "" {
		return nil, fmt.Errorf("serial port name cannot be empty")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.PortName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("reset input %s: %w", cfg.PortName, err)
	}

	return &Serial{name: cfg.PortName, port: port}, nil
}

// Name returns the OS port name.
func (s *Serial) Name() string {
	return s.name
}

// ReadByteUntil implements ByteTransport.
func (s *Serial) ReadByteUntil(deadline time.Time) (byte, error) {
	for len(s.pending) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, ErrTimeout
		}
		if err := s.port.SetReadTimeout(min(remaining, maxReadSlice)); err != nil {
			return 0, s.wrap("set read timeout", err)
		}
		n, err := s.port.Read(s.buf[:])
		if err != nil {
			return 0, s.wrap("read", err)
		}
		s.pending = s.buf[:n]
	}

	b := s.pending[0]
	s.pending = s.pending[1:]
	return b, nil
}

// Write implements ByteTransport.
func (s *Serial) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, s.wrap("write", err)
	}
	return n, nil
}

// ResetInputBuffer implements InputFlusher.
func (s *Serial) ResetInputBuffer() error {
	s.pending = nil
	if err := s.port.ResetInputBuffer(); err != nil {
		return s.wrap("reset input", err)
	}
	return nil
}

// Close implements ByteTransport.
func (s *Serial) Close() error {
	s.pending = nil
	return s.port.Close()
}

// wrap maps port-gone conditions onto ErrClosed so callers can tell a
// disconnection apart from a protocol problem.
func (s *Serial) wrap(op string, err error) error {
	var pe *serial.PortError
	if errors.As(err, &pe) && pe.Code() == serial.PortClosed {
		return fmt.Errorf("%s %s: %w", op, s.name, ErrClosed)
	}
	return fmt.Errorf("%s %s: %w", op, s.name, err)
}
