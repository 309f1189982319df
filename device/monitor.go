package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/moffa90/go-hdrbench/calibration"
	"github.com/moffa90/go-hdrbench/protocol"
	"github.com/moffa90/go-hdrbench/transport"
)

// ConfigTolerance is the relative tolerance for a calibration readback.
const ConfigTolerance = 1e-5

var configResponse = Expectation{
	Name:   "config_response",
	Layout: protocol.ConfigResponseLayout,
	Type:   protocol.TypeConfigResponse,
	Length: protocol.ConfigResponsePayloadSize,
}

// ShuntMonitor drives the shunt-based current monitor.
//
// ShuntMonitor is not safe for concurrent use; it owns its transport from
// construction until Close.
type ShuntMonitor struct {
	ex  *Exchange
	cfg Config
}

// NewShuntMonitor creates a shunt monitor driver that owns t.
//
// Example:
//
//	port, _ := transport.OpenSerial(transport.SerialConfig{PortName: "/dev/ttyACM1"})
//	monitor := device.NewShuntMonitor(port, device.WithLogger(logger))
//	defer monitor.Close()
func NewShuntMonitor(t transport.ByteTransport, opts ...Option) *ShuntMonitor {
	cfg := newConfig(opts)
	return &ShuntMonitor{
		ex:  newExchange(t, cfg, "shunt_monitor"),
		cfg: cfg,
	}
}

// WriteConfig stores value at the given parameter index. The monitor does
// not acknowledge writes; use ReadConfig to confirm.
func (m *ShuntMonitor) WriteConfig(ctx context.Context, index byte, value float32) error {
	return m.ex.Send(ctx, protocol.ConfigWriteCommand{Index: index, Value: value})
}

// ReadConfig requests the parameter at index and waits up to timeout for the
// config response. A non-positive timeout uses the configured config
// timeout. Input is flushed first so a stale response cannot be mistaken for
// this one.
func (m *ShuntMonitor) ReadConfig(ctx context.Context, index byte, timeout time.Duration) (float32, error) {
	if timeout <= 0 {
		timeout = m.cfg.ConfigTimeout
	}
	if err := m.ex.Flush(); err != nil {
		return 0, err
	}

	frame, err := m.ex.SendAndAwait(ctx, protocol.ConfigReadRequest{Index: index}, configResponse, timeout)
	if err != nil {
		return 0, err
	}
	resp, err := protocol.ParseConfigResponse(frame)
	if err != nil {
		return 0, err
	}
	if resp.Index != index {
		return 0, &NoResponseError{
			Op:     "config_read",
			Reason: ReasonUnexpected,
			Err:    fmt.Errorf("response for index %d, requested %d", resp.Index, index),
		}
	}
	return resp.Value, nil
}

// ReadParam reads one calibration parameter by key.
func (m *ShuntMonitor) ReadParam(ctx context.Context, key calibration.Key) (float32, error) {
	index, err := key.Index()
	if err != nil {
		return 0, err
	}
	if err := sleep(ctx, m.cfg.ConfigSettle); err != nil {
		return 0, err
	}
	value, err := m.ReadConfig(ctx, index, 0)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}

// WriteParam writes one calibration parameter by key without confirming it.
func (m *ShuntMonitor) WriteParam(ctx context.Context, key calibration.Key, value float64) error {
	index, err := key.Index()
	if err != nil {
		return err
	}
	if err := sleep(ctx, m.cfg.ConfigSettle); err != nil {
		return err
	}
	if err := m.WriteConfig(ctx, index, float32(value)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// ReadCalibration reads every calibration parameter.
func (m *ShuntMonitor) ReadCalibration(ctx context.Context) (calibration.Params, error) {
	params := make(calibration.Params, len(calibration.Keys))
	for _, key := range calibration.Keys {
		value, err := m.ReadParam(ctx, key)
		if err != nil {
			return nil, err
		}
		params[key] = float64(value)
	}
	return params, nil
}

// ApplyCalibration writes every parameter in params and reads each one back.
// A pass in which any readback is missing or outside ConfigTolerance is
// repeated, up to attempts passes in total.
//
// Returns nil once a full pass confirms every parameter; otherwise the
// per-key *ConfigMismatchError values of the last pass, joined.
func (m *ShuntMonitor) ApplyCalibration(ctx context.Context, params calibration.Params, attempts int) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if attempts < 1 {
		attempts = 1
	}

	var failures []error
	for pass := 1; pass <= attempts; pass++ {
		failures = failures[:0]

		for _, key := range params.Ordered() {
			want := params[key]
			if err := m.applyParam(ctx, key, want); err != nil {
				var mismatch *ConfigMismatchError
				if !errors.As(err, &mismatch) {
					return err
				}
				if IsDisconnected(err) || ctx.Err() != nil {
					return err
				}
				m.ex.log.Warn("calibration parameter not confirmed",
					zap.String("key", string(key)),
					zap.Int("pass", pass),
					zap.Error(err),
				)
				failures = append(failures, err)
				continue
			}
			m.ex.log.Info("calibration parameter set",
				zap.String("key", string(key)),
				zap.Float64("ohms", want),
			)
		}

		if len(failures) == 0 {
			return nil
		}
	}
	return errors.Join(failures...)
}

func (m *ShuntMonitor) applyParam(ctx context.Context, key calibration.Key, want float64) error {
	if err := m.WriteParam(ctx, key, want); err != nil {
		if IsDisconnected(err) || ctx.Err() != nil {
			return err
		}
		return &ConfigMismatchError{Key: key, Want: want, Err: err}
	}

	got, err := m.ReadParam(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNoResponse) {
			return &ConfigMismatchError{Key: key, Want: want, Err: err}
		}
		return err
	}
	if !isClose(float64(got), want, ConfigTolerance) {
		return &ConfigMismatchError{Key: key, Want: want, Got: got}
	}
	return nil
}

// StreamMeasurements collects samples for duration. It decodes in windows of
// at most the configured stream window, keeps every sample in arrival order,
// and drops frames that fail their checksum. Input is flushed first.
//
// Returns the samples collected so far together with ctx.Err() if the
// context ends early, or with a *NoResponseError if the link fails.
func (m *ShuntMonitor) StreamMeasurements(ctx context.Context, duration time.Duration) ([]protocol.MeasurementSample, error) {
	if err := m.ex.Flush(); err != nil {
		return nil, err
	}

	var samples []protocol.MeasurementSample
	end := time.Now().Add(duration)

	for {
		remaining := time.Until(end)
		if remaining <= 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return samples, err
		}

		window := min(m.cfg.StreamWindow, remaining)
		frame, err := m.ex.decode(ctx, protocol.SampleLayout, time.Now().Add(window))
		switch {
		case err == nil:
		case errors.Is(err, protocol.ErrNoFrame):
			continue
		case ctx.Err() != nil:
			return samples, ctx.Err()
		default:
			nr := &NoResponseError{Op: "stream", Reason: ReasonDisconnected, Err: err}
			m.ex.metrics.Exchange("stream", resultFor(nr))
			m.ex.log.Error("stream lost", zap.Int("samples", len(samples)), zap.Error(err))
			return samples, nr
		}

		sample, err := protocol.ParseSample(frame)
		if err != nil {
			continue
		}
		samples = append(samples, *sample)
		m.ex.metrics.SampleStreamed()
		if m.cfg.SampleCallback != nil {
			m.cfg.SampleCallback(*sample)
		}
	}

	m.ex.log.Debug("stream complete",
		zap.Int("samples", len(samples)),
		zap.Duration("duration", duration),
	)
	return samples, nil
}

// Measure discards samples for warmup, then streams for duration and
// summarizes the result. The warmup lets the monitor's averaging settle after
// a range change.
func (m *ShuntMonitor) Measure(ctx context.Context, warmup, duration time.Duration) (Stats, []protocol.MeasurementSample, error) {
	if warmup > 0 {
		if _, err := m.StreamMeasurements(ctx, warmup); err != nil {
			return Stats{}, nil, err
		}
	}

	samples, err := m.StreamMeasurements(ctx, duration)
	if err != nil {
		return Stats{}, samples, err
	}
	return Summarize(samples), samples, nil
}

// Close releases the transport.
func (m *ShuntMonitor) Close() error {
	return m.ex.Close()
}

// isClose reports |a-b| <= rel * max(|a|, |b|).
func isClose(a, b, rel float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= rel*math.Max(math.Abs(a), math.Abs(b))
}
