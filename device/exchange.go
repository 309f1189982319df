package device

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/moffa90/go-hdrbench/metrics"
	"github.com/moffa90/go-hdrbench/protocol"
	"github.com/moffa90/go-hdrbench/transport"
)

// Expectation describes the only response shape an exchange will accept.
type Expectation struct {
	// Name identifies the response in logs and metrics
	Name string

	// Layout is the framing the response arrives in
	Layout protocol.Layout

	// Type is the required message type (ignored for Fixed-Untyped layouts)
	Type byte

	// Length is the required payload length
	Length int
}

func (x Expectation) matches(f *protocol.Frame) bool {
	if f.Variant != x.Layout.Variant || len(f.Payload) != x.Length {
		return false
	}
	return !x.Layout.HasType() || f.Type == x.Type
}

// Exchange sends commands and waits for shape-checked replies on one link.
//
// An exchange never retries and never panics on bad input from the
// device; every failure comes back as a *NoResponseError. Responses are
// correlated only by shape, so callers must not pipeline requests.
//
// Exchange is not safe for concurrent use.
type Exchange struct {
	t        transport.ByteTransport
	cfg      Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	decoders map[protocol.Layout]*protocol.Decoder
}

// NewExchange creates an exchange that owns t until Close.
//
// Example:
//
//	port, _ := transport.OpenSerial(transport.SerialConfig{PortName: "/dev/ttyACM0"})
//	ex := device.NewExchange(port, device.WithTimeout(time.Second))
//	frame, err := ex.SendAndAwait(ctx, protocol.StageCommand{Stage: 7}, exp, 0)
func NewExchange(t transport.ByteTransport, opts ...Option) *Exchange {
	return newExchange(t, newConfig(opts), "link")
}

func newExchange(t transport.ByteTransport, cfg Config, device string) *Exchange {
	if t == nil {
		panic("transport cannot be nil")
	}

	return &Exchange{
		t:   t,
		cfg: cfg,
		log: cfg.Logger.With(
			zap.String("device", device),
			zap.String("conn_id", uuid.NewString()),
		),
		metrics:  cfg.Metrics,
		decoders: make(map[protocol.Layout]*protocol.Decoder),
	}
}

// Send writes cmd without waiting for a reply.
func (e *Exchange) Send(ctx context.Context, cmd protocol.Command) error {
	op := opName(cmd)
	if err := e.send(ctx, op, cmd); err != nil {
		e.metrics.Exchange(op, resultFor(err))
		return err
	}
	return nil
}

// Await decodes the next frame and accepts it only if it matches exp.
// A non-positive timeout uses the configured response timeout.
func (e *Exchange) Await(ctx context.Context, exp Expectation, timeout time.Duration) (*protocol.Frame, error) {
	frame, err := e.await(ctx, exp.Name, exp, timeout)
	e.metrics.Exchange(exp.Name, resultFor(err))
	return frame, err
}

// SendAndAwait writes cmd, then waits up to timeout for a reply matching
// exp. Any other outcome is a *NoResponseError.
func (e *Exchange) SendAndAwait(ctx context.Context, cmd protocol.Command, exp Expectation, timeout time.Duration) (*protocol.Frame, error) {
	op := opName(cmd)

	if err := e.send(ctx, op, cmd); err != nil {
		e.metrics.Exchange(op, resultFor(err))
		return nil, err
	}

	frame, err := e.await(ctx, op, exp, timeout)
	e.metrics.Exchange(op, resultFor(err))
	return frame, err
}

// Flush discards unread input when the transport supports it.
func (e *Exchange) Flush() error {
	if err := transport.ResetInput(e.t); err != nil {
		return fmt.Errorf("flush input: %w", err)
	}
	return nil
}

// Close closes the underlying transport.
func (e *Exchange) Close() error {
	return e.t.Close()
}

// Logger returns the exchange's connection-scoped logger.
func (e *Exchange) Logger() *zap.Logger {
	return e.log
}

func (e *Exchange) send(ctx context.Context, op string, cmd protocol.Command) error {
	if err := ctx.Err(); err != nil {
		return &NoResponseError{Op: op, Reason: ReasonCancelled, Err: err}
	}

	frame, err := protocol.Encode(cmd)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := e.t.Write(frame); err != nil {
		e.log.Error("write failed", zap.String("op", op), zap.Error(err))
		return &NoResponseError{Op: op, Reason: ReasonWriteFailed, Err: err}
	}
	e.log.Debug("command sent", zap.String("op", op), zap.String("frame", hex.EncodeToString(frame)))

	if e.cfg.CommandDelay > 0 {
		if err := sleep(ctx, e.cfg.CommandDelay); err != nil {
			return &NoResponseError{Op: op, Reason: ReasonCancelled, Err: err}
		}
	}
	return nil
}

func (e *Exchange) await(ctx context.Context, op string, exp Expectation, timeout time.Duration) (*protocol.Frame, error) {
	if timeout <= 0 {
		timeout = e.cfg.ResponseTimeout
	}

	frame, err := e.decode(ctx, exp.Layout, time.Now().Add(timeout))
	if err != nil {
		nr := &NoResponseError{Op: op, Reason: reasonFor(err), Err: err}
		e.log.Debug("no response", zap.String("op", op), zap.String("reason", string(nr.Reason)), zap.Error(err))
		return nil, nr
	}

	if !exp.matches(frame) {
		e.log.Warn("unexpected response",
			zap.String("op", op),
			zap.String("got", frame.String()),
			zap.String("payload", hex.EncodeToString(frame.Payload)),
		)
		return nil, &NoResponseError{
			Op:     op,
			Reason: ReasonUnexpected,
			Err:    fmt.Errorf("got %s, want %s", frame, exp.Name),
		}
	}
	return frame, nil
}

// decode runs one bounded decode with the decoder cached for layout.
func (e *Exchange) decode(ctx context.Context, layout protocol.Layout, deadline time.Time) (*protocol.Frame, error) {
	dec, ok := e.decoders[layout]
	if !ok {
		dec = protocol.NewDecoder(layout, protocol.WithMismatchHandler(e.onMismatch))
		e.decoders[layout] = dec
	}

	frame, err := dec.Decode(ctx, e.t, deadline)
	if err != nil {
		return nil, err
	}
	e.metrics.FrameDecoded(frame.Variant.String())
	return frame, nil
}

func (e *Exchange) onMismatch(ce *protocol.ChecksumError) {
	e.metrics.ChecksumFailure(ce.Variant.String())

	// Sample stream mismatches are routine and stay at debug.
	level := zapcore.WarnLevel
	if ce.Variant == protocol.FixedUntyped {
		level = zapcore.DebugLevel
	}
	if entry := e.log.Check(level, "checksum mismatch"); entry != nil {
		entry.Write(
			zap.String("variant", ce.Variant.String()),
			zap.String("expected", fmt.Sprintf("0x%02X", ce.Expected)),
			zap.String("actual", fmt.Sprintf("0x%02X", ce.Actual)),
			zap.String("payload", hex.EncodeToString(ce.Payload)),
		)
	}
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, protocol.ErrNoFrame):
		return ReasonTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	default:
		return ReasonDisconnected
	}
}

func resultFor(err error) string {
	if err == nil {
		return metrics.ResultOK
	}
	var nr *NoResponseError
	if !errors.As(err, &nr) {
		return metrics.ResultUnexpected
	}
	switch nr.Reason {
	case ReasonTimeout:
		return metrics.ResultTimeout
	case ReasonDisconnected:
		return metrics.ResultDisconnected
	case ReasonWriteFailed:
		return metrics.ResultWriteFailed
	case ReasonCancelled:
		return metrics.ResultCancelled
	default:
		return metrics.ResultUnexpected
	}
}

func opName(cmd protocol.Command) string {
	switch cmd.(type) {
	case protocol.StageCommand:
		return "set_stage"
	case protocol.CurrentCommand:
		return "set_current"
	case protocol.ConfigWriteCommand:
		return "config_write"
	case protocol.ConfigReadRequest:
		return "config_read"
	default:
		return fmt.Sprintf("command_0x%02X", cmd.MessageType())
	}
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
