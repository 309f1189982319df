package device

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moffa90/go-hdrbench/protocol"
	"github.com/moffa90/go-hdrbench/transport"
)

// SupplyMode is the reference configuration the current source was built
// with. It is fixed for the lifetime of a driver.
type SupplyMode int

const (
	// FixedReference supplies select one of eight calibrated stages
	FixedReference SupplyMode = iota + 1

	// AdjustableReference supplies take a commanded current in mA
	AdjustableReference
)

func (m SupplyMode) String() string {
	switch m {
	case FixedReference:
		return "fixed reference"
	case AdjustableReference:
		return "adjustable reference"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseSupplyMode resolves a mode name such as "fixed" or "adjustable".
func ParseSupplyMode(s string) (SupplyMode, error) {
	switch strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)) {
	case "fixed", "fixedreference":
		return FixedReference, nil
	case "adjustable", "adjustablereference":
		return AdjustableReference, nil
	default:
		return 0, fmt.Errorf("unknown supply mode %q (want fixed or adjustable)", s)
	}
}

// Operation names a current source command for mode checks.
type Operation string

const (
	OpSetStage   Operation = "set stage"
	OpSetCurrent Operation = "set current"
)

// RequiredMode returns the mode that supports op.
func (op Operation) RequiredMode() SupplyMode {
	if op == OpSetStage {
		return FixedReference
	}
	return AdjustableReference
}

// nominalStageCurrentMA is the calibrated output of each stage.
var nominalStageCurrentMA = [protocol.StageCount]float64{
	389.0, 234.0, 30.0, 3.0, 0.3, 0.03, 0.0033, 0.0003,
}

// NominalStageCurrent returns the nominal output of stage in mA.
func NominalStageCurrent(stage uint8) (float64, error) {
	if stage > protocol.MaxStage {
		return 0, fmt.Errorf("stage must be %d-%d, got %d", protocol.MinStage, protocol.MaxStage, stage)
	}
	return nominalStageCurrentMA[stage], nil
}

// CurrentSupply is the behavior shared by both supply modes.
type CurrentSupply interface {
	// Mode returns the reference mode chosen at construction
	Mode() SupplyMode

	// ReadCurrentSetting waits for the supply's echo of its active setting
	ReadCurrentSetting(ctx context.Context, timeout time.Duration) (float32, error)

	// Close releases the transport
	Close() error
}

// NewCurrentSupply creates the driver for mode over t.
func NewCurrentSupply(t transport.ByteTransport, mode SupplyMode, opts ...Option) (CurrentSupply, error) {
	switch mode {
	case FixedReference:
		return NewFixedReferenceSupply(t, opts...), nil
	case AdjustableReference:
		return NewAdjustableReferenceSupply(t, opts...), nil
	default:
		return nil, fmt.Errorf("unknown supply mode %d", int(mode))
	}
}

// Check returns a *ModeError if a supply built with m cannot perform op.
func (m SupplyMode) Check(op Operation) error {
	if m != op.RequiredMode() {
		return &ModeError{Mode: m, Op: op}
	}
	return nil
}

// CheckMode returns a *ModeError if supply cannot perform op. Callers use it
// to reject a request before any I/O.
func CheckMode(supply CurrentSupply, op Operation) error {
	return supply.Mode().Check(op)
}

var currentSettingResponse = Expectation{
	Name:   "current_setting",
	Layout: protocol.SupplyLayout,
	Type:   protocol.TypeCurrentSetting,
	Length: protocol.CurrentSettingPayloadSize,
}

type supply struct {
	ex   *Exchange
	cfg  Config
	mode SupplyMode
}

func newSupply(t transport.ByteTransport, mode SupplyMode, opts []Option) supply {
	cfg := newConfig(opts)
	return supply{
		ex:   newExchange(t, cfg, "current_source"),
		cfg:  cfg,
		mode: mode,
	}
}

// Mode implements CurrentSupply.
func (s *supply) Mode() SupplyMode {
	return s.mode
}

// ReadCurrentSetting implements CurrentSupply. A non-positive timeout uses
// the configured response timeout.
func (s *supply) ReadCurrentSetting(ctx context.Context, timeout time.Duration) (float32, error) {
	frame, err := s.ex.Await(ctx, currentSettingResponse, timeout)
	if err != nil {
		return 0, err
	}
	resp, err := protocol.ParseCurrentSetting(frame)
	if err != nil {
		return 0, err
	}
	return resp.Milliamps, nil
}

// Flush discards any unread input, such as a stale echo.
func (s *supply) Flush() error {
	return s.ex.Flush()
}

// Close implements CurrentSupply.
func (s *supply) Close() error {
	return s.ex.Close()
}

// confirm repeats set until the echoed setting is within tolerance of
// wantMA or attempts run out.
func (s *supply) confirm(ctx context.Context, wantMA, tolerance float64, attempts int, set func() error) (float32, error) {
	if attempts < 1 {
		attempts = 1
	}

	var (
		lastMA  float32
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := sleep(ctx, s.cfg.RetryDelay); err != nil {
			return 0, err
		}
		if err := s.ex.Flush(); err != nil {
			return 0, err
		}
		if err := set(); err != nil {
			if IsDisconnected(err) {
				return 0, err
			}
			lastErr = err
			continue
		}

		got, err := s.ReadCurrentSetting(ctx, 0)
		if err != nil {
			if IsDisconnected(err) || ctx.Err() != nil {
				return 0, err
			}
			lastErr = err
			s.ex.log.Debug("no setting echo", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		lastMA, lastErr = got, nil
		if withinRelative(wantMA, float64(got), tolerance) {
			s.ex.log.Info("setting confirmed",
				zap.Float64("want_ma", wantMA),
				zap.Float32("echo_ma", got),
				zap.Int("attempt", attempt),
			)
			return got, nil
		}
		s.ex.log.Debug("setting outside tolerance",
			zap.Float64("want_ma", wantMA),
			zap.Float32("echo_ma", got),
			zap.Int("attempt", attempt),
		)
	}

	return lastMA, &SettingError{
		WantMA:    wantMA,
		GotMA:     float64(lastMA),
		Tolerance: tolerance,
		Attempts:  attempts,
		Err:       lastErr,
	}
}

// FixedReferenceSupply drives a current source built with the fixed
// reference: the output is chosen from eight calibrated stages.
type FixedReferenceSupply struct {
	supply
}

// NewFixedReferenceSupply creates a fixed reference driver that owns t.
func NewFixedReferenceSupply(t transport.ByteTransport, opts ...Option) *FixedReferenceSupply {
	return &FixedReferenceSupply{supply: newSupply(t, FixedReference, opts)}
}

// SetStage selects stage 0 (highest current) through 7 (lowest). It does not
// wait for the echo; call ReadCurrentSetting for that.
func (s *FixedReferenceSupply) SetStage(ctx context.Context, stage uint8) error {
	if stage > protocol.MaxStage {
		return fmt.Errorf("stage must be %d-%d, got %d", protocol.MinStage, protocol.MaxStage, stage)
	}
	return s.ex.Send(ctx, protocol.StageCommand{Stage: stage})
}

// SetStageConfirmed selects stage and waits until the echoed setting is
// within tolerance (relative) of the stage's nominal current, retrying up to
// attempts times. It returns the echoed setting.
//
// Example:
//
//	ma, err := supply.SetStageConfirmed(ctx, 3, 0.05, 5)
func (s *FixedReferenceSupply) SetStageConfirmed(ctx context.Context, stage uint8, tolerance float64, attempts int) (float32, error) {
	want, err := NominalStageCurrent(stage)
	if err != nil {
		return 0, err
	}
	return s.confirm(ctx, want, tolerance, attempts, func() error {
		return s.SetStage(ctx, stage)
	})
}

// AdjustableReferenceSupply drives a current source built with the
// adjustable reference: the output current is commanded directly.
type AdjustableReferenceSupply struct {
	supply
}

// NewAdjustableReferenceSupply creates an adjustable reference driver that owns t.
func NewAdjustableReferenceSupply(t transport.ByteTransport, opts ...Option) *AdjustableReferenceSupply {
	return &AdjustableReferenceSupply{supply: newSupply(t, AdjustableReference, opts)}
}

// SetCurrent commands milliamps. It does not wait for the echo.
func (s *AdjustableReferenceSupply) SetCurrent(ctx context.Context, milliamps float32) error {
	if math.IsNaN(float64(milliamps)) || math.IsInf(float64(milliamps), 0) {
		return fmt.Errorf("current must be finite, got %v", milliamps)
	}
	return s.ex.Send(ctx, protocol.CurrentCommand{Milliamps: milliamps})
}

// SetCurrentConfirmed commands milliamps and waits until the echoed setting
// is within tolerance (relative) of it, retrying up to attempts times.
//
// Example:
//
//	ma, err := supply.SetCurrentConfirmed(ctx, 1.5, 0.01, 3)
func (s *AdjustableReferenceSupply) SetCurrentConfirmed(ctx context.Context, milliamps float32, tolerance float64, attempts int) (float32, error) {
	return s.confirm(ctx, float64(milliamps), tolerance, attempts, func() error {
		return s.SetCurrent(ctx, milliamps)
	})
}

// withinRelative reports |got-want|/|want| < tol. A zero target requires
// |got| <= tol.
func withinRelative(want, got, tol float64) bool {
	if want == 0 {
		return math.Abs(got) <= tol
	}
	return math.Abs(got-want)/math.Abs(want) < tol
}
