package devicesim

import (
	"sync"

	"go.uber.org/zap"

	"github.com/moffa90/go-hdrbench/device"
	"github.com/moffa90/go-hdrbench/protocol"
	"github.com/moffa90/go-hdrbench/transport"
)

// CurrentSource simulates the programmable current source. It answers every
// command valid for its reference mode with a Current Setting frame and
// ignores the rest, as the firmware does.
type CurrentSource struct {
	*transport.Buffer

	mode device.SupplyMode
	opts options

	mu        sync.Mutex
	dec       *protocol.Decoder
	fault     *faulter
	settingMA float32
	accepted  int
}

// NewCurrentSource creates a simulated current source built with mode.
func NewCurrentSource(mode device.SupplyMode, opts ...Option) *CurrentSource {
	o := newOptions(opts)
	s := &CurrentSource{
		Buffer: transport.NewBuffer(),
		mode:   mode,
		opts:   o,
		dec:    protocol.NewDecoder(protocol.SupplyLayout),
		fault:  newFaulter(o),
	}
	s.Buffer.SetResponder(s.respond)
	return s
}

// Mode returns the reference mode the source was built with.
func (s *CurrentSource) Mode() device.SupplyMode {
	return s.mode
}

// SettingMA returns the current the source is producing.
func (s *CurrentSource) SettingMA() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingMA
}

// Accepted returns the number of commands the source acted on.
func (s *CurrentSource) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// SetFaults replaces the fault configuration.
func (s *CurrentSource) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault.faults = f
}

func (s *CurrentSource) respond(written []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeCommands(s.dec, s.opts.log, written, s.handle)
}

func (s *CurrentSource) handle(cmd protocol.Command) []byte {
	var nominal float64

	switch c := cmd.(type) {
	case protocol.StageCommand:
		if s.mode != device.FixedReference {
			s.opts.log.Debug("stage command ignored", zap.Stringer("mode", s.mode))
			return nil
		}
		ma, err := device.NominalStageCurrent(c.Stage)
		if err != nil {
			return nil
		}
		nominal = ma

	case protocol.CurrentCommand:
		if s.mode != device.AdjustableReference {
			s.opts.log.Debug("current command ignored", zap.Stringer("mode", s.mode))
			return nil
		}
		nominal = float64(c.Milliamps)

	default:
		return nil
	}

	s.settingMA = float32(nominal * s.opts.gain)
	s.accepted++
	s.opts.log.Debug("current source setting", zap.Float32("ma", s.settingMA))

	reply, err := protocol.EncodeCurrentSetting(s.settingMA)
	if err != nil {
		return nil
	}
	return s.fault.apply(reply, true)
}
