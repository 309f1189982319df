// Package devicesim simulates the current source and the shunt monitor at the
// byte level, so drivers and command-line tools can run without hardware.
//
// Each simulator is a transport.ByteTransport: commands written by the host
// are decoded as the firmware would decode them and the replies are queued
// for reading. Faults can be injected to exercise resynchronization and
// timeout paths.
package devicesim

import (
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/moffa90/go-hdrbench/protocol"
)

// Faults describes link misbehavior applied to frames the device sends.
type Faults struct {
	// Mute drops every command reply. The sample stream is not affected.
	Mute bool

	// CorruptEvery flips the checksum of every Nth outgoing frame (0 disables)
	CorruptEvery int

	// NoiseBytes is the number of random bytes sent ahead of each frame.
	// Noise never contains the start marker.
	NoiseBytes int
}

type options struct {
	log        *zap.Logger
	faults     Faults
	seed       uint64
	gain       float64
	sampleRate float64
	noiseMA    float64
}

func defaultOptions() options {
	return options{
		log:        zap.NewNop(),
		seed:       1,
		gain:       1,
		sampleRate: 1000,
	}
}

func newOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

// Option configures a simulator.
type Option func(*options)

// WithLogger sets the logger for simulated device activity.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.log = logger
	}
}

// WithFaults sets the initial fault configuration.
func WithFaults(f Faults) Option {
	return func(o *options) {
		o.faults = f
	}
}

// WithSeed seeds the generator used for noise bytes and sample noise.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithGain scales the current source output relative to its nominal
// setting, so 1.02 models a source running 2% high.
func WithGain(gain float64) Option {
	return func(o *options) {
		if gain > 0 {
			o.gain = gain
		}
	}
}

// WithSampleRate sets the shunt monitor's sample rate in samples per second.
func WithSampleRate(hz float64) Option {
	return func(o *options) {
		if hz > 0 {
			o.sampleRate = hz
		}
	}
}

// WithNoise adds Gaussian noise with the given standard deviation (mA) to
// every streamed sample.
func WithNoise(stddevMA float64) Option {
	return func(o *options) {
		if stddevMA >= 0 {
			o.noiseMA = stddevMA
		}
	}
}

// faulter applies Faults to outgoing frames. Callers serialize access.
type faulter struct {
	faults Faults
	rng    *rand.Rand
	sent   int
}

func newFaulter(o options) *faulter {
	return &faulter{
		faults: o.faults,
		rng:    rand.New(rand.NewPCG(o.seed, o.seed^0x9E3779B97F4A7C15)),
	}
}

// apply returns the bytes to put on the wire for frame.
func (f *faulter) apply(frame []byte, reply bool) []byte {
	if reply && f.faults.Mute {
		return nil
	}
	f.sent++

	out := make([]byte, 0, f.faults.NoiseBytes+len(frame))
	for range f.faults.NoiseBytes {
		b := byte(f.rng.IntN(256))
		if b == protocol.StartMarker {
			b = ^b
		}
		out = append(out, b)
	}
	out = append(out, frame...)

	if f.faults.CorruptEvery > 0 && f.sent%f.faults.CorruptEvery == 0 {
		out[len(out)-1] ^= 0xFF
	}
	return out
}

// decodeCommands feeds written bytes through the device-side decoder and
// calls handle for every well-formed command.
func decodeCommands(dec *protocol.Decoder, log *zap.Logger, written []byte, handle func(protocol.Command) []byte) []byte {
	var out []byte
	for _, b := range written {
		frame, err := dec.Step(b)
		if err != nil {
			log.Debug("dropped corrupt command", zap.Error(err))
			continue
		}
		if frame == nil {
			continue
		}

		cmd, err := protocol.ParseCommand(frame)
		if err != nil {
			log.Debug("dropped unknown command", zap.Stringer("frame", frame), zap.Error(err))
			continue
		}
		out = append(out, handle(cmd)...)
	}
	return out
}
