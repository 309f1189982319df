package devicesim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/moffa90/go-hdrbench/calibration"
	"github.com/moffa90/go-hdrbench/protocol"
	"github.com/moffa90/go-hdrbench/transport"
)

// ShuntMonitor simulates the shunt monitor: it stores calibration
// parameters, answers config reads, and once started streams samples of the
// current reported by its source.
type ShuntMonitor struct {
	*transport.Buffer

	opts options

	mu     sync.Mutex
	dec    *protocol.Decoder
	fault  *faulter
	config []float32
	source func() float64

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewShuntMonitor creates a simulated shunt monitor. It measures 0 mA until
// SetSource is called.
func NewShuntMonitor(opts ...Option) *ShuntMonitor {
	o := newOptions(opts)
	m := &ShuntMonitor{
		Buffer: transport.NewBuffer(),
		opts:   o,
		dec:    protocol.NewDecoder(protocol.SupplyLayout),
		fault:  newFaulter(o),
		config: make([]float32, len(calibration.Keys)),
		source: func() float64 { return 0 },
	}
	m.Buffer.SetResponder(m.respond)
	return m
}

// SetSource sets the function reporting the current through the shunt in mA.
func (m *ShuntMonitor) SetSource(fn func() float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = fn
}

// SetFaults replaces the fault configuration.
func (m *ShuntMonitor) SetFaults(f Faults) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault.faults = f
}

// Config returns the stored value of the parameter at index.
func (m *ShuntMonitor) Config(index byte) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(index) >= len(m.config) {
		return 0
	}
	return m.config[index]
}

// Start begins streaming samples at the configured rate until ctx ends or
// the monitor is closed. Calling Start more than once has no effect.
func (m *ShuntMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.stream(ctx, m.done)
}

// Close stops the stream and closes the link.
func (m *ShuntMonitor) Close() error {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		cancel, done := m.cancel, m.done
		m.mu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}
	})
	return m.Buffer.Close()
}

func (m *ShuntMonitor) stream(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	limiter := rate.NewLimiter(rate.Limit(m.opts.sampleRate), 1)
	start := time.Now()

	for {
		if err := limiter.Wait(ctx); err != nil {
			m.opts.log.Debug("sample stream stopped", zap.Error(err))
			return
		}

		m.mu.Lock()
		ma := m.source()
		if m.opts.noiseMA > 0 {
			ma += m.fault.rng.NormFloat64() * m.opts.noiseMA
		}
		frame, err := protocol.EncodeSample(protocol.MeasurementSample{
			Timestamp: uint32(time.Since(start).Microseconds()),
			CurrentMA: float32(ma),
		})
		var out []byte
		if err == nil {
			out = m.fault.apply(frame, false)
		}
		m.mu.Unlock()

		m.Buffer.Feed(out...)
	}
}

func (m *ShuntMonitor) respond(written []byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decodeCommands(m.dec, m.opts.log, written, m.handle)
}

func (m *ShuntMonitor) handle(cmd protocol.Command) []byte {
	switch c := cmd.(type) {
	case protocol.ConfigWriteCommand:
		if int(c.Index) >= len(m.config) {
			m.opts.log.Debug("config write out of range", zap.Uint8("index", c.Index))
			return nil
		}
		m.config[c.Index] = c.Value
		return nil

	case protocol.ConfigReadRequest:
		if int(c.Index) >= len(m.config) {
			m.opts.log.Debug("config read out of range", zap.Uint8("index", c.Index))
			return nil
		}
		reply, err := protocol.EncodeConfigResponse(c.Index, m.config[c.Index])
		if err != nil {
			return nil
		}
		return m.fault.apply(reply, true)
	}
	return nil
}
