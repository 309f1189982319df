package devicesim

import (
	"context"
	"errors"

	"github.com/moffa90/go-hdrbench/device"
)

// Bench is a current source wired through a shunt monitor, the usual
// calibration setup.
type Bench struct {
	Source  *CurrentSource
	Monitor *ShuntMonitor
}

// NewBench creates a source and a monitor that measures the source's output.
// Options apply to both devices; the monitor streams once Start is called.
func NewBench(mode device.SupplyMode, opts ...Option) *Bench {
	src := NewCurrentSource(mode, opts...)
	mon := NewShuntMonitor(opts...)
	mon.SetSource(func() float64 { return float64(src.SettingMA()) })
	return &Bench{Source: src, Monitor: mon}
}

// Start starts the monitor's sample stream.
func (b *Bench) Start(ctx context.Context) {
	b.Monitor.Start(ctx)
}

// Close closes both devices.
func (b *Bench) Close() error {
	return errors.Join(b.Monitor.Close(), b.Source.Close())
}
