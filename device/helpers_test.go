package device

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-hdrbench/metrics"
	"github.com/moffa90/go-hdrbench/protocol"
	"github.com/moffa90/go-hdrbench/transport"
)

// fastOptions removes the pacing delays so tests run quickly.
var fastOptions = []Option{
	WithRetryDelay(0),
	WithConfigSettle(0),
	WithTimeout(50 * time.Millisecond),
	WithConfigTimeout(50 * time.Millisecond),
}

func opts(extra ...Option) []Option {
	return append(append([]Option{}, fastOptions...), extra...)
}

// respondTo installs a responder that decodes host commands and answers
// each one with fn's bytes.
func respondTo(buf *transport.Buffer, fn func(cmd protocol.Command) []byte) {
	dec := protocol.NewDecoder(protocol.SupplyLayout)
	buf.SetResponder(func(written []byte) []byte {
		var out []byte
		for _, b := range written {
			frame, err := dec.Step(b)
			if err != nil || frame == nil {
				continue
			}
			cmd, err := protocol.ParseCommand(frame)
			if err != nil {
				continue
			}
			out = append(out, fn(cmd)...)
		}
		return out
	})
}

func currentSetting(ma float32) []byte {
	frame, err := protocol.EncodeCurrentSetting(ma)
	if err != nil {
		panic(err)
	}
	return frame
}

func configResponse(index byte, value float32) []byte {
	frame, err := protocol.EncodeConfigResponse(index, value)
	if err != nil {
		panic(err)
	}
	return frame
}

func sampleFrame(ts uint32, ma float32) []byte {
	frame, err := protocol.EncodeSample(protocol.MeasurementSample{Timestamp: ts, CurrentMA: ma})
	if err != nil {
		panic(err)
	}
	return frame
}

// echoSupply answers every command with a current setting. Stages echo
// their nominal current scaled by gain.
func echoSupply(buf *transport.Buffer, gain func() float64) {
	respondTo(buf, func(cmd protocol.Command) []byte {
		switch c := cmd.(type) {
		case protocol.StageCommand:
			return currentSetting(float32(nominalStageCurrentMA[c.Stage] * gain()))
		case protocol.CurrentCommand:
			return currentSetting(float32(float64(c.Milliamps) * gain()))
		}
		return nil
	})
}

// fakeMonitor stores config writes and answers config reads.
type fakeMonitor struct {
	mu     sync.Mutex
	values map[byte]float32
	writes map[byte]int

	// corrupt, when set, rewrites a stored value on readback
	corrupt func(index byte, v float32) float32
}

func newFakeMonitor(buf *transport.Buffer) *fakeMonitor {
	m := &fakeMonitor{values: map[byte]float32{}, writes: map[byte]int{}}
	respondTo(buf, func(cmd protocol.Command) []byte {
		m.mu.Lock()
		defer m.mu.Unlock()

		switch c := cmd.(type) {
		case protocol.ConfigWriteCommand:
			m.values[c.Index] = c.Value
			m.writes[c.Index]++
		case protocol.ConfigReadRequest:
			v := m.values[c.Index]
			if m.corrupt != nil {
				v = m.corrupt(c.Index, v)
			}
			return configResponse(c.Index, v)
		}
		return nil
	})
	return m
}

func (m *fakeMonitor) writeCount(index byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[index]
}

func (m *fakeMonitor) value(index byte) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[index]
}

// pushSamples feeds a sample every interval until stop is closed.
func pushSamples(buf *transport.Buffer, interval time.Duration, ma float32, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var ts uint32
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ts++
			buf.Feed(sampleFrame(ts, ma)...)
		}
	}
}

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	return metrics.New(prometheus.NewRegistry())
}

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
