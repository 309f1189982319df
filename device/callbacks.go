package device

import (
	"math"

	"github.com/moffa90/go-hdrbench/protocol"
)

// SampleCallback is called for every sample decoded while streaming.
// Implementations should return quickly; the stream is decoded on the
// caller's goroutine and a slow callback delays the next window.
type SampleCallback func(protocol.MeasurementSample)

// Stats summarizes a run of measurement samples.
type Stats struct {
	// Count is the number of samples
	Count int

	// MeanMA is the mean current in mA (zero when Count is zero)
	MeanMA float64

	// StdDevMA is the population standard deviation in mA
	StdDevMA float64
}

// Summarize computes count, mean and population standard deviation of the
// sample currents.
func Summarize(samples []protocol.MeasurementSample) Stats {
	n := len(samples)
	if n == 0 {
		return Stats{}
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s.CurrentMA)
	}
	mean := sum / float64(n)

	var sq float64
	for _, s := range samples {
		d := float64(s.CurrentMA) - mean
		sq += d * d
	}

	return Stats{
		Count:    n,
		MeanMA:   mean,
		StdDevMA: math.Sqrt(sq / float64(n)),
	}
}

// RelativeError returns (measured - reference) / reference.
func (s Stats) RelativeError(referenceMA float64) float64 {
	return (s.MeanMA - referenceMA) / referenceMA
}
