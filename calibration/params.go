package calibration

import (
	"fmt"
	"math"
)

// Params holds calibration values in ohms, keyed by parameter.
// A file need not carry every key; only the keys present are applied.
type Params map[Key]float64

// Ordered returns the keys present in p, in wire index order.
func (p Params) Ordered() []Key {
	out := make([]Key, 0, len(p))
	for _, k := range Keys {
		if _, ok := p[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Validate checks that every key is known and every value is finite.
func (p Params) Validate() error {
	for k, v := range p {
		if _, err := k.Index(); err != nil {
			return err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("calibration value for %s is not finite: %v", k, v)
		}
	}
	return nil
}

// Clone returns a copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
