package protocol

// Checksum is the running additive checksum used by every frame variant.
//
// The sum starts at zero and covers every byte after the start marker up to
// and including the last payload byte, wrapping modulo 256.
type Checksum byte

// Add accumulates b and returns the running sum.
func (c *Checksum) Add(b byte) byte {
	*c += Checksum(b)
	return byte(*c)
}

// AddBytes accumulates every byte of p and returns the running sum.
func (c *Checksum) AddBytes(p []byte) byte {
	for _, b := range p {
		*c += Checksum(b)
	}
	return byte(*c)
}

// Reset clears the running sum.
func (c *Checksum) Reset() {
	*c = 0
}

// Sum returns the running sum.
func (c Checksum) Sum() byte {
	return byte(c)
}

// Verify reports whether received equals the running sum.
func (c Checksum) Verify(received byte) bool {
	return byte(c) == received
}

// Sum computes the checksum of p from a zero seed.
func Sum(p []byte) byte {
	var c Checksum
	return c.AddBytes(p)
}
