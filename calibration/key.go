package calibration

import (
	"fmt"
	"strings"
)

// Key names one calibration parameter of the shunt monitor.
type Key string

// Calibration keys, in wire index order.
const (
	R19  Key = "R19"
	R17  Key = "R17"
	R15  Key = "R15"
	R13  Key = "R13"
	R11  Key = "R11"
	R9   Key = "R9"
	R2   Key = "R2"
	R1   Key = "R1"
	RFET Key = "R_FET"
)

// Keys lists every calibration key in wire index order.
var Keys = []Key{R19, R17, R15, R13, R11, R9, R2, R1, RFET}

// Index returns the wire index of k.
func (k Key) Index() (byte, error) {
	for i, known := range Keys {
		if known == k {
			return byte(i), nil
		}
	}
	return 0, &UnknownKeyError{Key: string(k)}
}

// KeyAt returns the key stored at wire index i.
func KeyAt(i byte) (Key, error) {
	if int(i) >= len(Keys) {
		return "", fmt.Errorf("calibration index %d out of range 0-%d", i, len(Keys)-1)
	}
	return Keys[i], nil
}

// ParseKey resolves a key name. Matching ignores case, so "r_fet" and
// "R_FET" name the same key.
func ParseKey(s string) (Key, error) {
	for _, k := range Keys {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", &UnknownKeyError{Key: s}
}

// UnknownKeyError indicates a key that is not part of the calibration map.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown calibration key %q", e.Key)
}
