// Package tuning holds the default 12-TET table and the read-side queries that
// clients run against an authority snapshot.
package tuning

import (
	"math"

	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

const (
	// ReferenceNote is the MIDI note of concert A.
	ReferenceNote = 69
	// ReferenceFrequency is the frequency of ReferenceNote in the default tuning.
	ReferenceFrequency = 440.0
)

var defaultTable = func() contracts.TuningTable {
	var t contracts.TuningTable
	for n := range t {
		t[n] = ReferenceFrequency * math.Pow(2, float64(n-ReferenceNote)/12)
	}
	return t
}()

// Default returns a copy of the immutable 12-TET table.
func Default() contracts.TuningTable {
	return defaultTable
}

// DefaultFrequency returns the 12-TET frequency of a note, masked to 7 bits.
func DefaultFrequency(note int) float64 {
	return defaultTable[note&0x7f]
}

// Semitones converts a frequency to a fractional MIDI note number in 12-TET.
func Semitones(freq float64) float64 {
	return ReferenceNote + 12*math.Log2(freq/ReferenceFrequency)
}

// FrequencyOf converts a fractional MIDI note number back to Hz.
func FrequencyOf(semitones float64) float64 {
	return ReferenceFrequency * math.Pow(2, (semitones-ReferenceNote)/12)
}

// Concrete replaces every UseDefault entry with its 12-TET frequency.
func Concrete(t contracts.TuningTable) contracts.TuningTable {
	for n, f := range t {
		if f == contracts.UseDefault {
			t[n] = defaultTable[n]
		}
	}
	return t
}

// ValidFrequency reports whether f can be stored in a tuning table.
func ValidFrequency(f float64) bool {
	return f >= 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
