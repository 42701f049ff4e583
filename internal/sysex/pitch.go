package sysex

import (
	"math"

	"github.com/leandrodaf/mtsesp/internal/tuning"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// Pitch is the three-byte MIDI Tuning Standard frequency word: a semitone number
// followed by a 14-bit fraction of a semitone, most significant bits first.
type Pitch [3]byte

// NoChange is the reserved Pitch meaning "leave this note as it is".
var NoChange = Pitch{0x7f, 0x7f, 0x7f}

// fractionSteps is the number of fraction steps per semitone.
const fractionSteps = 1 << 14

// Resolution is the size of one fraction step in semitones.
const Resolution = 1.0 / fractionSteps

// EncodePitch converts a frequency to its Pitch word, rounding to the nearest step.
// Frequencies below note 0 clamp to 00 00 00 and above the top of the range to
// 7F 7F 7E. UseDefault and invalid frequencies encode as NoChange.
func EncodePitch(freq float64) Pitch {
	if !(freq > 0) || math.IsInf(freq, 0) {
		return NoChange
	}
	semis := tuning.Semitones(freq)
	if semis <= 0 {
		return Pitch{0, 0, 0}
	}
	whole := math.Floor(semis)
	frac := math.Round((semis - whole) * fractionSteps)
	if frac >= fractionSteps {
		whole++
		frac = 0
	}
	if whole > 127 || (whole == 127 && frac >= fractionSteps-1) {
		return Pitch{0x7f, 0x7f, 0x7e}
	}
	f := int(frac)
	return Pitch{byte(whole), byte(f >> 7), byte(f & 0x7f)}
}

// Semitones returns the fractional MIDI note number of p and false for NoChange.
func (p Pitch) Semitones() (float64, bool) {
	if p == NoChange {
		return 0, false
	}
	frac := int(p[1])<<7 | int(p[2])
	return float64(p[0]) + float64(frac)/fractionSteps, true
}

// Frequency returns the frequency of p, or contracts.UseDefault for NoChange.
func (p Pitch) Frequency() float64 {
	semis, ok := p.Semitones()
	if !ok {
		return contracts.UseDefault
	}
	return tuning.FrequencyOf(semis)
}
