package tuning

import (
	"math"

	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// multiChannel reports whether queries on channel read that channel's own table.
func multiChannel(s *contracts.State, channel int) bool {
	return channel >= 0 && channel < contracts.NumChannels && s.MultiChannel[channel]
}

// active reports whether s carries a registered master's tuning.
func active(s *contracts.State) bool {
	return s != nil && s.Registered
}

// NoteToFrequency returns the frequency a client should play for note on channel.
// Without a registered master the default table answers.
func NoteToFrequency(s *contracts.State, note, channel int) float64 {
	note &= 0x7f
	if !active(s) {
		return defaultTable[note]
	}
	if multiChannel(s, channel) {
		if f := s.Channels[channel][note]; f != contracts.UseDefault {
			return f
		}
	}
	if f := s.Shared[note]; f != contracts.UseDefault {
		return f
	}
	return defaultTable[note]
}

// RetuningInSemitones returns how far note sits from its 12-TET pitch, in semitones.
func RetuningInSemitones(s *contracts.State, note, channel int) float64 {
	return 12 * math.Log2(RetuningAsRatio(s, note, channel))
}

// RetuningAsRatio returns the ratio between the tuned and the 12-TET frequency of note.
func RetuningAsRatio(s *contracts.State, note, channel int) float64 {
	return NoteToFrequency(s, note, channel) / DefaultFrequency(note)
}

// ShouldFilterNote reports whether clients should not play note on channel.
func ShouldFilterNote(s *contracts.State, note, channel int) bool {
	note &= 0x7f
	if !active(s) {
		return false
	}
	if multiChannel(s, channel) {
		return s.ChannelFilters[channel][note]
	}
	return s.SharedFilter[note]
}

// ScaleName returns the current scale name, or the default one without a master.
func ScaleName(s *contracts.State) string {
	if !active(s) || s.ScaleName == "" {
		return contracts.DefaultScaleName
	}
	return s.ScaleName
}

// FrequencyToNote returns the note on channel whose frequency is closest to freq in
// pitch. Filtered notes only win when every note is filtered. Ties go to the lowest note.
func FrequencyToNote(s *contracts.State, freq float64, channel int) int {
	best := newNearest(freq)
	for n := 0; n < contracts.NumNotes; n++ {
		best.offer(s, n, channel)
	}
	note, _ := best.result()
	return note
}

// FrequencyToNoteAndChannel searches every channel for the note closest to freq.
// Ties go to the lowest channel, then the lowest note.
func FrequencyToNoteAndChannel(s *contracts.State, freq float64) (note, channel int) {
	best := newNearest(freq)
	for ch := 0; ch < contracts.NumChannels; ch++ {
		for n := 0; n < contracts.NumNotes; n++ {
			best.offer(s, n, ch)
		}
	}
	return best.result()
}

type candidate struct {
	note, channel int
	distance      float64
	found         bool
}

// nearest tracks the closest playable and the closest filtered candidate separately.
type nearest struct {
	target   float64
	playable candidate
	filtered candidate
}

func newNearest(freq float64) *nearest {
	switch {
	case math.IsInf(freq, 1):
		freq = math.MaxFloat64
	case !(freq > 0):
		// Zero, negative and NaN input have no pitch; clamp to the bottom of the range.
		freq = math.SmallestNonzeroFloat64
	}
	return &nearest{target: Semitones(freq)}
}

func (b *nearest) offer(s *contracts.State, note, channel int) {
	d := math.Abs(Semitones(NoteToFrequency(s, note, channel)) - b.target)
	c := &b.playable
	if ShouldFilterNote(s, note, channel) {
		c = &b.filtered
	}
	if !c.found || d < c.distance {
		*c = candidate{note: note, channel: channel, distance: d, found: true}
	}
}

func (b *nearest) result() (note, channel int) {
	if b.playable.found {
		return b.playable.note, b.playable.channel
	}
	return b.filtered.note, b.filtered.channel
}
