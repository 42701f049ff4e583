package scala

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// Unmapped marks a key in KeyboardMapping.Keys that has no scale degree.
const Unmapped = -1

// kbmHeaderFields is the number of fixed header values in a .kbm file.
const kbmHeaderFields = 7

// KeyboardMapping is a parsed .kbm file.
type KeyboardMapping struct {
	Size               int     // Keys per mapping repeat; 0 maps every key to the next degree.
	FirstKey           int     // Lowest retuned MIDI note.
	LastKey            int     // Highest retuned MIDI note.
	MiddleKey          int     // Key that plays the first mapping entry.
	ReferenceKey       int     // Key whose frequency is given.
	ReferenceFrequency float64 // Frequency of ReferenceKey in Hz.
	FormalOctave       int     // Scale degree reached after one mapping repeat; 0 uses the scale size.
	Keys               []int   // Scale degree per key of the repeat, or Unmapped.
}

// StandardMapping maps every MIDI key linearly onto the scale, degree 0 on key 60
// and key 69 at 440 Hz.
func StandardMapping() *KeyboardMapping {
	return &KeyboardMapping{
		FirstKey:           0,
		LastKey:            contracts.NumNotes - 1,
		MiddleKey:          60,
		ReferenceKey:       69,
		ReferenceFrequency: 440,
	}
}

// Validate checks the invariants a usable mapping must hold.
func (m *KeyboardMapping) Validate() error {
	keys := []struct {
		name string
		key  int
	}{
		{"first key", m.FirstKey},
		{"last key", m.LastKey},
		{"middle key", m.MiddleKey},
		{"reference key", m.ReferenceKey},
	}
	for _, k := range keys {
		if k.key < 0 || k.key >= contracts.NumNotes {
			return fmt.Errorf("%w: %s %d outside 0-127", contracts.ErrFormat, k.name, k.key)
		}
	}
	if m.FirstKey > m.LastKey {
		return fmt.Errorf("%w: first key %d above last key %d", contracts.ErrFormat, m.FirstKey, m.LastKey)
	}
	if m.MiddleKey < m.FirstKey || m.MiddleKey > m.LastKey {
		return fmt.Errorf("%w: middle key %d outside %d-%d", contracts.ErrFormat, m.MiddleKey, m.FirstKey, m.LastKey)
	}
	if !(m.ReferenceFrequency > 0) || math.IsInf(m.ReferenceFrequency, 0) {
		return fmt.Errorf("%w: reference frequency %v must be positive", contracts.ErrFormat, m.ReferenceFrequency)
	}
	if m.Size < 0 || m.FormalOctave < 0 {
		return fmt.Errorf("%w: negative map size or formal octave", contracts.ErrFormat)
	}
	if len(m.Keys) != m.Size {
		return fmt.Errorf("%w: map size %d but %d entries", contracts.ErrFormat, m.Size, len(m.Keys))
	}
	for i, d := range m.Keys {
		if d < Unmapped {
			return fmt.Errorf("%w: entry %d has negative degree %d", contracts.ErrFormat, i, d)
		}
	}
	return nil
}

// ReadKeyboardMappingFile parses the .kbm file at path.
func ReadKeyboardMappingFile(path string) (*KeyboardMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ParseKeyboardMapping(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseKeyboardMappingString parses .kbm text.
func ParseKeyboardMappingString(text string) (*KeyboardMapping, error) {
	return ParseKeyboardMapping(strings.NewReader(text))
}

// ParseKeyboardMapping parses .kbm text: seven header values followed by exactly
// Size entries, where "x" or -1 leaves a key unmapped.
func ParseKeyboardMapping(r io.Reader) (*KeyboardMapping, error) {
	lines, err := contentLines(r, true)
	if err != nil {
		return nil, err
	}
	if len(lines) < kbmHeaderFields {
		return nil, fmt.Errorf("%w: expected %d header values, found %d", contracts.ErrFormat, kbmHeaderFields, len(lines))
	}

	var ints [kbmHeaderFields]int
	var refFreq float64
	for i, l := range lines[:kbmHeaderFields] {
		tok := firstToken(l.text)
		if i == 5 {
			refFreq, err = strconv.ParseFloat(tok, 64)
		} else {
			ints[i], err = strconv.Atoi(tok)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q is not a number", contracts.ErrFormat, l.number, tok)
		}
	}

	m := &KeyboardMapping{
		Size:               ints[0],
		FirstKey:           ints[1],
		LastKey:            ints[2],
		MiddleKey:          ints[3],
		ReferenceKey:       ints[4],
		ReferenceFrequency: refFreq,
		FormalOctave:       ints[6],
	}
	if m.Size < 0 {
		return nil, fmt.Errorf("%w: line %d: negative map size %d", contracts.ErrFormat, lines[0].number, m.Size)
	}

	entries := lines[kbmHeaderFields:]
	if len(entries) != m.Size {
		return nil, fmt.Errorf("%w: map size %d but %d entries", contracts.ErrFormat, m.Size, len(entries))
	}
	m.Keys = make([]int, 0, m.Size)
	for _, l := range entries {
		tok := firstToken(l.text)
		if strings.EqualFold(tok, "x") {
			m.Keys = append(m.Keys, Unmapped)
			continue
		}
		d, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: entry %q is neither a degree nor x", contracts.ErrFormat, l.number, tok)
		}
		m.Keys = append(m.Keys, d)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
