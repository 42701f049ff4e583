// Package scala reads Scala scale (.scl) and keyboard mapping (.kbm) files and
// resolves them into MIDI tuning tables.
package scala

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// Scale is a parsed .scl file. Degrees[0] is always the unison; the last pitch
// listed in the file is the repeat interval and is kept in OctaveRatio.
type Scale struct {
	Description string
	Degrees     []float64
	OctaveRatio float64
}

// Count returns the number of notes per repeat interval.
func (s *Scale) Count() int {
	return len(s.Degrees)
}

// Ratio returns the ratio of an absolute degree, which may lie outside the first
// repeat interval in either direction.
func (s *Scale) Ratio(degree int) float64 {
	n := s.Count()
	octave, idx := floorDiv(degree, n)
	return math.Pow(s.OctaveRatio, float64(octave)) * s.Degrees[idx]
}

// Log2Ratio returns the base-2 logarithm of Ratio(degree). It stays finite for
// degrees whose ratio would overflow a float64.
func (s *Scale) Log2Ratio(degree int) float64 {
	octave, idx := floorDiv(degree, s.Count())
	return float64(octave)*math.Log2(s.OctaveRatio) + math.Log2(s.Degrees[idx])
}

// Validate checks the invariants a usable scale must hold.
func (s *Scale) Validate() error {
	if len(s.Degrees) == 0 || s.Degrees[0] != 1 {
		return fmt.Errorf("%w: scale must start at the unison", contracts.ErrFormat)
	}
	for i := 1; i < len(s.Degrees); i++ {
		if !(s.Degrees[i] > s.Degrees[i-1]) {
			return fmt.Errorf("%w: degree %d (%v) does not rise above degree %d", contracts.ErrFormat, i, s.Degrees[i], i-1)
		}
	}
	if !(s.OctaveRatio > s.Degrees[len(s.Degrees)-1]) || math.IsInf(s.OctaveRatio, 0) {
		return fmt.Errorf("%w: repeat ratio %v must exceed every degree", contracts.ErrFormat, s.OctaveRatio)
	}
	return nil
}

// ReadScaleFile parses the .scl file at path.
func ReadScaleFile(path string) (*Scale, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ParseScale(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScaleString parses .scl text.
func ParseScaleString(text string) (*Scale, error) {
	return ParseScale(strings.NewReader(text))
}

// ParseScale parses .scl text. No Scale is returned unless the whole input is valid.
func ParseScale(r io.Reader) (*Scale, error) {
	lines, err := contentLines(r, false)
	if err != nil {
		return nil, err
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: missing description or note count", contracts.ErrFormat)
	}

	countLine := lines[1]
	count, err := strconv.Atoi(firstToken(countLine.text))
	if err != nil {
		return nil, fmt.Errorf("%w: line %d: note count %q is not a number", contracts.ErrFormat, countLine.number, countLine.text)
	}
	if count < 1 {
		return nil, fmt.Errorf("%w: line %d: note count must be at least 1, got %d", contracts.ErrFormat, countLine.number, count)
	}

	pitches := trimTrailingBlank(lines[2:])
	if len(pitches) != count {
		return nil, fmt.Errorf("%w: declared %d notes, found %d", contracts.ErrFormat, count, len(pitches))
	}

	ratios := make([]float64, 0, count)
	for _, l := range pitches {
		ratio, err := parsePitch(firstToken(l.text))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", contracts.ErrFormat, l.number, err)
		}
		ratios = append(ratios, ratio)
	}

	s := &Scale{
		Description: strings.TrimSpace(lines[0].text),
		Degrees:     append([]float64{1}, ratios[:count-1]...),
		OctaveRatio: ratios[count-1],
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// parsePitch reads a cents value (contains a '.') or a ratio (a/b or a bare integer).
func parsePitch(tok string) (float64, error) {
	if tok == "" {
		return 0, fmt.Errorf("empty pitch")
	}
	if strings.Contains(tok, ".") {
		cents, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsInf(cents, 0) || math.IsNaN(cents) {
			return 0, fmt.Errorf("bad cents value %q", tok)
		}
		return math.Pow(2, cents/1200), nil
	}

	num, den := tok, "1"
	if i := strings.IndexByte(tok, '/'); i >= 0 {
		num, den = tok[:i], tok[i+1:]
	}
	a, errA := strconv.ParseUint(num, 10, 63)
	b, errB := strconv.ParseUint(den, 10, 63)
	if errA != nil || errB != nil {
		return 0, fmt.Errorf("bad ratio %q", tok)
	}
	if a == 0 || b == 0 {
		return 0, fmt.Errorf("ratio %q must be positive", tok)
	}
	return float64(a) / float64(b), nil
}

type line struct {
	number int
	text   string
}

// contentLines returns the non-comment lines of r with their 1-based line numbers.
// Blank lines are dropped too when skipBlank is set.
func contentLines(r io.Reader, skipBlank bool) ([]line, error) {
	var out []line
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(strings.TrimLeft(text, " \t"), "!") {
			continue
		}
		if skipBlank && strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, line{number: n, text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func trimTrailingBlank(lines []line) []line {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1].text) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// floorDiv returns the floored quotient and the non-negative remainder of a/b.
func floorDiv(a, b int) (q, r int) {
	q, r = a/b, a%b
	if r < 0 {
		q--
		r += b
	}
	return q, r
}
