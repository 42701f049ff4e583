package scala

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/leandrodaf/mtsesp/internal/tuning"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

const justMajor = `! major.scl
Just major
 7
 9/8
 5/4
 4/3
 3/2
 5/3
 15/8
 2/1
`

func closeTo(a, b, rel float64) bool {
	return math.Abs(a-b) <= rel*math.Abs(b)
}

func TestParseScale(t *testing.T) {
	s, err := ParseScaleString(justMajor)
	if err != nil {
		t.Fatalf("ParseScale: %v", err)
	}
	if s.Description != "Just major" {
		t.Errorf("description = %q", s.Description)
	}
	if s.Count() != 7 {
		t.Fatalf("Count = %d, want 7", s.Count())
	}
	if s.Degrees[0] != 1 || s.Degrees[2] != 1.25 || s.OctaveRatio != 2 {
		t.Errorf("degrees = %v, octave = %v", s.Degrees, s.OctaveRatio)
	}
}

func TestParseScalePitchForms(t *testing.T) {
	s, err := ParseScaleString("forms\n4\n100.0 cents with label\n 700.5\n3/2\n3\n")
	if err != nil {
		t.Fatalf("ParseScale: %v", err)
	}
	want := []float64{1, math.Pow(2, 100.0/1200), math.Pow(2, 700.5/1200), 1.5}
	for i, w := range want {
		if !closeTo(s.Degrees[i], w, 1e-12) {
			t.Errorf("degree %d = %v, want %v", i, s.Degrees[i], w)
		}
	}
	if s.OctaveRatio != 3 {
		t.Errorf("bare integer repeat = %v, want 3", s.OctaveRatio)
	}
}

func TestParseScaleErrors(t *testing.T) {
	tests := map[string]string{
		"empty":              "",
		"missing count":      "desc only\n",
		"non-numeric count":  "desc\nseven\n9/8\n",
		"zero count":         "desc\n0\n",
		"too few pitches":    "desc\n3\n9/8\n2/1\n",
		"too many pitches":   "desc\n1\n9/8\n2/1\n",
		"bad ratio":          "desc\n2\n9/x\n2/1\n",
		"zero denominator":   "desc\n2\n9/0\n2/1\n",
		"negative ratio":     "desc\n2\n-9/8\n2/1\n",
		"bad cents":          "desc\n2\n1.2.3\n2/1\n",
		"not increasing":     "desc\n3\n5/4\n9/8\n2/1\n",
		"octave below scale": "desc\n2\n3/2\n4/3\n",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			s, err := ParseScaleString(text)
			if !errors.Is(err, contracts.ErrFormat) {
				t.Fatalf("err = %v, want ErrFormat", err)
			}
			if s != nil {
				t.Fatal("partial scale returned on error")
			}
		})
	}
}

func TestParseKeyboardMapping(t *testing.T) {
	m, err := ReadKeyboardMappingFile(filepath.Join("testdata", "white_keys.kbm"))
	if err != nil {
		t.Fatalf("ReadKeyboardMappingFile: %v", err)
	}
	if m.Size != 12 || m.FirstKey != 21 || m.LastKey != 108 || m.MiddleKey != 60 ||
		m.ReferenceKey != 69 || m.ReferenceFrequency != 440 || m.FormalOctave != 7 {
		t.Errorf("header = %+v", m)
	}
	if m.Keys[1] != Unmapped || m.Keys[11] != 6 {
		t.Errorf("keys = %v", m.Keys)
	}
}

func TestParseKeyboardMappingErrors(t *testing.T) {
	header := "0\n0\n127\n60\n69\n440.0\n0\n"
	tests := map[string]string{
		"short header":        "12\n0\n127\n",
		"non-numeric field":   "0\n0\nlast\n60\n69\n440\n0\n",
		"non-numeric freq":    "0\n0\n127\n60\n69\nA4\n0\n",
		"entries beyond size": header + "0\n",
		"missing entries":     "3\n0\n127\n60\n69\n440\n3\n0\n1\n",
		"bad entry":           "1\n0\n127\n60\n69\n440\n1\ny\n",
		"middle out of range": "0\n10\n20\n60\n69\n440\n0\n",
		"zero frequency":      "0\n0\n127\n60\n69\n0\n0\n",
		"key above 127":       "0\n0\n128\n60\n69\n440\n0\n",
		"negative degree":     "1\n0\n127\n60\n69\n440\n1\n-2\n",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			m, err := ParseKeyboardMappingString(text)
			if !errors.Is(err, contracts.ErrFormat) {
				t.Fatalf("err = %v, want ErrFormat", err)
			}
			if m != nil {
				t.Fatal("partial mapping returned on error")
			}
		})
	}
}

func TestParseKeyboardMappingMinusOneIsUnmapped(t *testing.T) {
	m, err := ParseKeyboardMappingString("2\n0\n127\n60\n69\n440\n2\n-1\n1\n")
	if err != nil {
		t.Fatalf("ParseKeyboardMapping: %v", err)
	}
	if m.Keys[0] != Unmapped {
		t.Errorf("-1 parsed as %d", m.Keys[0])
	}
}

func TestResolveJustIntonationFiles(t *testing.T) {
	scale, mapping, err := ReadFiles(filepath.Join("testdata", "ji_12.scl"), filepath.Join("testdata", "ji_12.kbm"))
	if err != nil {
		t.Fatalf("ReadFiles: %v", err)
	}
	f, err := Resolve(scale, mapping)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !closeTo(f[69], 440, 1e-8) {
		t.Errorf("f[69] = %v, want 440", f[69])
	}
	if !closeTo(f[61]/f[60], 16.0/15, 1e-8) {
		t.Errorf("f[61]/f[60] = %v, want 16/15", f[61]/f[60])
	}
	if !closeTo(f[72]/f[60], 2, 1e-8) {
		t.Errorf("octave = %v", f[72]/f[60])
	}
	if !closeTo(f[48]/f[55], 2.0/3, 1e-8) {
		t.Errorf("fifth below middle octave = %v", f[48]/f[55])
	}
}

func TestResolveEqualTemperamentMatchesDefault(t *testing.T) {
	scale, mapping, err := ReadFiles(filepath.Join("testdata", "edo_12.scl"), "")
	if err != nil {
		t.Fatalf("ReadFiles: %v", err)
	}
	f, err := Resolve(scale, mapping)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for n, got := range f {
		if want := tuning.DefaultFrequency(n); !closeTo(got, want, 1e-8) {
			t.Errorf("note %d = %v, want %v", n, got, want)
		}
	}
}

func TestResolveUnmappedKeysAndRange(t *testing.T) {
	scale, err := ParseScaleString(justMajor)
	if err != nil {
		t.Fatal(err)
	}
	mapping, err := ReadKeyboardMappingFile(filepath.Join("testdata", "white_keys.kbm"))
	if err != nil {
		t.Fatal(err)
	}
	f, err := Resolve(scale, mapping)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(f) != contracts.NumNotes {
		t.Fatalf("table has %d entries", len(f))
	}
	for n, v := range f {
		if v != contracts.UseDefault && !(v > 0 && !math.IsInf(v, 0)) {
			t.Errorf("note %d = %v is neither positive nor the sentinel", n, v)
		}
	}
	if f[20] != contracts.UseDefault || f[109] != contracts.UseDefault {
		t.Error("keys outside the mapped range were retuned")
	}
	if f[61] != contracts.UseDefault {
		t.Errorf("black key 61 = %v, want sentinel", f[61])
	}
	if !closeTo(f[69], 440, 1e-12) || !closeTo(f[60], 264, 1e-12) || !closeTo(f[72], 528, 1e-12) {
		t.Errorf("f[60]=%v f[69]=%v f[72]=%v", f[60], f[69], f[72])
	}
	if !closeTo(f[59], 264*15.0/16, 1e-12) {
		t.Errorf("f[59] = %v, want leading tone below middle", f[59])
	}

	concrete, err := Frequencies(scale, mapping)
	if err != nil {
		t.Fatal(err)
	}
	if concrete[61] != tuning.DefaultFrequency(61) {
		t.Errorf("Frequencies left key 61 at %v", concrete[61])
	}
}

func TestResolveUnmappedReference(t *testing.T) {
	scale, _ := ParseScaleString(justMajor)
	mapping, err := ParseKeyboardMappingString("2\n0\n127\n60\n61\n440\n7\n0\nx\n")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve(scale, mapping); !errors.Is(err, contracts.ErrFormat) {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
}

func TestScaleRatioWrapsBelowUnison(t *testing.T) {
	scale, _ := ParseScaleString(justMajor)
	if got := scale.Ratio(-1); !closeTo(got, 15.0/16, 1e-12) {
		t.Errorf("Ratio(-1) = %v", got)
	}
	if got := scale.Ratio(9); !closeTo(got, 2*1.25, 1e-12) {
		t.Errorf("Ratio(9) = %v", got)
	}
}

func TestResolveRejectsUnrepresentableFrequencies(t *testing.T) {
	wide, err := ParseScaleString("wide\n1\n1000000/1\n")
	if err != nil {
		t.Fatalf("ParseScaleString: %v", err)
	}
	if _, err := Resolve(wide, StandardMapping()); !errors.Is(err, contracts.ErrFormat) {
		t.Fatalf("full keyboard err = %v, want ErrFormat", err)
	}

	narrow, err := ParseKeyboardMappingString("0\n20\n100\n60\n69\n440.0\n0\n")
	if err != nil {
		t.Fatalf("ParseKeyboardMappingString: %v", err)
	}
	f, err := Resolve(wide, narrow)
	if err != nil {
		t.Fatalf("Resolve over keys 20-100: %v", err)
	}
	for n, got := range f {
		if n < 20 || n > 100 {
			if got != contracts.UseDefault {
				t.Errorf("note %d outside range = %v", n, got)
			}
			continue
		}
		if !(got > 0) || math.IsInf(got, 0) {
			t.Fatalf("note %d = %v, want a positive finite frequency", n, got)
		}
	}
	if !closeTo(f[69], 440, 1e-12) || !closeTo(f[70]/f[69], 1e6, 1e-9) {
		t.Errorf("f[69] = %v, f[70]/f[69] = %v", f[69], f[70]/f[69])
	}
}
