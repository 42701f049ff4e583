package scala

import (
	"fmt"
	"math"

	"github.com/leandrodaf/mtsesp/internal/tuning"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// Resolve computes the tuning table of scale under mapping. Keys outside the mapped
// range and unmapped keys hold contracts.UseDefault. The reference key sounds at
// exactly the reference frequency.
func Resolve(scale *Scale, mapping *KeyboardMapping) (contracts.TuningTable, error) {
	var table contracts.TuningTable
	if err := scale.Validate(); err != nil {
		return table, err
	}
	if err := mapping.Validate(); err != nil {
		return table, err
	}

	ref, ok := logPitch(scale, mapping, mapping.ReferenceKey)
	if !ok {
		return table, fmt.Errorf("%w: reference key %d is unmapped", contracts.ErrFormat, mapping.ReferenceKey)
	}

	logRef := math.Log2(mapping.ReferenceFrequency)
	for n := range table {
		if n < mapping.FirstKey || n > mapping.LastKey {
			continue
		}
		p, ok := logPitch(scale, mapping, n)
		if !ok {
			continue
		}
		f := math.Exp2(logRef + p - ref)
		if !(f > 0) || math.IsInf(f, 0) {
			return contracts.TuningTable{}, fmt.Errorf("%w: key %d resolves outside the representable frequency range", contracts.ErrFormat, n)
		}
		table[n] = f
	}
	return table, nil
}

// logPitch returns the base-2 logarithm of key's ratio above the middle key, or
// false when key is unmapped.
func logPitch(scale *Scale, mapping *KeyboardMapping, key int) (float64, bool) {
	offset := key - mapping.MiddleKey
	if mapping.Size == 0 {
		return scale.Log2Ratio(offset), true
	}

	octave, idx := floorDiv(offset, mapping.Size)
	degree := mapping.Keys[idx]
	if degree == Unmapped {
		return 0, false
	}
	formal := mapping.FormalOctave
	if formal == 0 {
		formal = scale.Count()
	}
	return scale.Log2Ratio(octave*formal + degree), true
}

// Frequencies resolves scale under mapping and fills unmapped keys with 12-TET.
func Frequencies(scale *Scale, mapping *KeyboardMapping) (contracts.TuningTable, error) {
	table, err := Resolve(scale, mapping)
	if err != nil {
		return table, err
	}
	return tuning.Concrete(table), nil
}

// ReadFiles parses a .scl file and an optional .kbm file. An empty kbmPath uses
// StandardMapping.
func ReadFiles(sclPath, kbmPath string) (*Scale, *KeyboardMapping, error) {
	scale, err := ReadScaleFile(sclPath)
	if err != nil {
		return nil, nil, err
	}
	mapping := StandardMapping()
	if kbmPath != "" {
		if mapping, err = ReadKeyboardMappingFile(kbmPath); err != nil {
			return nil, nil, err
		}
	}
	return scale, mapping, nil
}
