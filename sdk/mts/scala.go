package mts

import (
	"github.com/leandrodaf/mtsesp/internal/scala"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// ScalaFilesToFrequencies resolves a .scl file under an optional .kbm file into
// 128 frequencies. Keys the mapping leaves unmapped get their 12-TET frequency.
func ScalaFilesToFrequencies(sclPath, kbmPath string) (contracts.TuningTable, error) {
	scale, mapping, err := scala.ReadFiles(sclPath, kbmPath)
	if err != nil {
		return contracts.TuningTable{}, err
	}
	return scala.Frequencies(scale, mapping)
}
