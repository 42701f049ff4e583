// Package tuningcsv loads multi-channel tunings from CSV files with a header row
// followed by frequency,note,channel rows.
package tuningcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/leandrodaf/mtsesp/internal/tuning"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// Row is one note tuning.
type Row struct {
	Frequency float64
	Note      int
	Channel   int
}

// ReadFile reads the rows of the CSV file at path.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses a header row and then frequency,note,channel rows.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", contracts.ErrFormat)
		}
		return nil, fmt.Errorf("%w: %v", contracts.ErrFormat, err)
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contracts.ErrFormat, err)
		}
		line, _ := cr.FieldPos(0)
		row, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", contracts.ErrFormat, line, err)
		}
		rows = append(rows, row)
	}
}

func parseRow(record []string) (Row, error) {
	freq, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
	if err != nil || !tuning.ValidFrequency(freq) {
		return Row{}, fmt.Errorf("bad frequency %q", record[0])
	}
	note, err := strconv.Atoi(strings.TrimSpace(record[1]))
	if err != nil || note < 0 || note >= contracts.NumNotes {
		return Row{}, fmt.Errorf("bad note %q", record[1])
	}
	channel, err := strconv.Atoi(strings.TrimSpace(record[2]))
	if err != nil || channel < 0 || channel >= contracts.NumChannels {
		return Row{}, fmt.Errorf("bad channel %q", record[2])
	}
	return Row{Frequency: freq, Note: note, Channel: channel}, nil
}

// Tuner accepts a batch of note tunings as one update.
type Tuner interface {
	SetNoteTuningBatch(changes []contracts.NoteTuning, enable ...int) error
}

// Apply writes the rows and enables multi-channel tuning on every channel in a
// single update. A later row for the same note and channel wins.
func Apply(t Tuner, rows []Row) error {
	changes := make([]contracts.NoteTuning, len(rows))
	for i, row := range rows {
		changes[i] = contracts.NoteTuning{Frequency: row.Frequency, Note: row.Note, Channel: row.Channel}
	}
	enable := make([]int, contracts.NumChannels)
	for ch := range enable {
		enable[ch] = ch
	}
	return t.SetNoteTuningBatch(changes, enable...)
}
