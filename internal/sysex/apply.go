package sysex

import (
	"github.com/leandrodaf/mtsesp/internal/tuning"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// Applier turns decoded tuning messages into authority updates. Every message is
// applied as one table write, so a receiver never sees half of a dump.
type Applier struct {
	Authority contracts.Authority
	Logger    contracts.Logger
	// DeviceChannels routes messages for device ids 0-15 to the table of that
	// channel. Other ids, including AllDevices, target the shared table.
	DeviceChannels bool
}

// NewApplier creates an Applier writing to a.
func NewApplier(a contracts.Authority, log contracts.Logger, deviceChannels bool) *Applier {
	return &Applier{Authority: a, Logger: log, DeviceChannels: deviceChannels}
}

// Apply decodes data and applies it. A dump request yields the encoded reply; other
// messages yield nil. A message that fails to decode or apply changes nothing.
func (a *Applier) Apply(data []byte) ([]byte, error) {
	msg, err := Decode(data)
	if err != nil {
		a.Logger.Warn("Dropping tuning message",
			a.Logger.Field().Int("bytes", len(data)),
			a.Logger.Field().Error("error", err))
		return nil, err
	}
	return a.ApplyMessage(msg)
}

// ApplyMessage applies an already decoded message.
func (a *Applier) ApplyMessage(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case *NoteChange:
		changes := make([]noteChange, len(m.Changes))
		for i, c := range m.Changes {
			changes[i] = noteChange{note: int(c.Key), pitch: c.Pitch}
		}
		return nil, a.overlay(m.DeviceID, changes)
	case *BulkDump:
		changes := make([]noteChange, len(m.Pitches))
		for n, p := range m.Pitches {
			changes[n] = noteChange{note: n, pitch: p}
		}
		if err := a.overlay(m.DeviceID, changes); err != nil {
			return nil, err
		}
		if m.Name != "" && !a.routed(m.DeviceID) {
			return nil, a.Authority.SetScaleName(m.Name)
		}
		return nil, nil
	case *DumpRequest:
		return a.reply(m)
	}
	return nil, protocolError("unsupported message %T", msg)
}

type noteChange struct {
	note  int
	pitch Pitch
}

func (a *Applier) routed(device byte) bool {
	return a.DeviceChannels && int(device) < contracts.NumChannels
}

// overlay writes changes over the target table in one authority update. NoChange
// pitches keep the current entry.
func (a *Applier) overlay(device byte, changes []noteChange) error {
	channel := contracts.SharedChannel
	if a.routed(device) {
		channel = int(device)
	}

	batch := make([]contracts.NoteTuning, 0, len(changes))
	for _, c := range changes {
		if c.pitch == NoChange {
			continue
		}
		batch = append(batch, contracts.NoteTuning{Frequency: c.pitch.Frequency(), Note: c.note, Channel: channel})
	}
	if len(batch) == 0 {
		return nil
	}

	if err := a.Authority.SetNoteTuningBatch(batch); err != nil {
		a.Logger.Error("Failed to apply tuning message", a.Logger.Field().Error("error", err))
		return err
	}
	a.Logger.Debug("Applied tuning message",
		a.Logger.Field().Uint8("device", device),
		a.Logger.Field().Int("notes", len(batch)))
	return nil
}

// reply encodes the current tuning of the addressed table as a bulk dump.
func (a *Applier) reply(req *DumpRequest) ([]byte, error) {
	snap := a.Authority.Snapshot()
	ch := -1
	if a.routed(req.DeviceID) {
		ch = int(req.DeviceID)
	}
	var table contracts.TuningTable
	for n := range table {
		table[n] = tuning.NoteToFrequency(snap, n, ch)
	}
	return EncodeBulkDump(DumpFromTable(req.DeviceID, req.Program, tuning.ScaleName(snap), table))
}
