// Package sysex encodes and decodes MIDI Tuning Standard System Exclusive messages
// and applies them to a tuning authority.
package sysex

import (
	"fmt"
	"strings"

	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// Frame and header bytes of the MIDI Tuning Standard.
const (
	StartByte   byte = 0xf0
	EndByte     byte = 0xf7
	NonRealtime byte = 0x7e
	Realtime    byte = 0x7f
	TuningSubID byte = 0x08

	// AllDevices addresses every receiver.
	AllDevices byte = 0x7f
)

// Sub-ID#2 values for the supported tuning messages.
const (
	subBulkDumpRequest byte = 0x00
	subBulkDump        byte = 0x01
	subNoteChange      byte = 0x02
	subBankNoteChange  byte = 0x07
)

const (
	nameLength     = 16
	bulkDumpLength = 6 + nameLength + contracts.NumNotes*3 + 2
	requestLength  = 7
)

// Message is one decoded tuning message: *NoteChange, *BulkDump or *DumpRequest.
type Message interface {
	Device() byte
}

// NoteTuning retunes a single key.
type NoteTuning struct {
	Key   byte
	Pitch Pitch
}

// NoteChange is a single-note tuning change, optionally addressed to a bank.
type NoteChange struct {
	DeviceID byte
	Realtime bool
	HasBank  bool
	Bank     byte
	Program  byte
	Changes  []NoteTuning
}

// BulkDump carries a named tuning for all 128 notes.
type BulkDump struct {
	DeviceID byte
	Program  byte
	Name     string
	Pitches  [contracts.NumNotes]Pitch
}

// DumpRequest asks a receiver to reply with a BulkDump of a program.
type DumpRequest struct {
	DeviceID byte
	Program  byte
}

// Device returns the SysEx device id the message is addressed to.
func (m *NoteChange) Device() byte { return m.DeviceID }

// Device returns the SysEx device id the message is addressed to.
func (m *BulkDump) Device() byte { return m.DeviceID }

// Device returns the SysEx device id the message is addressed to.
func (m *DumpRequest) Device() byte { return m.DeviceID }

func protocolError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", contracts.ErrProtocol, fmt.Sprintf(format, args...))
}

// Decode parses one complete SysEx frame, F0 and F7 included.
func Decode(data []byte) (Message, error) {
	if len(data) < requestLength {
		return nil, protocolError("frame of %d bytes is too short", len(data))
	}
	if data[0] != StartByte || data[len(data)-1] != EndByte {
		return nil, protocolError("frame is not delimited by F0 ... F7")
	}
	body := data[1 : len(data)-1]
	for i, b := range body {
		if b&0x80 != 0 {
			return nil, protocolError("data byte %d (0x%02X) has the high bit set", i+1, b)
		}
	}

	universal, device, subID, kind := body[0], body[1], body[2], body[3]
	if (universal != NonRealtime && universal != Realtime) || subID != TuningSubID {
		return nil, protocolError("not a MIDI tuning message (0x%02X 0x%02X)", universal, subID)
	}

	switch {
	case kind == subBulkDumpRequest && universal == NonRealtime:
		return decodeDumpRequest(data, device)
	case kind == subBulkDump && universal == NonRealtime:
		return decodeBulkDump(data, device)
	case kind == subNoteChange && universal == Realtime:
		return decodeNoteChange(data, device, false)
	case kind == subBankNoteChange:
		return decodeNoteChange(data, device, true)
	}
	return nil, protocolError("unsupported tuning message 0x%02X 0x%02X", universal, kind)
}

func decodeDumpRequest(data []byte, device byte) (Message, error) {
	if len(data) != requestLength {
		return nil, protocolError("dump request of %d bytes, want %d", len(data), requestLength)
	}
	return &DumpRequest{DeviceID: device, Program: data[5]}, nil
}

func decodeBulkDump(data []byte, device byte) (Message, error) {
	if len(data) != bulkDumpLength {
		return nil, protocolError("bulk dump of %d bytes, want %d", len(data), bulkDumpLength)
	}
	if sum := checksum(data[1 : len(data)-2]); sum != data[len(data)-2] {
		return nil, protocolError("checksum 0x%02X, computed 0x%02X", data[len(data)-2], sum)
	}

	m := &BulkDump{
		DeviceID: device,
		Program:  data[5],
		Name:     strings.TrimRight(string(data[6:6+nameLength]), " \x00"),
	}
	pitches := data[6+nameLength : len(data)-2]
	for n := range m.Pitches {
		copy(m.Pitches[n][:], pitches[n*3:n*3+3])
	}
	return m, nil
}

func decodeNoteChange(data []byte, device byte, bank bool) (Message, error) {
	m := &NoteChange{DeviceID: device, Realtime: data[1] == Realtime, HasBank: bank}
	pos := 5
	if bank {
		m.Bank = data[pos]
		pos++
	}
	if len(data) < pos+3 {
		return nil, protocolError("truncated note change")
	}
	m.Program = data[pos]
	count := int(data[pos+1])
	pos += 2

	if want := pos + count*4 + 1; len(data) != want {
		return nil, protocolError("note change for %d keys is %d bytes, want %d", count, len(data), want)
	}
	m.Changes = make([]NoteTuning, count)
	for i := range m.Changes {
		e := data[pos+i*4 : pos+i*4+4]
		m.Changes[i] = NoteTuning{Key: e[0], Pitch: Pitch{e[1], e[2], e[3]}}
	}
	return m, nil
}

// checksum is the XOR of every byte after F0 up to the checksum, limited to 7 bits.
func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum ^= v
	}
	return sum & 0x7f
}

func check7(name string, v byte) error {
	if v&0x80 != 0 {
		return protocolError("%s 0x%02X does not fit in 7 bits", name, v)
	}
	return nil
}

// Encode returns the SysEx frame of m.
func Encode(m Message) ([]byte, error) {
	switch m := m.(type) {
	case *NoteChange:
		return EncodeNoteChange(m)
	case *BulkDump:
		return EncodeBulkDump(m)
	case *DumpRequest:
		return EncodeDumpRequest(m)
	}
	return nil, protocolError("cannot encode %T", m)
}

// EncodeNoteChange builds a single-note tuning change. Messages without a bank are
// always real-time.
func EncodeNoteChange(m *NoteChange) ([]byte, error) {
	if len(m.Changes) > 127 {
		return nil, protocolError("%d keys exceed one note change message", len(m.Changes))
	}
	for _, err := range []error{check7("device id", m.DeviceID), check7("bank", m.Bank), check7("program", m.Program)} {
		if err != nil {
			return nil, err
		}
	}

	universal, kind := Realtime, subNoteChange
	if m.HasBank {
		kind = subBankNoteChange
		if !m.Realtime {
			universal = NonRealtime
		}
	}
	out := []byte{StartByte, universal, m.DeviceID, TuningSubID, kind}
	if m.HasBank {
		out = append(out, m.Bank)
	}
	out = append(out, m.Program, byte(len(m.Changes)))
	for _, c := range m.Changes {
		if err := check7("key", c.Key); err != nil {
			return nil, err
		}
		for _, b := range c.Pitch {
			if err := check7("pitch", b); err != nil {
				return nil, err
			}
		}
		out = append(out, c.Key, c.Pitch[0], c.Pitch[1], c.Pitch[2])
	}
	return append(out, EndByte), nil
}

// EncodeBulkDump builds a bulk tuning dump. The name is padded or cut to 16 ASCII
// characters; characters outside 7-bit ASCII become '?'.
func EncodeBulkDump(m *BulkDump) ([]byte, error) {
	if err := check7("device id", m.DeviceID); err != nil {
		return nil, err
	}
	if err := check7("program", m.Program); err != nil {
		return nil, err
	}

	out := make([]byte, 0, bulkDumpLength)
	out = append(out, StartByte, NonRealtime, m.DeviceID, TuningSubID, subBulkDump, m.Program)
	out = append(out, dumpName(m.Name)...)
	for n, p := range m.Pitches {
		for _, b := range p {
			if err := check7(fmt.Sprintf("pitch of note %d", n), b); err != nil {
				return nil, err
			}
		}
		out = append(out, p[:]...)
	}
	out = append(out, checksum(out[1:]), EndByte)
	return out, nil
}

// EncodeDumpRequest builds a bulk dump request.
func EncodeDumpRequest(m *DumpRequest) ([]byte, error) {
	if err := check7("device id", m.DeviceID); err != nil {
		return nil, err
	}
	if err := check7("program", m.Program); err != nil {
		return nil, err
	}
	return []byte{StartByte, NonRealtime, m.DeviceID, TuningSubID, subBulkDumpRequest, m.Program, EndByte}, nil
}

func dumpName(name string) []byte {
	out := make([]byte, nameLength)
	for i := range out {
		out[i] = ' '
	}
	i := 0
	for _, r := range name {
		if i == nameLength {
			break
		}
		if r < 0x20 || r > 0x7e {
			r = '?'
		}
		out[i] = byte(r)
		i++
	}
	return out
}

// DumpFromTable builds a BulkDump of a tuning table. UseDefault entries are sent
// as their 12-TET pitch so receivers end up with a complete table.
func DumpFromTable(device, program byte, name string, table contracts.TuningTable) *BulkDump {
	m := &BulkDump{DeviceID: device, Program: program, Name: name}
	for n, f := range table {
		if f == contracts.UseDefault {
			m.Pitches[n] = Pitch{byte(n), 0, 0}
			continue
		}
		m.Pitches[n] = EncodePitch(f)
	}
	return m
}
