// Package mididarwin carries tuning SysEx over CoreMIDI on macOS.
package mididarwin

import "errors"

// Error definitions for MIDI connection and handling issues.
var (
	ErrNoMIDIDevices       = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice   = errors.New("invalid MIDI device")
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
	ErrCreateOutputPort    = errors.New("error creating output port")
	ErrNoOutput            = errors.New("selected device has no MIDI destination")
	ErrNotSelected         = errors.New("no MIDI device selected")
	ErrUnsupportedPlatform = errors.New("CoreMIDI is not available on this platform")
)
