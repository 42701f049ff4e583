//go:build !darwin

package mididarwin

import (
	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// Port stands in for the CoreMIDI port on systems without CoreMIDI.
type Port struct {
	logger contracts.Logger
}

// NewPort returns the placeholder port. Every device operation fails with ErrUnsupportedPlatform.
func NewPort(options *contracts.ClientOptions) (contracts.SysExPort, error) {
	options.Logger.Info("Using placeholder CoreMIDI port for non-macOS system")
	return &Port{logger: options.Logger}, nil
}

// ListDevices returns ErrUnsupportedPlatform.
func (p *Port) ListDevices() ([]contracts.DeviceInfo, error) {
	p.logger.Warn("ListDevices called on placeholder CoreMIDI port")
	return nil, ErrUnsupportedPlatform
}

// SelectDevice returns ErrUnsupportedPlatform.
func (p *Port) SelectDevice(deviceID int) error {
	p.logger.Warn("SelectDevice called on placeholder CoreMIDI port")
	return ErrUnsupportedPlatform
}

// StartCapture logs a warning and captures nothing.
func (p *Port) StartCapture(eventChannel chan contracts.SysEx) {
	p.logger.Warn("StartCapture called on placeholder CoreMIDI port")
}

// Send returns ErrUnsupportedPlatform.
func (p *Port) Send(data []byte) error {
	return ErrUnsupportedPlatform
}

// Stop does nothing.
func (p *Port) Stop() error {
	return nil
}
