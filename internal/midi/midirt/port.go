// Package midirt carries tuning SysEx over rtmidi through gomidi.
package midirt

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/mtsesp/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register the rtmidi driver
)

// Error definitions for port selection and transfer.
var (
	ErrNoMIDIDevices     = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice = errors.New("invalid MIDI device")
	ErrNoOutput          = errors.New("selected device has no MIDI output")
	ErrNotSelected       = errors.New("no MIDI device selected")
)

// sysExBufferSize fits a bulk tuning dump with room to spare.
const sysExBufferSize = 1024

// Port exchanges SysEx frames with one rtmidi device.
type Port struct {
	logger       contracts.Logger
	eventChannel atomic.Value // chan contracts.SysEx
	mu           sync.Mutex
	in           drivers.In
	send         func(msg midi.Message) error
	stopListen   func()
	capturing    bool
	stopOnce     sync.Once
}

// NewPort creates an rtmidi port. No device is opened until SelectDevice.
func NewPort(options *contracts.ClientOptions) (contracts.SysExPort, error) {
	options.Logger.Info("rtmidi SysEx port created")
	return &Port{logger: options.Logger}, nil
}

// ListDevices lists the MIDI inputs, marking those with an output of the same name.
func (p *Port) ListDevices() ([]contracts.DeviceInfo, error) {
	ins := midi.GetInPorts()
	if len(ins) == 0 {
		p.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}
	outs := midi.GetOutPorts()

	devices := make([]contracts.DeviceInfo, len(ins))
	for i, in := range ins {
		devices[i] = contracts.DeviceInfo{
			Name:       in.String(),
			EntityName: in.String(),
			CanSend:    findOut(outs, in.String()) != nil,
		}
	}
	return devices, nil
}

func findOut(outs []drivers.Out, name string) drivers.Out {
	for _, out := range outs {
		if strings.EqualFold(out.String(), name) {
			return out
		}
	}
	return nil
}

// SelectDevice opens the input with the given index and its matching output.
func (p *Port) SelectDevice(deviceID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ins := midi.GetInPorts()
	if deviceID < 0 || deviceID >= len(ins) {
		p.logger.Error(ErrInvalidMIDIDevice.Error(), p.logger.Field().Int("deviceID", deviceID))
		return ErrInvalidMIDIDevice
	}
	p.closeLocked()

	in := ins[deviceID]
	p.in = in
	p.send = nil
	if out := findOut(midi.GetOutPorts(), in.String()); out != nil {
		send, err := midi.SendTo(out)
		if err != nil {
			return fmt.Errorf("open output %q: %w", out.String(), err)
		}
		p.send = send
	}

	stop, err := midi.ListenTo(in, p.handleMessage, midi.UseSysEx(), midi.SysExBufferSize(sysExBufferSize))
	if err != nil {
		return fmt.Errorf("open input %q: %w", in.String(), err)
	}
	p.stopListen = stop

	p.logger.Info("MIDI device selected",
		p.logger.Field().Int("deviceID", deviceID),
		p.logger.Field().String("deviceName", in.String()),
		p.logger.Field().Bool("canSend", p.send != nil))
	return nil
}

func (p *Port) handleMessage(msg midi.Message, timestampms int32) {
	data := msg.Bytes()
	if len(data) == 0 || data[0] != 0xf0 {
		return
	}
	eventChannel, _ := p.eventChannel.Load().(chan contracts.SysEx)
	if eventChannel == nil {
		return
	}
	event := contracts.SysEx{
		Timestamp: uint64(time.Now().UTC().UnixNano()),
		Data:      append([]byte(nil), data...),
	}
	select {
	case eventChannel <- event:
	default:
		p.logger.Warn("Event buffer full; dropping SysEx frame")
	}
}

// StartCapture starts forwarding SysEx frames to eventChannel.
func (p *Port) StartCapture(eventChannel chan contracts.SysEx) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if eventChannel == nil {
		p.logger.Error("StartCapture called with nil eventChannel")
		return
	}
	p.logger.Info("Starting SysEx capture")
	p.eventChannel.Store(eventChannel)
	p.capturing = true
}

// Send writes a raw frame to the selected device.
func (p *Port) Send(data []byte) error {
	p.mu.Lock()
	send, in := p.send, p.in
	p.mu.Unlock()

	if in == nil {
		return ErrNotSelected
	}
	if send == nil {
		return ErrNoOutput
	}
	return send(midi.Message(data))
}

// Stop closes the device and the driver. Later calls do nothing.
func (p *Port) Stop() error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		p.closeLocked()
		if p.capturing {
			p.capturing = false
			p.eventChannel.Store(make(chan contracts.SysEx))
		}
		midi.CloseDriver()
		p.logger.Info("rtmidi SysEx port stopped")
	})
	return nil
}

func (p *Port) closeLocked() {
	if p.stopListen != nil {
		p.stopListen()
		p.stopListen = nil
	}
}
