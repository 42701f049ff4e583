//go:build darwin

package mididarwin

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/mtsesp/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// Port exchanges SysEx frames with a CoreMIDI source and its paired destination.
type Port struct {
	logger       contracts.Logger
	eventChannel atomic.Value // chan contracts.SysEx
	client       coremidi.Client
	inputPort    coremidi.InputPort
	outputPort   coremidi.OutputPort
	destination  *coremidi.Destination
	portConn     internalPortConnection
	mu           sync.Mutex
	assembler    *Assembler
	capturing    bool
	wg           sync.WaitGroup
	stopOnce     sync.Once
}

// NewPort creates a CoreMIDI client named after the configured port client name,
// with one input port and one output port that later device selections reuse.
//
// options *contracts.ClientOptions: Options carrying the logger and the client name.
//
// Returns:
//   - contracts.SysExPort: The CoreMIDI port, with no device connected yet.
//   - error: An error wrapping ErrCreateInputPort or ErrCreateOutputPort on failure.
func NewPort(options *contracts.ClientOptions) (contracts.SysExPort, error) {
	client, err := coremidi.NewClient(options.PortConfig.ClientName)
	if err != nil {
		return nil, err
	}
	p := &Port{
		logger:    options.Logger,
		client:    client,
		assembler: NewAssembler(),
	}
	p.outputPort, err = coremidi.NewOutputPort(client, "Tuning Output")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
	}
	p.inputPort, err = coremidi.NewInputPort(client, "Tuning Input", p.handlePacket)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}
	options.Logger.Info("CoreMIDI SysEx port created")
	return p, nil
}

// ListDevices lists CoreMIDI sources, marking those with a destination of the same name.
func (p *Port) ListDevices() ([]contracts.DeviceInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	if len(sources) == 0 {
		p.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}
	destinations, _ := coremidi.AllDestinations()

	devices := make([]contracts.DeviceInfo, len(sources))
	for i, source := range sources {
		entity := source.Entity()
		devices[i] = contracts.DeviceInfo{
			Name:         source.Name(),
			EntityName:   entity.Name(),
			Manufacturer: entity.Manufacturer(),
			CanSend:      findDestination(destinations, source.Name()) != nil,
		}
	}
	return devices, nil
}

func findDestination(destinations []coremidi.Destination, name string) *coremidi.Destination {
	for i := range destinations {
		if strings.EqualFold(destinations[i].Name(), name) {
			return &destinations[i]
		}
	}
	return nil
}

// SelectDevice connects the source with the given index and pairs the destination of the same name.
func (p *Port) SelectDevice(deviceID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sources, err := coremidi.AllSources()
	if err != nil {
		return fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	if deviceID < 0 || deviceID >= len(sources) {
		p.logger.Error(ErrInvalidMIDIDevice.Error(), p.logger.Field().Int("deviceID", deviceID))
		return ErrInvalidMIDIDevice
	}

	if p.portConn != nil {
		p.portConn.Disconnect()
		p.portConn = nil
	}
	p.assembler.Reset()

	source := sources[deviceID]
	p.portConn, err = p.inputPort.Connect(source)
	if err != nil {
		p.logger.Error(ErrMIDIConnectionError.Error())
		return fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
	}

	destinations, _ := coremidi.AllDestinations()
	p.destination = findDestination(destinations, source.Name())

	p.logger.Info("MIDI device selected",
		p.logger.Field().Int("deviceID", deviceID),
		p.logger.Field().String("deviceName", source.Name()),
		p.logger.Field().Bool("canSend", p.destination != nil))
	return nil
}

// handlePacket feeds packet bytes to the assembler and forwards completed frames.
func (p *Port) handlePacket(source coremidi.Source, packet coremidi.Packet) {
	p.wg.Add(1)
	defer p.wg.Done()

	eventChannel, _ := p.eventChannel.Load().(chan contracts.SysEx)
	if eventChannel == nil {
		return
	}

	for _, frame := range p.assembler.Feed(packet.Data) {
		event := contracts.SysEx{Timestamp: uint64(time.Now().UTC().UnixNano()), Data: frame}
		select {
		case eventChannel <- event:
		default:
			p.logger.Warn("Event buffer full; dropping SysEx frame")
		}
	}
}

// StartCapture begins forwarding assembled SysEx frames to eventChannel.
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

// Send writes a raw frame to the paired destination.
func (p *Port) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.portConn == nil {
		return ErrNotSelected
	}
	if p.destination == nil {
		return ErrNoOutput
	}
	packet := coremidi.NewPacket(data, 0)
	return packet.Send(&p.outputPort, p.destination)
}

// Stop disconnects the source and waits for in-flight packets. Later calls do nothing.
func (p *Port) Stop() error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.portConn != nil {
			p.portConn.Disconnect()
			p.portConn = nil
		}
		if p.capturing {
			p.capturing = false
			p.eventChannel.Store(make(chan contracts.SysEx))
		}
		p.wg.Wait()
		p.logger.Info("CoreMIDI SysEx port stopped")
	})
	return nil
}
