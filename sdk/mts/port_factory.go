package mts

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/leandrodaf/mtsesp/internal/midi/mididarwin"
	"github.com/leandrodaf/mtsesp/internal/midi/midirt"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
	"go.uber.org/multierr"
)

// ErrDeviceNotFound is returned when no device name contains the requested name.
var ErrDeviceNotFound = errors.New("MIDI device not found")

// portInitializers maps OS names to native port initializers. Other systems use rtmidi.
var portInitializers = map[string]func(*contracts.ClientOptions) (contracts.SysExPort, error){
	"darwin": mididarwin.NewPort,
}

// NewPort opens the SysEx port for the current operating system. When the port
// configuration names a device, it is selected before returning.
//
// opts ...contracts.Option: Options for the logger and the port configuration.
//
// Returns:
//   - contracts.SysExPort: The CoreMIDI port on macOS and the rtmidi port elsewhere.
//   - error: An error if the port cannot be opened or the named device is not found.
func NewPort(opts ...contracts.Option) (contracts.SysExPort, error) {
	options := applyDefaultOptions(opts...)

	initializer, exists := portInitializers[runtime.GOOS]
	if !exists {
		initializer = midirt.NewPort
	}
	port, err := initializer(&options)
	if err != nil {
		return nil, err
	}

	if name := options.PortConfig.DeviceName; name != "" {
		if _, err := SelectDeviceByName(port, name); err != nil {
			return nil, multierr.Append(err, port.Stop())
		}
	}
	return port, nil
}

// SelectDeviceByName selects the first device whose name contains name, ignoring
// case, and returns its index.
func SelectDeviceByName(port contracts.SysExPort, name string) (int, error) {
	devices, err := port.ListDevices()
	if err != nil {
		return -1, err
	}
	want := strings.ToLower(name)
	for i, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), want) {
			return i, port.SelectDevice(i)
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}
