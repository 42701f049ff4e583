package contracts

// SysEx is a complete System Exclusive frame received from a port, F0 and F7 included.
type SysEx struct {
	Timestamp uint64 // Timestamp is the receive time in nanoseconds since the Unix epoch.
	Data      []byte // Data is the raw frame.
}

// SysExPort defines the MIDI transport used to exchange tuning messages with external devices.
type SysExPort interface {
	Stop() error                          // Stops capturing and releases the device.
	ListDevices() ([]DeviceInfo, error)   // Lists all available MIDI devices.
	SelectDevice(deviceID int) error      // Connects input and output of the device with the given index.
	StartCapture(eventChannel chan SysEx) // Forwards every complete SysEx frame to the channel.
	Send(data []byte) error               // Sends a raw frame to the selected device.
}
