package contracts

// DeviceInfo describes a MIDI device that can carry tuning SysEx.
type DeviceInfo struct {
	Name         string // Device name.
	Manufacturer string // Device manufacturer.
	EntityName   string // Name of the entity to which the device belongs.
	CanSend      bool   // CanSend reports whether a matching output exists for replies and dumps.
}
