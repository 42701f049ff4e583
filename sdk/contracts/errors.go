package contracts

import "errors"

// Error taxonomy shared by every package of the SDK. Callers match with errors.Is;
// producers wrap with fmt.Errorf("%w: ...") to add context.
var (
	// ErrFormat is returned for malformed scale or keyboard mapping text.
	ErrFormat = errors.New("malformed tuning file")
	// ErrProtocol is returned for malformed MIDI Tuning Standard SysEx bytes.
	ErrProtocol = errors.New("malformed tuning sysex")
	// ErrMasterExists is returned when a master is already registered.
	ErrMasterExists = errors.New("a tuning master is already registered")
	// ErrNotRegistered is returned when a master operation runs without a registered master.
	ErrNotRegistered = errors.New("no tuning master is registered")

	// ErrInvalidNote is returned for a MIDI note outside 0-127.
	ErrInvalidNote = errors.New("invalid midi note")
	// ErrInvalidChannel is returned for a MIDI channel outside 0-15.
	ErrInvalidChannel = errors.New("invalid midi channel")
	// ErrInvalidFrequency is returned for a negative, NaN or infinite frequency.
	ErrInvalidFrequency = errors.New("invalid frequency")
	// ErrUnknownClient is returned when deregistering a handle that is not registered.
	ErrUnknownClient = errors.New("unknown tuning client")
)
