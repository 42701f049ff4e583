package contracts

const (
	// NumNotes is the number of MIDI notes in a tuning table.
	NumNotes = 128
	// NumChannels is the number of MIDI channels with their own tuning table.
	NumChannels = 16
	// DefaultScaleName is the scale name reported while no other name has been set.
	DefaultScaleName = "12-TET"
	// UseDefault is the tuning table entry meaning "use the default 12-TET frequency".
	UseDefault = 0.0
)

// TuningTable holds one frequency in Hz per MIDI note. An entry equal to UseDefault
// falls back to the next table in line (channel, then shared, then 12-TET).
type TuningTable [NumNotes]float64

// NoteFilter marks notes that clients should not play.
type NoteFilter [NumNotes]bool

// State is an immutable snapshot of everything a tuning authority owns.
// Readers must treat a *State returned by Authority.Snapshot as read-only.
type State struct {
	Registered     bool
	ScaleName      string
	Shared         TuningTable
	SharedFilter   NoteFilter
	Channels       [NumChannels]TuningTable
	MultiChannel   [NumChannels]bool
	ChannelFilters [NumChannels]NoteFilter
}

// SharedChannel addresses the shared table in a NoteTuning.
const SharedChannel = -1

// NoteTuning assigns a frequency to one note of the shared table (Channel ==
// SharedChannel) or of a channel table.
type NoteTuning struct {
	Frequency float64
	Note      int
	Channel   int
}

// ClientHandle identifies a registered tuning client. The zero value is never issued.
type ClientHandle uint64

// Authority is the process-wide owner of the current tuning. Implementations serialise
// writers and hand readers consistent snapshots, so a shared-memory backend can replace
// the in-process one without changing callers.
type Authority interface {
	CanRegisterMaster() bool
	RegisterMaster() error
	DeregisterMaster() error
	HasMaster() bool
	Reinitialize()

	RegisterClient() ClientHandle
	DeregisterClient(h ClientHandle) error
	NumClients() int

	SetNoteTuning(freq float64, note int) error
	SetNoteTunings(freqs TuningTable) error
	SetScaleName(name string) error
	FilterNote(filter bool, note int) error
	ClearNoteFilter() error

	SetMultiChannel(enabled bool, channel int) error
	SetMultiChannelNoteTuning(freq float64, note, channel int) error
	SetMultiChannelNoteTunings(freqs TuningTable, channel int) error
	FilterNoteMultiChannel(filter bool, note, channel int) error
	ClearNoteFilterMultiChannel(channel int) error

	// SetNoteTuningBatch applies changes in order and enables multi-channel tuning
	// on the listed channels, all as one update. Nothing changes if any entry is invalid.
	SetNoteTuningBatch(changes []NoteTuning, enable ...int) error

	Snapshot() *State
}
