package mts

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/mtsesp/internal/scala"
	"github.com/leandrodaf/mtsesp/internal/signals"
	"github.com/leandrodaf/mtsesp/internal/sysex"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
	"go.uber.org/multierr"
)

// Master holds the master registration until Close. While it is open, SIGINT and
// SIGTERM deregister the master and exit with 128 + the signal number, unless
// signal handling was disabled. Once closed, every write through the guard fails
// with contracts.ErrNotRegistered, even after another master has registered.
type Master struct {
	authority contracts.Authority
	logger    contracts.Logger
	applier   *sysex.Applier
	hook      *signals.Hook

	// mu is held for reading by every write through the guard and for writing by
	// Close, so no write can reach the authority after deregistration.
	mu       sync.RWMutex
	closed   bool
	closeErr error
}

// NewMaster registers the tuning master and, unless disabled, installs the
// termination signal hook that deregisters it.
//
// opts ...contracts.Option: Options for the logger, the authority and signal handling.
//
// Returns:
//   - *Master: The guard owning the master registration until Close.
//   - error: contracts.ErrMasterExists when another master holds the authority.
func NewMaster(opts ...contracts.Option) (*Master, error) {
	options := applyDefaultOptions(opts...)
	a := options.Authority

	if !a.CanRegisterMaster() {
		options.Logger.Warn("Master already registered")
		return nil, fmt.Errorf("%w: an MTS master is already registered", contracts.ErrMasterExists)
	}

	m := &Master{
		authority: a,
		logger:    options.Logger,
		applier:   sysex.NewApplier(a, options.Logger, options.DeviceChannels),
	}
	if *options.HandleSignals {
		m.hook = signals.Install(options.Logger, m.Close, options.ExitFunc)
	}
	if err := a.RegisterMaster(); err != nil {
		if m.hook != nil {
			m.hook.Release()
		}
		return nil, err
	}
	return m, nil
}

// Close releases the signal hook and deregisters the master. Later calls return
// the first result.
func (m *Master) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return m.closeErr
	}
	m.closed = true
	if m.hook != nil {
		m.hook.Release()
	}
	m.closeErr = m.authority.DeregisterMaster()
	if m.closeErr == nil {
		m.logger.Info("Master closed")
	}
	return m.closeErr
}

// guard runs fn while the master is open.
func (m *Master) guard(fn func() error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("%w: master is closed", contracts.ErrNotRegistered)
	}
	return fn()
}

// SetNoteTuning sets one note of the shared table.
func (m *Master) SetNoteTuning(freq float64, note int) error {
	return m.guard(func() error { return m.authority.SetNoteTuning(freq, note) })
}

// SetNoteTunings replaces the shared table.
func (m *Master) SetNoteTunings(freqs contracts.TuningTable) error {
	return m.guard(func() error { return m.authority.SetNoteTunings(freqs) })
}

// SetNoteTuningBatch writes several notes and enables channels in one update.
func (m *Master) SetNoteTuningBatch(changes []contracts.NoteTuning, enable ...int) error {
	return m.guard(func() error { return m.authority.SetNoteTuningBatch(changes, enable...) })
}

// SetScaleName sets the name reported to clients.
func (m *Master) SetScaleName(name string) error {
	return m.guard(func() error { return m.authority.SetScaleName(name) })
}

// FilterNote marks a note of the shared table as not to be played.
func (m *Master) FilterNote(filter bool, note int) error {
	return m.guard(func() error { return m.authority.FilterNote(filter, note) })
}

// ClearNoteFilter unfilters every note of the shared table.
func (m *Master) ClearNoteFilter() error {
	return m.guard(m.authority.ClearNoteFilter)
}

// SetMultiChannel switches whether channel reads its own table.
func (m *Master) SetMultiChannel(enabled bool, channel int) error {
	return m.guard(func() error { return m.authority.SetMultiChannel(enabled, channel) })
}

// SetMultiChannelNoteTuning sets one note of a channel table.
func (m *Master) SetMultiChannelNoteTuning(freq float64, note, channel int) error {
	return m.guard(func() error { return m.authority.SetMultiChannelNoteTuning(freq, note, channel) })
}

// SetMultiChannelNoteTunings replaces a channel table.
func (m *Master) SetMultiChannelNoteTunings(freqs contracts.TuningTable, channel int) error {
	return m.guard(func() error { return m.authority.SetMultiChannelNoteTunings(freqs, channel) })
}

// FilterNoteMultiChannel marks a note of a channel table as not to be played.
func (m *Master) FilterNoteMultiChannel(filter bool, note, channel int) error {
	return m.guard(func() error { return m.authority.FilterNoteMultiChannel(filter, note, channel) })
}

// ClearNoteFilterMultiChannel unfilters every note of a channel table.
func (m *Master) ClearNoteFilterMultiChannel(channel int) error {
	return m.guard(func() error { return m.authority.ClearNoteFilterMultiChannel(channel) })
}

// ApplySysEx applies one tuning SysEx frame. A dump request returns the encoded
// bulk dump reply.
func (m *Master) ApplySysEx(data []byte) (reply []byte, err error) {
	err = m.guard(func() error {
		reply, err = m.applier.Apply(data)
		return err
	})
	return reply, err
}

// BulkDump encodes the tuning addressed by device as a bulk dump, as if the
// master had received a dump request for it.
func (m *Master) BulkDump(device, program byte) (dump []byte, err error) {
	err = m.guard(func() error {
		dump, err = m.applier.ApplyMessage(&sysex.DumpRequest{DeviceID: device, Program: program})
		return err
	})
	return dump, err
}

// LoadScala resolves a .scl file under an optional .kbm file and installs the
// result. A negative channel writes the shared table and the scale name; channel
// 0-15 writes that channel's table and enables multi-channel tuning on it.
func (m *Master) LoadScala(sclPath, kbmPath string, channel int) error {
	scale, mapping, err := scala.ReadFiles(sclPath, kbmPath)
	if err != nil {
		return err
	}
	table, err := scala.Resolve(scale, mapping)
	if err != nil {
		return fmt.Errorf("%s: %w", sclPath, err)
	}

	return m.guard(func() error {
		if channel >= 0 {
			return m.authority.SetNoteTuningBatch(tableChanges(table, channel), channel)
		}
		if err := m.authority.SetNoteTunings(table); err != nil {
			return err
		}
		if scale.Description == "" {
			return nil
		}
		return m.authority.SetScaleName(scale.Description)
	})
}

// tableChanges expands a whole table into per-note changes on channel.
func tableChanges(table contracts.TuningTable, channel int) []contracts.NoteTuning {
	changes := make([]contracts.NoteTuning, len(table))
	for n, f := range table {
		changes[n] = contracts.NoteTuning{Frequency: f, Note: n, Channel: channel}
	}
	return changes
}

// ScalaFiles names one scale and its optional keyboard mapping.
type ScalaFiles struct {
	Scale   string
	Mapping string
}

// LoadScalaChannels loads files[i] onto channel i in a single update. Every pair
// is resolved before anything is written, and all resolution errors are
// reported together.
func (m *Master) LoadScalaChannels(files []ScalaFiles) error {
	if len(files) > contracts.NumChannels {
		return fmt.Errorf("%w: %d scales for %d channels", contracts.ErrInvalidChannel, len(files), contracts.NumChannels)
	}

	var (
		changes []contracts.NoteTuning
		enable  []int
		errs    error
	)
	for i, f := range files {
		scale, mapping, err := scala.ReadFiles(f.Scale, f.Mapping)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("channel %d: %w", i, err))
			continue
		}
		table, err := scala.Resolve(scale, mapping)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("channel %d: %s: %w", i, f.Scale, err))
			continue
		}
		changes = append(changes, tableChanges(table, i)...)
		enable = append(enable, i)
	}
	if errs != nil {
		return errs
	}

	if err := m.SetNoteTuningBatch(changes, enable...); err != nil {
		return err
	}
	m.logger.Info("Loaded multi-channel tuning", m.logger.Field().Int("channels", len(files)))
	return nil
}
