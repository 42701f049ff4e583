// Package master implements the in-process tuning authority.
package master

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/mtsesp/internal/tuning"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// Store is an in-memory contracts.Authority. Writers are serialised by mu and
// publish a fresh copy of the state; readers load the current copy without locking,
// so they never observe a half-written table.
type Store struct {
	logger contracts.Logger

	mu      sync.Mutex
	state   atomic.Value // *contracts.State
	clients map[contracts.ClientHandle]struct{}
	nextID  contracts.ClientHandle
}

var _ contracts.Authority = (*Store)(nil)

// NewStore creates an unregistered authority.
func NewStore(log contracts.Logger) *Store {
	s := &Store{
		logger:  log,
		clients: make(map[contracts.ClientHandle]struct{}),
	}
	s.state.Store(blankState(false))
	return s
}

func blankState(registered bool) *contracts.State {
	return &contracts.State{Registered: registered, ScaleName: contracts.DefaultScaleName}
}

// Snapshot returns the current immutable state.
func (s *Store) Snapshot() *contracts.State {
	return s.state.Load().(*contracts.State)
}

// CanRegisterMaster reports whether RegisterMaster would succeed right now.
func (s *Store) CanRegisterMaster() bool {
	return !s.Snapshot().Registered
}

// HasMaster reports whether a master is registered.
func (s *Store) HasMaster() bool {
	return s.Snapshot().Registered
}

// RegisterMaster makes the caller the single owner of the tuning.
func (s *Store) RegisterMaster() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Snapshot().Registered {
		s.logger.Warn(contracts.ErrMasterExists.Error())
		return contracts.ErrMasterExists
	}
	s.state.Store(blankState(true))
	s.logger.Info("Tuning master registered")
	return nil
}

// DeregisterMaster releases ownership and resets every table to the default.
func (s *Store) DeregisterMaster() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Snapshot().Registered {
		return contracts.ErrNotRegistered
	}
	s.state.Store(blankState(false))
	s.logger.Info("Tuning master deregistered")
	return nil
}

// Reinitialize drops the master and all clients, whatever the current state.
func (s *Store) Reinitialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Store(blankState(false))
	s.clients = make(map[contracts.ClientHandle]struct{})
	s.logger.Info("Tuning authority reinitialized")
}

// RegisterClient issues a new client handle.
func (s *Store) RegisterClient() contracts.ClientHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.clients[s.nextID] = struct{}{}
	s.logger.Debug("Tuning client registered",
		s.logger.Field().Uint64("client", uint64(s.nextID)),
		s.logger.Field().Int("clients", len(s.clients)))
	return s.nextID
}

// DeregisterClient releases a handle issued by RegisterClient.
func (s *Store) DeregisterClient(h contracts.ClientHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[h]; !ok {
		return fmt.Errorf("%w: %d", contracts.ErrUnknownClient, h)
	}
	delete(s.clients, h)
	s.logger.Debug("Tuning client deregistered",
		s.logger.Field().Uint64("client", uint64(h)),
		s.logger.Field().Int("clients", len(s.clients)))
	return nil
}

// NumClients returns the number of registered clients.
func (s *Store) NumClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// update applies fn to a private copy of the state and publishes it. Nothing is
// published when the master is missing or fn fails.
func (s *Store) update(fn func(st *contracts.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Snapshot()
	if !cur.Registered {
		return contracts.ErrNotRegistered
	}
	next := *cur
	if err := fn(&next); err != nil {
		return err
	}
	s.state.Store(&next)
	return nil
}

func checkNote(note int) error {
	if note < 0 || note >= contracts.NumNotes {
		return fmt.Errorf("%w: %d", contracts.ErrInvalidNote, note)
	}
	return nil
}

func checkChannel(channel int) error {
	if channel < 0 || channel >= contracts.NumChannels {
		return fmt.Errorf("%w: %d", contracts.ErrInvalidChannel, channel)
	}
	return nil
}

func checkFrequency(freq float64) error {
	if !tuning.ValidFrequency(freq) {
		return fmt.Errorf("%w: %v", contracts.ErrInvalidFrequency, freq)
	}
	return nil
}

func checkTable(freqs *contracts.TuningTable) error {
	for n, f := range freqs {
		if err := checkFrequency(f); err != nil {
			return fmt.Errorf("note %d: %w", n, err)
		}
	}
	return nil
}

// SetNoteTuning sets one note of the shared table. UseDefault restores 12-TET.
func (s *Store) SetNoteTuning(freq float64, note int) error {
	return s.update(func(st *contracts.State) error {
		if err := checkNote(note); err != nil {
			return err
		}
		if err := checkFrequency(freq); err != nil {
			return err
		}
		st.Shared[note] = freq
		return nil
	})
}

// SetNoteTunings replaces the whole shared table.
func (s *Store) SetNoteTunings(freqs contracts.TuningTable) error {
	return s.update(func(st *contracts.State) error {
		if err := checkTable(&freqs); err != nil {
			return err
		}
		st.Shared = freqs
		return nil
	})
}

// SetScaleName sets the name reported to clients.
func (s *Store) SetScaleName(name string) error {
	return s.update(func(st *contracts.State) error {
		st.ScaleName = name
		return nil
	})
}

// FilterNote marks a note of the shared table as not to be played.
func (s *Store) FilterNote(filter bool, note int) error {
	return s.update(func(st *contracts.State) error {
		if err := checkNote(note); err != nil {
			return err
		}
		st.SharedFilter[note] = filter
		return nil
	})
}

// ClearNoteFilter unfilters every note of the shared table.
func (s *Store) ClearNoteFilter() error {
	return s.update(func(st *contracts.State) error {
		st.SharedFilter = contracts.NoteFilter{}
		return nil
	})
}

// SetMultiChannel switches whether queries on channel read its own table. The
// channel table itself is kept while hidden.
func (s *Store) SetMultiChannel(enabled bool, channel int) error {
	return s.update(func(st *contracts.State) error {
		if err := checkChannel(channel); err != nil {
			return err
		}
		st.MultiChannel[channel] = enabled
		return nil
	})
}

// SetMultiChannelNoteTuning sets one note of a channel table.
func (s *Store) SetMultiChannelNoteTuning(freq float64, note, channel int) error {
	return s.update(func(st *contracts.State) error {
		if err := checkChannel(channel); err != nil {
			return err
		}
		if err := checkNote(note); err != nil {
			return err
		}
		if err := checkFrequency(freq); err != nil {
			return err
		}
		st.Channels[channel][note] = freq
		return nil
	})
}

// SetMultiChannelNoteTunings replaces a whole channel table.
func (s *Store) SetMultiChannelNoteTunings(freqs contracts.TuningTable, channel int) error {
	return s.update(func(st *contracts.State) error {
		if err := checkChannel(channel); err != nil {
			return err
		}
		if err := checkTable(&freqs); err != nil {
			return err
		}
		st.Channels[channel] = freqs
		return nil
	})
}

// FilterNoteMultiChannel marks a note of a channel table as not to be played.
func (s *Store) FilterNoteMultiChannel(filter bool, note, channel int) error {
	return s.update(func(st *contracts.State) error {
		if err := checkChannel(channel); err != nil {
			return err
		}
		if err := checkNote(note); err != nil {
			return err
		}
		st.ChannelFilters[channel][note] = filter
		return nil
	})
}

// ClearNoteFilterMultiChannel unfilters every note of a channel table.
func (s *Store) ClearNoteFilterMultiChannel(channel int) error {
	return s.update(func(st *contracts.State) error {
		if err := checkChannel(channel); err != nil {
			return err
		}
		st.ChannelFilters[channel] = contracts.NoteFilter{}
		return nil
	})
}

// SetNoteTuningBatch writes every change and enables the listed channels in a
// single update, so concurrent setters are never overwritten with stale values.
func (s *Store) SetNoteTuningBatch(changes []contracts.NoteTuning, enable ...int) error {
	return s.update(func(st *contracts.State) error {
		for i, c := range changes {
			if err := checkNoteTuning(c); err != nil {
				return fmt.Errorf("change %d: %w", i, err)
			}
			if c.Channel == contracts.SharedChannel {
				st.Shared[c.Note] = c.Frequency
			} else {
				st.Channels[c.Channel][c.Note] = c.Frequency
			}
		}
		for _, ch := range enable {
			if err := checkChannel(ch); err != nil {
				return err
			}
			st.MultiChannel[ch] = true
		}
		return nil
	})
}

func checkNoteTuning(c contracts.NoteTuning) error {
	if c.Channel != contracts.SharedChannel {
		if err := checkChannel(c.Channel); err != nil {
			return err
		}
	}
	if err := checkNote(c.Note); err != nil {
		return err
	}
	return checkFrequency(c.Frequency)
}
