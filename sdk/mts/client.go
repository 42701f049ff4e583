package mts

import (
	"sync"

	"github.com/leandrodaf/mtsesp/internal/tuning"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// Client is a registered reader of the tuning. Queries see the master's tables
// while one is registered and 12-TET otherwise.
type Client struct {
	authority contracts.Authority
	handle    contracts.ClientHandle
	logger    contracts.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewClient registers a client with the authority.
//
// opts ...contracts.Option: Options for the logger and the authority.
//
// Returns:
//   - *Client: The registered client. Close deregisters it.
//   - error: Currently always nil.
func NewClient(opts ...contracts.Option) (*Client, error) {
	options := applyDefaultOptions(opts...)
	c := &Client{
		authority: options.Authority,
		handle:    options.Authority.RegisterClient(),
		logger:    options.Logger,
	}
	c.logger.Debug("Client registered", c.logger.Field().Uint64("handle", uint64(c.handle)))
	return c, nil
}

// Close deregisters the client.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.authority.DeregisterClient(c.handle)
	})
	return c.closeErr
}

// Handle returns the client's registration handle.
func (c *Client) Handle() contracts.ClientHandle { return c.handle }

// NoteToFrequency returns the frequency in Hz of note on channel. A channel
// outside 0-15 reads the shared table.
func (c *Client) NoteToFrequency(note, channel int) float64 {
	return tuning.NoteToFrequency(c.authority.Snapshot(), note, channel)
}

// RetuningInSemitones returns how far note is from 12-TET, in semitones.
func (c *Client) RetuningInSemitones(note, channel int) float64 {
	return tuning.RetuningInSemitones(c.authority.Snapshot(), note, channel)
}

// RetuningAsRatio returns the note's frequency divided by its 12-TET frequency.
func (c *Client) RetuningAsRatio(note, channel int) float64 {
	return tuning.RetuningAsRatio(c.authority.Snapshot(), note, channel)
}

// FrequencyToNote returns the note on channel closest to freq.
func (c *Client) FrequencyToNote(freq float64, channel int) int {
	return tuning.FrequencyToNote(c.authority.Snapshot(), freq, channel)
}

// FrequencyToNoteAndChannel returns the note and channel closest to freq.
func (c *Client) FrequencyToNoteAndChannel(freq float64) (note, channel int) {
	return tuning.FrequencyToNoteAndChannel(c.authority.Snapshot(), freq)
}

// ShouldFilterNote reports whether the master asked for note on channel not to be played.
func (c *Client) ShouldFilterNote(note, channel int) bool {
	return tuning.ShouldFilterNote(c.authority.Snapshot(), note, channel)
}

// HasMaster reports whether a master currently owns the tuning.
func (c *Client) HasMaster() bool {
	return c.authority.HasMaster()
}

// ScaleName returns the master's scale name, or the 12-TET name without a master.
func (c *Client) ScaleName() string {
	return tuning.ScaleName(c.authority.Snapshot())
}
