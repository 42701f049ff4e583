package mts

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/mtsesp/internal/logger"
	"github.com/leandrodaf/mtsesp/internal/master"
	"github.com/leandrodaf/mtsesp/internal/sysex"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
	"go.uber.org/multierr"
)

var testdata = filepath.Join("..", "..", "internal", "scala", "testdata")

func testOptions(a contracts.Authority) []contracts.Option {
	return []contracts.Option{
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithAuthority(a),
		contracts.WithSignalHandling(false),
	}
}

func newAuthority() *master.Store {
	return master.NewStore(logger.NewNopLogger())
}

func TestSingleMaster(t *testing.T) {
	opts := testOptions(newAuthority())

	m, err := NewMaster(opts...)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	if CanRegisterMaster(opts...) {
		t.Error("CanRegisterMaster = true with a master open")
	}
	if _, err := NewMaster(opts...); !errors.Is(err, contracts.ErrMasterExists) {
		t.Fatalf("second NewMaster error = %v, want ErrMasterExists", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if HasMaster(opts...) {
		t.Error("HasMaster = true after Close")
	}

	again, err := NewMaster(opts...)
	if err != nil {
		t.Fatalf("NewMaster after Close: %v", err)
	}
	again.Close()
}

func TestClientCount(t *testing.T) {
	opts := testOptions(newAuthority())

	var clients []*Client
	for i := 0; i < 5; i++ {
		c, err := NewClient(opts...)
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		clients = append(clients, c)
	}
	for _, c := range clients[:2] {
		if err := c.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	if got := NumClients(opts...); got != 3 {
		t.Fatalf("NumClients = %d, want 3", got)
	}

	Reinitialize(opts...)
	if got := NumClients(opts...); got != 0 {
		t.Fatalf("NumClients after Reinitialize = %d, want 0", got)
	}
	if err := clients[2].Close(); !errors.Is(err, contracts.ErrUnknownClient) {
		t.Fatalf("Close after Reinitialize error = %v, want ErrUnknownClient", err)
	}
}

func TestClientWithoutMasterReadsDefault(t *testing.T) {
	c, err := NewClient(testOptions(newAuthority())...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	if got := c.NoteToFrequency(69, 0); got != 440 {
		t.Errorf("NoteToFrequency(69, 0) = %v, want 440", got)
	}
	if got := c.ScaleName(); got != contracts.DefaultScaleName {
		t.Errorf("ScaleName = %q", got)
	}
	if c.HasMaster() {
		t.Error("HasMaster = true")
	}
	if got := c.FrequencyToNote(261.63, 0); got != 60 {
		t.Errorf("FrequencyToNote(261.63) = %d, want 60", got)
	}
}

func TestMasterWritesAreVisibleToClients(t *testing.T) {
	opts := testOptions(newAuthority())
	m, err := NewMaster(opts...)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	defer m.Close()
	c, _ := NewClient(opts...)
	defer c.Close()

	if err := m.SetNoteTuning(445, 69); err != nil {
		t.Fatalf("SetNoteTuning: %v", err)
	}
	if err := m.SetMultiChannelNoteTuning(450, 69, 3); err != nil {
		t.Fatalf("SetMultiChannelNoteTuning: %v", err)
	}
	if got := c.NoteToFrequency(69, 3); got != 445 {
		t.Errorf("channel 3 before enabling = %v, want shared 445", got)
	}
	if err := m.SetMultiChannel(true, 3); err != nil {
		t.Fatalf("SetMultiChannel: %v", err)
	}
	if got := c.NoteToFrequency(69, 3); got != 450 {
		t.Errorf("channel 3 = %v, want 450", got)
	}
	if note, ch := c.FrequencyToNoteAndChannel(450); note != 69 || ch != 3 {
		t.Errorf("FrequencyToNoteAndChannel(450) = %d, %d", note, ch)
	}
	if err := m.FilterNote(true, 70); err != nil {
		t.Fatalf("FilterNote: %v", err)
	}
	if !c.ShouldFilterNote(70, 0) {
		t.Error("note 70 not filtered")
	}
	if got := c.RetuningAsRatio(69, 0); math.Abs(got-445.0/440.0) > 1e-12 {
		t.Errorf("RetuningAsRatio = %v", got)
	}
}

func TestLoadScalaShared(t *testing.T) {
	opts := testOptions(newAuthority())
	m, err := NewMaster(opts...)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	defer m.Close()
	c, _ := NewClient(opts...)
	defer c.Close()

	err = m.LoadScala(filepath.Join(testdata, "ji_12.scl"), filepath.Join(testdata, "ji_12.kbm"), -1)
	if err != nil {
		t.Fatalf("LoadScala: %v", err)
	}
	if got := c.NoteToFrequency(69, 0); math.Abs(got-440) > 1e-8 {
		t.Errorf("note 69 = %v, want 440", got)
	}
	ratio := c.NoteToFrequency(61, 0) / c.NoteToFrequency(60, 0)
	if math.Abs(ratio-16.0/15.0) > 1e-12 {
		t.Errorf("61/60 = %v, want 16/15", ratio)
	}
	if got := c.ScaleName(); got != "Ptolemy's intense diatonic, 5-limit just intonation" {
		t.Errorf("ScaleName = %q", got)
	}
}

func TestLoadScalaChannelsReportsEveryFailure(t *testing.T) {
	a := newAuthority()
	m, err := NewMaster(testOptions(a)...)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	defer m.Close()

	err = m.LoadScalaChannels([]ScalaFiles{
		{Scale: filepath.Join(testdata, "ji_12.scl")},
		{Scale: filepath.Join(testdata, "missing.scl")},
		{Scale: filepath.Join(testdata, "edo_12.scl"), Mapping: filepath.Join(testdata, "missing.kbm")},
	})
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("got %d errors (%v), want 2", got, err)
	}
	if a.Snapshot().MultiChannel[0] {
		t.Error("channel 0 enabled although loading failed")
	}

	err = m.LoadScalaChannels([]ScalaFiles{
		{Scale: filepath.Join(testdata, "edo_12.scl")},
		{Scale: filepath.Join(testdata, "ji_12.scl"), Mapping: filepath.Join(testdata, "ji_12.kbm")},
	})
	if err != nil {
		t.Fatalf("LoadScalaChannels: %v", err)
	}
	s := a.Snapshot()
	if !s.MultiChannel[0] || !s.MultiChannel[1] || s.MultiChannel[2] {
		t.Errorf("multi-channel flags = %v", s.MultiChannel[:3])
	}
}

func TestScalaFilesToFrequencies(t *testing.T) {
	freqs, err := ScalaFilesToFrequencies(filepath.Join(testdata, "edo_12.scl"), filepath.Join(testdata, "white_keys.kbm"))
	if err != nil {
		t.Fatalf("ScalaFilesToFrequencies: %v", err)
	}
	for note, f := range freqs {
		if f <= 0 {
			t.Fatalf("note %d = %v, want a concrete frequency", note, f)
		}
	}
	if _, err := ScalaFilesToFrequencies(filepath.Join(testdata, "missing.scl"), ""); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestBulkDumpCarriesTuning(t *testing.T) {
	m, err := NewMaster(testOptions(newAuthority())...)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	defer m.Close()
	if err := m.SetNoteTuning(445, 69); err != nil {
		t.Fatal(err)
	}

	data, err := m.BulkDump(sysex.AllDevices, 5)
	if err != nil {
		t.Fatalf("BulkDump: %v", err)
	}
	msg, err := sysex.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	dump, ok := msg.(*sysex.BulkDump)
	if !ok {
		t.Fatalf("decoded %T", msg)
	}
	if dump.Program != 5 {
		t.Errorf("program = %d", dump.Program)
	}
	got := dump.Pitches[69].Frequency()
	if math.Abs(12*math.Log2(got/445)) > sysex.Resolution {
		t.Errorf("note 69 = %v, want 445", got)
	}
}

type fakePort struct {
	mu      sync.Mutex
	devices []contracts.DeviceInfo
	chosen  int
	events  chan chan contracts.SysEx
	sent    chan []byte
}

func newFakePort(names ...string) *fakePort {
	p := &fakePort{chosen: -1, events: make(chan chan contracts.SysEx, 1), sent: make(chan []byte, 4)}
	for _, n := range names {
		p.devices = append(p.devices, contracts.DeviceInfo{Name: n, CanSend: true})
	}
	return p
}

func (p *fakePort) Stop() error { return nil }

func (p *fakePort) ListDevices() ([]contracts.DeviceInfo, error) { return p.devices, nil }

func (p *fakePort) SelectDevice(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chosen = id
	return nil
}

func (p *fakePort) StartCapture(ch chan contracts.SysEx) { p.events <- ch }

func (p *fakePort) Send(data []byte) error {
	p.sent <- data
	return nil
}

func TestSelectDeviceByName(t *testing.T) {
	p := newFakePort("IAC Driver Bus 1", "Launchpad X LPX MIDI")

	id, err := SelectDeviceByName(p, "launchpad")
	if err != nil || id != 1 || p.chosen != 1 {
		t.Fatalf("SelectDeviceByName = %d, %v (chosen %d)", id, err, p.chosen)
	}
	if _, err := SelectDeviceByName(p, "synth"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("error = %v, want ErrDeviceNotFound", err)
	}
}

func TestListenSysExAppliesAndReplies(t *testing.T) {
	opts := testOptions(newAuthority())
	m, err := NewMaster(opts...)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	defer m.Close()
	c, _ := NewClient(opts...)
	defer c.Close()

	p := newFakePort("loopback")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ListenSysEx(ctx, p, m, opts...) }()

	events := <-p.events
	change, err := sysex.EncodeNoteChange(&sysex.NoteChange{
		DeviceID: sysex.AllDevices,
		Realtime: true,
		Changes:  []sysex.NoteTuning{{Key: 69, Pitch: sysex.EncodePitch(450)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	request, err := sysex.EncodeDumpRequest(&sysex.DumpRequest{DeviceID: sysex.AllDevices})
	if err != nil {
		t.Fatal(err)
	}
	events <- contracts.SysEx{Data: []byte{0xf0, 0x01, 0xf7}}
	events <- contracts.SysEx{Data: change}
	events <- contracts.SysEx{Data: request}

	select {
	case reply := <-p.sent:
		if _, err := sysex.Decode(reply); err != nil {
			t.Fatalf("reply does not decode: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply to dump request")
	}
	if got := c.NoteToFrequency(69, 0); math.Abs(12*math.Log2(got/450)) > sysex.Resolution {
		t.Errorf("note 69 = %v, want 450", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("ListenSysEx: %v", err)
	}
}

func TestClosedMasterCannotWrite(t *testing.T) {
	a := newAuthority()
	opts := testOptions(a)

	stale, err := NewMaster(opts...)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	if err := stale.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	current, err := NewMaster(opts...)
	if err != nil {
		t.Fatalf("NewMaster after Close: %v", err)
	}
	defer current.Close()
	if err := current.SetNoteTuning(432, 69); err != nil {
		t.Fatal(err)
	}
	before := a.Snapshot()

	writes := map[string]func() error{
		"SetNoteTuning":  func() error { return stale.SetNoteTuning(1000, 69) },
		"SetNoteTunings": func() error { return stale.SetNoteTunings(contracts.TuningTable{}) },
		"SetNoteTuningBatch": func() error {
			return stale.SetNoteTuningBatch([]contracts.NoteTuning{{Frequency: 1000, Note: 69, Channel: contracts.SharedChannel}})
		},
		"SetScaleName":    func() error { return stale.SetScaleName("stale") },
		"FilterNote":      func() error { return stale.FilterNote(true, 69) },
		"SetMultiChannel": func() error { return stale.SetMultiChannel(true, 0) },
		"LoadScala": func() error {
			return stale.LoadScala(filepath.Join(testdata, "edo_12.scl"), "", -1)
		},
		"ApplySysEx": func() error {
			data, err := sysex.EncodeNoteChange(&sysex.NoteChange{
				DeviceID: sysex.AllDevices,
				Realtime: true,
				Changes:  []sysex.NoteTuning{{Key: 69, Pitch: sysex.EncodePitch(1000)}},
			})
			if err != nil {
				return err
			}
			_, err = stale.ApplySysEx(data)
			return err
		},
		"BulkDump": func() error {
			_, err := stale.BulkDump(sysex.AllDevices, 0)
			return err
		},
	}
	for name, write := range writes {
		if err := write(); !errors.Is(err, contracts.ErrNotRegistered) {
			t.Errorf("%s on closed master: error = %v, want ErrNotRegistered", name, err)
		}
	}

	if a.Snapshot() != before {
		t.Fatal("closed master changed the current tuning")
	}
	if !HasMaster(opts...) {
		t.Error("HasMaster = false after writes through a closed master")
	}
	if err := stale.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if !HasMaster(opts...) {
		t.Error("second Close of a stale guard deregistered the current master")
	}
}
