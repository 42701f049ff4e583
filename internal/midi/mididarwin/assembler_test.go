package mididarwin

import (
	"bytes"
	"sync"
	"testing"
)

func TestAssemblerJoinsSplitFrames(t *testing.T) {
	a := NewAssembler()
	if got := a.Feed([]byte{0xf0, 0x7f, 0x00}); len(got) != 0 {
		t.Fatalf("partial packet produced %d frames", len(got))
	}
	got := a.Feed([]byte{0x08, 0x02, 0xf7})
	want := []byte{0xf0, 0x7f, 0x00, 0x08, 0x02, 0xf7}
	if len(got) != 1 || !bytes.Equal(got[0], want) {
		t.Fatalf("frames = %x, want [%x]", got, want)
	}
}

func TestAssemblerSkipsRealtimeAndNoise(t *testing.T) {
	a := NewAssembler()
	got := a.Feed([]byte{0x90, 0x40, 0x7f, 0xf0, 0x01, 0xf8, 0x02, 0xf7, 0xf0, 0x03, 0xf7})
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if !bytes.Equal(got[0], []byte{0xf0, 0x01, 0x02, 0xf7}) {
		t.Errorf("first frame = %x", got[0])
	}
	if !bytes.Equal(got[1], []byte{0xf0, 0x03, 0xf7}) {
		t.Errorf("second frame = %x", got[1])
	}
}

func TestAssemblerAbortsOnStatusByte(t *testing.T) {
	a := NewAssembler()
	got := a.Feed([]byte{0xf0, 0x01, 0x90, 0x02, 0xf7})
	if len(got) != 0 {
		t.Fatalf("interrupted frame produced %x", got)
	}
}

func TestAssemblerReset(t *testing.T) {
	a := NewAssembler()
	a.Feed([]byte{0xf0, 0x01})
	a.Reset()
	if got := a.Feed([]byte{0x02, 0xf7}); len(got) != 0 {
		t.Fatalf("reset did not drop partial frame: %x", got)
	}
}

func TestAssemblerConcurrentFeedAndReset(t *testing.T) {
	a := NewAssembler()
	frame := []byte{0xf0, 0x7f, 0x00, 0x08, 0x02, 0x00, 0x01, 0x45, 0x45, 0x00, 0x00, 0xf7}

	const feeders, packets = 4, 200
	counts := make([]int, feeders)
	var wg sync.WaitGroup
	for i := 0; i < feeders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < packets; j++ {
				for _, got := range a.Feed(frame) {
					if !bytes.Equal(got, frame) {
						t.Errorf("frame = %x, want %x", got, frame)
						return
					}
					counts[i]++
				}
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < packets; j++ {
			a.Reset()
		}
	}()
	wg.Wait()

	for i, n := range counts {
		if n != packets {
			t.Errorf("feeder %d got %d frames, want %d", i, n, packets)
		}
	}
}
