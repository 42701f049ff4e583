package mididarwin

import "sync"

const (
	sysExStart = 0xf0
	sysExEnd   = 0xf7

	// maxFrameLength bounds a frame that never sees its terminator.
	maxFrameLength = 4096
)

// Assembler rebuilds SysEx frames that CoreMIDI may split across packets.
// Realtime bytes (0xF8..0xFF) may be interleaved and are skipped. Any other
// status byte aborts the frame in progress. Feed and Reset may be called from
// different goroutines; each Feed consumes its packet as a unit.
type Assembler struct {
	mu     sync.Mutex
	buf    []byte
	inside bool
}

// NewAssembler returns an assembler with no frame in progress.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Reset drops any partial frame.
func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset()
}

func (a *Assembler) reset() {
	a.buf = a.buf[:0]
	a.inside = false
}

// Feed consumes one packet and returns every frame it completed.
func (a *Assembler) Feed(data []byte) [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	var frames [][]byte
	for _, b := range data {
		switch {
		case b == sysExStart:
			a.buf = append(a.buf[:0], b)
			a.inside = true
		case !a.inside:
		case b == sysExEnd:
			frames = append(frames, append(append([]byte(nil), a.buf...), b))
			a.reset()
		case b >= 0xf8:
		case b&0x80 != 0:
			a.reset()
		default:
			a.buf = append(a.buf, b)
			if len(a.buf) > maxFrameLength {
				a.reset()
			}
		}
	}
	return frames
}
