//go:build !unix

package signals

import (
	"os"
	"syscall"
)

// TerminationSignals returns the signals a master deregisters on.
func TerminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

func signalNumber(sig os.Signal) (int, bool) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return 0, false
	}
	return int(s), true
}
