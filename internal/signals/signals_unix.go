//go:build unix

package signals

import (
	"os"

	"golang.org/x/sys/unix"
)

// TerminationSignals returns the signals a master deregisters on.
func TerminationSignals() []os.Signal {
	return []os.Signal{unix.SIGINT, unix.SIGTERM}
}

func signalNumber(sig os.Signal) (int, bool) {
	s, ok := sig.(unix.Signal)
	if !ok {
		return 0, false
	}
	return int(s), true
}
