// Package signals runs a cleanup function when the process receives a termination
// signal, then exits with 128 + the signal number.
package signals

import (
	"os"
	"os/signal"
	"sync"

	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// subscriptions counts live hooks per signal. ignoredBefore records signals that
// were ignored when their first live hook was installed; the ignore disposition
// is restored only once the last of those hooks is released.
var (
	subscriptionsMu sync.Mutex
	subscriptions   = map[os.Signal]int{}
	ignoredBefore   = map[os.Signal]bool{}
)

// Hook is one installed termination handler. Hooks compose: each owns its own
// subscription, and releasing one leaves earlier handlers in place.
type Hook struct {
	logger  contracts.Logger
	cleanup func() error
	exit    func(code int)

	signals []os.Signal
	ch      chan os.Signal
	done    chan struct{}
	once    sync.Once
}

// Install subscribes to sigs (TerminationSignals when empty). On delivery the hook
// runs cleanup and calls exit(128 + signal number); exit defaults to os.Exit.
// A cleanup error is logged and does not change the exit code.
func Install(log contracts.Logger, cleanup func() error, exit func(code int), sigs ...os.Signal) *Hook {
	if len(sigs) == 0 {
		sigs = TerminationSignals()
	}
	if exit == nil {
		exit = os.Exit
	}

	h := &Hook{
		logger:  log,
		cleanup: cleanup,
		exit:    exit,
		signals: sigs,
		ch:      make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
	subscriptionsMu.Lock()
	for _, sig := range sigs {
		if subscriptions[sig] == 0 {
			ignoredBefore[sig] = signal.Ignored(sig)
		}
		subscriptions[sig]++
	}
	signal.Notify(h.ch, sigs...)
	subscriptionsMu.Unlock()

	go h.wait()
	return h
}

func (h *Hook) wait() {
	select {
	case sig := <-h.ch:
		h.handle(sig)
	case <-h.done:
	}
}

func (h *Hook) handle(sig os.Signal) {
	h.logger.Info("Deregistering master after receiving signal",
		h.logger.Field().String("signal", sig.String()))
	if err := h.cleanup(); err != nil {
		h.logger.Error("Cleanup after signal failed", h.logger.Field().Error("error", err))
	}
	h.exit(ExitCode(sig))
}

// Release unsubscribes the hook. When it was the last live hook on a signal that
// was ignored before any hook was installed, the ignore disposition is restored.
// Hooks may be released in any order, and Release is safe to call more than once.
func (h *Hook) Release() {
	h.once.Do(func() {
		subscriptionsMu.Lock()
		defer subscriptionsMu.Unlock()

		signal.Stop(h.ch)
		close(h.done)

		var restore []os.Signal
		for _, sig := range h.signals {
			subscriptions[sig]--
			if subscriptions[sig] > 0 {
				continue
			}
			delete(subscriptions, sig)
			if ignoredBefore[sig] {
				restore = append(restore, sig)
			}
			delete(ignoredBefore, sig)
		}
		if len(restore) > 0 {
			signal.Ignore(restore...)
		}
	})
}

// ExitCode returns the conventional exit status for a process killed by sig.
func ExitCode(sig os.Signal) int {
	if n, ok := signalNumber(sig); ok {
		return 128 + n
	}
	return 1
}
