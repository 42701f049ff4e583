// Package mts is the public entry point for owning and reading the process-wide
// tuning: a Master guard that writes tables, Client handles that query them, Scala
// file loading, and MIDI Tuning Standard SysEx over MIDI ports.
package mts

import "github.com/leandrodaf/mtsesp/sdk/contracts"

// CanRegisterMaster reports whether NewMaster would succeed.
func CanRegisterMaster(opts ...contracts.Option) bool {
	return applyDefaultOptions(opts...).Authority.CanRegisterMaster()
}

// HasMaster reports whether a master is registered.
func HasMaster(opts ...contracts.Option) bool {
	return applyDefaultOptions(opts...).Authority.HasMaster()
}

// NumClients returns the number of registered clients.
func NumClients(opts ...contracts.Option) int {
	return applyDefaultOptions(opts...).Authority.NumClients()
}

// Reinitialize drops the master, every table and filter, and the client count.
// Use it to recover after a master exited without deregistering.
func Reinitialize(opts ...contracts.Option) {
	options := applyDefaultOptions(opts...)
	options.Logger.Warn("Reinitializing tuning authority")
	options.Authority.Reinitialize()
}
