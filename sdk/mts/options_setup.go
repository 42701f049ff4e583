package mts

import (
	"github.com/leandrodaf/mtsesp/internal/logger"
	"github.com/leandrodaf/mtsesp/internal/master"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// DefaultClientName is the name ports register with the MIDI system.
const DefaultClientName = "mtsesp"

// applyDefaultOptions sets default values for ClientOptions if not explicitly provided.
//
// opts ...contracts.Option: A variadic list of option functions that can modify ClientOptions.
//
// Returns:
//   - contracts.ClientOptions: The options with defaults applied. The authority
//     defaults to the process-wide store, built with the configured logger.
func applyDefaultOptions(opts ...contracts.Option) contracts.ClientOptions {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	if options.Authority == nil {
		options.Authority = master.Shared(options.Logger)
	}
	if options.HandleSignals == nil {
		enabled := true
		options.HandleSignals = &enabled
	}
	if options.PortConfig == nil {
		options.PortConfig = &contracts.PortConfig{ClientName: DefaultClientName}
	} else if options.PortConfig.ClientName == "" {
		options.PortConfig.ClientName = DefaultClientName
	}

	options.Logger.SetLevel(options.LogLevel)
	return *options
}
