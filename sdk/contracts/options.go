package contracts

// PortConfig holds configuration for the MIDI port backends.
type PortConfig struct {
	ClientName string // Name the process registers with the MIDI system.
	DeviceName string // Substring of the device to select; empty selects nothing.
}

// ClientOptions defines the configuration shared by masters, clients and ports.
type ClientOptions struct {
	Logger         Logger         // Logger for lifecycle events and errors.
	LogLevel       LogLevel       // Level of logging to use.
	LogFilePath    string         // File path for logging if file logging is enabled.
	Authority      Authority      // Tuning authority; the process-wide one when nil.
	HandleSignals  *bool          // Install the termination hook on a master; true when nil.
	ExitFunc       func(code int) // Called by the termination hook; os.Exit when nil.
	PortConfig     *PortConfig    // Configuration for SysEx ports.
	DeviceChannels bool           // Route SysEx device ids 0-15 to channel tables.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile sends log output to the given file instead of stderr.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithAuthority injects the tuning authority instead of the process-wide one.
func WithAuthority(a Authority) Option {
	return func(opts *ClientOptions) {
		opts.Authority = a
	}
}

// WithSignalHandling controls whether a master deregisters itself on SIGINT and SIGTERM.
func WithSignalHandling(enabled bool) Option {
	return func(opts *ClientOptions) {
		opts.HandleSignals = &enabled
	}
}

// WithExitFunc replaces os.Exit in the termination hook.
func WithExitFunc(exit func(code int)) Option {
	return func(opts *ClientOptions) {
		opts.ExitFunc = exit
	}
}

// WithPortConfig sets the SysEx port configuration.
func WithPortConfig(config PortConfig) Option {
	return func(opts *ClientOptions) {
		opts.PortConfig = &config
	}
}

// WithDeviceChannels routes SysEx messages addressed to device ids 0-15 to the
// multi-channel table of that channel instead of the shared table.
func WithDeviceChannels(enabled bool) Option {
	return func(opts *ClientOptions) {
		opts.DeviceChannels = enabled
	}
}
