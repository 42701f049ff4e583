// Command mtsmaster owns the process-wide tuning and feeds it from Scala files,
// CSV files or MIDI Tuning Standard SysEx.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/leandrodaf/mtsesp/internal/logger"
	"github.com/leandrodaf/mtsesp/internal/scala"
	"github.com/leandrodaf/mtsesp/internal/signals"
	"github.com/leandrodaf/mtsesp/internal/sysex"
	"github.com/leandrodaf/mtsesp/internal/tuningcsv"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
	"github.com/leandrodaf/mtsesp/sdk/mts"
	"go.uber.org/multierr"
)

const usage = `usage: mtsmaster [flags] <command> [args]

commands:
  scala [-channel n] file.scl [file.kbm]   tune the shared table or one channel
  multi a.scl a.kbm [b.scl b.kbm ...]      tune channel 0, 1, ... from file pairs
  csv file.csv                             tune channels from frequency,note,channel rows
  listen -device name                      apply tuning SysEx received from a device
  dump -device name file.scl [file.kbm]    send a bulk tuning dump to a device
  ports                                    list MIDI devices

flags:
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("mtsmaster", flag.ContinueOnError)
	levelName := fs.String("log-level", "info", "log level: debug, info, warn, error")
	logFile := fs.String("log-file", "", "write logs to this file instead of stderr")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	level, ok := contracts.ParseLogLevel(*levelName)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown log level %q\n", *levelName)
		return 2
	}
	log := logger.NewZapLogger()
	opts := []contracts.Option{contracts.WithLogger(log), contracts.WithLogLevel(level)}
	if *logFile != "" {
		opts = append(opts, contracts.WithLogFile(*logFile))
	}

	commands := map[string]func([]string, []contracts.Option) error{
		"scala":  runScala,
		"multi":  runMulti,
		"csv":    runCSV,
		"listen": runListen,
		"dump":   runDump,
		"ports":  runPorts,
	}
	name := fs.Arg(0)
	cmd, exists := commands[name]
	if !exists {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
		fs.Usage()
		return 2
	}
	err := cmd(fs.Args()[1:], opts)
	var se *signalError
	if err != nil && !errors.As(err, &se) {
		log.Error("Command failed", log.Field().String("command", name), log.Field().Error("error", err))
	}
	return exitStatus(err)
}

// signalError ends a command that stopped because the process was signalled.
type signalError struct {
	sig os.Signal
}

func (e *signalError) Error() string {
	return "interrupted by " + e.sig.String()
}

// exitStatus maps a command result to the process exit code. A signal gives
// 128 + the signal number, like the master's own signal hook.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var se *signalError
	if errors.As(err, &se) {
		return signals.ExitCode(se.sig)
	}
	return 1
}

func runScala(args []string, opts []contracts.Option) error {
	fs := flag.NewFlagSet("scala", flag.ContinueOnError)
	channel := fs.Int("channel", -1, "MIDI channel 0-15; the shared table when negative")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return fmt.Errorf("scala needs a .scl file and an optional .kbm file")
	}

	m, err := mts.NewMaster(opts...)
	if err != nil {
		return err
	}
	if err := m.LoadScala(fs.Arg(0), fs.Arg(1), *channel); err != nil {
		return multierr.Append(err, m.Close())
	}
	holdUntilSignal()
	return nil
}

func runMulti(args []string, opts []contracts.Option) error {
	if len(args) == 0 || len(args)%2 != 0 {
		return fmt.Errorf("multi needs .scl and .kbm file pairs")
	}
	files := make([]mts.ScalaFiles, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		files = append(files, mts.ScalaFiles{Scale: args[i], Mapping: args[i+1]})
	}

	m, err := mts.NewMaster(opts...)
	if err != nil {
		return err
	}
	if err := m.LoadScalaChannels(files); err != nil {
		return multierr.Append(err, m.Close())
	}
	holdUntilSignal()
	return nil
}

func runCSV(args []string, opts []contracts.Option) error {
	if len(args) != 1 {
		return fmt.Errorf("csv needs one file")
	}
	rows, err := tuningcsv.ReadFile(args[0])
	if err != nil {
		return err
	}

	m, err := mts.NewMaster(opts...)
	if err != nil {
		return err
	}
	if err := tuningcsv.Apply(m, rows); err != nil {
		return multierr.Append(err, m.Close())
	}
	holdUntilSignal()
	return nil
}

// holdUntilSignal blocks while the master's signal hook waits to deregister and exit.
func holdUntilSignal() {
	fmt.Println("Tuning set. Press Ctrl+C to exit.")
	select {}
}

func runListen(args []string, opts []contracts.Option) (err error) {
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	device := fs.String("device", "", "substring of the MIDI device name")
	deviceChannels := fs.Bool("device-channels", false, "route device ids 0-15 to channel tables")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *device == "" {
		return fmt.Errorf("listen needs -device")
	}

	opts = append(opts,
		contracts.WithSignalHandling(false),
		contracts.WithDeviceChannels(*deviceChannels),
		contracts.WithPortConfig(contracts.PortConfig{DeviceName: *device}))

	m, err := mts.NewMaster(opts...)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, m.Close()) }()

	port, err := mts.NewPort(opts...)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, port.Stop()) }()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, signals.TerminationSignals()...)
	defer signal.Stop(sigs)
	return listenUntilSignal(sigs, func(ctx context.Context) error {
		return mts.ListenSysEx(ctx, port, m, opts...)
	})
}

// listenUntilSignal runs listen until it returns or a signal arrives on sigs. A
// signal cancels listen and is reported as a *signalError.
func listenUntilSignal(sigs <-chan os.Signal, listen func(context.Context) error) error {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	go func() {
		select {
		case sig := <-sigs:
			cancel(&signalError{sig: sig})
		case <-ctx.Done():
		}
	}()

	err := listen(ctx)
	if cause := context.Cause(ctx); err == nil || errors.Is(err, context.Canceled) {
		var se *signalError
		if errors.As(cause, &se) {
			return se
		}
	}
	return err
}

func runDump(args []string, opts []contracts.Option) (err error) {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	device := fs.String("device", "", "substring of the MIDI device name")
	deviceID := fs.Uint("device-id", uint(sysex.AllDevices), "SysEx device id")
	program := fs.Uint("program", 0, "tuning program number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *device == "" || fs.NArg() < 1 || fs.NArg() > 2 {
		return fmt.Errorf("dump needs -device, a .scl file and an optional .kbm file")
	}
	if *deviceID > 0x7f || *program > 0x7f {
		return fmt.Errorf("%w: device id and program must be 0-127", contracts.ErrProtocol)
	}

	scale, mapping, err := scala.ReadFiles(fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	table, err := scala.Frequencies(scale, mapping)
	if err != nil {
		return err
	}
	data, err := sysex.EncodeBulkDump(sysex.DumpFromTable(byte(*deviceID), byte(*program), scale.Description, table))
	if err != nil {
		return err
	}

	port, err := mts.NewPort(append(opts, contracts.WithPortConfig(contracts.PortConfig{DeviceName: *device}))...)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, port.Stop()) }()
	return port.Send(data)
}

func runPorts(_ []string, opts []contracts.Option) (err error) {
	port, err := mts.NewPort(opts...)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, port.Stop()) }()

	devices, err := port.ListDevices()
	if err != nil {
		return err
	}
	for i, d := range devices {
		fmt.Printf("%2d  %-32s %-20s send=%t\n", i, d.Name, d.Manufacturer, d.CanSend)
	}
	return nil
}
