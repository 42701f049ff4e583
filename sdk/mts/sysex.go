package mts

import (
	"context"

	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

// sysExBuffer is the capture channel depth.
const sysExBuffer = 64

// SysExApplier applies a tuning SysEx frame and returns an optional reply. Master
// implements it.
type SysExApplier interface {
	ApplySysEx(data []byte) ([]byte, error)
}

// ListenSysEx captures SysEx from port and applies every frame until ctx is done.
// Replies such as bulk dumps are sent back through the port. Frames that fail to
// apply are logged and skipped.
func ListenSysEx(ctx context.Context, port contracts.SysExPort, applier SysExApplier, opts ...contracts.Option) error {
	options := applyDefaultOptions(opts...)
	log := options.Logger

	events := make(chan contracts.SysEx, sysExBuffer)
	port.StartCapture(events)
	log.Info("Listening for tuning SysEx")

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopped listening for tuning SysEx")
			return nil
		case ev := <-events:
			reply, err := applier.ApplySysEx(ev.Data)
			if err != nil {
				log.Debug("SysEx frame not applied",
					log.Field().Uint64("timestamp", ev.Timestamp),
					log.Field().Error("error", err))
				continue
			}
			if reply == nil {
				continue
			}
			if err := port.Send(reply); err != nil {
				log.Error("Failed to send SysEx reply", log.Field().Error("error", err))
			}
		}
	}
}
