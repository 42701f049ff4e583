package main

import (
	"fmt"

	"github.com/leandrodaf/mtsesp/internal/logger"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
	"github.com/leandrodaf/mtsesp/sdk/mts"
)

func main() {
	log := logger.NewZapLogger()

	master, err := mts.NewMaster(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
	)
	if err != nil {
		log.Error("Failed to register tuning master", log.Field().Error("error", err))
		return
	}
	defer master.Close()

	// Quarter-comma meantone major third on E4.
	if err := master.SetNoteTuning(261.6255653*5.0/4.0, 64); err != nil {
		log.Error("Failed to retune note", log.Field().Error("error", err))
		return
	}
	if err := master.SetScaleName("meantone third"); err != nil {
		log.Error("Failed to set scale name", log.Field().Error("error", err))
		return
	}

	client, err := mts.NewClient(contracts.WithLogger(log))
	if err != nil {
		log.Error("Failed to register tuning client", log.Field().Error("error", err))
		return
	}
	defer client.Close()

	fmt.Println("Scale:", client.ScaleName())
	for note := 60; note <= 67; note++ {
		fmt.Printf("note %d: %.4f Hz (%+.2f semitones)\n",
			note, client.NoteToFrequency(note, 0), client.RetuningInSemitones(note, 0))
	}
	fmt.Println("Clients registered:", mts.NumClients())
}
