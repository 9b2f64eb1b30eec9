// Command audio-devices lists the capture and playback devices the
// audio subsystem can see. Useful for picking LUMA_INPUT_DEVICE /
// LUMA_OUTPUT_DEVICE indices.
//
// Usage:
//
//	go run ./cmd/audio-devices
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/luma-robotics/go-luma/internal/log"
	"github.com/luma-robotics/go-luma/pkg/audioio"
)

func main() {
	log.InitFromEnv()

	backend := audioio.NewMalgoBackend(log.Component("audio"))
	if err := backend.Init(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "audio init failed: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	dm := audioio.NewDeviceManager(backend, log.Component("devices"))

	fmt.Println("Capture devices:")
	printDevices(dm.ListDevices(audioio.Input), true)
	fmt.Println()
	fmt.Println("Playback devices:")
	printDevices(dm.ListDevices(audioio.Output), false)
}

func printDevices(devices []audioio.Device, input bool) {
	if len(devices) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, d := range devices {
		channels := d.OutputChannels
		if input {
			channels = d.InputChannels
		}
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf("  %s [%d] %s  (%d ch, %d Hz)\n",
			marker, d.Index, d.Name, channels, d.DefaultSampleRate)
	}
}
