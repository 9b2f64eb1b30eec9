// Command luma runs the voice pipeline against real hardware: malgo
// capture, oto playback, the realtime speech service, and a stub agent
// that speaks transcripts back. Useful for tuning latency and the
// detection thresholds end to end.
//
// Usage:
//
//	go run ./cmd/luma
//	go run ./cmd/luma --no-wake --sensitivity 0.7
//	go run ./cmd/luma --vad-endpoint http://localhost:8085/score
//
// Environment variables:
//
//	OPENAI_API_KEY       - required, realtime service credentials
//	LUMA_INPUT_DEVICE    - capture device index (see cmd/audio-devices)
//	LUMA_OUTPUT_DEVICE   - playback device index
//	LUMA_WAKE_MODELS     - comma-separated name=url scorer endpoints
//	LUMA_LOG_LEVEL       - debug, info, warn, error
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/luma-robotics/go-luma/internal/config"
	"github.com/luma-robotics/go-luma/internal/log"
	"github.com/luma-robotics/go-luma/pkg/agent"
	"github.com/luma-robotics/go-luma/pkg/audioio"
	"github.com/luma-robotics/go-luma/pkg/pipeline"
	"github.com/luma-robotics/go-luma/pkg/provider"
	"github.com/luma-robotics/go-luma/pkg/recovery"
	"github.com/luma-robotics/go-luma/pkg/vad"
	"github.com/luma-robotics/go-luma/pkg/wakeword"
)

func main() {
	noWake := flag.Bool("no-wake", false, "Skip wake word gating and listen immediately")
	noBeep := flag.Bool("no-beep", false, "Disable the wake confirmation beep")
	sensitivity := flag.Float64("sensitivity", wakeword.DefaultConfig().Sensitivity, "Wake word sensitivity, 0 (strict) to 1 (lenient)")
	vadEndpoint := flag.String("vad-endpoint", config.Env("LUMA_VAD_ENDPOINT", ""), "Speech scoring sidecar URL; empty uses the energy scorer")
	voice := flag.String("voice", "alloy", "Synthesis voice")
	instructions := flag.String("instructions", "You are Luma, a friendly robot assistant. Keep responses brief.", "Session instructions for the realtime service")
	flag.Parse()

	log.InitFromEnv()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "OPENAI_API_KEY is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Audio subsystem.
	audioCfg := audioio.DefaultConfig()
	audioCfg.InputDevice = config.EnvInt("LUMA_INPUT_DEVICE", audioio.DeviceDefault)
	audioCfg.OutputDevice = config.EnvInt("LUMA_OUTPUT_DEVICE", audioio.DeviceDefault)

	capture := audioio.NewMalgoBackend(log.Component("audio"))
	playback := audioio.NewOtoBackend(log.Component("audio"))
	devices := audioio.NewDeviceManager(capture, log.Component("devices"))

	audio, err := audioio.NewManager(audioCfg, devices, capture, playback, log.Component("audio"))
	if err != nil {
		fatal("audio manager: %v", err)
	}

	// Speech detection. The model scorer degrades to energy scoring on
	// its own if the sidecar goes away, so wiring it is always safe.
	vadCfg := vad.DefaultConfig()
	var scorer vad.Scorer = vad.EnergyScorer{}
	if *vadEndpoint != "" {
		scorer = vad.NewModelScorer(*vadEndpoint, vadCfg.ChunkSize)
	}
	detector, err := vad.NewDetector(vadCfg, scorer, log.Component("vad"))
	if err != nil {
		fatal("speech detector: %v", err)
	}

	// Wake word models. Without any endpoints the gate is disabled and
	// the pipeline listens continuously.
	wakeCfg := wakeword.DefaultConfig()
	wakeCfg.Sensitivity = *sensitivity
	wake, err := buildWakeDetector(wakeCfg)
	if err != nil {
		fatal("wake word detector: %v", err)
	}

	recov := recovery.NewManager(log.Component("recovery"))
	recov.SetObserver(func(component string, entering bool) {
		if entering {
			log.Warn("component degraded", "component", component)
		} else {
			log.Info("component recovered", "component", component)
		}
	})

	provCfg := provider.DefaultRealtimeConfig()
	provCfg.APIKey = apiKey
	provCfg.Voice = *voice
	provCfg.Instructions = *instructions
	prov := provider.NewRealtime(provCfg, log.Component("provider"))

	pipeCfg := pipeline.DefaultConfig()
	pipeCfg.WakeWordEnabled = !*noWake && wake != nil
	pipeCfg.ConfirmationBeep = !*noBeep

	pipe, err := pipeline.New(pipeCfg, audio, detector, wake, recov, prov, &stubAgent{}, log.Component("pipeline"))
	if err != nil {
		fatal("pipeline: %v", err)
	}

	if err := pipe.Start(ctx); err != nil {
		fatal("start: %v", err)
	}

	fmt.Println("Luma voice pipeline running. Ctrl-C to stop.")
	if pipeCfg.WakeWordEnabled {
		fmt.Printf("Wake words: %s\n", strings.Join(wake.Models(), ", "))
	} else {
		fmt.Println("Wake word gating disabled; listening continuously.")
	}

	<-ctx.Done()
	fmt.Println("\nShutting down...")
	if err := pipe.Stop(); err != nil {
		log.Error("stop", "error", err)
	}

	printSummary(pipe.Metrics())
}

// buildWakeDetector parses LUMA_WAKE_MODELS ("name=url,name=url") into
// scorer endpoints. Returns nil when no models are configured.
func buildWakeDetector(cfg wakeword.Config) (*wakeword.Detector, error) {
	raw := config.Env("LUMA_WAKE_MODELS", "")
	if raw == "" {
		return nil, nil
	}
	var scorers []wakeword.Scorer
	for _, entry := range strings.Split(raw, ",") {
		name, endpoint, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || name == "" || endpoint == "" {
			return nil, fmt.Errorf("malformed LUMA_WAKE_MODELS entry %q", entry)
		}
		scorers = append(scorers, wakeword.NewModelScorer(name, endpoint))
	}
	return wakeword.NewDetector(cfg, scorers, log.Component("wakeword"))
}

func printSummary(metrics *pipeline.MetricsCollector) {
	turns := metrics.Turns()
	if turns == 0 {
		fmt.Println("No completed turns.")
		return
	}
	avg := metrics.Average()
	fmt.Printf("Completed turns: %d\n", turns)
	fmt.Printf("Average latency: %s\n", avg.FormatLatency())
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// stubAgent speaks transcripts back verbatim. Stands in for the real
// assistant brain when running the pipeline on its own.
type stubAgent struct{}

func (a *stubAgent) Respond(_ context.Context, transcript string) (*agent.Response, error) {
	return &agent.Response{Text: transcript}, nil
}

func (a *stubAgent) SetListeningState(listening bool) {
	if listening {
		log.Debug("listening")
	}
}
