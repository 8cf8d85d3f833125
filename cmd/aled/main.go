// Command aled is a demonstration ALE station daemon: it wires the
// core.Orchestrator to a scan list and, optionally, real radio/audio
// hardware, following the teacher's cmd/direwolf main program's shape
// (pflag-based CLI over a config file) without any of its cgo/C interop,
// since this core has no legacy C implementation to bind to.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/hfale/pcale/audioio"
	"github.com/hfale/pcale/core"
	"github.com/hfale/pcale/lqa"
	"github.com/hfale/pcale/radioio"
	"github.com/hfale/pcale/word"
)

// rxPollSamples is how many samples ReadSamples drains per Tick: generous
// headroom over 100ms of audio at tone.SampleRate so a tick never falls
// behind the capture stream.
const rxPollSamples = 1600

func main() {
	configFile := pflag.StringP("config-file", "c", "", "YAML configuration file (self address, scan channels, ALE/ARQ/LQA tuning).")
	hamlibModel := pflag.IntP("hamlib-model", "m", 0, "Hamlib rig model ID for CAT frequency control. 0 disables CAT control.")
	hamlibDevice := pflag.StringP("hamlib-device", "d", "/dev/ttyUSB0", "Serial device for Hamlib CAT control.")
	gpioChip := pflag.StringP("gpio-chip", "g", "", "GPIO chip for PTT keying (e.g. gpiochip0). Empty disables PTT control.")
	gpioLine := pflag.IntP("gpio-line", "l", 0, "GPIO line offset for PTT keying.")
	callAddr := pflag.StringP("call", "C", "", "Immediately place an outbound call to this address after startup.")
	logLevel := pflag.StringP("log-level", "L", "info", "Log level: debug, info, warn, error.")
	noAudio := pflag.Bool("no-audio", false, "Disable the PortAudio sound card, logging transmit/receive instead of keying real audio.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "aled - a PC-ALE HF link establishment daemon.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: aled [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.New(os.Stderr)
	if level, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(level)
	}
	log.SetDefault(logger)

	cfg, err := loadStationConfig(*configFile)
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}

	addresses := word.NewAddressBook()
	addresses.SetSelfAddress(cfg.SelfAddress)
	for _, s := range cfg.Stations {
		addresses.AddStation(s.Address, s.Name)
	}
	for _, n := range cfg.Nets {
		addresses.AddNet(n.Address, n.Name)
	}

	radio := buildRadio(*hamlibModel, *hamlibDevice, *gpioChip, *gpioLine, logger)
	audio := buildAudio(*noAudio, logger)
	var audioPort core.AudioPort
	if audio != nil {
		audioPort = audio
		defer audio.Close()
	}

	orch := core.New(core.Config{ALE: cfg.ALE, ARQ: cfg.ARQ, LQA: cfg.LQA}, addresses, cfg.Channels, radio, audioPort)
	orch.DataReceived = func(remote string, data []byte) {
		logger.Info("data received", "from", remote, "bytes", len(data))
	}

	if existing, err := lqa.Load(cfg.LQAFile); err == nil {
		logger.Info("loaded LQA database", "path", cfg.LQAFile, "entries", existing.Len())
	}

	if *callAddr != "" {
		orch.ALE().RequestCall(*callAddr, firstChannel(cfg.Channels), nowMs())
	} else if len(cfg.Channels) > 0 {
		orch.ALE().StartScan(nowMs())
	}

	logger.Info("aled started", "self", cfg.SelfAddress, "channels", cfg.Channels)

	rxBuf := make([]int16, rxPollSamples)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if audio != nil {
			if n, err := audio.ReadSamples(rxBuf); err != nil {
				logger.Warn("reading audio samples", "err", err)
			} else if n > 0 {
				orch.ProcessSamples(rxBuf[:n], nowMs())
			}
		}
		orch.Tick(nowMs())
		if err := orch.LQA().Save(cfg.LQAFile); err != nil {
			logger.Warn("saving LQA database", "err", err)
		}
	}
}

func buildAudio(disabled bool, logger *log.Logger) *audioio.PortAudioDevice {
	if disabled {
		return nil
	}
	dev, err := audioio.Open(rxPollSamples)
	if err != nil {
		logger.Warn("audio device unavailable, running without sound card I/O", "err", err)
		return nil
	}
	return dev
}

func buildRadio(hamlibModel int, hamlibDevice, gpioChip string, gpioLine int, logger *log.Logger) core.RadioController {
	var comp radioio.Composite
	if hamlibModel != 0 {
		tuner, err := radioio.NewHamlibTuner(hamlibModel, hamlibDevice)
		if err != nil {
			logger.Warn("hamlib unavailable, frequency control disabled", "err", err)
		} else {
			comp.Tuner = tuner
		}
	}
	if gpioChip != "" {
		keyer, err := radioio.NewGPIOKeyer(gpioChip, gpioLine, true)
		if err != nil {
			logger.Warn("gpio keyer unavailable, PTT control disabled", "err", err)
		} else {
			comp.Keyer = keyer
		}
	}
	if comp.Tuner == nil && comp.Keyer == nil {
		return nil
	}
	return &comp
}

func firstChannel(channels []uint32) uint32 {
	if len(channels) == 0 {
		return 0
	}
	return channels[0]
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
