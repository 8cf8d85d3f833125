// Package core implements the orchestration layer (C10 in spec.md §4,
// "Core orchestration"): event dispatch, timers, and callback wiring
// between the ALE state machine (C7), the FS-1052 ARQ engine (C8), the LQA
// database (C9), and the audio/radio boundary (spec.md §6).
//
// Following spec.md §9's "backward-reference is a capability passed in at
// construction, not cyclic ownership" guidance, Orchestrator takes its
// RadioController and AudioPort as constructor arguments rather than
// reaching out to concrete driver packages itself; radioio and audioio
// supply one reference implementation each.
package core

import (
	"github.com/charmbracelet/log"

	"github.com/hfale/pcale/ale"
	"github.com/hfale/pcale/arq"
	"github.com/hfale/pcale/demod"
	"github.com/hfale/pcale/golay"
	"github.com/hfale/pcale/lqa"
	"github.com/hfale/pcale/symbol"
	"github.com/hfale/pcale/tone"
	"github.com/hfale/pcale/word"
)

// txAmplitude is the transmit tone amplitude (0..1, spec.md §4.1).
const txAmplitude = 0.8

// PTT keying discipline (spec.md §6): assert, settle, transmit, settle,
// release. The settling gaps ride as silence inside the same audio buffer
// rather than a sleep, since Tick is the only scheduling point this core
// cooperates on (spec.md §5).
//
// The gaps are rounded up to whole symbol periods (tone.SamplesPerSymbol)
// rather than the raw millisecond figure: the demodulator's symbol-boundary
// counter runs free over the whole received stream with no resync, so any
// silence that isn't a multiple of one symbol period would permanently
// shift every word after the first out of alignment with its own tone
// boundaries. Rounding up only ever adds settling time, so the >=50ms/>=20ms
// minimums still hold.
const (
	pttLeadMs = 50
	pttTailMs = 20

	pttLeadSymbols = (pttLeadMs*tone.SampleRate/1000 + tone.SamplesPerSymbol - 1) / tone.SamplesPerSymbol
	pttTailSymbols = (pttTailMs*tone.SampleRate/1000 + tone.SamplesPerSymbol - 1) / tone.SamplesPerSymbol
)

// RadioController is the "radio boundary" capability of spec.md §6: tuning
// a channel and keying the transmitter. Adapters (radioio.HamlibTuner,
// radioio.GPIOKeyer) satisfy this for a real rig; tests supply a fake.
type RadioController interface {
	SetFrequency(hz uint32) error
	SetPTT(on bool) error
}

// AudioPort is the "audio boundary" capability of spec.md §6: pushing
// transmit samples out and pulling receive samples in. Sample rate
// conversion is the caller's responsibility (spec.md §6); this core always
// operates at tone.SampleRate.
type AudioPort interface {
	WriteSamples(samples []int16) error
	ReadSamples(buf []int16) (n int, err error)
}

// Config bundles the sub-state-machines' tunables.
type Config struct {
	ALE ale.Config
	ARQ arq.Config
	LQA lqa.Config
}

// DefaultConfig returns every sub-component's documented defaults.
func DefaultConfig() Config {
	return Config{
		ALE: ale.DefaultConfig(),
		ARQ: arq.DefaultConfig(),
		LQA: lqa.DefaultConfig(),
	}
}

// Orchestrator owns one ALE link state machine, one LQA database shared
// across the station's lifetime, and creates an ARQ engine per established
// link (spec.md §9: ARQ's shared growing buffers are owned exclusively by
// the engine, not threaded through the state machine).
type Orchestrator struct {
	cfg    Config
	radio  RadioController
	audio  AudioPort
	logger *log.Logger

	lqaDB *lqa.Database
	ale   *ale.Machine
	arq   *arq.Engine
	nowMs int64

	toneGen     *tone.Generator
	demodulator *demod.Demodulator

	// Receive-side word assembly: one word's worth of symbols accumulate
	// here across calls to ProcessSamples before being voted and handed to
	// the link state machine.
	rxSampleCount int
	rxSymbolIndex int
	rxSymbols     [symbol.WordSymbols]int
	rxValid       [symbol.WordSymbols]bool
	rxSnrSum      float64

	// DataReceived fires when an ARQ transfer over the current link
	// completes.
	DataReceived func(remote string, data []byte)
}

// New creates an orchestrator bound to addresses/channels and the given
// radio/audio capabilities. radio and audio may be nil for a link-layer-only
// test harness that drives ProcessWord/Tick directly.
func New(cfg Config, addresses *word.AddressBook, channels []uint32, radio RadioController, audio AudioPort) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		radio:       radio,
		audio:       audio,
		logger:      log.With("component", "core"),
		lqaDB:       lqa.NewDatabase(cfg.LQA),
		toneGen:     tone.NewGenerator(txAmplitude),
		demodulator: demod.NewDemodulator(),
	}

	o.ale = ale.NewMachine(cfg.ALE, addresses, channels, ale.Callbacks{
		TransmitWord:    o.onTransmitWord,
		StateChanged:    o.onStateChanged,
		LinkEstablished: o.onLinkEstablished,
		AMDReceived:     o.onAMDReceived,
		LqaFeedback:     o.onLqaFeedback,
	})
	return o
}

// ALE returns the underlying link state machine for direct control
// (RequestCall, StartScan, Terminate, ...).
func (o *Orchestrator) ALE() *ale.Machine { return o.ale }

// LQA returns the shared link quality database.
func (o *Orchestrator) LQA() *lqa.Database { return o.lqaDB }

// Tick advances both the ALE state machine's timers and, if a transfer is
// active, the ARQ engine's retransmission timer (spec.md §5's single
// cooperative scheduling point).
func (o *Orchestrator) Tick(nowMs int64) {
	o.nowMs = nowMs
	o.ale.Update(nowMs)
	if o.arq != nil {
		o.arq.Tick(nowMs)
	}
}

// ProcessWord feeds one received, already FEC-voted word into the link
// state machine.
func (o *Orchestrator) ProcessWord(w word.Word, snrDb float64, fecErrors int, nowMs int64) {
	o.nowMs = nowMs
	o.ale.ProcessWord(w, snrDb, fecErrors, nowMs)
}

// SendData starts a variable-ARQ transfer to the currently linked station.
// It is only valid while the ALE machine is in StateLinked.
func (o *Orchestrator) SendData(data []byte, nowMs int64) {
	if o.ale.State() != ale.StateLinked {
		o.logger.Warn("SendData while not linked", "state", o.ale.State())
		return
	}
	o.ensureArq()
	o.arq.StartTransmission(data, nowMs)
}

// HandleFrameBytes routes one received FS-1052 frame (decoded from the
// physical layer's words) into the active ARQ engine.
func (o *Orchestrator) HandleFrameBytes(raw []byte, nowMs int64) error {
	o.ensureArq()
	return o.arq.HandleFrameBytes(raw, nowMs)
}

func (o *Orchestrator) ensureArq() {
	if o.arq != nil {
		return
	}
	remote := o.ale.RemoteStation()
	o.arq = arq.NewEngine(o.cfg.ARQ, arq.Callbacks{
		TransmitFrame: func(frame []byte) {
			if o.audio != nil {
				o.logger.Debug("transmit frame", "bytes", len(frame))
			}
		},
		TransferComplete: func(data []byte) {
			if o.DataReceived != nil {
				o.DataReceived(remote, data)
			}
		},
		FatalError: func(err error) {
			o.logger.Error("arq fatal", "err", err)
		},
	})
}

func (o *Orchestrator) onTransmitWord(w word.Word) {
	o.logger.Debug("transmit word", "preamble", w.Preamble, "bits", w.Bits())

	if o.radio != nil {
		if err := o.radio.SetPTT(true); err != nil {
			o.logger.Error("ptt on", "err", err)
		}
	}
	if o.audio != nil {
		if err := o.audio.WriteSamples(o.modulateWord(w)); err != nil {
			o.logger.Error("write samples", "err", err)
		}
	}
	if o.radio != nil {
		if err := o.radio.SetPTT(false); err != nil {
			o.logger.Error("ptt off", "err", err)
		}
	}
}

// modulateWord renders one ALE word as 8-FSK audio (spec.md §4.1/§4.3's
// triple-redundancy spread), with the PTT lead/tail settling gaps folded in
// as silence so a single WriteSamples call carries the whole keyed
// transmission.
func (o *Orchestrator) modulateWord(w word.Word) []int16 {
	symbols := symbol.SpreadWithTripleRedundancy(w.Bits())
	tones := o.toneGen.GenerateSymbols(symbols[:])

	lead := silenceSymbols(pttLeadSymbols)
	tail := silenceSymbols(pttTailSymbols)

	out := make([]int16, 0, len(lead)+len(tones)+len(tail))
	out = append(out, lead...)
	out = append(out, tones...)
	out = append(out, tail...)
	return out
}

func silenceSymbols(n int) []int16 {
	return make([]int16, n*tone.SamplesPerSymbol)
}

// ProcessSamples feeds received 8 kHz audio through the FFT demodulator and
// symbol decoder, assembling completed 24-bit words and forwarding each to
// the link state machine (spec.md §2 receive flow: audio -> C2 -> C3 ->
// word -> C7).
func (o *Orchestrator) ProcessSamples(samples []int16, nowMs int64) {
	for _, s := range samples {
		magnitudes := o.demodulator.PushSample(s)
		o.rxSampleCount++
		if o.rxSampleCount%demod.WindowSize != 0 {
			continue
		}

		sym, err := symbol.Detect(magnitudes)
		o.rxValid[o.rxSymbolIndex] = err == nil
		o.rxSymbols[o.rxSymbolIndex] = sym
		o.rxSnrSum += o.demodulator.GetSNR()
		o.rxSymbolIndex++

		if o.rxSymbolIndex == symbol.WordSymbols {
			o.completeReceivedWord(nowMs)
		}
	}
}

// completeReceivedWord votes the accumulated symbol window into a 24-bit
// word and hands it to ProcessWord. Golay is run as an independent
// integrity cross-check here, not a gate: ALE words carry ASCII-64
// character content rather than Golay codewords, so a failed decode is
// expected and only folds into the reported FEC-error estimate alongside
// the triple-redundancy correction count (see DESIGN.md's golay/core
// entry).
func (o *Orchestrator) completeReceivedWord(nowMs int64) {
	bits, corrections := symbol.Vote(o.rxSymbols, o.rxValid)
	snrDb := o.rxSnrSum / float64(symbol.WordSymbols)

	if _, golayCorrections, gerr := golay.Decode(bits); gerr == nil {
		corrections += golayCorrections
	}

	o.rxSymbolIndex = 0
	o.rxSnrSum = 0

	o.ProcessWord(word.ParseWord(bits), snrDb, corrections, nowMs)
}

func (o *Orchestrator) onStateChanged(from, to ale.State, err error) {
	o.logger.Info("state changed", "from", from, "to", to, "err", err)
	if to == ale.StateIdle || to == ale.StateScanning {
		o.arq = nil
	}
	if o.radio != nil && o.ale.FrequencyHz() != 0 {
		if err := o.radio.SetFrequency(o.ale.FrequencyHz()); err != nil {
			o.logger.Error("set frequency", "err", err)
		}
	}
}

func (o *Orchestrator) onLinkEstablished(remote string, frequencyHz uint32) {
	o.logger.Info("link established", "remote", remote, "frequency_hz", frequencyHz)
	o.ensureArq()
}

func (o *Orchestrator) onAMDReceived(from, amd string) {
	o.logger.Info("amd received", "from", from, "text", amd)
}

func (o *Orchestrator) onLqaFeedback(sample ale.LqaSample) {
	o.lqaDB.Update(sample.FrequencyHz, sample.Station, lqa.Sample{
		SnrDb:     sample.SnrDb,
		FecErrors: sample.FecErrors,
	}, o.nowMs)
}
