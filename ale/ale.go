// Package ale implements the ALE link state machine (C7 in spec.md §4.7):
// the IDLE/SCANNING/CALLING/HANDSHAKE/LINKED/SOUNDING states, scan dwell,
// call and link timeouts, and the outbound/inbound/net call sequences.
package ale

import (
	"github.com/charmbracelet/log"

	"github.com/hfale/pcale/word"
)

// State is one of the ALE link state machine's states (spec.md §4.7).
type State int

const (
	StateIdle State = iota
	StateScanning
	StateCalling
	StateHandshake
	StateLinked
	StateSounding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateScanning:
		return "SCANNING"
	case StateCalling:
		return "CALLING"
	case StateHandshake:
		return "HANDSHAKE"
	case StateLinked:
		return "LINKED"
	case StateSounding:
		return "SOUNDING"
	default:
		return "UNKNOWN"
	}
}

// Timing constants (spec.md §4.7, hard unless noted configurable).
const (
	WordDurationMs    = 392
	DefaultDwellMs    = 200 // spec.md leaves 200-500ms as an implementer choice; documented here
	CallTimeoutMs     = 30000
	LinkIdleTimeoutMs = 120000
	DefaultSoundingMs = 300000
)

// LinkTimeout is returned via the StateChanged callback's reason when a
// CALLING/HANDSHAKE timeout or the LINKED idle timeout unwinds the link
// (spec.md §7).
type LinkTimeout struct {
	From State
}

func (LinkTimeout) Error() string { return "ale: link timeout" }

// LqaSample is the (snr_db, fec_errors) tuple the state machine forwards
// to the LQA subsystem after every received word (spec.md §4.7).
type LqaSample struct {
	FrequencyHz uint32
	Station     string
	SnrDb       float64
	FecErrors   int
}

// Callbacks are the concept-level hooks spec.md §4.7 names: word-to-
// transmit, state-changed, link-established, AMD-received.
type Callbacks struct {
	TransmitWord    func(w word.Word)
	StateChanged    func(from, to State, err error)
	LinkEstablished func(remote string, frequencyHz uint32)
	AMDReceived     func(from, amd string)
	LqaFeedback     func(sample LqaSample)
	ProtocolErr     func(err error)
}

// Config holds the state machine's tunable parameters.
type Config struct {
	DwellMs       int64
	CallTimeoutMs int64
	LinkIdleMs    int64
	SoundingMs    int64
}

// DefaultConfig returns spec.md's documented defaults (200ms dwell chosen
// per spec.md §4.7's "implementer picks one" note, matching 2G conventions).
func DefaultConfig() Config {
	return Config{
		DwellMs:       DefaultDwellMs,
		CallTimeoutMs: CallTimeoutMs,
		LinkIdleMs:    LinkIdleTimeoutMs,
		SoundingMs:    DefaultSoundingMs,
	}
}

// Machine is the ALE link state machine.
type Machine struct {
	cfg       Config
	callbacks Callbacks
	addresses *word.AddressBook
	logger    *log.Logger

	state         State
	preSoundState State // state to resume after SOUNDING
	frequencyHz   uint32
	remoteStation string
	channels      []uint32
	channelIdx    int

	lastTransitionMs int64
	dwellDeadlineMs  int64

	callAssembler *word.Assembler
	pendingCall   string // address we are CALLING/HANDSHAKE with
}

// NewMachine creates an ALE link state machine bound to the given address
// book (self address, known nets) and scan channel list.
func NewMachine(cfg Config, addresses *word.AddressBook, channels []uint32, callbacks Callbacks) *Machine {
	return &Machine{
		cfg:           cfg,
		callbacks:     callbacks,
		addresses:     addresses,
		logger:        log.With("component", "ale"),
		state:         StateIdle,
		channels:      channels,
		callAssembler: word.NewAssembler(),
	}
}

// State returns the machine's current state.
func (m *Machine) State() State { return m.state }

func (m *Machine) transition(to State, nowMs int64, err error) {
	from := m.state
	m.state = to
	m.lastTransitionMs = nowMs
	if m.callbacks.StateChanged != nil && from != to {
		m.callbacks.StateChanged(from, to, err)
	}
}

// StartScan begins scanning the configured channel list (IDLE -> SCANNING).
func (m *Machine) StartScan(nowMs int64) {
	if m.state != StateIdle {
		return
	}
	m.channelIdx = 0
	m.dwellDeadlineMs = nowMs + m.cfg.DwellMs
	m.transition(StateScanning, nowMs, nil)
}

// StopScan returns to IDLE from SCANNING.
func (m *Machine) StopScan(nowMs int64) {
	if m.state != StateScanning {
		return
	}
	m.transition(StateIdle, nowMs, nil)
}

// RequestCall begins an outbound individual call to addr (IDLE ->
// CALLING, spec.md §4.7 outbound call sequence steps 1-4).
func (m *Machine) RequestCall(addr string, frequencyHz uint32, nowMs int64) {
	if m.state != StateIdle {
		return
	}
	m.pendingCall = addr
	m.frequencyHz = frequencyHz
	m.lastTransitionMs = nowMs

	m.emit(word.TO, addr)
	m.emit(word.FROM, m.addresses.SelfAddress())

	m.transition(StateCalling, nowMs, nil)
}

// RequestNetCall begins an outbound net call (TWS as opener, spec.md
// §4.7 "Net call").
func (m *Machine) RequestNetCall(netAddr string, frequencyHz uint32, nowMs int64) {
	if m.state != StateIdle {
		return
	}
	m.pendingCall = netAddr
	m.frequencyHz = frequencyHz
	m.lastTransitionMs = nowMs

	m.emit(word.TWS, netAddr)
	m.emit(word.FROM, m.addresses.SelfAddress())

	m.transition(StateCalling, nowMs, nil)
}

func (m *Machine) emit(preamble word.Preamble, addr string) {
	if m.callbacks.TransmitWord == nil {
		return
	}
	for _, w := range word.EncodeAddress(preamble, addr) {
		m.callbacks.TransmitWord(w)
	}
}

// Terminate unwinds LINKED/CALLING/HANDSHAKE to IDLE (spec.md §4.7
// "link_terminated"). It is called by the user; received CMD words are
// ignored by the word assembler, so an incoming TERMINATE does not call it.
func (m *Machine) Terminate(nowMs int64) {
	if m.state == StateIdle {
		return
	}
	m.pendingCall = ""
	m.remoteStation = ""
	m.transition(StateIdle, nowMs, nil)
}

// Reset forces the machine back to IDLE (spec.md §5: callers may reset()
// at any time).
func (m *Machine) Reset(nowMs int64) {
	m.pendingCall = ""
	m.remoteStation = ""
	m.callAssembler.Reset()
	m.transition(StateIdle, nowMs, nil)
}

// SendSounding transmits a TIS SELF word from any state (spec.md §4.7
// "any -> SOUNDING -> previous state on word_sent").
func (m *Machine) SendSounding(nowMs int64) {
	m.preSoundState = m.state
	m.transition(StateSounding, nowMs, nil)
	m.emit(word.TIS, m.addresses.SelfAddress())
	m.transition(m.preSoundState, nowMs, nil)
}

// Update advances time-dependent behavior: scan dwell expiry, call/
// handshake timeout, and link idle timeout (spec.md §4.7, §5).
func (m *Machine) Update(nowMs int64) {
	switch m.state {
	case StateScanning:
		if nowMs >= m.dwellDeadlineMs {
			if len(m.channels) > 0 {
				m.channelIdx = (m.channelIdx + 1) % len(m.channels)
				m.frequencyHz = m.channels[m.channelIdx]
			}
			m.dwellDeadlineMs = nowMs + m.cfg.DwellMs
			// SCANNING -> SCANNING (next channel); no externally visible
			// state change, but record the time for dwell bookkeeping.
		}
	case StateCalling, StateHandshake:
		if nowMs-m.lastTransitionMs >= m.cfg.CallTimeoutMs {
			to := StateIdle
			if m.state == StateHandshake {
				to = StateScanning
			}
			err := &LinkTimeout{From: m.state}
			m.pendingCall = ""
			m.transition(to, nowMs, err)
		}
	case StateLinked:
		if nowMs-m.lastTransitionMs >= m.cfg.LinkIdleMs {
			m.remoteStation = ""
			m.transition(StateIdle, nowMs, &LinkTimeout{From: StateLinked})
		}
	}
}

// ProcessWord feeds a received, already symbol-voted word into the state
// machine. It assembles multi-word messages, drives state transitions on
// call/handshake words, and forwards LQA feedback for every word received
// (spec.md §4.7 "LQA feedback", "Inbound call response", "Net call").
func (m *Machine) ProcessWord(w word.Word, snrDb float64, fecErrors int, nowMs int64) {
	if m.callbacks.LqaFeedback != nil {
		station := m.remoteStation
		if station == "" {
			station = m.pendingCall
		}
		m.callbacks.LqaFeedback(LqaSample{
			FrequencyHz: m.frequencyHz,
			Station:     station,
			SnrDb:       snrDb,
			FecErrors:   fecErrors,
		})
	}

	// HANDSHAKE's confirming word is a bare TWS (net-call-shaped opener,
	// spec.md §4.7 "wait for TWS SELF ... enter LINKED"): unlike TO/TWS
	// used to open an addressed call, this TWS is never followed by a
	// closer, so it is recognized directly rather than through the
	// assembler (which would otherwise buffer it indefinitely awaiting a
	// FROM/TIS that will never come).
	if m.state == StateHandshake && w.Preamble == word.TWS {
		m.transition(StateLinked, nowMs, nil)
		if m.callbacks.LinkEstablished != nil {
			m.callbacks.LinkEstablished(m.remoteStation, m.frequencyHz)
		}
		return
	}

	msg, err := m.callAssembler.Push(w, nowMs)
	if err != nil {
		m.logger.Warn("stray word discarded", "err", err)
		if m.callbacks.ProtocolErr != nil {
			m.callbacks.ProtocolErr(err)
		}
		return
	}
	if msg != nil {
		m.handleMessage(msg, nowMs)
	}
}

func (m *Machine) handleMessage(msg *word.Message, nowMs int64) {
	switch m.state {
	case StateScanning:
		if msg.Type == word.IndividualCall && m.addresses.IsForMe(msg.To) {
			m.remoteStation = msg.From
			m.transition(StateHandshake, nowMs, nil)
			m.emit(word.TIS, m.addresses.SelfAddress())
			return
		}
		if msg.Type == word.NetCall && m.addresses.IsForMe(msg.To) {
			m.remoteStation = msg.From
			m.transition(StateHandshake, nowMs, nil)
			m.emit(word.TIS, m.addresses.SelfAddress())
			return
		}
		if msg.Type == word.Sounding {
			if m.callbacks.LqaFeedback != nil {
				m.callbacks.LqaFeedback(LqaSample{FrequencyHz: m.frequencyHz, Station: msg.From})
			}
		}

	case StateCalling:
		// A TIS confirming our call arrives as a standalone Sounding-shaped
		// message (spec.md §4.7 outbound call sequence step 4-5): the
		// assembler has no opener to pair it with, so it closes immediately
		// on the TIS word itself.
		if msg.Type == word.Sounding {
			m.remoteStation = m.pendingCall
			m.emit(word.TWS, m.pendingCall)
			m.transition(StateLinked, nowMs, nil)
			if m.callbacks.LinkEstablished != nil {
				m.callbacks.LinkEstablished(m.remoteStation, m.frequencyHz)
			}
		}

	case StateHandshake:
		if msg.Type == word.NetCall && m.addresses.IsForMe(msg.To) {
			m.transition(StateLinked, nowMs, nil)
			if m.callbacks.LinkEstablished != nil {
				m.callbacks.LinkEstablished(m.remoteStation, m.frequencyHz)
			}
		}

	case StateLinked:
		if msg.Type == word.AMDCall {
			m.lastTransitionMs = nowMs
			if m.callbacks.AMDReceived != nil {
				m.callbacks.AMDReceived(msg.From, msg.AMD)
			}
		}
	}
}

// Channels returns the configured scan channel list.
func (m *Machine) Channels() []uint32 { return m.channels }

// FrequencyHz returns the currently tuned channel.
func (m *Machine) FrequencyHz() uint32 { return m.frequencyHz }

// RemoteStation returns the station this machine is linked or linking to.
func (m *Machine) RemoteStation() string { return m.remoteStation }
