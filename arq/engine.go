package arq

import (
	"errors"

	"github.com/charmbracelet/log"
)

// State is one of the FS-1052 ARQ engine's states (spec.md §4.8).
type State int

const (
	StateIdle State = iota
	StateTxData
	StateWaitAck
	StateRxData
	StateSendAck
	StateRetransmit
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateTxData:
		return "TX_DATA"
	case StateWaitAck:
		return "WAIT_ACK"
	case StateRxData:
		return "RX_DATA"
	case StateSendAck:
		return "SEND_ACK"
	case StateRetransmit:
		return "RETRANSMIT"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Config holds the engine's tunable parameters (spec.md §4.8 defaults).
type Config struct {
	WindowSize         int   // default 16, up to 256
	BlockSize          int   // default 1023
	AckTimeoutMs       int64 // default 5000
	MaxRetransmissions int   // default 3
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:         16,
		BlockSize:          MaxPayload,
		AckTimeoutMs:       5000,
		MaxRetransmissions: 3,
	}
}

// DataBlock is one fragment of a message in flight (spec.md §3).
type DataBlock struct {
	Sequence        uint8
	Offset          uint32
	Payload         []byte
	Acknowledged    bool
	Sent            bool // has been transmitted at least once
	RetransmitCount int
	TimestampMs     int64
}

// Stats are the counters spec.md §4.8 requires the engine to maintain.
type Stats struct {
	BlocksSent          int
	BlocksReceived      int
	BlocksRetransmitted int
	AcksSent            int
	AcksReceived        int
	NaksReceived        int
	Timeouts            int
	CrcErrors           int
	SequenceErrors      int
}

// MaxRetransmissionsExceeded is the fatal error surfaced when a block's
// retry count exceeds Config.MaxRetransmissions (spec.md §7).
type MaxRetransmissionsExceeded struct {
	Sequence uint8
}

func (e *MaxRetransmissionsExceeded) Error() string {
	return "arq: max retransmissions exceeded"
}

// Callbacks are the capability hooks the engine drives; spec.md §9 treats
// these as a capability record supplied at construction rather than a
// cyclic back-reference.
type Callbacks struct {
	// TransmitFrame is called with an already-encoded, CRC-32-trailed frame
	// ready for the word/physical layers to carry.
	TransmitFrame func(frame []byte)
	// TransferComplete is called once with the full reassembled message
	// when a receive-side transfer finishes, or with the sent message when
	// a transmit-side transfer is fully acknowledged.
	TransferComplete func(data []byte)
	// FatalError is called when a transfer cannot proceed (spec.md §7
	// MaxRetransmissionsExceeded).
	FatalError func(err error)
}

// Engine is the FS-1052 selective-repeat ARQ state machine (spec.md §4.8).
// It is single-threaded cooperative (spec.md §5): Tick and the Handle*
// methods must not be called concurrently or reentered from inside a
// callback.
type Engine struct {
	cfg       Config
	callbacks Callbacks
	logger    *log.Logger

	state State
	stats Stats

	// Transmit side.
	txBlocks   []*DataBlock // logical order, index i has sequence i%256
	windowBase int          // logical index of the lowest unacknowledged block
	ackDeadline int64

	// Receive side.
	rxReceived  map[uint8]bool
	rxBuffer    []byte
	rxHighWater uint32 // highest offset+len seen, for buffer growth
}

// NewEngine creates an ARQ engine with the given configuration and
// callbacks.
func NewEngine(cfg Config, callbacks Callbacks) *Engine {
	return &Engine{
		cfg:        cfg,
		callbacks:  callbacks,
		logger:     log.With("component", "arq"),
		state:      StateIdle,
		rxReceived: make(map[uint8]bool),
	}
}

// State returns the engine's current state.
func (e *Engine) State() State { return e.state }

// Stats returns a copy of the engine's current statistics.
func (e *Engine) Stats() Stats { return e.stats }

// StartTransmission fragments data into blocks of up to Config.BlockSize
// bytes, assigns wrapping sequence numbers, and begins sending the first
// window (spec.md §4.8 transmit path step 1-3). An empty message completes
// immediately with zero blocks sent (spec.md §8 boundary behavior).
func (e *Engine) StartTransmission(data []byte, nowMs int64) {
	e.txBlocks = nil
	e.windowBase = 0

	if len(data) == 0 {
		e.state = StateIdle
		if e.callbacks.TransferComplete != nil {
			e.callbacks.TransferComplete(nil)
		}
		return
	}

	blockSize := e.cfg.BlockSize
	if blockSize <= 0 || blockSize > MaxPayload {
		blockSize = MaxPayload
	}

	var offset uint32
	index := 0
	for offset < uint32(len(data)) {
		end := int(offset) + blockSize
		if end > len(data) {
			end = len(data)
		}
		payload := append([]byte(nil), data[offset:end]...)
		e.txBlocks = append(e.txBlocks, &DataBlock{
			Sequence: uint8(index % 256),
			Offset:   offset,
			Payload:  payload,
		})
		offset = uint32(end)
		index++
	}

	e.state = StateTxData
	e.sendWindow(nowMs)
}

func (e *Engine) sendWindow(nowMs int64) {
	for i := e.windowBase; i < len(e.txBlocks) && i < e.windowBase+e.cfg.WindowSize; i++ {
		b := e.txBlocks[i]
		if b.Acknowledged {
			continue
		}
		e.transmitBlock(b, nowMs)
	}
	e.state = StateWaitAck
	e.ackDeadline = nowMs + e.cfg.AckTimeoutMs
}

// transmitBlock (re)sends a block and updates its bookkeeping. A block
// already marked Sent is, by definition, a retransmission (spec.md §4.8
// step 5/6 and §8 scenario 6).
func (e *Engine) transmitBlock(b *DataBlock, nowMs int64) {
	frame := DataFrame{
		DataRate: 5, // 2400 bps default per spec.md §4.8
		Sequence: b.Sequence,
		Offset:   b.Offset,
		Payload:  b.Payload,
	}
	wire, err := frame.Encode()
	if err != nil {
		e.logger.Error("failed to encode data frame", "seq", b.Sequence, "err", err)
		return
	}
	b.TimestampMs = nowMs
	if b.Sent {
		b.RetransmitCount++
		e.stats.BlocksRetransmitted++
	} else {
		b.Sent = true
		e.stats.BlocksSent++
	}
	if e.callbacks.TransmitFrame != nil {
		e.callbacks.TransmitFrame(wire)
	}
}

// Tick advances time-dependent transmit-side behavior: ack_timeout
// expiry (spec.md §4.8 step 5).
func (e *Engine) Tick(nowMs int64) {
	if e.state != StateWaitAck {
		return
	}
	if nowMs < e.ackDeadline {
		return
	}

	e.stats.Timeouts++
	e.state = StateRetransmit

	for i := e.windowBase; i < len(e.txBlocks) && i < e.windowBase+e.cfg.WindowSize; i++ {
		b := e.txBlocks[i]
		if b.Acknowledged {
			continue
		}
		if b.RetransmitCount >= e.cfg.MaxRetransmissions {
			e.state = StateError
			if e.callbacks.FatalError != nil {
				e.callbacks.FatalError(&MaxRetransmissionsExceeded{Sequence: b.Sequence})
			}
			return
		}
		e.transmitBlock(b, nowMs)
	}
	e.state = StateWaitAck
	e.ackDeadline = nowMs + e.cfg.AckTimeoutMs
}

// HandleAck processes a received control frame carrying an ACK or NAK
// bitmap against the current transmit window (spec.md §4.8 step 4/6). Both
// ACK and NAK frames are handled identically here: the bitmap alone
// determines which sequences are acknowledged, and sendWindow below
// re-sends anything still outstanding within the window (the gaps the NAK
// path would otherwise special-case) alongside newly-admitted blocks
// (spec.md §8 scenario 6).
func (e *Engine) HandleAck(cf ControlFrame, nowMs int64) {
	if cf.Bitmap == nil {
		return
	}
	if cf.AckType == AckTypeACK {
		e.stats.AcksReceived++
	} else if cf.AckType == AckTypeNAK {
		e.stats.NaksReceived++
	}

	// The bitmap's sequence numbers are only meaningful for blocks within the
	// current window: sequences wrap at 256, so a far-future block (logical
	// index >= windowBase+256) can share its 8-bit sequence with an in-window
	// block. Bounding the scan to the window keeps that aliasing from
	// falsely acknowledging a block that was never sent (spec.md §8
	// 257-block boundary case).
	bitmap := *cf.Bitmap
	windowEnd := e.windowBase + e.cfg.WindowSize
	if windowEnd > len(e.txBlocks) {
		windowEnd = len(e.txBlocks)
	}
	for i := e.windowBase; i < windowEnd; i++ {
		b := e.txBlocks[i]
		if b.Sent && bitmap.IsSet(b.Sequence) {
			b.Acknowledged = true
		}
	}

	if e.allAcknowledged() {
		e.state = StateIdle
		if e.callbacks.TransferComplete != nil {
			e.callbacks.TransferComplete(e.reassembleTx())
		}
		return
	}

	// Advance window base to the lowest unacknowledged sequence.
	for e.windowBase < len(e.txBlocks) && e.txBlocks[e.windowBase].Acknowledged {
		e.windowBase++
	}

	e.sendWindow(nowMs)
}

func (e *Engine) allAcknowledged() bool {
	for _, b := range e.txBlocks {
		if !b.Acknowledged {
			return false
		}
	}
	return true
}

func (e *Engine) reassembleTx() []byte {
	var total int
	for _, b := range e.txBlocks {
		total += len(b.Payload)
	}
	out := make([]byte, total)
	for _, b := range e.txBlocks {
		copy(out[b.Offset:], b.Payload)
	}
	return out
}

// HandleDataFrame processes a received, already-decoded data frame
// (spec.md §4.8 receive path). Duplicate sequences are discarded; the
// reassembly buffer grows to accommodate offset+length.
func (e *Engine) HandleDataFrame(f DataFrame, nowMs int64) {
	e.state = StateRxData
	e.stats.BlocksReceived++

	needed := f.Offset + uint32(len(f.Payload))
	if needed > uint32(len(e.rxBuffer)) {
		grown := make([]byte, needed)
		copy(grown, e.rxBuffer)
		e.rxBuffer = grown
	}

	if !e.rxReceived[f.Sequence] {
		copy(e.rxBuffer[f.Offset:], f.Payload)
		e.rxReceived[f.Sequence] = true
		if needed > e.rxHighWater {
			e.rxHighWater = needed
		}
	}

	e.state = StateSendAck
}

// HandleFrameBytes decodes a raw frame (data or control, distinguished by
// header bit 1) and routes it; CRC failures are counted and the frame is
// silently discarded per spec.md §7.
func (e *Engine) HandleFrameBytes(raw []byte, nowMs int64) error {
	if len(raw) == 0 {
		return errors.New("arq: empty frame")
	}
	isControl := raw[0]&headerControlBit != 0

	if isControl {
		cf, err := DecodeControlFrame(raw)
		if err != nil {
			if errors.As(err, new(CrcError)) {
				e.stats.CrcErrors++
				return nil
			}
			return err
		}
		e.HandleAck(cf, nowMs)
		return nil
	}

	df, err := DecodeDataFrame(raw)
	if err != nil {
		if errors.As(err, new(CrcError)) {
			e.stats.CrcErrors++
			return nil
		}
		return err
	}
	e.HandleDataFrame(df, nowMs)
	return nil
}

// BuildAck constructs the control frame the receive side should send back:
// the current RX bitmap (spec.md §4.8 step 2).
func (e *Engine) BuildAck(toAddr, fromAddr []byte, nowMs int64) ControlFrame {
	var bitmap AckBitmap
	for seq := range e.rxReceived {
		bitmap.Set(seq)
	}
	e.stats.AcksSent++
	e.state = StateIdle
	return ControlFrame{
		ArqMode:     ModeVariable,
		AddressMode: AddressAbbreviated,
		ToAddress:   toAddr,
		FromAddress: fromAddr,
		LinkState:   LinkStateActive,
		AckType:     AckTypeACK,
		Bitmap:      &bitmap,
	}
}

// ReceivedMessage returns the reassembled bytes accumulated so far on the
// receive side.
func (e *Engine) ReceivedMessage() []byte {
	return append([]byte(nil), e.rxBuffer[:e.rxHighWater]...)
}

// Reset forces the engine back to IDLE, discarding in-flight state
// (spec.md §5: callers may reset() at any time).
func (e *Engine) Reset() {
	e.txBlocks = nil
	e.windowBase = 0
	e.rxReceived = make(map[uint8]bool)
	e.rxBuffer = nil
	e.rxHighWater = 0
	e.state = StateIdle
}
