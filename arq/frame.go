// Package arq implements the FS-1052 Variable-ARQ data-link (C8 in spec.md
// §4.8): selective-repeat ARQ over a 256-sequence window with a 256-bit ACK
// bitmap, CRC-32 framing, retransmission, and sequence wraparound.
package arq

import (
	"encoding/binary"
	"fmt"

	"github.com/hfale/pcale/crc"
)

// ARQ modes (header bits 4-5). Only Variable is implemented by this engine;
// the others are named so a decoded frame's ArqMode can be recognized.
// DecodeControlFrame returns the mode as read and does not reject any.
const (
	ModeVariable  = 0
	ModeBroadcast = 1
	ModeCircuit   = 2
	ModeFixed     = 3
)

// Address modes (header bit 7).
const (
	AddressAbbreviated = 0 // 2 bytes
	AddressFull        = 1 // 18 bytes
)

// AckType values for a control frame's ACK/NAK type byte.
const (
	AckTypeACK = 1
	AckTypeNAK = 2
)

// Link states carried in a control frame's link-state byte.
const (
	LinkStateConnect    = 1
	LinkStateDisconnect = 2
	LinkStateActive     = 3
)

const (
	headerSyncMismatch = 1 << 0
	headerControlBit   = 1 << 1
)

// BitmapSize is the 256-bit (32-byte) ACK bitmap size.
const BitmapSize = 32

// MaxPayload is the largest data-frame payload (spec.md §3).
const MaxPayload = 1023

// AckBitmap is a 256-bit selective-ACK bitmap. Bit i%8 of byte i/8 (LSB-first
// within each byte, spec.md §9 open question 6) represents sequence number
// i. The MSB of the last byte is reserved as a flow-control stop bit.
type AckBitmap [BitmapSize]byte

// Set marks sequence seq as acknowledged.
func (b *AckBitmap) Set(seq uint8) {
	b[seq/8] |= 1 << (seq % 8)
}

// IsSet reports whether sequence seq is acknowledged.
func (b AckBitmap) IsSet(seq uint8) bool {
	return b[seq/8]&(1<<(seq%8)) != 0
}

// FlowControlStop reports the flow-control stop bit (MSB of the last byte).
func (b AckBitmap) FlowControlStop() bool {
	return b[BitmapSize-1]&0x80 != 0
}

// SetFlowControlStop sets or clears the flow-control stop bit. Bit 255 is
// the MSB of the last byte, so the stop bit and sequence 255's ack bit share
// a position: setting the stop bit also marks sequence 255 acknowledged, and
// clearing it also clears that ack. This mirrors the
// teacher's own single-bit-field reuse style rather than adding a spec-less
// 257th bit.
func (b *AckBitmap) SetFlowControlStop(stop bool) {
	if stop {
		b[BitmapSize-1] |= 0x80
	} else {
		b[BitmapSize-1] &^= 0x80
	}
}

// DataFrame is an FS-1052 data frame (spec.md §3/§6).
type DataFrame struct {
	DataRate         uint8 // 3 bits
	DataRateRelative bool  // data-rate-format bit: true = relative
	InterleaverLen   uint8
	Sequence         uint8
	Offset           uint32
	Payload          []byte
}

// Encode serializes a data frame to wire bytes, big-endian, with a
// trailing CRC-32 (spec.md §3/§6).
func (f DataFrame) Encode() ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, fmt.Errorf("arq: payload length %d exceeds max %d", len(f.Payload), MaxPayload)
	}

	body := make([]byte, 0, 9+len(f.Payload))

	header := byte(headerSyncMismatch) // bit1=0 already (data frame)
	header |= (f.DataRate & 0x7) << 4
	if f.DataRateRelative {
		header |= 1 << 7
	}
	body = append(body, header)
	body = append(body, f.InterleaverLen, f.Sequence)

	var offsetBuf [4]byte
	binary.BigEndian.PutUint32(offsetBuf[:], f.Offset)
	body = append(body, offsetBuf[:]...)

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(f.Payload)))
	body = append(body, lenBuf[:]...)

	body = append(body, f.Payload...)

	sum := crc.CRC32(body)
	var sumBuf [4]byte
	binary.BigEndian.PutUint32(sumBuf[:], sum)
	return append(body, sumBuf[:]...), nil
}

// CrcError is returned when a frame fails its trailing CRC-32 check.
type CrcError struct{}

func (CrcError) Error() string { return "arq: CRC-32 check failed" }

// DecodeDataFrame parses wire bytes into a DataFrame, verifying the
// trailing CRC-32.
func DecodeDataFrame(data []byte) (DataFrame, error) {
	if len(data) < 9+4 {
		return DataFrame{}, fmt.Errorf("arq: data frame too short (%d bytes)", len(data))
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if crc.CRC32(body) != binary.BigEndian.Uint32(trailer) {
		return DataFrame{}, CrcError{}
	}

	header := body[0]
	f := DataFrame{
		DataRate:         (header >> 4) & 0x7,
		DataRateRelative: header&0x80 != 0,
		InterleaverLen:   body[1],
		Sequence:         body[2],
		Offset:           binary.BigEndian.Uint32(body[3:7]),
	}
	length := binary.BigEndian.Uint16(body[7:9])
	if int(9+length) > len(body) {
		return DataFrame{}, fmt.Errorf("arq: declared length %d exceeds frame body", length)
	}
	f.Payload = append([]byte(nil), body[9:9+length]...)
	return f, nil
}

// ControlFrame is an FS-1052 control frame (spec.md §3/§6). Herald and
// message-descriptor fields are carried as opaque optional byte slices:
// their internal layout is not fixed by spec.md, so this layer writes them
// verbatim rather than inventing an unauthoritative sub-format. On decode
// the two are not told apart (see DecodeControlFrame).
type ControlFrame struct {
	ProtocolVersion uint8 // 2 bits
	ArqMode         uint8 // 2 bits
	NegotiateEvery  bool  // negotiation mode bit
	AddressMode     uint8 // 0=abbreviated(2B), 1=full(18B)
	ToAddress       []byte
	FromAddress     []byte
	LinkState       uint8
	LinkTimeoutMs   uint16
	AckType         uint8
	Bitmap          *AckBitmap // nil if not present
	Herald          []byte     // optional
	MessageDesc     []byte     // optional
}

func addressWidth(mode uint8) int {
	if mode == AddressFull {
		return 18
	}
	return 2
}

func fitAddress(addr []byte, width int) []byte {
	out := make([]byte, width)
	copy(out, addr)
	return out
}

// Encode serializes a control frame to wire bytes, big-endian, with a
// trailing CRC-32.
func (f ControlFrame) Encode() ([]byte, error) {
	width := addressWidth(f.AddressMode)

	header := byte(headerSyncMismatch | headerControlBit)
	header |= (f.ProtocolVersion & 0x3) << 2
	header |= (f.ArqMode & 0x3) << 4
	if f.NegotiateEvery {
		header |= 1 << 6
	}
	if f.AddressMode == AddressFull {
		header |= 1 << 7
	}

	body := []byte{header}
	body = append(body, fitAddress(f.ToAddress, width)...)
	body = append(body, fitAddress(f.FromAddress, width)...)
	body = append(body, f.LinkState)

	var timeoutBuf [2]byte
	binary.BigEndian.PutUint16(timeoutBuf[:], f.LinkTimeoutMs)
	body = append(body, timeoutBuf[:]...)

	body = append(body, f.AckType)
	if f.Bitmap != nil {
		body = append(body, f.Bitmap[:]...)
	}
	body = append(body, f.Herald...)
	body = append(body, f.MessageDesc...)

	sum := crc.CRC32(body)
	var sumBuf [4]byte
	binary.BigEndian.PutUint32(sumBuf[:], sum)
	return append(body, sumBuf[:]...), nil
}

// DecodeControlFrame parses a control frame. Whether a bitmap follows is
// decided by the frame's own AckType byte: AckTypeACK and AckTypeNAK frames
// carry a bitmap, others do not. Herald and message descriptor have no
// length field, so every byte after the bitmap (or the AckType byte) is
// returned in MessageDesc and Herald is always nil; a frame encoded with a
// non-empty Herald decodes with the herald bytes at the front of MessageDesc.
func DecodeControlFrame(data []byte) (ControlFrame, error) {
	if len(data) < 1+4 {
		return ControlFrame{}, fmt.Errorf("arq: control frame too short")
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if crc.CRC32(body) != binary.BigEndian.Uint32(trailer) {
		return ControlFrame{}, CrcError{}
	}

	header := body[0]
	f := ControlFrame{
		ProtocolVersion: (header >> 2) & 0x3,
		ArqMode:         (header >> 4) & 0x3,
		NegotiateEvery:  header&0x40 != 0,
		AddressMode:     (header >> 7) & 0x1,
	}
	width := addressWidth(f.AddressMode)
	pos := 1
	if len(body) < pos+2*width+1+2+1 {
		return ControlFrame{}, fmt.Errorf("arq: control frame body too short for address mode")
	}
	f.ToAddress = append([]byte(nil), body[pos:pos+width]...)
	pos += width
	f.FromAddress = append([]byte(nil), body[pos:pos+width]...)
	pos += width
	f.LinkState = body[pos]
	pos++
	f.LinkTimeoutMs = binary.BigEndian.Uint16(body[pos : pos+2])
	pos += 2
	f.AckType = body[pos]
	pos++

	if f.AckType == AckTypeACK || f.AckType == AckTypeNAK {
		if len(body) < pos+BitmapSize {
			return ControlFrame{}, fmt.Errorf("arq: control frame missing ACK bitmap")
		}
		var bm AckBitmap
		copy(bm[:], body[pos:pos+BitmapSize])
		f.Bitmap = &bm
		pos += BitmapSize
	}

	if pos < len(body) {
		f.MessageDesc = append([]byte(nil), body[pos:]...)
	}

	return f, nil
}
