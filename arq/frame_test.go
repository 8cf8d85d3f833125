package arq_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hfale/pcale/arq"
)

func TestDataFrameRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := arq.DataFrame{
			DataRate:       uint8(rapid.IntRange(0, 7).Draw(t, "rate")),
			InterleaverLen: uint8(rapid.IntRange(0, 255).Draw(t, "il")),
			Sequence:       uint8(rapid.IntRange(0, 255).Draw(t, "seq")),
			Offset:         uint32(rapid.IntRange(0, 1<<20).Draw(t, "offset")),
			Payload:        []byte(rapid.StringN(0, 64, 64).Draw(t, "payload")),
		}
		wire, err := f.Encode()
		require.NoError(t, err)

		decoded, err := arq.DecodeDataFrame(wire)
		require.NoError(t, err)
		require.Equal(t, f.Sequence, decoded.Sequence)
		require.Equal(t, f.Offset, decoded.Offset)
		require.Equal(t, f.Payload, decoded.Payload)
	})
}

func TestDataFrameOneByteFlipYieldsCrcError(t *testing.T) {
	f := arq.DataFrame{Sequence: 5, Offset: 0, Payload: []byte("hello world")}
	wire, err := f.Encode()
	require.NoError(t, err)

	wire[3] ^= 0x01

	_, err = arq.DecodeDataFrame(wire)
	require.Error(t, err)
	var crcErr arq.CrcError
	require.True(t, errors.As(err, &crcErr))
}

func TestDataFrameRejectsOversizePayload(t *testing.T) {
	f := arq.DataFrame{Payload: make([]byte, arq.MaxPayload+1)}
	_, err := f.Encode()
	require.Error(t, err)
}

func TestControlFrameRoundTripWithBitmap(t *testing.T) {
	var bitmap arq.AckBitmap
	bitmap.Set(1)
	bitmap.Set(200)

	f := arq.ControlFrame{
		ProtocolVersion: 1,
		ArqMode:         arq.ModeVariable,
		AddressMode:     arq.AddressAbbreviated,
		ToAddress:       []byte("K6"),
		FromAddress:     []byte("W1"),
		LinkState:       arq.LinkStateActive,
		LinkTimeoutMs:   12000,
		AckType:         arq.AckTypeACK,
		Bitmap:          &bitmap,
	}
	wire, err := f.Encode()
	require.NoError(t, err)

	decoded, err := arq.DecodeControlFrame(wire)
	require.NoError(t, err)
	require.Equal(t, f.ToAddress, decoded.ToAddress)
	require.Equal(t, f.FromAddress, decoded.FromAddress)
	require.NotNil(t, decoded.Bitmap)
	require.True(t, decoded.Bitmap.IsSet(1))
	require.True(t, decoded.Bitmap.IsSet(200))
	require.False(t, decoded.Bitmap.IsSet(2))
}

func TestControlFrameFullAddressWidth(t *testing.T) {
	f := arq.ControlFrame{
		AddressMode: arq.AddressFull,
		ToAddress:   []byte("LONGSTATIONID1234"),
		FromAddress: []byte("W1AW"),
		LinkState:   arq.LinkStateConnect,
		AckType:     0,
	}
	wire, err := f.Encode()
	require.NoError(t, err)

	decoded, err := arq.DecodeControlFrame(wire)
	require.NoError(t, err)
	require.Len(t, decoded.ToAddress, 18)
	require.Nil(t, decoded.Bitmap)
}

func TestAckBitmapFlowControlStop(t *testing.T) {
	var b arq.AckBitmap
	require.False(t, b.FlowControlStop())
	b.SetFlowControlStop(true)
	require.True(t, b.FlowControlStop())
	require.True(t, b.IsSet(255))
}
