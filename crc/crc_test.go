package crc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hfale/pcale/crc"
)

func TestCRC8Vector(t *testing.T) {
	require.Equal(t, byte(0x35), crc.CRC8([]byte("HELLO")))
}

func TestCRC16CCITTVector(t *testing.T) {
	require.Equal(t, uint16(0x49D6), crc.CRC16CCITT([]byte("HELLO")))
}

func TestCRC32RoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	sum := crc.CRC32(data)
	require.Equal(t, sum, crc.CRC32(data), "CRC-32 must be deterministic")

	corrupted := append([]byte(nil), data...)
	corrupted[3] ^= 0x01
	require.NotEqual(t, sum, crc.CRC32(corrupted))
}
