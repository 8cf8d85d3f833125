package aqc_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hfale/pcale/aqc"
)

func TestPackExtractRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		de := aqc.DataElements{
			Slot:            uint8(rapid.IntRange(0, 7).Draw(t, "slot")),
			TrafficClass:    uint8(rapid.IntRange(0, 15).Draw(t, "traffic")),
			LQA:             uint8(rapid.IntRange(0, 31).Draw(t, "lqa")),
			TransactionCode: uint8(rapid.IntRange(0, 7).Draw(t, "txn")),
			Reserved:        uint8(rapid.IntRange(0, 7).Draw(t, "reserved")),
			OrderwireCount:  uint8(rapid.IntRange(0, 7).Draw(t, "ow")),
		}
		packed := aqc.PackDataElements(de)
		require.LessOrEqual(t, packed, uint32(0x1FFFFF))
		require.Equal(t, de, aqc.ExtractDataElements(packed))
	})
}

func TestSlotAssignmentScenario(t *testing.T) {
	var sm aqc.SlotManager
	require.EqualValues(t, 6, sm.AssignSlot("ABC"))
	require.Equal(t, 2200, aqc.CalculateSlotTime(6, 1000))
}

func TestOrderwireCRC(t *testing.T) {
	body := []byte{0x01, 0x02, 0x03}
	frame := append(append([]byte{}, body...), aqc.ComputeCRC8(body))
	_, ok := aqc.ParseOrderwire(frame)
	require.True(t, ok)

	frame[0] ^= 0xFF
	_, ok = aqc.ParseOrderwire(frame)
	require.False(t, ok)
}
