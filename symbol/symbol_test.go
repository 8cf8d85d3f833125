package symbol_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hfale/pcale/symbol"
)

func allValid() [symbol.WordSymbols]bool {
	var v [symbol.WordSymbols]bool
	for i := range v {
		v[i] = true
	}
	return v
}

func TestVoteRoundTripsWithNoErrors(t *testing.T) {
	for _, w := range []uint32{0x000000, 0xFFFFFF, 0x123456, 0xABCDEF, 0x555555, 0xAAAAAA} {
		symbols := symbol.SpreadWithTripleRedundancy(w)
		got, corrections := symbol.Vote(symbols, allValid())
		require.Equal(t, w, got)
		require.Equal(t, 0, corrections)
	}
}

func TestVoteCorrectsSingleCopyError(t *testing.T) {
	w := uint32(0x0F0F0F)
	symbols := symbol.SpreadWithTripleRedundancy(w)

	// Corrupt the first copy entirely (flip every tribit it carries).
	for g := 0; g < 8; g++ {
		symbols[g] ^= 0x7
	}

	got, corrections := symbol.Vote(symbols, allValid())
	require.Equal(t, w, got, "majority of 2 good copies should still win")
	require.Greater(t, corrections, 0)
}

func TestDetectTieBreaksLowestBin(t *testing.T) {
	var mags [64]float64
	mags[symbol.MinBin] = 1.0
	mags[symbol.MinBin+1] = 1.0 // equal magnitude, later bin
	sym, err := symbol.Detect(mags)
	require.NoError(t, err)
	require.Equal(t, 0, sym)
}

func TestDetectOutOfRangeInvalid(t *testing.T) {
	var mags [64]float64
	mags[symbol.MaxBin+1] = 1.0
	_, err := symbol.Detect(mags)
	require.Error(t, err)
	var sigErr *symbol.SignalError
	require.ErrorAs(t, err, &sigErr)
}
