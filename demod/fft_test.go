package demod_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hfale/pcale/demod"
	"github.com/hfale/pcale/tone"
)

func TestSilenceYieldsZeroSNR(t *testing.T) {
	d := demod.NewDemodulator()
	var mags [demod.WindowSize]float64
	for i := 0; i < demod.WindowSize; i++ {
		mags = d.PushSample(0)
	}
	_ = mags
	require.InDelta(t, 0, d.GetSNR(), 0.01)
}

func TestPureToneYieldsPeakBinAndHighSNR(t *testing.T) {
	for symbol := 0; symbol < tone.NumTones; symbol++ {
		gen := tone.NewGenerator(1.0)
		samples := gen.Generate(symbol, demod.WindowSize)

		d := demod.NewDemodulator()
		var mags [demod.WindowSize]float64
		for _, s := range samples {
			mags = d.PushSample(s)
		}

		peakBin := 0
		for k := 1; k < demod.WindowSize; k++ {
			if mags[k] > mags[peakBin] {
				peakBin = k
			}
		}

		require.Equal(t, 6+symbol, peakBin, "symbol %d should peak at bin %d", symbol, 6+symbol)
		require.Greater(t, d.GetSNR(), 30.0, "full amplitude tone should have SNR > 30dB")
	}
}
