// Package demod implements the FFT demodulator (C2 in spec.md §4.2): a
// 64-sample sliding window DFT that turns raw 8 kHz audio into per-symbol
// tone magnitudes and an SNR estimate. The teacher's own dsp.go hand-rolls a
// DFT/filter-bank approach for narrowband AFSK demodulation; here the 64-bin
// transform itself is delegated to gonum's real FFT
// (gonum.org/v1/gonum/dsp/fourier), the library ausocean/av's go.mod pulls
// in for its own audio/video DSP, and only the window function and
// magnitude smoothing are grounded directly on the teacher's dsp.go.
package demod

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// WindowSize is the DFT size: 64 samples = one symbol period at 8 kHz.
	WindowSize = 64

	// smoothingOld and smoothingNew are the exponential-moving-average
	// weights spec.md §4.2 calls for (flagged as tunable in §9 open
	// question 4).
	smoothingOld = 0.8
	smoothingNew = 0.2

	silenceFloor = 1e-9
)

// Demodulator slides a 64-sample window over an audio stream and computes a
// DFT at every symbol boundary.
type Demodulator struct {
	fft *fourier.FFT

	buf    [WindowSize]float64
	filled int // number of valid samples currently in buf

	magnitudes [WindowSize]float64 // smoothed, last computed at a boundary
	lastSNR    float64
}

// NewDemodulator creates a demodulator ready to receive samples.
func NewDemodulator() *Demodulator {
	return &Demodulator{fft: fourier.NewFFT(WindowSize)}
}

// hammingWindow applies a Hamming window to reduce spectral leakage at the
// 64-sample block boundary, in the style of the teacher's dsp.go `window`
// function (BP_WINDOW_HAMMING case).
func hammingWindow(n, size int) float64 {
	return 0.53836 - 0.46164*math.Cos((float64(n)*2*math.Pi)/float64(size-1))
}

// PushSample feeds one signed 16-bit audio sample into the sliding window.
// Every 64th sample triggers a fresh DFT; the returned magnitude array is
// the most recently computed one (stale between boundaries), matching
// spec.md §4.2's "at each symbol boundary" semantics.
func (d *Demodulator) PushSample(sample int16) [WindowSize]float64 {
	normalized := float64(sample) / 32768.0

	d.buf[d.filled] = normalized
	d.filled++
	if d.filled == WindowSize {
		d.computeSpectrum()
		d.filled = 0
	}

	return d.magnitudes
}

func (d *Demodulator) computeSpectrum() {
	windowed := make([]float64, WindowSize)
	for i, v := range d.buf {
		windowed[i] = v * hammingWindow(i, WindowSize)
	}

	coeffs := d.fft.Coefficients(nil, windowed)

	var raw [WindowSize]float64
	half := WindowSize/2 + 1
	for k := 0; k < half; k++ {
		raw[k] = cmplx.Abs(coeffs[k]) / WindowSize
	}
	for k := half; k < WindowSize; k++ {
		raw[k] = raw[WindowSize-k]
	}

	for k := 0; k < WindowSize; k++ {
		d.magnitudes[k] = smoothingOld*d.magnitudes[k] + smoothingNew*raw[k]
	}

	d.lastSNR = computeSNR(d.magnitudes)
}

// computeSNR implements spec.md §4.2: 10*log10(peak_bin_power /
// mean_non-signal_bin_power), clamped to [0,60] dB. The non-signal bins
// exclude the peak's Hamming main lobe (peak ±1) and its mirror image in
// the upper half of the spectrum, which both carry the tone's own energy.
func computeSNR(magnitudes [WindowSize]float64) float64 {
	peakBin := 0
	peakMag := magnitudes[0]
	for k := 1; k < WindowSize; k++ {
		if magnitudes[k] > peakMag {
			peakMag = magnitudes[k]
			peakBin = k
		}
	}

	peakPower := peakMag * peakMag
	if peakPower <= silenceFloor {
		return 0
	}

	var sumPower float64
	n := 0
	for k := 0; k < WindowSize; k++ {
		dk, dm := k-peakBin, k-(WindowSize-peakBin)
		if (dk >= -1 && dk <= 1) || (dm >= -1 && dm <= 1) {
			continue
		}
		sumPower += magnitudes[k] * magnitudes[k]
		n++
	}
	if n == 0 || sumPower <= silenceFloor {
		return 60
	}
	meanNonSignal := sumPower / float64(n)

	snr := 10 * math.Log10(peakPower/meanNonSignal)
	return clamp(snr, 0, 60)
}

// GetSNR returns the SNR estimate (dB) from the most recently computed
// spectrum.
func (d *Demodulator) GetSNR() float64 {
	return d.lastSNR
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
