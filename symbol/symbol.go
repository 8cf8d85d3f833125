// Package symbol implements the symbol decoder (C3 in spec.md §4.3):
// per-symbol tone detection from FFT magnitudes, and 2-of-3 majority-vote
// recovery of a 24-bit ALE word from the 49 symbols sent on air for it.
package symbol

import "math/bits"

const (
	// MinBin and MaxBin bound the valid tone bins; any peak outside this
	// range invalidates the symbol (spec.md §3 FFT grid).
	MinBin = 6
	MaxBin = 13

	// WordBits is the number of payload bits in one ALE word.
	WordBits = 24

	// WordSymbols is the number of 8-FSK symbols sent on air per word:
	// 392ms / 8ms.
	WordSymbols = 49

	// symbolsPerCopy is the number of tribit symbols needed to carry all 24
	// bits of one copy (24/3).
	symbolsPerCopy = WordBits / 3
)

// copyOffsets places the three redundant copies of the word's 8 data
// symbols at roughly one-third spacing within the 49-symbol word, the
// concrete realization of spec.md §3's "three copies spread by one-word
// offsets" (the exact MIL-STD-188-141B Appendix A layout is flagged as an
// open question in spec.md §9; this is our documented, self-consistent
// choice). The remaining 49-24=25 symbol slots carry word structure
// (sync/phasing) that this layer does not interpret.
var copyOffsets = [3]int{0, 16, 32}

// SignalError is returned by Detect when the dominant bin of a symbol
// interval falls outside the valid tone range, meaning no usable 8-FSK tone
// was present (dead air, noise, or a mistimed symbol boundary).
type SignalError struct {
	Bin int
}

func (e *SignalError) Error() string { return "symbol: no tone detected in valid bin range" }

// Detect finds the dominant bin in a 64-bin magnitude array and maps it to
// an 8-FSK symbol. Ties are broken by choosing the lowest bin. It returns a
// *SignalError if the peak bin falls outside [MinBin,MaxBin].
func Detect(magnitudes [64]float64) (sym int, err error) {
	peakBin := 0
	peakMag := magnitudes[0]
	for k := 1; k < len(magnitudes); k++ {
		if magnitudes[k] > peakMag {
			peakMag = magnitudes[k]
			peakBin = k
		}
	}
	if peakBin < MinBin || peakBin > MaxBin {
		return 0, &SignalError{Bin: peakBin}
	}
	return peakBin - MinBin, nil
}

// SpreadWithTripleRedundancy lays out a 24-bit word as the 49 on-air
// symbols its three copies occupy, the transmit-side counterpart of Vote.
// Structure (non-data) symbol positions are filled with 0.
func SpreadWithTripleRedundancy(word uint32) [WordSymbols]int {
	var symbols [WordSymbols]int
	for g := 0; g < symbolsPerCopy; g++ {
		shift := uint(WordBits - 3*(g+1))
		val := int((word >> shift) & 0x7)
		for _, off := range copyOffsets {
			symbols[off+g] = val
		}
	}
	return symbols
}

// Vote recovers a 24-bit word from 49 decoded symbols, 2-of-3 majority
// voting each data bit independently across its three copies. A symbol
// position marked invalid (ok=false) contributes no vote for its bits; if
// a copy is missing the majority is taken over whatever is present (a 1-1
// split resolves to 1; a bit with no valid copy is 0).
//
// correctionsApplied counts the bits where the three copies were not
// unanimous, i.e. where voting actually adjudicated a disagreement.
func Vote(symbols [WordSymbols]int, valid [WordSymbols]bool) (word uint32, correctionsApplied int) {
	for g := 0; g < symbolsPerCopy; g++ {
		for bitInSymbol := 0; bitInSymbol < 3; bitInSymbol++ {
			globalBit := g*3 + bitInSymbol
			shift := uint(2 - bitInSymbol)

			ones, total := 0, 0
			for _, off := range copyOffsets {
				pos := off + g
				if !valid[pos] {
					continue
				}
				total++
				if (symbols[pos]>>shift)&1 == 1 {
					ones++
				}
			}

			bitVal := 0
			if total > 0 && ones*2 >= total {
				bitVal = 1
			}
			if bitVal == 1 {
				word |= 1 << uint(WordBits-1-globalBit)
			}
			if total > 0 && ones != 0 && ones != total {
				correctionsApplied++
			}
		}
	}
	return word, correctionsApplied
}

// PopCount is a small helper exposed for callers that need to compare
// correction counts against injected error weights in tests.
func PopCount(x uint32) int {
	return bits.OnesCount32(x)
}
