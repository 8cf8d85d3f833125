// Package golay implements the extended binary Golay (24,12) code used to
// forward-error-correct 12-bit ALE control words. The code has minimum
// distance 8: it corrects up to 3 bit errors per codeword and detects 4.
package golay

import "math/bits"

// Codeword layout: bits 23..12 carry the 12 information bits, bits 11..0
// carry the 12 parity bits computed from the generator matrix B.
const (
	InfoBits   = 12
	ParityBits = 12
	CodeBits   = InfoBits + ParityBits
)

// generatorRows holds the 12 rows of the self-dual 12x12 matrix B used to
// build the systematic generator matrix G = [I | B] and parity-check matrix
// H = [B | I]. B is constructed from the quadratic residues of 11, the
// classic bordered Paley construction for the (24,12) extended Golay code.
// B is not symmetric (-1 is not a quadratic residue mod 11); encoding and
// syndrome computation both go through parityOf, so they use the same
// orientation of the table.
var generatorRows [12]uint16

// encodeTable maps each of the 4096 possible 12-bit messages to its 12-bit
// parity, computed once at package initialization.
var encodeTable [1 << InfoBits]uint16

// syndromeTable maps a 12-bit syndrome to the 24-bit error pattern that
// produced it, for every error pattern of Hamming weight 0..3 (2325 of
// them). An entry whose syndromeKnown flag is false means the syndrome was never
// produced by a weight<=3 error and the word is uncorrectable.
var syndromeTable [1 << ParityBits]uint32
var syndromeKnown [1 << ParityBits]bool

func init() {
	buildGeneratorMatrix()
	buildEncodeTable()
	buildSyndromeTable()
}

func buildGeneratorMatrix() {
	const p = 11
	qr := map[int]bool{}
	for x := 1; x < p; x++ {
		qr[(x*x)%p] = true
	}

	var b [12][12]bool
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			d := ((j - i) % p + p) % p
			if i == j || qr[d] {
				b[i][j] = true
			}
		}
		b[i][11] = true
		b[11][i] = true
	}
	b[11][11] = false

	for i := 0; i < 12; i++ {
		var row uint16
		for j := 0; j < 12; j++ {
			if b[i][j] {
				row |= 1 << uint(j)
			}
		}
		generatorRows[i] = row
	}
}

// parityOf computes the 12 parity bits of m: parity bit j is the dot
// product (mod 2) of m with row j of B.
func parityOf(m uint16) uint16 {
	var p uint16
	for j := 0; j < 12; j++ {
		if bits.OnesCount16(m&generatorRows[j])&1 == 1 {
			p |= 1 << uint(j)
		}
	}
	return p
}

func buildEncodeTable() {
	for m := 0; m < (1 << InfoBits); m++ {
		encodeTable[m] = parityOf(uint16(m))
	}
}

// syndrome computes H*r for a 24-bit received word, returning the 12-bit
// syndrome. It is zero iff the word is a valid codeword.
func syndrome(word uint32) uint16 {
	info := uint16(word >> ParityBits)
	parity := uint16(word & ((1 << ParityBits) - 1))
	return parityOf(info) ^ parity
}

func buildSyndromeTable() {
	// Weight 0.
	recordSyndrome(0)

	// Weight 1.
	for i := 0; i < CodeBits; i++ {
		recordSyndrome(uint32(1) << uint(i))
	}

	// Weight 2.
	for i := 0; i < CodeBits; i++ {
		for j := i + 1; j < CodeBits; j++ {
			recordSyndrome(uint32(1)<<uint(i) | uint32(1)<<uint(j))
		}
	}

	// Weight 3.
	for i := 0; i < CodeBits; i++ {
		for j := i + 1; j < CodeBits; j++ {
			for k := j + 1; k < CodeBits; k++ {
				recordSyndrome(uint32(1)<<uint(i) | uint32(1)<<uint(j) | uint32(1)<<uint(k))
			}
		}
	}
}

func recordSyndrome(errPattern uint32) {
	s := syndrome(errPattern)
	if !syndromeKnown[s] {
		syndromeTable[s] = errPattern
		syndromeKnown[s] = true
	}
}

// Encode maps a 12-bit message to its 24-bit Golay codeword.
func Encode(message uint16) uint32 {
	message &= (1 << InfoBits) - 1
	return uint32(message)<<ParityBits | uint32(encodeTable[message])
}

// UncorrectableFecError is returned by Decode when the syndrome does not
// correspond to any error pattern of weight <= 3.
type UncorrectableFecError struct {
	Word uint32
}

func (e *UncorrectableFecError) Error() string {
	return "golay: uncorrectable codeword"
}

// Decode recovers the 12-bit message from a possibly-corrupted 24-bit
// codeword, correcting up to 3 bit errors. It returns the message and the
// number of bits corrected, or an *UncorrectableFecError if the syndrome is
// not in the precomputed table.
func Decode(word uint32) (message uint16, errorsCorrected int, err error) {
	word &= (1 << CodeBits) - 1
	s := syndrome(word)
	if s == 0 {
		return uint16(word >> ParityBits), 0, nil
	}
	if !syndromeKnown[s] {
		return 0, 0, &UncorrectableFecError{Word: word}
	}
	pattern := syndromeTable[s]
	corrected := word ^ pattern
	return uint16(corrected >> ParityBits), bits.OnesCount32(pattern), nil
}
