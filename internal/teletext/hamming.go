package teletext

import "math/bits"

// Sentinels returned by the Hamming decoders for uncorrectable input.
const (
	Ham84Error   byte   = 0xFF
	Ham2418Error uint32 = 0xFFFFFFFF
)

// ham84Codewords maps each nibble to its Hamming 8/4 codeword
// (ETS 300 706, 8.2). Bit 0 carries P1, data bits sit at 1, 3, 5 and 7.
var ham84Codewords = [16]byte{
	0x15, 0x02, 0x49, 0x5E, 0x64, 0x73, 0x38, 0x2F,
	0xD0, 0xC7, 0x8C, 0x9B, 0xA1, 0xB6, 0xFD, 0xEA,
}

var (
	unham84Table [256]byte
	parityTable  [256]bool
)

func init() {
	for i := range unham84Table {
		unham84Table[i] = Ham84Error
	}
	// Every codeword corrects itself and its eight single-bit neighbours.
	// The code has distance 4, so neighbourhoods never overlap.
	for nibble, cw := range ham84Codewords {
		unham84Table[cw] = byte(nibble)
		for bit := 0; bit < 8; bit++ {
			unham84Table[cw^(1<<bit)] = byte(nibble)
		}
	}

	for i := range parityTable {
		parityTable[i] = bits.OnesCount8(uint8(i))&1 == 1
	}
}

// Unham84 decodes a Hamming 8/4 byte into its 4-bit value, correcting a
// single bit error. It returns Ham84Error when two or more bits are wrong.
func Unham84(b byte) byte {
	return unham84Table[b]
}

// Ham84Encode returns the Hamming 8/4 codeword for the low nibble of n.
func Ham84Encode(n byte) byte {
	return ham84Codewords[n&0x0F]
}

// Parity reports whether b has odd parity, the check used on every
// character byte of a display row.
func Parity(b byte) bool {
	return parityTable[b]
}

// OddParity sets bit 7 of the 7-bit character c so the byte has odd parity.
func OddParity(c byte) byte {
	c &= 0x7F
	if bits.OnesCount8(c)&1 == 0 {
		c |= 0x80
	}
	return c
}

// Unham2418 decodes a Hamming 24/18 triplet (transmitted LSB first, so the
// first byte on the wire is in bits 0-7). A single bit error is corrected;
// a double error returns Ham2418Error. The 18 data bits are returned packed
// into bits 0-17.
func Unham2418(v uint32) uint32 {
	var test uint32
	for i := uint32(0); i < 23; i++ {
		if v&(1<<i) != 0 {
			test ^= i + 33
		}
	}
	if v&(1<<23) != 0 {
		test ^= 32
	}

	if test&0x1F != 0x1F {
		if test&0x20 == 0x20 {
			return Ham2418Error
		}
		v ^= 1 << (30 - test)
	}

	return (v&0x000004)>>2 |
		(v&0x000070)>>3 |
		(v&0x007F00)>>4 |
		(v&0x7F0000)>>5
}

// Ham2418Encode builds the 24-bit Hamming 24/18 triplet carrying the low
// 18 bits of d. It is the inverse of Unham2418.
func Ham2418Encode(d uint32) uint32 {
	v := (d&0x1)<<2 |
		(d&0xE)<<3 |
		(d&0x7F0)<<4 |
		(d&0x3F800)<<5

	// Each of P1..P5 gives odd parity over the positions it covers, which
	// makes the XOR of all set positions (1-based) equal 0x1F.
	var syndrome uint32
	for i := uint32(0); i < 23; i++ {
		if v&(1<<i) != 0 {
			syndrome ^= i + 1
		}
	}
	need := syndrome ^ 0x1F
	for b := uint32(0); b < 5; b++ {
		if need&(1<<b) != 0 {
			v |= 1 << ((1 << b) - 1)
		}
	}

	// P6 makes the whole triplet odd.
	if bits.OnesCount32(v)&1 == 0 {
		v |= 1 << 23
	}
	return v
}
