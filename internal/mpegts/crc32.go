package mpegts

import "errors"

var errCRCMismatch = errors.New("CRC32 mismatch")

// MPEG-2 CRC32: polynomial 0x04C11DB7, no reflection, no final XOR.
var crc32Table [256]uint32

func init() {
	for i := range crc32Table {
		crc := uint32(i) << 24
		for range 8 {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		crc32Table[i] = crc
	}
}

// CRC32 computes the MPEG-2 CRC of a PSI section. A section followed by
// its own CRC sums to zero.
func CRC32(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = crc<<8 ^ crc32Table[byte(crc>>24)^b]
	}
	return crc
}

func verifyCRC32(section []byte) error {
	if len(section) < 4 || CRC32(section) != 0 {
		return errCRCMismatch
	}
	return nil
}
