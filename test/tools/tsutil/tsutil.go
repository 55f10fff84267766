// Package tsutil builds synthetic MPEG-TS streams carrying EBU Teletext
// subtitles. It is shared by the gen-teletext tool and by tests.
package tsutil

import (
	"bytes"
	"math/bits"

	"github.com/zsiec/telx/internal/mpegts"
	"github.com/zsiec/telx/internal/teletext"
)

// TSPacketSize is the fixed size of an MPEG-TS packet.
const TSPacketSize = 188

const (
	// Teletext PES headers are padded to a fixed PES_header_data_length
	// (EN 300 472 §4.2).
	pesHeaderDataLength = 0x24
	dataIdentifierEBU   = 0x10
	unitLength          = 2 + teletext.PacketSize

	startBox = 0x0B
	endBox   = 0x0A
)

// Address encodes the magazine and row of a teletext packet.
func Address(magazine, row int) [2]byte {
	a := (magazine & 0x7) | row<<3
	return [2]byte{teletext.Ham84Encode(byte(a & 0xF)), teletext.Ham84Encode(byte(a >> 4))}
}

// HeaderFlags are the control bits of a page header.
type HeaderFlags struct {
	Subtitle bool
	Erase    bool
	Serial   bool
	Charset  uint8 // national option character subset, 0-7
}

// Header returns a page header packet (row 0) in transmission order,
// before bit reversal.
func Header(page teletext.Page, flags HeaderFlags) []byte {
	p := newPacket(page.Magazine(), 0)
	data := p[4:]
	n := page.Number()
	data[0] = teletext.Ham84Encode(byte(n & 0xF))
	data[1] = teletext.Ham84Encode(byte(n >> 4))
	for i := 2; i < 8; i++ {
		data[i] = teletext.Ham84Encode(0)
	}
	if flags.Erase {
		data[3] = teletext.Ham84Encode(0x8)
	}
	if flags.Subtitle {
		data[5] = teletext.Ham84Encode(0x8)
	}
	var mode byte
	if flags.Serial {
		mode = 1
	}
	data[7] = teletext.Ham84Encode((flags.Charset&0x7)<<1 | mode)
	return p
}

// Row returns a display row packet holding cells, padded with spaces.
func Row(magazine, row int, cells []byte) []byte {
	p := newPacket(magazine, row)
	for i, c := range cells {
		if i == 40 {
			break
		}
		p[4+i] = teletext.OddParity(c)
	}
	return p
}

// Boxed wraps text in the double start box and end box used on subtitle
// pages.
func Boxed(text string) []byte {
	cells := []byte{startBox, startBox}
	cells = append(cells, text...)
	return append(cells, endBox, endBox)
}

// SubtitlePage returns the packets of one subtitle page: a header with the
// subtitle and erase flags and one boxed row per line, the last line on
// row 23 with an empty row between lines.
func SubtitlePage(page teletext.Page, lines ...string) [][]byte {
	packets := [][]byte{Header(page, HeaderFlags{Subtitle: true, Erase: true})}
	row := 23 - 2*(len(lines)-1)
	for _, line := range lines {
		packets = append(packets, Row(page.Magazine(), row, Boxed(line)))
		row += 2
	}
	return packets
}

func newPacket(magazine, row int) []byte {
	p := make([]byte, teletext.PacketSize)
	p[0] = 0x55
	p[1] = 0x27
	addr := Address(magazine, row)
	p[2], p[3] = addr[0], addr[1]
	for i := 4; i < len(p); i++ {
		p[i] = teletext.OddParity(' ')
	}
	return p
}

// DataUnit wraps a teletext packet in an EBU data unit, bit-reversing
// every byte for LSB-first transmission.
func DataUnit(id teletext.DataUnit, packet []byte) []byte {
	unit := make([]byte, 0, unitLength)
	unit = append(unit, byte(id), teletext.PacketSize)
	for _, b := range packet[:teletext.PacketSize] {
		unit = append(unit, bits.Reverse8(b))
	}
	return unit
}

// SubtitleUnits wraps each packet in a subtitle data unit.
func SubtitleUnits(packets [][]byte) [][]byte {
	units := make([][]byte, len(packets))
	for i, p := range packets {
		units[i] = DataUnit(teletext.DataUnitSubtitle, p)
	}
	return units
}

// TeletextPES builds a private stream 1 PES packet carrying the given data
// units. Stuffing units pad the packet to a multiple of 184 bytes so it
// fills whole TS packets.
func TeletextPES(pts int64, units ...[]byte) []byte {
	var pes []byte
	pes = append(pes, 0x00, 0x00, 0x01, 0xBD, 0x00, 0x00)
	pes = append(pes, 0x84, 0x80, pesHeaderDataLength)
	pes = append(pes, EncodePTS(pts)...)
	for len(pes) < 9+pesHeaderDataLength {
		pes = append(pes, 0xFF)
	}

	pes = append(pes, dataIdentifierEBU)
	for _, u := range units {
		pes = append(pes, u...)
	}
	for len(pes)%(TSPacketSize-4) != 0 {
		pes = append(pes, byte(teletext.DataUnitStuffing), teletext.PacketSize)
		pes = append(pes, bytes.Repeat([]byte{0xFF}, teletext.PacketSize)...)
	}

	length := len(pes) - 6
	pes[4] = byte(length >> 8)
	pes[5] = byte(length)
	return pes
}

// EncodePTS encodes a 33-bit PTS with the '0010' prefix used when no DTS
// follows.
func EncodePTS(pts int64) []byte {
	return []byte{
		0x21 | byte((pts>>29)&0x0E),
		byte(pts >> 22),
		byte((pts>>14)&0xFE) | 0x01,
		byte(pts >> 7),
		byte((pts<<1)&0xFE) | 0x01,
	}
}

// Packetize splits pesData into 188-byte TS packets on the given PID,
// incrementing the continuity counter cc between packets.
func Packetize(pesData []byte, pid uint16, cc *byte) []byte {
	var result []byte
	offset := 0
	first := true

	for offset < len(pesData) {
		var pkt [TSPacketSize]byte
		pkt[0] = 0x47
		pkt[1] = byte(pid>>8) & 0x1F
		pkt[2] = byte(pid)
		if first {
			pkt[1] |= 0x40
			first = false
		}
		pkt[3] = 0x10 | (*cc & 0x0F)
		*cc = (*cc + 1) & 0x0F

		remaining := len(pesData) - offset
		capacity := TSPacketSize - 4

		if remaining >= capacity {
			copy(pkt[4:], pesData[offset:offset+capacity])
			offset += capacity
			result = append(result, pkt[:]...)
			continue
		}

		// Pad the last packet with an adaptation field.
		stuffLen := capacity - remaining
		pkt[3] |= 0x20
		pkt[4] = byte(stuffLen - 1)
		if stuffLen > 1 {
			pkt[5] = 0
			for i := 6; i < 4+stuffLen; i++ {
				pkt[i] = 0xFF
			}
		}
		copy(pkt[4+stuffLen:], pesData[offset:])
		offset = len(pesData)
		result = append(result, pkt[:]...)
	}

	return result
}

// CollectPES walks tsData and returns the PES packets carried on pid,
// reassembled from their TS packets.
func CollectPES(tsData []byte, pid uint16) [][]byte {
	var packets [][]byte
	var current []byte

	for off := 0; off+TSPacketSize <= len(tsData); off += TSPacketSize {
		pkt := tsData[off : off+TSPacketSize]
		if pkt[0] != 0x47 || (uint16(pkt[1]&0x1F)<<8|uint16(pkt[2])) != pid {
			continue
		}

		headerLen := 4
		if pkt[3]&0x20 != 0 {
			headerLen = 5 + int(pkt[4])
		}
		if headerLen >= TSPacketSize {
			continue
		}
		payload := pkt[headerLen:]

		if pkt[1]&0x40 != 0 {
			if current != nil {
				packets = append(packets, current)
			}
			current = append([]byte(nil), payload...)
		} else if current != nil {
			current = append(current, payload...)
		}
	}
	if current != nil {
		packets = append(packets, current)
	}
	return packets
}

// TeletextDescriptor encodes a DVB teletext descriptor (tag 0x56).
func TeletextDescriptor(entries ...mpegts.TeletextEntry) []byte {
	d := []byte{mpegts.DescriptorTagTeletext, byte(5 * len(entries))}
	for _, e := range entries {
		lang := []byte(e.Language + "   ")[:3]
		d = append(d, lang...)
		d = append(d, byte(e.Type)<<3|e.Magazine&0x7, e.Page)
	}
	return d
}

// Section appends the CRC32 to a PSI section and packs it into a single
// TS packet with a zero pointer field.
func Section(pid uint16, cc byte, section []byte) []byte {
	crc := mpegts.CRC32(section)
	section = append(section, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))

	pkt := bytes.Repeat([]byte{0xFF}, TSPacketSize)
	pkt[0] = 0x47
	pkt[1] = 0x40 | byte(pid>>8)&0x1F
	pkt[2] = byte(pid)
	pkt[3] = 0x10 | cc&0x0F
	pkt[4] = 0
	copy(pkt[5:], section)
	return pkt
}

// PATSection returns a PAT section for a single program, without CRC.
func PATSection(programNumber, pmtPID uint16) []byte {
	s := []byte{0x00, 0xB0, 0x00, 0x00, 0x01, 0xC1, 0x00, 0x00}
	s = append(s, byte(programNumber>>8), byte(programNumber), 0xE0|byte(pmtPID>>8), byte(pmtPID))
	return withSectionLength(s)
}

// PMTSection returns a PMT section with one private data stream carrying
// the teletext descriptor, without CRC.
func PMTSection(programNumber, pcrPID, teletextPID uint16, entries ...mpegts.TeletextEntry) []byte {
	s := []byte{0x02, 0xB0, 0x00, byte(programNumber >> 8), byte(programNumber), 0xC1, 0x00, 0x00}
	s = append(s, 0xE0|byte(pcrPID>>8), byte(pcrPID), 0xF0, 0x00)

	desc := TeletextDescriptor(entries...)
	s = append(s, mpegts.StreamTypePrivateData, 0xE0|byte(teletextPID>>8), byte(teletextPID))
	s = append(s, 0xF0|byte(len(desc)>>8), byte(len(desc)))
	s = append(s, desc...)
	return withSectionLength(s)
}

// withSectionLength fills section_length, counting the CRC still to come.
func withSectionLength(s []byte) []byte {
	n := len(s) - 3 + 4
	s[1] = s[1]&0xF0 | byte(n>>8)&0x0F
	s[2] = byte(n)
	return s
}
