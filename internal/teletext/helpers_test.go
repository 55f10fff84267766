package teletext

import "log/slog"

func encodeAddress(m, y int) [2]byte {
	a := (m & 0x7) | y<<3
	return [2]byte{Ham84Encode(byte(a & 0xF)), Ham84Encode(byte(a >> 4))}
}

func headerPacket(page Page, subtitle bool, charsetID uint8, mode TransmissionMode) *Packet {
	p := &Packet{ClockIn: 0x55, FramingCode: 0x27, Address: encodeAddress(page.Magazine(), 0)}
	for i := range p.Data {
		p.Data[i] = OddParity(' ')
	}
	n := page.Number()
	p.Data[0] = Ham84Encode(byte(n & 0xF))
	p.Data[1] = Ham84Encode(byte(n >> 4))
	for i := 2; i < 8; i++ {
		p.Data[i] = Ham84Encode(0)
	}
	if subtitle {
		p.Data[5] = Ham84Encode(0x8)
	}
	p.Data[7] = Ham84Encode(charsetID<<1 | byte(mode))
	return p
}

func rowPacket(m, y int, cells []byte) *Packet {
	p := &Packet{ClockIn: 0x55, FramingCode: 0x27, Address: encodeAddress(m, y)}
	for i := range p.Data {
		c := byte(' ')
		if i < len(cells) {
			c = cells[i]
		}
		p.Data[i] = OddParity(c)
	}
	return p
}

// boxed wraps text in the double start box and end box used by subtitle
// pages.
func boxed(prefix []byte, text string) []byte {
	cells := append([]byte{}, prefix...)
	cells = append(cells, startBox, startBox)
	cells = append(cells, text...)
	return append(cells, endBox, endBox)
}

func tripletPacket(m, y int, desig byte, triplets ...uint32) *Packet {
	p := &Packet{Address: encodeAddress(m, y)}
	p.Data[0] = Ham84Encode(desig)
	for j := 0; j < 13; j++ {
		// Unused slots carry a termination marker.
		t := uint32(0x1F<<6 | 63)
		if j < len(triplets) {
			t = triplets[j]
		}
		cw := Ham2418Encode(t)
		p.Data[1+3*j] = byte(cw)
		p.Data[2+3*j] = byte(cw >> 8)
		p.Data[3+3*j] = byte(cw >> 16)
	}
	return p
}

func x26(data, mode, addr uint32) uint32 {
	return data<<11 | mode<<6 | addr
}

type recorder struct {
	packets    map[int]int
	corruption map[Corruption]int
	charsets   []string
	cues       []int
}

func newRecorder() *recorder {
	return &recorder{
		packets:    make(map[int]int),
		corruption: make(map[Corruption]int),
	}
}

func (r *recorder) RecordPacket(row int)             { r.packets[row]++ }
func (r *recorder) RecordCorruption(kind Corruption) { r.corruption[kind]++ }
func (r *recorder) RecordCharset(language string)    { r.charsets = append(r.charsets, language) }
func (r *recorder) RecordCue(page int)               { r.cues = append(r.cues, page) }

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
