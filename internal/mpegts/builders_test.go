package mpegts

import "encoding/binary"

func makePacket(pid uint16, cc uint8, pusi bool, payload []byte) []byte {
	buf := make([]byte, packetSize)
	buf[0] = syncByte
	buf[1] = byte(pid>>8) & 0x1F
	buf[2] = byte(pid)
	buf[3] = 0x10 | (cc & 0x0F) // payload only
	if pusi {
		buf[1] |= 0x40
	}
	// Unused payload bytes are stuffing.
	for i := 4; i < packetSize; i++ {
		buf[i] = 0xFF
	}
	copy(buf[4:], payload)
	return buf
}

func makePacketWithAF(pid uint16, cc uint8, afLen int, payload []byte) []byte {
	buf := make([]byte, packetSize)
	buf[0] = syncByte
	buf[1] = byte(pid>>8) & 0x1F
	buf[2] = byte(pid)
	if len(payload) > 0 {
		buf[3] = 0x30 | (cc & 0x0F) // adaptation + payload
	} else {
		buf[3] = 0x20 | (cc & 0x0F) // adaptation only
	}
	buf[4] = byte(afLen)
	if offset := 5 + afLen; offset < packetSize {
		copy(buf[offset:], payload)
	}
	return buf
}

type program struct{ num, pid uint16 }

// buildPAT constructs a PAT section with a valid CRC.
func buildPAT(tsID uint16, programs []program) []byte {
	sectionLength := 5 + 4*len(programs) + 4

	data := make([]byte, 3+sectionLength)
	data[0] = tableIDPAT
	data[1] = 0xB0 | byte(sectionLength>>8)&0x0F
	data[2] = byte(sectionLength)
	binary.BigEndian.PutUint16(data[3:], tsID)
	data[5] = 0xC1 // version 0, current_next 1

	offset := 8
	for _, p := range programs {
		binary.BigEndian.PutUint16(data[offset:], p.num)
		data[offset+2] = 0xE0 | byte(p.pid>>8)&0x1F
		data[offset+3] = byte(p.pid)
		offset += 4
	}
	binary.BigEndian.PutUint32(data[offset:], CRC32(data[:offset]))
	return data
}

type elementaryStream struct {
	streamType  uint8
	pid         uint16
	descriptors []byte
}

// buildPMT constructs a PMT section with a valid CRC. programInfo is the
// raw program descriptor loop.
func buildPMT(programNum, pcrPID uint16, programInfo []byte, streams []elementaryStream) []byte {
	esLen := 0
	for _, s := range streams {
		esLen += 5 + len(s.descriptors)
	}
	sectionLength := 9 + len(programInfo) + esLen + 4

	data := make([]byte, 3+sectionLength)
	data[0] = tableIDPMT
	data[1] = 0xB0 | byte(sectionLength>>8)&0x0F
	data[2] = byte(sectionLength)
	binary.BigEndian.PutUint16(data[3:], programNum)
	data[5] = 0xC1
	data[8] = 0xE0 | byte(pcrPID>>8)&0x1F
	data[9] = byte(pcrPID)
	data[10] = 0xF0 | byte(len(programInfo)>>8)&0x0F
	data[11] = byte(len(programInfo))

	offset := 12 + copy(data[12:], programInfo)
	for _, s := range streams {
		data[offset] = s.streamType
		data[offset+1] = 0xE0 | byte(s.pid>>8)&0x1F
		data[offset+2] = byte(s.pid)
		data[offset+3] = 0xF0 | byte(len(s.descriptors)>>8)&0x0F
		data[offset+4] = byte(len(s.descriptors))
		offset += 5 + copy(data[offset+5:], s.descriptors)
	}
	binary.BigEndian.PutUint32(data[offset:], CRC32(data[:offset]))
	return data
}

// withPointer prefixes a section with a zero pointer_field.
func withPointer(section []byte) []byte {
	return append([]byte{0x00}, section...)
}

// teletextDescriptor builds a teletext descriptor with one entry per
// (language, type, magazine, page) tuple.
func teletextDescriptor(tag byte, entries ...TeletextEntry) []byte {
	d := []byte{tag, byte(5 * len(entries))}
	for _, e := range entries {
		d = append(d, e.Language[:3]...)
		d = append(d, byte(e.Type)<<3|e.Magazine&0x07, e.Page)
	}
	return d
}

// encodePTS encodes a 33-bit PTS/DTS value into 5 bytes with marker bits.
func encodePTS(marker byte, value int64) []byte {
	bs := make([]byte, 5)
	bs[0] = marker<<4 | byte((value>>29)&0x0E) | 0x01
	bs[1] = byte(value >> 22)
	bs[2] = byte((value>>14)&0xFE) | 0x01
	bs[3] = byte(value >> 7)
	bs[4] = byte((value<<1)&0xFE) | 0x01
	return bs
}

// buildPESPacket builds a PES packet. Stream id 0xE0 is written
// unbounded, as video usually is.
func buildPESPacket(streamID byte, pts, dts int64, hasPTS, hasDTS bool, data []byte) []byte {
	var opt []byte
	flags := byte(0)
	switch {
	case hasPTS && hasDTS:
		flags = 3
		opt = append(opt, encodePTS(0x03, pts)...)
		opt = append(opt, encodePTS(0x01, dts)...)
	case hasPTS:
		flags = 2
		opt = append(opt, encodePTS(0x02, pts)...)
	}

	packetLength := 3 + len(opt) + len(data)
	if streamID == 0xE0 {
		packetLength = 0
	}

	buf := []byte{0x00, 0x00, 0x01, streamID, byte(packetLength >> 8), byte(packetLength)}
	buf = append(buf, 0x84, flags<<6, byte(len(opt))) // data_alignment set
	buf = append(buf, opt...)
	return append(buf, data...)
}

// packetizePES splits a PES packet into TS packets on pid, starting at cc.
func packetizePES(pid uint16, cc uint8, pes []byte) [][]byte {
	var out [][]byte
	for first := true; len(pes) > 0; first = false {
		n := min(len(pes), packetSize-4)
		out = append(out, makePacket(pid, cc, first, pes[:n]))
		pes = pes[n:]
		cc++
	}
	return out
}
