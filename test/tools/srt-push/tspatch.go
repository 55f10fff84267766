package main

import "github.com/zsiec/telx/test/tools/tsutil"

// tsEntry is the byte offset of a PTS, DTS or PCR value within a TS file.
type tsEntry struct {
	offset int
	isPCR  bool // 6-byte PCR in the adaptation field, else 5-byte PES timestamp
}

// scanTimestamps returns the location of every PTS, DTS and PCR in data,
// plus the first and last PES PTS (90 kHz). Teletext rides in private
// stream 1, so it counts alongside audio and video.
func scanTimestamps(data []byte) (entries []tsEntry, firstPTS, lastPTS int64) {
	firstPTS = -1

	for off := 0; off+tsutil.TSPacketSize <= len(data); off += tsutil.TSPacketSize {
		pkt := data[off : off+tsutil.TSPacketSize]
		if pkt[0] != 0x47 {
			continue
		}

		hasAdapt := pkt[3]&0x20 != 0
		hasPayload := pkt[3]&0x10 != 0
		payloadOff := 4

		if hasAdapt {
			afLen := int(pkt[payloadOff])
			if afLen >= 7 && pkt[payloadOff+1]&0x10 != 0 {
				entries = append(entries, tsEntry{offset: off + payloadOff + 2, isPCR: true})
			}
			payloadOff += 1 + afLen
		}

		pusi := pkt[1]&0x40 != 0
		if !pusi || !hasPayload || payloadOff+14 > tsutil.TSPacketSize {
			continue
		}

		payload := pkt[payloadOff:]
		if payload[0] != 0 || payload[1] != 0 || payload[2] != 1 || !timedStream(payload[3]) {
			continue
		}

		flags := payload[7]
		if flags&0x80 != 0 {
			abs := off + payloadOff + 9
			entries = append(entries, tsEntry{offset: abs})
			pts := decodePTS(data[abs:])
			if firstPTS < 0 || pts < firstPTS {
				firstPTS = pts
			}
			lastPTS = max(lastPTS, pts)
		}
		if flags&0x40 != 0 && len(payload) >= 19 {
			entries = append(entries, tsEntry{offset: off + payloadOff + 14})
		}
	}

	return entries, firstPTS, lastPTS
}

func timedStream(id byte) bool {
	return id == 0xBD || // private stream 1
		(id >= 0xC0 && id <= 0xDF) || // audio
		(id >= 0xE0 && id <= 0xEF) // video
}

// addTimestampOffset adds delta (90 kHz) to every recorded timestamp so a
// looped file keeps a monotonic timeline.
func addTimestampOffset(data []byte, entries []tsEntry, delta int64) {
	for _, e := range entries {
		if e.isPCR {
			encodePCR(data[e.offset:], decodePCR(data[e.offset:])+delta)
		} else {
			encodePTS(data[e.offset:], decodePTS(data[e.offset:])+delta)
		}
	}
}

func decodePTS(b []byte) int64 {
	return int64(b[0]>>1&0x07)<<30 |
		int64(b[1])<<22 |
		int64(b[2]>>1&0x7F)<<15 |
		int64(b[3])<<7 |
		int64(b[4]>>1&0x7F)
}

// encodePTS keeps the prefix nibble of b[0].
func encodePTS(b []byte, pts int64) {
	pts &= 1<<33 - 1
	b[0] = b[0]&0xF0 | byte((pts>>29)&0x0E) | 0x01
	b[1] = byte(pts >> 22)
	b[2] = byte((pts>>14)&0xFE) | 0x01
	b[3] = byte(pts >> 7)
	b[4] = byte((pts<<1)&0xFE) | 0x01
}

// decodePCR returns the 33-bit PCR base, ignoring the extension.
func decodePCR(b []byte) int64 {
	return int64(b[0])<<25 |
		int64(b[1])<<17 |
		int64(b[2])<<9 |
		int64(b[3])<<1 |
		int64(b[4]>>7)
}

// encodePCR keeps the 9-bit extension.
func encodePCR(b []byte, base int64) {
	base &= 1<<33 - 1
	ext := uint16(b[4]&0x01)<<8 | uint16(b[5])
	b[0] = byte(base >> 25)
	b[1] = byte(base >> 17)
	b[2] = byte(base >> 9)
	b[3] = byte(base >> 1)
	b[4] = byte((base&1)<<7) | 0x7E | byte(ext>>8)
	b[5] = byte(ext)
}
