package mpegts

import "fmt"

const (
	packetSize = 188
	syncByte   = 0x47

	// m2tsPacketSize is a BDAV/M2TS packet: a 4-byte TP_extra_header
	// carrying the arrival timestamp, followed by a regular TS packet.
	m2tsPacketSize = 192
)

func parsePacket(buf []byte) (*Packet, error) {
	if len(buf) != packetSize {
		return nil, fmt.Errorf("mpegts: packet size %d, expected %d", len(buf), packetSize)
	}
	if buf[0] != syncByte {
		return nil, fmt.Errorf("mpegts: invalid sync byte 0x%02X", buf[0])
	}

	p := &Packet{}
	h := &p.Header
	h.TransportErrorIndicator = buf[1]&0x80 != 0
	h.PayloadUnitStartIndicator = buf[1]&0x40 != 0
	h.PID = uint16(buf[1]&0x1F)<<8 | uint16(buf[2])
	h.HasAdaptationField = buf[3]&0x20 != 0
	h.HasPayload = buf[3]&0x10 != 0
	h.ContinuityCounter = buf[3] & 0x0F

	offset := 4
	if h.HasAdaptationField {
		afLen := int(buf[offset])
		if afLen > 0 {
			h.DiscontinuityIndicator = buf[offset+1]&0x80 != 0
		}
		offset = min(offset+1+afLen, packetSize)
	}

	if h.HasPayload && offset < packetSize {
		p.Payload = make([]byte, packetSize-offset)
		copy(p.Payload, buf[offset:])
	}
	return p, nil
}
