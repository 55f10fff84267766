package mpegts

import "fmt"

// isPESPayload checks for the PES start code prefix (0x000001).
func isPESPayload(data []byte) bool {
	return len(data) >= 3 && data[0] == 0x00 && data[1] == 0x00 && data[2] == 0x01
}

// hasOptionalHeader reports whether a stream id carries the optional PES
// header. padding_stream, private_stream_2, ECM, EMM, DSMCC, H.222.1 type E
// and program_stream_directory do not.
func hasOptionalHeader(streamID byte) bool {
	switch streamID {
	case 0xBE, 0xBF, 0xF0, 0xF1, 0xF2, 0xF8, 0xFF:
		return false
	}
	return true
}

// pesLength returns the total size of a bounded PES packet from its first
// bytes, or 0 if the packet is unbounded or the header is incomplete.
func pesLength(payload []byte) int {
	if len(payload) < 6 || !isPESPayload(payload) {
		return 0
	}
	n := int(payload[4])<<8 | int(payload[5])
	if n == 0 {
		return 0
	}
	return 6 + n
}

func parsePES(payload []byte) (*PESData, error) {
	if len(payload) < 6 {
		return nil, fmt.Errorf("mpegts: PES packet too short (%d bytes)", len(payload))
	}
	if !isPESPayload(payload) {
		return nil, fmt.Errorf("mpegts: invalid PES start code")
	}

	pes := &PESData{
		Header: &PESHeader{
			StreamID:     payload[3],
			PacketLength: uint16(payload[4])<<8 | uint16(payload[5]),
		},
	}
	end := len(payload)
	if total := pesLength(payload); total > 0 && total <= len(payload) {
		end = total
	}

	if !hasOptionalHeader(pes.Header.StreamID) {
		pes.Data = payload[6:end]
		return pes, nil
	}
	if len(payload) < 9 {
		return nil, fmt.Errorf("mpegts: PES optional header too short")
	}

	// [6] '10' + scrambling(2) + priority + data_alignment + copyright + original
	// [7] PTS_DTS_flags(2) + ESCR + ES_rate + DSM_trick + copy_info + CRC + extension
	// [8] PES_header_data_length
	opt := &PESOptionalHeader{DataAlignmentIndicator: payload[6]&0x04 != 0}
	pes.Header.OptionalHeader = opt

	switch payload[7] >> 6 {
	case 2:
		if len(payload) >= 14 {
			opt.PTS = parsePTSOrDTS(payload[9:14])
		}
	case 3:
		if len(payload) >= 19 {
			opt.PTS = parsePTSOrDTS(payload[9:14])
			opt.DTS = parsePTSOrDTS(payload[14:19])
		}
	}

	dataStart := min(9+int(payload[8]), end)
	pes.Data = payload[dataStart:end]
	return pes, nil
}

// parsePTSOrDTS extracts a 33-bit timestamp from 5 PES timestamp bytes.
func parsePTSOrDTS(bs []byte) *ClockReference {
	if len(bs) < 5 {
		return nil
	}
	base := int64(bs[0]>>1&0x07)<<30 |
		int64(bs[1])<<22 |
		int64(bs[2]>>1&0x7F)<<15 |
		int64(bs[3])<<7 |
		int64(bs[4]>>1&0x7F)
	return &ClockReference{Base: base}
}
