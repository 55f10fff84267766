package mpegts

import "fmt"

const (
	tableIDPAT = 0x00
	tableIDPMT = 0x02
)

// parsePSI splits a reassembled PSI payload into sections and parses the
// PAT and PMT sections among them. Other table ids are skipped.
func parsePSI(payload []byte, firstPacket *Packet) ([]*DemuxerData, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("mpegts: PSI payload too short")
	}
	offset := 1 + int(payload[0]) // pointer_field
	if offset >= len(payload) {
		return nil, fmt.Errorf("mpegts: PSI pointer field out of range")
	}

	var results []*DemuxerData
	for offset+3 <= len(payload) {
		tableID := payload[offset]
		// 0xFF is stuffing; a clear section_syntax_indicator is zero padding.
		if tableID == 0xFF || payload[offset+1]&0x80 == 0 {
			break
		}
		end := offset + 3 + sectionLength(payload[offset:])
		if end > len(payload) {
			break
		}
		section := payload[offset:end]
		offset = end

		switch tableID {
		case tableIDPAT:
			pat, err := parsePATSection(section)
			if err != nil {
				return results, err
			}
			results = append(results, &DemuxerData{FirstPacket: firstPacket, PAT: pat})
		case tableIDPMT:
			pmt, err := parsePMTSection(section)
			if err != nil {
				return results, err
			}
			results = append(results, &DemuxerData{FirstPacket: firstPacket, PMT: pmt})
		}
	}
	return results, nil
}

func sectionLength(section []byte) int {
	return int(section[1]&0x0F)<<8 | int(section[2])
}

// parsePATSection parses a PAT section including its CRC.
//
//	[0]      table_id
//	[1-2]    section_syntax_indicator, section_length
//	[3-4]    transport_stream_id
//	[5-7]    version, section_number, last_section_number
//	[8..N-4] program_number(16) + reserved(3) + PID(13)
func parsePATSection(data []byte) (*PATData, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("mpegts: PAT too short (%d bytes)", len(data))
	}
	if err := verifyCRC32(data); err != nil {
		return nil, fmt.Errorf("mpegts: PAT %w", err)
	}

	pat := &PATData{TransportStreamID: uint16(data[3])<<8 | uint16(data[4])}
	end := min(3+sectionLength(data), len(data)) - 4
	for i := 8; i+4 <= end; i += 4 {
		num := uint16(data[i])<<8 | uint16(data[i+1])
		if num == 0 {
			continue // network PID
		}
		pat.Programs = append(pat.Programs, &PATProgram{
			ProgramNumber: num,
			ProgramMapID:  uint16(data[i+2]&0x1F)<<8 | uint16(data[i+3]),
		})
	}
	return pat, nil
}

// parsePMTSection parses a PMT section with the program and elementary
// stream descriptor loops.
//
//	[0-7]   as PAT, program_number at [3-4]
//	[8-9]   reserved(3) + PCR_PID(13)
//	[10-11] reserved(4) + program_info_length(12)
//	[...]   program descriptors, then per stream: stream_type(8),
//	        reserved(3) + PID(13), reserved(4) + ES_info_length(12),
//	        ES descriptors
func parsePMTSection(data []byte) (*PMTData, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("mpegts: PMT too short (%d bytes)", len(data))
	}
	if err := verifyCRC32(data); err != nil {
		return nil, fmt.Errorf("mpegts: PMT %w", err)
	}

	end := min(3+sectionLength(data), len(data)) - 4
	pmt := &PMTData{
		ProgramNumber: uint16(data[3])<<8 | uint16(data[4]),
		PCRPID:        uint16(data[8]&0x1F)<<8 | uint16(data[9]),
	}

	infoLen := int(data[10]&0x0F)<<8 | int(data[11])
	offset := 12 + infoLen
	if offset > end {
		return nil, fmt.Errorf("mpegts: PMT program_info_length %d overruns section", infoLen)
	}
	// Descriptor errors are not fatal: the parsed prefix is kept.
	pmt.Descriptors, _ = parseDescriptors(data[12:offset])

	for offset+5 <= end {
		es := &PMTElementaryStream{
			StreamType:    data[offset],
			ElementaryPID: uint16(data[offset+1]&0x1F)<<8 | uint16(data[offset+2]),
		}
		esInfoLen := int(data[offset+3]&0x0F)<<8 | int(data[offset+4])
		descStart := offset + 5
		descEnd := min(descStart+esInfoLen, end)
		es.Descriptors, _ = parseDescriptors(data[descStart:descEnd])

		pmt.ElementaryStreams = append(pmt.ElementaryStreams, es)
		offset = descStart + esInfoLen
	}
	return pmt, nil
}
