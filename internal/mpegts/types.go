// Package mpegts demultiplexes MPEG transport streams far enough to reach
// teletext: PAT and PMT discovery including the DVB teletext descriptor,
// PES reassembly with PTS/DTS extraction, and 188 or 192 byte packet
// framing.
package mpegts

import "fmt"

// Stream types and descriptor tags used to locate teletext.
const (
	StreamTypePrivateData = 0x06

	DescriptorTagVBITeletext = 0x46
	DescriptorTagTeletext    = 0x56
)

// Packet is a parsed transport stream packet.
type Packet struct {
	Header  PacketHeader
	Payload []byte
}

// PacketHeader contains the parsed header fields of a transport stream packet.
type PacketHeader struct {
	PID                       uint16
	ContinuityCounter         uint8
	HasAdaptationField        bool
	HasPayload                bool
	PayloadUnitStartIndicator bool
	TransportErrorIndicator   bool
	DiscontinuityIndicator    bool
}

// DemuxerData is one logical unit produced by the demuxer. Exactly one of
// PAT, PMT or PES is non-nil.
type DemuxerData struct {
	FirstPacket *Packet
	PAT         *PATData
	PMT         *PMTData
	PES         *PESData
}

// PATData contains the parsed Program Association Table.
type PATData struct {
	TransportStreamID uint16
	Programs          []*PATProgram
}

// PATProgram maps a program number to its PMT PID.
type PATProgram struct {
	ProgramMapID  uint16
	ProgramNumber uint16
}

// PMTData contains the parsed Program Map Table.
type PMTData struct {
	ProgramNumber     uint16
	PCRPID            uint16
	Descriptors       []*Descriptor
	ElementaryStreams []*PMTElementaryStream
}

// PMTElementaryStream describes a single elementary stream in a PMT.
type PMTElementaryStream struct {
	ElementaryPID uint16
	StreamType    uint8
	Descriptors   []*Descriptor
}

// Teletext returns the entries of every teletext descriptor on the stream.
func (es *PMTElementaryStream) Teletext() []TeletextEntry {
	var entries []TeletextEntry
	for _, d := range es.Descriptors {
		entries = append(entries, d.Teletext...)
	}
	return entries
}

// IsTeletext reports whether the stream is private data carrying a
// teletext descriptor.
func (es *PMTElementaryStream) IsTeletext() bool {
	if es.StreamType != StreamTypePrivateData {
		return false
	}
	for _, d := range es.Descriptors {
		if d.Tag == DescriptorTagTeletext || d.Tag == DescriptorTagVBITeletext {
			return true
		}
	}
	return false
}

// Descriptor is a PSI descriptor. Teletext is filled in for the teletext
// and VBI teletext tags; other descriptors keep only their raw bytes.
type Descriptor struct {
	Tag      uint8
	Data     []byte
	Teletext []TeletextEntry
}

// TeletextType is the teletext_type field of a teletext descriptor entry
// (EN 300 468, table 94).
type TeletextType uint8

const (
	TeletextInitialPage     TeletextType = 0x01
	TeletextSubtitle        TeletextType = 0x02
	TeletextAdditionalInfo  TeletextType = 0x03
	TeletextSchedule        TeletextType = 0x04
	TeletextHearingImpaired TeletextType = 0x05
)

// IsSubtitle reports whether the entry announces a subtitle page.
func (t TeletextType) IsSubtitle() bool {
	return t == TeletextSubtitle || t == TeletextHearingImpaired
}

func (t TeletextType) String() string {
	switch t {
	case TeletextInitialPage:
		return "initial"
	case TeletextSubtitle:
		return "subtitle"
	case TeletextAdditionalInfo:
		return "additional-info"
	case TeletextSchedule:
		return "schedule"
	case TeletextHearingImpaired:
		return "subtitle-hoh"
	default:
		return fmt.Sprintf("type-0x%02x", uint8(t))
	}
}

// TeletextEntry is one page announced by a teletext descriptor.
type TeletextEntry struct {
	Language string // ISO 639-2 code
	Type     TeletextType
	Magazine uint8 // 0 means magazine 8
	Page     uint8 // BCD page number within the magazine
}

// PageNumber returns the decimal page number, for example 888.
func (e TeletextEntry) PageNumber() int {
	m := int(e.Magazine)
	if m == 0 {
		m = 8
	}
	return m*100 + int(e.Page>>4)*10 + int(e.Page&0x0F)
}

// PESData contains a reassembled Packetized Elementary Stream.
type PESData struct {
	Data   []byte
	Header *PESHeader
}

// PESHeader contains the parsed PES packet header.
type PESHeader struct {
	OptionalHeader *PESOptionalHeader
	StreamID       uint8
	PacketLength   uint16
}

// PESOptionalHeader carries optional PES fields including timestamps.
type PESOptionalHeader struct {
	DataAlignmentIndicator bool
	PTS                    *ClockReference
	DTS                    *ClockReference
}

// ClockReference holds a 33-bit timestamp on the 90 kHz system clock.
type ClockReference struct {
	Base int64
}

// Milliseconds converts the timestamp to milliseconds.
func (c *ClockReference) Milliseconds() int64 {
	return c.Base / 90
}

// PacketObserver is called for every packet read from the stream before
// reassembly. p is nil when a packet could not be parsed or sync was lost.
type PacketObserver func(p *Packet)
