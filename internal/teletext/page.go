package teletext

import "fmt"

// PacketSize is the length of a teletext packet inside an EBU data unit:
// clock run-in, framing code, two address bytes and 40 data bytes.
const PacketSize = 44

const (
	rows = 25
	cols = 40
)

// DataUnit is the EBU data_unit_id of the data unit carrying a packet.
type DataUnit uint8

// Data unit ids (EN 300 472, table 4).
const (
	DataUnitNonSubtitle DataUnit = 0x02
	DataUnitSubtitle    DataUnit = 0x03
	DataUnitStuffing    DataUnit = 0xFF
)

func (u DataUnit) String() string {
	switch u {
	case DataUnitNonSubtitle:
		return "non-subtitle"
	case DataUnitSubtitle:
		return "subtitle"
	case DataUnitStuffing:
		return "stuffing"
	default:
		return fmt.Sprintf("0x%02X", uint8(u))
	}
}

// TransmissionMode is the page transmission mode signalled by the C11
// control bit of every page header.
type TransmissionMode uint8

const (
	Parallel TransmissionMode = 0
	Serial   TransmissionMode = 1
)

func (m TransmissionMode) String() string {
	if m == Serial {
		return "serial"
	}
	return "parallel"
}

// Packet is one teletext packet, already bit-reversed into transmission
// order. Address and data bytes are still Hamming or parity protected.
type Packet struct {
	ClockIn     byte
	FramingCode byte
	Address     [2]byte
	Data        [40]byte
}

// ParsePacket copies a packet out of buf, which must hold at least
// PacketSize bytes.
func ParsePacket(buf []byte) (*Packet, error) {
	if len(buf) < PacketSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(buf))
	}
	p := &Packet{
		ClockIn:     buf[0],
		FramingCode: buf[1],
		Address:     [2]byte{buf[2], buf[3]},
	}
	copy(p.Data[:], buf[4:PacketSize])
	return p, nil
}

// pageBuffer is the working copy of the page being received.
type pageBuffer struct {
	show    int64
	hide    int64
	text    [rows][cols]uint16
	tainted bool
}

func (b *pageBuffer) reset(show int64) {
	b.show = show
	b.hide = 0
	b.text = [rows][cols]uint16{}
	b.tainted = false
}
