package tsutil

import (
	"bytes"

	"github.com/zsiec/telx/internal/mpegts"
)

// Default PIDs used by Muxer.
const (
	DefaultPMTPID      = 0x1000
	DefaultPCRPID      = 0x100
	DefaultTeletextPID = 0x240
)

// Muxer assembles a transport stream with a single program holding one
// teletext stream.
type Muxer struct {
	PMTPID      uint16
	PCRPID      uint16
	TeletextPID uint16
	Entries     []mpegts.TeletextEntry

	buf           bytes.Buffer
	patCC, pmtCC  byte
	teletextCC    byte
	tablesWritten bool
}

// NewMuxer returns a Muxer on the default PIDs announcing entries in its
// teletext descriptor.
func NewMuxer(entries ...mpegts.TeletextEntry) *Muxer {
	return &Muxer{
		PMTPID:      DefaultPMTPID,
		PCRPID:      DefaultPCRPID,
		TeletextPID: DefaultTeletextPID,
		Entries:     entries,
	}
}

// WriteTables writes a PAT and a PMT.
func (m *Muxer) WriteTables() {
	m.buf.Write(Section(0x0000, m.patCC, PATSection(1, m.PMTPID)))
	m.buf.Write(Section(m.PMTPID, m.pmtCC, PMTSection(1, m.PCRPID, m.TeletextPID, m.Entries...)))
	m.patCC++
	m.pmtCC++
	m.tablesWritten = true
}

// WritePES writes one teletext PES packet holding units, preceded by the
// tables if none have been written yet.
func (m *Muxer) WritePES(pts int64, units ...[]byte) {
	if !m.tablesWritten {
		m.WriteTables()
	}
	m.buf.Write(Packetize(TeletextPES(pts, units...), m.TeletextPID, &m.teletextCC))
}

// Bytes returns the stream written so far.
func (m *Muxer) Bytes() []byte {
	return m.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (m *Muxer) Len() int {
	return m.buf.Len()
}
