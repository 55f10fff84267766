// Package teletext decodes EBU Teletext (ETS 300 706) subtitle pages from
// raw teletext packets into timed text cues.
//
// A Decoder follows one target page. Packets are fed in stream order with
// a millisecond timestamp; whenever a page header for the target page
// arrives while a previous page is still buffered, that page is rendered
// and stored in the caller's Cues map. Flush renders the last buffered page
// at the end of the stream.
package teletext

import (
	"log/slog"
)

// Cue is one rendered subtitle page.
type Cue struct {
	Page  int
	Start int64
	End   int64
	Text  string
}

// Cues collects rendered cues keyed by decimal page number. A single map
// may hold at most one cue per page.
type Cues map[int]*Cue

// frameMs is one PAL frame. A page is hidden one frame before the header
// that replaces it.
const frameMs = 40

// Decoder holds the receive state for a single target page.
type Decoder struct {
	log    *slog.Logger
	stats  StatsRecorder
	colors bool
	ccMap  *CCMap

	cs        *charset
	mode      TransmissionMode
	modeKnown bool
	receiving bool
	page      pageBuffer
	programme *ProgrammeInfo
}

// NewDecoder creates a Decoder with colour markup enabled and a private
// CCMap. Options adjust the defaults.
func NewDecoder(opts ...func(*Decoder)) *Decoder {
	d := &Decoder{
		log:    slog.Default(),
		colors: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "teletext")
	if d.ccMap == nil {
		d.ccMap = &CCMap{}
	}
	d.cs = newCharset(d.log, d.stats)
	return d
}

// DecoderOptLogger sets the logger. A nil logger keeps slog.Default().
func DecoderOptLogger(log *slog.Logger) func(*Decoder) {
	return func(d *Decoder) {
		if log != nil {
			d.log = log
		}
	}
}

// DecoderOptColors enables or disables <font color> markup. When disabled,
// colour codes are rendered as spaces.
func DecoderOptColors(enabled bool) func(*Decoder) {
	return func(d *Decoder) {
		d.colors = enabled
	}
}

// DecoderOptStats attaches a StatsRecorder.
func DecoderOptStats(s StatsRecorder) func(*Decoder) {
	return func(d *Decoder) {
		d.stats = s
	}
}

// DecoderOptCCMap shares a subtitle page map between decoders.
func DecoderOptCCMap(m *CCMap) func(*Decoder) {
	return func(d *Decoder) {
		d.ccMap = m
	}
}

// CCMap returns the subtitle page map updated by this decoder.
func (d *Decoder) CCMap() *CCMap {
	return d.ccMap
}

// Mode returns the transmission mode of the last page header, and false
// if no header has been seen yet.
func (d *Decoder) Mode() (TransmissionMode, bool) {
	return d.mode, d.modeKnown
}

// ProcessPacket feeds one packet received at ts (milliseconds) into the
// decoder. Pages finished by this packet are added to out. The only error
// returned is a *DuplicatePageError; damaged packet fields are skipped.
func (d *Decoder) ProcessPacket(kind DataUnit, p *Packet, ts int64, target Page, out Cues) error {
	addr := int(d.unham(p.Address[1]))<<4 | int(d.unham(p.Address[0]))
	m := addr & 0x7
	if m == 0 {
		m = 8
	}
	y := (addr >> 3) & 0x1F

	if d.stats != nil {
		d.stats.RecordPacket(y)
	}

	var desig byte
	if y > 25 {
		desig = d.unham(p.Data[0])
	}
	mag := m == target.Magazine()

	switch {
	case y == 0:
		return d.handleHeader(kind, p, m, ts, target, out)
	case mag && y >= 1 && y <= 23 && d.receiving:
		for i, c := range p.Data {
			if d.page.text[y][i] == 0 {
				d.page.text[y][i] = d.telxToUCS2(c)
			}
		}
		d.page.tainted = true
	case mag && y == 26 && d.receiving:
		d.handleEnhancement(p)
	case mag && y == 28 && d.receiving && (desig == 0 || desig == 4):
		if t, ok := d.triplet(p); ok && t&0x0F == 0 {
			d.cs.x28 = designationFrom(t)
			d.cs.remap(d.cs.x28.id)
		}
	case mag && y == 29 && (desig == 0 || desig == 4):
		if t, ok := d.triplet(p); ok && t&0xFF == 0 {
			d.cs.m29 = designationFrom(t)
			if !d.cs.x28.defined {
				d.cs.remap(d.cs.m29.id)
			}
		}
	case m == 8 && y == 30:
		d.handleServiceData(p)
	}
	return nil
}

// Flush renders a page still buffered at the end of the stream, hiding it
// at ts.
func (d *Decoder) Flush(ts int64, target Page, out Cues) error {
	d.receiving = false
	if !d.page.tainted {
		return nil
	}
	d.page.hide = ts
	d.page.tainted = false
	return d.emit(target, out)
}

func (d *Decoder) handleHeader(kind DataUnit, p *Packet, m int, ts int64, target Page, out Cues) error {
	i := d.unham(p.Data[1])<<4 | d.unham(p.Data[0])
	subtitle := d.unham(p.Data[5])&0x08 != 0
	d.ccMap.Mark(i, m, subtitle)

	page := Page(m<<8 | int(i))
	control := d.unham(p.Data[7])
	charsetID := (control & 0x0E) >> 1
	mode := TransmissionMode(control & 0x01)

	switch {
	case !d.modeKnown:
		d.modeKnown = true
		d.log.Debug("transmission mode", "mode", mode)
	case mode != d.mode:
		d.log.Debug("page header contradicts transmission mode", "page", page, "mode", mode, "previous", d.mode)
	}
	d.mode = mode

	if mode == Parallel && kind != DataUnitSubtitle {
		return nil
	}

	if d.receiving {
		other := page.Number() != target.Number()
		if (mode == Serial && other) || (mode == Parallel && other && m == target.Magazine()) {
			d.receiving = false
			return nil
		}
	}

	if page != target {
		return nil
	}

	var err error
	if d.page.tainted {
		d.page.hide = ts - frameMs
		err = d.emit(target, out)
	}

	d.page.reset(ts)
	d.receiving = true
	d.cs.x28 = designation{}
	if d.cs.m29.defined {
		d.cs.remap(d.cs.m29.id)
	} else {
		d.cs.remap(charsetID)
	}
	return err
}

// handleEnhancement applies an X/26 packet: G2 characters and accented
// letters written over the level 1 page.
func (d *Decoder) handleEnhancement(p *Packet) {
	var row, col int
	for i := 1; i < len(p.Data); i += 3 {
		t := Unham2418(uint32(p.Data[i+2])<<16 | uint32(p.Data[i+1])<<8 | uint32(p.Data[i]))
		if t == Ham2418Error {
			d.corrupt(CorruptionHam2418)
			continue
		}

		data := (t & 0x3F800) >> 11
		mode := (t & 0x7C0) >> 6
		addr := t & 0x3F
		rowGroup := addr >= 40 && addr <= 63
		diacritic := mode >= 0x11 && mode <= 0x1F

		switch {
		case mode == 0x04 && rowGroup:
			row = int(addr) - 40
			if row == 0 {
				row = 24
			}
			col = 0
		case diacritic && rowGroup:
			return
		case mode == 0x0F && !rowGroup:
			col = int(addr)
			if data > 31 {
				d.page.text[row][col] = latinG2[data-0x20]
			}
		case diacritic && !rowGroup:
			col = int(addr)
			switch {
			case data >= 'A' && data <= 'Z':
				d.page.text[row][col] = g2Accents[mode-0x11][data-'A']
			case data >= 'a' && data <= 'z':
				d.page.text[row][col] = g2Accents[mode-0x11][data-'a'+26]
			default:
				d.page.text[row][col] = d.telxToUCS2(byte(data))
			}
		}
	}
}

func (d *Decoder) emit(target Page, out Cues) error {
	text, ok := renderPage(&d.page, d.colors)
	if !ok {
		return nil
	}
	dec := target.Decimal()
	if _, exists := out[dec]; exists {
		return &DuplicatePageError{Page: dec}
	}

	cue := &Cue{
		Page:  dec,
		Start: d.page.show,
		End:   max(d.page.hide, d.page.show),
		Text:  text,
	}
	out[dec] = cue
	d.log.Debug("page rendered", "page", dec, "start", cue.Start, "end", cue.End)
	if d.stats != nil {
		d.stats.RecordCue(dec)
	}
	return nil
}

// triplet decodes the first Hamming 24/18 triplet of an X/28 or M/29
// packet.
func (d *Decoder) triplet(p *Packet) (uint32, bool) {
	t := Unham2418(uint32(p.Data[3])<<16 | uint32(p.Data[2])<<8 | uint32(p.Data[1]))
	if t == Ham2418Error {
		d.corrupt(CorruptionHam2418)
		return 0, false
	}
	return t, true
}

func designationFrom(t uint32) designation {
	return designation{id: uint8((t & 0x3F80) >> 7), defined: true}
}

// unham decodes a Hamming 8/4 byte, substituting 0 for uncorrectable input.
func (d *Decoder) unham(b byte) byte {
	n := Unham84(b)
	if n == Ham84Error {
		d.corrupt(CorruptionHam84)
		return 0
	}
	return n
}

// telxToUCS2 checks parity and maps a character byte through the active G0
// set. Bytes failing parity become a space.
func (d *Decoder) telxToUCS2(c byte) uint16 {
	if !Parity(c) {
		d.corrupt(CorruptionParity)
		return 0x20
	}
	return d.cs.char(c)
}

func (d *Decoder) corrupt(kind Corruption) {
	if d.stats != nil {
		d.stats.RecordCorruption(kind)
	}
	d.log.Debug("unrecoverable data error", "kind", kind)
}
