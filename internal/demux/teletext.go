package demux

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math/bits"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/zsiec/telx/internal/media"
	"github.com/zsiec/telx/internal/mpegts"
	"github.com/zsiec/telx/internal/teletext"
)

// EBU data field identifiers (EN 300 472 §4.3).
const (
	dataIdentifierMin = 0x10
	dataIdentifierMax = 0x1F
)

// The scanning decoder targets a page that never appears on the wire, so
// it only tracks headers and service data.
const scanTarget teletext.Page = 0

// Options configures a Demuxer.
type Options struct {
	// PID selects the teletext stream. Zero decodes every teletext stream
	// announced in the PMT.
	PID uint16
	// Pages lists the decimal pages to decode. When empty, subtitle pages
	// are discovered from the teletext descriptor and from page headers.
	Pages []int
	// Offset is added to every timestamp.
	Offset time.Duration
	// Colors enables <font color> markup in subtitle text.
	Colors bool
	// PacketSize is 188 or 192. Anything else means 188.
	PacketSize int
}

// StreamInfo describes one teletext PID as seen so far.
type StreamInfo struct {
	PID       uint16                  `json:"pid"`
	Entries   []mpegts.TeletextEntry  `json:"entries,omitempty"`
	Pages     []int                   `json:"pages"`             // decoded pages
	Flagged   []int                   `json:"flagged,omitempty"` // pages whose headers carry the subtitle flag
	Programme *teletext.ProgrammeInfo `json:"programme,omitempty"`
}

type pageDecoder struct {
	target teletext.Page
	dec    *teletext.Decoder
}

type teletextStream struct {
	pid       uint16
	described bool
	entries   []mpegts.TeletextEntry
	langs     map[int]string
	ccMap     *teletext.CCMap
	scanner   *teletext.Decoder
	pages     []int
	decoders  map[int]*pageDecoder
	rejected  map[int]bool
	programme *teletext.ProgrammeInfo
}

// Demuxer reads an MPEG-TS byte stream, decodes the teletext subtitle
// pages it carries and delivers them on the channel returned by Subtitles.
type Demuxer struct {
	log    *slog.Logger
	root   *slog.Logger
	reader io.Reader
	opts   Options
	clock  *ptsClock
	subCh  chan *media.Subtitle
	stats  StatsRecorder

	pmtReady chan struct{}
	pmtOnce  sync.Once

	// mu guards streams and the fields of each stream read by accessors.
	// Run is the only writer, so it reads without locking.
	mu      sync.Mutex
	streams map[uint16]*teletextStream
}

// NewDemuxer creates a Demuxer that reads MPEG-TS packets from r. Call Run
// to begin decoding and read from the Subtitles channel. If log is nil,
// slog.Default() is used.
func NewDemuxer(r io.Reader, opts Options, log *slog.Logger) *Demuxer {
	if log == nil {
		log = slog.Default()
	}
	return &Demuxer{
		log:      log.With("component", "demux"),
		root:     log,
		reader:   r,
		opts:     opts,
		clock:    newPTSClock(opts.Offset),
		subCh:    make(chan *media.Subtitle, media.SubtitleBufferSize),
		pmtReady: make(chan struct{}),
		streams:  make(map[uint16]*teletextStream),
	}
}

// Subtitles returns the channel on which rendered subtitle pages are
// delivered. It is closed when Run returns.
func (d *Demuxer) Subtitles() <-chan *media.Subtitle {
	return d.subCh
}

// PMTReady returns a channel that is closed once the first PMT has been
// parsed, or when Run returns without having seen one.
func (d *Demuxer) PMTReady() <-chan struct{} {
	return d.pmtReady
}

// SetStats attaches a StatsRecorder. It must be called before Run.
func (d *Demuxer) SetStats(s StatsRecorder) {
	d.stats = s
}

// TeletextPIDs returns the teletext PIDs found so far in ascending order.
func (d *Demuxer) TeletextPIDs() []uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.streams))
}

// Streams returns a snapshot of every teletext stream found so far,
// ordered by PID.
func (d *Demuxer) Streams() []StreamInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos := make([]StreamInfo, 0, len(d.streams))
	for _, st := range d.streams {
		info := StreamInfo{
			PID:       st.pid,
			Entries:   slices.Clone(st.entries),
			Pages:     slices.Clone(st.pages),
			Programme: st.programme,
		}
		for _, p := range st.ccMap.Pages() {
			info.Flagged = append(info.Flagged, p.Decimal())
		}
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b StreamInfo) int { return cmp.Compare(a.PID, b.PID) })
	return infos
}

// Run reads the stream until EOF or context cancellation. Pages still
// buffered at EOF are flushed. Run closes the Subtitles channel on return.
// A *teletext.DuplicatePageError aborts Run.
func (d *Demuxer) Run(ctx context.Context) error {
	defer close(d.subCh)
	defer d.markPMTReady()

	if d.opts.PID != 0 {
		d.addStream(d.opts.PID)
	}

	dmx := mpegts.NewDemuxer(ctx, d.reader,
		mpegts.DemuxerOptPacketSize(d.opts.PacketSize),
		mpegts.DemuxerOptPIDFilter(d.isTeletextPID),
		mpegts.DemuxerOptPacketObserver(d.observePacket),
	)

	for {
		data, err := dmx.NextData()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return d.flush(ctx)
			}
			return err
		}

		switch {
		case data.PMT != nil:
			d.handlePMT(data.PMT)
		case data.PES != nil:
			st, ok := d.streams[data.FirstPacket.Header.PID]
			if !ok {
				continue
			}
			if err := d.handlePES(ctx, st, data.PES); err != nil {
				return err
			}
		}
	}
}

func (d *Demuxer) markPMTReady() {
	d.pmtOnce.Do(func() { close(d.pmtReady) })
}

func (d *Demuxer) isTeletextPID(pid uint16) bool {
	_, ok := d.streams[pid]
	return ok
}

func (d *Demuxer) observePacket(p *mpegts.Packet) {
	if d.stats != nil {
		d.stats.RecordTSPacket(p == nil || p.Header.TransportErrorIndicator)
	}
}

func (d *Demuxer) handlePMT(pmt *mpegts.PMTData) {
	for _, es := range pmt.ElementaryStreams {
		if d.opts.PID != 0 && es.ElementaryPID != d.opts.PID {
			continue
		}
		if d.opts.PID == 0 && !es.IsTeletext() {
			continue
		}
		st := d.addStream(es.ElementaryPID)
		if !st.described {
			d.describe(st, es.Teletext())
		}
	}
	d.markPMTReady()
}

func (d *Demuxer) addStream(pid uint16) *teletextStream {
	if st, ok := d.streams[pid]; ok {
		return st
	}
	st := &teletextStream{
		pid:      pid,
		langs:    make(map[int]string),
		ccMap:    &teletext.CCMap{},
		decoders: make(map[int]*pageDecoder),
		rejected: make(map[int]bool),
	}
	opts := []func(*teletext.Decoder){
		teletext.DecoderOptLogger(d.root.With("pid", pid)),
		teletext.DecoderOptCCMap(st.ccMap),
	}
	if d.stats != nil {
		opts = append(opts, teletext.DecoderOptStats(scanStats{d.stats}))
	}
	st.scanner = teletext.NewDecoder(opts...)

	d.mu.Lock()
	d.streams[pid] = st
	d.mu.Unlock()
	d.log.Info("found teletext PID", "pid", pid)

	for _, page := range d.opts.Pages {
		d.addPage(st, page, "config")
	}
	return st
}

// describe records the teletext descriptor entries of a stream. Subtitle
// entries give the language of their page and, unless pages are
// configured, start decoding it.
func (d *Demuxer) describe(st *teletextStream, entries []mpegts.TeletextEntry) {
	d.mu.Lock()
	st.described = true
	st.entries = entries
	d.mu.Unlock()

	for _, e := range entries {
		if !e.Type.IsSubtitle() {
			continue
		}
		page := e.PageNumber()
		st.langs[page] = languageTag(e.Language)
		if len(d.opts.Pages) == 0 {
			d.addPage(st, page, "descriptor")
		}
	}
}

func (d *Demuxer) addPage(st *teletextStream, page int, source string) {
	if _, ok := st.decoders[page]; ok || st.rejected[page] {
		return
	}
	target, err := teletext.PageFromDecimal(page)
	if err != nil {
		st.rejected[page] = true
		d.log.Warn("ignoring teletext page", "pid", st.pid, "page", page, "error", err)
		return
	}

	opts := []func(*teletext.Decoder){
		teletext.DecoderOptLogger(d.root.With("pid", st.pid, "page", page)),
		teletext.DecoderOptColors(d.opts.Colors),
		teletext.DecoderOptCCMap(st.ccMap),
	}
	if d.stats != nil {
		opts = append(opts, teletext.DecoderOptStats(pageStats{d.stats}))
	}

	d.mu.Lock()
	st.decoders[page] = &pageDecoder{target: target, dec: teletext.NewDecoder(opts...)}
	i, _ := slices.BinarySearch(st.pages, page)
	st.pages = slices.Insert(st.pages, i, page)
	d.mu.Unlock()

	d.log.Info("decoding teletext page", "pid", st.pid, "page", page, "source", source)
	if d.stats != nil {
		d.stats.RecordPageDiscovered(st.pid, page)
	}
}

// handlePES decodes every teletext data unit of one PES packet. All packets
// share the PES timestamp and one Cues map.
func (d *Demuxer) handlePES(ctx context.Context, st *teletextStream, pes *mpegts.PESData) error {
	data := pes.Data
	if len(data) == 0 {
		return nil
	}
	if data[0] < dataIdentifierMin || data[0] > dataIdentifierMax {
		d.log.Debug("skipping PES without EBU data", "pid", st.pid, "data_identifier", data[0])
		return nil
	}

	ts := d.clock.now()
	if pes.Header != nil && pes.Header.OptionalHeader != nil && pes.Header.OptionalHeader.PTS != nil {
		ts = d.clock.millis(pes.Header.OptionalHeader.PTS.Base)
	}

	cues := teletext.Cues{}
	var unit [teletext.PacketSize]byte
	for i := 1; i+2 <= len(data); {
		id, n := teletext.DataUnit(data[i]), int(data[i+1])
		i += 2
		if i+n > len(data) {
			d.log.Debug("truncated data unit", "pid", st.pid, "unit", id, "length", n)
			break
		}
		if (id == teletext.DataUnitSubtitle || id == teletext.DataUnitNonSubtitle) && n == teletext.PacketSize {
			// Data units are transmitted LSB first.
			for j, b := range data[i : i+n] {
				unit[j] = bits.Reverse8(b)
			}
			p, err := teletext.ParsePacket(unit[:])
			if err != nil {
				return err
			}
			if err := d.processPacket(st, id, p, ts, cues); err != nil {
				return err
			}
		}
		i += n
	}

	if st.programme == nil {
		if info, ok := st.scanner.Programme(); ok {
			d.mu.Lock()
			st.programme = &info
			d.mu.Unlock()
		}
	}
	return d.emit(ctx, st, cues)
}

func (d *Demuxer) processPacket(st *teletextStream, id teletext.DataUnit, p *teletext.Packet, ts int64, cues teletext.Cues) error {
	if len(d.opts.Pages) == 0 {
		if page := teletext.SubtitlePageOf(p); page > 0 {
			d.addPage(st, page, "header")
		}
	}
	if err := st.scanner.ProcessPacket(id, p, ts, scanTarget, cues); err != nil {
		return err
	}
	for _, page := range st.pages {
		pd := st.decoders[page]
		if err := pd.dec.ProcessPacket(id, p, ts, pd.target, cues); err != nil {
			return fmt.Errorf("demux: pid %d: %w", st.pid, err)
		}
	}
	return nil
}

// flush renders every page still buffered at the end of the stream,
// hiding it at the last timestamp seen.
func (d *Demuxer) flush(ctx context.Context) error {
	ts := d.clock.now()
	for _, pid := range slices.Sorted(maps.Keys(d.streams)) {
		st := d.streams[pid]
		cues := teletext.Cues{}
		for _, page := range st.pages {
			pd := st.decoders[page]
			if err := pd.dec.Flush(ts, pd.target, cues); err != nil {
				return fmt.Errorf("demux: pid %d: %w", st.pid, err)
			}
		}
		if err := d.emit(ctx, st, cues); err != nil {
			return err
		}
	}
	return nil
}

func (d *Demuxer) emit(ctx context.Context, st *teletextStream, cues teletext.Cues) error {
	for _, page := range slices.Sorted(maps.Keys(cues)) {
		c := cues[page]
		if c.Text == "" {
			continue
		}
		sub := &media.Subtitle{
			PID:      st.pid,
			Page:     page,
			Language: st.langs[page],
			Start:    c.Start,
			End:      c.End,
			Text:     c.Text,
		}
		select {
		case d.subCh <- sub:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// languageTag converts an ISO 639-2 code from the teletext descriptor to a
// BCP 47 tag, keeping the code as is when it does not parse.
func languageTag(code string) string {
	code = strings.Trim(code, " \x00")
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}
