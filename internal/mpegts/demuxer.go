package mpegts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// Demuxer reads transport stream packets from a reader and produces
// DemuxerData holding parsed PAT, PMT and PES units.
type Demuxer struct {
	ctx      context.Context
	reader   io.Reader
	readBuf  []byte
	prefix   int
	pool     *packetPool
	pids     *pidTable
	pending  []*DemuxerData
	eof      bool
	filter   func(pid uint16) bool
	observer PacketObserver
	pktSize  int
}

// NewDemuxer creates a demuxer reading from r. The packet size defaults
// to 188 bytes.
func NewDemuxer(ctx context.Context, r io.Reader, opts ...func(*Demuxer)) *Demuxer {
	pids := newPIDTable()
	d := &Demuxer{
		ctx:     ctx,
		reader:  r,
		pktSize: packetSize,
		pids:    pids,
		pool:    newPacketPool(pids),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pktSize == m2tsPacketSize {
		d.prefix = m2tsPacketSize - packetSize
	} else {
		d.pktSize = packetSize
	}
	d.readBuf = make([]byte, d.pktSize)
	return d
}

// DemuxerOptPacketSize sets the packet size: 188 for plain TS or 192 for
// M2TS. Other values fall back to 188.
func DemuxerOptPacketSize(size int) func(*Demuxer) {
	return func(d *Demuxer) {
		d.pktSize = size
	}
}

// DemuxerOptPIDFilter restricts PES reassembly to PIDs for which keep
// returns true. PAT and PMT PIDs are always processed.
func DemuxerOptPIDFilter(keep func(pid uint16) bool) func(*Demuxer) {
	return func(d *Demuxer) {
		d.filter = keep
	}
}

// DemuxerOptPacketObserver registers a callback for every packet read.
func DemuxerOptPacketObserver(o PacketObserver) func(*Demuxer) {
	return func(d *Demuxer) {
		d.observer = o
	}
}

// ValidPacketSize reports whether size is a packet size the demuxer
// understands.
func ValidPacketSize(size int) bool {
	return size == packetSize || size == m2tsPacketSize
}

// NextData returns the next parsed unit from the stream, or io.EOF once
// the stream and every buffered unit have been consumed.
func (d *Demuxer) NextData() (*DemuxerData, error) {
	for {
		if len(d.pending) > 0 {
			data := d.pending[0]
			d.pending = d.pending[1:]
			return data, nil
		}
		if d.eof {
			return nil, io.EOF
		}
		if err := d.ctx.Err(); err != nil {
			return nil, err
		}

		buf, err := d.readPacket()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				d.eof = true
				d.drainPool()
				continue
			}
			return nil, fmt.Errorf("mpegts: read: %w", err)
		}

		pkt, err := parsePacket(buf)
		d.observe(pkt)
		if err != nil {
			continue
		}
		if d.filter != nil && !d.pids.isPSI(pkt.Header.PID) && !d.filter(pkt.Header.PID) {
			continue
		}

		if flushed := d.pool.add(pkt); flushed != nil {
			// Corrupt sections and PES packets are skipped.
			results, _ := d.processPackets(flushed)
			d.pending = append(d.pending, results...)
		}
	}
}

// readPacket reads the next packet, scanning forward byte by byte when
// the sync byte is not where it should be. The returned slice excludes
// any M2TS header and is only valid until the next call.
func (d *Demuxer) readPacket() ([]byte, error) {
	if _, err := io.ReadFull(d.reader, d.readBuf); err != nil {
		return nil, err
	}
	for d.readBuf[d.prefix] != syncByte {
		d.observe(nil)
		i := bytes.IndexByte(d.readBuf[d.prefix+1:], syncByte)
		if i < 0 {
			if _, err := io.ReadFull(d.reader, d.readBuf); err != nil {
				return nil, err
			}
			continue
		}
		n := copy(d.readBuf, d.readBuf[i+1:])
		if _, err := io.ReadFull(d.reader, d.readBuf[n:]); err != nil {
			return nil, err
		}
	}
	return d.readBuf[d.prefix:], nil
}

func (d *Demuxer) observe(p *Packet) {
	if d.observer != nil {
		d.observer(p)
	}
}

func (d *Demuxer) drainPool() {
	for _, packets := range d.pool.dump() {
		results, err := d.processPackets(packets)
		if err != nil {
			continue
		}
		d.pending = append(d.pending, results...)
	}
}

func (d *Demuxer) processPackets(packets []*Packet) ([]*DemuxerData, error) {
	first := packets[0]
	payload := joinPayloads(packets)
	if len(payload) == 0 {
		return nil, nil
	}

	if d.pids.isPSI(first.Header.PID) {
		results, err := parsePSI(payload, first)
		for _, r := range results {
			if r.PAT != nil {
				d.pids.learn(r.PAT)
			}
		}
		return results, err
	}

	if !isPESPayload(payload) {
		return nil, nil
	}
	pes, err := parsePES(payload)
	if err != nil {
		return nil, err
	}
	return []*DemuxerData{{FirstPacket: first, PES: pes}}, nil
}
