package mpegts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

const (
	testPMTPID      = 0x1000
	testVideoPID    = 0x100
	testTeletextPID = 0x240
)

// teletextStream builds PAT, PMT and the given teletext PES packets.
func teletextStream(pes ...[]byte) *bytes.Buffer {
	var stream bytes.Buffer
	stream.Write(makePacket(pidPAT, 0, true, withPointer(buildPAT(1, []program{{1, testPMTPID}}))))

	ttx := teletextDescriptor(DescriptorTagTeletext,
		TeletextEntry{Language: "deu", Type: TeletextSubtitle, Magazine: 1, Page: 0x50})
	pmt := buildPMT(1, testVideoPID, nil, []elementaryStream{
		{0x1B, testVideoPID, nil},
		{StreamTypePrivateData, testTeletextPID, ttx},
	})
	stream.Write(makePacket(testPMTPID, 0, true, withPointer(pmt)))

	cc := uint8(0)
	for _, p := range pes {
		for _, ts := range packetizePES(testTeletextPID, cc, p) {
			stream.Write(ts)
			cc++
		}
	}
	return &stream
}

func drain(t *testing.T, dmx *Demuxer) []*DemuxerData {
	t.Helper()
	var out []*DemuxerData
	for {
		data, err := dmx.NextData()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, data)
	}
}

func TestDemuxer_TeletextStream(t *testing.T) {
	t.Parallel()
	unit := bytes.Repeat([]byte{0x10, 0x03, 0x2C}, 10)
	stream := teletextStream(
		buildPESPacket(0xBD, 90000, 0, true, false, unit),
		buildPESPacket(0xBD, 93600, 0, true, false, unit),
	)

	results := drain(t, NewDemuxer(context.Background(), stream))

	var pmt *PMTData
	var pts []int64
	for _, r := range results {
		switch {
		case r.PAT != nil:
			if len(r.PAT.Programs) != 1 || r.PAT.Programs[0].ProgramMapID != testPMTPID {
				t.Errorf("PAT = %+v", r.PAT.Programs)
			}
		case r.PMT != nil:
			pmt = r.PMT
		case r.PES != nil:
			if r.FirstPacket.Header.PID != testTeletextPID {
				t.Errorf("PES on PID 0x%X", r.FirstPacket.Header.PID)
			}
			if !bytes.Equal(r.PES.Data, unit) {
				t.Errorf("PES data length %d, want %d", len(r.PES.Data), len(unit))
			}
			pts = append(pts, r.PES.Header.OptionalHeader.PTS.Base)
		}
	}

	if pmt == nil {
		t.Fatal("did not receive PMT")
	}
	var found bool
	for _, es := range pmt.ElementaryStreams {
		if es.IsTeletext() {
			found = true
			if got := es.Teletext()[0].PageNumber(); got != 150 {
				t.Errorf("teletext page = %d, want 150", got)
			}
		}
	}
	if !found {
		t.Error("PMT has no teletext stream")
	}
	if len(pts) != 2 || pts[0] != 90000 || pts[1] != 93600 {
		t.Errorf("PTS = %v, want [90000 93600]", pts)
	}
}

func TestDemuxer_BoundedPESDeliveredBeforeNextStart(t *testing.T) {
	t.Parallel()
	pes := buildPESPacket(0xBD, 90000, 0, true, false, make([]byte, 400))
	stream := teletextStream(pes)

	// No further unit start follows the PES.
	dmx := NewDemuxer(context.Background(), stream)
	var gotPES bool
	for !gotPES {
		data, err := dmx.NextData()
		if err != nil {
			t.Fatalf("NextData: %v", err)
		}
		gotPES = data.PES != nil
	}
	if dmx.eof {
		t.Error("PES was only delivered when the stream ended")
	}
}

func TestDemuxer_M2TS(t *testing.T) {
	t.Parallel()
	src := teletextStream(buildPESPacket(0xBD, 90000, 0, true, false, []byte{0x10, 0xFF, 0x2C}))

	var m2ts bytes.Buffer
	for b := src.Bytes(); len(b) >= packetSize; b = b[packetSize:] {
		m2ts.Write([]byte{0x12, 0x34, 0x56, 0x78}) // arrival timestamp
		m2ts.Write(b[:packetSize])
	}

	results := drain(t, NewDemuxer(context.Background(), &m2ts, DemuxerOptPacketSize(192)))
	var pes int
	for _, r := range results {
		if r.PES != nil {
			pes++
		}
	}
	if pes != 1 {
		t.Errorf("PES packets = %d, want 1", pes)
	}
}

func TestDemuxer_PIDFilter(t *testing.T) {
	t.Parallel()
	stream := teletextStream(buildPESPacket(0xBD, 90000, 0, true, false, []byte{0x10}))
	video := buildPESPacket(0xC0, 90000, 0, true, false, []byte{0x01, 0x02})
	for _, p := range packetizePES(testVideoPID, 0, video) {
		stream.Write(p)
	}

	dmx := NewDemuxer(context.Background(), stream,
		DemuxerOptPIDFilter(func(pid uint16) bool { return pid == testTeletextPID }))

	var pat, pmt, pes int
	for _, r := range drain(t, dmx) {
		switch {
		case r.PAT != nil:
			pat++
		case r.PMT != nil:
			pmt++
		case r.PES != nil:
			pes++
			if r.FirstPacket.Header.PID != testTeletextPID {
				t.Errorf("filtered PID 0x%X delivered", r.FirstPacket.Header.PID)
			}
		}
	}
	if pat != 1 || pmt != 1 || pes != 1 {
		t.Errorf("PAT/PMT/PES = %d/%d/%d, want 1/1/1", pat, pmt, pes)
	}
}

func TestDemuxer_Resync(t *testing.T) {
	t.Parallel()
	src := teletextStream(buildPESPacket(0xBD, 90000, 0, true, false, []byte{0x10}))

	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0x12, 0x48, 0x99, 0x00}) // junk before the first packet
	stream.Write(src.Bytes())

	var lost int
	observer := func(p *Packet) {
		if p == nil {
			lost++
		}
	}
	results := drain(t, NewDemuxer(context.Background(), &stream, DemuxerOptPacketObserver(observer)))

	var pat bool
	for _, r := range results {
		pat = pat || r.PAT != nil
	}
	if !pat {
		t.Error("no PAT after resync")
	}
	if lost == 0 {
		t.Error("observer was not told about the lost sync")
	}
}

func TestDemuxer_ObserverSeesEveryPacket(t *testing.T) {
	t.Parallel()
	stream := teletextStream(buildPESPacket(0xBD, 90000, 0, true, false, make([]byte, 300)))
	want := stream.Len() / packetSize

	var seen int
	dmx := NewDemuxer(context.Background(), stream, DemuxerOptPacketObserver(func(p *Packet) {
		if p != nil {
			seen++
		}
	}))
	drain(t, dmx)
	if seen != want {
		t.Errorf("observer saw %d packets, want %d", seen, want)
	}
}

func TestDemuxer_CorruptPacketSkipped(t *testing.T) {
	t.Parallel()
	var stream bytes.Buffer
	pat := withPointer(buildPAT(1, []program{{1, testPMTPID}}))
	stream.Write(makePacket(pidPAT, 0, true, pat))

	corrupt := makePacket(pidPAT, 1, true, pat)
	corrupt[0] = 0x00 // bad sync
	stream.Write(corrupt)
	stream.Write(makePacket(pidPAT, 1, true, pat))

	var gotPAT int
	for _, r := range drain(t, NewDemuxer(context.Background(), &stream)) {
		if r.PAT != nil {
			gotPAT++
		}
	}
	if gotPAT == 0 {
		t.Error("should have parsed at least one PAT despite corrupt packet")
	}
}

func TestDemuxer_EOF(t *testing.T) {
	t.Parallel()
	dmx := NewDemuxer(context.Background(), bytes.NewReader(nil))
	if _, err := dmx.NextData(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if _, err := dmx.NextData(); !errors.Is(err, io.EOF) {
		t.Errorf("second call: expected io.EOF, got %v", err)
	}
}

func TestDemuxer_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dmx := NewDemuxer(ctx, bytes.NewReader(make([]byte, 1000)))
	if _, err := dmx.NextData(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestDemuxer_ReadError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	dmx := NewDemuxer(context.Background(), failingReader{boom})
	if _, err := dmx.NextData(); !errors.Is(err, boom) {
		t.Errorf("expected wrapped read error, got %v", err)
	}
}

func TestValidPacketSize(t *testing.T) {
	t.Parallel()
	for size, want := range map[int]bool{188: true, 192: true, 204: false, 0: false} {
		if got := ValidPacketSize(size); got != want {
			t.Errorf("ValidPacketSize(%d) = %v, want %v", size, got, want)
		}
	}
}
