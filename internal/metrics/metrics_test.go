package metrics

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zsiec/telx/internal/demux"
	"github.com/zsiec/telx/internal/teletext"
	"github.com/zsiec/telx/test/tools/tsutil"
)

func TestRowKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		row  int
		want string
	}{
		{0, "header"},
		{1, "display"},
		{23, "display"},
		{25, "display"},
		{26, "enhancement"},
		{27, "link"},
		{28, "page_function"},
		{29, "page_function"},
		{30, "service"},
		{31, "other"},
	}
	for _, tt := range tests {
		if got := RowKind(tt.row); got != tt.want {
			t.Errorf("RowKind(%d) = %q, want %q", tt.row, got, tt.want)
		}
	}
}

func TestRecorders(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordTSPacket(false)
	m.RecordTSPacket(false)
	m.RecordTSPacket(true)
	m.RecordPacket(0)
	m.RecordPacket(23)
	m.RecordPacket(22)
	m.RecordCorruption(teletext.CorruptionParity)
	m.RecordCharset("German")
	m.RecordCue(888)
	m.RecordCue(888)
	m.RecordPageDiscovered(0x240, 888)
	m.StreamStarted()
	m.StreamStarted()
	m.StreamEnded()

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"ts ok", testutil.ToFloat64(m.tsPackets.WithLabelValues("false")), 2},
		{"ts corrupt", testutil.ToFloat64(m.tsPackets.WithLabelValues("true")), 1},
		{"header", testutil.ToFloat64(m.teletextPackets.WithLabelValues("header")), 1},
		{"display", testutil.ToFloat64(m.teletextPackets.WithLabelValues("display")), 2},
		{"parity", testutil.ToFloat64(m.corruption.WithLabelValues("parity")), 1},
		{"charset", testutil.ToFloat64(m.charsetSwitches.WithLabelValues("German")), 1},
		{"subtitles", testutil.ToFloat64(m.subtitles.WithLabelValues("888")), 2},
		{"pages", testutil.ToFloat64(m.pagesDiscovered.WithLabelValues("576")), 1},
		{"active", testutil.ToFloat64(m.activeStreams), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()
	m := New()
	m.RecordCue(150)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `telx_subtitles_total{page="150"} 1`) {
		t.Errorf("metrics output missing subtitle counter:\n%s", body)
	}
}

func TestDemuxerFeedsMetrics(t *testing.T) {
	t.Parallel()
	page := teletext.Page(0x888)
	mux := tsutil.NewMuxer()
	mux.WritePES(90000, tsutil.SubtitleUnits(tsutil.SubtitlePage(page, "HI"))...)
	mux.WritePES(180000)

	m := New()
	d := demux.NewDemuxer(bytes.NewReader(mux.Bytes()), demux.Options{}, slog.New(slog.DiscardHandler))
	d.SetStats(m)
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	for range d.Subtitles() {
	}

	if got := testutil.ToFloat64(m.subtitles.WithLabelValues("888")); got != 1 {
		t.Errorf("subtitles{page=888} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.pagesDiscovered.WithLabelValues("576")); got != 1 {
		t.Errorf("pages_discovered{pid=576} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.tsPackets.WithLabelValues("false")); got != float64(mux.Len()/tsutil.TSPacketSize) {
		t.Errorf("ts_packets = %v, want %d", got, mux.Len()/tsutil.TSPacketSize)
	}
}
