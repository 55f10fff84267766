// Package metrics exposes decoder and demuxer counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zsiec/telx/internal/demux"
	"github.com/zsiec/telx/internal/teletext"
)

const namespace = "telx"

// Metrics holds the Prometheus collectors for every decode session. It
// implements demux.StatsRecorder and is safe for concurrent use.
type Metrics struct {
	reg *prometheus.Registry

	tsPackets       *prometheus.CounterVec // by corrupt
	teletextPackets *prometheus.CounterVec // by row kind
	corruption      *prometheus.CounterVec // by kind
	charsetSwitches *prometheus.CounterVec // by language
	subtitles       *prometheus.CounterVec // by page
	pagesDiscovered *prometheus.CounterVec // by pid
	activeStreams   prometheus.Gauge
}

var _ demux.StatsRecorder = (*Metrics)(nil)

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		tsPackets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ts_packets_total",
			Help:      "Transport stream packets read, by transport_error_indicator.",
		}, []string{"corrupt"}),
		teletextPackets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teletext_packets_total",
			Help:      "Teletext packets with a valid address, by row kind.",
		}, []string{"kind"}),
		corruption: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corruption_total",
			Help:      "Error-protection failures, by code.",
		}, []string{"kind"}),
		charsetSwitches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charset_switches_total",
			Help:      "National option subset changes, by language.",
		}, []string{"language"}),
		subtitles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subtitles_total",
			Help:      "Subtitles emitted, by page.",
		}, []string{"page"}),
		pagesDiscovered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_discovered_total",
			Help:      "Subtitle pages added to a decode session, by PID.",
		}, []string{"pid"}),
		activeStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Streams currently being decoded.",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// StreamStarted and StreamEnded track the number of live sessions.
func (m *Metrics) StreamStarted() { m.activeStreams.Inc() }
func (m *Metrics) StreamEnded()   { m.activeStreams.Dec() }

func (m *Metrics) RecordTSPacket(corrupt bool) {
	m.tsPackets.WithLabelValues(strconv.FormatBool(corrupt)).Inc()
}

func (m *Metrics) RecordPacket(row int) {
	m.teletextPackets.WithLabelValues(RowKind(row)).Inc()
}

func (m *Metrics) RecordCorruption(kind teletext.Corruption) {
	m.corruption.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) RecordCharset(language string) {
	m.charsetSwitches.WithLabelValues(language).Inc()
}

func (m *Metrics) RecordCue(page int) {
	m.subtitles.WithLabelValues(strconv.Itoa(page)).Inc()
}

func (m *Metrics) RecordPageDiscovered(pid uint16, _ int) {
	m.pagesDiscovered.WithLabelValues(strconv.Itoa(int(pid))).Inc()
}

// RowKind names the role of a packet row for labelling.
func RowKind(row int) string {
	switch {
	case row == 0:
		return "header"
	case row <= 25:
		return "display"
	case row == 26:
		return "enhancement"
	case row == 27:
		return "link"
	case row <= 29:
		return "page_function"
	case row == 30:
		return "service"
	default:
		return "other"
	}
}
