package demux

import "github.com/zsiec/telx/internal/teletext"

// StatsRecorder is the interface accepted by Demuxer for recording stream
// telemetry. The metrics collector implements it.
type StatsRecorder interface {
	teletext.StatsRecorder
	RecordTSPacket(corrupt bool)
	RecordPageDiscovered(pid uint16, page int)
}

// Every teletext packet is seen by the scanning decoder of its PID and by
// every page decoder, so the counters are split between them to count
// each event once: the scanner reports packets and address errors, page
// decoders report what only a receiving decoder sees.

type scanStats struct{ s StatsRecorder }

func (r scanStats) RecordPacket(row int) { r.s.RecordPacket(row) }

func (r scanStats) RecordCorruption(kind teletext.Corruption) {
	if kind == teletext.CorruptionHam84 {
		r.s.RecordCorruption(kind)
	}
}

func (scanStats) RecordCharset(string) {}
func (scanStats) RecordCue(int)        {}

type pageStats struct{ s StatsRecorder }

func (pageStats) RecordPacket(int) {}

func (r pageStats) RecordCorruption(kind teletext.Corruption) {
	if kind != teletext.CorruptionHam84 {
		r.s.RecordCorruption(kind)
	}
}

func (r pageStats) RecordCharset(language string) { r.s.RecordCharset(language) }
func (r pageStats) RecordCue(page int)            { r.s.RecordCue(page) }
