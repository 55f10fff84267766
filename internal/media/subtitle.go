// Package media defines the subtitle values that flow through the telx
// pipeline, from the teletext demuxer to the output sinks.
package media

import "time"

// SubtitleBufferSize is the capacity of the channel between the demuxer
// and its consumer. Subtitle pages arrive a few times a second at most, so
// this absorbs a sink stalled for several seconds.
const SubtitleBufferSize = 64

// Subtitle is one rendered teletext page with its display interval in
// milliseconds from the start of the stream.
type Subtitle struct {
	Stream   string `json:"stream,omitempty"` // ingest stream key in serve mode
	PID      uint16 `json:"pid"`
	Page     int    `json:"page"`
	Language string `json:"language,omitempty"` // BCP 47
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Text     string `json:"text"`
}

// Duration returns how long the subtitle is shown.
func (s *Subtitle) Duration() time.Duration {
	return time.Duration(s.End-s.Start) * time.Millisecond
}
