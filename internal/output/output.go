// Package output writes decoded subtitles out of a pipeline.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/zsiec/telx/internal/media"
	"github.com/zsiec/telx/internal/pipeline"
)

// JSONLines writes each subtitle as one JSON object per line.
type JSONLines struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLines creates a JSONLines sink writing to w. Output is buffered;
// call Flush when the pipeline finishes.
func NewJSONLines(w io.Writer) *JSONLines {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &JSONLines{w: bw, enc: enc}
}

// WriteSubtitle encodes sub followed by a newline.
func (j *JSONLines) WriteSubtitle(sub *media.Subtitle) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(sub); err != nil {
		return fmt.Errorf("output: encode subtitle: %w", err)
	}
	return nil
}

// Flush writes any buffered lines to the underlying writer.
func (j *JSONLines) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.w.Flush()
}

// LogSink logs each subtitle at Info level.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a LogSink. If log is nil, slog.Default() is used.
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log.With("component", "subtitles")}
}

func (l *LogSink) WriteSubtitle(sub *media.Subtitle) error {
	l.log.Info("subtitle",
		"pid", sub.PID,
		"page", sub.Page,
		"lang", sub.Language,
		"start", sub.Start,
		"end", sub.End,
		"text", sub.Text,
	)
	return nil
}

// Multi fans a subtitle out to several sinks, stopping at the first error.
type Multi []pipeline.Sink

func (m Multi) WriteSubtitle(sub *media.Subtitle) error {
	for _, s := range m {
		if err := s.WriteSubtitle(sub); err != nil {
			return err
		}
	}
	return nil
}
