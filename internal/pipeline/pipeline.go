// Package pipeline runs one input through the teletext demuxer and
// forwards every decoded subtitle to a Sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/telx/internal/demux"
	"github.com/zsiec/telx/internal/media"
)

// Sink receives decoded subtitles in stream order.
type Sink interface {
	WriteSubtitle(sub *media.Subtitle) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(sub *media.Subtitle) error

func (f SinkFunc) WriteSubtitle(sub *media.Subtitle) error { return f(sub) }

// Snapshot holds point-in-time counters for a pipeline.
type Snapshot struct {
	Key       string             `json:"key"`
	Protocol  string             `json:"protocol,omitempty"`
	UptimeMs  int64              `json:"uptimeMs"`
	Subtitles int64              `json:"subtitles"`
	LastEndMs int64              `json:"lastEndMs"`
	Streams   []demux.StreamInfo `json:"streams"`
}

// Pipeline bridges one input and its Sink.
type Pipeline struct {
	log        *slog.Logger
	key        string
	demuxer    *demux.Demuxer
	sink       Sink
	onSubtitle func(*media.Subtitle)
	startTime  time.Time
	protocol   string

	forwarded atomic.Int64
	lastEnd   atomic.Int64
}

// New creates a Pipeline decoding input with opts and writing to sink. If
// log is nil, slog.Default() is used.
func New(key string, input io.Reader, opts demux.Options, sink Sink, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("stream", key)
	return &Pipeline{
		log:       log.With("component", "pipeline"),
		key:       key,
		demuxer:   demux.NewDemuxer(input, opts, log),
		sink:      sink,
		startTime: time.Now(),
	}
}

// SetProtocol records the ingest protocol name, such as "SRT" or "file".
func (p *Pipeline) SetProtocol(proto string) {
	p.protocol = proto
}

// SetStats attaches a StatsRecorder to the demuxer. Call before Run.
func (p *Pipeline) SetStats(s demux.StatsRecorder) {
	p.demuxer.SetStats(s)
}

// OnSubtitle registers a callback invoked after each subtitle is written.
func (p *Pipeline) OnSubtitle(fn func(*media.Subtitle)) {
	p.onSubtitle = fn
}

// Demuxer returns the underlying demuxer.
func (p *Pipeline) Demuxer() *demux.Demuxer {
	return p.demuxer
}

// Snapshot returns the pipeline counters and the teletext streams found.
func (p *Pipeline) Snapshot() Snapshot {
	return Snapshot{
		Key:       p.key,
		Protocol:  p.protocol,
		UptimeMs:  time.Since(p.startTime).Milliseconds(),
		Subtitles: p.forwarded.Load(),
		LastEndMs: p.lastEnd.Load(),
		Streams:   p.demuxer.Streams(),
	}
}

// Run decodes the input until EOF and returns once every subtitle has been
// written. Cancelling ctx stops it without error. Demuxer and sink errors
// are returned.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := p.demuxer.Run(gctx)
		p.log.Debug("demuxer exited", "error", err)
		return err
	})

	g.Go(func() error {
		for sub := range p.demuxer.Subtitles() {
			if err := p.sink.WriteSubtitle(sub); err != nil {
				return fmt.Errorf("pipeline: write subtitle: %w", err)
			}
			p.forwarded.Add(1)
			p.lastEnd.Store(sub.End)
			if p.onSubtitle != nil {
				p.onSubtitle(sub)
			}
		}
		return nil
	})

	err := g.Wait()
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	if err == nil {
		p.log.Info("input finished", "subtitles", p.forwarded.Load())
	}
	return err
}
