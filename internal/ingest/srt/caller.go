package srt

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/telx/internal/ingest"
)

const dialTimeout = 10 * time.Second

// PullRequest describes a remote SRT listener to pull a stream from.
type PullRequest struct {
	Address   string `json:"address" yaml:"address"`
	StreamKey string `json:"streamKey" yaml:"stream_key"`
	StreamID  string `json:"streamId,omitempty" yaml:"stream_id"`
}

type activePull struct {
	req    PullRequest
	cancel context.CancelFunc
}

// Caller dials remote SRT listeners and streams their data into the
// ingest registry.
type Caller struct {
	log      *slog.Logger
	latency  time.Duration
	registry *ingest.Registry

	mu    sync.Mutex
	pulls map[string]*activePull
}

// NewCaller creates a Caller registering pulled streams with registry. A
// zero latency means DefaultLatency. If log is nil, slog.Default() is used.
func NewCaller(latency time.Duration, registry *ingest.Registry, log *slog.Logger) *Caller {
	if log == nil {
		log = slog.Default()
	}
	if latency <= 0 {
		latency = DefaultLatency
	}
	return &Caller{
		log:      log.With("component", "srt-caller"),
		latency:  latency,
		registry: registry,
		pulls:    make(map[string]*activePull),
	}
}

// Pull dials the remote listener, waiting up to ten seconds for the
// connection. On success the stream is received in the background until
// the connection ends, Stop is called or ctx is cancelled.
func (c *Caller) Pull(ctx context.Context, req PullRequest) error {
	if req.Address == "" {
		return fmt.Errorf("srt: pull address is required")
	}
	if req.StreamKey == "" {
		return fmt.Errorf("srt: pull stream key is required")
	}

	c.mu.Lock()
	_, exists := c.pulls[req.StreamKey]
	c.mu.Unlock()
	if exists {
		return fmt.Errorf("srt: pull already active for stream key %q", req.StreamKey)
	}

	c.log.Info("dialing", "address", req.Address, "stream_key", req.StreamKey)

	cfg := srtgo.DefaultConfig()
	cfg.Latency = c.latency
	cfg.StreamID = req.StreamID
	if cfg.StreamID == "" {
		cfg.StreamID = "live/" + req.StreamKey
	}

	type dialResult struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := srtgo.Dial(req.Address, cfg)
		ch <- dialResult{conn, err}
	}()

	// Close a connection that completes after we stopped waiting.
	abandon := func() {
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
	}

	timer := time.NewTimer(dialTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return fmt.Errorf("srt: dial %s: %w", req.Address, res.err)
		}
		return c.startStreaming(ctx, req, res.conn)
	case <-timer.C:
		abandon()
		return fmt.Errorf("srt: dial %s timed out after %s", req.Address, dialTimeout)
	case <-ctx.Done():
		abandon()
		return ctx.Err()
	}
}

func (c *Caller) startStreaming(ctx context.Context, req PullRequest, conn *srtgo.Conn) error {
	stream, writer, err := c.registry.Register(req.StreamKey, ingest.FormatMPEGTS)
	if err != nil {
		conn.Close()
		return err
	}
	stream.SetRemoteAddr(req.Address)

	pullCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.pulls[req.StreamKey] = &activePull{req: req, cancel: cancel}
	c.mu.Unlock()

	c.log.Info("connected", "address", req.Address, "stream_key", req.StreamKey)

	go func() {
		defer func() {
			cancel()
			conn.Close()
			stats := stream.Stats()
			c.registry.Unregister(req.StreamKey)
			c.mu.Lock()
			delete(c.pulls, req.StreamKey)
			c.mu.Unlock()
			c.log.Info("pull ended", "stream_key", req.StreamKey,
				"bytes", stats.BytesReceived, "reads", stats.ReadCount,
				"uptime_ms", stats.UptimeMs)
		}()

		// A blocked read is released by closing the connection.
		go func() {
			<-pullCtx.Done()
			conn.Close()
		}()

		receive(pullCtx, c.log, conn, stream, writer)
	}()

	return nil
}

// Stop ends an active pull.
func (c *Caller) Stop(streamKey string) error {
	c.mu.Lock()
	ap, ok := c.pulls[streamKey]
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("srt: no active pull for stream key %q", streamKey)
	}
	ap.cancel()
	return nil
}

// ActivePulls returns the active pulls ordered by stream key.
func (c *Caller) ActivePulls() []PullRequest {
	c.mu.Lock()
	out := make([]PullRequest, 0, len(c.pulls))
	for _, ap := range c.pulls {
		out = append(out, ap.req)
	}
	c.mu.Unlock()

	slices.SortFunc(out, func(a, b PullRequest) int { return strings.Compare(a.StreamKey, b.StreamKey) })
	return out
}
