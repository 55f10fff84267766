package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/telx/internal/config"
	"github.com/zsiec/telx/internal/ingest"
	srtingest "github.com/zsiec/telx/internal/ingest/srt"
	"github.com/zsiec/telx/internal/media"
	"github.com/zsiec/telx/internal/metrics"
	"github.com/zsiec/telx/internal/output"
	"github.com/zsiec/telx/internal/pipeline"
	"github.com/zsiec/telx/internal/session"
)

func runServe(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f := newDecodeFlags("serve", stderr)
	listen := f.fs.String("srt-listen", "", "accept SRT publishers on this address, e.g. :6000")
	pulls := f.fs.StringArray("srt-pull", nil, "pull a remote SRT listener, as stream_key@host:port (repeatable)")
	latency := f.fs.Duration("srt-latency", 0, "SRT receive latency")
	metricsAddr := f.fs.String("metrics-addr", "", "serve /metrics and /streams on this address")
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	cfg, err := f.config()
	if err != nil {
		return err
	}
	if f.fs.Changed("srt-listen") {
		cfg.SRT.Listen = *listen
	}
	if f.fs.Changed("srt-latency") {
		cfg.SRT.Latency = *latency
	}
	if f.fs.Changed("metrics-addr") {
		cfg.Metrics.Addr = *metricsAddr
	}
	for _, p := range *pulls {
		req, err := parsePull(p)
		if err != nil {
			return err
		}
		cfg.SRT.Pull = append(cfg.SRT.Pull, req)
	}
	if cfg.SRT.Listen == "" && len(cfg.SRT.Pull) == 0 {
		return errors.New("serve: nothing to do, set --srt-listen or --srt-pull")
	}

	log, logCloser, err := setupLogging(cfg, stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	out, err := openOutput(cfg.Output, stdout)
	if err != nil {
		return err
	}
	defer out.Close()

	s := newServer(cfg, output.NewJSONLines(out), log)
	return s.run(ctx)
}

// parsePull parses "stream_key@host:port".
func parsePull(s string) (srtingest.PullRequest, error) {
	key, addr, ok := strings.Cut(s, "@")
	if !ok || key == "" || addr == "" {
		return srtingest.PullRequest{}, fmt.Errorf("srt-pull %q: want stream_key@host:port", s)
	}
	return srtingest.PullRequest{Address: addr, StreamKey: key}, nil
}

type server struct {
	cfg      config.Config
	log      *slog.Logger
	out      *output.JSONLines
	mgr      *session.Manager
	metrics  *metrics.Metrics
	registry *ingest.Registry
	caller   *srtingest.Caller

	mu        sync.Mutex
	pipelines map[string]*pipeline.Pipeline
}

func newServer(cfg config.Config, out *output.JSONLines, log *slog.Logger) *server {
	return &server{
		cfg:       cfg,
		log:       log,
		out:       out,
		mgr:       session.NewManager(log),
		metrics:   metrics.New(),
		pipelines: make(map[string]*pipeline.Pipeline),
	}
}

func (s *server) run(ctx context.Context) error {
	s.log.Info("telx starting",
		"version", version,
		"srt", s.cfg.SRT.Listen,
		"pulls", len(s.cfg.SRT.Pull),
		"metrics", s.cfg.Metrics.Addr,
	)

	g, ctx := errgroup.WithContext(ctx)

	// The registry callback captures the errgroup context so every
	// pipeline stops when a component fails.
	s.registry = ingest.NewRegistry(func(st *ingest.Stream) {
		s.handleStream(ctx, st)
	})
	s.caller = srtingest.NewCaller(s.cfg.SRT.Latency, s.registry, s.log)

	if s.cfg.SRT.Listen != "" {
		srv := srtingest.NewServer(s.cfg.SRT.Listen, s.cfg.SRT.Latency, s.registry, s.log)
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	for _, req := range s.cfg.SRT.Pull {
		g.Go(func() error {
			if err := s.caller.Pull(ctx, req); err != nil && ctx.Err() == nil {
				s.log.Error("SRT pull failed", "stream_key", req.StreamKey, "address", req.Address, "error", err)
			}
			return nil
		})
	}

	if s.cfg.Metrics.Addr != "" {
		httpSrv := &http.Server{
			Addr:              s.cfg.Metrics.Addr,
			Handler:           s.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			s.log.Info("HTTP server listening", "addr", s.cfg.Metrics.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	err := g.Wait()
	if flushErr := s.out.Flush(); err == nil {
		err = flushErr
	}
	return err
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /streams", s.handleListStreams)
	return mux
}

type streamStatus struct {
	Session  session.Snapshot   `json:"session"`
	Pipeline *pipeline.Snapshot `json:"pipeline,omitempty"`
	Ingest   *ingest.Stats      `json:"ingest,omitempty"`
}

func (s *server) handleListStreams(w http.ResponseWriter, _ *http.Request) {
	sessions := s.mgr.List()
	out := make([]streamStatus, len(sessions))
	for i, sess := range sessions {
		out[i].Session = sess.Snapshot()
		s.mu.Lock()
		p := s.pipelines[sess.Key]
		s.mu.Unlock()
		if p != nil {
			snap := p.Snapshot()
			out[i].Pipeline = &snap
		}
		if st, ok := s.registry.Get(sess.Key); ok {
			stats := st.Stats()
			out[i].Ingest = &stats
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.log.Debug("write /streams response", "error", err)
	}
}

func (s *server) handleStream(ctx context.Context, st *ingest.Stream) {
	key := st.Key
	s.log.Info("new stream from ingest", "key", key, "format", st.Format)

	sess, created := s.mgr.Create(key)
	if !created {
		s.log.Warn("rejecting duplicate stream connection", "key", key)
		return
	}
	defer s.teardownStream(key)

	opts := demuxOptions(s.cfg)
	opts.PacketSize = st.Format.PacketSize()

	sink := pipeline.SinkFunc(func(sub *media.Subtitle) error {
		sub.Stream = key
		if err := s.out.WriteSubtitle(sub); err != nil {
			return err
		}
		return s.out.Flush()
	})

	p := pipeline.New(key, st.Input(), opts, sink, s.log)
	p.SetProtocol("SRT")
	p.SetStats(s.metrics)
	p.OnSubtitle(sess.RecordSubtitle)

	s.mu.Lock()
	s.pipelines[key] = p
	s.mu.Unlock()
	s.metrics.StreamStarted()

	if err := p.Run(ctx); err != nil {
		s.log.Error("pipeline error", "stream", key, "error", err)
	}
	s.log.Info("stream ended", "key", key)
}

// teardownStream releases every resource held for a stream. Unregistering
// ends the ingest pipe so a receiver blocked on a stopped pipeline exits.
func (s *server) teardownStream(key string) {
	s.registry.Unregister(key)
	s.mu.Lock()
	delete(s.pipelines, key)
	s.mu.Unlock()
	s.mgr.Remove(key)
	s.metrics.StreamEnded()
}
