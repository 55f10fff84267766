// Package ingest manages live transport stream inputs, coupling the bytes
// received by an SRT connection with a reader handed to a decode pipeline.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStreamExists is returned by Register when a stream with the same key
// is already active.
var ErrStreamExists = errors.New("ingest: stream already registered")

// InputFormat identifies the packet framing of an ingested stream.
type InputFormat int

const (
	FormatMPEGTS InputFormat = iota // 188-byte packets
	FormatM2TS                      // 192-byte packets with arrival timestamp
)

// PacketSize returns the transport packet size for the format.
func (f InputFormat) PacketSize() int {
	if f == FormatM2TS {
		return 192
	}
	return 188
}

func (f InputFormat) String() string {
	if f == FormatM2TS {
		return "m2ts"
	}
	return "mpegts"
}

// Stats captures connection-level counters for an ingest stream.
type Stats struct {
	BytesReceived int64  `json:"bytesReceived"`
	ReadCount     int64  `json:"readCount"`
	ConnectedAt   int64  `json:"connectedAt"`
	UptimeMs      int64  `json:"uptimeMs"`
	RemoteAddr    string `json:"remoteAddr"`
}

// Stream is an active ingest connection. Bytes written by the receiver
// come out of Input for the decode pipeline.
type Stream struct {
	Key       string
	StartedAt time.Time
	Format    InputFormat

	input io.Reader
	pw    *io.PipeWriter
	done  chan struct{}

	bytesReceived atomic.Int64
	readCount     atomic.Int64
	remoteAddr    atomic.Value
}

// Input returns the reader side of the stream.
func (s *Stream) Input() io.Reader {
	return s.input
}

// Done is closed when the stream is unregistered.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// RecordRead counts one successful socket read of n bytes.
func (s *Stream) RecordRead(n int) {
	s.bytesReceived.Add(int64(n))
	s.readCount.Add(1)
}

// SetRemoteAddr stores the peer address for diagnostics.
func (s *Stream) SetRemoteAddr(addr string) {
	s.remoteAddr.Store(addr)
}

// Stats returns a snapshot of the connection counters.
func (s *Stream) Stats() Stats {
	addr, _ := s.remoteAddr.Load().(string)
	return Stats{
		BytesReceived: s.bytesReceived.Load(),
		ReadCount:     s.readCount.Load(),
		ConnectedAt:   s.StartedAt.UnixMilli(),
		UptimeMs:      time.Since(s.StartedAt).Milliseconds(),
		RemoteAddr:    addr,
	}
}

// Registry tracks active ingest streams by key and hands each new stream
// to the onStream callback, which runs it through a pipeline.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*Stream

	onStream func(s *Stream)
}

// NewRegistry creates a Registry. onStream, if set, is invoked in its own
// goroutine for every registered stream.
func NewRegistry(onStream func(s *Stream)) *Registry {
	return &Registry{
		streams:  make(map[string]*Stream),
		onStream: onStream,
	}
}

// Register creates a stream and returns it with the writer the receiver
// feeds. A second stream under an active key is rejected.
func (r *Registry) Register(key string, format InputFormat) (*Stream, io.Writer, error) {
	pr, pw := io.Pipe()
	stream := &Stream{
		Key:       key,
		StartedAt: time.Now(),
		Format:    format,
		input:     pr,
		pw:        pw,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if _, exists := r.streams[key]; exists {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %q", ErrStreamExists, key)
	}
	r.streams[key] = stream
	r.mu.Unlock()

	if r.onStream != nil {
		go r.onStream(stream)
	}
	return stream, pw, nil
}

// Unregister removes a stream, ending its input with io.EOF and closing
// Done.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	stream, ok := r.streams[key]
	if ok {
		delete(r.streams, key)
	}
	r.mu.Unlock()

	if ok {
		stream.pw.Close()
		close(stream.done)
	}
}

// Get returns the stream registered under key.
func (r *Registry) Get(key string) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[key]
	return s, ok
}

// Keys returns the keys of all active streams in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.streams))
	for k := range r.streams {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	slices.Sort(keys)
	return keys
}
