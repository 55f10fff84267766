// Package session tracks the decode sessions running in serve mode, one
// per ingest stream, with per-session subtitle counters.
package session

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/telx/internal/media"
)

// Session is one stream being decoded.
type Session struct {
	Key       string
	StartedAt time.Time
	done      chan struct{}

	subtitles atomic.Int64
	lastPage  atomic.Int64
	lastText  atomic.Value
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	Key       string `json:"key"`
	StartedAt int64  `json:"startedAt"`
	UptimeMs  int64  `json:"uptimeMs"`
	Subtitles int64  `json:"subtitles"`
	LastPage  int    `json:"lastPage,omitempty"`
	LastText  string `json:"lastText,omitempty"`
}

// RecordSubtitle counts a subtitle decoded for this session.
func (s *Session) RecordSubtitle(sub *media.Subtitle) {
	s.subtitles.Add(1)
	s.lastPage.Store(int64(sub.Page))
	s.lastText.Store(sub.Text)
}

// Done is closed when the session is removed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns the session counters.
func (s *Session) Snapshot() Snapshot {
	text, _ := s.lastText.Load().(string)
	return Snapshot{
		Key:       s.Key,
		StartedAt: s.StartedAt.UnixMilli(),
		UptimeMs:  time.Since(s.StartedAt).Milliseconds(),
		Subtitles: s.subtitles.Load(),
		LastPage:  int(s.lastPage.Load()),
		LastText:  text,
	}
}

// Manager tracks active sessions by stream key.
type Manager struct {
	log      *slog.Logger
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. If log is nil, slog.Default() is used.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:      log.With("component", "session-manager"),
		sessions: make(map[string]*Session),
	}
}

// Create starts a session. It returns false if a session with this key is
// already active.
func (m *Manager) Create(key string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[key]; ok {
		m.log.Warn("session already exists, rejecting duplicate", "key", key)
		return nil, false
	}

	s := &Session{
		Key:       key,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	m.sessions[key] = s
	m.log.Info("session created", "key", key)
	return s, true
}

// Remove ends a session.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	if ok {
		close(s.done)
		m.log.Info("session removed", "key", key, "subtitles", s.subtitles.Load())
	}
}

// Get returns the session for key.
func (m *Manager) Get(key string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	return s, ok
}

// List returns all active sessions ordered by key.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	slices.SortFunc(sessions, func(a, b *Session) int { return cmp.Compare(a.Key, b.Key) })
	return sessions
}
