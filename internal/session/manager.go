package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultIdleTTL     = 30 * time.Minute
	DefaultCacheTTL    = 6 * time.Hour
	DefaultFlowTimeout = 3 * time.Minute
)

type Config struct {
	CacheSize int
	CacheTTL  time.Duration
	IdleTTL   time.Duration
	// FlowTimeout bounds one shared extraction and summarization run,
	// independent of the callers waiting on it.
	FlowTimeout time.Duration
}

type dependencies struct {
	transport   Transport
	settings    SettingsSource
	summarizer  Summarizer
	flowTimeout time.Duration
	log         *slog.Logger
	now         func() time.Time
}

// Manager keeps one Session per user.
type Manager struct {
	cfg  Config
	deps dependencies

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewManager(
	cfg Config,
	transport Transport,
	settings SettingsSource,
	summarizer Summarizer,
	log *slog.Logger,
) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.FlowTimeout <= 0 {
		cfg.FlowTimeout = DefaultFlowTimeout
	}

	return &Manager{
		cfg: cfg,
		deps: dependencies{
			transport:   transport,
			settings:    settings,
			summarizer:  summarizer,
			flowTimeout: cfg.FlowTimeout,
			log:         log,
			now:         time.Now,
		},
		sessions: make(map[int64]*Session),
	}
}

func (m *Manager) Session(userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}

	s := newSession(userID, m.deps, NewCache(m.cfg.CacheSize, m.cfg.CacheTTL))
	m.sessions[userID] = s

	return s
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// EvictIdle drops sessions unused for longer than the idle TTL. Sessions
// with a summarize call in flight are kept.
func (m *Manager) EvictIdle(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for userID, s := range m.sessions {
		if s.inFlight.Load() > 0 || s.idleSince(now) <= m.cfg.IdleTTL {
			continue
		}

		delete(m.sessions, userID)
		evicted++
	}

	if evicted > 0 {
		m.deps.log.InfoContext(ctx, "Evicted idle sessions",
			"evicted", evicted,
			"remaining", len(m.sessions))
	}

	return evicted
}
