// Package session owns the per-user summarize flow: cache lookup, settings
// resolution, transcript transport and the summarizer call.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"ytsummarizer/internal/domain"
)

var (
	ErrNotConfigured   = errors.New("provider is not configured")
	ErrEmptyTranscript = errors.New("transcript data was empty")
)

type Transport interface {
	Send(ctx context.Context, videoID string) (domain.Transcript, error)
}

type SettingsSource interface {
	ProviderSettings(ctx context.Context, userID int64) (domain.ProviderSettings, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, settings domain.ProviderSettings, transcript string) (string, error)
}

type Result struct {
	VideoID  string
	Summary  string
	Method   domain.TranscriptMethod
	Provider domain.Provider
	Cached   bool
}

type Session struct {
	userID      int64
	transport   Transport
	settings    SettingsSource
	summarizer  Summarizer
	cache       *Cache
	group       singleflight.Group
	flowTimeout time.Duration
	log         *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	current  string
	lastUsed time.Time
	inFlight atomic.Int32
}

func newSession(userID int64, deps dependencies, cache *Cache) *Session {
	return &Session{
		userID:      userID,
		transport:   deps.transport,
		settings:    deps.settings,
		summarizer:  deps.summarizer,
		cache:       cache,
		flowTimeout: deps.flowTimeout,
		log:         deps.log,
		now:         deps.now,
		lastUsed:    deps.now(),
	}
}

// Navigate makes videoID the session's current video. Moving to a different
// video drops every cached summary.
func (s *Session) Navigate(videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUsed = s.now()

	if s.current == videoID {
		return false
	}

	s.current = videoID
	s.cache.Purge()

	return true
}

func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// Summarize returns the cached summary for videoID or runs the full
// extraction and summarization flow. Concurrent calls for the same video
// share one flow. The flow is not tied to any caller's ctx: a caller that
// gives up stops waiting without failing the others. Failures are not cached.
func (s *Session) Summarize(ctx context.Context, videoID string) (Result, error) {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	s.touch()

	if cached, ok := s.cache.Get(videoID, s.now()); ok {
		cached.Cached = true

		s.log.InfoContext(ctx, "Summary served from cache",
			"userID", s.userID,
			"videoID", videoID)

		return cached, nil
	}

	flowCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(videoID, func() (any, error) {
		runCtx, cancel := context.WithTimeout(flowCtx, s.flowTimeout)
		defer cancel()

		return s.summarize(runCtx, videoID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}

		if res.Shared {
			s.log.DebugContext(ctx, "Summary request coalesced",
				"userID", s.userID,
				"videoID", videoID)
		}

		return res.Val.(Result), nil //nolint:forcetypeassert // summarize returns Result

	case <-ctx.Done():
		s.log.InfoContext(ctx, "Summary request abandoned by caller",
			"error", ctx.Err(),
			"userID", s.userID,
			"videoID", videoID)

		return Result{}, ctx.Err()
	}
}

func (s *Session) summarize(ctx context.Context, videoID string) (Result, error) {
	settings, err := s.settings.ProviderSettings(ctx, s.userID)
	if err != nil {
		return Result{}, fmt.Errorf("load provider settings: %w", err)
	}

	if !settings.Configured() {
		return Result{}, ErrNotConfigured
	}

	transcript, err := s.transport.Send(ctx, videoID)
	if err != nil {
		return Result{}, fmt.Errorf("get transcript: %w", err)
	}

	if strings.TrimSpace(transcript.Text) == "" {
		return Result{}, ErrEmptyTranscript
	}

	summary, err := s.summarizer.Summarize(ctx, settings, transcript.Text)
	if err != nil {
		return Result{}, fmt.Errorf("summarize: %w", err)
	}

	result := Result{
		VideoID:  videoID,
		Summary:  summary,
		Method:   transcript.Method,
		Provider: settings.Provider,
	}

	s.storeIfCurrent(result)

	s.log.InfoContext(ctx, "Summary ready",
		"userID", s.userID,
		"videoID", videoID,
		"method", transcript.Method,
		"provider", settings.Provider)

	return result, nil
}

// storeIfCurrent caches result when its video is the current one or no video
// has been navigated to yet. It holds mu so a concurrent Navigate either
// purges the entry or sees it never stored.
func (s *Session) storeIfCurrent(result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != "" && s.current != result.VideoID {
		return
	}

	s.cache.Set(result.VideoID, result, s.now())
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUsed = s.now()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return now.Sub(s.lastUsed)
}
