package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultSweepSpec      = "@every 5m"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	sweepTimeout          = time.Minute
)

// Sweeper drops state nobody has used for a while.
type Sweeper interface {
	EvictIdle(ctx context.Context, now time.Time) int
}

type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	sessions Sweeper
	spec     string
	log      *slog.Logger
}

func New(ctx context.Context, sessions Sweeper, spec string, log *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSweepSpec
	}

	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:      ctx,
		cron:     c,
		sessions: sessions,
		spec:     spec,
		log:      log,
	}
}

func (s *Scheduler) Spec() string {
	return s.spec
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweepSessions); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	evicted := s.sessions.EvictIdle(ctx, time.Now())

	s.log.DebugContext(ctx, "Idle sessions are swept",
		"evicted", evicted,
		"spec", s.spec)
}
