// Package jobs runs periodic maintenance on a gocron scheduler.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/metrics"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/users"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/logger"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/middleware"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/state"
)

const jobTimeout = 30 * time.Second

// Job is a named periodic task.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler wraps gocron with logging.
type Scheduler struct {
	s   gocron.Scheduler
	log *slog.Logger
}

// New registers jobs on a fresh scheduler. Jobs with a zero interval are skipped.
func New(jobs ...Job) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("jobs: scheduler: %w", err)
	}
	sch := &Scheduler{s: s, log: logger.Component("jobs")}
	for _, j := range jobs {
		if j.Every <= 0 || j.Run == nil {
			continue
		}
		if _, err := s.NewJob(
			gocron.DurationJob(j.Every),
			gocron.NewTask(sch.wrap(j)),
			gocron.WithName(j.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		); err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("jobs: register %s: %w", j.Name, err)
		}
	}
	return sch, nil
}

func (s *Scheduler) wrap(j Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		err := j.Run(ctx)
		attrs := []slog.Attr{
			slog.String("job", j.Name),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		}
		if err != nil {
			logger.LogEvent(ctx, s.log, slog.LevelWarn, "job.failed", append(attrs, slog.String("err", err.Error()))...)
			return
		}
		logger.LogEvent(ctx, s.log, slog.LevelDebug, "job.done", attrs...)
	}
}

// Start begins running jobs.
func (s *Scheduler) Start() { s.s.Start() }

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error { return s.s.Shutdown() }

// RefreshMetrics recomputes the aggregate gauges.
func RefreshMetrics(m *metrics.Metrics, store users.Store, every time.Duration) Job {
	return Job{
		Name:  "refresh_metrics",
		Every: every,
		Run: func(ctx context.Context) error {
			return m.Refresh(ctx, store)
		},
	}
}

// PruneRateLimiter forgets users idle for longer than idle.
func PruneRateLimiter(l *middleware.RateLimiter, idle, every time.Duration) Job {
	return Job{
		Name:  "prune_rate_limiter",
		Every: every,
		Run: func(ctx context.Context) error {
			if n := l.Prune(idle); n > 0 {
				logger.Debug(ctx, "jobs", "rate_limiter.pruned", slog.Int("removed", n))
			}
			return nil
		},
	}
}

// PruneSessions drops expired transient session data.
func PruneSessions(m *state.MemoryManager, every time.Duration) Job {
	return Job{
		Name:  "prune_sessions",
		Every: every,
		Run: func(ctx context.Context) error {
			if n := m.Prune(); n > 0 {
				logger.Debug(ctx, "jobs", "sessions.pruned", slog.Int("removed", n))
			}
			return nil
		},
	}
}
