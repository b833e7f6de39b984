// Package scheduler fires the reconciliation sweep on a cron schedule.
// When several replicas run, a Redis lock lets one of them sweep per tick;
// the sweep itself stays safe without it.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/kiranshivaraju/photon/internal/cache"
	"github.com/kiranshivaraju/photon/internal/config"
	"github.com/kiranshivaraju/photon/internal/jobs"
)

// cronParser accepts standard 5-field expressions and descriptors like "@every 1m".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// SweepRunner runs one reconciliation sweep.
type SweepRunner interface {
	Run(ctx context.Context, opts jobs.SweepOptions) (*jobs.SweepReport, error)
}

// Locker grants a short-lived exclusive lock.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Scheduler triggers the sweeper on its configured schedule.
type Scheduler struct {
	cron    *cronlib.Cron
	sweeper SweepRunner
	locker  Locker
	cfg     config.SweeperConfig
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a Scheduler. locker may be nil, in which case every tick sweeps.
func New(sweeper SweepRunner, locker Locker, cfg config.SweeperConfig) (*Scheduler, error) {
	schedule, err := cronParser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parsing sweep schedule %q: %w", cfg.Schedule, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		sweeper: sweeper,
		locker:  locker,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.cron = cronlib.New(
		cronlib.WithParser(cronParser),
		cronlib.WithLogger(slogLogger{}),
		cronlib.WithChain(cronlib.SkipIfStillRunning(slogLogger{})),
	)
	s.cron.Schedule(schedule, cronlib.FuncJob(func() { s.Tick(s.ctx) }))
	return s, nil
}

// Start begins firing sweeps in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("sweep scheduler started", "schedule", s.cfg.Schedule)
}

// Stop prevents further sweeps, cancels the running one and waits for it
// to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		slog.Info("sweep scheduler stopped")
	case <-ctx.Done():
		slog.Warn("sweep scheduler stop timed out")
	}
}

// Tick runs one scheduled sweep if this replica wins the sweep lock.
// It reports whether a sweep ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if s.locker != nil {
		ttl := s.cfg.LockTTL
		if ttl <= 0 {
			ttl = 55 * time.Second
		}
		acquired, err := s.locker.AcquireLock(ctx, cache.SweepLockKey(), ttl)
		if err != nil {
			// Redis trouble must not stop reconciliation.
			slog.Warn("sweep lock unavailable, sweeping anyway", "error", err)
		} else if !acquired {
			slog.Debug("sweep skipped, another replica holds the lock")
			return false
		}
	}

	report, err := s.sweeper.Run(ctx, jobs.SweepOptions{BatchSize: s.cfg.BatchSize})
	if err != nil {
		slog.Error("scheduled sweep failed", "error", err)
		return true
	}
	if report.Checked > 0 {
		slog.Info("scheduled sweep done", "checked", report.Checked, "outcomes", summarize(report))
	}
	return true
}

func summarize(report *jobs.SweepReport) map[string]int {
	counts := make(map[string]int)
	for _, o := range report.Outcomes {
		counts[o.Outcome]++
	}
	return counts
}

// slogLogger routes cron's internal logging to slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
