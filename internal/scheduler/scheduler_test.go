package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/photon/internal/cache"
	"github.com/kiranshivaraju/photon/internal/config"
	"github.com/kiranshivaraju/photon/internal/jobs"
	"github.com/kiranshivaraju/photon/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	mu   sync.Mutex
	runs []jobs.SweepOptions
	err  error
}

func (f *fakeSweeper) Run(_ context.Context, opts jobs.SweepOptions) (*jobs.SweepReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &jobs.SweepReport{Checked: 1, Outcomes: []jobs.SweepOutcome{{Outcome: jobs.OutcomeTimeout}}}, nil
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	keys []string
	ttls []time.Duration
	err  error
}

func (l *fakeLocker) AcquireLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	l.ttls = append(l.ttls, ttl)
	if l.err != nil {
		return false, l.err
	}
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func sweeperConfig() config.SweeperConfig {
	return config.SweeperConfig{Schedule: "@every 1m", BatchSize: 7, LockTTL: 30 * time.Second}
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	cfg := sweeperConfig()
	cfg.Schedule = "every minute please"

	_, err := scheduler.New(&fakeSweeper{}, nil, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every minute please")
}

func TestTick_AcquiresLockAndSweeps(t *testing.T) {
	sw := &fakeSweeper{}
	lock := &fakeLocker{}
	s, err := scheduler.New(sw, lock, sweeperConfig())
	require.NoError(t, err)

	assert.True(t, s.Tick(context.Background()))
	require.Equal(t, 1, sw.count())
	assert.Equal(t, 7, sw.runs[0].BatchSize)
	assert.Nil(t, sw.runs[0].JobID)
	assert.Equal(t, []string{cache.SweepLockKey()}, lock.keys)
	assert.Equal(t, 30*time.Second, lock.ttls[0])
}

func TestTick_SkipsWhenLockHeld(t *testing.T) {
	sw := &fakeSweeper{}
	lock := &fakeLocker{held: map[string]bool{cache.SweepLockKey(): true}}
	s, err := scheduler.New(sw, lock, sweeperConfig())
	require.NoError(t, err)

	assert.False(t, s.Tick(context.Background()))
	assert.Zero(t, sw.count())
}

func TestTick_SweepsWhenLockBackendFails(t *testing.T) {
	sw := &fakeSweeper{}
	lock := &fakeLocker{err: errors.New("redis down")}
	s, err := scheduler.New(sw, lock, sweeperConfig())
	require.NoError(t, err)

	assert.True(t, s.Tick(context.Background()))
	assert.Equal(t, 1, sw.count())
}

func TestTick_WithoutLocker(t *testing.T) {
	sw := &fakeSweeper{err: errors.New("db down")}
	s, err := scheduler.New(sw, nil, sweeperConfig())
	require.NoError(t, err)

	assert.True(t, s.Tick(context.Background()))
	assert.True(t, s.Tick(context.Background()))
	assert.Equal(t, 2, sw.count())
}

func TestStartStop(t *testing.T) {
	s, err := scheduler.New(&fakeSweeper{}, nil, sweeperConfig())
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
