package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// scriptedExecutor fails the first failures calls, then succeeds
type scriptedExecutor struct {
	failures int32
	calls    atomic.Int32
	affected int
}

func (e *scriptedExecutor) Execute(ctx context.Context, job *Job) (int, error) {
	n := e.calls.Add(1)
	if n <= e.failures {
		return 0, errors.New("database is locked")
	}
	return e.affected, nil
}

// collector gathers finished attempts
type collector struct {
	mu   sync.Mutex
	jobs []Job
	ch   chan Job
}

func newCollector() *collector {
	return &collector{ch: make(chan Job, 16)}
}

func (c *collector) record(j *Job) {
	c.mu.Lock()
	c.jobs = append(c.jobs, *j)
	c.mu.Unlock()
	c.ch <- *j
}

func (c *collector) next(t *testing.T) Job {
	t.Helper()
	select {
	case j := <-c.ch:
		return j
	case <-time.After(5 * time.Second):
		t.Fatal("no job finished")
		return Job{}
	}
}

func startScheduler(t *testing.T, exec JobExecutor, cfg SchedulerConfig) (*Scheduler, *collector) {
	t.Helper()
	s := NewScheduler(cfg, exec, zap.NewNop())
	c := newCollector()
	s.OnJobDone(c.record)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s, c
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob(JobKindExportCleanup, 1)
	assert.Equal(t, JobStatusPending, job.Status)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)

	job.Fail("boom")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.True(t, job.ShouldRetry())

	job.ScheduleRetry(time.Minute)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.NextRetryAt)

	job.Start()
	job.Fail("boom again")
	assert.False(t, job.ShouldRetry())

	job.Start()
	job.Complete(3)
	assert.Equal(t, JobStatusSuccess, job.Status)
	assert.Equal(t, 3, job.Affected)
}

func TestScheduler_RunsJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &scriptedExecutor{affected: 2}
	s, c := startScheduler(t, exec, SchedulerConfig{})

	job, err := s.Submit(JobKindStaleGenerations)
	require.NoError(t, err)

	done := c.next(t)
	assert.Equal(t, job.ID, done.ID)
	assert.Equal(t, JobStatusSuccess, done.Status)
	assert.Equal(t, 2, done.Affected)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_RetriesFailedJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &scriptedExecutor{failures: 1, affected: 1}
	s, c := startScheduler(t, exec, SchedulerConfig{RetryAttempts: 2, RetryDelay: time.Millisecond})

	_, err := s.Submit(JobKindExportCleanup)
	require.NoError(t, err)

	first := c.next(t)
	assert.Equal(t, JobStatusFailed, first.Status)
	assert.Equal(t, "database is locked", first.Error)

	second := c.next(t)
	assert.Equal(t, JobStatusSuccess, second.Status)
	assert.Equal(t, 1, second.RetryCount)
	assert.Equal(t, int32(2), exec.calls.Load())
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_SubmitErrors(t *testing.T) {
	s := NewScheduler(SchedulerConfig{QueueSize: 1}, &scriptedExecutor{}, zap.NewNop())

	_, err := s.Submit(JobKindExportCleanup)
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)

	// running without workers consuming the queue
	s.isRunning = true
	require.NoError(t, s.SubmitJob(NewJob(JobKindExportCleanup, 0)))
	assert.ErrorIs(t, s.SubmitJob(NewJob(JobKindExportCleanup, 0)), ErrJobQueueFull)
}

func TestIntervalTrigger(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, err := NewIntervalTrigger(IntervalTriggerConfig{}, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	exec := &scriptedExecutor{}
	s, c := startScheduler(t, exec, SchedulerConfig{})

	trigger, err := NewIntervalTrigger(IntervalTriggerConfig{
		Interval:   time.Hour,
		Kinds:      []JobKind{JobKindStaleGenerations},
		RunOnStart: true,
	}, s, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, trigger.Start(context.Background()))

	done := c.next(t)
	assert.Equal(t, JobKindStaleGenerations, done.Kind)

	require.NoError(t, trigger.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

type fakeResetter struct{ n int }

func (f fakeResetter) ResetStaleGenerations(ctx context.Context) (int, error) { return f.n, nil }

type fakeCleaner struct{ age time.Duration }

func (f *fakeCleaner) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	f.age = age
	return 4, nil
}

func TestMaintenanceExecutor(t *testing.T) {
	ctx := context.Background()
	cleaner := &fakeCleaner{}
	exec := NewMaintenanceExecutor(fakeResetter{n: 2}, cleaner, 48*time.Hour)
	assert.Equal(t, []JobKind{JobKindStaleGenerations, JobKindExportCleanup}, exec.Kinds())

	n, err := exec.Execute(ctx, NewJob(JobKindStaleGenerations, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = exec.Execute(ctx, NewJob(JobKindExportCleanup, 0))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 48*time.Hour, cleaner.age)

	_, err = exec.Execute(ctx, NewJob("REINDEX", 0))
	assert.ErrorIs(t, err, ErrUnknownJobKind)

	noCleanup := NewMaintenanceExecutor(fakeResetter{}, cleaner, 0)
	assert.Equal(t, []JobKind{JobKindStaleGenerations}, noCleanup.Kinds())
	n, err = noCleanup.Execute(ctx, NewJob(JobKindExportCleanup, 0))
	require.NoError(t, err)
	assert.Zero(t, n)
}
