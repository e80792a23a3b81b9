package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/log"
	"ledger/internal/services"
)

func countingJob(name string, interval time.Duration, calls *int64, err error) Job {
	return Job{
		Name:     name,
		Interval: interval,
		Run: func(ctx context.Context, now time.Time) error {
			atomic.AddInt64(calls, 1)
			return err
		},
	}
}

func TestRunner_StartTwice(t *testing.T) {
	var calls int64
	r := NewRunner(countingJob("noop", time.Hour, &calls, nil))
	ctx := context.Background()

	require.NoError(t, r.Start(ctx))
	defer r.Stop(ctx)

	err := r.Start(ctx)
	assert.Error(t, err, "second Start should fail")
}

func TestRunner_StopNotRunning(t *testing.T) {
	r := NewRunner(countingJob("noop", time.Hour, new(int64), nil))

	assert.NoError(t, r.Stop(context.Background()))
}

func TestRunner_RunsImmediatelyAndOnTicks(t *testing.T) {
	var fast, slow int64
	r := NewRunner(
		countingJob("fast", 10*time.Millisecond, &fast, nil),
		countingJob("slow", time.Hour, &slow, errors.New("sweep failed")),
	)
	ctx := context.Background()

	require.NoError(t, r.Start(ctx))
	require.Eventually(t, func() bool { return atomic.LoadInt64(&fast) >= 3 }, 2*time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, r.Stop(stopCtx))

	assert.Equal(t, int64(1), atomic.LoadInt64(&slow), "slow job runs once at start; its error does not stop the runner")
	assert.NoError(t, r.Stop(stopCtx), "stopping twice is a no-op")
	require.NoError(t, r.Start(ctx), "a stopped runner can start again")
	require.NoError(t, r.Stop(stopCtx))
}

func TestRunner_RejectsBadJobs(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, NewRunner().Run(ctx))
	assert.Error(t, NewRunner().Start(ctx))

	zero := NewRunner(Job{Name: "zero", Run: func(context.Context, time.Time) error { return nil }})
	assert.Error(t, zero.Run(ctx))
	assert.Error(t, zero.Start(ctx))
	assert.NoError(t, zero.Stop(ctx), "a runner that failed to start has nothing to stop")
}

// syncBuffer lets the test read what the job goroutines logged.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(b.buf.String(), s)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func TestRunner_LogsThroughContextLogger(t *testing.T) {
	out := &syncBuffer{}
	logger := log.New(log.Config{Format: log.FormatJSON, Output: out, Component: log.ComponentApp})
	ctx := log.NewContext(context.Background(), logger)

	var calls int64
	r := NewRunner(countingJob("interest", time.Hour, &calls, errors.New("db down")))
	require.NoError(t, r.Start(ctx))
	require.Eventually(t, func() bool { return out.Contains("Job failed") }, time.Second, 5*time.Millisecond)
	require.NoError(t, r.Stop(ctx))
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	var failed map[string]any
	for _, line := range out.Lines() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "Job failed" {
			failed = entry
		}
	}
	require.NotNil(t, failed, "job failure is logged")
	assert.Equal(t, log.ComponentWorker, failed[log.FieldComponent])
	assert.Equal(t, "interest", failed[log.FieldJob])
	assert.NotEmpty(t, failed[log.FieldRunID])
	assert.Equal(t, "db down", failed[log.FieldError])
}

type fakeAccruer struct{ now time.Time }

func (f *fakeAccruer) AccrueAll(_ context.Context, now time.Time) ([]services.AccrualResult, error) {
	f.now = now
	return nil, nil
}

type fakeDispatcher struct{ err error }

func (f fakeDispatcher) DispatchDue(context.Context, time.Time) (services.DispatchStats, error) {
	return services.DispatchStats{}, f.err
}

func TestJobs(t *testing.T) {
	a := &fakeAccruer{}
	job := InterestJob(a, time.Minute)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, JobInterest, job.Name)
	require.NoError(t, job.Run(context.Background(), now))
	assert.Equal(t, now, a.now)

	boom := errors.New("db down")
	reminders := ReminderJob(fakeDispatcher{err: boom}, time.Minute)
	assert.Equal(t, JobReminders, reminders.Name)
	assert.ErrorIs(t, reminders.Run(context.Background(), now), boom)
}
