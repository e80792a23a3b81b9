// Package worker runs the ledger's periodic sweeps.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ledger/internal/log"
)

// Job is one periodic sweep. Run receives the tick time; a returned error is
// logged and the job keeps its schedule.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context, now time.Time) error
}

// Runner drives a set of jobs, each on its own ticker, under one errgroup.
// Every job runs once immediately on start. Logs go to the logger carried
// by the context, see log.NewContext.
type Runner struct {
	jobs []Job
	now  func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

func NewRunner(jobs ...Job) *Runner {
	return &Runner{
		jobs: jobs,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *Runner) validate() error {
	if len(r.jobs) == 0 {
		return errors.New("worker has no jobs")
	}
	for _, j := range r.jobs {
		if j.Interval <= 0 {
			return fmt.Errorf("job %s: interval must be positive", j.Name)
		}
	}
	return nil
}

// Run blocks until ctx is cancelled, then waits for in-flight sweeps.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, j := range r.jobs {
		j := j
		g.Go(func() error {
			r.loop(ctx, j)
			return nil
		})
	}
	return g.Wait()
}

// Start runs the jobs in the background. Returns an error if already running
// or if a job is misconfigured.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("worker is already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.running = true
	r.cancel = cancel
	r.doneCh = make(chan struct{})
	r.err = nil
	r.mu.Unlock()

	go func() {
		err := r.Run(ctx)
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		close(r.doneCh)
	}()

	log.FromContext(ctx).InfoContext(ctx, "Worker started", "jobs", len(r.jobs))
	return nil
}

// Stop cancels the jobs and waits for them, or for ctx to expire.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel, done := r.cancel, r.doneCh
	r.mu.Unlock()

	cancel()

	logger := log.FromContext(ctx)
	select {
	case <-done:
		logger.InfoContext(ctx, "Worker stopped gracefully")
	case <-ctx.Done():
		logger.WarnContext(ctx, "Worker stop timed out")
		return ctx.Err()
	}

	r.mu.Lock()
	r.running = false
	err := r.err
	r.mu.Unlock()
	return err
}

func (r *Runner) loop(ctx context.Context, j Job) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	r.tick(ctx, j)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx, j)
		}
	}
}

// tick runs one sweep. Its log lines carry the job name and a fresh run id.
func (r *Runner) tick(ctx context.Context, j Job) {
	start := time.Now()
	logger := log.Component(ctx, log.ComponentWorker).
		WithFields(log.NewFields().WithJob(j.Name, uuid.NewString()))

	if err := j.Run(ctx, r.now()); err != nil && ctx.Err() == nil {
		logger.ErrorContext(ctx, "Job failed",
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldError, err)
		return
	}
	logger.DebugContext(ctx, "Job finished",
		log.FieldDuration, time.Since(start).Milliseconds())
}
