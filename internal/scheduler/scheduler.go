// Package scheduler fires daily jobs at fixed wall-clock times in the civic
// timezone.
//
// Every firing recomputes the next occurrence from the tz database, so a job
// set for 23:30 stays at 23:30 local time across daylight-saving changes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"golang.org/x/sync/errgroup"

	"github.com/book-expert/narration-pipeline/internal/civicday"
)

// ErrNoJobs indicates a scheduler started without jobs.
var ErrNoJobs = errors.New("scheduler has no jobs")

// Job is a named task run once a day at At.
type Job struct {
	Name string
	At   civicday.ClockTime
	Run  func(ctx context.Context)
}

// Runner serializes job executions.
type Runner interface {
	Run(ctx context.Context, fn func(context.Context)) error
}

// Scheduler runs jobs at their civic wall-clock times.
type Scheduler struct {
	clock   *civicday.Clock
	runner  Runner
	log     *logger.Logger
	jobs    []Job
	startup *Job
	after   func(time.Duration) <-chan time.Time
}

// New creates a scheduler. All executions go through runner so that no two
// passes overlap.
func New(clock *civicday.Clock, runner Runner, log *logger.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		clock:  clock,
		runner: runner,
		log:    log,
		jobs:   jobs,
		after:  time.After,
	}
}

// RunOnStart registers a job executed once as soon as Run starts.
func (s *Scheduler) RunOnStart(name string, run func(ctx context.Context)) {
	s.startup = &Job{Name: name, Run: run}
}

// SetTimer replaces the timer source. Tests use it to drive time.
func (s *Scheduler) SetTimer(after func(time.Duration) <-chan time.Time) {
	s.after = after
}

// Next returns the next firing time of every job, keyed by name.
func (s *Scheduler) Next() map[string]time.Time {
	now := s.clock.Now()
	next := make(map[string]time.Time, len(s.jobs))

	for _, job := range s.jobs {
		next[job.Name] = s.clock.NextOccurrence(now, job.At)
	}

	return next
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.jobs) == 0 && s.startup == nil {
		return ErrNoJobs
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if s.startup != nil {
		startup := *s.startup

		group.Go(func() error {
			s.fire(groupCtx, startup)

			return nil
		})
	}

	for _, job := range s.jobs {
		group.Go(func() error {
			s.loop(groupCtx, job)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("scheduler stopped: %w", err)
	}

	return nil
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	for {
		now := s.clock.Now()
		next := s.clock.NextOccurrence(now, job.At)
		delay := next.Sub(now)

		s.log.Info("Job %s scheduled for %s (in %s)", job.Name, next.Format(time.RFC3339), delay)

		select {
		case <-ctx.Done():
			s.log.Info("Job %s stopped", job.Name)

			return
		case <-s.after(delay):
		}

		s.fire(ctx, job)
	}
}

func (s *Scheduler) fire(ctx context.Context, job Job) {
	s.log.Info("Job %s starting", job.Name)

	started := time.Now()

	err := s.runner.Run(ctx, job.Run)
	if err != nil {
		s.log.Error("Job %s did not run: %v", job.Name, err)

		return
	}

	s.log.Info("Job %s finished in %s", job.Name, time.Since(started).Round(time.Millisecond))
}
