// Package scheduler drives every subsystem's idempotent poll tick
// (recording media upload, transcript fetch, notification dispatch,
// feedback-loop scan) off a shared robfig/cron schedule rather than each
// subsystem running its own internal poll loop.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one schedulable unit of work. Every job must be safe to run
// concurrently with itself and safe to skip a run entirely — a slow tick
// never blocks the next one from firing.
type Job struct {
	Name string
	Spec string // standard 5-field cron expression
	Run  func(ctx context.Context) (summary string, err error)
}

// Scheduler wraps a cron.Cron, logging each job's outcome and never
// letting one job's panic take down the process.
type Scheduler struct {
	cron *cron.Cron
	jobs []Job
}

// New builds a Scheduler with no jobs registered yet.
func New() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))}
}

// Register adds a job to the schedule. Call before Start.
func (s *Scheduler) Register(job Job) error {
	_, err := s.cron.AddFunc(job.Spec, func() {
		s.runOnce(job)
	})
	if err != nil {
		return fmt.Errorf("scheduler: registering job %q: %w", job.Name, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *Scheduler) runOnce(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	summary, err := job.Run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		slog.Error("scheduled job failed", "job", job.Name, "elapsed", elapsed, "error", err)
		return
	}
	slog.Info("scheduled job completed", "job", job.Name, "elapsed", elapsed, "summary", summary)
}

// Start begins running registered jobs on their schedules. Non-blocking;
// cron.Cron runs its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
