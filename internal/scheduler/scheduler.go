// Package scheduler runs the backend's periodic maintenance jobs on a single
// owned cron.Cron instance — replacing a model of independent scheduler
// actors with one process-wide object whose jobs are registered, logged, and
// recovered uniformly.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Job is one unit of periodic work. A Job never returns an error to its
// caller as a reason to stop the process; a failing tick logs and the next
// tick is unaffected.
type Job func(ctx context.Context) error

// Scheduler owns the cron runner and the background context jobs run under.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	logger *slog.Logger
}

// New builds a Scheduler. Jobs run under ctx; cancelling ctx does not stop
// already-dispatched ticks, but Stop should be called alongside cancellation.
func New(ctx context.Context, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		ctx:    ctx,
		logger: logger,
	}
}

// Register adds job under the given cron spec (standard 5-field, or
// "@every 1m" style). name is used only for logging.
func (s *Scheduler) Register(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runOnce(name, job)
	})
	return err
}

// runOnce executes job with panic recovery and structured logging, per the
// "background jobs log and continue; they never fail the process" rule.
func (s *Scheduler) runOnce(name string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler job panicked", "job", name, "panic", r)
		}
	}()

	s.logger.Debug("scheduler job starting", "job", name)
	if err := job(s.ctx); err != nil {
		s.logger.Error("scheduler job failed", "job", name, "error", err)
		return
	}
	s.logger.Debug("scheduler job finished", "job", name)
}

// Start begins running registered jobs on their schedules. Non-blocking.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron runner, waiting for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
