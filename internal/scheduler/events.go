package scheduler

import (
	"picbatch/internal/domain"
)

// OnProgress registers an observer for job progress snapshots and
// returns its unsubscribe func.
func (s *Scheduler) OnProgress(fn func(domain.ProgressEvent)) func() {
	return s.progress.Subscribe(fn)
}

// OnTaskUpdated registers an observer for individual task transitions.
func (s *Scheduler) OnTaskUpdated(fn func(domain.GenerationTask)) func() {
	return s.taskUpdated.Subscribe(fn)
}

// OnRateLimit registers an observer for rate-limit cooldown events.
func (s *Scheduler) OnRateLimit(fn func(domain.RateLimitEvent)) func() {
	return s.rateLimit.Subscribe(fn)
}

// OnDone registers an observer for jobs reaching a terminal status.
func (s *Scheduler) OnDone(fn func(domain.DoneEvent)) func() {
	return s.done.Subscribe(fn)
}

// OnErrorEvent registers an observer for job-level failures.
func (s *Scheduler) OnErrorEvent(fn func(domain.ErrorEvent)) func() {
	return s.errorEvents.Subscribe(fn)
}
