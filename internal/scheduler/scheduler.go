package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"picbatch/internal/domain"
	"picbatch/internal/events"
	"picbatch/internal/infra"
	"picbatch/internal/runner"
	"picbatch/internal/storage"
)

const (
	// maxRetry bounds retryable failures per task: a task fails
	// terminally on its maxRetry+1-th attempt.
	maxRetry = 3

	// pauseWait bounds how long a paused loop sleeps before
	// re-checking control flags when no wakeup arrives.
	pauseWait = 250 * time.Millisecond

	// idleWait is used when no task is queued but one is still in
	// flight (running or cooling down).
	idleWait = 200 * time.Millisecond
)

// runtimeJob pairs a job bundle with its private scheduling signals.
// The control flags and task entries are guarded by mu; the bundle's
// identity, refs and prompts are immutable after creation.
type runtimeJob struct {
	mu        sync.Mutex
	bundle    *domain.JobBundle
	running   bool
	paused    bool
	cancelled bool

	// wake is signalled on resume/cancel so waits cut short instead
	// of sleeping out their full interval.
	wake chan struct{}

	// cancelAttempt aborts the in-flight executor call, if any.
	cancelAttempt context.CancelFunc
}

func (j *runtimeJob) notifyWake() {
	select {
	case j.wake <- struct{}{}:
	default:
	}
}

// Scheduler owns the authoritative state of all jobs and their tasks.
// Each started job gets one sequential execution loop goroutine; that
// loop is the only writer of its tasks' statuses, while control calls
// only flip flags and move tasks between non-running states.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*runtimeJob

	runner runner.Runner
	files  *storage.FileService
	logger infra.Logger
	clock  Clock

	progress    events.List[domain.ProgressEvent]
	taskUpdated events.List[domain.GenerationTask]
	rateLimit   events.List[domain.RateLimitEvent]
	done        events.List[domain.DoneEvent]
	errorEvents events.List[domain.ErrorEvent]
}

// NewScheduler builds a Scheduler executing attempts through r and
// touching the filesystem through files.
func NewScheduler(r runner.Runner, files *storage.FileService, logger infra.Logger) *Scheduler {
	return &Scheduler{
		jobs:   make(map[string]*runtimeJob),
		runner: r,
		files:  files,
		logger: logger,
		clock:  systemClock{},
	}
}

// CreateJob materializes the cross-product of references and prompts
// into tasks and registers the job. References are deduplicated by
// path, prompts trimmed and blank ones dropped; an empty remainder of
// either fails validation and creates nothing.
func (s *Scheduler) CreateJob(payload domain.CreateJobPayload) (domain.JobBundle, error) {
	refs := make([]domain.ReferenceImage, 0, len(payload.Refs))
	seen := make(map[string]struct{}, len(payload.Refs))
	for _, in := range payload.Refs {
		path := strings.TrimSpace(in.FilePath)
		if path == "" {
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		refs = append(refs, domain.NewReferenceImage(path, in.FileName))
	}

	prompts := make([]domain.PromptItem, 0, len(payload.Prompts))
	for _, raw := range payload.Prompts {
		if text := strings.TrimSpace(raw); text != "" {
			prompts = append(prompts, domain.NewPromptItem(text))
		}
	}

	if len(refs) == 0 {
		return domain.JobBundle{}, fmt.Errorf("no reference images provided: %w", domain.ErrValidation)
	}
	if len(prompts) == 0 {
		return domain.JobBundle{}, fmt.Errorf("no prompts provided: %w", domain.ErrValidation)
	}

	if err := s.files.EnsureDir(payload.OutputDir); err != nil {
		return domain.JobBundle{}, err
	}

	tasks := make([]domain.GenerationTask, 0, len(refs)*len(prompts))
	for _, ref := range refs {
		for _, prompt := range prompts {
			tasks = append(tasks, domain.GenerationTask{
				ID:          domain.NewID("task"),
				RefImageID:  ref.ID,
				PromptID:    prompt.ID,
				Status:      domain.TaskStatusQueued,
				OutputPaths: []string{},
			})
		}
	}

	job := &runtimeJob{
		bundle: &domain.JobBundle{
			ID:        domain.NewID("job"),
			CreatedAt: s.clock.Now(),
			OutputDir: payload.OutputDir,
			Refs:      refs,
			Prompts:   prompts,
			Tasks:     tasks,
		},
		wake: make(chan struct{}, 1),
	}

	s.mu.Lock()
	s.jobs[job.bundle.ID] = job
	s.mu.Unlock()

	s.logger.Info().
		Str("job_id", job.bundle.ID).
		Int("refs", len(refs)).
		Int("prompts", len(prompts)).
		Int("tasks", len(tasks)).
		Msg("scheduler: job created")

	s.emitProgress(job, domain.TaskStatusQueued, "", "")
	return s.snapshot(job), nil
}

// Start launches the job's execution loop. Calling Start on an already
// running job is a no-op.
func (s *Scheduler) Start(jobID string) error {
	job, err := s.job(jobID)
	if err != nil {
		return err
	}

	job.mu.Lock()
	if job.running {
		job.mu.Unlock()
		return nil
	}
	job.paused = false
	job.cancelled = false
	job.running = true
	job.mu.Unlock()

	s.logger.Info().Str("job_id", jobID).Msg("scheduler: job started")
	go s.run(job)
	return nil
}

// Pause stops the job from picking new work. Queued tasks move to
// paused; a task already in flight finishes its current step first.
func (s *Scheduler) Pause(jobID string) error {
	job, err := s.job(jobID)
	if err != nil {
		return err
	}

	job.mu.Lock()
	job.paused = true
	for i := range job.bundle.Tasks {
		if job.bundle.Tasks[i].Status == domain.TaskStatusQueued {
			job.bundle.Tasks[i].Status = domain.TaskStatusPaused
		}
	}
	job.mu.Unlock()

	s.emitProgress(job, domain.TaskStatusPaused, "", "")
	return nil
}

// Resume moves paused tasks back to queued and restarts the loop if it
// has exited.
func (s *Scheduler) Resume(jobID string) error {
	job, err := s.job(jobID)
	if err != nil {
		return err
	}

	var resumed []domain.GenerationTask
	job.mu.Lock()
	job.paused = false
	for i := range job.bundle.Tasks {
		if job.bundle.Tasks[i].Status == domain.TaskStatusPaused {
			job.bundle.Tasks[i].Status = domain.TaskStatusQueued
			resumed = append(resumed, cloneTask(job.bundle.Tasks[i]))
		}
	}
	job.mu.Unlock()

	for _, task := range resumed {
		s.taskUpdated.Emit(task)
	}

	job.notifyWake()
	return s.Start(jobID)
}

// Cancel marks the job cancelled and immediately moves every
// non-terminal task to cancelled. An in-flight executor call is
// aborted best-effort and its eventual result discarded.
func (s *Scheduler) Cancel(jobID string) error {
	job, err := s.job(jobID)
	if err != nil {
		return err
	}

	var cancelled []domain.GenerationTask
	job.mu.Lock()
	job.cancelled = true
	abort := job.cancelAttempt
	for i := range job.bundle.Tasks {
		switch job.bundle.Tasks[i].Status {
		case domain.TaskStatusQueued, domain.TaskStatusPaused,
			domain.TaskStatusRunning, domain.TaskStatusWaitingRateLimit:
			job.bundle.Tasks[i].Status = domain.TaskStatusCancelled
			cancelled = append(cancelled, cloneTask(job.bundle.Tasks[i]))
		}
	}
	job.mu.Unlock()

	if abort != nil {
		abort()
	}
	for _, task := range cancelled {
		s.taskUpdated.Emit(task)
	}

	job.notifyWake()
	s.emitProgress(job, domain.TaskStatusCancelled, "", "")
	return nil
}

// DeleteOutput removes a task's collected output files and clears its
// recorded paths. The task keeps its status.
func (s *Scheduler) DeleteOutput(taskID string) error {
	s.mu.Lock()
	jobs := make([]*runtimeJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	for _, job := range jobs {
		job.mu.Lock()
		for i := range job.bundle.Tasks {
			task := &job.bundle.Tasks[i]
			if task.ID != taskID {
				continue
			}
			paths := append([]string(nil), task.OutputPaths...)
			task.OutputPaths = []string{}
			updated := cloneTask(*task)
			job.mu.Unlock()

			if err := s.files.DeleteFiles(paths); err != nil {
				s.logger.Warn().Err(err).Str("task_id", taskID).Msg("scheduler: output deletion incomplete")
			}
			s.taskUpdated.Emit(updated)
			return nil
		}
		job.mu.Unlock()
	}

	return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
}

// Job returns a point-in-time copy of the job bundle.
func (s *Scheduler) Job(jobID string) (domain.JobBundle, error) {
	job, err := s.job(jobID)
	if err != nil {
		return domain.JobBundle{}, err
	}
	return s.snapshot(job), nil
}

// Jobs returns point-in-time copies of all known jobs.
func (s *Scheduler) Jobs() []domain.JobBundle {
	s.mu.Lock()
	jobs := make([]*runtimeJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	out := make([]domain.JobBundle, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, s.snapshot(job))
	}
	return out
}

func (s *Scheduler) job(jobID string) (*runtimeJob, error) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return job, nil
}

// run is the per-job execution loop. It is the sole writer of task
// statuses while it lives; control calls mutate only via the flag
// surface plus the pause/cancel bulk moves above.
func (s *Scheduler) run(job *runtimeJob) {
	jobID := job.bundle.ID

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("job_id", jobID).Interface("panic", r).Msg("scheduler: execution loop failed")
			s.errorEvents.Emit(domain.ErrorEvent{JobID: jobID, Message: "scheduler failure, job stopped"})
			s.emitProgress(job, domain.TaskStatusError, "", "scheduler failure, job stopped")
		}
		job.mu.Lock()
		job.running = false
		job.mu.Unlock()
	}()

	for {
		job.mu.Lock()
		if job.cancelled {
			job.mu.Unlock()
			s.emitDone(job, domain.TaskStatusCancelled)
			return
		}
		if job.paused {
			job.mu.Unlock()
			s.waitWake(job, pauseWait)
			continue
		}

		task := nextQueued(job.bundle)
		if task == nil {
			if anyInFlight(job.bundle) {
				job.mu.Unlock()
				s.waitWake(job, idleWait)
				continue
			}
			final := domain.TaskStatusDone
			if anyWithStatus(job.bundle, domain.TaskStatusError) {
				final = domain.TaskStatusError
			}
			job.mu.Unlock()
			s.emitDone(job, final)
			return
		}

		task.Status = domain.TaskStatusRunning
		running := cloneTask(*task)
		refImage, refOK := findRef(job.bundle, task.RefImageID)
		prompt, promptOK := findPrompt(job.bundle, task.PromptID)
		job.mu.Unlock()

		s.taskUpdated.Emit(running)
		s.emitProgress(job, domain.TaskStatusRunning, running.ID, "")

		if !refOK || !promptOK {
			job.mu.Lock()
			task.Status = domain.TaskStatusError
			task.ErrorMessage = "missing dependency: reference image or prompt not found"
			failed := cloneTask(*task)
			job.mu.Unlock()
			s.taskUpdated.Emit(failed)
			s.emitProgress(job, domain.TaskStatusError, failed.ID, failed.ErrorMessage)
			continue
		}

		attemptCtx, cancel := context.WithCancel(context.Background())
		job.mu.Lock()
		job.cancelAttempt = cancel
		job.mu.Unlock()

		result := s.runner.RunTask(attemptCtx, runner.TaskInput{
			JobID:     jobID,
			Task:      running,
			RefImage:  refImage,
			Prompt:    prompt,
			OutputDir: job.bundle.OutputDir,
		})

		cancel()
		job.mu.Lock()
		job.cancelAttempt = nil
		job.mu.Unlock()

		s.applyResult(job, task, result)
	}
}

// applyResult translates one executor result into task state, retries
// and cooldowns. A result arriving after cancellation is discarded.
func (s *Scheduler) applyResult(job *runtimeJob, task *domain.GenerationTask, result runner.TaskResult) {
	jobID := job.bundle.ID

	if result.OK {
		job.mu.Lock()
		if job.cancelled || task.Status.Terminal() {
			job.mu.Unlock()
			return
		}
		task.Status = domain.TaskStatusDone
		task.OutputPaths = append([]string{}, result.OutputPaths...)
		task.ErrorMessage = ""
		updated := cloneTask(*task)
		job.mu.Unlock()

		s.taskUpdated.Emit(updated)
		s.emitProgress(job, domain.TaskStatusRunning, updated.ID, "")
		return
	}

	if result.RateLimitSeconds > 0 {
		job.mu.Lock()
		if job.cancelled || task.Status.Terminal() {
			job.mu.Unlock()
			return
		}
		task.Status = domain.TaskStatusWaitingRateLimit
		task.ErrorMessage = result.Reason
		updated := cloneTask(*task)
		job.mu.Unlock()

		s.taskUpdated.Emit(updated)
		s.rateLimit.Emit(domain.RateLimitEvent{
			JobID:       jobID,
			WaitSeconds: result.RateLimitSeconds,
			ResumeAt:    s.clock.Now().Add(time.Duration(result.RateLimitSeconds) * time.Second),
		})

		if abandoned := s.waitForRateLimit(job, result.RateLimitSeconds); abandoned {
			return
		}

		job.mu.Lock()
		if job.cancelled || task.Status.Terminal() {
			job.mu.Unlock()
			return
		}
		if job.paused {
			task.Status = domain.TaskStatusPaused
		} else {
			task.Status = domain.TaskStatusQueued
		}
		requeued := cloneTask(*task)
		job.mu.Unlock()

		s.taskUpdated.Emit(requeued)
		return
	}

	job.mu.Lock()
	if job.cancelled || task.Status.Terminal() {
		job.mu.Unlock()
		return
	}
	task.RetryCount++
	task.ErrorMessage = result.Reason
	if task.ErrorMessage == "" {
		task.ErrorMessage = "task attempt failed"
	}

	if result.Retryable && task.RetryCount <= maxRetry {
		if job.paused {
			task.Status = domain.TaskStatusPaused
		} else {
			task.Status = domain.TaskStatusQueued
		}
		retry := cloneTask(*task)
		job.mu.Unlock()

		s.taskUpdated.Emit(retry)
		s.logger.Debug().
			Str("job_id", jobID).
			Str("task_id", retry.ID).
			Int("retry", retry.RetryCount).
			Msg("scheduler: task requeued after failure")

		// Plain exponential backoff; cancellation is honored by the
		// next loop iteration rather than interrupting the delay.
		<-s.clock.After(backoff(retry.RetryCount))
		return
	}

	task.Status = domain.TaskStatusError
	failed := cloneTask(*task)
	job.mu.Unlock()

	s.taskUpdated.Emit(failed)
	s.emitProgress(job, domain.TaskStatusError, failed.ID, failed.ErrorMessage)
}

// waitForRateLimit sleeps out a cooldown one second at a time, pausing
// the countdown while the job is paused and abandoning it on cancel.
// Reports true when the wait was abandoned due to cancellation.
func (s *Scheduler) waitForRateLimit(job *runtimeJob, waitSeconds int) bool {
	remaining := waitSeconds

	for remaining > 0 {
		job.mu.Lock()
		cancelled := job.cancelled
		paused := job.paused
		job.mu.Unlock()

		if cancelled {
			return true
		}
		if paused {
			s.waitWake(job, pauseWait)
			continue
		}

		select {
		case <-job.wake:
			// Control changed; re-check without consuming a tick.
			continue
		case <-s.clock.After(time.Second):
		}

		remaining--
		if remaining > 0 && remaining%5 == 0 {
			s.emitProgress(job, domain.TaskStatusWaitingRateLimit, "",
				fmt.Sprintf("rate limit cooldown: %ds remaining", remaining))
		}
	}

	return false
}

// waitWake blocks until a control wakeup arrives or the interval
// elapses, whichever is first.
func (s *Scheduler) waitWake(job *runtimeJob, interval time.Duration) {
	select {
	case <-job.wake:
	case <-s.clock.After(interval):
	}
}

func (s *Scheduler) emitProgress(job *runtimeJob, status domain.TaskStatus, currentTaskID, message string) {
	job.mu.Lock()
	completed := 0
	for i := range job.bundle.Tasks {
		if job.bundle.Tasks[i].Status == domain.TaskStatusDone {
			completed++
		}
	}
	total := len(job.bundle.Tasks)
	job.mu.Unlock()

	s.progress.Emit(domain.ProgressEvent{
		JobID:         job.bundle.ID,
		Completed:     completed,
		Total:         total,
		Status:        status,
		CurrentTaskID: currentTaskID,
		Message:       message,
	})
}

func (s *Scheduler) emitDone(job *runtimeJob, finalStatus domain.TaskStatus) {
	s.emitProgress(job, finalStatus, "", "")
	s.done.Emit(domain.DoneEvent{JobID: job.bundle.ID, FinalStatus: finalStatus})
	s.logger.Info().
		Str("job_id", job.bundle.ID).
		Str("final_status", string(finalStatus)).
		Msg("scheduler: job finished")
}

func (s *Scheduler) snapshot(job *runtimeJob) domain.JobBundle {
	job.mu.Lock()
	defer job.mu.Unlock()

	out := *job.bundle
	out.Refs = append([]domain.ReferenceImage(nil), job.bundle.Refs...)
	out.Prompts = append([]domain.PromptItem(nil), job.bundle.Prompts...)
	out.Tasks = make([]domain.GenerationTask, len(job.bundle.Tasks))
	for i := range job.bundle.Tasks {
		out.Tasks[i] = cloneTask(job.bundle.Tasks[i])
	}
	return out
}

func nextQueued(bundle *domain.JobBundle) *domain.GenerationTask {
	for i := range bundle.Tasks {
		if bundle.Tasks[i].Status == domain.TaskStatusQueued {
			return &bundle.Tasks[i]
		}
	}
	return nil
}

func anyInFlight(bundle *domain.JobBundle) bool {
	for i := range bundle.Tasks {
		switch bundle.Tasks[i].Status {
		case domain.TaskStatusRunning, domain.TaskStatusWaitingRateLimit:
			return true
		}
	}
	return false
}

func anyWithStatus(bundle *domain.JobBundle, status domain.TaskStatus) bool {
	for i := range bundle.Tasks {
		if bundle.Tasks[i].Status == status {
			return true
		}
	}
	return false
}

func findRef(bundle *domain.JobBundle, id string) (domain.ReferenceImage, bool) {
	for _, ref := range bundle.Refs {
		if ref.ID == id {
			return ref, true
		}
	}
	return domain.ReferenceImage{}, false
}

func findPrompt(bundle *domain.JobBundle, id string) (domain.PromptItem, bool) {
	for _, prompt := range bundle.Prompts {
		if prompt.ID == id {
			return prompt, true
		}
	}
	return domain.PromptItem{}, false
}

func cloneTask(task domain.GenerationTask) domain.GenerationTask {
	out := task
	out.OutputPaths = append([]string(nil), task.OutputPaths...)
	return out
}

func backoff(retryCount int) time.Duration {
	return time.Duration(1<<(retryCount-1)) * time.Second
}
