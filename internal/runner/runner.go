package runner

import (
	"context"
	"strings"

	"picbatch/internal/domain"
)

// TaskInput carries everything one attempt needs: the task, its
// resolved reference image and prompt, and the job's output directory.
type TaskInput struct {
	JobID     string
	Task      domain.GenerationTask
	RefImage  domain.ReferenceImage
	Prompt    domain.PromptItem
	OutputDir string
}

// TaskResult classifies the outcome of a single attempt. The scheduler
// interprets nothing about the remote surface beyond this result, so
// the classification has to be precise: OK with outputs only on
// positive evidence of new output, RateLimitSeconds set whenever the
// surface asked us to back off, Retryable for transient failures.
type TaskResult struct {
	OK               bool
	OutputPaths      []string
	Reason           string
	Retryable        bool
	RateLimitSeconds int
}

// Runner performs exactly one attempt of one task against the remote
// surface. Expected failure modes are encoded in the result; the
// implementation must not panic for them.
type Runner interface {
	RunTask(ctx context.Context, in TaskInput) TaskResult
}

// Success builds an OK result with the produced output paths.
func Success(outputPaths []string) TaskResult {
	return TaskResult{OK: true, OutputPaths: outputPaths}
}

// RateLimited builds a result asking the scheduler to cool down. It
// takes precedence over every other failure classification.
func RateLimited(waitSeconds int, reason string) TaskResult {
	return TaskResult{Retryable: true, RateLimitSeconds: waitSeconds, Reason: reason}
}

// RetryableFailure builds a transient failure: the same task may
// succeed on a later attempt without operator intervention.
func RetryableFailure(reason string) TaskResult {
	return TaskResult{Retryable: true, Reason: reason}
}

// NonRetryableFailure builds a terminal failure requiring operator
// action before another attempt makes sense.
func NonRetryableFailure(reason string) TaskResult {
	return TaskResult{Reason: reason}
}

// ReasonNotLoggedIn marks authentication failures. The session manager
// and UI key off this fragment to flip the auth state to logged_out.
const ReasonNotLoggedIn = "not logged in"

// IsAuthFailure reports whether a failure reason describes a lost or
// missing login session.
func IsAuthFailure(reason string) bool {
	return strings.Contains(strings.ToLower(reason), ReasonNotLoggedIn)
}
