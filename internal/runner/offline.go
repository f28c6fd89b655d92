package runner

import (
	"context"
	"time"

	"picbatch/internal/infra"
	"picbatch/internal/storage"
)

// OfflineRunner satisfies the Runner contract without a live remote
// surface: deterministic latency, a placeholder output copied from the
// reference image, always OK. It exists so the scheduler's state
// machine can be exercised end to end in CI and local development.
type OfflineRunner struct {
	files   *storage.FileService
	latency time.Duration
	logger  infra.Logger
}

// NewOfflineRunner builds an OfflineRunner with the given simulated
// latency per attempt.
func NewOfflineRunner(files *storage.FileService, latency time.Duration, logger infra.Logger) *OfflineRunner {
	return &OfflineRunner{files: files, latency: latency, logger: logger}
}

// RunTask copies the reference image into the job's output layout
// after the configured delay.
func (r *OfflineRunner) RunTask(ctx context.Context, in TaskInput) TaskResult {
	if r.latency > 0 {
		select {
		case <-ctx.Done():
			return RetryableFailure("attempt interrupted: " + ctx.Err().Error())
		case <-time.After(r.latency):
		}
	}

	outputPath, err := r.files.SaveMockOutput(in.RefImage.FilePath, in.OutputDir, in.RefImage.FileName, in.Prompt.Text)
	if err != nil {
		r.logger.Error().Err(err).Str("task_id", in.Task.ID).Msg("offline runner: failed to write placeholder output")
		return RetryableFailure("failed to write placeholder output: " + err.Error())
	}

	r.logger.Debug().Str("task_id", in.Task.ID).Str("output", outputPath).Msg("offline runner: task complete")
	return Success([]string{outputPath})
}

var _ Runner = (*OfflineRunner)(nil)
