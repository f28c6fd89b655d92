package browser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"picbatch/internal/domain"
	"picbatch/internal/infra"
	"picbatch/internal/runner"
	"picbatch/internal/storage"
)

// errNotLoggedIn marks an attempt that failed because the surface is
// signed out. The scheduler must not retry it.
var errNotLoggedIn = errors.New(runner.ReasonNotLoggedIn)

// LiveRunner executes generation attempts against the real web surface
// through the shared browser session.
type LiveRunner struct {
	sessions *SessionManager
	files    *storage.FileService
	logger   infra.Logger
}

func NewLiveRunner(sessions *SessionManager, files *storage.FileService, logger infra.Logger) *LiveRunner {
	return &LiveRunner{sessions: sessions, files: files, logger: logger}
}

var _ runner.Runner = (*LiveRunner)(nil)

// RunTask drives one attempt end to end: reach the composer, upload
// the reference image, submit the prompt, wait for outputs and save
// them under the task's output directory. Expected failures come back
// as a classified TaskResult, never as a panic.
func (r *LiveRunner) RunTask(ctx context.Context, in runner.TaskInput) (result runner.TaskResult) {
	log := r.logger.With().Str("job_id", in.JobID).Str("task_id", in.Task.ID).Logger()

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("browser attempt panicked")
			result = runner.RetryableFailure(fmt.Sprintf("browser automation failure: %v", p))
		}
	}()

	pageCtx, release, err := r.sessions.Acquire(ctx)
	if err != nil {
		return runner.RetryableFailure("open browser: " + sanitizeBrowserError(err))
	}
	defer release()

	// The attempt runs on the session's context but must also die with
	// the scheduler's cancel.
	attemptCtx, cancel := context.WithCancel(pageCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := r.ensureSurface(attemptCtx); err != nil {
		return r.classifyFailure(log, err)
	}
	if err := r.ensureLoggedIn(attemptCtx, log); err != nil {
		if errors.Is(err, errNotLoggedIn) {
			r.sessions.setStage(domain.AuthStageLoggedOut, "not logged in")
			return runner.NonRetryableFailure(runner.ReasonNotLoggedIn + ": sign in through the interactive session, then resume the job")
		}
		return r.classifyFailure(log, err)
	}
	r.sessions.setStage(domain.AuthStageLoggedIn, "")

	r.startNewConversation(attemptCtx, log)

	baseline, err := imageSources(attemptCtx, chatSurface.resultImages)
	if err != nil {
		return r.classifyFailure(log, fmt.Errorf("read transcript: %w", err))
	}

	if err := r.uploadReference(attemptCtx, in.RefImage.FilePath); err != nil {
		return r.classifyFailure(log, fmt.Errorf("upload reference image: %w", err))
	}
	if err := r.submitPrompt(attemptCtx, in.Prompt.Text); err != nil {
		return r.classifyFailure(log, fmt.Errorf("submit prompt: %w", err))
	}

	srcs, err := r.waitForOutputs(attemptCtx, baseline)
	if err != nil {
		var rl *rateLimitSignalError
		if errors.As(err, &rl) {
			log.Warn().Int("wait_seconds", rl.seconds).Msg("rate limit detected on page")
			return runner.RateLimited(rl.seconds, rl.message)
		}
		return r.classifyFailure(log, err)
	}

	outDir := storage.TaskOutputDir(in.OutputDir, in.RefImage.FileName, in.Prompt.Text, in.Task.ID)
	paths, err := r.saveOutputs(attemptCtx, outDir, srcs)
	if err != nil {
		return r.classifyFailure(log, fmt.Errorf("save outputs: %w", err))
	}
	if len(paths) == 0 {
		return runner.RetryableFailure("generation finished but no output could be captured")
	}

	log.Info().Int("outputs", len(paths)).Msg("attempt succeeded")
	return runner.Success(paths)
}

// classifyFailure turns an attempt error into a TaskResult, promoting
// rate-limit wording buried in the error to a cooldown.
func (r *LiveRunner) classifyFailure(log infra.Logger, err error) runner.TaskResult {
	msg := sanitizeBrowserError(err)
	if sig, ok := runner.DetectRateLimit(msg); ok {
		log.Warn().Int("wait_seconds", sig.WaitSeconds).Msg("rate limit detected in failure")
		return runner.RateLimited(sig.WaitSeconds, sig.Message)
	}
	log.Warn().Str("reason", msg).Msg("attempt failed")
	return runner.RetryableFailure(msg)
}

// ensureSurface navigates to the target when the page shows neither a
// composer nor a login prompt, e.g. after a crash or a blank tab.
func (r *LiveRunner) ensureSurface(ctx context.Context) error {
	known := append(append([]string{}, chatSurface.composers...), chatSurface.loginPrompts...)
	sel, err := waitAnyVisible(ctx, known, 4*time.Second)
	if err != nil {
		return err
	}
	if sel != "" {
		return nil
	}
	navCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(r.sessions.opts.TargetURL)); err != nil {
		return fmt.Errorf("navigate to surface: %w", err)
	}
	return nil
}

// ensureLoggedIn waits for the composer. When only a login prompt
// renders it keeps waiting for LoginWait in case the operator signs in
// through the interactive window, then fails non-retryably.
func (r *LiveRunner) ensureLoggedIn(ctx context.Context, log infra.Logger) error {
	sel, err := waitAnyVisible(ctx, chatSurface.composers, 8*time.Second)
	if err != nil {
		return err
	}
	if sel != "" {
		return nil
	}

	loginVisible, err := anyVisible(ctx, chatSurface.loginPrompts)
	if err != nil {
		return err
	}
	if !loginVisible {
		return errors.New("composer not found, page structure may have changed")
	}

	log.Info().Dur("wait", r.sessions.opts.LoginWait).Msg("login prompt visible, waiting for sign-in")
	r.sessions.setStage(domain.AuthStageLoggedOut, "waiting for sign-in")
	sel, err = waitAnyVisible(ctx, chatSurface.composers, r.sessions.opts.LoginWait)
	if err != nil {
		return err
	}
	if sel == "" {
		return errNotLoggedIn
	}
	return nil
}

// startNewConversation clicks the new-chat control so outputs of the
// previous task never leak into this one. Best effort: a missing
// button means the page already shows a fresh conversation.
func (r *LiveRunner) startNewConversation(ctx context.Context, log infra.Logger) {
	clicked, err := clickFirst(ctx, chatSurface.newChatButtons)
	if err != nil {
		log.Debug().Err(err).Msg("new chat click failed")
		return
	}
	if clicked {
		_, _ = waitAnyVisible(ctx, chatSurface.composers, 5*time.Second)
	}
}

// uploadReference feeds the reference image into the hidden file
// input, clicking the attach button first when the input is not
// mounted yet.
func (r *LiveRunner) uploadReference(ctx context.Context, path string) error {
	sel, err := firstInput(ctx)
	if err != nil {
		return err
	}
	if sel == "" {
		if _, err := clickFirst(ctx, chatSurface.attachButtons); err != nil {
			return err
		}
		deadline := time.Now().Add(5 * time.Second)
		for sel == "" && time.Now().Before(deadline) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
			if sel, err = firstInput(ctx); err != nil {
				return err
			}
		}
	}
	if sel == "" {
		return errors.New("upload input not found")
	}
	if err := chromedp.Run(ctx, chromedp.SetUploadFiles(sel, []string{path}, chromedp.ByQuery)); err != nil {
		return err
	}

	// Give the page a moment to ingest the attachment before the
	// prompt is typed.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(1500 * time.Millisecond):
	}
	return nil
}

// firstInput looks for a mounted file input. Unlike firstVisible it
// accepts hidden elements, upload inputs are almost always display:none.
func firstInput(ctx context.Context) (string, error) {
	expr := fmt.Sprintf(`(%s).find((s) => {
  try { return !!document.querySelector(s); } catch (e) { return false; }
}) || ""`, mustJSON(chatSurface.fileInputs))
	var sel string
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &sel)); err != nil {
		return "", err
	}
	return sel, nil
}

// submitPrompt types the prompt into the composer and submits it via
// the send button, falling back to Enter.
func (r *LiveRunner) submitPrompt(ctx context.Context, text string) error {
	sel, err := waitAnyVisible(ctx, chatSurface.composers, 5*time.Second)
	if err != nil {
		return err
	}
	if sel == "" {
		return errors.New("composer not found")
	}

	if err := chromedp.Run(ctx,
		chromedp.Click(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	); err != nil {
		return err
	}

	clicked, err := clickFirst(ctx, chatSurface.sendButtons)
	if err != nil {
		return err
	}
	if !clicked {
		if err := chromedp.Run(ctx, chromedp.SendKeys(sel, kb.Enter, chromedp.ByQuery)); err != nil {
			return err
		}
	}
	return nil
}

// rateLimitSignalError carries a cooldown detected on the page through
// the error path of waitForOutputs.
type rateLimitSignalError struct {
	seconds int
	message string
}

func (e *rateLimitSignalError) Error() string { return e.message }

// waitForOutputs polls the transcript until images beyond baseline
// appear and generation is no longer streaming. Rate-limit wording on
// the page aborts the wait with a rateLimitSignalError.
func (r *LiveRunner) waitForOutputs(ctx context.Context, baseline []string) ([]string, error) {
	seen := make(map[string]struct{}, len(baseline))
	for _, src := range baseline {
		seen[src] = struct{}{}
	}

	deadline := time.Now().Add(r.sessions.opts.GenTimeout)
	var fresh []string
	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("generation timed out after %s", r.sessions.opts.GenTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}

		txt, err := bodyText(ctx)
		if err != nil {
			return nil, err
		}
		if sig, ok := runner.DetectRateLimit(txt); ok {
			return nil, &rateLimitSignalError{seconds: sig.WaitSeconds, message: sig.Message}
		}

		srcs, err := imageSources(ctx, chatSurface.resultImages)
		if err != nil {
			return nil, err
		}
		fresh = fresh[:0]
		for _, src := range srcs {
			if _, ok := seen[src]; !ok {
				fresh = append(fresh, src)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		// New images can still be placeholders while streaming, wait
		// for the busy indicator to clear before capturing.
		busy, err := anyVisible(ctx, chatSurface.busyIndicators)
		if err != nil {
			return nil, err
		}
		if !busy {
			return append([]string(nil), fresh...), nil
		}
	}
}

// saveOutputs persists every fresh image. In-page fetch is the primary
// capture since it reuses cookies and resolves blob URLs, an element
// screenshot is the fallback per image.
func (r *LiveRunner) saveOutputs(ctx context.Context, outDir string, srcs []string) ([]string, error) {
	if err := r.files.EnsureDir(outDir); err != nil {
		return nil, err
	}

	var paths []string
	for i, src := range srcs {
		data, ext, err := fetchImageData(ctx, src)
		if err != nil {
			data, ext, err = screenshotImage(ctx, src)
		}
		if err != nil {
			r.logger.Debug().Err(err).Str("src", truncateForLog(src)).Msg("output capture failed")
			continue
		}
		name := fmt.Sprintf("output-%d%s", i+1, ext)
		path := filepath.Join(outDir, name)
		if err := r.files.WriteFile(path, data); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// screenshotImage captures the rendered element whose src matches.
func screenshotImage(ctx context.Context, src string) ([]byte, string, error) {
	sel := fmt.Sprintf(`img[src=%s]`, mustJSON(src))
	tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(tctx, chromedp.Screenshot(sel, &buf, chromedp.NodeVisible, chromedp.ByQuery)); err != nil {
		return nil, "", fmt.Errorf("screenshot element: %w", err)
	}
	return buf, ".png", nil
}

// sanitizeBrowserError reduces chromedp errors to a single line safe
// to surface in a task's error message.
func sanitizeBrowserError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if strings.Contains(msg, "executable file not found") {
		return "chrome or chromium not found, install a browser to run live generation"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "browser operation timed out"
	}
	if line, _, cut := strings.Cut(msg, "\n"); cut {
		msg = line
	}
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
