package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"picbatch/internal/domain"
	"picbatch/internal/events"
	"picbatch/internal/infra"
)

// ErrBusy is returned when an interactive session is requested while
// generation tasks hold the browser.
var ErrBusy = errors.New("browser session is busy with running tasks")

// Options configures the managed browser.
type Options struct {
	// TargetURL is the generation surface to navigate to.
	TargetURL string

	// Headless applies to background sessions launched for task
	// execution. Interactive sessions are always headful.
	Headless bool

	// ProfileDir is the persistent user-data directory, so a login
	// performed interactively survives restarts and carries over to
	// background sessions.
	ProfileDir string

	// LoginWait bounds how long a task attempt waits for the composer
	// after a login prompt was seen.
	LoginWait time.Duration

	// GenTimeout bounds a single generation wait.
	GenTimeout time.Duration
}

type session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func (s *session) close() {
	s.cancel()
	s.allocCancel()
}

// SessionManager owns at most one Chrome instance at a time and
// arbitrates it between interactive login and task execution. All
// sessions share one profile directory, so only one may live at once.
type SessionManager struct {
	opts   Options
	logger infra.Logger

	mu      sync.Mutex
	current *session
	manual  bool
	running int

	state     domain.AuthState
	observers events.List[domain.AuthState]
}

// NewSessionManager builds a manager with no live browser. The first
// session is launched lazily by OpenInteractiveSession or Acquire.
func NewSessionManager(opts Options, logger infra.Logger) *SessionManager {
	return &SessionManager{
		opts:   opts,
		logger: logger,
		state: domain.AuthState{
			Stage:     domain.AuthStageUnknown,
			CheckedAt: time.Now().UTC(),
		},
	}
}

// OnAuthState registers an observer for auth-state transitions and
// returns its unsubscribe func.
func (m *SessionManager) OnAuthState(fn func(domain.AuthState)) func() {
	return m.observers.Subscribe(fn)
}

// AuthState returns the last observed auth state without probing.
func (m *SessionManager) AuthState() domain.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *SessionManager) setStage(stage domain.AuthStage, msg string) domain.AuthState {
	m.mu.Lock()
	m.state = domain.AuthState{
		Stage:     stage,
		CheckedAt: time.Now().UTC(),
		Message:   msg,
	}
	state := m.state
	m.mu.Unlock()

	m.observers.Emit(state)
	return state
}

// CheckAuthStatus probes the live session for login state. While tasks
// hold the browser the probe is skipped and the state reports busy, so
// a status poll can never race a generation in flight.
func (m *SessionManager) CheckAuthStatus(ctx context.Context) domain.AuthState {
	m.mu.Lock()
	if m.running > 0 {
		m.mu.Unlock()
		return m.setStage(domain.AuthStageBusy, "tasks are running, auth probe skipped")
	}
	sess := m.current
	m.mu.Unlock()

	if !m.sessionAlive(sess) {
		m.dropSession(sess)
		return m.setStage(domain.AuthStageUnknown, "no live browser session, open one to sign in")
	}

	m.setStage(domain.AuthStageChecking, "")
	stage, msg := m.probeAuth(sess.ctx)
	return m.setStage(stage, msg)
}

// probeAuth inspects the page and classifies the login state.
func (m *SessionManager) probeAuth(sessCtx context.Context) (domain.AuthStage, string) {
	tctx, cancel := context.WithTimeout(sessCtx, 10*time.Second)
	defer cancel()

	sel, err := waitAnyVisible(tctx, chatSurface.composers, 6*time.Second)
	if err != nil {
		return domain.AuthStageError, sanitizeBrowserError(err)
	}
	if sel != "" {
		return domain.AuthStageLoggedIn, ""
	}
	loginVisible, err := anyVisible(tctx, chatSurface.loginPrompts)
	if err != nil {
		return domain.AuthStageError, sanitizeBrowserError(err)
	}
	if loginVisible {
		return domain.AuthStageLoggedOut, "not logged in"
	}
	return domain.AuthStageUnknown, "could not identify page state"
}

// OpenInteractiveSession launches (or reuses) a headful browser on the
// persistent profile so the operator can sign in by hand, then probes
// the resulting auth state. It refuses while tasks hold the browser.
func (m *SessionManager) OpenInteractiveSession(ctx context.Context) (domain.AuthState, error) {
	m.mu.Lock()
	if m.running > 0 {
		m.mu.Unlock()
		return m.setStage(domain.AuthStageBusy, "tasks are running, try again once the job finishes"), ErrBusy
	}
	sess := m.current
	manual := m.manual
	m.mu.Unlock()

	if m.sessionAlive(sess) && !manual {
		// A headless window cannot be surfaced, restart headful.
		m.dropSession(sess)
		sess = nil
	}
	if !m.sessionAlive(sess) {
		m.dropSession(sess)
		fresh, err := m.launch(true)
		if err != nil {
			return m.setStage(domain.AuthStageError, sanitizeBrowserError(err)), err
		}
		m.mu.Lock()
		m.current = fresh
		m.manual = true
		m.mu.Unlock()
		m.logger.Info().Str("target", m.opts.TargetURL).Msg("interactive browser session opened")
	}

	return m.CheckAuthStatus(ctx), nil
}

// Acquire hands the shared browser to one task attempt. When no live
// session exists a background one is launched on the same profile. The
// returned release func must be called once the attempt finishes.
func (m *SessionManager) Acquire(ctx context.Context) (context.Context, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sessionAlive(m.current) {
		if m.current != nil {
			m.current.close()
			m.current = nil
		}
		fresh, err := m.launch(m.opts.Headless)
		if err != nil {
			return nil, nil, err
		}
		m.current = fresh
		m.manual = false
		m.logger.Info().Bool("headless", m.opts.Headless).Msg("background browser session opened")
	}

	m.running++
	sess := m.current
	release := func() {
		m.mu.Lock()
		m.running--
		m.mu.Unlock()
	}
	return sess.ctx, release, nil
}

// Shutdown closes the live browser, if any.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sess := m.current
	m.current = nil
	m.manual = false
	m.mu.Unlock()

	if sess != nil {
		sess.close()
	}
}

// launch starts a Chrome instance on the shared profile and navigates
// it to the target surface.
func (m *SessionManager) launch(headless bool) (*session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1280, 900),
	)
	if m.opts.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(m.opts.ProfileDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	navCtx, cancel := context.WithTimeout(tabCtx, 45*time.Second)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(m.opts.TargetURL)); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("open %s: %w", m.opts.TargetURL, err)
	}

	return &session{ctx: tabCtx, cancel: tabCancel, allocCancel: allocCancel}, nil
}

// sessionAlive probes sess with a trivial script so a browser the
// operator closed by hand is not mistaken for live.
func (m *SessionManager) sessionAlive(sess *session) bool {
	if sess == nil || sess.ctx.Err() != nil {
		return false
	}
	tctx, cancel := context.WithTimeout(sess.ctx, 3*time.Second)
	defer cancel()
	return chromedp.Run(tctx, chromedp.Evaluate(`1`, nil)) == nil
}

// dropSession closes sess and clears it from the manager if it is
// still the current one.
func (m *SessionManager) dropSession(sess *session) {
	if sess == nil {
		return
	}
	m.mu.Lock()
	if m.current == sess {
		m.current = nil
		m.manual = false
	}
	m.mu.Unlock()
	sess.close()
}
