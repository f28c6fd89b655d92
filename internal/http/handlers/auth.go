package handlers

import (
	"errors"
	"net/http"

	"picbatch/internal/browser"
)

// AuthStatus returns the last observed auth state without touching the
// browser.
func (a *App) AuthStatus(w http.ResponseWriter, r *http.Request) {
	if a.Sessions == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "live browser execution is disabled")
		return
	}
	a.json(w, http.StatusOK, a.Sessions.AuthState())
}

// AuthCheck actively probes the live session for login state.
func (a *App) AuthCheck(w http.ResponseWriter, r *http.Request) {
	if a.Sessions == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "live browser execution is disabled")
		return
	}
	a.json(w, http.StatusOK, a.Sessions.CheckAuthStatus(r.Context()))
}

// AuthSessionOpen launches the headful browser window so the operator
// can sign in by hand. Refused with 409 while tasks hold the browser.
func (a *App) AuthSessionOpen(w http.ResponseWriter, r *http.Request) {
	if a.Sessions == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "live browser execution is disabled")
		return
	}
	state, err := a.Sessions.OpenInteractiveSession(r.Context())
	if err != nil {
		if errors.Is(err, browser.ErrBusy) {
			a.error(w, http.StatusConflict, "busy", "tasks are running, try again once the job finishes")
			return
		}
		a.Logger.Error().Err(err).Msg("open interactive session failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to open browser session")
		return
	}
	a.json(w, http.StatusOK, state)
}
