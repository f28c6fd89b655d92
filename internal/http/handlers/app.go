package handlers

import (
	"encoding/json"
	"net/http"

	"picbatch/internal/browser"
	"picbatch/internal/infra"
	"picbatch/internal/scheduler"
	"picbatch/internal/storage"
)

// App bundles the dependencies shared by all HTTP handlers. Sessions
// is nil when live browser execution is disabled.
type App struct {
	Scheduler *scheduler.Scheduler
	Sessions  *browser.SessionManager
	Files     *storage.FileService
	Cfg       infra.Config
	Logger    infra.Logger
}

func NewApp(s *scheduler.Scheduler, sessions *browser.SessionManager, files *storage.FileService, cfg infra.Config, logger infra.Logger) *App {
	return &App{Scheduler: s, Sessions: sessions, Files: files, Cfg: cfg, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
