package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"picbatch/internal/domain"
	"picbatch/pkg/zip"
)

// JobCreate pairs every reference image with every prompt and stores
// the resulting job in queued state. An empty outputDir falls back to
// a dated directory under the configured output base.
func (a *App) JobCreate(w http.ResponseWriter, r *http.Request) {
	var payload domain.CreateJobPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if payload.OutputDir == "" {
		payload.OutputDir = filepath.Join(a.Cfg.OutputBaseDir, "job-"+time.Now().Format("2006-01-02"))
	}

	bundle, err := a.Scheduler.CreateJob(payload)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("create job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}
	a.json(w, http.StatusCreated, bundle)
}

func (a *App) JobList(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"items": a.Scheduler.Jobs()})
}

func (a *App) JobGet(w http.ResponseWriter, r *http.Request) {
	bundle, err := a.Scheduler.Job(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, bundle)
}

// JobControl dispatches the start, pause, resume and cancel
// transitions. The scheduler treats redundant transitions as no-ops,
// so every accepted call answers with the fresh job snapshot.
func (a *App) JobControl(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var err error
		switch action {
		case "start":
			err = a.Scheduler.Start(id)
		case "pause":
			err = a.Scheduler.Pause(id)
		case "resume":
			err = a.Scheduler.Resume(id)
		case "cancel":
			err = a.Scheduler.Cancel(id)
		default:
			a.error(w, http.StatusNotFound, "not_found", "unknown action")
			return
		}
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				a.error(w, http.StatusNotFound, "not_found", "job not found")
				return
			}
			a.Logger.Error().Err(err).Str("action", action).Str("job_id", id).Msg("job control failed")
			a.error(w, http.StatusInternalServerError, "internal", "job control failed")
			return
		}

		bundle, err := a.Scheduler.Job(id)
		if err != nil {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.json(w, http.StatusOK, bundle)
	}
}

// TaskOutputDelete removes a task's generated files from disk and
// clears its recorded output paths.
func (a *App) TaskOutputDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Scheduler.DeleteOutput(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		a.Logger.Error().Err(err).Str("task_id", id).Msg("delete output failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete output")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// JobExport streams every output file of the job as one zip archive,
// with entries laid out relative to the job's output directory.
func (a *App) JobExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bundle, err := a.Scheduler.Job(id)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	var entries []zip.Entry
	for _, task := range bundle.Tasks {
		for _, path := range task.OutputPaths {
			name, relErr := filepath.Rel(bundle.OutputDir, path)
			if relErr != nil {
				name = filepath.Base(path)
			}
			entries = append(entries, zip.Entry{Name: filepath.ToSlash(name), Path: path})
		}
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "job has no outputs yet")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".zip"))
	if err := zip.WriteArchive(w, entries); err != nil {
		// Headers are out, all that is left is logging.
		a.Logger.Error().Err(err).Str("job_id", id).Msg("export archive failed")
	}
}
