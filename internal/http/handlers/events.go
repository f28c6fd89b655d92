package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"picbatch/internal/domain"
)

type sseEvent struct {
	name    string
	payload any
}

// Events streams scheduler and auth-state notifications to the client
// as server-sent events. A slow client drops events rather than
// blocking the scheduler loop.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	ch := make(chan sseEvent, 64)
	push := func(name string, payload any) {
		select {
		case ch <- sseEvent{name: name, payload: payload}:
		default:
		}
	}

	unsubs := []func(){
		a.Scheduler.OnProgress(func(e domain.ProgressEvent) { push("job-progress", e) }),
		a.Scheduler.OnTaskUpdated(func(t domain.GenerationTask) { push("task-updated", t) }),
		a.Scheduler.OnRateLimit(func(e domain.RateLimitEvent) { push("rate-limit", e) }),
		a.Scheduler.OnDone(func(e domain.DoneEvent) { push("job-done", e) }),
		a.Scheduler.OnErrorEvent(func(e domain.ErrorEvent) { push("job-error", e) }),
	}
	if a.Sessions != nil {
		unsubs = append(unsubs, a.Sessions.OnAuthState(func(s domain.AuthState) { push("auth-state", s) }))
	}
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-ch:
			data, err := json.Marshal(ev.payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
			flusher.Flush()
		}
	}
}
