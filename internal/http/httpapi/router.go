package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"picbatch/internal/http/handlers"
	"picbatch/internal/middleware"
)

func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Cfg.CORSOrigins),
	)
	if app.Cfg.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(app.Cfg.RateLimitPerMin, time.Minute))
	}

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", app.JobCreate)
		r.Get("/", app.JobList)
		r.Get("/{id}", app.JobGet)
		r.Post("/{id}/start", app.JobControl("start"))
		r.Post("/{id}/pause", app.JobControl("pause"))
		r.Post("/{id}/resume", app.JobControl("resume"))
		r.Post("/{id}/cancel", app.JobControl("cancel"))
		r.Get("/{id}/export", app.JobExport)
	})

	r.Delete("/v1/tasks/{id}/output", app.TaskOutputDelete)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Get("/status", app.AuthStatus)
		r.Post("/check", app.AuthCheck)
		r.Post("/session", app.AuthSessionOpen)
	})

	r.Get("/v1/events", app.Events)

	return r
}
