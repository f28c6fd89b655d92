package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"picbatch/internal/browser"
	"picbatch/internal/http/handlers"
	httpapi "picbatch/internal/http/httpapi"
	"picbatch/internal/infra"
	"picbatch/internal/runner"
	"picbatch/internal/scheduler"
	"picbatch/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	files := storage.NewFileService()
	if err := files.EnsureDir(cfg.OutputBaseDir); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.OutputBaseDir).Msg("failed to prepare output directory")
	}

	// Task execution backend: the live browser only when explicitly
	// enabled, the offline runner otherwise.
	var (
		taskRunner runner.Runner
		sessions   *browser.SessionManager
	)
	if cfg.EnableRealRunner {
		profileDir := cfg.ProfileDir
		if profileDir == "" {
			profileDir = "./chrome-profile"
		}
		sessions = browser.NewSessionManager(browser.Options{
			TargetURL:  cfg.TargetURL,
			Headless:   cfg.Headless,
			ProfileDir: profileDir,
			LoginWait:  cfg.LoginWaitTimeout,
			GenTimeout: cfg.GenerationTimeout,
		}, logger)
		defer sessions.Shutdown()
		taskRunner = browser.NewLiveRunner(sessions, files, logger)
		logger.Info().Str("target", cfg.TargetURL).Bool("headless", cfg.Headless).Msg("live browser runner enabled")
	} else {
		taskRunner = runner.NewOfflineRunner(files, 0, logger)
		logger.Info().Msg("offline runner enabled, outputs are copies of the reference images")
	}

	sched := scheduler.NewScheduler(taskRunner, files, logger)

	app := handlers.NewApp(sched, sessions, files, *cfg, logger)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
