package infra

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestHTTPServerGracefulShutdown(t *testing.T) {
	cfg := &Config{
		Port:            "0",
		HTTPReadTimeout: time.Second,
		HTTPIdleTimeout: time.Second,
	}
	srv := NewHTTPServer(cfg, http.NewServeMux())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err := <-errCh:
		// Callers suppress exactly this error on clean shutdown; anything
		// else must surface as a failure.
		if !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("Start returned %v, want http.ErrServerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after Shutdown")
	}
}
