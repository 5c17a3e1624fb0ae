// Command server runs the swarm, the render callback and the chat relay
// behind a single HTTP listener, for local use and container deployments.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lllllllleong/lessonswarm/internal/gcp"
	"github.com/Lllllllleong/lessonswarm/internal/httpapi"
	"github.com/Lllllllleong/lessonswarm/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg httpapi.RouterConfig

	// Each service is optional; one missing its configuration is left unmounted.
	if swarm, err := services.NewSwarm(ctx); err != nil {
		slog.Warn("Swarm disabled.", "error", err)
	} else {
		cfg.Swarm = httpapi.NewSwarmHandler(swarm)
	}
	if callback, err := services.NewRenderCallback(ctx); err != nil {
		slog.Warn("Render callback disabled.", "error", err)
	} else {
		cfg.RenderCallback = httpapi.NewRenderCallbackHandler(callback)
	}
	if relay, err := services.NewChatRelay(ctx); err != nil {
		slog.Warn("Chat relay disabled.", "error", err)
	} else {
		cfg.Chat = httpapi.NewChatHandler(relay)
	}
	if cfg.Swarm == nil && cfg.RenderCallback == nil && cfg.Chat == nil {
		return errors.New("no service could be initialized")
	}

	server := &http.Server{
		Addr:              ":" + gcp.GetEnv("PORT", "8080"),
		Handler:           httpapi.NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening.", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gcp.GetEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second))
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("Server stopped.")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
