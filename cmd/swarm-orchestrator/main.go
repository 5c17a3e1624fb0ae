package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/lessonswarm/internal/httpapi"
	"github.com/Lllllllleong/lessonswarm/internal/services"
)

var (
	handler http.Handler
	once    sync.Once
	initErr error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("SwarmOrchestrator", swarmOrchestrator)
}

func main() {}

// swarmOrchestrator accepts a multipart PDF upload and answers with the storyboard.
func swarmOrchestrator(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var swarm *services.SwarmFunction
		swarm, initErr = services.NewSwarm(context.Background())
		if initErr == nil {
			handler = httpapi.Single(httpapi.NewSwarmHandler(swarm).Handle)
		}
	})
	if initErr != nil {
		slog.Error("Critical: Swarm initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	handler.ServeHTTP(w, r)
}
