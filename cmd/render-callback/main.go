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

	functions.HTTP("RenderCallback", renderCallback)
}

func main() {}

// renderCallback records the outcome of a render job against its facts.
func renderCallback(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var fn *services.RenderCallbackFunction
		fn, initErr = services.NewRenderCallback(context.Background())
		if initErr == nil {
			handler = httpapi.Single(httpapi.NewRenderCallbackHandler(fn).Handle)
		}
	})
	if initErr != nil {
		slog.Error("Critical: Render callback initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	handler.ServeHTTP(w, r)
}
