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

	functions.HTTP("ChatRelay", chatRelay)
}

func main() {}

// chatRelay streams a tutoring conversation through the model gateway.
func chatRelay(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var relay *services.ChatRelay
		relay, initErr = services.NewChatRelay(context.Background())
		if initErr == nil {
			handler = httpapi.Single(httpapi.NewChatHandler(relay).Handle)
		}
	})
	if initErr != nil {
		slog.Error("Critical: Chat relay initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	handler.ServeHTTP(w, r)
}
