package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/Lllllllleong/lessonswarm/internal/llm"
)

// routedGenerator answers by the leading words of the user prompt.
type routedGenerator struct {
	mu      sync.Mutex
	replies map[string]string
	prompts []string
}

func newRoutedGenerator(replies map[string]string) *routedGenerator {
	return &routedGenerator{replies: replies}
}

func (g *routedGenerator) Generate(ctx context.Context, systemPrompt string, content llm.Content, maxAttempts int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, content.Text)
	for prefix, reply := range g.replies {
		if strings.HasPrefix(content.Text, prefix) {
			return reply
		}
	}
	return ""
}

func (g *routedGenerator) promptsWithPrefix(prefix string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, p := range g.prompts {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

const (
	contextPrefix   = "Analyze this PDF"
	pagesPrefix     = "Extract the text content"
	conceptPrefix   = "Analyze this page content"
	factPrefix      = "Extract facts"
	narrativePrefix = "Create a voiceover"
	animationPrefix = "Generate animation code"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
