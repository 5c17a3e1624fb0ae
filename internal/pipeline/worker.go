package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/lessonswarm/internal/models"
	"golang.org/x/sync/errgroup"
)

// PageAgents are the four per-page roles the worker sequences.
type PageAgents interface {
	Concepts(ctx context.Context, page models.PageContent, cp models.ContextPacket) ([]models.ConceptExplanation, error)
	Facts(ctx context.Context, page models.PageContent, cp models.ContextPacket) ([]models.ExtractedFact, error)
	Narrative(ctx context.Context, pageNumber int, concepts []models.ConceptExplanation, facts []models.ExtractedFact, cp models.ContextPacket) (string, error)
	Animation(ctx context.Context, pageNumber int, concepts []models.ConceptExplanation, facts []models.ExtractedFact, cp models.ContextPacket) (string, error)
}

// PageWorker turns one page into exactly one PageResult. A failure at any
// stage discards the earlier stages and yields the fallback result; there is
// no partially filled result.
type PageWorker struct {
	agents PageAgents
	log    *slog.Logger
}

func NewPageWorker(agents PageAgents, log *slog.Logger) *PageWorker {
	if log == nil {
		log = slog.Default()
	}
	return &PageWorker{agents: agents, log: log}
}

func (w *PageWorker) Process(ctx context.Context, page models.PageContent, cp models.ContextPacket) (result models.PageResult) {
	logCtx := w.log.With("page", page.Number)
	logCtx.Info("Processing page.")

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("page %d panicked: %v", page.Number, r)
			logCtx.Error("Page pipeline panicked. Using fallback.", "error", err)
			result = FallbackResult(page.Number, err)
		}
	}()

	res, err := w.run(ctx, logCtx, page, cp)
	if err != nil {
		logCtx.Error("Page pipeline failed. Using fallback.", "error", err)
		return FallbackResult(page.Number, err)
	}
	return res
}

func (w *PageWorker) run(ctx context.Context, logCtx *slog.Logger, page models.PageContent, cp models.ContextPacket) (models.PageResult, error) {
	concepts, err := w.agents.Concepts(ctx, page, cp)
	if err != nil {
		return models.PageResult{}, fmt.Errorf("concept agent: %w", err)
	}
	logCtx.Info("Concepts done.", "conceptCount", len(concepts))

	facts, err := w.agents.Facts(ctx, page, cp)
	if err != nil {
		return models.PageResult{}, fmt.Errorf("fact agent: %w", err)
	}
	logCtx.Info("Facts done.", "factCount", len(facts))

	var voiceover, animationCode string
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(recovering(func() error {
		v, err := w.agents.Narrative(gctx, page.Number, concepts, facts, cp)
		if err != nil {
			return fmt.Errorf("narrative agent: %w", err)
		}
		voiceover = v
		return nil
	}))
	eg.Go(recovering(func() error {
		code, err := w.agents.Animation(gctx, page.Number, concepts, facts, cp)
		if err != nil {
			return fmt.Errorf("animation agent: %w", err)
		}
		animationCode = code
		return nil
	}))
	if err := eg.Wait(); err != nil {
		return models.PageResult{}, err
	}

	if voiceover == "" {
		voiceover = fallbackVoiceover(page.Number, cp.PaperTitle)
	}
	if animationCode == "" {
		animationCode = FallbackScene(page.Number, cp.PaperTitle)
	}
	logCtx.Info("Page complete.", "voiceoverLength", len(voiceover), "animationLength", len(animationCode))

	return models.PageResult{
		Page:          page.Number,
		Concepts:      nonNil(concepts),
		Facts:         nonNil(facts),
		AnimationCode: animationCode,
		Voiceover:     voiceover,
		Status:        models.PageStatusSuccess,
	}, nil
}

// FallbackResult is the deterministic result of a failed page.
func FallbackResult(pageNumber int, err error) models.PageResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return models.PageResult{
		Page:          pageNumber,
		Concepts:      []models.ConceptExplanation{},
		Facts:         []models.ExtractedFact{},
		AnimationCode: FailedPageScene(pageNumber),
		Voiceover:     FailedPageVoiceover(pageNumber),
		Status:        models.PageStatusFallback,
		Error:         msg,
	}
}

// recovering turns a panic inside an errgroup goroutine into an error.
func recovering(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
