package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/Lllllllleong/lessonswarm/internal/jsonx"
	"github.com/Lllllllleong/lessonswarm/internal/llm"
	"github.com/Lllllllleong/lessonswarm/internal/models"
)

// AgentConfig bounds the size of everything sent to the model.
type AgentConfig struct {
	MaxAttempts       int
	ConceptPrefix     int
	FactPrefix        int
	NarrativeConcepts int
	NarrativeFacts    int
	AnimationConcepts int
	AnimationFacts    int
	MinAnimationChars int
	MaxPages          int
}

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxAttempts:       llm.DefaultMaxAttempts,
		ConceptPrefix:     3000,
		FactPrefix:        4000,
		NarrativeConcepts: 5,
		NarrativeFacts:    8,
		AnimationConcepts: 3,
		AnimationFacts:    3,
		MinAnimationChars: 50,
		MaxPages:          20,
	}
}

// withDefaults fills every unset field from DefaultAgentConfig.
func (c AgentConfig) withDefaults() AgentConfig {
	d := DefaultAgentConfig()
	set := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	set(&c.MaxAttempts, d.MaxAttempts)
	set(&c.ConceptPrefix, d.ConceptPrefix)
	set(&c.FactPrefix, d.FactPrefix)
	set(&c.NarrativeConcepts, d.NarrativeConcepts)
	set(&c.NarrativeFacts, d.NarrativeFacts)
	set(&c.AnimationConcepts, d.AnimationConcepts)
	set(&c.AnimationFacts, d.AnimationFacts)
	set(&c.MinAnimationChars, d.MinAnimationChars)
	set(&c.MaxPages, d.MaxPages)
	return c
}

// Agents holds every role-specific model call of the pipeline. None of them
// fail on bad model output; the per-page agents only return the context's
// error once it is done.
type Agents struct {
	gen llm.Generator
	cfg AgentConfig
	log *slog.Logger
}

func NewAgents(gen llm.Generator, cfg AgentConfig, log *slog.Logger) *Agents {
	if log == nil {
		log = slog.Default()
	}
	return &Agents{gen: gen, cfg: cfg.withDefaults(), log: log}
}

// GlobalContext produces the document-level context packet. Every field is
// populated, with defaults when the model gives nothing.
func (a *Agents) GlobalContext(ctx context.Context, doc *llm.Document) models.ContextPacket {
	a.log.Info("Generating global context.", "documentName", doc.Name)

	prompt := fmt.Sprintf("Analyze this PDF and extract the global context. PDF Name: %s", doc.Name)
	raw := a.gen.Generate(ctx, GlobalContextSystemPrompt, llm.WithDocument(prompt, doc), a.cfg.MaxAttempts)
	parsed := jsonx.Parse(raw, map[string]any{})

	return normalizeContext(parsed, doc.Name)
}

// ExtractPages asks the model to split the document into pages. It always
// returns at least one page.
func (a *Agents) ExtractPages(ctx context.Context, doc *llm.Document, pageHint int) []models.PageContent {
	a.log.Info("Extracting page content.", "documentName", doc.Name, "pageHint", pageHint)

	raw := a.gen.Generate(ctx,
		pageExtractionSystemPrompt(a.cfg.MaxPages),
		llm.WithDocument(pageExtractionUserPrompt(doc.Name, pageHint), doc),
		a.cfg.MaxAttempts,
	)
	pages := normalizePages(listReply(raw, pageListAliases))

	if len(pages) > a.cfg.MaxPages {
		a.log.Warn("Model returned more pages than requested. Dropping the rest.", "returned", len(pages), "maxPages", a.cfg.MaxPages)
		pages = pages[:a.cfg.MaxPages]
	}
	if len(pages) == 0 {
		a.log.Warn("Could not extract individual pages. Treating the document as a single page.", "documentName", doc.Name)
		return []models.PageContent{{Number: 1, Text: singlePagePlaceholder}}
	}

	a.log.Info("Extracted pages.", "documentName", doc.Name, "pageCount", len(pages))
	return pages
}

func (a *Agents) Concepts(ctx context.Context, page models.PageContent, cp models.ContextPacket) ([]models.ConceptExplanation, error) {
	prompt := "Analyze this page content and identify confusing concepts:\n\n" + truncateRunes(page.Text, a.cfg.ConceptPrefix)
	raw := a.gen.Generate(ctx, conceptSystemPrompt(page.Number, cp), llm.Text(prompt), a.cfg.MaxAttempts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return normalizeConcepts(listReply(raw, conceptListAliases)), nil
}

func (a *Agents) Facts(ctx context.Context, page models.PageContent, cp models.ContextPacket) ([]models.ExtractedFact, error) {
	prompt := "Extract facts from this page:\n\n" + truncateRunes(page.Text, a.cfg.FactPrefix)
	raw := a.gen.Generate(ctx, factSystemPrompt(page.Number, cp), llm.Text(prompt), a.cfg.MaxAttempts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return normalizeFacts(listReply(raw, factListAliases)), nil
}

// Narrative writes the voiceover from the leading concepts and facts only,
// never from the raw page text.
func (a *Agents) Narrative(ctx context.Context, pageNumber int, concepts []models.ConceptExplanation, facts []models.ExtractedFact, cp models.ContextPacket) (string, error) {
	payload := struct {
		Concepts []models.ConceptExplanation `json:"concepts"`
		Facts    []models.ExtractedFact      `json:"facts"`
	}{
		Concepts: head(concepts, a.cfg.NarrativeConcepts),
		Facts:    head(facts, a.cfg.NarrativeFacts),
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode narrative payload: %w", err)
	}

	raw := a.gen.Generate(ctx, narrativeSystemPrompt(pageNumber, cp), llm.Text("Create a voiceover for this page:\n\n"+string(encoded)), a.cfg.MaxAttempts)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if voiceover := firstString(jsonx.Parse(raw, map[string]any{}), voiceoverAliases); voiceover != "" {
		return voiceover, nil
	}
	return fallbackVoiceover(pageNumber, cp.PaperTitle), nil
}

type animationConcept struct {
	Term    string `json:"term"`
	Analogy string `json:"analogy"`
}

// Animation generates the scene component for a page. The result is always
// a well-formed scene: short or empty output is replaced by FallbackScene.
func (a *Agents) Animation(ctx context.Context, pageNumber int, concepts []models.ConceptExplanation, facts []models.ExtractedFact, cp models.ContextPacket) (string, error) {
	sceneConcepts := make([]animationConcept, 0, a.cfg.AnimationConcepts)
	for _, c := range head(concepts, a.cfg.AnimationConcepts) {
		sceneConcepts = append(sceneConcepts, animationConcept{Term: c.Term, Analogy: c.BeginnerAnalogy})
	}
	sceneFacts := make([]string, 0, a.cfg.AnimationFacts)
	for _, f := range head(facts, a.cfg.AnimationFacts) {
		sceneFacts = append(sceneFacts, f.Fact)
	}
	payload := struct {
		Page     int                `json:"page"`
		Title    string             `json:"title"`
		Concepts []animationConcept `json:"concepts"`
		Facts    []string           `json:"facts"`
	}{pageNumber, cp.PaperTitle, sceneConcepts, sceneFacts}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode animation payload: %w", err)
	}

	raw := a.gen.Generate(ctx, animationSystemPrompt(pageNumber, cp), llm.Text("Generate animation code for:\n\n"+string(encoded)), a.cfg.MaxAttempts)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	code := firstString(jsonx.Parse(raw, map[string]any{}), animationAliases)
	if code == "" {
		// Some replies skip the JSON envelope and send the fenced block directly.
		if fenced, ok := unfence(raw); ok {
			code = fenced
		}
	}
	code, _ = unfence(code)

	if utf8.RuneCountInString(code) < a.cfg.MinAnimationChars {
		a.log.Warn("Animation code missing or too short. Using fallback scene.", "page", pageNumber, "length", utf8.RuneCountInString(code))
		return FallbackScene(pageNumber, cp.PaperTitle), nil
	}
	return code, nil
}

// listReply reads a list-shaped reply. The list may be wrapped in an object
// under one of keys or sent as a bare array.
func listReply(raw string, keys []string) []any {
	if wrapped := jsonx.Parse[map[string]any](raw, nil); wrapped != nil {
		if items := firstList(wrapped, keys); items != nil {
			return items
		}
	}
	return jsonx.Parse[[]any](raw, nil)
}

func head[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
