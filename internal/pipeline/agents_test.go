package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/lessonswarm/internal/llm"
	"github.com/Lllllllleong/lessonswarm/internal/models"
)

var testContext = models.ContextPacket{
	PaperTitle:     "Deep Learning Basics",
	MainGoal:       "Teach neural networks",
	Themes:         []string{"ml"},
	TargetAudience: "Students",
	TotalPages:     2,
}

const sceneCode = "export const Scene = () => <div>hello world from the animated scene</div>;"

func TestGlobalContext_DefaultsOnEmptyReply(t *testing.T) {
	a := NewAgents(newRoutedGenerator(nil), AgentConfig{}, discardLogger())

	cp := a.GlobalContext(context.Background(), llm.NewDocument("thermo-lecture.pdf", []byte("%PDF")))

	assert.Equal(t, "thermo-lecture", cp.PaperTitle)
	assert.Equal(t, defaultMainGoal, cp.MainGoal)
	assert.Equal(t, []string{"academic", "research"}, cp.Themes)
	assert.Equal(t, defaultTargetAudience, cp.TargetAudience)
}

func TestGlobalContext_ParsesReply(t *testing.T) {
	gen := newRoutedGenerator(map[string]string{
		contextPrefix: "Here you go:\n```json\n{\"paper_title\": \"Thermodynamics\", \"themes\": [\"heat\"], \"key_terminology\": [\"entropy\"]}\n```",
	})
	a := NewAgents(gen, AgentConfig{}, discardLogger())

	cp := a.GlobalContext(context.Background(), llm.NewDocument("x.pdf", []byte("%PDF")))

	assert.Equal(t, "Thermodynamics", cp.PaperTitle)
	assert.Equal(t, []string{"heat"}, cp.Themes)
	assert.Equal(t, []string{"entropy"}, cp.KeyTerminology)
}

func TestExtractPages_SinglePlaceholderWhenNothingParsed(t *testing.T) {
	a := NewAgents(newRoutedGenerator(map[string]string{pagesPrefix: "I cannot read this file."}), AgentConfig{}, discardLogger())

	pages := a.ExtractPages(context.Background(), llm.NewDocument("x.pdf", []byte("%PDF")), 0)

	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, singlePagePlaceholder, pages[0].Text)
}

func TestExtractPages_CapsAtMaxPages(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"pages": [`)
	for i := 5; i >= 1; i-- {
		b.WriteString(`{"page": ` + string(rune('0'+i)) + `, "content": "p` + string(rune('0'+i)) + `"}`)
		if i > 1 {
			b.WriteString(",")
		}
	}
	b.WriteString(`]}`)
	gen := newRoutedGenerator(map[string]string{pagesPrefix: b.String()})
	a := NewAgents(gen, AgentConfig{MaxPages: 3}, discardLogger())

	pages := a.ExtractPages(context.Background(), llm.NewDocument("x.pdf", []byte("%PDF")), 5)

	require.Len(t, pages, 3)
	assert.Equal(t, "p1", pages[0].Text)
	assert.Equal(t, "p3", pages[2].Text)
	assert.Contains(t, gen.promptsWithPrefix(pagesPrefix)[0], "the file has 5 pages")
}

func TestExtractPages_BareArrayReply(t *testing.T) {
	gen := newRoutedGenerator(map[string]string{
		pagesPrefix: "```json\n[{\"page\": 2, \"content\": \"second\"}, {\"page\": 1, \"content\": \"first\"}]\n```",
	})
	a := NewAgents(gen, AgentConfig{}, discardLogger())

	pages := a.ExtractPages(context.Background(), llm.NewDocument("x.pdf", []byte("%PDF")), 0)

	require.Len(t, pages, 2)
	assert.Equal(t, models.PageContent{Number: 1, Text: "first"}, pages[0])
	assert.Equal(t, models.PageContent{Number: 2, Text: "second"}, pages[1])
}

func TestListReply(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"wrapped", `{"facts": [{"fact": "a"}, {"fact": "b"}]}`, 2},
		{"wrapped alias", `Sure! {"extracted_facts": [{"fact": "a"}]}`, 1},
		{"bare objects", `[{"fact": "a"}, {"fact": "b"}, {"fact": "c"}]`, 3},
		{"bare strings", `["a", "b"]`, 2},
		{"wrapped empty", `{"facts": []}`, 0},
		{"no list", `{"note": "nothing on this page"}`, 0},
		{"prose", `I could not find any facts.`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, listReply(tc.raw, factListAliases), tc.want)
		})
	}
}

func TestConcepts_BareArrayReply(t *testing.T) {
	gen := newRoutedGenerator(map[string]string{
		conceptPrefix: `[{"term": "Gradient", "analogy": "a hill"}, {"concept": "Loss", "difficulty": "EASY"}]`,
	})
	a := NewAgents(gen, AgentConfig{}, discardLogger())

	concepts, err := a.Concepts(context.Background(), models.PageContent{Number: 1, Text: "t"}, testContext)

	require.NoError(t, err)
	require.Len(t, concepts, 2)
	assert.Equal(t, "a hill", concepts[0].BeginnerAnalogy)
	assert.Equal(t, "Loss", concepts[1].Term)
	assert.Equal(t, "easy", concepts[1].Difficulty)
}

func TestConceptsAndFacts_TruncatePageText(t *testing.T) {
	gen := newRoutedGenerator(map[string]string{
		conceptPrefix: `{"concepts": [{"term": "Backprop", "definition": "d", "beginner_analogy": "a", "difficulty": "easy"}]}`,
		factPrefix:    `[{"fact": "Networks have layers", "category": "claim", "confidence_score": 0.8}]`,
	})
	a := NewAgents(gen, AgentConfig{ConceptPrefix: 10, FactPrefix: 20}, discardLogger())
	page := models.PageContent{Number: 1, Text: strings.Repeat("x", 100)}

	concepts, err := a.Concepts(context.Background(), page, testContext)
	require.NoError(t, err)
	facts, err := a.Facts(context.Background(), page, testContext)
	require.NoError(t, err)

	require.Len(t, concepts, 1)
	assert.Equal(t, "Backprop", concepts[0].Term)
	require.Len(t, facts, 1)
	assert.Equal(t, "claim", facts[0].Category)

	assert.True(t, strings.HasSuffix(gen.promptsWithPrefix(conceptPrefix)[0], "\n\n"+strings.Repeat("x", 10)))
	assert.True(t, strings.HasSuffix(gen.promptsWithPrefix(factPrefix)[0], "\n\n"+strings.Repeat("x", 20)))
}

func TestConcepts_ReturnsContextError(t *testing.T) {
	a := NewAgents(newRoutedGenerator(nil), AgentConfig{}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Concepts(ctx, models.PageContent{Number: 1, Text: "t"}, testContext)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNarrative_UsesLeadingItemsOnly(t *testing.T) {
	gen := newRoutedGenerator(map[string]string{narrativePrefix: `{"script": "Imagine a network of tiny switches."}`})
	a := NewAgents(gen, AgentConfig{NarrativeConcepts: 1, NarrativeFacts: 1}, discardLogger())
	concepts := []models.ConceptExplanation{{Term: "first-concept"}, {Term: "second-concept"}}
	facts := []models.ExtractedFact{{Fact: "first-fact"}, {Fact: "second-fact"}}

	voiceover, err := a.Narrative(context.Background(), 1, concepts, facts, testContext)

	require.NoError(t, err)
	assert.Equal(t, "Imagine a network of tiny switches.", voiceover)
	prompt := gen.promptsWithPrefix(narrativePrefix)[0]
	assert.Contains(t, prompt, "first-concept")
	assert.NotContains(t, prompt, "second-concept")
	assert.Contains(t, prompt, "first-fact")
	assert.NotContains(t, prompt, "second-fact")
}

func TestNarrative_FallbackVoiceover(t *testing.T) {
	a := NewAgents(newRoutedGenerator(nil), AgentConfig{}, discardLogger())

	voiceover, err := a.Narrative(context.Background(), 3, nil, nil, testContext)

	require.NoError(t, err)
	assert.Equal(t, "Page 3 explores concepts from Deep Learning Basics.", voiceover)
}

func TestAnimation_UnfencesRawReply(t *testing.T) {
	gen := newRoutedGenerator(map[string]string{animationPrefix: "Here is the scene:\n```tsx\n" + sceneCode + "\n```"})
	a := NewAgents(gen, AgentConfig{}, discardLogger())

	code, err := a.Animation(context.Background(), 1, nil, nil, testContext)

	require.NoError(t, err)
	assert.Equal(t, sceneCode, code)
}

func TestAnimation_ShortCodeFallsBack(t *testing.T) {
	gen := newRoutedGenerator(map[string]string{animationPrefix: `{"animation_code": "<div/>"}`})
	a := NewAgents(gen, AgentConfig{}, discardLogger())

	code, err := a.Animation(context.Background(), 2, nil, nil, testContext)

	require.NoError(t, err)
	assert.Equal(t, FallbackScene(2, testContext.PaperTitle), code)
}

func TestAnimation_SendsScenePayload(t *testing.T) {
	gen := newRoutedGenerator(nil)
	a := NewAgents(gen, AgentConfig{AnimationConcepts: 1, AnimationFacts: 1}, discardLogger())
	concepts := []models.ConceptExplanation{{Term: "Neuron", BeginnerAnalogy: "A light switch"}, {Term: "Skipped"}}
	facts := []models.ExtractedFact{{Fact: "Layers stack"}, {Fact: "Also skipped"}}

	_, err := a.Animation(context.Background(), 1, concepts, facts, testContext)

	require.NoError(t, err)
	prompt := gen.promptsWithPrefix(animationPrefix)[0]
	assert.Contains(t, prompt, `"analogy": "A light switch"`)
	assert.Contains(t, prompt, `"Layers stack"`)
	assert.NotContains(t, prompt, "Skipped")
	assert.NotContains(t, prompt, "Also skipped")
}
